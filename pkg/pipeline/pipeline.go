// Package pipeline is the command pipeline's two independent
// responsibilities: intent acceptance (deciding whether a planner-proposed
// command is worth persisting, by checking whether current state already
// reflects it) and background dispatch (claiming persisted commands and
// handing them to adapters).
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hausbrain/core/pkg/commandlog"
	"github.com/hausbrain/core/pkg/model"
)

// tagResolver and frameSource are the narrow slices of timestore.Store and
// cache.Cache the pipeline needs for its reflection checks against current
// state, mirroring pkg/state's own narrow-interface idiom.
type tagResolver interface {
	TagID(ctx context.Context, ch model.Channel, createIfMissing bool) (int64, error)
}

type frameSource interface {
	GetDataframe(ctx context.Context, tagID int64, t0, t1 time.Time) (model.Frame, error)
}

// commandStore is the subset of commandlog.Store the pipeline drives.
type commandStore interface {
	Insert(ctx context.Context, cmd model.Command, source model.Source, userTriggerID *int64, correlationID string) (model.CommandExecution, error)
	MostRecent(ctx context.Context, target model.CommandTarget, since time.Time) (model.CommandExecution, error)
}

// Pipeline implements planner.Executor: it is the planner's sole entry
// point for turning an evaluated action's proposed commands into persisted,
// dispatchable intent.
type Pipeline struct {
	ts        tagResolver
	cache     frameSource
	cl        commandStore
	publisher commandAddedPublisher
	Now       func() time.Time
}

// commandAddedPublisher is the one event the intent-acceptance step emits
// itself; publisher may be nil (events disabled).
type commandAddedPublisher interface {
	PublishCommandAdded(exec model.CommandExecution)
}

func New(ts tagResolver, cache frameSource, cl commandStore, publisher commandAddedPublisher, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{ts: ts, cache: cache, cl: cl, publisher: publisher, Now: now}
}

// Execute is the intent-acceptance step: dedupe against a very recent
// identical command from the same source, then check whether current state
// already reflects the requested change, before persisting. It returns
// triggered=true iff a new Pending row was inserted.
func (p *Pipeline) Execute(ctx context.Context, cmd model.Command, source model.Source, userTriggerID *int64, correlationID string) (bool, error) {
	now := p.Now()
	target := cmd.Target

	recent, err := p.cl.MostRecent(ctx, target, now.Add(-48*time.Hour))
	if err != nil && !errors.Is(err, commandlog.ErrNotFound) {
		return false, fmt.Errorf("pipeline: most recent %s: %w", target, err)
	}
	haveRecent := !errors.Is(err, commandlog.ErrNotFound)

	if haveRecent && recent.Source == source && now.Sub(recent.CreatedAt) < 30*time.Second && sameCommand(recent.Command, cmd) {
		return false, nil
	}

	reflected, err := p.isReflectedInState(ctx, cmd, now)
	if err != nil {
		return false, fmt.Errorf("pipeline: reflection check %s: %w", target, err)
	}
	if reflected {
		return false, nil
	}

	inserted, err := p.cl.Insert(ctx, cmd, source, userTriggerID, correlationID)
	if err != nil {
		return false, fmt.Errorf("pipeline: insert %s: %w", target, err)
	}
	if p.publisher != nil {
		p.publisher.PublishCommandAdded(inserted)
	}
	return true, nil
}

// sameCommand compares two commands by their flattened JSON form, since
// Command carries its payload as map[string]any and cannot be compared with
// ==.
func sameCommand(a, b model.Command) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}

// isReflectedInState dispatches to the per-kind reflection check.
func (p *Pipeline) isReflectedInState(ctx context.Context, cmd model.Command, now time.Time) (bool, error) {
	switch cmd.Target.Kind {
	case model.KindSetPower:
		return p.reflectSetPower(ctx, cmd, now)
	case model.KindSetHeating:
		return p.reflectSetHeating(ctx, cmd, now)
	case model.KindSetThermostatAmbientTemperature:
		return p.reflectAmbientTemperature(ctx, cmd, now)
	case model.KindPushNotify:
		return p.reflectPushNotify(ctx, cmd, now)
	case model.KindSetEnergySaving:
		return p.reflectEnergySaving(ctx, cmd, now)
	case model.KindControlFan:
		return p.reflectControlFan(ctx, cmd, now)
	case model.KindSetThermostatLoadMean:
		return p.reflectLoadMean(ctx, cmd, now)
	case model.KindSetThermostatValveOpeningPosition:
		return p.reflectValveOpeningPosition(ctx, cmd, now)
	default:
		return false, fmt.Errorf("pipeline: unknown command kind %q", cmd.Target.Kind)
	}
}

// latestBool fetches the latest boolean sample for a channel within
// lookback, defaulting to (false, false) if none exists.
func (p *Pipeline) latestBool(ctx context.Context, ch model.Channel, now time.Time, lookback time.Duration) (bool, bool, error) {
	tagID, err := p.ts.TagID(ctx, ch, false)
	if err != nil {
		return false, false, nil
	}
	frame, err := p.cache.GetDataframe(ctx, tagID, now.Add(-lookback), now)
	if err != nil {
		return false, false, fmt.Errorf("pipeline: latest %s: %w", ch, err)
	}
	s, ok := frame.Latest()
	if !ok {
		return false, false, nil
	}
	return s.Value != 0, true, nil
}

func (p *Pipeline) latestFloat(ctx context.Context, ch model.Channel, now time.Time, lookback time.Duration) (float64, bool, error) {
	tagID, err := p.ts.TagID(ctx, ch, false)
	if err != nil {
		return 0, false, nil
	}
	frame, err := p.cache.GetDataframe(ctx, tagID, now.Add(-lookback), now)
	if err != nil {
		return 0, false, fmt.Errorf("pipeline: latest %s: %w", ch, err)
	}
	s, ok := frame.Latest()
	if !ok {
		return 0, false, nil
	}
	return s.Value, true, nil
}

func (p *Pipeline) reflectSetPower(ctx context.Context, cmd model.Command, now time.Time) (bool, error) {
	powered, ok, err := p.latestBool(ctx, model.Channel{Type: "Powered", Variant: cmd.Target.Device}, now, 48*time.Hour)
	if err != nil || !ok {
		return false, err
	}
	return powered == cmd.Bool("on"), nil
}

func (p *Pipeline) reflectSetHeating(ctx context.Context, cmd model.Command, now time.Time) (bool, error) {
	target, err := cmd.HeatingTargetPayload()
	if err != nil {
		return false, err
	}
	switch target.Mode {
	case model.HeatingOff:
		setpoint, ok, err := p.latestFloat(ctx, model.Channel{Type: "ThermostatSetpoint", Variant: cmd.Target.Device}, now, 48*time.Hour)
		if err != nil || !ok {
			return false, err
		}
		return setpoint == 0, nil
	case model.HeatingHeat:
		setpoint, ok, err := p.latestFloat(ctx, model.Channel{Type: "ThermostatSetpoint", Variant: cmd.Target.Device}, now, 48*time.Hour)
		if err != nil || !ok {
			return false, err
		}
		return abs(setpoint-target.Temperature) < 0.01, nil
	case model.HeatingWindowOpen:
		flag, ok, err := p.latestBool(ctx, model.Channel{Type: "RadiatorWindowOpen", Variant: cmd.Target.Device}, now, 48*time.Hour)
		if err != nil || !ok {
			return false, err
		}
		return flag, nil
	default:
		// HeatingAuto has no reflection check in the distilled table, so a
		// SetHeating(auto) command (which pkg/config does emit) is never
		// reported as already reflected.
		return false, nil
	}
}

func (p *Pipeline) reflectAmbientTemperature(ctx context.Context, cmd model.Command, now time.Time) (bool, error) {
	exec, err := p.cl.MostRecent(ctx, cmd.Target, now.Add(-2*time.Hour))
	if errors.Is(err, commandlog.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	requested := cmd.Float("temperature")
	return abs(exec.Command.Float("temperature")-requested) < 0.01 && now.Sub(exec.CreatedAt) < 25*time.Minute, nil
}

func (p *Pipeline) reflectPushNotify(ctx context.Context, cmd model.Command, now time.Time) (bool, error) {
	exec, err := p.cl.MostRecent(ctx, cmd.Target, now.Add(-24*time.Hour))
	if errors.Is(err, commandlog.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// MostRecent matches by target only (recipient), so also require the
	// same notification name before comparing action.
	if exec.Command.Str("notification") != cmd.Str("notification") {
		return false, nil
	}
	return exec.Command.Str("action") == cmd.Str("action"), nil
}

func (p *Pipeline) reflectEnergySaving(ctx context.Context, cmd model.Command, now time.Time) (bool, error) {
	on, ok, err := p.latestBool(ctx, model.Channel{Type: "EnergySaving", Variant: cmd.Target.Device}, now, 48*time.Hour)
	if err != nil || !ok {
		return false, err
	}
	if on != cmd.Bool("on") {
		return false, nil
	}
	_, err = p.cl.MostRecent(ctx, cmd.Target, now.Add(-24*time.Hour))
	if errors.Is(err, commandlog.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (p *Pipeline) reflectControlFan(ctx context.Context, cmd model.Command, now time.Time) (bool, error) {
	airflow, ok, err := p.latestFloat(ctx, model.Channel{Type: "FanActivity", Variant: cmd.Target.Device}, now, 48*time.Hour)
	if err != nil || !ok {
		return false, err
	}
	return airflow == cmd.Float("airflow"), nil
}

// reflectLoadMean — (added) the most recent SetThermostatLoadMean for this
// device within 15 minutes whose raw vendor value is within ±5.0 of the
// requested value.
func (p *Pipeline) reflectLoadMean(ctx context.Context, cmd model.Command, now time.Time) (bool, error) {
	exec, err := p.cl.MostRecent(ctx, cmd.Target, now.Add(-15*time.Minute))
	if errors.Is(err, commandlog.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return abs(exec.Command.Float("value")-cmd.Float("value")) <= 5.0, nil
}

// reflectValveOpeningPosition — (added) compares against the latest
// ThermostatValveOpening reading, both rounded to whole percent, rather than
// against a command-log entry: the valve's opening position tracks demand
// continuously and is never itself the thing being commanded to a fixed
// point.
func (p *Pipeline) reflectValveOpeningPosition(ctx context.Context, cmd model.Command, now time.Time) (bool, error) {
	opening, ok, err := p.latestFloat(ctx, model.Channel{Type: "ThermostatValveOpening", Variant: cmd.Target.Device}, now, 48*time.Hour)
	if err != nil || !ok {
		return false, err
	}
	return round(opening) == round(cmd.Float("percent")), nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func round(f float64) int64 {
	if f < 0 {
		return int64(f - 0.5)
	}
	return int64(f + 0.5)
}

// MinInterval is the declared minimum spacing between successive
// executions of a command kind, queryable by the planner but unenforced
// here.
func MinInterval(kind model.CommandKind) (time.Duration, bool) {
	switch kind {
	case model.KindSetHeating, model.KindSetThermostatValveOpeningPosition:
		return 2 * time.Minute, true
	case model.KindSetPower:
		return time.Minute, true
	case model.KindSetEnergySaving:
		return 2 * time.Minute, true
	case model.KindControlFan:
		return 3 * time.Minute, true
	default:
		return 0, false
	}
}

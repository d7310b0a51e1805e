// Package state is the derivation engine: it computes derived home-state
// values (dewpoint, occupancy, risk-of-mould, user-controlled, ...) from raw
// time-series channels plus the clock, on demand, one Engine method per
// derived value. Math helpers live in math.go.
package state

import (
	"context"
	"fmt"
	"time"

	"github.com/hausbrain/core/pkg/model"
)

// tagResolver, frameSource and commandSource are the narrow slices of
// timestore.Store, cache.Cache and commandlog.Store the engine actually
// calls, so tests can substitute fakes instead of a live database.
type tagResolver interface {
	TagID(ctx context.Context, ch model.Channel, createIfMissing bool) (int64, error)
}

type frameSource interface {
	GetDataframe(ctx context.Context, tagID int64, t0, t1 time.Time) (model.Frame, error)
}

type commandSource interface {
	MostRecent(ctx context.Context, target model.CommandTarget, since time.Time) (model.CommandExecution, error)
}

// Engine evaluates derivations against the cache layer. Now is the
// injectable clock the design notes call for, so tests can pin time.
type Engine struct {
	ts    tagResolver
	cache frameSource
	cl    commandSource
	Now   func() time.Time
}

func New(ts tagResolver, c frameSource, cl commandSource, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{ts: ts, cache: c, cl: cl, Now: now}
}

// rawFrame fetches a channel's frame over [t0,t1] through the cache. ok is
// false iff the channel has never been seen (no tag row exists yet); that
// is not an error, just "no data".
func (e *Engine) rawFrame(ctx context.Context, ch model.Channel, t0, t1 time.Time) (model.Frame, bool, error) {
	tagID, err := e.ts.TagID(ctx, ch, false)
	if err != nil {
		return model.Frame{}, false, nil
	}
	frame, err := e.cache.GetDataframe(ctx, tagID, t0, t1)
	if err != nil {
		return model.Frame{}, false, fmt.Errorf("state: raw frame %s: %w", ch, err)
	}
	return frame, true, nil
}

// rawLatest is rawFrame's "just the current value" convenience, looking
// back lookback from now.
func (e *Engine) rawLatest(ctx context.Context, ch model.Channel, lookback time.Duration) (model.Sample, bool, error) {
	now := e.Now()
	frame, ok, err := e.rawFrame(ctx, ch, now.Add(-lookback), now)
	if err != nil || !ok {
		return model.Sample{}, false, err
	}
	s, ok := frame.Latest()
	return s, ok, nil
}

// Dewpoint(room) derives from Temperature(room) and Humidity(room) via the
// Magnus formula.
func (e *Engine) Dewpoint(ctx context.Context, room string) (model.DataPoint, error) {
	temp, ok, err := e.rawLatest(ctx, model.Channel{Type: "Temperature", Variant: room}, 48*time.Hour)
	if err != nil || !ok {
		return model.DataPoint{}, err
	}
	hum, ok, err := e.rawLatest(ctx, model.Channel{Type: "Humidity", Variant: room}, 48*time.Hour)
	if err != nil || !ok {
		return model.DataPoint{}, err
	}
	dp := Dewpoint(temp.Value, hum.Value)
	ts := temp.Timestamp
	if hum.Timestamp.After(ts) {
		ts = hum.Timestamp
	}
	return model.DataPoint{Value: model.Temperature(dp), Timestamp: ts}, nil
}

// AbsoluteHumidityOf(room) derives from Temperature(room) and Humidity(room).
func (e *Engine) AbsoluteHumidityOf(ctx context.Context, room string) (model.DataPoint, error) {
	temp, ok, err := e.rawLatest(ctx, model.Channel{Type: "Temperature", Variant: room}, 48*time.Hour)
	if err != nil || !ok {
		return model.DataPoint{}, err
	}
	hum, ok, err := e.rawLatest(ctx, model.Channel{Type: "Humidity", Variant: room}, 48*time.Hour)
	if err != nil || !ok {
		return model.DataPoint{}, err
	}
	ah := AbsoluteHumidity(temp.Value, hum.Value)
	ts := temp.Timestamp
	if hum.Timestamp.After(ts) {
		ts = hum.Timestamp
	}
	return model.DataPoint{Value: model.Quantity(ah), Timestamp: ts}, nil
}

// RiskOfMould(bathroom) is true iff humidity(shower) > 70% and the shower's
// dewpoint exceeds the trailing-3h mean dewpoint of otherRooms by > 3°C.
func (e *Engine) RiskOfMould(ctx context.Context, shower string, otherRooms []string) (model.DataPoint, error) {
	hum, ok, err := e.rawLatest(ctx, model.Channel{Type: "Humidity", Variant: shower}, 48*time.Hour)
	if err != nil || !ok {
		return model.DataPoint{}, err
	}
	showerDP, err := e.Dewpoint(ctx, shower)
	if err != nil {
		return model.DataPoint{}, err
	}

	now := e.Now()
	var refs []float64
	ts := showerDP.Timestamp
	for _, room := range otherRooms {
		frame, ok, err := e.rawFrame(ctx, model.Channel{Type: "Dewpoint", Variant: room}, now.Add(-3*time.Hour), now)
		if err != nil {
			return model.DataPoint{}, err
		}
		if !ok {
			continue
		}
		for _, s := range frame.Samples {
			refs = append(refs, s.Value)
			if s.Timestamp.After(ts) {
				ts = s.Timestamp
			}
		}
	}
	refMean, ok := average(refs)
	if !ok {
		return model.DataPoint{}, nil
	}

	dpVal := float64(showerDP.Value.(model.Temperature))
	risk := hum.Value > 70 && (dpVal-refMean) > 3
	return model.DataPoint{Value: model.Boolean(risk), Timestamp: ts}, nil
}

// Opened(compound) OR-reduces every opened-sensor channel in sensorChannels;
// timestamp is the max over contributing inputs.
func (e *Engine) Opened(ctx context.Context, sensorChannels []model.Channel) (model.DataPoint, error) {
	var anyOpen bool
	var latestTS time.Time
	found := false
	for _, ch := range sensorChannels {
		s, ok, err := e.rawLatest(ctx, ch, 7*24*time.Hour)
		if err != nil {
			return model.DataPoint{}, err
		}
		if !ok {
			continue
		}
		found = true
		if s.Value != 0 {
			anyOpen = true
		}
		if s.Timestamp.After(latestTS) {
			latestTS = s.Timestamp
		}
	}
	if !found {
		return model.DataPoint{}, nil
	}
	return model.DataPoint{Value: model.Boolean(anyOpen), Timestamp: latestTS}, nil
}

// OccupancyParams tunes the logistic model; Tau defaults to 30 minutes.
type OccupancyParams struct {
	Prior  float64
	Weight float64
	Tau    time.Duration
}

func DefaultOccupancyParams() OccupancyParams {
	return OccupancyParams{Prior: -2.0, Weight: 1.0, Tau: 30 * time.Minute}
}

// Occupancy(zone) fits sigmoid(prior + w*agedSum) over the trailing-1h
// presence boolean series, agedSum = integral of presence * exp(-age/tau).
func (e *Engine) Occupancy(ctx context.Context, zone string, params OccupancyParams) (model.DataPoint, error) {
	now := e.Now()
	frame, ok, err := e.rawFrame(ctx, model.Channel{Type: "Presence", Variant: zone}, now.Add(-time.Hour), now)
	if err != nil {
		return model.DataPoint{}, err
	}
	if !ok {
		return model.DataPoint{}, nil
	}

	tau := params.Tau
	if tau == 0 {
		tau = 30 * time.Minute
	}
	var points []weightedPoint
	latestTS := now.Add(-time.Hour)
	for _, s := range frame.All() {
		points = append(points, weightedPoint{value: s.Value, ageSecs: now.Sub(s.Timestamp).Seconds()})
		if s.Timestamp.After(latestTS) {
			latestTS = s.Timestamp
		}
	}
	agedSum := weightedAgedSum(points, tau.Seconds())
	prob := Sigmoid(params.Prior + params.Weight*agedSum)
	return model.DataPoint{Value: model.Quantity(prob), Timestamp: latestTS}, nil
}

// WindowOpen(thermostat) — (added) derived from Opened(compound) restricted
// to the sensor compound guarding one radiator.
func (e *Engine) WindowOpen(ctx context.Context, guardingSensors []model.Channel) (model.DataPoint, error) {
	return e.Opened(ctx, guardingSensors)
}

// ContinuouslyPowered(device) — (added) the timestamp of the last transition
// to Powered=true, held as long as no intervening false sample exists; ok is
// false if the device is currently off or has no history.
func (e *Engine) ContinuouslyPowered(ctx context.Context, device string) (time.Time, bool, error) {
	return e.SinceTrue(ctx, model.Channel{Type: "Powered", Variant: device})
}

// SinceTrue(channel) — (added) the timestamp of the last transition to a
// nonzero value on channel, held as long as no intervening zero sample
// exists over the trailing week; ok is false if the channel currently reads
// zero or has no history. Used both for Powered (ContinuouslyPowered) and
// for a compound Opened channel an adapter publishes pre-aggregated
// (window-open duration).
func (e *Engine) SinceTrue(ctx context.Context, ch model.Channel) (time.Time, bool, error) {
	now := e.Now()
	frame, ok, err := e.rawFrame(ctx, ch, now.Add(-7*24*time.Hour), now)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	samples := frame.All()
	if len(samples) == 0 {
		return time.Time{}, false, nil
	}
	last := samples[len(samples)-1]
	if last.Value == 0 {
		return time.Time{}, false, nil
	}
	// walk backwards to find when the current "on" streak began
	since := last.Timestamp
	for i := len(samples) - 1; i >= 0; i-- {
		if samples[i].Value == 0 {
			break
		}
		since = samples[i].Timestamp
	}
	return since, true, nil
}

// Raw(channel) — (added) passes a channel's latest raw sample straight
// through into a DataPoint, decoded via the channel's declared kind. Used
// for channels an adapter publishes pre-computed that the snapshot still
// needs to consult verbatim (a per-zone heating-demand limit, a
// device's raw Powered flag) — no derivation step applies.
func (e *Engine) Raw(ctx context.Context, ch model.Channel, lookback time.Duration) (model.DataPoint, error) {
	s, ok, err := e.rawLatest(ctx, ch, lookback)
	if err != nil || !ok {
		return model.DataPoint{}, err
	}
	kind, ok := model.ValueKind(ch.Type)
	if !ok {
		return model.DataPoint{}, fmt.Errorf("state: raw %s: unregistered channel kind", ch)
	}
	v, err := model.DecodeValue(kind, s.Value)
	if err != nil {
		return model.DataPoint{}, fmt.Errorf("state: raw %s: %w", ch, err)
	}
	return model.DataPoint{Value: v, Timestamp: s.Timestamp}, nil
}

// AutomaticTemperatureIncrease(zone) reports whether the zone's temperature
// has been rising steadily — a simple two-point trailing-trend heuristic:
// the latest two samples within the lookback window are both increasing.
func (e *Engine) AutomaticTemperatureIncrease(ctx context.Context, zone string) (model.DataPoint, error) {
	now := e.Now()
	frame, ok, err := e.rawFrame(ctx, model.Channel{Type: "Temperature", Variant: zone}, now.Add(-2*time.Hour), now)
	if err != nil || !ok {
		return model.DataPoint{}, err
	}
	samples := frame.Samples
	if len(samples) < 2 {
		return model.DataPoint{Value: model.Boolean(false), Timestamp: now}, nil
	}
	last := samples[len(samples)-1]
	prev := samples[len(samples)-2]
	rising := last.Value > prev.Value
	return model.DataPoint{Value: model.Boolean(rising), Timestamp: last.Timestamp}, nil
}

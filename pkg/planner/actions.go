package planner

import (
	"context"
	"time"

	"github.com/hausbrain/core/pkg/model"
)

// SimpleRule lifts a single command and a boolean precondition to an
// Action: Execute iff Precondition holds.
type SimpleRule struct {
	ID            model.ExtID
	Precondition  func(model.Snapshot) bool
	Command       func(model.Snapshot) model.Command
}

func (r SimpleRule) ExtID() model.ExtID { return r.ID }

func (r SimpleRule) Evaluate(_ context.Context, pc Context) (EvaluationResult, error) {
	if !r.Precondition(pc.Snapshot) {
		return Skip(), nil
	}
	return Execute(r.Command(pc.Snapshot)), nil
}

// FollowDefault emits the "default resting" command for a target whenever
// no other rule has claimed it, e.g. SetPower(off) or ControlFan(off).
type FollowDefault struct {
	ID      model.ExtID
	Default func() model.Command
}

func (d FollowDefault) ExtID() model.ExtID { return d.ID }

func (d FollowDefault) Evaluate(_ context.Context, _ Context) (EvaluationResult, error) {
	return Execute(d.Default()), nil
}

// UserTriggerAction emits the mapped command for the latest trigger
// targeting Target, if it is still within ValidFor of its timestamp.
type UserTriggerAction struct {
	ID      model.ExtID
	Target  model.TriggerTarget
	ValidFor time.Duration
	Map     func(model.TriggerRecord) model.Command
}

func (u UserTriggerAction) ExtID() model.ExtID { return u.ID }

func (u UserTriggerAction) Evaluate(_ context.Context, pc Context) (EvaluationResult, error) {
	trig, ok := pc.LatestTrigger(u.Target)
	if !ok {
		return Skip(), nil
	}
	if pc.Now().Sub(trig.Timestamp) > u.ValidFor {
		return Skip(), nil
	}
	return ExecuteTrigger(trig.ID, u.Map(trig)), nil
}

// RadiatorDemand is one radiator's setpoint range and demand-limit range
// within a zone managed by FollowTargetHeatingDemand.
type RadiatorDemand struct {
	Device       string
	MinSetpoint  float64
	MaxSetpoint  float64
	DemandLow    float64
	DemandHigh   float64
}

// FollowTargetHeatingDemand reads per-radiator target setpoint-range and
// demand-limit-range and emits one SetHeating per radiator; it uses
// ExecuteTrigger when the zone is in manual mode so the triggering intent
// stays pinned.
type FollowTargetHeatingDemand struct {
	ID         model.ExtID
	Zone       string
	ZoneManual model.TriggerTarget
	Radiators  []RadiatorDemand
	Demand     func(model.Snapshot) float64 // current heating demand 0-100
}

func (f FollowTargetHeatingDemand) ExtID() model.ExtID { return f.ID }

func (f FollowTargetHeatingDemand) Evaluate(_ context.Context, pc Context) (EvaluationResult, error) {
	demand := f.Demand(pc.Snapshot)
	commands := make([]model.Command, 0, len(f.Radiators))
	for _, r := range f.Radiators {
		temp := r.MinSetpoint
		if demand >= r.DemandHigh {
			temp = r.MaxSetpoint
		} else if demand > r.DemandLow {
			span := r.DemandHigh - r.DemandLow
			frac := (demand - r.DemandLow) / span
			temp = r.MinSetpoint + frac*(r.MaxSetpoint-r.MinSetpoint)
		}
		commands = append(commands, model.NewSetHeating(r.Device, model.HeatingTargetHeat(temp, false)))
	}

	if trig, ok := pc.LatestTrigger(f.ZoneManual); ok && pc.Now().Sub(trig.Timestamp) < 24*time.Hour {
		return ExecuteTrigger(trig.ID, commands...), nil
	}
	return Execute(commands...), nil
}

// AutoTurnOff emits SetPower(device, off) iff the device has been
// continuously powered for longer than Threshold.
type AutoTurnOff struct {
	ID                  model.ExtID
	Device              string
	Threshold           time.Duration
	ContinuouslyPowered func() (time.Time, bool)
}

func (a AutoTurnOff) ExtID() model.ExtID { return a.ID }

func (a AutoTurnOff) Evaluate(_ context.Context, pc Context) (EvaluationResult, error) {
	since, on := a.ContinuouslyPowered()
	if !on {
		return Skip(), nil
	}
	if pc.Now().Sub(since) <= a.Threshold {
		return Skip(), nil
	}
	return Execute(model.NewSetPower(a.Device, false)), nil
}

// InformWindowOpen — (added) a PushNotify action gated on Opened being true
// for longer than Threshold.
type InformWindowOpen struct {
	ID           model.ExtID
	Compound     model.Channel
	Recipient    string
	Notification string
	Threshold    time.Duration
	OpenedSince  func() (time.Time, bool)
}

func (w InformWindowOpen) ExtID() model.ExtID { return w.ID }

func (w InformWindowOpen) Evaluate(_ context.Context, pc Context) (EvaluationResult, error) {
	opened := pc.Snapshot.Bool(w.Compound)
	if !opened {
		return Skip(), nil
	}
	since, ok := w.OpenedSince()
	if !ok || pc.Now().Sub(since) < w.Threshold {
		return Skip(), nil
	}
	return Execute(model.NewPushNotify(w.Recipient, w.Notification, model.NotifyShow)), nil
}

// ReduceNoiseAtNight — (added) a time-of-day SimpleRule gating ControlFan to
// a quiet speed.
type ReduceNoiseAtNight struct {
	ID         model.ExtID
	Device     string
	QuietSpeed model.FanSpeed
	StartHour  int
	EndHour    int
	NowHour    func() int
}

func (r ReduceNoiseAtNight) ExtID() model.ExtID { return r.ID }

func (r ReduceNoiseAtNight) Evaluate(_ context.Context, _ Context) (EvaluationResult, error) {
	hour := r.NowHour()
	inWindow := false
	if r.StartHour <= r.EndHour {
		inWindow = hour >= r.StartHour && hour < r.EndHour
	} else {
		inWindow = hour >= r.StartHour || hour < r.EndHour
	}
	if !inWindow {
		return Skip(), nil
	}
	return Execute(model.NewControlFan(r.Device, model.FanForward(r.QuietSpeed))), nil
}

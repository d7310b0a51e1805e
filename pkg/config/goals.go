// Package config is the static (goal, [action]) registry: a list of
// ordered action rules per goal, built once per planning cycle, plus the
// active-goals predicate that filters which goals contribute to a given
// cycle's snapshot. A static Go-literal table rather than a YAML-loaded
// one, since loading configuration from a file is itself out of scope
// (only the registry's shape is carried).
//
// Every concrete goal below mirrors a default home-automation configuration's
// entries, rebuilt from this module's generic Action kinds (pkg/planner)
// instead of per-goal bespoke types.
package config

import (
	"time"

	"github.com/hausbrain/core/pkg/model"
	"github.com/hausbrain/core/pkg/planner"
)

// Goal names a declared objective; goal-ids double as the planning trace's
// goal-id field.
type Goal string

const (
	GoalSmarterHeatingLivingRoom    Goal = "SmarterHeating::LivingRoom"
	GoalSmarterHeatingBedroom       Goal = "SmarterHeating::Bedroom"
	GoalBetterRoomClimateLivingRoom Goal = "BetterRoomClimate::LivingRoom"
	GoalStayInformed                Goal = "StayInformed"
	GoalPreventMouldInBathroom      Goal = "PreventMouldInBathroom"
	GoalTvControl                   Goal = "TvControl"
	GoalResetToDefaultSettings      Goal = "ResetToDefaultSettings"
)

// Entry is one (goal, actions) pair, in the order its actions are
// evaluated and lock resources.
type Entry struct {
	Goal    Goal
	Actions []planner.Action
}

// ActiveGoals decides which goals contribute to a cycle, given its
// snapshot.
type ActiveGoals func(snapshot model.Snapshot) []Goal

// AllGoalsActive is the default predicate: every declared goal is always
// active. None of the goals below condition their own participation on
// the snapshot — they condition individual actions instead, through each
// action's own precondition. A goal that should only sometimes contribute
// (e.g. suspended while away) would be filtered out here.
func AllGoalsActive(goals []Goal) ActiveGoals {
	return func(model.Snapshot) []Goal { return goals }
}

func init() {
	// HeatingDemandLimit is an externally-set per-zone demand figure
	// (0-100), fed in by an inbound adapter the same way Temperature or
	// Occupancy readings are — unlike HeatingDemand (a reflected
	// HeatingTarget), it is never computed by the derivation engine.
	model.RegisterChannelKind("HeatingDemandLimit", model.KindQuantity)
}

// channel is a small constructor to keep the table below readable.
func channel(typ, variant string) model.Channel { return model.Channel{Type: typ, Variant: variant} }

func trigger(group, name string) model.TriggerTarget { return model.TriggerTarget{Group: group, Name: name} }

// unixSeconds reads an epoch-seconds quantity channel and converts it to
// time.Time — the representation cmd/homecore's buildSnapshot uses for the
// engine's since-timestamps (ContinuouslyPoweredSince, WindowOpenDuration)
// so they can live in
// the same flat Snapshot map as every other derived value.
func unixSeconds(snapshot model.Snapshot, ch model.Channel) (time.Time, bool) {
	secs, ok := snapshot.Float(ch)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(secs), 0).UTC(), true
}

// DefaultEntries is the declared (goal, actions) table. now is threaded
// into actions that need the wall-clock hour (ReduceNoiseAtNight) without
// depending on planner.Context's own Now func, since entries are built
// once per cycle alongside the snapshot, before PlanAndExecute starts.
func DefaultEntries(snapshot model.Snapshot, now func() time.Time) []Entry {
	return []Entry{
		{
			Goal: GoalSmarterHeatingLivingRoom,
			Actions: []planner.Action{
				planner.SimpleRule{
					ID:           model.ExtID{Type: "NoHeatingDuringVentilation", Variant: "LivingRoom"},
					Precondition: func(s model.Snapshot) bool { return s.Bool(channel("RadiatorWindowOpen", "LivingRoomThermostat")) },
					Command:      func(model.Snapshot) model.Command { return model.NewSetHeating("LivingRoomThermostat", model.HeatingTargetWindowOpen()) },
				},
				planner.SimpleRule{
					ID:           model.ExtID{Type: "NoHeatingDuringAutomaticTemperatureIncrease", Variant: "LivingRoom"},
					Precondition: func(s model.Snapshot) bool { return s.Bool(channel("AutomaticTemperatureIncrease", "LivingRoom")) },
					Command:      func(model.Snapshot) model.Command { return model.NewSetHeating("LivingRoomThermostat", model.HeatingTargetAuto()) },
				},
				planner.FollowTargetHeatingDemand{
					ID:         model.ExtID{Type: "FollowTargetHeatingDemand", Variant: "LivingRoom"},
					Zone:       "LivingRoom",
					ZoneManual: trigger("thermostat", "LivingRoomManualOverride"),
					Radiators: []planner.RadiatorDemand{
						{Device: "LivingRoomThermostat", MinSetpoint: 17, MaxSetpoint: 21, DemandLow: 10, DemandHigh: 80},
					},
					Demand: func(s model.Snapshot) float64 {
						v, _ := s.Float(channel("HeatingDemandLimit", "LivingRoom"))
						return v
					},
				},
			},
		},
		{
			Goal: GoalSmarterHeatingBedroom,
			Actions: []planner.Action{
				planner.UserTriggerAction{
					ID:       model.ExtID{Type: "UserTriggerAction", Variant: "InfraredHeaterPower"},
					Target:   trigger("homekit", "InfraredHeaterPower"),
					ValidFor: 2 * time.Minute,
					Map:      func(t model.TriggerRecord) model.Command { return model.NewSetPower("InfraredHeater", truthyPayload(t)) },
				},
				planner.AutoTurnOff{
					ID:        model.ExtID{Type: "AutoTurnOff", Variant: "InfraredHeater"},
					Device:    "InfraredHeater",
					Threshold: 90 * time.Minute,
					ContinuouslyPowered: func() (time.Time, bool) {
						return unixSeconds(snapshot, channel("ContinuouslyPoweredSince", "InfraredHeater"))
					},
				},
				planner.SimpleRule{
					ID:           model.ExtID{Type: "NoHeatingDuringVentilation", Variant: "Bedroom"},
					Precondition: func(s model.Snapshot) bool { return s.Bool(channel("RadiatorWindowOpen", "BedroomThermostat")) },
					Command:      func(model.Snapshot) model.Command { return model.NewSetHeating("BedroomThermostat", model.HeatingTargetWindowOpen()) },
				},
				planner.FollowTargetHeatingDemand{
					ID:         model.ExtID{Type: "FollowTargetHeatingDemand", Variant: "Bedroom"},
					Zone:       "Bedroom",
					ZoneManual: trigger("thermostat", "BedroomManualOverride"),
					Radiators: []planner.RadiatorDemand{
						{Device: "BedroomThermostat", MinSetpoint: 16, MaxSetpoint: 20, DemandLow: 10, DemandHigh: 80},
					},
					Demand: func(s model.Snapshot) float64 {
						v, _ := s.Float(channel("HeatingDemandLimit", "Bedroom"))
						return v
					},
				},
			},
		},
		{
			Goal: GoalBetterRoomClimateLivingRoom,
			Actions: []planner.Action{
				planner.UserTriggerAction{
					ID:       model.ExtID{Type: "UserTriggerAction", Variant: "LivingRoomCeilingFanSpeed"},
					Target:   trigger("homekit", "LivingRoomCeilingFanSpeed"),
					ValidFor: 10 * time.Minute,
					Map:      func(t model.TriggerRecord) model.Command { return model.NewControlFan("LivingRoomCeilingFan", fanSpeedPayload(t)) },
				},
				planner.ReduceNoiseAtNight{
					ID:         model.ExtID{Type: "ReduceNoiseAtNight", Variant: "LivingRoomCeilingFan"},
					Device:     "LivingRoomCeilingFan",
					QuietSpeed: model.SpeedLow,
					StartHour:  22,
					EndHour:    7,
					NowHour:    func() int { return now().Hour() },
				},
			},
		},
		{
			Goal: GoalStayInformed,
			Actions: []planner.Action{
				planner.InformWindowOpen{
					ID:           model.ExtID{Type: "InformWindowOpen", Variant: "Dennis"},
					Compound:     channel("Opened", "AnyWindow"),
					Recipient:    "Dennis",
					Notification: "WindowOpened",
					Threshold:    15 * time.Minute,
					OpenedSince:  func() (time.Time, bool) { return unixSeconds(snapshot, channel("WindowOpenDuration", "AnyWindow")) },
				},
				planner.InformWindowOpen{
					ID:           model.ExtID{Type: "InformWindowOpen", Variant: "Sabine"},
					Compound:     channel("Opened", "AnyWindow"),
					Recipient:    "Sabine",
					Notification: "WindowOpened",
					Threshold:    15 * time.Minute,
					OpenedSince:  func() (time.Time, bool) { return unixSeconds(snapshot, channel("WindowOpenDuration", "AnyWindow")) },
				},
			},
		},
		{
			Goal: GoalPreventMouldInBathroom,
			Actions: []planner.Action{
				planner.UserTriggerAction{
					ID:       model.ExtID{Type: "UserTriggerAction", Variant: "DehumidifierPower"},
					Target:   trigger("homekit", "DehumidifierPower"),
					ValidFor: 2 * time.Minute,
					Map:      func(t model.TriggerRecord) model.Command { return model.NewSetPower("Dehumidifier", truthyPayload(t)) },
				},
				planner.SimpleRule{
					ID: model.ExtID{Type: "Dehumidify", Variant: "Bathroom"},
					Precondition: func(s model.Snapshot) bool {
						return s.Bool(channel("RiskOfMould", "Bathroom")) && !s.Bool(channel("Powered", "Dehumidifier"))
					},
					Command: func(model.Snapshot) model.Command { return model.NewSetPower("Dehumidifier", true) },
				},
				planner.ReduceNoiseAtNight{
					ID:         model.ExtID{Type: "ReduceNoiseAtNight", Variant: "Dehumidifier"},
					Device:     "Dehumidifier",
					QuietSpeed: model.SpeedSilent,
					StartHour:  22,
					EndHour:    12,
					NowHour:    func() int { return now().Hour() },
				},
			},
		},
		{
			Goal: GoalTvControl,
			Actions: []planner.Action{
				planner.UserTriggerAction{
					ID:       model.ExtID{Type: "UserTriggerAction", Variant: "LivingRoomTvEnergySaving"},
					Target:   trigger("homekit", "LivingRoomTvEnergySaving"),
					ValidFor: 10 * time.Minute,
					Map:      func(t model.TriggerRecord) model.Command { return model.NewSetEnergySaving("LivingRoomTv", truthyPayload(t)) },
				},
				planner.FollowDefault{
					ID:      model.ExtID{Type: "FollowDefaultSetting", Variant: "LivingRoomTv"},
					Default: func() model.Command { return model.NewSetEnergySaving("LivingRoomTv", false) },
				},
			},
		},
		{
			Goal: GoalResetToDefaultSettings,
			Actions: []planner.Action{
				planner.FollowDefault{ID: model.ExtID{Type: "FollowDefaultSetting", Variant: "Dehumidifier"}, Default: func() model.Command { return model.NewSetPower("Dehumidifier", false) }},
				planner.FollowDefault{ID: model.ExtID{Type: "FollowDefaultSetting", Variant: "InfraredHeater"}, Default: func() model.Command { return model.NewSetPower("InfraredHeater", false) }},
				planner.FollowDefault{ID: model.ExtID{Type: "FollowDefaultSetting", Variant: "LivingRoomThermostat"}, Default: func() model.Command { return model.NewSetHeating("LivingRoomThermostat", model.HeatingTargetAuto()) }},
				planner.FollowDefault{ID: model.ExtID{Type: "FollowDefaultSetting", Variant: "BedroomThermostat"}, Default: func() model.Command { return model.NewSetHeating("BedroomThermostat", model.HeatingTargetAuto()) }},
				planner.FollowDefault{ID: model.ExtID{Type: "FollowDefaultSetting", Variant: "LivingRoomCeilingFan"}, Default: func() model.Command { return model.NewControlFan("LivingRoomCeilingFan", model.FanOff()) }},
			},
		},
	}
}

// Goals returns the declared order of every goal-id in DefaultEntries,
// for use with AllGoalsActive.
func Goals() []Goal {
	return []Goal{
		GoalSmarterHeatingLivingRoom,
		GoalSmarterHeatingBedroom,
		GoalBetterRoomClimateLivingRoom,
		GoalStayInformed,
		GoalPreventMouldInBathroom,
		GoalTvControl,
		GoalResetToDefaultSettings,
	}
}

// BuildTasks flattens the declared (goal, actions) table into planner.Task
// values, stamping each with whether its goal is active in this cycle.
func BuildTasks(entries []Entry, active ActiveGoals, snapshot model.Snapshot) []planner.Task {
	activeSet := make(map[Goal]bool)
	for _, g := range active(snapshot) {
		activeSet[g] = true
	}

	var tasks []planner.Task
	for _, e := range entries {
		for _, a := range e.Actions {
			tasks = append(tasks, planner.Task{
				GoalID:     string(e.Goal),
				GoalActive: activeSet[e.Goal],
				Action:     a,
			})
		}
	}
	return tasks
}

// truthyPayload reads a trigger's boolean "on" field, defaulting to true —
// most button-style HomeKit triggers carry no payload at all and mean
// "toggle to the pressed state".
func truthyPayload(t model.TriggerRecord) bool {
	v, ok := t.Trigger.Payload["on"]
	if !ok {
		return true
	}
	b, _ := v.(bool)
	return b
}

// fanSpeedPayload reads a trigger's numeric "speed" field into a forward
// FanAirflow, defaulting to Medium if absent or malformed.
func fanSpeedPayload(t model.TriggerRecord) model.FanAirflow {
	speed := model.SpeedMedium
	if v, ok := t.Trigger.Payload["speed"]; ok {
		if f, ok := v.(float64); ok {
			speed = model.FanSpeed(f)
		}
	}
	return model.FanForward(speed)
}

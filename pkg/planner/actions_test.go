package planner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausbrain/core/pkg/model"
	"github.com/hausbrain/core/pkg/planner"
)

func TestSimpleRuleSkipsWhenPreconditionFalse(t *testing.T) {
	rule := planner.SimpleRule{
		ID:           model.ExtID{Type: "SimpleRule", Variant: "Test"},
		Precondition: func(model.Snapshot) bool { return false },
		Command:      func(model.Snapshot) model.Command { return model.NewSetPower("Dehumidifier", true) },
	}
	result, err := rule.Evaluate(context.Background(), planner.Context{})
	require.NoError(t, err)
	assert.Equal(t, planner.ResultSkip, result.Kind)
}

func TestSimpleRuleExecutesWhenPreconditionTrue(t *testing.T) {
	rule := planner.SimpleRule{
		ID:           model.ExtID{Type: "SimpleRule", Variant: "Test"},
		Precondition: func(model.Snapshot) bool { return true },
		Command:      func(model.Snapshot) model.Command { return model.NewSetPower("Dehumidifier", true) },
	}
	result, err := rule.Evaluate(context.Background(), planner.Context{})
	require.NoError(t, err)
	require.Equal(t, planner.ResultExecute, result.Kind)
	assert.Len(t, result.Commands, 1)
}

func TestUserTriggerActionSkipsWhenNoTrigger(t *testing.T) {
	action := planner.UserTriggerAction{
		ID:       model.ExtID{Type: "UserTriggerAction", Variant: "Test"},
		Target:   model.TriggerTarget{Group: "homekit", Name: "DehumidifierPower"},
		ValidFor: time.Minute,
		Map:      func(model.TriggerRecord) model.Command { return model.NewSetPower("Dehumidifier", true) },
	}
	pc := planner.Context{Now: time.Now, LatestTrigger: noTrigger}
	result, err := action.Evaluate(context.Background(), pc)
	require.NoError(t, err)
	assert.Equal(t, planner.ResultSkip, result.Kind)
}

func TestUserTriggerActionSkipsWhenExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	action := planner.UserTriggerAction{
		ID:       model.ExtID{Type: "UserTriggerAction", Variant: "Test"},
		Target:   model.TriggerTarget{Group: "homekit", Name: "DehumidifierPower"},
		ValidFor: time.Minute,
		Map:      func(model.TriggerRecord) model.Command { return model.NewSetPower("Dehumidifier", true) },
	}
	pc := planner.Context{
		Now: func() time.Time { return now },
		LatestTrigger: func(model.TriggerTarget) (model.TriggerRecord, bool) {
			return model.TriggerRecord{ID: 1, Timestamp: now.Add(-5 * time.Minute)}, true
		},
	}
	result, err := action.Evaluate(context.Background(), pc)
	require.NoError(t, err)
	assert.Equal(t, planner.ResultSkip, result.Kind)
}

func TestUserTriggerActionExecutesWithinValidity(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	action := planner.UserTriggerAction{
		ID:       model.ExtID{Type: "UserTriggerAction", Variant: "Test"},
		Target:   model.TriggerTarget{Group: "homekit", Name: "DehumidifierPower"},
		ValidFor: time.Minute,
		Map:      func(model.TriggerRecord) model.Command { return model.NewSetPower("Dehumidifier", true) },
	}
	pc := planner.Context{
		Now: func() time.Time { return now },
		LatestTrigger: func(model.TriggerTarget) (model.TriggerRecord, bool) {
			return model.TriggerRecord{ID: 9, Timestamp: now.Add(-10 * time.Second)}, true
		},
	}
	result, err := action.Evaluate(context.Background(), pc)
	require.NoError(t, err)
	require.Equal(t, planner.ResultExecuteTrigger, result.Kind)
	require.NotNil(t, result.UserTriggerID)
	assert.Equal(t, int64(9), *result.UserTriggerID)
}

func TestFollowTargetHeatingDemandInterpolatesBetweenSetpoints(t *testing.T) {
	action := planner.FollowTargetHeatingDemand{
		ID:         model.ExtID{Type: "FollowTargetHeatingDemand", Variant: "LivingRoom"},
		Zone:       "LivingRoom",
		ZoneManual: model.TriggerTarget{Group: "thermostat", Name: "LivingRoomManualOverride"},
		Radiators: []planner.RadiatorDemand{
			{Device: "LivingRoomThermostat", MinSetpoint: 17, MaxSetpoint: 21, DemandLow: 10, DemandHigh: 90},
		},
		Demand: func(model.Snapshot) float64 { return 50 },
	}
	pc := planner.Context{Now: time.Now, LatestTrigger: noTrigger}
	result, err := action.Evaluate(context.Background(), pc)
	require.NoError(t, err)
	require.Equal(t, planner.ResultExecute, result.Kind)
	require.Len(t, result.Commands, 1)

	payload := result.Commands[0].Payload
	temp, ok := payload["temperature"].(float64)
	require.True(t, ok)
	assert.InDelta(t, 19.0, temp, 0.01)
}

func TestFollowTargetHeatingDemandBelowLowClampsToMin(t *testing.T) {
	action := planner.FollowTargetHeatingDemand{
		ID:   model.ExtID{Type: "FollowTargetHeatingDemand", Variant: "Bedroom"},
		Zone: "Bedroom",
		Radiators: []planner.RadiatorDemand{
			{Device: "BedroomThermostat", MinSetpoint: 16, MaxSetpoint: 20, DemandLow: 10, DemandHigh: 80},
		},
		Demand: func(model.Snapshot) float64 { return 5 },
	}
	pc := planner.Context{Now: time.Now, LatestTrigger: noTrigger}
	result, err := action.Evaluate(context.Background(), pc)
	require.NoError(t, err)
	temp := result.Commands[0].Payload["temperature"].(float64)
	assert.Equal(t, 16.0, temp)
}

func TestFollowTargetHeatingDemandUsesTriggerWhenZoneManual(t *testing.T) {
	now := time.Now()
	action := planner.FollowTargetHeatingDemand{
		ID:         model.ExtID{Type: "FollowTargetHeatingDemand", Variant: "LivingRoom"},
		Zone:       "LivingRoom",
		ZoneManual: model.TriggerTarget{Group: "thermostat", Name: "LivingRoomManualOverride"},
		Radiators: []planner.RadiatorDemand{
			{Device: "LivingRoomThermostat", MinSetpoint: 17, MaxSetpoint: 21, DemandLow: 10, DemandHigh: 90},
		},
		Demand: func(model.Snapshot) float64 { return 50 },
	}
	pc := planner.Context{
		Now: func() time.Time { return now },
		LatestTrigger: func(target model.TriggerTarget) (model.TriggerRecord, bool) {
			return model.TriggerRecord{ID: 3, Timestamp: now.Add(-time.Hour)}, true
		},
	}
	result, err := action.Evaluate(context.Background(), pc)
	require.NoError(t, err)
	require.Equal(t, planner.ResultExecuteTrigger, result.Kind)
	require.NotNil(t, result.UserTriggerID)
	assert.Equal(t, int64(3), *result.UserTriggerID)
}

func TestAutoTurnOffSkipsWhenDeviceOff(t *testing.T) {
	action := planner.AutoTurnOff{
		ID:                  model.ExtID{Type: "AutoTurnOff", Variant: "InfraredHeater"},
		Device:              "InfraredHeater",
		Threshold:           time.Hour,
		ContinuouslyPowered: func() (time.Time, bool) { return time.Time{}, false },
	}
	result, err := action.Evaluate(context.Background(), planner.Context{Now: time.Now})
	require.NoError(t, err)
	assert.Equal(t, planner.ResultSkip, result.Kind)
}

func TestAutoTurnOffSkipsBelowThreshold(t *testing.T) {
	now := time.Now()
	action := planner.AutoTurnOff{
		ID:                  model.ExtID{Type: "AutoTurnOff", Variant: "InfraredHeater"},
		Device:              "InfraredHeater",
		Threshold:           time.Hour,
		ContinuouslyPowered: func() (time.Time, bool) { return now.Add(-30 * time.Minute), true },
	}
	result, err := action.Evaluate(context.Background(), planner.Context{Now: func() time.Time { return now }})
	require.NoError(t, err)
	assert.Equal(t, planner.ResultSkip, result.Kind)
}

func TestAutoTurnOffFiresPastThreshold(t *testing.T) {
	now := time.Now()
	action := planner.AutoTurnOff{
		ID:                  model.ExtID{Type: "AutoTurnOff", Variant: "InfraredHeater"},
		Device:              "InfraredHeater",
		Threshold:           time.Hour,
		ContinuouslyPowered: func() (time.Time, bool) { return now.Add(-90 * time.Minute), true },
	}
	result, err := action.Evaluate(context.Background(), planner.Context{Now: func() time.Time { return now }})
	require.NoError(t, err)
	require.Equal(t, planner.ResultExecute, result.Kind)
	assert.False(t, result.Commands[0].Payload["on"].(bool))
}

func TestInformWindowOpenSkipsBelowThreshold(t *testing.T) {
	now := time.Now()
	ch := model.Channel{Type: "Opened", Variant: "AnyWindow"}
	snapshot := model.NewSnapshot(map[model.Channel]model.DataPoint{ch: {Value: model.Boolean(true)}})
	action := planner.InformWindowOpen{
		ID:           model.ExtID{Type: "InformWindowOpen", Variant: "Dennis"},
		Compound:     ch,
		Recipient:    "Dennis",
		Notification: "WindowOpened",
		Threshold:    15 * time.Minute,
		OpenedSince:  func() (time.Time, bool) { return now.Add(-5 * time.Minute), true },
	}
	pc := planner.Context{Snapshot: snapshot, Now: func() time.Time { return now }}
	result, err := action.Evaluate(context.Background(), pc)
	require.NoError(t, err)
	assert.Equal(t, planner.ResultSkip, result.Kind)
}

func TestInformWindowOpenFiresPastThreshold(t *testing.T) {
	now := time.Now()
	ch := model.Channel{Type: "Opened", Variant: "AnyWindow"}
	snapshot := model.NewSnapshot(map[model.Channel]model.DataPoint{ch: {Value: model.Boolean(true)}})
	action := planner.InformWindowOpen{
		ID:           model.ExtID{Type: "InformWindowOpen", Variant: "Dennis"},
		Compound:     ch,
		Recipient:    "Dennis",
		Notification: "WindowOpened",
		Threshold:    15 * time.Minute,
		OpenedSince:  func() (time.Time, bool) { return now.Add(-20 * time.Minute), true },
	}
	pc := planner.Context{Snapshot: snapshot, Now: func() time.Time { return now }}
	result, err := action.Evaluate(context.Background(), pc)
	require.NoError(t, err)
	require.Equal(t, planner.ResultExecute, result.Kind)
}

func TestReduceNoiseAtNightWrapsMidnight(t *testing.T) {
	action := planner.ReduceNoiseAtNight{
		ID:         model.ExtID{Type: "ReduceNoiseAtNight", Variant: "Dehumidifier"},
		Device:     "Dehumidifier",
		QuietSpeed: model.SpeedSilent,
		StartHour:  22,
		EndHour:    12,
		NowHour:    func() int { return 2 },
	}
	result, err := action.Evaluate(context.Background(), planner.Context{})
	require.NoError(t, err)
	assert.Equal(t, planner.ResultExecute, result.Kind)
}

func TestReduceNoiseAtNightSkipsOutsideWindow(t *testing.T) {
	action := planner.ReduceNoiseAtNight{
		ID:         model.ExtID{Type: "ReduceNoiseAtNight", Variant: "Dehumidifier"},
		Device:     "Dehumidifier",
		QuietSpeed: model.SpeedSilent,
		StartHour:  22,
		EndHour:    12,
		NowHour:    func() int { return 15 },
	}
	result, err := action.Evaluate(context.Background(), planner.Context{})
	require.NoError(t, err)
	assert.Equal(t, planner.ResultSkip, result.Kind)
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hausbrain/core/pkg/model"
)

func TestTruthyPayloadDefaultsTrueWhenAbsent(t *testing.T) {
	trig := model.NewUserTrigger("homekit", "DehumidifierPower", nil)
	rec := model.TriggerRecord{Trigger: trig}
	assert.True(t, truthyPayload(rec))
}

func TestTruthyPayloadReadsOnField(t *testing.T) {
	trig := model.NewUserTrigger("homekit", "DehumidifierPower", map[string]any{"on": false})
	rec := model.TriggerRecord{Trigger: trig}
	assert.False(t, truthyPayload(rec))
}

func TestFanSpeedPayloadDefaultsMediumWhenAbsent(t *testing.T) {
	trig := model.NewUserTrigger("homekit", "LivingRoomCeilingFanSpeed", nil)
	rec := model.TriggerRecord{Trigger: trig}
	got := fanSpeedPayload(rec)
	assert.Equal(t, model.FanForward(model.SpeedMedium), got)
}

func TestFanSpeedPayloadReadsSpeedField(t *testing.T) {
	trig := model.NewUserTrigger("homekit", "LivingRoomCeilingFanSpeed", map[string]any{"speed": float64(model.SpeedHigh)})
	rec := model.TriggerRecord{Trigger: trig}
	got := fanSpeedPayload(rec)
	assert.Equal(t, model.FanForward(model.SpeedHigh), got)
}

func TestUnixSecondsRoundTripsThroughSnapshot(t *testing.T) {
	ch := model.Channel{Type: "ContinuouslyPoweredSince", Variant: "InfraredHeater"}
	now := model.Quantity(1700000000)
	snapshot := model.NewSnapshot(map[model.Channel]model.DataPoint{ch: {Value: now}})

	ts, ok := unixSeconds(snapshot, ch)
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000), ts.Unix())
}

func TestUnixSecondsMissingChannel(t *testing.T) {
	snapshot := model.NewSnapshot(nil)
	_, ok := unixSeconds(snapshot, model.Channel{Type: "ContinuouslyPoweredSince", Variant: "Nobody"})
	assert.False(t, ok)
}

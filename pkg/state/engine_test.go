package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausbrain/core/pkg/commandlog"
	"github.com/hausbrain/core/pkg/model"
)

type fakeTags struct {
	ids map[model.Channel]int64
}

func (f *fakeTags) TagID(_ context.Context, ch model.Channel, _ bool) (int64, error) {
	id, ok := f.ids[ch]
	if !ok {
		return 0, assert.AnError
	}
	return id, nil
}

type fakeFrames struct {
	frames map[int64]model.Frame
}

func (f *fakeFrames) GetDataframe(_ context.Context, tagID int64, t0, t1 time.Time) (model.Frame, error) {
	frame := f.frames[tagID]
	out := model.Frame{TagID: tagID}
	for _, s := range frame.Samples {
		if !s.Timestamp.Before(t0) && !s.Timestamp.After(t1) {
			out.Samples = append(out.Samples, s)
		}
	}
	return out, nil
}

type fakeCommands struct {
	execs map[model.CommandTarget]model.CommandExecution
}

func (f *fakeCommands) MostRecent(_ context.Context, target model.CommandTarget, _ time.Time) (model.CommandExecution, error) {
	e, ok := f.execs[target]
	if !ok {
		return model.CommandExecution{}, commandlog.ErrNotFound
	}
	return e, nil
}

func newFixtureEngine(now time.Time) (*Engine, *fakeTags, *fakeFrames, *fakeCommands) {
	tags := &fakeTags{ids: map[model.Channel]int64{}}
	frames := &fakeFrames{frames: map[int64]model.Frame{}}
	cmds := &fakeCommands{execs: map[model.CommandTarget]model.CommandExecution{}}
	e := New(tags, frames, cmds, func() time.Time { return now })
	return e, tags, frames, cmds
}

func seed(tags *fakeTags, frames *fakeFrames, ch model.Channel, id int64, samples ...model.Sample) {
	tags.ids[ch] = id
	frames.frames[id] = model.Frame{TagID: id, Samples: samples}
}

// Scenario 1 — Risk of mould drives dehumidifier.
func TestRiskOfMouldScenario1(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e, tags, frames, _ := newFixtureEngine(now)

	seed(tags, frames, model.Channel{Type: "Humidity", Variant: "BathroomShower"}, 1,
		model.Sample{Value: 75, Timestamp: now})
	seed(tags, frames, model.Channel{Type: "Temperature", Variant: "BathroomShower"}, 2,
		model.Sample{Value: 22, Timestamp: now})
	seed(tags, frames, model.Channel{Type: "Dewpoint", Variant: "LivingRoom"}, 3,
		model.Sample{Value: 12, Timestamp: now.Add(-time.Hour)})
	seed(tags, frames, model.Channel{Type: "Dewpoint", Variant: "RoomOfReq"}, 4,
		model.Sample{Value: 12, Timestamp: now.Add(-time.Hour)})

	dp, err := e.Dewpoint(context.Background(), "BathroomShower")
	require.NoError(t, err)
	assert.InDelta(t, 17.4, float64(dp.Value.(model.Temperature)), 0.2)

	risk, err := e.RiskOfMould(context.Background(), "BathroomShower", []string{"LivingRoom", "RoomOfReq"})
	require.NoError(t, err)
	assert.Equal(t, model.Boolean(true), risk.Value)
}

func TestOccupancyRisesWithRecentPresence(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e, tags, frames, _ := newFixtureEngine(now)

	seed(tags, frames, model.Channel{Type: "Presence", Variant: "Office"}, 1,
		model.Sample{Value: 1, Timestamp: now.Add(-5 * time.Minute)},
		model.Sample{Value: 1, Timestamp: now.Add(-1 * time.Minute)})

	withPresence, err := e.Occupancy(context.Background(), "Office", DefaultOccupancyParams())
	require.NoError(t, err)

	tags2, frames2 := tags, frames
	tags2.ids[model.Channel{Type: "Presence", Variant: "Empty"}] = 2
	frames2.frames[2] = model.Frame{TagID: 2}
	empty, err := e.Occupancy(context.Background(), "Empty", DefaultOccupancyParams())
	require.NoError(t, err)

	assert.Greater(t, float64(withPresence.Value.(model.Quantity)), float64(empty.Value.(model.Quantity)))
}

func TestUserControlledThermostatNoCommandMirrorsAutoMode(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e, tags, frames, _ := newFixtureEngine(now)

	seed(tags, frames, model.Channel{Type: "ThermostatAutoMode", Variant: "Bedroom"}, 1,
		model.Sample{Value: 0, Timestamp: now.Add(-time.Hour)})
	seed(tags, frames, model.Channel{Type: "ThermostatSetpoint", Variant: "Bedroom"}, 2,
		model.Sample{Value: 21, Timestamp: now.Add(-time.Hour)})

	dp, err := e.UserControlledThermostat(context.Background(), "Bedroom")
	require.NoError(t, err)
	assert.Equal(t, model.Boolean(true), dp.Value)
}

func TestUserControlledThermostatCommandNotYetReflected(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e, tags, frames, cmds := newFixtureEngine(now)

	seed(tags, frames, model.Channel{Type: "ThermostatAutoMode", Variant: "Bedroom"}, 1,
		model.Sample{Value: 0, Timestamp: now.Add(-time.Hour)})
	seed(tags, frames, model.Channel{Type: "ThermostatSetpoint", Variant: "Bedroom"}, 2,
		model.Sample{Value: 21, Timestamp: now.Add(-time.Hour)})

	target := model.CommandTarget{Kind: model.KindSetHeating, Device: "Bedroom"}
	cmds.execs[target] = model.CommandExecution{
		Command:   model.NewSetHeating("Bedroom", model.HeatingTargetHeat(22, false)),
		CreatedAt: now.Add(-time.Minute),
		Source:    model.UserSource("homekit", "bedroom-thermostat"),
	}

	dp, err := e.UserControlledThermostat(context.Background(), "Bedroom")
	require.NoError(t, err)
	assert.Equal(t, model.Boolean(true), dp.Value)
}

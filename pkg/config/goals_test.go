package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausbrain/core/pkg/config"
	"github.com/hausbrain/core/pkg/model"
	"github.com/hausbrain/core/pkg/planner"
)

func TestGoalsCoversEveryDefaultEntry(t *testing.T) {
	snapshot := model.NewSnapshot(nil)
	entries := config.DefaultEntries(snapshot, time.Now)

	declared := make(map[config.Goal]bool)
	for _, g := range config.Goals() {
		declared[g] = true
	}
	for _, e := range entries {
		assert.True(t, declared[e.Goal], "entry goal %q missing from Goals()", e.Goal)
		assert.NotEmpty(t, e.Actions)
	}
	assert.Len(t, config.Goals(), len(entries))
}

func TestAllGoalsActiveReturnsEveryGoal(t *testing.T) {
	active := config.AllGoalsActive(config.Goals())
	got := active(model.NewSnapshot(nil))
	assert.ElementsMatch(t, config.Goals(), got)
}

func TestBuildTasksStampsActiveFlag(t *testing.T) {
	snapshot := model.NewSnapshot(nil)
	entries := config.DefaultEntries(snapshot, time.Now)

	active := func(model.Snapshot) []config.Goal { return []config.Goal{config.GoalStayInformed} }
	tasks := config.BuildTasks(entries, active, snapshot)
	require.NotEmpty(t, tasks)

	var sawActive, sawInactive bool
	for _, task := range tasks {
		if task.GoalID == string(config.GoalStayInformed) {
			assert.True(t, task.GoalActive)
			sawActive = true
		} else {
			assert.False(t, task.GoalActive)
			sawInactive = true
		}
	}
	assert.True(t, sawActive)
	assert.True(t, sawInactive)
}

func TestFollowTargetHeatingDemandReadsHeatingDemandLimitChannel(t *testing.T) {
	points := map[model.Channel]model.DataPoint{
		{Type: "HeatingDemandLimit", Variant: "LivingRoom"}: {Value: model.Quantity(42), Timestamp: time.Now()},
	}
	snapshot := model.NewSnapshot(points)
	entries := config.DefaultEntries(snapshot, time.Now)

	var found bool
	var demand float64
	for _, e := range entries {
		if e.Goal != config.GoalSmarterHeatingLivingRoom {
			continue
		}
		for _, a := range e.Actions {
			found = true
			if f, ok := a.(planner.FollowTargetHeatingDemand); ok {
				demand = f.Demand(snapshot)
			}
		}
	}
	assert.True(t, found, "SmarterHeating::LivingRoom must declare at least one action")
	assert.Equal(t, 42.0, demand, "FollowTargetHeatingDemand must read HeatingDemandLimit::LivingRoom")

	v, ok := snapshot.Float(model.Channel{Type: "HeatingDemandLimit", Variant: "LivingRoom"})
	require.True(t, ok)
	assert.Equal(t, 42.0, v)
}

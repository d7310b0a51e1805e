package planner_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausbrain/core/pkg/model"
	"github.com/hausbrain/core/pkg/planner"
)

type fakeAction struct {
	id     model.ExtID
	result planner.EvaluationResult
	err    error
}

func (f fakeAction) ExtID() model.ExtID { return f.id }

func (f fakeAction) Evaluate(_ context.Context, _ planner.Context) (planner.EvaluationResult, error) {
	return f.result, f.err
}

type fakeExecutor struct {
	mu       sync.Mutex
	executed []model.Command
	fail     map[model.CommandTarget]bool
}

func (f *fakeExecutor) Execute(_ context.Context, cmd model.Command, _ model.Source, _ *int64, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[cmd.Target] {
		return false, errors.New("execute failed")
	}
	f.executed = append(f.executed, cmd)
	return true, nil
}

func noTrigger(model.TriggerTarget) (model.TriggerRecord, bool) { return model.TriggerRecord{}, false }

func TestPlanAndExecuteSkipsInactiveGoal(t *testing.T) {
	tasks := []planner.Task{
		{
			GoalID:     "SomeGoal",
			GoalActive: false,
			Action: fakeAction{
				id:     model.ExtID{Type: "SimpleRule", Variant: "X"},
				result: planner.Execute(model.NewSetPower("Dehumidifier", true)),
			},
		},
	}
	exec := &fakeExecutor{fail: map[model.CommandTarget]bool{}}
	now := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	result := planner.PlanAndExecute(context.Background(), tasks, model.NewSnapshot(nil), noTrigger, now, exec)

	require.Len(t, result.Trace.Steps, 1)
	assert.False(t, result.Trace.Steps[0].Fulfilled)
	assert.Empty(t, exec.executed)
}

func TestPlanAndExecuteLaterTaskLosesResourceConflict(t *testing.T) {
	cmd := model.NewSetPower("Dehumidifier", true)
	tasks := []planner.Task{
		{
			GoalID:     "First",
			GoalActive: true,
			Action: fakeAction{
				id:     model.ExtID{Type: "SimpleRule", Variant: "First"},
				result: planner.Execute(cmd),
			},
		},
		{
			GoalID:     "Second",
			GoalActive: true,
			Action: fakeAction{
				id:     model.ExtID{Type: "SimpleRule", Variant: "Second"},
				result: planner.Execute(cmd),
			},
		},
	}
	exec := &fakeExecutor{fail: map[model.CommandTarget]bool{}}
	now := func() time.Time { return time.Now() }

	result := planner.PlanAndExecute(context.Background(), tasks, model.NewSnapshot(nil), noTrigger, now, exec)

	require.Len(t, result.Trace.Steps, 2)
	assert.True(t, result.Trace.Steps[0].Fulfilled)
	assert.False(t, result.Trace.Steps[1].Fulfilled)
	assert.True(t, result.Trace.Steps[1].Locked)
	assert.Len(t, exec.executed, 1)
}

func TestPlanAndExecuteRecordsUsedTriggerEvenWhenLockedOut(t *testing.T) {
	cmd := model.NewSetPower("Dehumidifier", true)
	triggerID := int64(42)
	tasks := []planner.Task{
		{
			GoalID:     "First",
			GoalActive: true,
			Action: fakeAction{
				id:     model.ExtID{Type: "SimpleRule", Variant: "First"},
				result: planner.Execute(cmd),
			},
		},
		{
			GoalID:     "Second",
			GoalActive: true,
			Action: fakeAction{
				id:     model.ExtID{Type: "UserTriggerAction", Variant: "Second"},
				result: planner.ExecuteTrigger(triggerID, cmd),
			},
		},
	}
	exec := &fakeExecutor{fail: map[model.CommandTarget]bool{}}
	now := func() time.Time { return time.Now() }

	result := planner.PlanAndExecute(context.Background(), tasks, model.NewSnapshot(nil), noTrigger, now, exec)

	require.Len(t, result.UsedTriggerIDs, 1)
	assert.Equal(t, triggerID, result.UsedTriggerIDs[0])
	assert.True(t, result.Trace.Steps[1].Locked)
}

func TestPlanAndExecuteActionErrorDoesNotAbortCycle(t *testing.T) {
	tasks := []planner.Task{
		{
			GoalID:     "Failing",
			GoalActive: true,
			Action: fakeAction{
				id:  model.ExtID{Type: "SimpleRule", Variant: "Failing"},
				err: errors.New("derivation unavailable"),
			},
		},
		{
			GoalID:     "Healthy",
			GoalActive: true,
			Action: fakeAction{
				id:     model.ExtID{Type: "SimpleRule", Variant: "Healthy"},
				result: planner.Execute(model.NewSetPower("InfraredHeater", false)),
			},
		},
	}
	exec := &fakeExecutor{fail: map[model.CommandTarget]bool{}}
	now := func() time.Time { return time.Now() }

	result := planner.PlanAndExecute(context.Background(), tasks, model.NewSnapshot(nil), noTrigger, now, exec)

	require.Len(t, result.Trace.Steps, 2)
	assert.False(t, result.Trace.Steps[0].Fulfilled)
	assert.True(t, result.Trace.Steps[1].Fulfilled)
	assert.Len(t, exec.executed, 1)
}

func TestPlanAndExecuteExecutorFailureDoesNotMarkTriggered(t *testing.T) {
	cmd := model.NewSetPower("Dehumidifier", true)
	tasks := []planner.Task{
		{
			GoalID:     "Goal",
			GoalActive: true,
			Action: fakeAction{
				id:     model.ExtID{Type: "SimpleRule", Variant: "Goal"},
				result: planner.Execute(cmd),
			},
		},
	}
	exec := &fakeExecutor{fail: map[model.CommandTarget]bool{cmd.Target: true}}
	now := func() time.Time { return time.Now() }

	result := planner.PlanAndExecute(context.Background(), tasks, model.NewSnapshot(nil), noTrigger, now, exec)

	require.Len(t, result.Trace.Steps, 1)
	assert.True(t, result.Trace.Steps[0].Fulfilled)
	assert.False(t, result.Trace.Steps[0].Triggered)
}

package planner

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hausbrain/core/pkg/model"
)

// Executor is the command pipeline's intent-acceptance entry point, as seen
// by the planner. Execute returns whether the pipeline accepted (persisted)
// the command, or an error if the attempt itself failed (a transient
// data-access error, not a device-side rejection — those surface as
// Executor returning triggered=true with the error recorded downstream by
// the background dispatcher, not here).
type Executor interface {
	Execute(ctx context.Context, cmd model.Command, source model.Source, userTriggerID *int64, correlationID string) (triggered bool, err error)
}

// Task is one (goal, action) pair from the declared configuration, plus
// whether its goal is active in this cycle's snapshot.
type Task struct {
	GoalID     string
	GoalActive bool
	Action     Action
}

// Result is the outcome of one full planning cycle.
type Result struct {
	Trace          model.PlanningTrace
	UsedTriggerIDs []int64
}

// traceStep tracks a step's public fields plus the used-trigger-id
// bookkeeping that model.PlanningTraceStep itself has no need to carry.
type traceStep struct {
	model.PlanningTraceStep
	usedTriggerID *int64
}

// PlanAndExecute runs one planning cycle: it builds a resource-lock hand-off
// chain, evaluates every task concurrently, and sequences lock acquisition
// strictly in declared order via a chain of single-shot channels — task k's
// output channel is task k+1's input channel. One task erroring does not
// abort the others: the failing action is treated as Skip, so its step is
// recorded as not fulfilled, and the cycle still completes. The error
// itself is not stored in the trace.
func PlanAndExecute(
	ctx context.Context,
	tasks []Task,
	snapshot model.Snapshot,
	latestTrigger func(model.TriggerTarget) (model.TriggerRecord, bool),
	now func() time.Time,
	exec Executor,
) Result {
	n := len(tasks)
	steps := make([]traceStep, n)

	// chans[k] is task k's input; chans[k+1] is its output. Buffer 1 so a
	// sender never blocks on a receiver that hasn't reached its hand-off
	// point yet.
	chans := make([]chan model.ResourceLock, n+1)
	for i := range chans {
		chans[i] = make(chan model.ResourceLock, 1)
	}
	chans[0] <- model.NewResourceLock()

	done := make(chan struct{}, n)
	for i, task := range tasks {
		go runTask(ctx, task, snapshot, latestTrigger, now, exec, chans[i], chans[i+1], &steps[i], done)
	}
	for range tasks {
		<-done
	}
	// Drain the final channel so PlanAndExecute doesn't leak it; the lock
	// value itself is discarded, its only purpose was sequencing.
	<-chans[n]

	publicSteps := make([]model.PlanningTraceStep, n)
	var usedTriggerIDs []int64
	for i, s := range steps {
		publicSteps[i] = s.PlanningTraceStep
		if s.usedTriggerID != nil {
			usedTriggerIDs = append(usedTriggerIDs, *s.usedTriggerID)
		}
	}

	trace := model.PlanningTrace{
		TraceID:   uuid.NewString(),
		Timestamp: now(),
		Steps:     publicSteps,
	}
	return Result{Trace: trace, UsedTriggerIDs: usedTriggerIDs}
}

func runTask(
	ctx context.Context,
	task Task,
	snapshot model.Snapshot,
	latestTrigger func(model.TriggerTarget) (model.TriggerRecord, bool),
	now func() time.Time,
	exec Executor,
	in <-chan model.ResourceLock,
	out chan<- model.ResourceLock,
	step *traceStep,
	done chan<- struct{},
) {
	defer func() { done <- struct{}{} }()

	extID := task.Action.ExtID()
	step.PlanningTraceStep = model.PlanningTraceStep{
		ActionID:   extID,
		GoalID:     task.GoalID,
		GoalActive: task.GoalActive,
	}

	var result EvaluationResult
	if !task.GoalActive {
		result = Skip()
	} else {
		pc := Context{Snapshot: snapshot, Now: now, LatestTrigger: latestTrigger}
		r, err := task.Action.Evaluate(ctx, pc)
		if err != nil {
			result = Skip()
		} else {
			result = r
		}
	}

	// The evaluated result may reference a user trigger even if the action
	// is later demoted to Skip by a lock conflict; the cycle still
	// considers that trigger "referenced" for the disable-before-except
	// bookkeeping, since the action genuinely intended to consume it.
	if result.UserTriggerID != nil {
		id := *result.UserTriggerID
		step.usedTriggerID = &id
	}

	// Lock acquisition is the strictly sequential hand-off: receive from
	// the predecessor before doing anything that depends on lock state.
	lock := <-in
	targets := result.Targets()
	locked := result.Kind != ResultSkip && lock.ContainsAny(targets)
	if locked {
		step.Locked = true
		result = Skip()
	} else if len(targets) > 0 {
		lock = lock.With(targets)
	}
	out <- lock

	step.Fulfilled = result.Kind != ResultSkip

	source := model.SystemSource(extID.Type, extID.Variant)
	correlationID := uuid.NewString()
	step.CorrelationID = correlationID

	triggeredAny := false
	for _, cmd := range result.Commands {
		triggered, err := exec.Execute(ctx, cmd, source, result.UserTriggerID, correlationID)
		if err != nil {
			continue
		}
		if triggered {
			triggeredAny = true
		}
	}
	step.Triggered = triggeredAny
}

// Package planner evaluates ordered action rules against a snapshot under a
// shared resource-lock discipline with structured concurrency. The hand-off
// chain is built from Go channels of buffer 1, one per action, deliberately
// avoiding a shared mutex so lock acquisition order matches declaration
// order without serializing the evaluation itself.
package planner

import (
	"context"
	"time"

	"github.com/hausbrain/core/pkg/model"
)

// ResultKind is EvaluationResult's tag.
type ResultKind int

const (
	ResultSkip ResultKind = iota
	ResultExecute
	ResultExecuteTrigger
)

// EvaluationResult is what an action's Evaluate returns: Skip, Execute (a
// system-sourced set of commands), or ExecuteTrigger (commands attributed to
// a specific user trigger, which the planner will mark "used").
type EvaluationResult struct {
	Kind          ResultKind
	Commands      []model.Command
	UserTriggerID *int64
}

func Skip() EvaluationResult { return EvaluationResult{Kind: ResultSkip} }

func Execute(commands ...model.Command) EvaluationResult {
	if len(commands) == 0 {
		return Skip()
	}
	return EvaluationResult{Kind: ResultExecute, Commands: commands}
}

func ExecuteTrigger(userTriggerID int64, commands ...model.Command) EvaluationResult {
	if len(commands) == 0 {
		return Skip()
	}
	return EvaluationResult{Kind: ResultExecuteTrigger, Commands: commands, UserTriggerID: &userTriggerID}
}

// Targets returns the command targets this result would lock, empty for
// Skip.
func (r EvaluationResult) Targets() []model.CommandTarget {
	targets := make([]model.CommandTarget, len(r.Commands))
	for i, c := range r.Commands {
		targets[i] = c.Target
	}
	return targets
}

// Context is what an Action's Evaluate sees: the cycle's snapshot, the
// current time, and a way to look up the latest trigger for a target
// (triggers are not raw channels, so they don't live in the Snapshot map
// itself).
type Context struct {
	Snapshot      model.Snapshot
	Now           func() time.Time
	LatestTrigger func(target model.TriggerTarget) (model.TriggerRecord, bool)
}

// Action is the closed interface every concrete action kind implements:
// ext-id (for tracing and supersede bookkeeping) and evaluate.
type Action interface {
	ExtID() model.ExtID
	Evaluate(ctx context.Context, pc Context) (EvaluationResult, error)
}

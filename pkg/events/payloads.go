package events

import (
	"time"

	"github.com/hausbrain/core/pkg/model"
)

// StateChanged is published when one or more samples land for a tag,
// debounced so a burst of inserts yields one signal (publisher.go).
type StateChanged struct {
	Channel   model.Channel
	Latest    model.DataPoint
	Timestamp time.Time
}

// UserTriggerAdded is published when a new user-trigger row is persisted.
type UserTriggerAdded struct {
	Trigger model.TriggerRecord
}

// CommandAdded is published when the intent-acceptance step inserts a new
// Pending command.
type CommandAdded struct {
	Execution model.CommandExecution
}

// CommandStarted is published when the background dispatcher claims a
// command and begins handing it to adapters.
type CommandStarted struct {
	Execution model.CommandExecution
}

// CommandFinished is published once a claimed command reaches a terminal
// state.
type CommandFinished struct {
	Execution model.CommandExecution
	State     model.ExecutionState
	ErrorMessage string
}

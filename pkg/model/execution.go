package model

import (
	"fmt"
	"time"
)

// ExecutionState is a CommandExecution's lifecycle state. Transitions are
// monotonic: Pending -> InProgress -> {Success | Error}.
type ExecutionState string

const (
	StatePending    ExecutionState = "pending"
	StateInProgress ExecutionState = "in_progress"
	StateSuccess    ExecutionState = "success"
	StateError      ExecutionState = "error"
)

// SourceKind distinguishes planner-originated commands from user-originated
// overrides. The pipeline treats user commands as authoritative when
// present.
type SourceKind string

const (
	SourceSystem SourceKind = "system"
	SourceUser   SourceKind = "user"
)

// Source identifies who asked for a command. System sources are
// "planning:<Action>:<tag>"; user sources are "<group>:<target-name>".
type Source struct {
	Kind       SourceKind
	Identifier string
}

func SystemSource(action, tag string) Source {
	return Source{Kind: SourceSystem, Identifier: fmt.Sprintf("planning:%s:%s", action, tag)}
}

func UserSource(group, targetName string) Source {
	return Source{Kind: SourceUser, Identifier: fmt.Sprintf("%s:%s", group, targetName)}
}

func (s Source) IsUser() bool { return s.Kind == SourceUser }

// CommandExecution is a persisted command together with its lifecycle
// state and provenance.
type CommandExecution struct {
	ID            int64
	Command       Command
	State         ExecutionState
	ErrorMessage  string
	CreatedAt     time.Time
	Source        Source
	CorrelationID string
	UserTriggerID *int64
}

func (e CommandExecution) Target() CommandTarget { return e.Command.Target }

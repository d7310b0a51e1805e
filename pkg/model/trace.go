package model

import "time"

// PlanningTraceStep records one action's outcome within a single planning
// cycle.
type PlanningTraceStep struct {
	ActionID      ExtID
	GoalID        string
	GoalActive    bool
	Locked        bool
	Fulfilled     bool
	Triggered     bool
	CorrelationID string
}

// ExtID is an action's (type-name, variant-name) external identity, the
// same shape as Channel but naming an action kind/target rather than a
// value channel.
type ExtID struct {
	Type    string
	Variant string
}

func (e ExtID) String() string { return e.Type + "::" + e.Variant }

// PlanningTrace is the ordered record of one planning cycle: one step per
// action evaluated, in declared order.
type PlanningTrace struct {
	ID        int64
	TraceID   string
	Timestamp time.Time
	Steps     []PlanningTraceStep
}

// ResourceLock is a per-cycle set of command-targets already claimed by
// earlier actions. It is a planner-internal arbitration token, never a lock
// on an external device.
type ResourceLock struct {
	locked map[CommandTarget]struct{}
}

// NewResourceLock returns an empty lock, the starting value sent into the
// planner's hand-off chain.
func NewResourceLock() ResourceLock {
	return ResourceLock{locked: make(map[CommandTarget]struct{})}
}

// Contains reports whether target is already locked.
func (l ResourceLock) Contains(target CommandTarget) bool {
	_, ok := l.locked[target]
	return ok
}

// ContainsAny reports whether any of targets is already locked.
func (l ResourceLock) ContainsAny(targets []CommandTarget) bool {
	for _, t := range targets {
		if l.Contains(t) {
			return true
		}
	}
	return false
}

// With returns a copy of the lock with targets added. The receiver is left
// untouched so a task can retry evaluation against the lock state it
// observed without corrupting the chain for later tasks.
func (l ResourceLock) With(targets []CommandTarget) ResourceLock {
	next := make(map[CommandTarget]struct{}, len(l.locked)+len(targets))
	for t := range l.locked {
		next[t] = struct{}{}
	}
	for _, t := range targets {
		next[t] = struct{}{}
	}
	return ResourceLock{locked: next}
}

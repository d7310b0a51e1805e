// Package events is the in-process publish/subscribe layer for the five
// signal kinds the engine emits: state-changed, user-trigger-added,
// command-added, command-started, and command-finished. Publishers call
// straight into Manager (manager.go), which fans each event out to
// per-subscriber buffered channels that drop on a full buffer rather than
// block a publisher — acceptable here because the planner re-runs on its
// own periodic tick regardless of a dropped event.
package events

// Kind names one of the five event channels.
type Kind string

const (
	KindStateChanged      Kind = "state-changed"
	KindUserTriggerAdded   Kind = "user-trigger-added"
	KindCommandAdded       Kind = "command-added"
	KindCommandStarted     Kind = "command-started"
	KindCommandFinished    Kind = "command-finished"
)

// bufferSize is the per-subscriber channel capacity. A subscriber that
// falls this far behind drops events rather than blocking a publisher.
const bufferSize = 64

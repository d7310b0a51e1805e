package model

import "time"

// Availability is an Offline record: the last-seen heartbeat for one item
// from one adapter source, plus an explicit offline override.
type Availability struct {
	Source             string
	Item               string
	LastSeen           time.Time
	MarkedOffline      bool
	ConsideredOfflineAfter time.Duration
	EntryUpdated       time.Time
}

// IsOffline implements the invariant: an item is offline iff it has been
// explicitly marked offline, or too much time has elapsed since it was last
// seen.
func (a Availability) IsOffline(now time.Time) bool {
	if a.MarkedOffline {
		return true
	}
	return now.Sub(a.LastSeen) > a.ConsideredOfflineAfter
}

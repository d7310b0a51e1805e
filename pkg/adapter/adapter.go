// Package adapter declares the contract between the engine and the
// device-integration layer: inbound samples/triggers/availability, and
// outbound command execution. Concrete adapters are out of scope — this
// package is interfaces only, documented at the boundary rather than at
// each concrete implementation.
package adapter

import (
	"context"

	"github.com/hausbrain/core/pkg/model"
)

// InboundSample is one channel-tagged reading an inbound adapter reports.
// The engine routes these into the time store via timestore.Store.Append.
type InboundSample struct {
	Channel   model.Channel
	Value     model.Value
	Timestamp int64 // unix seconds, adapter-observed
}

// Inbound is implemented by every device-integration adapter that sources
// data: a stream of samples, user-triggers, and availability updates. The
// engine is the sole consumer; an adapter is free to multiplex several
// physical protocols behind one Inbound.
type Inbound interface {
	// Samples returns a channel of readings; closed when the adapter's
	// upstream connection ends. The engine does not restart a closed
	// stream — supervision (reconnect, backoff) is the adapter's job.
	Samples(ctx context.Context) (<-chan InboundSample, error)
	// Triggers returns a channel of user-originated intent events.
	Triggers(ctx context.Context) (<-chan model.UserTrigger, error)
	// Availability returns a channel of device online/offline transitions.
	Availability(ctx context.Context) (<-chan model.Availability, error)
}

// Outbound receives a Command and reports whether it handled it. The
// background dispatcher (pkg/pipeline) asks each registered Outbound in
// registration order; the first to return (true, nil) wins and the
// command is marked Success. An adapter that does not own the command's
// device must return (false, nil), never an error, so dispatch can keep
// trying later adapters.
//
// Reliability sub-protocol (optional): an adapter that observes an
// external acknowledgement stream for a command it handled may apply its
// own exponential backoff before re-asserting a command whose
// acknowledged state still does not match — base delay ~5s, doubled per
// attempt up to a ~5 minute cap, reset whenever the target payload
// changes. Backoff must not fire when the acknowledged state already
// matches the payload as a subset (extra fields on the device side are
// not a mismatch). The engine itself does not implement this backoff: a
// command whose reflection check (pkg/pipeline) still fails next cycle is
// simply re-issued, and it is the adapter's responsibility not to hammer
// the physical device with duplicate sends in the interim.
type Outbound interface {
	Execute(ctx context.Context, cmd model.Command) (handled bool, err error)
}

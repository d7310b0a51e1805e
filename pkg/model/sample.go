package model

import "time"

// Sample is a (tag-id, value, timestamp) triple, the atomic unit stored by
// the time store.
type Sample struct {
	TagID     int64
	Value     float64
	Timestamp time.Time
}

// DataPoint pairs a sample's value with its timestamp once decoded back to
// its declared Value type. Used wherever a single current reading is
// returned rather than a full Frame.
type DataPoint struct {
	Value     Value
	Timestamp time.Time
}

// ChannelDataPoint is a DataPoint annotated with the channel it belongs to,
// returned by diagnostics queries that span multiple channels at once.
type ChannelDataPoint struct {
	Channel Channel
	DataPoint
}

// Frame is an ordered, strictly non-decreasing-in-timestamp sequence of
// samples for a single channel. It may carry one anchor sample strictly
// before the queried range (AnchorBefore) and one strictly after
// (AnchorAfter) so callers can interpolate at the window's edges.
type Frame struct {
	TagID        int64
	Samples      []Sample
	AnchorBefore *Sample
	AnchorAfter  *Sample
}

// IsEmpty reports whether the frame has neither in-range samples nor
// anchors — the genuine "nothing known" case.
func (f Frame) IsEmpty() bool {
	return len(f.Samples) == 0 && f.AnchorBefore == nil && f.AnchorAfter == nil
}

// Latest returns the most recent sample at or before the end of the frame's
// queried range: the last in-range sample if any exist, otherwise the
// before-anchor.
func (f Frame) Latest() (Sample, bool) {
	if n := len(f.Samples); n > 0 {
		return f.Samples[n-1], true
	}
	if f.AnchorBefore != nil {
		return *f.AnchorBefore, true
	}
	return Sample{}, false
}

// All returns anchor-before, in-range samples, and anchor-after as one
// restartable slice in timestamp order. A lazily-evaluated iterator isn't
// worth the complexity at this data size; a slice is the idiomatic
// restartable sequence and every derivation here traverses a frame at most
// a handful of times.
func (f Frame) All() []Sample {
	out := make([]Sample, 0, len(f.Samples)+2)
	if f.AnchorBefore != nil {
		out = append(out, *f.AnchorBefore)
	}
	out = append(out, f.Samples...)
	if f.AnchorAfter != nil {
		out = append(out, *f.AnchorAfter)
	}
	return out
}

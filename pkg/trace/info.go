package trace

import (
	"crypto/rand"
	"encoding/hex"
)

// Info is the five-field value threaded along one logical request's call
// graph (spec §3). It is immutable once constructed — every downstream hop
// builds a new Info via Derive rather than mutating this one.
type Info struct {
	TraceID      string // 32 lowercase hex chars, never all-zero.
	ParentSpanID string // 16 lowercase hex chars, "" at the root.
	SpanID       string // 16 lowercase hex chars, never all-zero, always present.
	Flags        string // 2 lowercase hex chars; bit 0 is the sampled flag.
	Lane         string // "" means the default lane.
}

// Root constructs a fresh Info with no parent, as used when no upstream
// trace context is present (spec §4.2).
func Root(lane string) Info {
	return Info{
		TraceID: newHexID(16),
		SpanID:  newHexID(8),
		Flags:   defaultFlags,
		Lane:    lane,
	}
}

// Derive builds the Info for the next hop downstream: trace-id, flags and
// lane are inherited, a fresh span-id is generated, and parent-span-id
// becomes the caller's span-id (spec §4.2, §8 property 5).
func (i Info) Derive() Info {
	return Info{
		TraceID:      i.TraceID,
		ParentSpanID: i.SpanID,
		SpanID:       newHexID(8),
		Flags:        i.Flags,
		Lane:         i.Lane,
	}
}

// Equal reports whether two Info values are equivalent: all five fields
// match (spec §3).
func (i Info) Equal(o Info) bool {
	return i.TraceID == o.TraceID &&
		i.ParentSpanID == o.ParentSpanID &&
		i.SpanID == o.SpanID &&
		i.Flags == o.Flags &&
		i.Lane == o.Lane
}

// Traceparent renders the canonical traceparent header for this Info.
func (i Info) Traceparent() string {
	return FormatTraceparent(i.TraceID, i.SpanID, i.Flags)
}

func newHexID(numBytes int) string {
	buf := make([]byte, numBytes)
	// crypto/rand.Read on a fixed-size buffer does not fail in practice;
	// a zero-filled id would violate the "never all-zero" invariant, so
	// degrade to it only if the runtime's entropy source is broken.
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

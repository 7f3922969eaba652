package trace

import "context"

// ctxKey is an unexported type so that Context values set by this package
// never collide with keys set by other packages (the standard context.Context
// discipline for ambient values).
type ctxKey struct{}

// WithInfo installs info into ctx for the scope of everything derived from
// the returned Context — this is the carrier described in spec §4.2. A
// single logical request owns one carrier; context.Context's normal
// parent/child semantics give parallel fan-out the same inherited value for
// free, since each derived context.Context (including ones handed to
// goroutines) carries the same value until a descendant installs its own.
func WithInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// FromContext returns the Info carried by ctx, and whether one was present.
func FromContext(ctx context.Context) (Info, bool) {
	info, ok := ctx.Value(ctxKey{}).(Info)
	return info, ok
}

// FromContextOrRoot returns the Info carried by ctx, or a fresh root Info
// with no lane if none is present — the fallback every egress interceptor
// uses before deriving the next hop (spec §4.3.3 step 1).
func FromContextOrRoot(ctx context.Context) Info {
	if info, ok := FromContext(ctx); ok {
		return info
	}
	return Root("")
}

// tracestateCtxKey carries the raw inbound tracestate header/metadata value
// for the scope of one request, separately from Info — Info stays the
// five-field value the spec defines, while the untouched vendor members an
// egress hop must preserve (spec §4.3.3 step 4) ride alongside it.
type tracestateCtxKey struct{}

// WithTracestate installs the raw tracestate string this request arrived
// with, so a later egress call within the same scope can recover it.
func WithTracestate(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, tracestateCtxKey{}, raw)
}

// TracestateFromContext returns the raw inbound tracestate installed by
// WithTracestate, or "" if this request had none or arrived at the root.
func TracestateFromContext(ctx context.Context) string {
	raw, _ := ctx.Value(tracestateCtxKey{}).(string)
	return raw
}

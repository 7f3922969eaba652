package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"lanemesh/pkg/trace"
)

// TraceUnaryClientInterceptor is the RPC-client egress half of propagation
// (spec §4.3.3): it reads the current TraceInfo from the carrier, derives
// the next hop's Info, writes outbound traceparent/tracestate, and installs
// the derived Info for the duration of the call so nested spans (e.g.
// inside retry middleware) observe it.
func TraceUnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = withEgressTrace(ctx)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// TraceStreamClientInterceptor is the streaming counterpart of
// TraceUnaryClientInterceptor.
func TraceStreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		ctx = withEgressTrace(ctx)
		return streamer(ctx, desc, cc, method, opts...)
	}
}

// withEgressTrace implements spec §4.3.3 steps 1-5: read-or-root, derive,
// write outbound traceparent/tracestate, install the derived Info for the
// call's lifecycle. The balancer later reads the installed Info's lane
// straight out of this same context (spec §4.5 step 1). The inbound
// tracestate this hop's ingress interceptor saw (if any) rides the context
// separately from Info (trace.WithTracestate), since it is the raw,
// not-yet-lane-stripped string whose non-ctx members step 4 must preserve
// verbatim — reading it back off outgoing metadata would only ever see
// what this same call already wrote, never what the server received.
func withEgressTrace(ctx context.Context) context.Context {
	current := trace.FromContextOrRoot(ctx)
	derived := current.Derive()

	inboundState := trace.TracestateFromContext(ctx)
	outboundState := trace.UpsertLane(inboundState, derived.Lane)

	ctx = metadata.AppendToOutgoingContext(ctx, "traceparent", derived.Traceparent())
	if outboundState != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "tracestate", outboundState)
	}
	return trace.WithInfo(ctx, derived)
}

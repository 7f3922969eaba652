package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"lanemesh/pkg/logger"
	"lanemesh/pkg/trace"
)

// TraceUnaryServerInterceptor is the RPC-server half of propagation
// ingress (spec §4.3.2): it reads traceparent/tracestate off the incoming
// metadata the same way the HTTP middleware reads headers, installs the
// derived TraceInfo into the handler's context, and logs completion with
// the trace id attached.
func TraceUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		traceparent, tracestate := metadataValue(ctx, "traceparent"), metadataValue(ctx, "tracestate")
		traceInfo := deriveIngressInfo(traceparent, tracestate)

		ctx = trace.WithInfo(ctx, traceInfo)
		ctx = trace.WithTracestate(ctx, tracestate)
		log := trace.LoggerFromContext(ctx, logger.Log)

		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)

		if err != nil {
			log.Warn("grpc request failed", "method", info.FullMethod, "duration_ms", duration.Milliseconds(), "error", err.Error())
		} else {
			log.Info("grpc request completed", "method", info.FullMethod, "duration_ms", duration.Milliseconds())
		}
		return resp, err
	}
}

// TraceStreamServerInterceptor is the streaming counterpart: the carrier is
// installed once for the stream's lifetime and observed by every message
// the handler processes (spec §4.3.2's "every listener callback").
func TraceStreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		traceparent, tracestate := metadataValue(ctx, "traceparent"), metadataValue(ctx, "tracestate")
		traceInfo := deriveIngressInfo(traceparent, tracestate)

		streamCtx := trace.WithTracestate(trace.WithInfo(ctx, traceInfo), tracestate)
		wrapped := &tracedServerStream{ServerStream: ss, ctx: streamCtx}
		log := trace.LoggerFromContext(wrapped.ctx, logger.Log)

		start := time.Now()
		err := handler(srv, wrapped)
		duration := time.Since(start)

		if err != nil {
			log.Warn("grpc stream failed", "method", info.FullMethod, "duration_ms", duration.Milliseconds(), "error", err.Error())
		} else {
			log.Info("grpc stream completed", "method", info.FullMethod, "duration_ms", duration.Milliseconds())
		}
		return err
	}
}

type tracedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedServerStream) Context() context.Context { return s.ctx }

func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

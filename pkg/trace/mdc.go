package trace

import (
	"context"
	"log/slog"
)

// Fields returns the four keys the logging-context bridge mirrors for every
// request: traceId, spanId, flags, lane (spec §4.2, wire names in §6).
func (i Info) Fields() []any {
	return []any{
		"traceId", i.TraceID,
		"spanId", i.SpanID,
		"flags", i.Flags,
		"lane", i.Lane,
	}
}

// ScopedLogger returns base enriched with this Info's four MDC keys. Unlike
// a mutable thread-local MDC map, this is a new *slog.Logger value: nothing
// about base is altered, so "restoring prior state on scope exit" is
// structural rather than something the caller must remember to do — the
// enriched logger is only ever reachable through the context.Context the
// interceptor derives for the scope of one call, never through base itself.
// This is what gives spec §8 property 8 (MDC discipline) for free in Go:
// the map observed through the caller's original context is untouched by
// any interceptor exit path, including a panic recovered upstream.
func (i Info) ScopedLogger(base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With(i.Fields()...)
}

// LoggerFromContext returns a logger enriched with the Info carried by ctx,
// or base unchanged if ctx carries none.
func LoggerFromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if info, ok := FromContext(ctx); ok {
		return info.ScopedLogger(base)
	}
	return base
}

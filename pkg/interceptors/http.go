package interceptors

import (
	"net/http"
	"strings"
	"time"

	"lanemesh/pkg/logger"
	"lanemesh/pkg/trace"
)

// httpSkipPrefixes are the path prefixes that never get trace handling
// (spec §4.3.1) — static assets, health probes and API doc surfaces that
// would otherwise dominate trace volume with no useful signal.
var httpSkipPrefixes = []string{
	"/actuator/health",
	"/actuator/info",
	"/favicon",
	"/assets/",
	"/static/",
	"/public/",
	"/webjars/",
	"/css/",
	"/js/",
	"/images/",
	"/swagger",
	"/v3/api-docs",
}

func skipHTTPTracing(path string) bool {
	for _, prefix := range httpSkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// TraceMiddleware installs a TraceInfo into the request's context for the
// scope of one HTTP request (spec §4.3.1): it parses any inbound
// traceparent/tracestate, mints a fresh server span, writes the canonical
// response headers, and logs a one-line completion marker carrying the
// trace id.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skipHTTPTracing(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		inboundState := r.Header.Get("tracestate")
		info := deriveIngressInfo(r.Header.Get("traceparent"), inboundState)

		w.Header().Set("traceparent", info.Traceparent())
		if inboundState != "" {
			w.Header().Set("tracestate", inboundState)
		}
		w.Header().Set("X-Trace-Id", info.TraceID)
		w.Header().Set("X-Span-Id", info.SpanID)

		ctx := trace.WithTracestate(trace.WithInfo(r.Context(), info), inboundState)
		log := trace.LoggerFromContext(ctx, logger.Log)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		duration := time.Since(start)
		if sw.status >= http.StatusInternalServerError {
			log.Warn("http request completed with server error",
				"method", r.Method, "path", r.URL.Path,
				"status", sw.status, "duration_ms", duration.Milliseconds())
		} else {
			log.Info("http request completed",
				"method", r.Method, "path", r.URL.Path,
				"status", sw.status, "duration_ms", duration.Milliseconds())
		}
	})
}

// deriveIngressInfo builds the server-side TraceInfo for an inbound HTTP or
// RPC request: it reuses the upstream trace-id/flags when the traceparent
// parses, always mints a fresh span-id, and reads the lane off tracestate
// (spec §4.3.1 steps 1-3).
func deriveIngressInfo(traceparent, tracestate string) trace.Info {
	lane := trace.ExtractLane(tracestate)

	traceID, upstreamSpanID, flags, err := trace.ParseTraceparent(traceparent)
	if err != nil {
		return trace.Root(lane)
	}

	upstream := trace.Info{TraceID: traceID, SpanID: upstreamSpanID, Flags: flags, Lane: lane}
	return upstream.Derive()
}

// statusWriter captures the status code written by the handler so the
// completion log line can report it, without altering response semantics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

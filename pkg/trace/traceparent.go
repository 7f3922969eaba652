package trace

import (
	"strings"

	"lanemesh/pkg/laneerror"
)

const (
	traceparentVersion  = "00"
	traceIDHexLen       = 32
	spanIDHexLen        = 16
	flagsHexLen         = 2
	defaultFlags        = "01"
	traceparentNumParts = 4
)

// ParseTraceparent parses a W3C traceparent header value and returns its
// trace-id, span-id and flags; the version must be "00" and is not
// returned. It never returns a
// partially valid result: on any failure it returns
// laneerror.InvalidTraceparent and the caller is expected to fall back to a
// root trace (spec §4.1, §7). The returned span-id is the upstream span;
// callers installing a new server-side TraceInfo use it as parentSpanID and
// generate a fresh span-id of their own.
func ParseTraceparent(header string) (traceID, spanID, flags string, err error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", "", "", laneerror.New(laneerror.InvalidTraceparent, "empty traceparent")
	}

	parts := strings.Split(header, "-")
	if len(parts) != traceparentNumParts {
		return "", "", "", laneerror.New(laneerror.InvalidTraceparent, "expected %d parts, got %d", traceparentNumParts, len(parts))
	}

	version, tid, sid, flg := parts[0], parts[1], parts[2], parts[3]
	if version != traceparentVersion {
		return "", "", "", laneerror.New(laneerror.InvalidTraceparent, "unsupported version %q", version)
	}
	if !isLowerHex(tid, traceIDHexLen) {
		return "", "", "", laneerror.New(laneerror.InvalidTraceparent, "malformed trace-id")
	}
	if isAllZero(tid) {
		return "", "", "", laneerror.New(laneerror.InvalidTraceparent, "all-zero trace-id")
	}
	if !isLowerHex(sid, spanIDHexLen) {
		return "", "", "", laneerror.New(laneerror.InvalidTraceparent, "malformed span-id")
	}
	if isAllZero(sid) {
		return "", "", "", laneerror.New(laneerror.InvalidTraceparent, "all-zero span-id")
	}
	if !isLowerHex(flg, flagsHexLen) {
		return "", "", "", laneerror.New(laneerror.InvalidTraceparent, "malformed flags")
	}

	return tid, sid, flg, nil
}

// FormatTraceparent renders the canonical lowercase traceparent string for
// the given trace-id/span-id/flags. If flags is empty or not exactly two
// lowercase hex characters it defaults to "01" (spec §4.1).
func FormatTraceparent(traceID, spanID, flags string) string {
	if len(flags) != flagsHexLen || !isLowerHex(flags, flagsHexLen) {
		flags = defaultFlags
	}
	return traceparentVersion + "-" + traceID + "-" + spanID + "-" + flags
}

func isLowerHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}

func isAllZero(s string) bool {
	for _, r := range s {
		if r != '0' {
			return false
		}
	}
	return true
}

package trace

import "strings"

const (
	ctxVendorKey  = "ctx"
	laneValuePfx  = "lane:"
	tracestateSep = ","
	memberSep     = "="
)

// ExtractLane scans a tracestate header for the first ctx member whose
// value begins with "lane:" and returns the trimmed substring after the
// colon. It returns "" when no such member is present — absence and an
// explicitly empty lane are indistinguishable to the caller, which is
// intentional: both mean "default lane" (spec §4.1).
func ExtractLane(tracestate string) string {
	for _, member := range splitMembers(tracestate) {
		k, v, ok := splitMember(member)
		if !ok || k != ctxVendorKey {
			continue
		}
		if strings.HasPrefix(v, laneValuePfx) {
			return strings.TrimSpace(strings.TrimPrefix(v, laneValuePfx))
		}
	}
	return ""
}

// UpsertLane returns a tracestate with its ctx=lane:<lane> member replaced
// (or prepended if absent). An empty lane removes the member instead. All
// other members are preserved verbatim, in order (spec §4.1, §8 properties
// 2-4).
func UpsertLane(tracestate string, lane string) string {
	members := splitMembers(tracestate)
	newMember := ctxVendorKey + memberSep + laneValuePfx + lane

	replaced := false
	kept := make([]string, 0, len(members)+1)
	for _, member := range members {
		k, v, ok := splitMember(member)
		if ok && k == ctxVendorKey && strings.HasPrefix(v, laneValuePfx) {
			if lane == "" {
				continue // removal: drop the member entirely
			}
			kept = append(kept, newMember) // replace in place
			replaced = true
			continue
		}
		kept = append(kept, member)
	}

	if lane == "" {
		return strings.Join(kept, tracestateSep)
	}
	if !replaced {
		kept = append([]string{newMember}, kept...) // prepend: no prior ctx=lane member
	}
	return strings.Join(kept, tracestateSep)
}

// splitMembers splits a tracestate into its comma-separated members,
// dropping empty members produced by stray commas (spec §8 boundary case).
func splitMembers(tracestate string) []string {
	if tracestate == "" {
		return nil
	}
	raw := strings.Split(tracestate, tracestateSep)
	members := make([]string, 0, len(raw))
	for _, m := range raw {
		if strings.TrimSpace(m) == "" {
			continue
		}
		members = append(members, m)
	}
	return members
}

// splitMember splits a single "vendor=value" member. A member with no '='
// is tolerated as malformed and skipped by the caller (InvalidTracestate
// recovery per spec §7).
func splitMember(member string) (key, value string, ok bool) {
	idx := strings.Index(member, memberSep)
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(member[:idx]), strings.TrimSpace(member[idx+1:]), true
}

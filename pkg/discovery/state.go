package discovery

import (
	"sort"
	"strconv"
)

// InstanceAddress is {host, port, lane} — the element of a resolver update
// (spec §3).
type InstanceAddress struct {
	Host string
	Port int
	Lane string
}

// Key is the (host, port, lane) triple used for deduplication.
func (a InstanceAddress) Key() string {
	return a.Host + ":" + strconv.Itoa(a.Port) + "#" + a.Lane
}

// AddressGroup is an ordered InstanceAddress sequence plus its LANE
// attribute. In this core every group wraps exactly one address (spec §3).
type AddressGroup struct {
	Address InstanceAddress
	Lane    string // mirrors Address.Lane; kept distinct per the data model's "augmented with an attribute map"
}

// State is a snapshot resolver.State: the groups currently known, or a
// configuration-level error (spec §3).
type State struct {
	Groups      []AddressGroup
	ConfigError error // non-nil only for the Unavailable case (spec §4.4 step 6)
}

// dedupeAndSort deduplicates instances by (host, port, lane) and sorts by
// (lane, host, port), as required before diffing and emission (spec §4.4
// step 5).
func dedupeAndSort(addrs []InstanceAddress) []AddressGroup {
	seen := make(map[string]struct{}, len(addrs))
	groups := make([]AddressGroup, 0, len(addrs))
	for _, a := range addrs {
		k := a.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		groups = append(groups, AddressGroup{Address: a, Lane: a.Lane})
	}
	sort.Slice(groups, func(i, j int) bool {
		gi, gj := groups[i], groups[j]
		if gi.Lane != gj.Lane {
			return gi.Lane < gj.Lane
		}
		if gi.Address.Host != gj.Address.Host {
			return gi.Address.Host < gj.Address.Host
		}
		return gi.Address.Port < gj.Address.Port
	})
	return groups
}

// Equal reports whether two States describe the same set of groups (group
// identity including its lane attribute) — the comparison the resolver uses
// to decide whether an emission to the balancer is needed (spec §4.4 step 7,
// §8 property 7). A ConfigError always counts as a difference from a
// non-error state.
func (s State) Equal(o State) bool {
	if (s.ConfigError == nil) != (o.ConfigError == nil) {
		return false
	}
	if len(s.Groups) != len(o.Groups) {
		return false
	}
	for i := range s.Groups {
		if s.Groups[i].Address != o.Groups[i].Address || s.Groups[i].Lane != o.Groups[i].Lane {
			return false
		}
	}
	return true
}

package balancer

import (
	"sync/atomic"

	"google.golang.org/grpc/balancer"
)

// ring is a lock-free round-robin cursor over a fixed slice of READY
// SubConns, one per lane bucket (spec §4.5). It is rebuilt wholesale on
// every connectivity change rather than mutated in place, so a picker
// already in flight keeps iterating over a stable snapshot.
type ring struct {
	conns []balancer.SubConn
	next  atomic.Uint32
}

func newRing(conns []balancer.SubConn) *ring {
	return &ring{conns: conns}
}

func (r *ring) empty() bool {
	return r == nil || len(r.conns) == 0
}

// pick returns the next SubConn in rotation. Callers must check empty()
// first.
func (r *ring) pick() balancer.SubConn {
	i := r.next.Add(1) - 1
	return r.conns[int(i)%len(r.conns)]
}

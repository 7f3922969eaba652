package balancer

import (
	"context"

	"google.golang.org/grpc/balancer"

	"lanemesh/pkg/discovery"
	"lanemesh/pkg/laneerror"
	"lanemesh/pkg/trace"
)

// picker implements the lane-aware pick algorithm (spec §4.5): the lane
// named by the RPC's trace carrier is tried first, the default lane ("")
// second, and a NoAvailableBackend error is returned only once both buckets
// are empty of READY subchannels.
type picker struct {
	buckets map[string]*ring
	metrics *Metrics
}

func newPicker(buckets map[string]*ring, metrics *Metrics) *picker {
	return &picker{buckets: buckets, metrics: metrics}
}

func (p *picker) Pick(info balancer.PickInfo) (balancer.PickResult, error) {
	lane := laneFromContext(info.Ctx)

	if r := p.buckets[lane]; !r.empty() {
		p.observe(lane, "hit")
		return balancer.PickResult{SubConn: r.pick()}, nil
	}

	if lane != discovery.DefaultLane {
		if r := p.buckets[discovery.DefaultLane]; !r.empty() {
			p.observe(lane, "fallback_default")
			return balancer.PickResult{SubConn: r.pick()}, nil
		}
	}

	p.observe(lane, "no_backend")
	return balancer.PickResult{}, laneerror.New(laneerror.NoAvailableBackend,
		"no ready backend for lane=%q or the default lane", lane)
}

func (p *picker) observe(lane, result string) {
	if p.metrics == nil {
		return
	}
	p.metrics.PicksTotal.WithLabelValues(lane, result).Inc()
}

// laneFromContext reads the requested lane off the RPC's trace carrier,
// defaulting to the default lane when none is present — this is the
// handoff point between the propagation interceptors and the lane-aware
// picker (spec §4.3.2, §4.5).
func laneFromContext(ctx context.Context) string {
	if ctx == nil {
		return discovery.DefaultLane
	}
	info, ok := trace.FromContext(ctx)
	if !ok {
		return discovery.DefaultLane
	}
	return info.Lane
}

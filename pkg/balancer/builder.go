package balancer

import (
	"log/slog"
	"sort"
	"sync"

	"google.golang.org/grpc/balancer"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/resolver"

	"lanemesh/pkg/discovery"
)

// Name is the balancer name registered with grpc, set via
// grpc.WithDefaultServiceConfig or a per-call service config targeting
// "loadBalancingConfig":[{"lane_round_robin":{}}] (spec §4.5).
const Name = "lane_round_robin"

// Register installs the lane-aware balancer under Name with grpc's global
// balancer registry, mirroring how grpc-go's own round_robin balancer
// registers itself at init time. metrics may be nil to disable Prometheus
// observation.
func Register(metrics *Metrics) {
	balancer.Register(builder{metrics: metrics})
}

type builder struct {
	metrics *Metrics
}

func (b builder) Name() string { return Name }

func (b builder) Build(cc balancer.ClientConn, _ balancer.BuildOptions) balancer.Balancer {
	return &laneBalancer{
		cc:       cc,
		metrics:  b.metrics,
		subConns: make(map[string]*subConnEntry),
	}
}

// subConnEntry tracks one address's SubConn alongside the lane it serves
// and its last known connectivity state.
type subConnEntry struct {
	sc    balancer.SubConn
	lane  string
	state connectivity.State
}

// laneBalancer implements balancer.Balancer directly rather than through
// the base package, because a full outage must still produce this
// library's own lane-aware NoAvailableBackend error (spec §4.5, §7) instead
// of grpc-go's generic connection-error picker substitution.
type laneBalancer struct {
	cc      balancer.ClientConn
	metrics *Metrics

	mu       sync.Mutex
	subConns map[string]*subConnEntry // keyed by resolver.Address.Addr
}

func (b *laneBalancer) UpdateClientConnState(s balancer.ClientConnState) error {
	addrs := s.ResolverState.Addresses
	if len(addrs) == 0 && len(s.ResolverState.Endpoints) > 0 {
		for _, ep := range s.ResolverState.Endpoints {
			addrs = append(addrs, ep.Addresses...)
		}
	}

	b.mu.Lock()
	seen := make(map[string]struct{}, len(addrs))
	for _, addr := range addrs {
		seen[addr.Addr] = struct{}{}
		lane := discovery.LaneFromAddress(addr)

		if entry, ok := b.subConns[addr.Addr]; ok {
			entry.lane = lane
			continue
		}

		sc, err := b.cc.NewSubConn([]resolver.Address{addr}, balancer.NewSubConnOptions{
			StateListener: func(scs balancer.SubConnState) {
				b.handleSubConnState(addr.Addr, scs)
			},
		})
		if err != nil {
			slog.Default().Warn("lane balancer: failed to create subchannel", "addr", addr.Addr, "error", err)
			continue
		}
		b.subConns[addr.Addr] = &subConnEntry{sc: sc, lane: lane, state: connectivity.Idle}
		sc.Connect()
	}

	for key, entry := range b.subConns {
		if _, ok := seen[key]; !ok {
			entry.sc.Shutdown()
			delete(b.subConns, key)
		}
	}
	b.mu.Unlock()

	b.regeneratePicker()
	return nil
}

func (b *laneBalancer) handleSubConnState(addrKey string, scs balancer.SubConnState) {
	b.mu.Lock()
	if entry, ok := b.subConns[addrKey]; ok {
		entry.state = scs.ConnectivityState
		if scs.ConnectivityState == connectivity.Idle {
			entry.sc.Connect()
		}
	}
	b.mu.Unlock()
	b.regeneratePicker()
}

func (b *laneBalancer) ResolverError(err error) {
	slog.Default().Warn("lane balancer: resolver error", "error", err)
	b.regeneratePicker()
}

// UpdateSubConnState is retained only to satisfy balancer.Balancer; this
// balancer drives subchannel state entirely through the StateListener
// passed to NewSubConn.
func (b *laneBalancer) UpdateSubConnState(balancer.SubConn, balancer.SubConnState) {}

func (b *laneBalancer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, entry := range b.subConns {
		entry.sc.Shutdown()
		delete(b.subConns, key)
	}
}

// regeneratePicker rebuilds the lane buckets from the current READY
// subchannels and publishes a new picker, along with the aggregate
// connectivity rollup described in spec §4.5: READY if any bucket has a
// READY member, else CONNECTING/IDLE if any subchannel is still trying,
// else TRANSIENT_FAILURE.
func (b *laneBalancer) regeneratePicker() {
	b.mu.Lock()
	keys := make([]string, 0, len(b.subConns))
	for key := range b.subConns {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buckets := make(map[string][]balancer.SubConn)
	aggregate := connectivity.TransientFailure
	anyConnecting := false
	anyIdle := false
	for _, key := range keys {
		entry := b.subConns[key]
		switch entry.state {
		case connectivity.Ready:
			buckets[entry.lane] = append(buckets[entry.lane], entry.sc)
		case connectivity.Connecting:
			anyConnecting = true
		case connectivity.Idle:
			anyIdle = true
		}
	}
	rings := make(map[string]*ring, len(buckets))
	for lane, conns := range buckets {
		rings[lane] = newRing(conns)
	}
	b.mu.Unlock()

	if len(buckets) > 0 {
		aggregate = connectivity.Ready
	} else if anyConnecting {
		aggregate = connectivity.Connecting
	} else if anyIdle {
		aggregate = connectivity.Idle
	}

	b.reportOccupancy(rings)

	b.cc.UpdateState(balancer.State{
		ConnectivityState: aggregate,
		Picker:            newPicker(rings, b.metrics),
	})
}

func (b *laneBalancer) reportOccupancy(rings map[string]*ring) {
	if b.metrics == nil {
		return
	}
	for lane, r := range rings {
		b.metrics.BucketReadyBackends.WithLabelValues(lane).Set(float64(len(r.conns)))
	}
}

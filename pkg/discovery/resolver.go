package discovery

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"google.golang.org/grpc/attributes"
	"google.golang.org/grpc/resolver"

	"lanemesh/pkg/laneerror"
	"lanemesh/pkg/metrics"
)

// laneAttrKey is the resolver.Address / resolver.Endpoint attribute key
// the balancer (C5) reads the lane from (spec §4.4 step 5, §4.5).
type laneAttrKey struct{}

// LaneFromAddress reads the lane attribute stamped on a resolver.Address by
// this package's resolver, defaulting to the default lane if absent.
func LaneFromAddress(addr resolver.Address) string {
	if addr.Attributes == nil {
		return DefaultLane
	}
	if v, ok := addr.Attributes.Value(laneAttrKey{}).(string); ok {
		return v
	}
	return DefaultLane
}

// ResolverConfig is the set of operator knobs the builder reads out of
// configuration (spec §4.4, §6): the poll interval, whether DNS fallback is
// permitted at all, and the RegistryClient/DNSResolver collaborators.
type ResolverConfig struct {
	Registry      RegistryClient
	DNS           DNSResolver
	PollInterval  time.Duration
	DNSFallback   bool
	DefaultGRPCPort int // used when an instance carries no port attribute and the target carries none either
	Metrics       *metrics.Metrics // optional; when nil, resolutions go unrecorded
}

// Builder implements resolver.Builder for the "cloud" scheme (spec §6), and
// is registered globally by RegisterBuilder.
type Builder struct {
	cfg ResolverConfig
}

// NewBuilder constructs a Builder against the given configuration. Call
// resolver.Register(b) (or RegisterBuilder) once at process start to make
// cloud:// targets dialable.
func NewBuilder(cfg ResolverConfig) *Builder {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.DefaultGRPCPort <= 0 {
		cfg.DefaultGRPCPort = 80
	}
	return &Builder{cfg: cfg}
}

// RegisterBuilder registers a Builder with grpc's global resolver registry
// under the "cloud" scheme, the way grpc-go's own DNS/passthrough resolvers
// register themselves at init time.
func RegisterBuilder(cfg ResolverConfig) {
	resolver.Register(NewBuilder(cfg))
}

func (b *Builder) Scheme() string { return Scheme }

func (b *Builder) Build(target resolver.Target, cc resolver.ClientConn, _ resolver.BuildOptions) (resolver.Resolver, error) {
	if target.URL.Host != "" {
		err := laneerror.New(laneerror.InvalidTarget, "cloud:// targets must carry no authority, got %q", target.URL.Host)
		cc.ReportError(err)
		return nil, err
	}

	tgt, err := ParseTarget(target.Endpoint())
	if err != nil {
		cc.ReportError(err)
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &cloudResolver{
		cfg:    b.cfg,
		target: tgt,
		cc:     cc,
		ctx:    ctx,
		cancel: cancel,
		resolveNow: make(chan struct{}, 1),
	}
	r.wg.Add(1)
	go r.run()
	return r, nil
}

// cloudResolver is the resolver.Resolver instance bound to one dial target
// (spec §4.4). It polls the registry on a fixed interval, falls back to DNS
// when the registry is unavailable or empty, and emits a new resolver.State
// only when the deduplicated, sorted instance set actually changed.
type cloudResolver struct {
	cfg    ResolverConfig
	target Target
	cc     resolver.ClientConn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	resolveNow chan struct{}

	mu   sync.Mutex
	last State
}

func (r *cloudResolver) ResolveNow(resolver.ResolveNowOptions) {
	select {
	case r.resolveNow <- struct{}{}:
	default:
	}
}

func (r *cloudResolver) Close() {
	r.cancel()
	r.wg.Wait()
}

func (r *cloudResolver) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.resolveOnce()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.resolveOnce()
		case <-r.resolveNow:
			r.resolveOnce()
		}
	}
}

func (r *cloudResolver) resolveOnce() {
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.PollInterval)
	defer cancel()

	instances, err := r.cfg.Registry.DiscoverInstances(ctx, r.target.Namespace, r.target.Service)
	usedFallback := false
	if err != nil || len(instances) == 0 {
		if !r.cfg.DNSFallback || r.cfg.DNS == nil {
			if err != nil {
				r.recordResolution(false)
				r.emitError(laneerror.Wrap(laneerror.RegistryUnavailable, err, "resolving %s", r.target.FullName()))
				return
			}
			r.recordResolution(true)
			r.emit(nil)
			return
		}
		usedFallback = true
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.RecordDNSFallback(r.target.FullName())
		}
		addrs, dnsErr := r.cfg.DNS.LookupSRV(ctx, r.target.FullName())
		if dnsErr != nil || len(addrs) == 0 {
			addrs, dnsErr = r.cfg.DNS.LookupA(ctx, r.target.FullName())
		}
		if dnsErr != nil {
			r.recordResolution(false)
			r.emitError(laneerror.Wrap(laneerror.RegistryUnavailable, dnsErr, "dns fallback for %s", r.target.FullName()))
			return
		}
		if len(addrs) == 0 {
			r.recordResolution(false)
			r.emitError(laneerror.New(laneerror.RegistryUnavailable, "dns fallback for %s yielded no addresses", r.target.FullName()))
			return
		}
		r.recordResolution(true)
		r.emitAddresses(addrs)
		return
	}

	addrs := make([]InstanceAddress, 0, len(instances))
	for _, inst := range instances {
		if inst.Host == "" {
			continue
		}
		addrs = append(addrs, InstanceAddress{
			Host: inst.Host,
			Port: r.resolveInstancePort(inst.Attributes),
			Lane: inst.Attributes[AttrLane],
		})
	}
	if usedFallback {
		slog.Default().Warn("cloud resolver fell back to DNS", "target", r.target.FullName())
	}
	r.recordResolution(true)
	r.emitAddresses(addrs)
}

func (r *cloudResolver) recordResolution(success bool) {
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.RecordResolution(r.target.FullName(), success)
	}
}

// resolveInstancePort applies the port-resolution order from spec §4.4 step
// 2: the Cloud Map canonical port attribute, then the grpcPort/port
// fallbacks, then the target's own :port suffix, then the configured
// default.
func (r *cloudResolver) resolveInstancePort(attrs map[string]string) int {
	for _, key := range []string{AttrPortCanonical, AttrGRPCPort, AttrPortFallback} {
		if v, ok := attrs[key]; ok {
			if p, err := strconv.Atoi(v); err == nil && p > 0 {
				return p
			}
		}
	}
	if r.target.Port > 0 {
		return r.target.Port
	}
	return r.cfg.DefaultGRPCPort
}

func (r *cloudResolver) emitAddresses(addrs []InstanceAddress) {
	r.emit(addrs)
}

// emit deduplicates and sorts addrs, diffs the result against the last
// emitted state, and calls UpdateState only when something changed (spec
// §4.4 step 7).
func (r *cloudResolver) emit(addrs []InstanceAddress) {
	groups := dedupeAndSort(addrs)
	next := State{Groups: groups}

	r.mu.Lock()
	unchanged := r.last.Equal(next)
	r.last = next
	r.mu.Unlock()
	if unchanged {
		return
	}

	endpoints := make([]resolver.Endpoint, 0, len(groups))
	for _, g := range groups {
		attrs := attributes.New(laneAttrKey{}, g.Lane)
		addr := resolver.Address{
			Addr:       g.Address.Host + ":" + strconv.Itoa(g.Address.Port),
			Attributes: attrs,
		}
		endpoints = append(endpoints, resolver.Endpoint{
			Addresses:  []resolver.Address{addr},
			Attributes: attrs,
		})
	}

	addresses := make([]resolver.Address, len(endpoints))
	for i, ep := range endpoints {
		addresses[i] = ep.Addresses[0]
	}

	_ = r.cc.UpdateState(resolver.State{
		Addresses: addresses,
		Endpoints: endpoints,
	})
}

func (r *cloudResolver) emitError(err error) {
	r.mu.Lock()
	r.last = State{ConfigError: err}
	r.mu.Unlock()
	r.cc.ReportError(err)
}

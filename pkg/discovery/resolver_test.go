package discovery

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/resolver"

	"lanemesh/pkg/laneerror"
)

type fakeRegistryClient struct {
	instances []Instance
	err       error
}

func (f *fakeRegistryClient) DiscoverInstances(context.Context, string, string) ([]Instance, error) {
	return f.instances, f.err
}

func (f *fakeRegistryClient) RegisterInstance(context.Context, string, string, map[string]string) error {
	return nil
}

type fakeDNSResolver struct {
	srv []InstanceAddress
	a   []InstanceAddress
	err error
}

func (f *fakeDNSResolver) LookupSRV(context.Context, string) ([]InstanceAddress, error) {
	return f.srv, f.err
}

func (f *fakeDNSResolver) LookupA(context.Context, string) ([]InstanceAddress, error) {
	return f.a, f.err
}

type fakeClientConn struct {
	resolver.ClientConn
	states []resolver.State
	errs   []error
}

func (f *fakeClientConn) UpdateState(s resolver.State) error {
	f.states = append(f.states, s)
	return nil
}

func (f *fakeClientConn) ReportError(err error) {
	f.errs = append(f.errs, err)
}

func newTestResolver(t *testing.T, cfg ResolverConfig, tgt Target) (*cloudResolver, *fakeClientConn) {
	t.Helper()
	cc := &fakeClientConn{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &cloudResolver{
		cfg:        cfg,
		target:     tgt,
		cc:         cc,
		ctx:        ctx,
		cancel:     cancel,
		resolveNow: make(chan struct{}, 1),
	}, cc
}

func TestCloudResolverEmitsAddressesWithLaneAttribute(t *testing.T) {
	reg := &fakeRegistryClient{instances: []Instance{
		{Host: "10.0.0.1", Attributes: map[string]string{AttrPortCanonical: "8080", AttrLane: "canary"}},
		{Host: "10.0.0.2", Attributes: map[string]string{AttrPortCanonical: "8080"}},
	}}
	r, cc := newTestResolver(t, ResolverConfig{Registry: reg, PollInterval: time.Second, DefaultGRPCPort: 80}, Target{Service: "orders", Namespace: "prod"})

	r.resolveOnce()

	require.Len(t, cc.states, 1)
	require.Len(t, cc.states[0].Addresses, 2)
	lanes := map[string]string{}
	for _, addr := range cc.states[0].Addresses {
		lanes[addr.Addr] = LaneFromAddress(addr)
	}
	assert.Equal(t, "canary", lanes["10.0.0.1:8080"])
	assert.Equal(t, "", lanes["10.0.0.2:8080"])
}

func TestCloudResolverDoesNotReemitUnchangedState(t *testing.T) {
	reg := &fakeRegistryClient{instances: []Instance{
		{Host: "10.0.0.1", Attributes: map[string]string{AttrPortCanonical: "8080"}},
	}}
	r, cc := newTestResolver(t, ResolverConfig{Registry: reg, PollInterval: time.Second, DefaultGRPCPort: 80}, Target{Service: "orders", Namespace: "prod"})

	r.resolveOnce()
	r.resolveOnce()

	assert.Len(t, cc.states, 1)
}

func TestCloudResolverPortResolutionOrder(t *testing.T) {
	reg := &fakeRegistryClient{instances: []Instance{
		{Host: "10.0.0.1", Attributes: map[string]string{}},
	}}
	r, cc := newTestResolver(t, ResolverConfig{Registry: reg, PollInterval: time.Second, DefaultGRPCPort: 9999}, Target{Service: "orders", Namespace: "prod", Port: 7000})

	r.resolveOnce()

	require.Len(t, cc.states[0].Addresses, 1)
	assert.Equal(t, "10.0.0.1:7000", cc.states[0].Addresses[0].Addr)
}

func TestCloudResolverFallsBackToDNS(t *testing.T) {
	reg := &fakeRegistryClient{err: assertErr{}}
	dns := &fakeDNSResolver{srv: []InstanceAddress{{Host: "fallback.local", Port: 53, Lane: ""}}}
	r, cc := newTestResolver(t, ResolverConfig{
		Registry:     reg,
		DNS:          dns,
		DNSFallback:  true,
		PollInterval: time.Second,
		DefaultGRPCPort: 80,
	}, Target{Service: "orders", Namespace: "prod"})

	r.resolveOnce()

	require.Len(t, cc.states, 1)
	require.Len(t, cc.states[0].Addresses, 1)
	assert.Equal(t, "fallback.local:53", cc.states[0].Addresses[0].Addr)
}

func TestCloudResolverDNSFallbackEmptyReportsConfigError(t *testing.T) {
	reg := &fakeRegistryClient{err: assertErr{}}
	dns := &fakeDNSResolver{} // both LookupSRV and LookupA succeed with zero addresses
	r, cc := newTestResolver(t, ResolverConfig{
		Registry:        reg,
		DNS:             dns,
		DNSFallback:     true,
		PollInterval:    time.Second,
		DefaultGRPCPort: 80,
	}, Target{Service: "orders", Namespace: "prod"})

	r.resolveOnce()

	assert.Empty(t, cc.states)
	require.Len(t, cc.errs, 1)
	var le *laneerror.Error
	require.ErrorAs(t, cc.errs[0], &le)
	assert.Equal(t, laneerror.RegistryUnavailable, le.Kind)
}

func TestCloudResolverReportsErrorWithoutFallback(t *testing.T) {
	reg := &fakeRegistryClient{err: assertErr{}}
	r, cc := newTestResolver(t, ResolverConfig{Registry: reg, PollInterval: time.Second, DefaultGRPCPort: 80}, Target{Service: "orders", Namespace: "prod"})

	r.resolveOnce()

	assert.Empty(t, cc.states)
	require.Len(t, cc.errs, 1)
}

func TestBuilderRejectsNonEmptyAuthority(t *testing.T) {
	b := NewBuilder(ResolverConfig{Registry: &fakeRegistryClient{}})
	cc := &fakeClientConn{}

	u, err := url.Parse("cloud://somehost/orders.prod")
	require.NoError(t, err)

	res, buildErr := b.Build(resolver.Target{URL: *u}, cc, resolver.BuildOptions{})
	require.Nil(t, res)
	require.Error(t, buildErr)

	var le *laneerror.Error
	require.ErrorAs(t, buildErr, &le)
	assert.Equal(t, laneerror.InvalidTarget, le.Kind)
	require.Len(t, cc.errs, 1)
}

func TestBuilderAcceptsEmptyAuthority(t *testing.T) {
	b := NewBuilder(ResolverConfig{Registry: &fakeRegistryClient{}})
	cc := &fakeClientConn{}

	u, err := url.Parse("cloud:///orders.prod")
	require.NoError(t, err)

	res, buildErr := b.Build(resolver.Target{URL: *u}, cc, resolver.BuildOptions{})
	require.NoError(t, buildErr)
	require.NotNil(t, res)
	res.Close()
}

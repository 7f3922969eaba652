package balancer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/balancer"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/resolver"
)

type trackedSubConn struct {
	balancer.SubConn
	addr      string
	connects  int
	shutdowns int
}

type fakeBalancerClientConn struct {
	balancer.ClientConn
	subConns map[string]*trackedSubConn
	listeners map[string]func(balancer.SubConnState)
	states    []balancer.State
}

func newFakeBalancerClientConn() *fakeBalancerClientConn {
	return &fakeBalancerClientConn{
		subConns:  make(map[string]*trackedSubConn),
		listeners: make(map[string]func(balancer.SubConnState)),
	}
}

func (f *fakeBalancerClientConn) NewSubConn(addrs []resolver.Address, opts balancer.NewSubConnOptions) (balancer.SubConn, error) {
	addr := addrs[0].Addr
	sc := &trackedSubConn{addr: addr}
	f.subConns[addr] = sc
	f.listeners[addr] = opts.StateListener
	return sc, nil
}

func (f *fakeBalancerClientConn) UpdateState(s balancer.State) {
	f.states = append(f.states, s)
}

func (sc *trackedSubConn) Connect()  { sc.connects++ }
func (sc *trackedSubConn) Shutdown() { sc.shutdowns++ }

func TestLaneBalancerBucketsByLaneAndPicksReady(t *testing.T) {
	cc := newFakeBalancerClientConn()
	b := builder{}.Build(cc, balancer.BuildOptions{})

	err := b.UpdateClientConnState(balancer.ClientConnState{
		ResolverState: resolver.State{
			Addresses: []resolver.Address{
				{Addr: "10.0.0.1:8080"},
				{Addr: "10.0.0.2:8080"},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, cc.subConns, 2)
	assert.Equal(t, 1, cc.subConns["10.0.0.1:8080"].connects)

	cc.listeners["10.0.0.1:8080"](balancer.SubConnState{ConnectivityState: connectivity.Ready})
	cc.listeners["10.0.0.2:8080"](balancer.SubConnState{ConnectivityState: connectivity.Ready})

	require.NotEmpty(t, cc.states)
	last := cc.states[len(cc.states)-1]
	assert.Equal(t, connectivity.Ready, last.ConnectivityState)

	result, err := last.Picker.Pick(balancer.PickInfo{Ctx: ctxWithLane("")})
	require.NoError(t, err)
	assert.NotNil(t, result.SubConn)
}

func TestLaneBalancerAggregateTransientFailureStillPicksError(t *testing.T) {
	cc := newFakeBalancerClientConn()
	b := builder{}.Build(cc, balancer.BuildOptions{})

	require.NoError(t, b.UpdateClientConnState(balancer.ClientConnState{
		ResolverState: resolver.State{Addresses: []resolver.Address{{Addr: "10.0.0.1:8080"}}},
	}))
	cc.listeners["10.0.0.1:8080"](balancer.SubConnState{ConnectivityState: connectivity.TransientFailure})

	last := cc.states[len(cc.states)-1]
	assert.Equal(t, connectivity.TransientFailure, last.ConnectivityState)

	_, err := last.Picker.Pick(balancer.PickInfo{Ctx: ctxWithLane("canary")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canary")
}

func TestLaneBalancerRemovesStaleSubConns(t *testing.T) {
	cc := newFakeBalancerClientConn()
	b := builder{}.Build(cc, balancer.BuildOptions{})

	require.NoError(t, b.UpdateClientConnState(balancer.ClientConnState{
		ResolverState: resolver.State{Addresses: []resolver.Address{{Addr: "10.0.0.1:8080"}, {Addr: "10.0.0.2:8080"}}},
	}))
	require.NoError(t, b.UpdateClientConnState(balancer.ClientConnState{
		ResolverState: resolver.State{Addresses: []resolver.Address{{Addr: "10.0.0.1:8080"}}},
	}))

	assert.Equal(t, 1, cc.subConns["10.0.0.2:8080"].shutdowns)
}

func TestLaneBalancerRingOrderIsSortedByAddress(t *testing.T) {
	cc := newFakeBalancerClientConn()
	b := builder{}.Build(cc, balancer.BuildOptions{})

	// Register out of sorted order, and bring them READY out of order too,
	// so the only way the ring ends up sorted is if regeneratePicker sorts
	// it itself rather than inheriting subConns' map iteration order.
	require.NoError(t, b.UpdateClientConnState(balancer.ClientConnState{
		ResolverState: resolver.State{Addresses: []resolver.Address{
			{Addr: "10.0.0.3:8080"},
			{Addr: "10.0.0.1:8080"},
			{Addr: "10.0.0.2:8080"},
		}},
	}))
	cc.listeners["10.0.0.2:8080"](balancer.SubConnState{ConnectivityState: connectivity.Ready})
	cc.listeners["10.0.0.3:8080"](balancer.SubConnState{ConnectivityState: connectivity.Ready})
	cc.listeners["10.0.0.1:8080"](balancer.SubConnState{ConnectivityState: connectivity.Ready})

	last := cc.states[len(cc.states)-1]
	var order []string
	for i := 0; i < 3; i++ {
		result, err := last.Picker.Pick(balancer.PickInfo{Ctx: ctxWithLane("")})
		require.NoError(t, err)
		order = append(order, result.SubConn.(*trackedSubConn).addr)
	}

	assert.Equal(t, []string{"10.0.0.1:8080", "10.0.0.2:8080", "10.0.0.3:8080"}, order)
}

func TestLaneBalancerClose(t *testing.T) {
	cc := newFakeBalancerClientConn()
	b := builder{}.Build(cc, balancer.BuildOptions{})
	require.NoError(t, b.UpdateClientConnState(balancer.ClientConnState{
		ResolverState: resolver.State{Addresses: []resolver.Address{{Addr: "10.0.0.1:8080"}}},
	}))

	b.Close()

	assert.Equal(t, 1, cc.subConns["10.0.0.1:8080"].shutdowns)
}

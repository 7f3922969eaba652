package client

import (
	"context"
	"fmt"
	"time"

	grpc_retry "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"

	"lanemesh/pkg/balancer"
	"lanemesh/pkg/interceptors"
)

// ClientConfig описывает параметры подключения к одному прямому (не cloud://)
// адресу через NewGRPCClient.
type ClientConfig struct {
	Address      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// NewGRPCClient создает соединение с Retry и Timeout, но без lane-aware
// резолвинга - используется для прямых (не cloud://) адресов.
func NewGRPCClient(_ context.Context, cfg ClientConfig) (*grpc.ClientConn, error) {
	opts := []grpc_retry.CallOption{
		grpc_retry.WithBackoff(grpc_retry.BackoffLinear(cfg.RetryBackoff)),
		grpc_retry.WithCodes(codes.Unavailable, codes.Aborted, codes.DeadlineExceeded),
		grpc_retry.WithMax(uint(cfg.MaxRetries)),
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(
			interceptors.TraceUnaryClientInterceptor(),
			grpc_retry.UnaryClientInterceptor(opts...),
		),
		grpc.WithChainStreamInterceptor(
			interceptors.TraceStreamClientInterceptor(),
			grpc_retry.StreamClientInterceptor(opts...),
		),
	}

	return grpc.NewClient(cfg.Address, dialOpts...)
}

// MeshDialConfig описывает parameters for dialing a cloud:// target through
// the lane-aware resolver and balancer (C4/C5, spec §4.4-§4.5).
type MeshDialConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// DialMesh opens a *grpc.ClientConn to target (a "cloud:///service.namespace"
// or "cloud:///service.namespace:port" URI) using the resolver registered
// under discovery.Scheme and the lane-aware balancer registered under
// balancer.Name. The resolver and balancer builders must
// already be registered once at process start via discovery.RegisterBuilder
// and balancer.Register - DialMesh only wires per-call trace propagation and
// retry on top of them.
func DialMesh(target string, cfg MeshDialConfig) (*grpc.ClientConn, error) {
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}

	retryOpts := []grpc_retry.CallOption{
		grpc_retry.WithBackoff(grpc_retry.BackoffLinear(cfg.RetryBackoff)),
		grpc_retry.WithCodes(codes.Unavailable, codes.Aborted, codes.DeadlineExceeded),
		grpc_retry.WithMax(uint(cfg.MaxRetries)),
	}

	serviceConfig := fmt.Sprintf(`{"loadBalancingConfig": [{"%s": {}}]}`, balancer.Name)

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultServiceConfig(serviceConfig),
		grpc.WithChainUnaryInterceptor(
			interceptors.TraceUnaryClientInterceptor(),
			grpc_retry.UnaryClientInterceptor(retryOpts...),
		),
		grpc.WithChainStreamInterceptor(
			interceptors.TraceStreamClientInterceptor(),
			grpc_retry.StreamClientInterceptor(retryOpts...),
		),
	}

	return grpc.NewClient(target, dialOpts...)
}

package main

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/health/grpc_health_v1"

	"lanemesh/pkg/balancer"
	"lanemesh/pkg/client"
	"lanemesh/pkg/config"
	"lanemesh/pkg/discovery"
	"lanemesh/pkg/logger"
	"lanemesh/pkg/metrics"
	"lanemesh/pkg/server"
	"lanemesh/pkg/telemetry"
)

// demoRegistryID is the registry-side service identifier this instance
// registers itself under (spec §4.6). A real deployment would use the
// Cloud Map service ID for "meshdemo.default"; this command uses the same
// "service.namespace" key the resolver looks instances up under so the
// in-memory registry round-trips self-registration into its own discovery.
const demoRegistryID = "meshdemo.default"

func main() {
	cfg, err := config.LoadWithServiceDefaults("meshdemo", 50060)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		return
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx := context.Background()

	if cfg.Tracing.Enabled {
		if _, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		}); err != nil {
			logger.Log.Warn("failed to init telemetry", "error", err)
		}
	}

	m := metrics.InitMetrics(cfg.Metrics.Namespace, cfg.App.Name)
	bm := balancer.NewMetrics(cfg.Metrics.Namespace, "balancer")

	// Seed a fixed instance table so DiscoverInstances has something to
	// find even with no AWS credentials on hand: two backends on the
	// default lane, one on a "canary" lane.
	registry := newInMemoryRegistry(map[string][]discovery.Instance{
		instanceKey("default", "orders"): {
			{Host: "10.0.1.10", Attributes: map[string]string{discovery.AttrPortCanonical: "9000", discovery.AttrLane: discovery.DefaultLane}},
			{Host: "10.0.1.11", Attributes: map[string]string{discovery.AttrPortCanonical: "9000", discovery.AttrLane: discovery.DefaultLane}},
			{Host: "10.0.1.20", Attributes: map[string]string{discovery.AttrPortCanonical: "9000", discovery.AttrLane: "canary"}},
		},
	})

	dnsResolver, err := discovery.NewMiekgDNSResolver()
	if err != nil {
		logger.Log.Warn("failed to build DNS fallback resolver", "error", err)
	}

	discovery.RegisterBuilder(discovery.ResolverConfig{
		Registry:        registry,
		DNS:             dnsResolver,
		PollInterval:    cfg.Resolver.RefreshInterval,
		DNSFallback:     cfg.Resolver.LogDNSFallback,
		DefaultGRPCPort: cfg.Resolver.DefaultPort,
		Metrics:         m,
	})
	balancer.Register(bm)

	registrar := discovery.NewRegistrar(discovery.RegistrarConfig{
		Registry:   registry,
		RegistryID: demoRegistryID,
		Metadata: staticMetadataSource{meta: discovery.LocalMetadata{
			ClusterID:   "local",
			TaskID:      "meshdemo-0",
			ServiceName: cfg.App.Name,
			Host:        "127.0.0.1",
			Port:        cfg.GRPC.Port,
			Lane:        "default",
		}},
		Attempts: cfg.Registrar.Attempts,
		Delay:    cfg.Registrar.Backoff,
		Metrics:  m,
	})

	srv := server.NewWithOptions(cfg, &server.ServerOptions{Registrar: registrar})

	go demoDialLoop(ctx, cfg)

	logger.Info("Starting mesh demo service",
		"port", cfg.GRPC.Port,
		"environment", cfg.App.Environment,
		"version", cfg.App.Version,
	)

	if err := srv.Run(); err != nil {
		logger.Log.Error("server failed", "error", err)
	}
}

// demoDialLoop periodically dials each configured cloud:// target through
// DialMesh and calls the standard gRPC health check against it, to exercise
// C1-C5 end to end: trace propagation on the outgoing call, name resolution
// against the registry/DNS, and lane-aware picking of the backend.
func demoDialLoop(ctx context.Context, cfg *config.Config) {
	if len(cfg.Demo.Targets) == 0 {
		return
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		for name, target := range cfg.Demo.Targets {
			dialOnce(ctx, name, target)
		}
		<-ticker.C
	}
}

func dialOnce(ctx context.Context, name, target string) {
	conn, err := client.DialMesh(target, client.MeshDialConfig{MaxRetries: 2, RetryBackoff: 200 * time.Millisecond})
	if err != nil {
		logger.Log.Error("failed to dial mesh target", "target_name", name, "target", target, "error", err)
		return
	}
	defer conn.Close()

	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	healthClient := grpc_health_v1.NewHealthClient(conn)
	resp, err := healthClient.Check(callCtx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		logger.Log.Warn("mesh health check failed", "target_name", name, "target", target, "error", err)
		return
	}
	logger.Log.Info("mesh health check ok", "target_name", name, "target", target, "status", resp.Status.String())
}

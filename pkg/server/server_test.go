package server

import (
	"testing"

	"lanemesh/pkg/config"
	"lanemesh/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func init() {
	logger.Init("error")
}

func TestNewServer(t *testing.T) {
	cfg := &config.Config{
		App: config.AppConfig{Name: "test-app"},
		GRPC: config.GRPCConfig{
			Port:      50051,
			KeepAlive: config.KeepAliveConfig{},
		},
	}

	srv := New(cfg)
	assert.NotNil(t, srv)
	assert.NotNil(t, srv.GetEngine())
}

func TestNewServer_WithOptions(t *testing.T) {
	cfg := &config.Config{
		App:  config.AppConfig{Name: "test-app"},
		GRPC: config.GRPCConfig{Port: 50052},
	}

	opts := &ServerOptions{
		Registrar: nil,
	}

	srv := NewWithOptions(cfg, opts)
	assert.NotNil(t, srv)
}

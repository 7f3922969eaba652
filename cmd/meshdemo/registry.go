package main

import (
	"context"
	"fmt"
	"sync"

	"lanemesh/pkg/discovery"
)

// inMemoryRegistry is a stand-in RegistryClient for environments with no
// reachable Cloud Map namespace — it seeds a fixed instance table at
// startup and serves DiscoverInstances/RegisterInstance against it, so this
// command can demonstrate lane-aware resolution and self-registration
// without any AWS credentials.
type inMemoryRegistry struct {
	mu        sync.Mutex
	instances map[string][]discovery.Instance // keyed by "service.namespace"
}

func newInMemoryRegistry(seed map[string][]discovery.Instance) *inMemoryRegistry {
	r := &inMemoryRegistry{instances: make(map[string][]discovery.Instance)}
	for k, v := range seed {
		r.instances[k] = append([]discovery.Instance(nil), v...)
	}
	return r
}

func (r *inMemoryRegistry) DiscoverInstances(_ context.Context, namespace, service string) ([]discovery.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]discovery.Instance(nil), r.instances[service+"."+namespace]...), nil
}

func (r *inMemoryRegistry) RegisterInstance(_ context.Context, registryID, instanceID string, attrs map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[registryID] = append(r.instances[registryID], discovery.Instance{
		Host:       attrs[discovery.AttrIPv4Canonical],
		Attributes: attrs,
	})
	_ = instanceID
	return nil
}

// staticMetadataSource feeds the registrar a fixed LocalMetadata record,
// standing in for discovery.ECSMetadataSource when no ECS task metadata
// endpoint is present (e.g. running this command on a laptop).
type staticMetadataSource struct {
	meta discovery.LocalMetadata
}

func (s staticMetadataSource) ReadLocal(context.Context) (discovery.LocalMetadata, error) {
	return s.meta, nil
}

func instanceKey(namespace, service string) string {
	return fmt.Sprintf("%s.%s", service, namespace)
}

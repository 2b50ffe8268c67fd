// Package metrics provides Prometheus metrics collection for the NFS client.
//
// All metrics are optional. If the registry is not initialized, the
// constructors in pkg/metrics/prometheus return no-op implementations, so the
// client runs the same code path with or without collection enabled.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	rpcMetrics := prometheus.NewRPCMetrics()
//	cacheMetrics := prometheus.NewHandleCacheMetrics()
//
//	// Or use nil for no-op behavior
//	client := rpc.NewClient(transport, rpc.ClientConfig{Metrics: nil})
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Namespace prefixes every metric name exported by the client.
const Namespace = "nfsclient"

var (
	// registry is written once by InitRegistry and read many times
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry and registers the
// Go runtime and process collectors on it.
//
// Safe to call multiple times; subsequent calls are ignored. If it is never
// called, GetRegistry returns nil and all constructors return no-op
// implementations.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace}),
		)
		registry = reg
	})
}

// GetRegistry returns the global Prometheus registry, or nil when metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

package config

import (
	"github.com/marmos91/nfsclient/pkg/metrics"
	promMetrics "github.com/marmos91/nfsclient/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// RPCMetrics records calls made by every RPC client (never nil)
	RPCMetrics metrics.RPCMetrics

	// CacheMetrics records handle cache hits and evictions (never nil)
	CacheMetrics metrics.HandleCacheMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
//
// Call once per process: Prometheus collectors register globally.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			Server:       nil,
			RPCMetrics:   metrics.NewNoopRPCMetrics(),
			CacheMetrics: metrics.NewNoopHandleCacheMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Metrics.Port,
	})

	return &MetricsResult{
		Server:       server,
		RPCMetrics:   promMetrics.NewRPCMetrics(),
		CacheMetrics: promMetrics.NewHandleCacheMetrics(),
	}
}

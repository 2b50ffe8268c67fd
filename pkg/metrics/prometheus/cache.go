package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/nfsclient/pkg/metrics"
)

type handleCacheMetrics struct {
	lookups   *prometheus.CounterVec
	evictions *prometheus.CounterVec
}

// NewHandleCacheMetrics creates a Prometheus-backed HandleCacheMetrics.
//
// Returns a no-op implementation if metrics are not enabled.
func NewHandleCacheMetrics() metrics.HandleCacheMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopHandleCacheMetrics()
	}
	return newHandleCacheMetrics(metrics.GetRegistry())
}

func newHandleCacheMetrics(reg prometheus.Registerer) *handleCacheMetrics {
	return &handleCacheMetrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "handle_cache_lookups_total",
				Help:      "Handle cache lookups by backend and result",
			},
			[]string{"backend", "result"},
		),
		evictions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "handle_cache_evictions_total",
				Help:      "Handle cache entries dropped by expiry or capacity",
			},
			[]string{"backend"},
		),
	}
}

func (m *handleCacheMetrics) RecordHit(backend string) {
	m.lookups.WithLabelValues(backend, "hit").Inc()
}

func (m *handleCacheMetrics) RecordMiss(backend string) {
	m.lookups.WithLabelValues(backend, "miss").Inc()
}

func (m *handleCacheMetrics) RecordEviction(backend string) {
	m.evictions.WithLabelValues(backend).Inc()
}

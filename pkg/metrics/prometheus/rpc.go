// Package prometheus provides Prometheus-backed implementations of the
// interfaces in pkg/metrics.
package prometheus

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
	"github.com/marmos91/nfsclient/pkg/metrics"
)

// rpcMetrics is the Prometheus implementation of metrics.RPCMetrics.
type rpcMetrics struct {
	callsTotal    *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	callsInFlight *prometheus.GaugeVec
	retransmits   *prometheus.CounterVec
	bytes         *prometheus.CounterVec
}

// NewRPCMetrics creates a Prometheus-backed RPCMetrics.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewRPCMetrics() metrics.RPCMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopRPCMetrics()
	}
	return newRPCMetrics(metrics.GetRegistry())
}

func newRPCMetrics(reg prometheus.Registerer) *rpcMetrics {
	return &rpcMetrics{
		callsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "rpc_calls_total",
				Help:      "Total number of RPC calls by program, procedure and outcome",
			},
			[]string{"program", "procedure", "status"},
		),
		callDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metrics.Namespace,
				Name:      "rpc_call_duration_seconds",
				Help:      "Duration of RPC calls in seconds, including retransmissions",
				Buckets: []float64{
					0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025,
					0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
				},
			},
			[]string{"program", "procedure"},
		),
		callsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metrics.Namespace,
				Name:      "rpc_calls_in_flight",
				Help:      "Current number of outstanding RPC calls",
			},
			[]string{"program", "procedure"},
		),
		retransmits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "rpc_retransmits_total",
				Help:      "Total number of datagram retransmissions",
			},
			[]string{"program", "procedure"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "rpc_bytes_total",
				Help:      "Total RPC message bytes by direction",
			},
			[]string{"direction"},
		),
	}
}

// callStatus maps an error to a low-cardinality label value.
func callStatus(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, rpcerr.ErrTimeout) {
		return "timeout"
	}
	if kind := rpcerr.KindOf(err); kind != 0 {
		return kind.String()
	}
	return "error"
}

func (m *rpcMetrics) RecordCall(program, procedure string, duration time.Duration, err error) {
	m.callsTotal.WithLabelValues(program, procedure, callStatus(err)).Inc()
	m.callDuration.WithLabelValues(program, procedure).Observe(duration.Seconds())
}

func (m *rpcMetrics) RecordCallStart(program, procedure string) {
	m.callsInFlight.WithLabelValues(program, procedure).Inc()
}

func (m *rpcMetrics) RecordCallEnd(program, procedure string) {
	m.callsInFlight.WithLabelValues(program, procedure).Dec()
}

func (m *rpcMetrics) RecordRetransmit(program, procedure string) {
	m.retransmits.WithLabelValues(program, procedure).Inc()
}

func (m *rpcMetrics) RecordBytes(direction string, bytes int) {
	m.bytes.WithLabelValues(direction).Add(float64(bytes))
}

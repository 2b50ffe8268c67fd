package metrics

import "time"

// RPCMetrics provides observability for RPC client calls.
//
// Implementations collect call counts, latencies, retransmissions and wire
// bytes. This interface is optional: a nil RPCMetrics passed to the RPC
// client is replaced by a no-op implementation.
//
// Example usage:
//
//	metrics.InitRegistry()
//	m := prometheus.NewRPCMetrics()
//	client := rpc.NewClient(transport, rpc.ClientConfig{Metrics: m, ...})
type RPCMetrics interface {
	// RecordCall records a completed call.
	//
	// Parameters:
	//   - program: program name (e.g., "mount", "nfs", "portmap")
	//   - procedure: procedure name (e.g., "MNT", "GETATTR")
	//   - duration: time from StartCall to the validated reply header
	//   - err: error if the call failed, nil if successful
	RecordCall(program, procedure string, duration time.Duration, err error)

	// RecordCallStart increments the in-flight call gauge.
	RecordCallStart(program, procedure string)

	// RecordCallEnd decrements the in-flight call gauge.
	RecordCallEnd(program, procedure string)

	// RecordRetransmit counts one datagram retransmission.
	RecordRetransmit(program, procedure string)

	// RecordBytes records bytes sent or received.
	//
	// Parameters:
	//   - direction: "sent" or "received"
	//   - bytes: message size without record marking
	RecordBytes(direction string, bytes int)
}

// HandleCacheMetrics provides observability for the path to file handle cache.
type HandleCacheMetrics interface {
	RecordHit(backend string)
	RecordMiss(backend string)
	RecordEviction(backend string)
}

// NewNoopRPCMetrics returns an RPCMetrics that discards everything.
func NewNoopRPCMetrics() RPCMetrics {
	return noopRPCMetrics{}
}

// NewNoopHandleCacheMetrics returns a HandleCacheMetrics that discards everything.
func NewNoopHandleCacheMetrics() HandleCacheMetrics {
	return noopHandleCacheMetrics{}
}

type noopRPCMetrics struct{}

func (noopRPCMetrics) RecordCall(program, procedure string, duration time.Duration, err error) {}
func (noopRPCMetrics) RecordCallStart(program, procedure string)                             {}
func (noopRPCMetrics) RecordCallEnd(program, procedure string)                               {}
func (noopRPCMetrics) RecordRetransmit(program, procedure string)                            {}
func (noopRPCMetrics) RecordBytes(direction string, bytes int)                               {}

type noopHandleCacheMetrics struct{}

func (noopHandleCacheMetrics) RecordHit(backend string)      {}
func (noopHandleCacheMetrics) RecordMiss(backend string)     {}
func (noopHandleCacheMetrics) RecordEviction(backend string) {}

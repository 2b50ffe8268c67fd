package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys. RPC keys follow the OpenTelemetry rpc.* conventions where
// one exists.
const (
	AttrRPCSystem    = "rpc.system"
	AttrRPCXID       = "rpc.xid"
	AttrRPCProgram   = "rpc.program"
	AttrRPCVersion   = "rpc.version"
	AttrRPCProcedure = "rpc.method"
	AttrRPCAuthType  = "rpc.auth_type"
	AttrRPCAttempt   = "rpc.attempt"
	AttrRPCTransport = "network.transport"

	AttrNFSHandle = "nfs.handle"
	AttrNFSPath   = "nfs.path"
	AttrNFSStatus = "nfs.status"
	AttrNFSCookie = "nfs.cookie"
	AttrNFSEOF    = "nfs.eof"

	AttrCacheHit = "cache.hit"
)

// Events recorded on call spans.
const (
	EventRetransmit = "rpc.retransmit"
	EventStaleReply = "rpc.stale_reply"
	EventReconnect  = "rpc.reconnect"
)

func RPCSystem() attribute.KeyValue {
	return attribute.String(AttrRPCSystem, "onc_rpc")
}

// RPCXID returns an attribute for RPC transaction ID
func RPCXID(xid uint32) attribute.KeyValue {
	return attribute.Int64(AttrRPCXID, int64(xid))
}

func RPCProgram(name string) attribute.KeyValue {
	return attribute.String(AttrRPCProgram, name)
}

func RPCVersion(vers uint32) attribute.KeyValue {
	return attribute.Int64(AttrRPCVersion, int64(vers))
}

func RPCProcedure(name string) attribute.KeyValue {
	return attribute.String(AttrRPCProcedure, name)
}

func RPCAuthType(flavor uint32) attribute.KeyValue {
	return attribute.Int64(AttrRPCAuthType, int64(flavor))
}

func RPCAttempt(n int) attribute.KeyValue {
	return attribute.Int(AttrRPCAttempt, n)
}

func RPCTransport(network string) attribute.KeyValue {
	return attribute.String(AttrRPCTransport, network)
}

// NFSHandle returns an attribute for a file handle in hex.
func NFSHandle(handle []byte) attribute.KeyValue {
	return attribute.String(AttrNFSHandle, fmt.Sprintf("%x", handle))
}

func NFSPath(path string) attribute.KeyValue {
	return attribute.String(AttrNFSPath, path)
}

func NFSStatus(status uint32) attribute.KeyValue {
	return attribute.Int64(AttrNFSStatus, int64(status))
}

func NFSCookie(cookie uint32) attribute.KeyValue {
	return attribute.Int64(AttrNFSCookie, int64(cookie))
}

func NFSEOF(eof bool) attribute.KeyValue {
	return attribute.Bool(AttrNFSEOF, eof)
}

func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

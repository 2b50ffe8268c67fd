package rpc

import (
	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

// RPCCallMessage is the header of every RPC request.
//
// Wire Format (XDR encoding):
//   - XID:        4 bytes (transaction identifier)
//   - MsgType:    4 bytes (0 for CALL)
//   - RPCVersion: 4 bytes (2)
//   - Program:    4 bytes
//   - Version:    4 bytes
//   - Procedure:  4 bytes
//   - Cred:       flavor, length, body, padding
//   - Verf:       flavor, length, body, padding
//   - [procedure-specific arguments follow]
//
// Reference: RFC 1057 Section 8
type RPCCallMessage struct {
	XID        uint32
	MsgType    uint32
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
	Cred       OpaqueAuth
	Verf       OpaqueAuth
}

// RPCReplyMessage is the header of an accepted RPC reply.
//
// Wire Format (XDR encoding):
//   - XID:        4 bytes (echoed from the call)
//   - MsgType:    4 bytes (1 for REPLY)
//   - ReplyState: 4 bytes (0=MSG_ACCEPTED, 1=MSG_DENIED)
//   - [if MSG_ACCEPTED:]
//   - Verf:       variable
//   - AcceptStat: 4 bytes
//   - [if SUCCESS: procedure results follow]
//   - [if PROG_MISMATCH: low and high versions follow]
//
// The struct form is only used to marshal replies in the loopback server.
// The client decodes replies field by field in ReadReplyHeader so that a
// denied reply, which has a different shape, is handled.
type RPCReplyMessage struct {
	XID        uint32
	MsgType    uint32
	ReplyState uint32
	Verf       OpaqueAuth
	AcceptStat uint32
}

// OpaqueAuth is a credential or verifier: a flavor plus an uninterpreted body.
//
// Reference: RFC 1057 Section 9
type OpaqueAuth struct {
	Flavor uint32

	// Body is at most MaxAuthBytes long. The xdr:"opaque" tag makes
	// xdr2.Marshal encode it as variable-length opaque data.
	Body []byte `xdr:"opaque"`
}

// NullAuth returns the AUTH_NULL credential, also used as the verifier of
// every call.
func NullAuth() OpaqueAuth {
	return OpaqueAuth{Flavor: AuthNull, Body: []byte{}}
}

// GetAuthFlavor returns the credential flavor of the call.
func (c *RPCCallMessage) GetAuthFlavor() uint32 {
	return c.Cred.Flavor
}

// GetAuthBody returns the raw credential body of the call.
func (c *RPCCallMessage) GetAuthBody() []byte {
	return c.Cred.Body
}

// PackOpaqueAuth writes flavor, length and padded body.
func PackOpaqueAuth(p *xdr.Packer, a OpaqueAuth) {
	p.PackUint(a.Flavor)
	p.PackOpaque(a.Body)
}

// UnpackOpaqueAuth reads a credential or verifier.
func UnpackOpaqueAuth(u *xdr.Unpacker) (OpaqueAuth, error) {
	flavor, err := u.UnpackUint()
	if err != nil {
		return OpaqueAuth{}, err
	}

	body, err := u.UnpackOpaque()
	if err != nil {
		return OpaqueAuth{}, err
	}
	if len(body) > MaxAuthBytes {
		return OpaqueAuth{}, rpcerr.Framing("unpack_auth", "auth body of %d bytes exceeds %d", len(body), MaxAuthBytes)
	}

	return OpaqueAuth{Flavor: flavor, Body: body}, nil
}

// PackCallHeader writes the call header for msg. MsgType and RPCVersion are
// always written as CALL and 2.
func PackCallHeader(p *xdr.Packer, msg *RPCCallMessage) {
	p.PackUint(msg.XID)
	p.PackUint(RPCCall)
	p.PackUint(RPCVersion)
	p.PackUint(msg.Program)
	p.PackUint(msg.Version)
	p.PackUint(msg.Procedure)
	PackOpaqueAuth(p, msg.Cred)
	PackOpaqueAuth(p, msg.Verf)
}

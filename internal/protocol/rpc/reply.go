package rpc

import (
	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

// ReplyHeader is the validated part of an accepted, successful reply.
type ReplyHeader struct {
	XID  uint32
	Verf OpaqueAuth
}

// ReadReplyHeader decodes and validates a reply header from u.
//
// On success the cursor is positioned at the procedure results. Every
// rejection is a protocol error carrying the raw status:
//   - xid differs from want: ReasonXIDMismatch, Status = received xid
//   - msg_type is not REPLY: ReasonNotReply, Status = msg_type
//   - MSG_DENIED: ReasonDenied, Status = reject_stat
//   - accept_stat != SUCCESS: ReasonAcceptStat, Status = accept_stat
//
// A truncated header yields a truncation error.
func ReadReplyHeader(u *xdr.Unpacker, want uint32) (*ReplyHeader, error) {
	xid, err := u.UnpackUint()
	if err != nil {
		return nil, err
	}
	if xid != want {
		return nil, rpcerr.Protocol("reply", rpcerr.ReasonXIDMismatch, xid,
			"xid 0x%08x does not match call 0x%08x", xid, want)
	}

	mtype, err := u.UnpackUint()
	if err != nil {
		return nil, err
	}
	if mtype != RPCReply {
		return nil, rpcerr.Protocol("reply", rpcerr.ReasonNotReply, mtype,
			"message type %d is not REPLY", mtype)
	}

	stat, err := u.UnpackUint()
	if err != nil {
		return nil, err
	}

	switch stat {
	case RPCMsgAccepted:
	case RPCMsgDenied:
		return nil, readRejection(u)
	default:
		return nil, rpcerr.Protocol("reply", rpcerr.ReasonDenied, stat,
			"unknown reply_stat %d", stat)
	}

	verf, err := UnpackOpaqueAuth(u)
	if err != nil {
		return nil, err
	}

	accept, err := u.UnpackUint()
	if err != nil {
		return nil, err
	}

	switch accept {
	case RPCSuccess:
		return &ReplyHeader{XID: xid, Verf: verf}, nil
	case RPCProgMismatch:
		low, high, err := unpackRange(u)
		if err != nil {
			return nil, err
		}
		return nil, rpcerr.Protocol("reply", rpcerr.ReasonAcceptStat, accept,
			"PROG_MISMATCH: server supports versions %d-%d", low, high)
	default:
		return nil, rpcerr.Protocol("reply", rpcerr.ReasonAcceptStat, accept,
			"call not executed: %s", AcceptStatString(accept))
	}
}

func readRejection(u *xdr.Unpacker) error {
	reject, err := u.UnpackUint()
	if err != nil {
		return err
	}

	switch reject {
	case RPCMismatch:
		low, high, err := unpackRange(u)
		if err != nil {
			return err
		}
		return rpcerr.Protocol("reply", rpcerr.ReasonDenied, reject,
			"RPC_MISMATCH: server supports RPC versions %d-%d", low, high)
	case RPCAuthError:
		authStat, err := u.UnpackUint()
		if err != nil {
			return err
		}
		return rpcerr.Protocol("reply", rpcerr.ReasonDenied, reject,
			"AUTH_ERROR: %s", AuthStatString(authStat))
	default:
		return rpcerr.Protocol("reply", rpcerr.ReasonDenied, reject,
			"denied with reject_stat %d", reject)
	}
}

func unpackRange(u *xdr.Unpacker) (uint32, uint32, error) {
	low, err := u.UnpackUint()
	if err != nil {
		return 0, 0, err
	}
	high, err := u.UnpackUint()
	if err != nil {
		return 0, 0, err
	}
	return low, high, nil
}

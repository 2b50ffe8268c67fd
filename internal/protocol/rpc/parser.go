package rpc

import (
	"bytes"
	"fmt"

	xdr2 "github.com/rasky/go-xdr/xdr2"

	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

// The functions in this file parse calls and build replies from the server
// side. The client never calls them; they back the loopback server in
// rpctest and let tests assert on exactly what went over the wire.

// ReadCall parses an RPC call message and returns the header together with
// the procedure arguments that follow it.
//
// The header is decoded with xdr2.Unmarshal; the byte count it reports marks
// where the arguments start.
func ReadCall(data []byte) (*RPCCallMessage, []byte, error) {
	call := &RPCCallMessage{}

	n, err := xdr2.Unmarshal(bytes.NewReader(data), call)
	if err != nil {
		return nil, nil, fmt.Errorf("unmarshal RPC call: %w", err)
	}

	if call.MsgType != RPCCall {
		return nil, nil, fmt.Errorf("expected CALL (0), got %d", call.MsgType)
	}
	if call.RPCVersion != RPCVersion {
		return nil, nil, fmt.Errorf("unsupported RPC version %d", call.RPCVersion)
	}

	return call, data[n:], nil
}

// MakeSuccessReply builds an accepted, successful reply carrying the
// XDR-encoded results in data.
func MakeSuccessReply(xid uint32, data []byte) ([]byte, error) {
	return makeAcceptedReply(xid, RPCSuccess, data)
}

// MakeErrorReply builds an accepted reply with a non-success accept_stat.
func MakeErrorReply(xid uint32, acceptStat uint32) ([]byte, error) {
	return makeAcceptedReply(xid, acceptStat, nil)
}

// MakeProgMismatchReply builds a PROG_MISMATCH reply advertising the
// supported version range.
func MakeProgMismatchReply(xid, low, high uint32) ([]byte, error) {
	p := xdr.NewPacker()
	p.PackUint(low)
	p.PackUint(high)
	return makeAcceptedReply(xid, RPCProgMismatch, p.Bytes())
}

// MakeDeniedReply builds a MSG_DENIED reply. For RPC_MISMATCH detail is the
// low and high versions; for AUTH_ERROR it is the auth_stat.
func MakeDeniedReply(xid, rejectStat uint32, detail ...uint32) []byte {
	p := xdr.NewPacker()
	p.PackUint(xid)
	p.PackUint(RPCReply)
	p.PackUint(RPCMsgDenied)
	p.PackUint(rejectStat)
	for _, d := range detail {
		p.PackUint(d)
	}
	return append([]byte(nil), p.Bytes()...)
}

func makeAcceptedReply(xid, acceptStat uint32, data []byte) ([]byte, error) {
	reply := RPCReplyMessage{
		XID:        xid,
		MsgType:    RPCReply,
		ReplyState: RPCMsgAccepted,
		Verf:       NullAuth(),
		AcceptStat: acceptStat,
	}

	// reply header is 24 bytes with an AUTH_NULL verifier
	buf := bytes.NewBuffer(make([]byte, 0, 24+len(data)))

	if _, err := xdr2.Marshal(buf, &reply); err != nil {
		return nil, fmt.Errorf("marshal reply: %w", err)
	}
	buf.Write(data)

	return buf.Bytes(), nil
}

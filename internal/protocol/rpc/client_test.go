package rpc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfsclient/internal/protocol/rpc"
	"github.com/marmos91/nfsclient/internal/protocol/rpc/rpctest"
	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

const (
	testProg = 200000
	testVers = 1
	procEcho = 1
)

// echoServer answers procEcho with the uint it received plus one.
func echoServer() *rpctest.Server {
	srv := rpctest.NewServer()
	srv.Handle(testProg, testVers, procEcho, func(c *rpctest.Call, res *xdr.Packer) error {
		v, err := c.ArgsUnpacker().UnpackUint()
		if err != nil {
			return err
		}
		res.PackUint(v + 1)
		return nil
	})
	return srv
}

func newTestClient(t rpc.Transport) *rpc.Client {
	return rpc.NewClient(t, rpc.ClientConfig{
		Program:     testProg,
		Version:     testVers,
		ProgramName: "test",
	})
}

func echo(ctx context.Context, c *rpc.Client, v uint32) (uint32, error) {
	var out uint32
	err := c.Call(ctx, procEcho,
		func(p *xdr.Packer) error {
			p.PackUint(v)
			return nil
		},
		func(u *xdr.Unpacker) error {
			var err error
			out, err = u.UnpackUint()
			return err
		})
	return out, err
}

// ============================================================================
// State Machine Tests
// ============================================================================

func TestClientStateMachine(t *testing.T) {
	srv := echoServer()
	c := newTestClient(srv)
	assert.Equal(t, rpc.StateIdle, c.State())

	p, err := c.StartCall(procEcho)
	require.NoError(t, err)
	assert.Equal(t, rpc.StateCallStarted, c.State())
	p.PackUint(41)

	u, err := c.DoCall(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rpc.StateReplyReceived, c.State())

	v, err := u.UnpackUint()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v)

	require.NoError(t, c.EndCall())
	assert.Equal(t, rpc.StateIdle, c.State())
}

func TestClientCallHeader(t *testing.T) {
	srv := echoServer()
	c := rpc.NewClient(srv, rpc.ClientConfig{
		Program: testProg,
		Version: testVers,
		Credentials: func(proc uint32) (rpc.OpaqueAuth, error) {
			return rpc.OpaqueAuth{Flavor: rpc.AuthUnix, Body: []byte{0, 0, 0, byte(proc)}}, nil
		},
	})

	_, err := echo(context.Background(), c, 1)
	require.NoError(t, err)

	calls := srv.Calls()
	require.Len(t, calls, 1)
	msg := calls[0].Message
	assert.Equal(t, uint32(rpc.RPCCall), msg.MsgType)
	assert.Equal(t, uint32(rpc.RPCVersion), msg.RPCVersion)
	assert.Equal(t, uint32(testProg), msg.Program)
	assert.Equal(t, uint32(testVers), msg.Version)
	assert.Equal(t, uint32(procEcho), msg.Procedure)
	assert.Equal(t, c.LastXID(), msg.XID)
	assert.Equal(t, rpc.AuthUnix, msg.Cred.Flavor)
	assert.Equal(t, []byte{0, 0, 0, procEcho}, msg.Cred.Body)
	assert.Equal(t, rpc.AuthNull, msg.Verf.Flavor)
	assert.Equal(t, []byte{0, 0, 0, 1}, calls[0].Args)
}

func TestClientFreshXIDPerCall(t *testing.T) {
	srv := echoServer()
	c := newTestClient(srv)

	for i := 0; i < 3; i++ {
		_, err := echo(context.Background(), c, uint32(i))
		require.NoError(t, err)
	}

	calls := srv.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, calls[0].Message.XID+1, calls[1].Message.XID)
	assert.Equal(t, calls[1].Message.XID+1, calls[2].Message.XID)
}

func TestClientRejectsOutOfOrderOperations(t *testing.T) {
	c := newTestClient(echoServer())

	_, err := c.DoCall(context.Background())
	assert.True(t, rpcerr.Is(err, rpcerr.KindValue))
	assert.True(t, rpcerr.Is(c.EndCall(), rpcerr.KindValue))

	_, err = c.StartCall(procEcho)
	require.NoError(t, err)
	_, err = c.StartCall(procEcho)
	assert.True(t, rpcerr.Is(err, rpcerr.KindValue))

	c.Abort()
	assert.Equal(t, rpc.StateIdle, c.State())
}

func TestClientNull(t *testing.T) {
	srv := echoServer()
	c := newTestClient(srv)

	require.NoError(t, c.Null(context.Background()))
	assert.Equal(t, uint32(rpc.ProcNull), srv.Calls()[0].Message.Procedure)
}

// ============================================================================
// Reply Validation Tests
// ============================================================================

func TestClientProtocolErrors(t *testing.T) {
	tests := []struct {
		name   string
		reply  func(c *rpctest.Call) []byte
		reason rpcerr.Reason
		status uint32
	}{
		{
			name: "XIDMismatch",
			reply: func(c *rpctest.Call) []byte {
				r, _ := rpc.MakeSuccessReply(c.Message.XID+7, nil)
				return r
			},
			reason: rpcerr.ReasonXIDMismatch,
		},
		{
			name: "NotAReply",
			reply: func(c *rpctest.Call) []byte {
				p := xdr.NewPacker()
				p.PackUint(c.Message.XID)
				p.PackUint(rpc.RPCCall)
				return p.Bytes()
			},
			reason: rpcerr.ReasonNotReply,
			status: rpc.RPCCall,
		},
		{
			name: "DeniedAuth",
			reply: func(c *rpctest.Call) []byte {
				return rpc.MakeDeniedReply(c.Message.XID, rpc.RPCAuthError, rpc.AuthTooWeak)
			},
			reason: rpcerr.ReasonDenied,
			status: rpc.RPCAuthError,
		},
		{
			name: "DeniedVersion",
			reply: func(c *rpctest.Call) []byte {
				return rpc.MakeDeniedReply(c.Message.XID, rpc.RPCMismatch, 2, 2)
			},
			reason: rpcerr.ReasonDenied,
			status: rpc.RPCMismatch,
		},
		{
			name: "ProgMismatch",
			reply: func(c *rpctest.Call) []byte {
				r, _ := rpc.MakeProgMismatchReply(c.Message.XID, 3, 4)
				return r
			},
			reason: rpcerr.ReasonAcceptStat,
			status: rpc.RPCProgMismatch,
		},
		{
			name: "GarbageArgs",
			reply: func(c *rpctest.Call) []byte {
				r, _ := rpc.MakeErrorReply(c.Message.XID, rpc.RPCGarbageArgs)
				return r
			},
			reason: rpcerr.ReasonAcceptStat,
			status: rpc.RPCGarbageArgs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := echoServer()
			srv.ReplyOnce(tt.reply)
			c := newTestClient(srv)

			_, err := echo(context.Background(), c, 1)
			require.Error(t, err)

			var rerr *rpcerr.Error
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, rpcerr.KindProtocol, rerr.Kind)
			assert.Equal(t, tt.reason, rerr.Reason)
			if tt.reason == rpcerr.ReasonXIDMismatch {
				assert.Equal(t, c.LastXID()+7, rerr.Status)
			} else {
				assert.Equal(t, tt.status, rerr.Status)
			}
			assert.Equal(t, rpc.StateIdle, c.State())

			// the client is reusable after the failure
			v, err := echo(context.Background(), c, 9)
			require.NoError(t, err)
			assert.Equal(t, uint32(10), v)
		})
	}
}

func TestClientUnknownProcedure(t *testing.T) {
	c := newTestClient(echoServer())

	err := c.Call(context.Background(), 99, nil, nil)
	status, ok := rpcerr.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, uint32(rpc.RPCProcUnavail), status)
}

func TestClientTrailingBytesAtEndCall(t *testing.T) {
	srv := rpctest.NewServer()
	srv.Handle(testProg, testVers, procEcho, func(c *rpctest.Call, res *xdr.Packer) error {
		res.PackUint(1)
		res.PackUint(2)
		return nil
	})
	c := newTestClient(srv)

	_, err := echo(context.Background(), c, 0)
	assert.True(t, rpcerr.Is(err, rpcerr.KindFraming))
	assert.Equal(t, rpc.StateIdle, c.State())
}

func TestClientTruncatedResults(t *testing.T) {
	srv := rpctest.NewServer()
	srv.Handle(testProg, testVers, procEcho, func(c *rpctest.Call, res *xdr.Packer) error {
		return nil
	})
	c := newTestClient(srv)

	_, err := echo(context.Background(), c, 0)
	assert.True(t, rpcerr.Is(err, rpcerr.KindTruncation))
	assert.Equal(t, rpc.StateIdle, c.State())
}

func TestClientTransportFailure(t *testing.T) {
	srv := echoServer()
	c := newTestClient(srv)
	require.NoError(t, srv.Close())

	_, err := echo(context.Background(), c, 0)
	assert.True(t, rpcerr.Is(err, rpcerr.KindTransport))
	assert.Equal(t, rpc.StateIdle, c.State())
}

func TestClientCredentialError(t *testing.T) {
	c := rpc.NewClient(echoServer(), rpc.ClientConfig{
		Program: testProg,
		Version: testVers,
		Credentials: func(uint32) (rpc.OpaqueAuth, error) {
			return rpc.OpaqueAuth{}, errors.New("no identity")
		},
	})

	_, err := echo(context.Background(), c, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no identity")
	assert.Equal(t, rpc.StateIdle, c.State())
}

// ============================================================================
// Datagram Retransmission Tests
// ============================================================================

func fastPolicy(retries int) rpc.RetryPolicy {
	return rpc.RetryPolicy{Timeout: time.Millisecond, MaxTimeout: 4 * time.Millisecond, Retries: retries}
}

func TestDatagramRetrySucceedsOnLastAttempt(t *testing.T) {
	const retries = 4
	dg := rpctest.NewDatagram(echoServer(), fastPolicy(retries))
	dg.DropNext(retries) // the first N-1 of N attempts are lost
	c := newTestClient(dg)

	v, err := echo(context.Background(), c, 5)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), v)
	assert.Equal(t, retries+1, dg.Sends())
}

func TestDatagramRetryExhausted(t *testing.T) {
	const retries = 3
	dg := rpctest.NewDatagram(echoServer(), fastPolicy(retries))
	dg.DropNext(100)
	c := newTestClient(dg)

	_, err := echo(context.Background(), c, 5)
	require.Error(t, err)
	assert.True(t, rpcerr.Is(err, rpcerr.KindTransport))
	assert.True(t, errors.Is(err, rpcerr.ErrTimeout))
	assert.Equal(t, retries+1, dg.Sends())
	assert.Equal(t, rpc.StateIdle, c.State())
}

func TestDatagramDropsStaleReplies(t *testing.T) {
	srv := echoServer()
	dg := rpctest.NewDatagram(srv, fastPolicy(0))
	c := newTestClient(dg)

	stale, err := rpc.MakeSuccessReply(0xdeadbeef, []byte{0, 0, 0, 1})
	require.NoError(t, err)
	srv.Inject(stale)
	srv.Inject([]byte{1, 2})

	v, err := echo(context.Background(), c, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v)
	assert.Equal(t, 1, dg.Sends())
}

func TestDatagramCancelledContext(t *testing.T) {
	dg := rpctest.NewDatagram(echoServer(), fastPolicy(5))
	dg.DropNext(100)
	c := newTestClient(dg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := echo(ctx, c, 1)
	assert.True(t, rpcerr.Is(err, rpcerr.KindTransport))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := rpc.DefaultRetryPolicy()
	assert.Equal(t, time.Second, p.Timeout)
	assert.Equal(t, 25*time.Second, p.MaxTimeout)
	assert.Equal(t, 5, p.Retries)
}

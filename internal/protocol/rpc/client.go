package rpc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
	"github.com/marmos91/nfsclient/internal/ratelimiter"
	"github.com/marmos91/nfsclient/internal/telemetry"
	"github.com/marmos91/nfsclient/pkg/metrics"
)

// State is the position of a Client in its per-call state machine:
//
//	IDLE -> CALL_STARTED -> SENT -> REPLY_RECEIVED -> IDLE
//
// Any failure returns the client to IDLE.
type State int

const (
	StateIdle State = iota
	StateCallStarted
	StateSent
	StateReplyReceived
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCallStarted:
		return "CALL_STARTED"
	case StateSent:
		return "SENT"
	case StateReplyReceived:
		return "REPLY_RECEIVED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ClientConfig binds a Client to one program version.
type ClientConfig struct {
	Program uint32
	Version uint32

	// ProgramName labels logs, spans and metrics (e.g. "mount", "nfs").
	ProgramName string

	// ProcedureName maps a procedure number to a label. Nil labels
	// procedure 0 as NULL and others as PROC<n>.
	ProcedureName func(proc uint32) string

	// Credentials selects the credential for each call. Nil sends AUTH_NULL.
	Credentials CredentialFunc

	// CallTimeout bounds a stream call when ctx carries no deadline.
	// Datagram calls are bounded by the transport's RetryPolicy instead.
	CallTimeout time.Duration

	// Metrics records call outcomes. Nil disables collection.
	Metrics metrics.RPCMetrics

	// RateLimiter paces Call. Nil does not limit.
	RateLimiter *ratelimiter.RateLimiter

	// Redial replaces a broken stream transport before the next call.
	// Nil leaves a broken transport in place, so later calls fail with
	// rpcerr.ErrBroken.
	Redial Dialer
}

// Client drives the RPC call state machine over a Transport.
//
// The Packer and Unpacker are owned by the client and reused across calls:
// StartCall resets the Packer, DoCall rebinds the Unpacker to the reply.
// A Client carries one call at a time and is not safe for concurrent use;
// callers that share one must serialize calls externally.
type Client struct {
	transport Transport
	config    ClientConfig

	packer   *xdr.Packer
	unpacker *xdr.Unpacker
	state    State
	nextXID  uint32

	// current call
	xid   uint32
	proc  uint32
	start time.Time
}

// NewClient creates an idle client over t. The client owns t; Close
// closes it.
func NewClient(t Transport, config ClientConfig) *Client {
	if config.Credentials == nil {
		config.Credentials = NullCredentials
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NewNoopRPCMetrics()
	}
	if config.ProgramName == "" {
		config.ProgramName = fmt.Sprintf("prog%d", config.Program)
	}

	return &Client{
		transport: t,
		config:    config,
		packer:    xdr.NewPacker(),
		unpacker:  xdr.NewUnpacker(nil),
		nextXID:   rand.Uint32(),
	}
}

// State returns the current state.
func (c *Client) State() State {
	return c.state
}

// Transport returns the underlying transport.
func (c *Client) Transport() Transport {
	return c.transport
}

// Program returns the program number and version the client calls.
func (c *Client) Program() (uint32, uint32) {
	return c.config.Program, c.config.Version
}

// LastXID returns the xid of the most recent call.
func (c *Client) LastXID() uint32 {
	return c.xid
}

func (c *Client) procName(proc uint32) string {
	if c.config.ProcedureName != nil {
		if name := c.config.ProcedureName(proc); name != "" {
			return name
		}
	}
	if proc == ProcNull {
		return "NULL"
	}
	return fmt.Sprintf("PROC%d", proc)
}

// StartCall resets the Packer, writes the call header for proc and returns
// the Packer for the procedure arguments.
func (c *Client) StartCall(proc uint32) (*xdr.Packer, error) {
	if c.state != StateIdle {
		return nil, rpcerr.Value("start_call", "call already in progress (state %s)", c.state)
	}

	cred, err := c.config.Credentials(proc)
	if err != nil {
		return nil, fmt.Errorf("credential for %s: %w", c.procName(proc), err)
	}

	c.xid = c.nextXID
	c.nextXID++
	c.proc = proc
	c.start = time.Now()

	c.packer.Reset()
	PackCallHeader(c.packer, &RPCCallMessage{
		XID:       c.xid,
		Program:   c.config.Program,
		Version:   c.config.Version,
		Procedure: proc,
		Cred:      cred,
		Verf:      NullAuth(),
	})

	c.state = StateCallStarted
	return c.packer, nil
}

// DoCall transmits the packed call, waits for the reply and validates its
// header. On success the returned Unpacker is positioned at the results and
// the client is in REPLY_RECEIVED; the caller decodes the results and then
// calls EndCall. On failure the client is back in IDLE.
func (c *Client) DoCall(ctx context.Context) (*xdr.Unpacker, error) {
	if c.state != StateCallStarted {
		return nil, rpcerr.Value("do_call", "no call started (state %s)", c.state)
	}

	if err := c.reconnect(ctx); err != nil {
		c.reset()
		return nil, err
	}

	program, procedure := c.config.ProgramName, c.procName(c.proc)
	ctx, span := telemetry.StartSpan(ctx, program+"."+procedure,
		telemetry.RPCSystem(),
		telemetry.RPCProgram(program),
		telemetry.RPCVersion(c.config.Version),
		telemetry.RPCProcedure(procedure),
		telemetry.RPCXID(c.xid),
	)
	defer span.End()

	c.config.Metrics.RecordCallStart(program, procedure)
	defer c.config.Metrics.RecordCallEnd(program, procedure)

	logger.Debug("RPC call: XID=0x%08x Program=%s Version=%d Procedure=%s (%d bytes)",
		c.xid, program, c.config.Version, procedure, c.packer.Len())

	c.state = StateSent
	reply, err := c.roundTrip(ctx)
	if err == nil {
		c.unpacker.Reset(reply)
		c.state = StateReplyReceived
		_, err = ReadReplyHeader(c.unpacker, c.xid)
	}

	duration := time.Since(c.start)
	c.config.Metrics.RecordCall(program, procedure, duration, err)

	if err != nil {
		logger.Debug("RPC call failed: XID=0x%08x %s.%s after %s: %v", c.xid, program, procedure, duration, err)
		telemetry.RecordError(ctx, err)
		c.breakOnDesync(err)
		c.reset()
		return nil, err
	}

	logger.Debug("RPC reply: XID=0x%08x %s.%s in %s (%d bytes)", c.xid, program, procedure, duration, len(reply))
	return c.unpacker, nil
}

// EndCall asserts the reply was fully consumed and returns to IDLE.
func (c *Client) EndCall() error {
	if c.state != StateReplyReceived {
		return rpcerr.Value("end_call", "no reply received (state %s)", c.state)
	}

	err := c.unpacker.Done()
	c.reset()
	return err
}

// Abort abandons the current call, if any, and returns to IDLE.
func (c *Client) Abort() {
	c.reset()
}

// reconnect swaps a broken stream transport for a fresh one from Redial.
func (c *Client) reconnect(ctx context.Context) error {
	b, ok := c.transport.(Breakable)
	if !ok || c.config.Redial == nil {
		return nil
	}
	cause := b.Broken()
	if cause == nil {
		return nil
	}

	t, err := c.config.Redial(ctx)
	if err != nil {
		return rpcerr.Transport("redial", err, "%s connection lost (%v)", c.config.ProgramName, cause)
	}
	_ = c.transport.Close()
	c.transport = t

	logger.Info("RPC %s reconnected after: %v", c.config.ProgramName, cause)
	telemetry.AddEvent(ctx, telemetry.EventReconnect)
	return nil
}

// breakOnDesync breaks a stream transport whose last record was not the
// reply to the current call. The real reply may still be in flight.
func (c *Client) breakOnDesync(err error) {
	b, ok := c.transport.(Breakable)
	if !ok {
		return
	}
	var rerr *rpcerr.Error
	if !errors.As(err, &rerr) || rerr.Kind != rpcerr.KindProtocol {
		return
	}
	if rerr.Reason == rpcerr.ReasonXIDMismatch || rerr.Reason == rpcerr.ReasonNotReply {
		b.Break(err)
	}
}

func (c *Client) reset() {
	c.packer.Reset()
	c.unpacker.Reset(nil)
	c.state = StateIdle
}

// Call performs a complete call: rate limiting, header, arguments, round
// trip, header validation, results and the Done check. args and results may
// be nil for procedures without arguments or results. No partial result is
// ever returned: on error the caller must discard whatever results wrote.
func (c *Client) Call(ctx context.Context, proc uint32, args func(*xdr.Packer) error, results func(*xdr.Unpacker) error) error {
	if err := c.config.RateLimiter.Wait(ctx); err != nil {
		return rpcerr.Transport("rate limit", err, "%s.%s not sent", c.config.ProgramName, c.procName(proc))
	}

	p, err := c.StartCall(proc)
	if err != nil {
		return err
	}

	if args != nil {
		if err := args(p); err != nil {
			c.Abort()
			return err
		}
	}

	u, err := c.DoCall(ctx)
	if err != nil {
		return err
	}

	if results != nil {
		if err := results(u); err != nil {
			c.Abort()
			return err
		}
	}

	return c.EndCall()
}

// Null calls procedure 0, which every program implements as a ping.
func (c *Client) Null(ctx context.Context) error {
	return c.Call(ctx, ProcNull, nil, nil)
}

// Close closes the transport.
func (c *Client) Close() error {
	c.reset()
	return c.transport.Close()
}

func (c *Client) roundTrip(ctx context.Context) ([]byte, error) {
	if rt, ok := c.transport.(Retransmitter); ok {
		return c.roundTripDatagram(ctx, rt.RetryPolicy())
	}
	return c.roundTripStream(ctx)
}

func (c *Client) roundTripStream(ctx context.Context) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok && c.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CallTimeout)
		defer cancel()
	}

	msg := c.packer.Bytes()
	if err := c.transport.Send(ctx, msg); err != nil {
		return nil, err
	}
	c.config.Metrics.RecordBytes("sent", len(msg))

	reply, err := c.transport.Recv(ctx)
	if err != nil {
		return nil, err
	}
	c.config.Metrics.RecordBytes("received", len(reply))
	return reply, nil
}

// roundTripDatagram sends the call and waits for a reply with a matching
// xid, resending with a doubling wait until the policy is exhausted.
func (c *Client) roundTripDatagram(ctx context.Context, policy RetryPolicy) ([]byte, error) {
	msg := c.packer.Bytes()
	program, procedure := c.config.ProgramName, c.procName(c.proc)
	wait := policy.Timeout

	for attempt := 0; attempt <= policy.Retries; attempt++ {
		if attempt > 0 {
			logger.Debug("RPC retransmit: XID=0x%08x %s.%s attempt %d wait %s",
				c.xid, program, procedure, attempt+1, wait)
			telemetry.AddEvent(ctx, telemetry.EventRetransmit, telemetry.RPCAttempt(attempt+1))
			c.config.Metrics.RecordRetransmit(program, procedure)
		}

		if err := c.transport.Send(ctx, msg); err != nil {
			return nil, err
		}
		c.config.Metrics.RecordBytes("sent", len(msg))

		reply, err := c.awaitReply(ctx, wait)
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, rpcerr.ErrTimeout) {
			return nil, err
		}

		wait = policy.next(wait)
	}

	logger.Warn("RPC call timed out: XID=0x%08x %s.%s after %d attempts",
		c.xid, program, procedure, policy.Retries+1)
	return nil, rpcerr.Transport("udp call", rpcerr.ErrTimeout,
		"no reply to xid 0x%08x after %d attempts", c.xid, policy.Retries+1)
}

// awaitReply receives until a datagram for the current xid arrives or wait
// elapses. Datagrams for other xids are late replies to earlier calls or
// retransmissions and are dropped.
func (c *Client) awaitReply(ctx context.Context, wait time.Duration) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	for {
		reply, err := c.transport.Recv(attemptCtx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, rpcerr.Transport("udp call", ctxErr, "xid 0x%08x abandoned", c.xid)
			}
			return nil, err
		}
		c.config.Metrics.RecordBytes("received", len(reply))

		if xid, ok := peekXID(reply); ok && xid == c.xid {
			return reply, nil
		}

		logger.Debug("RPC dropped stale datagram (%d bytes) while waiting for XID=0x%08x", len(reply), c.xid)
		telemetry.AddEvent(ctx, telemetry.EventStaleReply)
	}
}

func peekXID(msg []byte) (uint32, bool) {
	if len(msg) < 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(msg), true
}

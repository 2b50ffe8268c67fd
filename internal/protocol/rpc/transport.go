package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
)

// Transport moves whole RPC messages. Record marking, datagram boundaries
// and deadlines are the transport's concern; the Client only sees message
// bytes.
//
// Send and Recv honour ctx: a deadline bounds the operation, and
// cancellation makes a blocked call return. A Recv that gives up because of
// a deadline returns an error wrapping rpcerr.ErrTimeout.
type Transport interface {
	Send(ctx context.Context, msg []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

// Retransmitter is implemented by datagram transports. When the transport
// implements it, the Client resends a call whose reply does not arrive in
// time and discards replies whose xid does not match.
type Retransmitter interface {
	RetryPolicy() RetryPolicy
}

// Breakable is implemented by stream transports. A stream that failed an
// exchange may hold part of a record or a late reply, so it is broken:
// the connection is closed and every later Send and Recv fails with an
// error wrapping rpcerr.ErrBroken.
type Breakable interface {
	Break(cause error)

	// Broken returns the cause passed to Break, or nil.
	Broken() error
}

// Dialer opens a fresh transport to the same program, replacing a broken
// one.
type Dialer func(ctx context.Context) (Transport, error)

// RetryPolicy bounds datagram retransmission.
type RetryPolicy struct {
	// Timeout is the wait for a reply after the first send.
	Timeout time.Duration

	// MaxTimeout caps the wait, which doubles after every retransmission.
	MaxTimeout time.Duration

	// Retries is the number of retransmissions after the first send.
	// A call is sent at most Retries+1 times.
	Retries int
}

// Defaults for datagram retransmission.
const (
	DefaultUDPTimeout    = time.Second
	DefaultUDPMaxTimeout = 25 * time.Second
	DefaultUDPRetries    = 5
)

// DefaultRetryPolicy returns the default datagram retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Timeout:    DefaultUDPTimeout,
		MaxTimeout: DefaultUDPMaxTimeout,
		Retries:    DefaultUDPRetries,
	}
}

// applyDefaults fills unset fields. A zero policy becomes
// DefaultRetryPolicy; otherwise Retries is taken as given, so 0 disables
// retransmission.
func (p *RetryPolicy) applyDefaults() {
	if *p == (RetryPolicy{}) {
		*p = DefaultRetryPolicy()
		return
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultUDPTimeout
	}
	if p.MaxTimeout < p.Timeout {
		p.MaxTimeout = max(DefaultUDPMaxTimeout, p.Timeout)
	}
	if p.Retries < 0 {
		p.Retries = 0
	}
}

// next returns the wait after a retransmission.
func (p RetryPolicy) next(current time.Duration) time.Duration {
	return min(current*2, p.MaxTimeout)
}

// watchContext applies ctx's deadline through set and forces a blocked
// operation to return when ctx is cancelled. The returned func must be
// called when the operation completes.
func watchContext(ctx context.Context, set func(time.Time) error) (func(), error) {
	deadline, _ := ctx.Deadline()
	if err := set(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		// Any time in the past unblocks pending I/O.
		_ = set(time.Unix(1, 0))
	})
	return func() { stop() }, nil
}

// transportError classifies an I/O error from a socket.
func transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return rpcerr.Transport(op, fmt.Errorf("%w: %w", rpcerr.ErrTimeout, ctxErr), "deadline exceeded")
		}
		return rpcerr.Transport(op, ctxErr, "cancelled")
	}

	var netErr net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return rpcerr.Transport(op, fmt.Errorf("%w: %w", rpcerr.ErrTimeout, err), "i/o timeout")
	}
	return rpcerr.Transport(op, err, "i/o failed")
}

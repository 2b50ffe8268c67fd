package rpctest

import (
	"context"
	"sync"

	"github.com/marmos91/nfsclient/internal/protocol/rpc"
)

// Datagram wraps a Server as a datagram transport: it implements
// rpc.Retransmitter and can drop replies to simulate packet loss.
type Datagram struct {
	*Server

	policy rpc.RetryPolicy

	mu    sync.Mutex
	drop  int
	sends int
}

// NewDatagram returns a datagram transport in front of srv.
func NewDatagram(srv *Server, policy rpc.RetryPolicy) *Datagram {
	return &Datagram{Server: srv, policy: policy}
}

// DropNext discards the replies to the next n sends.
func (d *Datagram) DropNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drop = n
}

// Sends returns the number of Send calls, retransmissions included.
func (d *Datagram) Sends() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sends
}

// RetryPolicy implements rpc.Retransmitter.
func (d *Datagram) RetryPolicy() rpc.RetryPolicy {
	return d.policy
}

// Send implements rpc.Transport.
func (d *Datagram) Send(ctx context.Context, msg []byte) error {
	d.mu.Lock()
	d.sends++
	dropping := d.drop > 0
	if dropping {
		d.drop--
	}
	d.mu.Unlock()

	if dropping {
		// The call reaches the server but its reply is lost.
		_, err := d.Server.Serve(msg)
		return err
	}
	return d.Server.Send(ctx, msg)
}

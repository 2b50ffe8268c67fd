package rpc

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
)

// DefaultMaxDatagramSize is the receive buffer size for one reply datagram.
const DefaultMaxDatagramSize = 64 << 10

// DatagramConn is the connected datagram socket a UDPTransport uses.
// *net.UDPConn returned by net.Dial("udp", ...) satisfies it.
type DatagramConn interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// UDPConfig configures a datagram transport.
type UDPConfig struct {
	RetryPolicy

	// MaxDatagramSize is the largest reply accepted.
	// Default: DefaultMaxDatagramSize
	MaxDatagramSize int
}

// UDPTransport carries one RPC message per datagram. It implements
// Retransmitter: the Client resends unanswered calls per the RetryPolicy.
type UDPTransport struct {
	conn   DatagramConn
	config UDPConfig
	buf    []byte

	closeOnce sync.Once
	closeErr  error
}

// NewUDPTransport wraps a connected datagram socket.
func NewUDPTransport(conn DatagramConn, config UDPConfig) *UDPTransport {
	config.RetryPolicy.applyDefaults()
	if config.MaxDatagramSize <= 0 {
		config.MaxDatagramSize = DefaultMaxDatagramSize
	}

	return &UDPTransport{
		conn:   conn,
		config: config,
		buf:    make([]byte, config.MaxDatagramSize),
	}
}

// DialUDP creates a connected UDP socket to addr ("host:port").
func DialUDP(ctx context.Context, addr string, config UDPConfig) (*UDPTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, rpcerr.Transport("dial udp", err, "connect %s", addr)
	}

	logger.Debug("RPC UDP transport bound to %s", conn.RemoteAddr())
	return NewUDPTransport(conn, config), nil
}

// RetryPolicy implements Retransmitter.
func (t *UDPTransport) RetryPolicy() RetryPolicy {
	return t.config.RetryPolicy
}

// Send writes msg as one datagram.
func (t *UDPTransport) Send(ctx context.Context, msg []byte) error {
	if len(msg) > t.config.MaxDatagramSize {
		return rpcerr.Value("udp send", "message of %d bytes exceeds datagram limit %d", len(msg), t.config.MaxDatagramSize)
	}

	n, err := t.conn.Write(msg)
	if err != nil {
		return transportError(ctx, "udp send", err)
	}
	if n != len(msg) {
		return rpcerr.Transport("udp send", nil, "short write: %d of %d bytes", n, len(msg))
	}
	return nil
}

// Recv waits for the next datagram until ctx's deadline.
func (t *UDPTransport) Recv(ctx context.Context) ([]byte, error) {
	stop, err := watchContext(ctx, t.conn.SetReadDeadline)
	if err != nil {
		return nil, rpcerr.Transport("udp recv", err, "prepare read")
	}
	defer stop()

	n, err := t.conn.Read(t.buf)
	if err != nil {
		return nil, transportError(ctx, "udp recv", err)
	}

	return append([]byte(nil), t.buf[:n]...), nil
}

// Close closes the socket. Safe to call more than once.
func (t *UDPTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// RemoteAddr returns the server address, or nil when the socket does not
// report one.
func (t *UDPTransport) RemoteAddr() net.Addr {
	if ra, ok := t.conn.(interface{ RemoteAddr() net.Addr }); ok {
		return ra.RemoteAddr()
	}
	return nil
}

package rpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
)

// TCPConfig configures a stream transport.
type TCPConfig struct {
	// MaxRecordSize bounds a reassembled reply.
	// Default: DefaultMaxRecordSize (1MB)
	MaxRecordSize int

	// MaxFragmentSize splits outgoing calls into fragments of at most this
	// many bytes. 0 sends every call as a single fragment.
	MaxFragmentSize int
}

// TCPTransport carries RPC messages over a connection-oriented stream using
// record marking.
//
// Replies are read in order: a stream carries one outstanding call at a
// time, so the Client validates the xid of every reply but never skips one.
// Any failed Send or Recv breaks the transport (see Breakable).
type TCPTransport struct {
	conn   net.Conn
	reader *bufio.Reader
	config TCPConfig

	mu     sync.Mutex
	broken error

	closeOnce sync.Once
	closeErr  error
}

// NewTCPTransport wraps an established connection.
func NewTCPTransport(conn net.Conn, config TCPConfig) *TCPTransport {
	if config.MaxRecordSize <= 0 {
		config.MaxRecordSize = DefaultMaxRecordSize
	}

	return &TCPTransport{
		conn:   conn,
		reader: bufio.NewReader(conn),
		config: config,
	}
}

// DialTCP connects to addr ("host:port") and returns a stream transport.
func DialTCP(ctx context.Context, addr string, config TCPConfig) (*TCPTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, rpcerr.Transport("dial tcp", err, "connect %s", addr)
	}

	logger.Debug("RPC TCP transport connected to %s", conn.RemoteAddr())
	return NewTCPTransport(conn, config), nil
}

// Send writes msg as one record.
func (t *TCPTransport) Send(ctx context.Context, msg []byte) error {
	if err := t.usable("tcp send"); err != nil {
		return err
	}

	stop, err := watchContext(ctx, t.conn.SetWriteDeadline)
	if err != nil {
		return t.fail(rpcerr.Transport("tcp send", err, "prepare write"))
	}
	defer stop()

	if err := WriteRecord(t.conn, msg, t.config.MaxFragmentSize); err != nil {
		return t.fail(transportError(ctx, "tcp send", err))
	}
	return nil
}

// Recv reads the next record, reassembling fragments.
func (t *TCPTransport) Recv(ctx context.Context) ([]byte, error) {
	if err := t.usable("tcp recv"); err != nil {
		return nil, err
	}

	stop, err := watchContext(ctx, t.conn.SetReadDeadline)
	if err != nil {
		return nil, t.fail(rpcerr.Transport("tcp recv", err, "prepare read"))
	}
	defer stop()

	record, err := ReadRecord(t.reader, t.config.MaxRecordSize)
	if err != nil {
		if rpcerr.Is(err, rpcerr.KindFraming) {
			return nil, t.fail(err)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, t.fail(rpcerr.Transport("tcp recv", err, "connection closed by %s", t.conn.RemoteAddr()))
		}
		return nil, t.fail(transportError(ctx, "tcp recv", err))
	}
	return record, nil
}

// Break implements Breakable. The first cause is kept.
func (t *TCPTransport) Break(cause error) {
	t.mu.Lock()
	first := t.broken == nil
	if first {
		t.broken = cause
	}
	t.mu.Unlock()

	if first {
		logger.Debug("RPC TCP transport to %s broken: %v", t.conn.RemoteAddr(), cause)
	}
	_ = t.Close()
}

// Broken implements Breakable.
func (t *TCPTransport) Broken() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.broken
}

func (t *TCPTransport) fail(err error) error {
	t.Break(err)
	return err
}

func (t *TCPTransport) usable(op string) error {
	if cause := t.Broken(); cause != nil {
		return rpcerr.Transport(op, fmt.Errorf("%w: %v", rpcerr.ErrBroken, cause), "connection to %s unusable", t.conn.RemoteAddr())
	}
	return nil
}

// Close closes the connection. Safe to call more than once.
func (t *TCPTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// RemoteAddr returns the server address.
func (t *TCPTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

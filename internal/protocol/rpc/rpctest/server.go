// Package rpctest provides a loopback RPC server for client tests.
//
// A Server implements rpc.Transport: Send parses the call and dispatches it
// to a registered Handler, and Recv returns the queued reply. No socket is
// involved, so tests control exactly which bytes each call produces.
//
//	srv := rpctest.NewServer()
//	srv.Handle(rpc.ProgramMount, 1, mount.ProcExport, func(c *rpctest.Call, res *xdr.Packer) error {
//	    return xdr.PackList(res, exports, packExport)
//	})
//	client := rpc.NewClient(srv, rpc.ClientConfig{Program: rpc.ProgramMount, Version: 1})
package rpctest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/nfsclient/internal/protocol/rpc"
	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

// Call is a call received by the Server.
type Call struct {
	Message *rpc.RPCCallMessage

	// Args are the raw procedure arguments.
	Args []byte
}

// ArgsUnpacker returns an Unpacker over the call arguments.
func (c *Call) ArgsUnpacker() *xdr.Unpacker {
	return xdr.NewUnpacker(c.Args)
}

// Handler serves one procedure by packing its results into res.
//
// Returning an *AcceptError replies with that accept_stat; any other error
// replies SYSTEM_ERR.
type Handler func(call *Call, res *xdr.Packer) error

// RawHandler builds a whole reply message, header included.
type RawHandler func(call *Call) []byte

// AcceptError makes a Handler reply with a non-success accept_stat.
type AcceptError struct {
	Stat uint32
}

func (e *AcceptError) Error() string {
	return fmt.Sprintf("accept_stat %s", rpc.AcceptStatString(e.Stat))
}

type procKey struct {
	prog, vers, proc uint32
}

// Server is a loopback rpc.Transport.
type Server struct {
	mu       sync.Mutex
	handlers map[procKey]Handler
	programs map[uint32]bool
	raw      []RawHandler
	calls    []*Call
	replies  [][]byte
	closed   bool
}

// NewServer returns a Server with no handlers.
func NewServer() *Server {
	return &Server{
		handlers: make(map[procKey]Handler),
		programs: make(map[uint32]bool),
	}
}

// Handle registers h for a procedure.
func (s *Server) Handle(prog, vers, proc uint32, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[procKey{prog, vers, proc}] = h
	s.programs[prog] = true
}

// ReplyOnce makes the next call answered by h instead of the registered
// handlers. Queued RawHandlers are consumed in order.
func (s *Server) ReplyOnce(h RawHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = append(s.raw, h)
}

// Inject queues a raw message that the next Recv returns before any reply.
func (s *Server) Inject(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append([][]byte{msg}, s.replies...)
}

// Calls returns every call received so far.
func (s *Server) Calls() []*Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Call(nil), s.calls...)
}

// Pending returns the number of queued, unread replies.
func (s *Server) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

// Serve decodes msg as a call and returns the reply it produces.
func (s *Server) Serve(msg []byte) ([]byte, error) {
	header, args, err := rpc.ReadCall(msg)
	if err != nil {
		return nil, err
	}
	call := &Call{Message: header, Args: append([]byte(nil), args...)}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	var raw RawHandler
	if len(s.raw) > 0 {
		raw, s.raw = s.raw[0], s.raw[1:]
	}
	h, ok := s.handlers[procKey{header.Program, header.Version, header.Procedure}]
	known := s.programs[header.Program]
	s.mu.Unlock()

	if raw != nil {
		return raw(call), nil
	}

	switch {
	case ok:
	case header.Procedure == rpc.ProcNull && known:
		return rpc.MakeSuccessReply(header.XID, nil)
	case known:
		return rpc.MakeErrorReply(header.XID, rpc.RPCProcUnavail)
	default:
		return rpc.MakeErrorReply(header.XID, rpc.RPCProgUnavail)
	}

	res := xdr.NewPacker()
	if err := h(call, res); err != nil {
		var acceptErr *AcceptError
		if errors.As(err, &acceptErr) {
			return rpc.MakeErrorReply(header.XID, acceptErr.Stat)
		}
		return rpc.MakeErrorReply(header.XID, rpc.RPCSystemErr)
	}
	return rpc.MakeSuccessReply(header.XID, res.Bytes())
}

// Send implements rpc.Transport.
func (s *Server) Send(ctx context.Context, msg []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return rpcerr.Transport("loopback send", io.ErrClosedPipe, "server closed")
	}

	reply, err := s.Serve(msg)
	if err != nil {
		return rpcerr.Transport("loopback send", err, "bad call")
	}
	if reply == nil {
		return nil
	}

	s.mu.Lock()
	s.replies = append(s.replies, reply)
	s.mu.Unlock()
	return nil
}

// Recv implements rpc.Transport. With no queued reply it reports a timeout
// immediately rather than blocking.
func (s *Server) Recv(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.replies) == 0 {
		return nil, rpcerr.Transport("loopback recv", rpcerr.ErrTimeout, "no reply queued")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

// Close implements rpc.Transport.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ServeStream answers record-marked calls read from conn until it is
// closed. It is the stream counterpart of Send/Recv, used with net.Pipe.
func (s *Server) ServeStream(conn io.ReadWriter) error {
	for {
		msg, err := rpc.ReadRecord(conn, 0)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}

		reply, err := s.Serve(msg)
		if err != nil {
			return err
		}
		if reply == nil {
			continue
		}
		if err := rpc.WriteRecord(conn, reply, 0); err != nil {
			return err
		}
	}
}

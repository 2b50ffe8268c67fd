// Package rpcerr defines the error kinds raised by the XDR codec, the RPC
// client core and its transports.
//
// Callers discriminate with Is or KindOf instead of matching message text.
package rpcerr

import (
	"errors"
	"fmt"
)

// Kind represents the category of a codec or RPC failure.
type Kind int

const (
	// KindFraming indicates the byte stream has an unexpected shape:
	// trailing bytes at Done, an invalid list continuation flag, or a
	// malformed record mark.
	KindFraming Kind = iota + 1

	// KindTruncation indicates fewer bytes remained than a decode required.
	KindTruncation

	// KindValue indicates a caller error such as a negative length or an
	// array length mismatch. Never a network condition.
	KindValue

	// KindProtocol indicates the server replied but the reply was rejected:
	// denied, non-success accept status, xid mismatch, or not a reply.
	KindProtocol

	// KindTransport indicates the transport failed: timeout after the retry
	// budget, connection reset or closed.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindFraming:
		return "framing"
	case KindTruncation:
		return "truncation"
	case KindValue:
		return "value"
	case KindProtocol:
		return "protocol"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Reason refines a protocol error.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonXIDMismatch
	ReasonNotReply
	ReasonDenied
	ReasonAcceptStat
	ReasonCookie
)

func (r Reason) String() string {
	switch r {
	case ReasonXIDMismatch:
		return "xid mismatch"
	case ReasonNotReply:
		return "not a reply"
	case ReasonDenied:
		return "denied"
	case ReasonAcceptStat:
		return "accept status"
	case ReasonCookie:
		return "cookie"
	default:
		return ""
	}
}

// ErrTimeout is wrapped by transport errors raised when the datagram
// retransmission budget is exhausted, and by stream reads that hit their
// deadline.
var ErrTimeout = errors.New("rpc: timed out")

// ErrBroken is wrapped by transport errors from a stream connection that
// failed an earlier exchange. The stream can no longer be trusted to be at
// a record boundary, so it is closed and must be redialed.
var ErrBroken = errors.New("rpc: connection broken")

// Error is the concrete error type for every Kind.
type Error struct {
	// Kind is the error category.
	Kind Kind

	// Op names the operation that failed, e.g. "unpack_fstring" or "udp call".
	Op string

	// Reason refines protocol errors. Zero for other kinds.
	Reason Reason

	// Status carries the raw numeric status for protocol errors
	// (reply_stat, reject_stat, accept_stat or the received xid).
	Status uint32

	// Message is a human-readable description.
	Message string

	// Err is the wrapped cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return "rpc " + e.Kind.String() + " error: " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Framing(op, format string, args ...any) *Error {
	return newError(KindFraming, op, format, args...)
}

func Truncation(op, format string, args ...any) *Error {
	return newError(KindTruncation, op, format, args...)
}

func Value(op, format string, args ...any) *Error {
	return newError(KindValue, op, format, args...)
}

// Protocol builds a protocol error carrying the raw status.
func Protocol(op string, reason Reason, status uint32, format string, args ...any) *Error {
	e := newError(KindProtocol, op, format, args...)
	e.Reason = reason
	e.Status = status
	return e
}

// Transport wraps a transport failure. err may be nil.
func Transport(op string, err error, format string, args ...any) *Error {
	e := newError(KindTransport, op, format, args...)
	e.Err = err
	return e
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err's chain contains an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf returns the status of the first protocol *Error in err's chain.
func StatusOf(err error) (uint32, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindProtocol {
		return e.Status, true
	}
	return 0, false
}

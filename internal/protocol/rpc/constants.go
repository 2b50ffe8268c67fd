package rpc

// RPCVersion is the only ONC RPC protocol version (RFC 1057).
const RPCVersion = 2

// RPC Program Numbers
//
// Reference: RFC 1057 Appendix A, RFC 1094 Appendix A
const (
	// ProgramPortmap is the port mapper program number (RFC 1833).
	// It maps program/version/protocol to a port and usually listens on 111.
	ProgramPortmap = 100000

	// ProgramNFS is the NFS program number (RFC 1094).
	ProgramNFS = 100003

	// ProgramMount is the Mount protocol program number (RFC 1094 Appendix A).
	// NFS clients use it to obtain the initial file handle of an export.
	ProgramMount = 100005
)

// ProcNull is procedure 0 in every program: no arguments, no results.
const ProcNull = 0

// RPC Message Types
const (
	RPCCall  = 0
	RPCReply = 1
)

// RPC Reply States
const (
	// RPCMsgAccepted: the server attempted the procedure; accept_stat follows.
	RPCMsgAccepted = 0

	// RPCMsgDenied: the server rejected the call; reject_stat follows.
	RPCMsgDenied = 1
)

// RPC Accept Status
const (
	RPCSuccess = 0

	// RPCProgUnavail: the program is not exported by the server.
	RPCProgUnavail = 1

	// RPCProgMismatch: the version is not supported; the reply carries the
	// low and high supported versions.
	RPCProgMismatch = 2

	// RPCProcUnavail: the procedure number is not implemented.
	RPCProcUnavail = 3

	// RPCGarbageArgs: the server could not decode the arguments.
	RPCGarbageArgs = 4

	RPCSystemErr = 5
)

// RPC Reject Status
const (
	// RPCMismatch: the RPC version is not 2; low/high follow.
	RPCMismatch = 0

	// RPCAuthError: the credential was refused; auth_stat follows.
	RPCAuthError = 1
)

// Authentication flavors.
const (
	AuthNull  uint32 = 0
	AuthUnix  uint32 = 1
	AuthShort uint32 = 2
	AuthDES   uint32 = 3
)

// Authentication status values carried by an AUTH_ERROR rejection.
const (
	AuthOK           = 0
	AuthBadCred      = 1
	AuthRejectedCred = 2
	AuthBadVerf      = 3
	AuthRejectedVerf = 4
	AuthTooWeak      = 5
)

// MaxAuthBytes is the largest credential or verifier body allowed by RFC 1057.
const MaxAuthBytes = 400

func AcceptStatString(stat uint32) string {
	switch stat {
	case RPCSuccess:
		return "SUCCESS"
	case RPCProgUnavail:
		return "PROG_UNAVAIL"
	case RPCProgMismatch:
		return "PROG_MISMATCH"
	case RPCProcUnavail:
		return "PROC_UNAVAIL"
	case RPCGarbageArgs:
		return "GARBAGE_ARGS"
	case RPCSystemErr:
		return "SYSTEM_ERR"
	default:
		return "UNKNOWN"
	}
}

func RejectStatString(stat uint32) string {
	switch stat {
	case RPCMismatch:
		return "RPC_MISMATCH"
	case RPCAuthError:
		return "AUTH_ERROR"
	default:
		return "UNKNOWN"
	}
}

func AuthStatString(stat uint32) string {
	switch stat {
	case AuthOK:
		return "AUTH_OK"
	case AuthBadCred:
		return "AUTH_BADCRED"
	case AuthRejectedCred:
		return "AUTH_REJECTEDCRED"
	case AuthBadVerf:
		return "AUTH_BADVERF"
	case AuthRejectedVerf:
		return "AUTH_REJECTEDVERF"
	case AuthTooWeak:
		return "AUTH_TOOWEAK"
	default:
		return "UNKNOWN"
	}
}

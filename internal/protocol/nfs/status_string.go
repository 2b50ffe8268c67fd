package nfs

import (
	"errors"
	"fmt"
)

// StatusString converts an NFS v2 stat to its RFC 1094 name. It is also
// the status label recorded on spans.
//
// Example:
//
//	StatusString(NFSErrNoEnt) // "NFSERR_NOENT"
//	StatusString(999)         // "NFSERR_999"
func StatusString(status uint32) string {
	switch status {
	case NFSOK:
		return "NFS_OK"
	case NFSErrPerm:
		return "NFSERR_PERM"
	case NFSErrNoEnt:
		return "NFSERR_NOENT"
	case NFSErrIO:
		return "NFSERR_IO"
	case NFSErrNXIO:
		return "NFSERR_NXIO"
	case NFSErrAcces:
		return "NFSERR_ACCES"
	case NFSErrExist:
		return "NFSERR_EXIST"
	case NFSErrNoDev:
		return "NFSERR_NODEV"
	case NFSErrNotDir:
		return "NFSERR_NOTDIR"
	case NFSErrIsDir:
		return "NFSERR_ISDIR"
	case NFSErrFBig:
		return "NFSERR_FBIG"
	case NFSErrNoSpc:
		return "NFSERR_NOSPC"
	case NFSErrRofs:
		return "NFSERR_ROFS"
	case NFSErrNameTooLong:
		return "NFSERR_NAMETOOLONG"
	case NFSErrNotEmpty:
		return "NFSERR_NOTEMPTY"
	case NFSErrDQuot:
		return "NFSERR_DQUOT"
	case NFSErrStale:
		return "NFSERR_STALE"
	case NFSErrWFlush:
		return "NFSERR_WFLUSH"
	default:
		return fmt.Sprintf("NFSERR_%d", status)
	}
}

// StatusError reports a procedure that the server executed but answered
// with a non-OK stat. It is distinct from rpcerr errors, which mean the
// call itself failed.
type StatusError struct {
	Proc   string
	Status uint32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("nfs %s: %s", e.Proc, StatusString(e.Status))
}

// CheckStatus returns nil for NFSOK and a *StatusError otherwise.
func CheckStatus(proc string, status uint32) error {
	if status == NFSOK {
		return nil
	}
	return &StatusError{Proc: proc, Status: status}
}

// IsStatus reports whether err carries the NFS stat status.
func IsStatus(err error, status uint32) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

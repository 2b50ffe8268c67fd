package nfs

// Version is the NFS protocol version spoken by this client (RFC 1094).
const Version = 2

// NFSv2 Procedure Numbers
// These identify the NFS operations as defined in RFC 1094 Section 2.2.
// Only the procedures this client issues are listed.
const (
	// NFSProcNull - Do nothing (connectivity test)
	NFSProcNull = 0

	// NFSProcGetAttr - Get file attributes
	NFSProcGetAttr = 1

	// NFSProcSetAttr - Set file attributes
	NFSProcSetAttr = 2

	// NFSProcLookup - Look up a file name in a directory
	NFSProcLookup = 4

	// NFSProcReadDir - Read directory entries
	NFSProcReadDir = 16
)

// Limits from RFC 1094 Section 2.3.
const (
	// MaxNameLen is the longest file name component.
	MaxNameLen = 255

	// MaxPathLen is the longest path name.
	MaxPathLen = 1024

	// DefaultReadDirCount is the byte budget requested per READDIR page.
	DefaultReadDirCount = 2000
)

// NoChange in a SetAttr field leaves the attribute unchanged.
const NoChange = 0xffffffff

// NFS Status Codes
// These are the stat values returned by NFSv2 procedures (RFC 1094 Section 2.3.1).
const (
	// NFSOK - Success
	NFSOK = 0

	// NFSErrPerm - Not owner
	NFSErrPerm = 1

	// NFSErrNoEnt - No such file or directory
	NFSErrNoEnt = 2

	// NFSErrIO - I/O error
	NFSErrIO = 5

	// NFSErrNXIO - No such device or address
	NFSErrNXIO = 6

	// NFSErrAcces - Permission denied
	NFSErrAcces = 13

	// NFSErrExist - File exists
	NFSErrExist = 17

	// NFSErrNoDev - No such device
	NFSErrNoDev = 19

	// NFSErrNotDir - Not a directory
	NFSErrNotDir = 20

	// NFSErrIsDir - Is a directory
	NFSErrIsDir = 21

	// NFSErrFBig - File too large
	NFSErrFBig = 27

	// NFSErrNoSpc - No space left on device
	NFSErrNoSpc = 28

	// NFSErrRofs - Read-only file system
	NFSErrRofs = 30

	// NFSErrNameTooLong - File name too long
	NFSErrNameTooLong = 63

	// NFSErrNotEmpty - Directory not empty
	NFSErrNotEmpty = 66

	// NFSErrDQuot - Disc quota exceeded
	NFSErrDQuot = 69

	// NFSErrStale - Stale file handle
	NFSErrStale = 70

	// NFSErrWFlush - Write cache flushed
	NFSErrWFlush = 99
)

// ProcedureName returns the label used in logs, spans and metrics.
func ProcedureName(proc uint32) string {
	switch proc {
	case NFSProcNull:
		return "NULL"
	case NFSProcGetAttr:
		return "GETATTR"
	case NFSProcSetAttr:
		return "SETATTR"
	case NFSProcLookup:
		return "LOOKUP"
	case NFSProcReadDir:
		return "READDIR"
	default:
		return ""
	}
}

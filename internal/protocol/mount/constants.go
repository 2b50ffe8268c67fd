package mount

import "fmt"

// Version is the Mount protocol version spoken by this client (RFC 1094
// Appendix A). Version 1 returns NFS v2 file handles.
const Version = 1

// Mount Protocol Procedure Numbers
// These identify the different Mount operations as defined in RFC 1094 Appendix A.
const (
	// MountProcNull - Do nothing (connectivity test)
	MountProcNull = 0

	// MountProcMnt - Add mount entry
	MountProcMnt = 1

	// MountProcDump - Return mount entries
	MountProcDump = 2

	// MountProcUmnt - Remove mount entry
	MountProcUmnt = 3

	// MountProcUmntAll - Remove all mount entries
	MountProcUmntAll = 4

	// MountProcExport - Return export list
	MountProcExport = 5
)

// MaxPathLen is MNTPATHLEN, the longest directory path a server accepts.
const MaxPathLen = 1024

// Mount Status Codes
// Version 1 servers return a UNIX errno in fhstatus; these are the common ones.
const (
	// MountOK - Success
	MountOK = 0

	// MountErrPerm - Not owner
	MountErrPerm = 1

	// MountErrNoEnt - No such file or directory
	MountErrNoEnt = 2

	// MountErrIO - I/O error
	MountErrIO = 5

	// MountErrAccess - Permission denied
	MountErrAccess = 13

	// MountErrNotDir - Not a directory
	MountErrNotDir = 20

	// MountErrInval - Invalid argument
	MountErrInval = 22

	// MountErrNameTooLong - Filename too long
	MountErrNameTooLong = 63

	// MountErrNotSupp - Operation not supported
	MountErrNotSupp = 10004

	// MountErrServerFault - Server fault
	MountErrServerFault = 10006
)

// StatusString returns the symbolic name of a mount status.
func StatusString(status uint32) string {
	switch status {
	case MountOK:
		return "MNT_OK"
	case MountErrPerm:
		return "MNTERR_PERM"
	case MountErrNoEnt:
		return "MNTERR_NOENT"
	case MountErrIO:
		return "MNTERR_IO"
	case MountErrAccess:
		return "MNTERR_ACCES"
	case MountErrNotDir:
		return "MNTERR_NOTDIR"
	case MountErrInval:
		return "MNTERR_INVAL"
	case MountErrNameTooLong:
		return "MNTERR_NAMETOOLONG"
	case MountErrNotSupp:
		return "MNTERR_NOTSUPP"
	case MountErrServerFault:
		return "MNTERR_SERVERFAULT"
	default:
		return fmt.Sprintf("MNTERR_%d", status)
	}
}

// ProcedureName returns the label used in logs, spans and metrics.
func ProcedureName(proc uint32) string {
	switch proc {
	case MountProcNull:
		return "NULL"
	case MountProcMnt:
		return "MNT"
	case MountProcDump:
		return "DUMP"
	case MountProcUmnt:
		return "UMNT"
	case MountProcUmntAll:
		return "UMNTALL"
	case MountProcExport:
		return "EXPORT"
	default:
		return ""
	}
}

package mount

import (
	"github.com/marmos91/nfsclient/internal/protocol/nfs/types"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

// FHStatus is the result of MNT.
//
// Wire Format:
//   - status: 4 bytes (0 on success, otherwise a UNIX errno)
//   - [if status == 0] handle: 32 bytes fixed opaque
type FHStatus struct {
	Status uint32

	// Handle is the root handle of the export, nil unless Status is MountOK.
	Handle *types.FileHandle
}

// OK reports whether the mount succeeded.
func (s *FHStatus) OK() bool {
	return s.Status == MountOK
}

// MountEntry is one element of the DUMP mount list: a client that mounted
// a directory.
type MountEntry struct {
	// Hostname is the name or address of the client.
	Hostname string

	// Directory is the mounted path.
	Directory string
}

// ExportEntry is one element of the EXPORT list ("exportnode").
type ExportEntry struct {
	// Directory is the exported path, passed to MNT.
	Directory string

	// Groups are the hosts or netgroups allowed to mount it. Empty means
	// everyone.
	Groups []string
}

// UnpackFHStatus reads an fhstatus.
func UnpackFHStatus(u *xdr.Unpacker) (*FHStatus, error) {
	status, err := u.UnpackUint()
	if err != nil {
		return nil, err
	}

	res := &FHStatus{Status: status}
	if status != MountOK {
		return res, nil
	}

	fh, err := types.UnpackFileHandle(u)
	if err != nil {
		return nil, err
	}
	res.Handle = &fh
	return res, nil
}

// PackFHStatus writes an fhstatus. A nil handle with MountOK is packed as
// the zero handle.
func PackFHStatus(p *xdr.Packer, s *FHStatus) error {
	p.PackUint(s.Status)
	if s.Status != MountOK {
		return nil
	}

	var fh types.FileHandle
	if s.Handle != nil {
		fh = *s.Handle
	}
	return types.PackFileHandle(p, fh)
}

func unpackMountEntry(u *xdr.Unpacker) (MountEntry, error) {
	host, err := u.UnpackString()
	if err != nil {
		return MountEntry{}, err
	}
	dir, err := u.UnpackString()
	if err != nil {
		return MountEntry{}, err
	}
	return MountEntry{Hostname: host, Directory: dir}, nil
}

func packMountEntry(p *xdr.Packer, e MountEntry) error {
	p.PackString(e.Hostname)
	p.PackString(e.Directory)
	return nil
}

// UnpackMountList reads a mountlist: a list of (hostname, directory) pairs.
func UnpackMountList(u *xdr.Unpacker) ([]MountEntry, error) {
	return xdr.UnpackList(u, unpackMountEntry)
}

// PackMountList writes a mountlist.
func PackMountList(p *xdr.Packer, entries []MountEntry) error {
	return xdr.PackList(p, entries, packMountEntry)
}

func unpackExportEntry(u *xdr.Unpacker) (ExportEntry, error) {
	dir, err := u.UnpackString()
	if err != nil {
		return ExportEntry{}, err
	}
	groups, err := xdr.UnpackList(u, (*xdr.Unpacker).UnpackStringItem)
	if err != nil {
		return ExportEntry{}, err
	}
	return ExportEntry{Directory: dir, Groups: groups}, nil
}

func packExportEntry(p *xdr.Packer, e ExportEntry) error {
	p.PackString(e.Directory)
	return xdr.PackList(p, e.Groups, (*xdr.Packer).PackStringItem)
}

// UnpackExportList reads an exportlist: a list of (directory, groups)
// pairs where groups is itself a list of strings.
func UnpackExportList(u *xdr.Unpacker) ([]ExportEntry, error) {
	return xdr.UnpackList(u, unpackExportEntry)
}

// PackExportList writes an exportlist.
func PackExportList(p *xdr.Packer, entries []ExportEntry) error {
	return xdr.PackList(p, entries, packExportEntry)
}

package nfs

import (
	"github.com/marmos91/nfsclient/internal/protocol/nfs/types"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

// SetAttr is the NFS v2 sattr structure (RFC 1094 Section 2.3.6). Fields
// set to NoChange, and times whose both halves are NoChange, are left
// untouched by the server.
type SetAttr struct {
	Mode  uint32
	UID   uint32
	GID   uint32
	Size  uint32
	Atime types.TimeVal
	Mtime types.TimeVal
}

// NewSetAttr returns a SetAttr that changes nothing.
func NewSetAttr() SetAttr {
	unchanged := types.TimeVal{Seconds: NoChange, USeconds: NoChange}
	return SetAttr{
		Mode:  NoChange,
		UID:   NoChange,
		GID:   NoChange,
		Size:  NoChange,
		Atime: unchanged,
		Mtime: unchanged,
	}
}

// PackSetAttr writes a sattr.
func PackSetAttr(p *xdr.Packer, s *SetAttr) {
	p.PackUint(s.Mode)
	p.PackUint(s.UID)
	p.PackUint(s.GID)
	p.PackUint(s.Size)
	types.PackTimeVal(p, s.Atime)
	types.PackTimeVal(p, s.Mtime)
}

// UnpackSetAttr reads a sattr.
func UnpackSetAttr(u *xdr.Unpacker) (*SetAttr, error) {
	var ints [4]uint32
	for i := range ints {
		v, err := u.UnpackUint()
		if err != nil {
			return nil, err
		}
		ints[i] = v
	}

	s := &SetAttr{Mode: ints[0], UID: ints[1], GID: ints[2], Size: ints[3]}
	var err error
	if s.Atime, err = types.UnpackTimeVal(u); err != nil {
		return nil, err
	}
	if s.Mtime, err = types.UnpackTimeVal(u); err != nil {
		return nil, err
	}
	return s, nil
}

// AttrStat is the result of GETATTR and SETATTR.
type AttrStat struct {
	Status uint32

	// Attr is nil unless Status is NFSOK.
	Attr *types.FileAttr
}

// UnpackAttrStat reads an attrstat: a stat and, on success, a fattr.
func UnpackAttrStat(u *xdr.Unpacker) (*AttrStat, error) {
	status, err := u.UnpackUint()
	if err != nil {
		return nil, err
	}

	res := &AttrStat{Status: status}
	if status != NFSOK {
		return res, nil
	}

	if res.Attr, err = types.UnpackFileAttr(u); err != nil {
		return nil, err
	}
	return res, nil
}

// PackAttrStat writes an attrstat.
func PackAttrStat(p *xdr.Packer, res *AttrStat) {
	p.PackUint(res.Status)
	if res.Status == NFSOK && res.Attr != nil {
		types.PackFileAttr(p, res.Attr)
	}
}

// DirOpRes is the result of LOOKUP.
type DirOpRes struct {
	Status uint32

	// Handle and Attr are nil unless Status is NFSOK.
	Handle *types.FileHandle
	Attr   *types.FileAttr
}

// UnpackDirOpRes reads a diropres: a stat and, on success, a handle and its
// attributes.
func UnpackDirOpRes(u *xdr.Unpacker) (*DirOpRes, error) {
	status, err := u.UnpackUint()
	if err != nil {
		return nil, err
	}

	res := &DirOpRes{Status: status}
	if status != NFSOK {
		return res, nil
	}

	fh, err := types.UnpackFileHandle(u)
	if err != nil {
		return nil, err
	}
	res.Handle = &fh

	if res.Attr, err = types.UnpackFileAttr(u); err != nil {
		return nil, err
	}
	return res, nil
}

// PackDirOpRes writes a diropres.
func PackDirOpRes(p *xdr.Packer, res *DirOpRes) error {
	p.PackUint(res.Status)
	if res.Status != NFSOK {
		return nil
	}

	var fh types.FileHandle
	if res.Handle != nil {
		fh = *res.Handle
	}
	if err := types.PackFileHandle(p, fh); err != nil {
		return err
	}

	attr := res.Attr
	if attr == nil {
		attr = &types.FileAttr{}
	}
	types.PackFileAttr(p, attr)
	return nil
}

// DirEntry is one entry of a READDIR page.
type DirEntry struct {
	FileID uint32
	Name   string

	// Cookie resumes the listing after this entry.
	Cookie uint32
}

// ReadDirRes is the result of READDIR.
type ReadDirRes struct {
	Status uint32

	// Entries and EOF are only meaningful when Status is NFSOK.
	Entries []DirEntry
	EOF     bool
}

func unpackDirEntry(u *xdr.Unpacker) (DirEntry, error) {
	var e DirEntry
	var err error
	if e.FileID, err = u.UnpackUint(); err != nil {
		return e, err
	}
	if e.Name, err = u.UnpackString(); err != nil {
		return e, err
	}
	if e.Cookie, err = u.UnpackUint(); err != nil {
		return e, err
	}
	return e, nil
}

func packDirEntry(p *xdr.Packer, e DirEntry) error {
	p.PackUint(e.FileID)
	p.PackString(e.Name)
	p.PackUint(e.Cookie)
	return nil
}

// UnpackReadDirRes reads a readdirres: a stat and, on success, a list of
// entries followed by the eof flag.
func UnpackReadDirRes(u *xdr.Unpacker) (*ReadDirRes, error) {
	status, err := u.UnpackUint()
	if err != nil {
		return nil, err
	}

	res := &ReadDirRes{Status: status}
	if status != NFSOK {
		return res, nil
	}

	if res.Entries, err = xdr.UnpackList(u, unpackDirEntry); err != nil {
		return nil, err
	}
	if res.EOF, err = u.UnpackBool(); err != nil {
		return nil, err
	}
	return res, nil
}

// PackReadDirRes writes a readdirres.
func PackReadDirRes(p *xdr.Packer, res *ReadDirRes) error {
	p.PackUint(res.Status)
	if res.Status != NFSOK {
		return nil
	}
	if err := xdr.PackList(p, res.Entries, packDirEntry); err != nil {
		return err
	}
	p.PackBool(res.EOF)
	return nil
}

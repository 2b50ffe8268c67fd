package types

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

// FHSize is the size in bytes of an NFS v2 file handle (RFC 1094 Section 2.3.3).
const FHSize = 32

// FileHandle is an opaque server token identifying a file or directory.
//
// The client never interprets the contents: handles come back from MNT and
// LOOKUP and are passed unchanged to later calls.
type FileHandle [FHSize]byte

// FileHandleFromBytes copies b into a FileHandle. b must be exactly FHSize
// bytes long.
func FileHandleFromBytes(b []byte) (FileHandle, error) {
	var fh FileHandle
	if len(b) != FHSize {
		return fh, rpcerr.Value("file_handle", "handle is %d bytes, want %d", len(b), FHSize)
	}
	copy(fh[:], b)
	return fh, nil
}

// ParseFileHandle decodes the hex form produced by String.
func ParseFileHandle(s string) (FileHandle, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return FileHandle{}, fmt.Errorf("decode file handle: %w", err)
	}
	return FileHandleFromBytes(b)
}

// String returns the handle as lowercase hex.
func (fh FileHandle) String() string {
	return hex.EncodeToString(fh[:])
}

// IsZero reports whether every byte of the handle is zero.
func (fh FileHandle) IsZero() bool {
	return fh == FileHandle{}
}

// PackFileHandle writes fh as fixed-length opaque data.
func PackFileHandle(p *xdr.Packer, fh FileHandle) error {
	return p.PackFString(FHSize, fh[:])
}

// UnpackFileHandle reads a fixed-length file handle.
func UnpackFileHandle(u *xdr.Unpacker) (FileHandle, error) {
	b, err := u.UnpackFString(FHSize)
	if err != nil {
		return FileHandle{}, err
	}
	return FileHandleFromBytes(b)
}

// FileType is the NFS v2 ftype enumeration (RFC 1094 Section 2.3.2).
type FileType uint32

const (
	NFNON FileType = 0 // non-file
	NFREG FileType = 1 // regular file
	NFDIR FileType = 2 // directory
	NFBLK FileType = 3 // block device
	NFCHR FileType = 4 // character device
	NFLNK FileType = 5 // symbolic link
)

func (t FileType) String() string {
	switch t {
	case NFNON:
		return "NON"
	case NFREG:
		return "REG"
	case NFDIR:
		return "DIR"
	case NFBLK:
		return "BLK"
	case NFCHR:
		return "CHR"
	case NFLNK:
		return "LNK"
	default:
		return fmt.Sprintf("FileType(%d)", uint32(t))
	}
}

// TimeVal is an NFS v2 timestamp: seconds and microseconds since the UNIX
// epoch (RFC 1094 Section 2.3.4).
type TimeVal struct {
	Seconds  uint32
	USeconds uint32
}

// Time converts tv to a time.Time in UTC.
func (tv TimeVal) Time() time.Time {
	return time.Unix(int64(tv.Seconds), int64(tv.USeconds)*int64(time.Microsecond)).UTC()
}

// TimeValFromTime truncates t to microsecond precision.
func TimeValFromTime(t time.Time) TimeVal {
	return TimeVal{
		Seconds:  uint32(t.Unix()),
		USeconds: uint32(t.Nanosecond() / int(time.Microsecond)),
	}
}

// PackTimeVal writes tv as two unsigned ints.
func PackTimeVal(p *xdr.Packer, tv TimeVal) {
	p.PackUint(tv.Seconds)
	p.PackUint(tv.USeconds)
}

// UnpackTimeVal reads a timeval.
func UnpackTimeVal(u *xdr.Unpacker) (TimeVal, error) {
	var tv TimeVal
	var err error
	if tv.Seconds, err = u.UnpackUint(); err != nil {
		return tv, err
	}
	if tv.USeconds, err = u.UnpackUint(); err != nil {
		return tv, err
	}
	return tv, nil
}

// FileAttr is the NFS v2 fattr structure (RFC 1094 Section 2.3.5).
//
// Wire Format: 14 fields, in this order, each a 4-byte unsigned int except
// the three times, which are 8-byte timevals.
type FileAttr struct {
	Type      FileType
	Mode      uint32 // permission and type bits
	Nlink     uint32
	UID       uint32
	GID       uint32
	Size      uint32
	BlockSize uint32
	Rdev      uint32
	Blocks    uint32
	FSID      uint32
	FileID    uint32
	Atime     TimeVal
	Mtime     TimeVal
	Ctime     TimeVal
}

// PackFileAttr writes attr in wire order.
func PackFileAttr(p *xdr.Packer, attr *FileAttr) {
	p.PackUint(uint32(attr.Type))
	p.PackUint(attr.Mode)
	p.PackUint(attr.Nlink)
	p.PackUint(attr.UID)
	p.PackUint(attr.GID)
	p.PackUint(attr.Size)
	p.PackUint(attr.BlockSize)
	p.PackUint(attr.Rdev)
	p.PackUint(attr.Blocks)
	p.PackUint(attr.FSID)
	p.PackUint(attr.FileID)
	PackTimeVal(p, attr.Atime)
	PackTimeVal(p, attr.Mtime)
	PackTimeVal(p, attr.Ctime)
}

// UnpackFileAttr reads a fattr.
func UnpackFileAttr(u *xdr.Unpacker) (*FileAttr, error) {
	var ints [11]uint32
	for i := range ints {
		v, err := u.UnpackUint()
		if err != nil {
			return nil, err
		}
		ints[i] = v
	}

	attr := &FileAttr{
		Type:      FileType(ints[0]),
		Mode:      ints[1],
		Nlink:     ints[2],
		UID:       ints[3],
		GID:       ints[4],
		Size:      ints[5],
		BlockSize: ints[6],
		Rdev:      ints[7],
		Blocks:    ints[8],
		FSID:      ints[9],
		FileID:    ints[10],
	}

	var err error
	if attr.Atime, err = UnpackTimeVal(u); err != nil {
		return nil, err
	}
	if attr.Mtime, err = UnpackTimeVal(u); err != nil {
		return nil, err
	}
	if attr.Ctime, err = UnpackTimeVal(u); err != nil {
		return nil, err
	}
	return attr, nil
}

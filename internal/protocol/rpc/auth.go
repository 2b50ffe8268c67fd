package rpc

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

// AUTH_UNIX limits from RFC 1057 Section 9.2.
const (
	MaxMachineNameLen = 255
	MaxGIDs           = 16
)

// UnixAuth is the body of an AUTH_UNIX credential.
//
// Wire Format (XDR encoding):
//   - Stamp:       4 bytes (arbitrary id, usually the creation time)
//   - MachineName: string, at most 255 bytes
//   - UID:         4 bytes
//   - GID:         4 bytes
//   - GIDs:        array of at most 16 uint32
type UnixAuth struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// NewUnixAuth builds an AUTH_UNIX body stamped with the current time.
func NewUnixAuth(machineName string, uid, gid uint32, gids []uint32) *UnixAuth {
	return &UnixAuth{
		Stamp:       uint32(time.Now().Unix()),
		MachineName: machineName,
		UID:         uid,
		GID:         gid,
		GIDs:        gids,
	}
}

// LocalUnixAuth builds an AUTH_UNIX body from the calling process: host
// name, uid, gid and up to MaxGIDs supplementary groups.
func LocalUnixAuth() (*UnixAuth, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}
	if len(host) > MaxMachineNameLen {
		host = host[:MaxMachineNameLen]
	}

	return NewUnixAuth(host, uint32(os.Getuid()), uint32(os.Getgid()), supplementaryGIDs(os.Getgroups)), nil
}

// supplementaryGIDs returns up to MaxGIDs groups from getgroups. A failure
// is logged and yields no groups.
func supplementaryGIDs(getgroups func() ([]int, error)) []uint32 {
	groups, err := getgroups()
	if err != nil {
		logger.Debug("AUTH_UNIX: supplementary groups unavailable, sending none: %v", err)
		return nil
	}
	gids := make([]uint32, 0, min(len(groups), MaxGIDs))
	for _, g := range groups {
		if len(gids) == MaxGIDs {
			break
		}
		gids = append(gids, uint32(g))
	}
	return gids
}

// Encode returns the XDR body of the credential.
func (a *UnixAuth) Encode() ([]byte, error) {
	if len(a.MachineName) > MaxMachineNameLen {
		return nil, rpcerr.Value("auth_unix", "machine name too long: %d bytes", len(a.MachineName))
	}
	if len(a.GIDs) > MaxGIDs {
		return nil, rpcerr.Value("auth_unix", "too many gids: %d", len(a.GIDs))
	}

	p := xdr.NewPacker()
	p.PackUint(a.Stamp)
	p.PackString(a.MachineName)
	p.PackUint(a.UID)
	p.PackUint(a.GID)
	if err := xdr.PackArray(p, a.GIDs, (*xdr.Packer).PackUintItem); err != nil {
		return nil, err
	}

	return append([]byte(nil), p.Bytes()...), nil
}

// Credential wraps the encoded body as an AUTH_UNIX OpaqueAuth.
func (a *UnixAuth) Credential() (OpaqueAuth, error) {
	body, err := a.Encode()
	if err != nil {
		return OpaqueAuth{}, err
	}
	return OpaqueAuth{Flavor: AuthUnix, Body: body}, nil
}

func (a *UnixAuth) String() string {
	return fmt.Sprintf("UnixAuth{machine=%s uid=%d gid=%d gids=%v}", a.MachineName, a.UID, a.GID, a.GIDs)
}

// ParseUnixAuth decodes an AUTH_UNIX credential body.
func ParseUnixAuth(body []byte) (*UnixAuth, error) {
	if len(body) == 0 {
		return nil, rpcerr.Framing("auth_unix", "empty credential body")
	}

	u := xdr.NewUnpacker(body)
	auth := &UnixAuth{}

	var err error
	if auth.Stamp, err = u.UnpackUint(); err != nil {
		return nil, err
	}

	nameLen, err := u.UnpackUint()
	if err != nil {
		return nil, err
	}
	if nameLen > MaxMachineNameLen {
		return nil, rpcerr.Framing("auth_unix", "machine name too long: %d bytes", nameLen)
	}
	name, err := u.UnpackFString(int(nameLen))
	if err != nil {
		return nil, err
	}
	auth.MachineName = string(name)

	if auth.UID, err = u.UnpackUint(); err != nil {
		return nil, err
	}
	if auth.GID, err = u.UnpackUint(); err != nil {
		return nil, err
	}

	count, err := u.UnpackUint()
	if err != nil {
		return nil, err
	}
	if count > MaxGIDs {
		return nil, rpcerr.Framing("auth_unix", "too many gids: %d", count)
	}
	if auth.GIDs, err = xdr.UnpackFArray(u, int(count), (*xdr.Unpacker).UnpackUintItem); err != nil {
		return nil, err
	}

	if err := u.Done(); err != nil {
		return nil, err
	}
	return auth, nil
}

// CredentialFunc selects the credential for a procedure number.
type CredentialFunc func(proc uint32) (OpaqueAuth, error)

// NullCredentials is a CredentialFunc that always returns AUTH_NULL.
func NullCredentials(uint32) (OpaqueAuth, error) {
	return NullAuth(), nil
}

// LazyCredential builds a credential on first use and returns the same
// value afterwards. A failed build is retried on the next call.
type LazyCredential struct {
	mu    sync.Mutex
	build func() (*UnixAuth, error)
	cred  *OpaqueAuth
}

// NewLazyCredential returns a LazyCredential that calls build once it is
// first needed.
func NewLazyCredential(build func() (*UnixAuth, error)) *LazyCredential {
	return &LazyCredential{build: build}
}

// StaticCredential returns a LazyCredential for a fixed AUTH_UNIX body.
func StaticCredential(auth *UnixAuth) *LazyCredential {
	return NewLazyCredential(func() (*UnixAuth, error) { return auth, nil })
}

// Get returns the cached credential, building it if needed.
func (l *LazyCredential) Get() (OpaqueAuth, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cred != nil {
		return *l.cred, nil
	}

	auth, err := l.build()
	if err != nil {
		return OpaqueAuth{}, fmt.Errorf("build credential: %w", err)
	}
	cred, err := auth.Credential()
	if err != nil {
		return OpaqueAuth{}, err
	}
	l.cred = &cred
	return cred, nil
}

// Built reports whether the credential has been constructed.
func (l *LazyCredential) Built() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cred != nil
}

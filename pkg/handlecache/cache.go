// Package handlecache maps (server, export, path) triples to NFS file
// handles so that repeated path resolution can skip LOOKUP round trips.
//
// Two backends are provided:
//   - memory: LRU with TTL, process-local
//   - badger: persistent, entries expire through Badger's native TTL
//
// A cached handle may go stale on the server. Callers that receive
// NFSERR_STALE for a cached handle should Invalidate the key and resolve
// again.
package handlecache

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/marmos91/nfsclient/internal/protocol/nfs/types"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("handle cache closed")

// Cache stores file handles keyed by Key(server, export, path).
type Cache interface {
	// Get returns the handle for key. ok is false on a miss or when the
	// entry has expired.
	Get(ctx context.Context, key string) (fh types.FileHandle, ok bool, err error)

	// Put stores fh under key, replacing any existing entry.
	Put(ctx context.Context, key string, fh types.FileHandle) error

	// Invalidate drops key and every key beneath it.
	Invalidate(ctx context.Context, key string) error

	// Len returns the number of live entries.
	Len() int

	Close() error
}

// Key builds the cache key for a path inside an export of server
// ("host:port"). The path is cleaned so "a//b/" and "/a/b" share an entry.
// Handles are only meaningful to the server that issued them, so the same
// export path on two servers maps to two keys.
func Key(server, export, p string) string {
	return server + "|" + export + ":" + path.Clean("/"+p)
}

// isUnder reports whether key equals prefix or lies beneath it.
func isUnder(key, prefix string) bool {
	if key == prefix {
		return true
	}
	if strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(key, prefix)
	}
	return strings.HasPrefix(key, prefix+"/")
}

// Nop is a Cache that stores nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) (types.FileHandle, bool, error) {
	return types.FileHandle{}, false, nil
}
func (Nop) Put(context.Context, string, types.FileHandle) error { return nil }
func (Nop) Invalidate(context.Context, string) error              { return nil }
func (Nop) Len() int                                              { return 0 }
func (Nop) Close() error                                          { return nil }

package client

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/nfs"
	"github.com/marmos91/nfsclient/internal/protocol/nfs/types"
	"github.com/marmos91/nfsclient/internal/telemetry"
	"github.com/marmos91/nfsclient/pkg/handlecache"
)

// Resolve returns the handle of p inside export, mounting export if this
// Session has not done so yet. p is cleaned and taken relative to the
// export root; ".." never leaves the export.
//
// Each component is looked up with LOOKUP unless the handle cache already
// holds it. A failed lookup returns *nfs.StatusError.
func (s *Session) Resolve(ctx context.Context, export, p string) (types.FileHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.FileHandle{}, ErrClosed
	}

	var fh types.FileHandle
	err := s.onHandle(ctx, export, p, func(h types.FileHandle) error {
		fh = h
		return nil
	})
	return fh, err
}

// Stat returns the attributes of p.
func (s *Session) Stat(ctx context.Context, export, p string) (*types.FileAttr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	var attr *types.FileAttr
	err := s.onHandle(ctx, export, p, func(fh types.FileHandle) error {
		res, err := s.nfs.Getattr(ctx, fh)
		if err != nil {
			return err
		}
		if err := nfs.CheckStatus("GETATTR", res.Status); err != nil {
			return err
		}
		attr = res.Attr
		return nil
	})
	return attr, err
}

// List returns every entry of directory p.
func (s *Session) List(ctx context.Context, export, p string) ([]nfs.DirEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	var entries []nfs.DirEntry
	err := s.onHandle(ctx, export, p, func(fh types.FileHandle) error {
		var err error
		entries, err = s.nfs.Listdir(ctx, fh)
		return err
	})
	return entries, err
}

// Setattr applies attrs to p and returns the new attributes. Fields of
// attrs left at nfs.NoChange are not modified.
func (s *Session) Setattr(ctx context.Context, export, p string, attrs nfs.SetAttr) (*types.FileAttr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	var attr *types.FileAttr
	err := s.onHandle(ctx, export, p, func(fh types.FileHandle) error {
		res, err := s.nfs.Setattr(ctx, fh, attrs)
		if err != nil {
			return err
		}
		if err := nfs.CheckStatus("SETATTR", res.Status); err != nil {
			return err
		}
		attr = res.Attr
		return nil
	})
	return attr, err
}

// Chmod sets the permission bits of p.
func (s *Session) Chmod(ctx context.Context, export, p string, mode uint32) (*types.FileAttr, error) {
	attrs := nfs.NewSetAttr()
	attrs.Mode = mode & 07777
	return s.Setattr(ctx, export, p, attrs)
}

// onHandle resolves p and runs fn on its handle. When resolution or fn
// fails with NFSERR_STALE, every handle of export is forgotten and the
// whole operation runs once more from a fresh MNT. Caller holds mu.
func (s *Session) onHandle(ctx context.Context, export, p string, fn func(types.FileHandle) error) error {
	for attempt := 0; ; attempt++ {
		fh, err := s.resolveLocked(ctx, export, p)
		if err == nil {
			err = fn(fh)
		}
		if attempt == 0 && nfs.IsStatus(err, nfs.NFSErrStale) {
			logger.Debug("Stale handle under %s:%s, remounting", export, p)
			s.forget(ctx, export)
			continue
		}
		return err
	}
}

// resolveLocked walks p component by component. Caller holds mu.
func (s *Session) resolveLocked(ctx context.Context, export, p string) (types.FileHandle, error) {
	clean := path.Clean("/" + p)
	telemetry.SetAttributes(ctx, telemetry.NFSPath(clean))

	fh, ok := s.roots[export]
	if !ok {
		var err error
		if fh, err = s.mountLocked(ctx, export); err != nil {
			return types.FileHandle{}, err
		}
	}
	if clean == "/" {
		return fh, nil
	}

	if cached, hit := s.cached(ctx, export, clean); hit {
		return cached, nil
	}

	cur := "/"
	for _, name := range strings.Split(clean[1:], "/") {
		cur = path.Join(cur, name)

		if cached, hit := s.cached(ctx, export, cur); hit {
			fh = cached
			continue
		}

		res, err := s.nfs.Lookup(ctx, fh, name)
		if err != nil {
			return types.FileHandle{}, fmt.Errorf("resolve %s: %w", cur, err)
		}
		if err := nfs.CheckStatus("LOOKUP", res.Status); err != nil {
			return types.FileHandle{}, fmt.Errorf("resolve %s: %w", cur, err)
		}

		fh = *res.Handle
		if err := s.cache.Put(ctx, handlecache.Key(s.server, export, cur), fh); err != nil {
			logger.Warn("Handle cache put for %s:%s failed: %v", export, cur, err)
		}
	}
	return fh, nil
}

// cached reads the handle cache. Cache failures count as misses.
func (s *Session) cached(ctx context.Context, export, p string) (types.FileHandle, bool) {
	fh, ok, err := s.cache.Get(ctx, handlecache.Key(s.server, export, p))
	if err != nil {
		logger.Warn("Handle cache get for %s:%s failed: %v", export, p, err)
		return types.FileHandle{}, false
	}
	telemetry.AddEvent(ctx, "handle_cache", telemetry.CacheHit(ok))
	return fh, ok
}

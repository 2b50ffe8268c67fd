package client

import (
	"context"
	"fmt"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/mount"
	"github.com/marmos91/nfsclient/internal/protocol/nfs/types"
	"github.com/marmos91/nfsclient/pkg/handlecache"
)

// MountError reports a non-OK MNT status.
type MountError struct {
	Export string
	Status uint32
}

func (e *MountError) Error() string {
	return fmt.Sprintf("mount %s: %s", e.Export, mount.StatusString(e.Status))
}

// Exports returns the server's export list.
func (s *Session) Exports(ctx context.Context) ([]mount.ExportEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.mount.Export(ctx)
}

// Dump returns the server's table of active mounts.
func (s *Session) Dump(ctx context.Context) ([]mount.MountEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.mount.Dump(ctx)
}

// Mount obtains the root handle of export. A refused mount returns
// *MountError.
func (s *Session) Mount(ctx context.Context, export string) (types.FileHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.FileHandle{}, ErrClosed
	}
	return s.mountLocked(ctx, export)
}

func (s *Session) mountLocked(ctx context.Context, export string) (types.FileHandle, error) {
	res, err := s.mount.Mnt(ctx, export)
	if err != nil {
		return types.FileHandle{}, err
	}
	if !res.OK() {
		return types.FileHandle{}, &MountError{Export: export, Status: res.Status}
	}

	root := *res.Handle
	s.roots[export] = root
	if err := s.cache.Put(ctx, handlecache.Key(s.server, export, "/"), root); err != nil {
		logger.Warn("Handle cache put for %s failed: %v", export, err)
	}
	return root, nil
}

// Unmount removes export from the server's mount table and forgets its
// handles.
func (s *Session) Unmount(ctx context.Context, export string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.mount.Umnt(ctx, export); err != nil {
		return err
	}
	s.forget(ctx, export)
	return nil
}

// UnmountAll removes every mount of this client from the server's table.
func (s *Session) UnmountAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.mount.Umntall(ctx); err != nil {
		return err
	}
	for export := range s.roots {
		s.forget(ctx, export)
	}
	return nil
}

// forget drops the root and every cached handle of export.
func (s *Session) forget(ctx context.Context, export string) {
	delete(s.roots, export)
	if err := s.cache.Invalidate(ctx, handlecache.Key(s.server, export, "/")); err != nil {
		logger.Warn("Handle cache invalidate for %s failed: %v", export, err)
	}
}

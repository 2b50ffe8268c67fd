// Package client ties the Mount and NFS version 2 clients into a Session:
// one connection per program, a shared AUTH_UNIX credential, a cache of
// resolved file handles, and path based operations on top of the
// handle based protocol.
//
// A Session carries one call at a time; concurrent callers are serialized.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/mount"
	"github.com/marmos91/nfsclient/internal/protocol/nfs"
	"github.com/marmos91/nfsclient/internal/protocol/nfs/types"
	"github.com/marmos91/nfsclient/internal/protocol/rpc"
	"github.com/marmos91/nfsclient/pkg/config"
	"github.com/marmos91/nfsclient/pkg/handlecache"
	"github.com/marmos91/nfsclient/pkg/metrics"
)

// ErrClosed is returned by operations on a closed Session.
var ErrClosed = errors.New("session closed")

// Session is a connected client for one server.
type Session struct {
	mu     sync.Mutex
	cfg    *config.Config
	mount  *mount.Client
	nfs    *nfs.Client
	cache  handlecache.Cache
	closed bool

	// server namespaces cache keys so a shared cache never hands one
	// server's handles to another
	server string

	// ownsCache is false when the cache was supplied with WithHandleCache
	ownsCache bool

	// roots holds the handle returned by MNT for each export
	roots map[string]types.FileHandle
}

type options struct {
	rpcMetrics     metrics.RPCMetrics
	cacheMetrics   metrics.HandleCacheMetrics
	cache          handlecache.Cache
	credential     *rpc.LazyCredential
	mountTransport rpc.Transport
	nfsTransport   rpc.Transport
}

// Option customizes Dial.
type Option func(*options)

// WithMetrics records RPC calls and cache lookups. Nil values keep the
// no-op implementations.
func WithMetrics(rpcMetrics metrics.RPCMetrics, cacheMetrics metrics.HandleCacheMetrics) Option {
	return func(o *options) {
		o.rpcMetrics = rpcMetrics
		o.cacheMetrics = cacheMetrics
	}
}

// WithHandleCache uses c instead of the cache described by the
// configuration. The caller keeps ownership: Close does not close c.
func WithHandleCache(c handlecache.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithCredential overrides the AUTH_UNIX credential built from cfg.Auth.
func WithCredential(cred *rpc.LazyCredential) Option {
	return func(o *options) { o.credential = cred }
}

// WithTransports uses already connected transports for the Mount and NFS
// programs instead of dialing the server. The Session takes ownership.
func WithTransports(mountTransport, nfsTransport rpc.Transport) Option {
	return func(o *options) {
		o.mountTransport = mountTransport
		o.nfsTransport = nfsTransport
	}
}

// Dial connects to the server described by cfg.
//
// Ports set to 0 are looked up with the server's portmapper. Both programs
// use cfg.Server.Protocol. cfg must already carry defaults (config.Load
// applies them).
func Dial(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.rpcMetrics == nil {
		o.rpcMetrics = metrics.NewNoopRPCMetrics()
	}
	if o.credential == nil {
		o.credential = config.CreateCredential(&cfg.Auth)
	}

	// Supplied transports are never redialed.
	var mountRedial, nfsRedial rpc.Dialer
	mountT, nfsT := o.mountTransport, o.nfsTransport
	if mountT == nil || nfsT == nil {
		d := &dialer{cfg: cfg, metrics: o.rpcMetrics}

		var err error
		if mountT == nil {
			mountRedial = d.program(rpc.ProgramMount, mount.Version, cfg.Server.MountPort)
			if mountT, err = mountRedial(ctx); err != nil {
				closeAll(nfsT)
				return nil, fmt.Errorf("dial mount: %w", err)
			}
		}
		if nfsT == nil {
			nfsRedial = d.program(rpc.ProgramNFS, nfs.Version, cfg.Server.NFSPort)
			if nfsT, err = nfsRedial(ctx); err != nil {
				closeAll(mountT)
				return nil, fmt.Errorf("dial nfs: %w", err)
			}
		}
	}

	cache, ownsCache := o.cache, false
	if cache == nil {
		var err error
		cache, err = config.CreateHandleCache(ctx, &cfg.Cache, o.cacheMetrics)
		if err != nil {
			closeAll(mountT, nfsT)
			return nil, err
		}
		ownsCache = true
	}

	limiter := config.CreateRateLimiter(&cfg.RateLimit)

	s := &Session{
		cfg: cfg,
		mount: mount.NewClient(mountT, mount.Config{
			Credential:  o.credential,
			CallTimeout: cfg.Timeouts.Call,
			Metrics:     o.rpcMetrics,
			RateLimiter: limiter,
			Redial:      mountRedial,
		}),
		nfs: nfs.NewClient(nfsT, nfs.Config{
			Credential:   o.credential,
			ReadDirCount: cfg.ReadDir.Count,
			CallTimeout:  cfg.Timeouts.Call,
			Metrics:      o.rpcMetrics,
			RateLimiter:  limiter,
			Redial:       nfsRedial,
		}),
		server:    serverID(cfg, nfsT),
		cache:     cache,
		ownsCache: ownsCache,
		roots:     make(map[string]types.FileHandle),
	}

	logger.Debug("Session to %s over %s ready", cfg.Server.Host, cfg.Server.Protocol)
	return s, nil
}

func closeAll(ts ...rpc.Transport) {
	for _, t := range ts {
		if t != nil {
			_ = t.Close()
		}
	}
}

// Server returns the "host:port" identity that scopes this session's
// handle cache entries.
func (s *Session) Server() string {
	return s.server
}

// Ping calls NULL on the Mount and NFS programs.
func (s *Session) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.mount.Null(ctx); err != nil {
		return fmt.Errorf("mount null: %w", err)
	}
	if err := s.nfs.Null(ctx); err != nil {
		return fmt.Errorf("nfs null: %w", err)
	}
	return nil
}

// Close releases both connections and, unless supplied by the caller, the
// handle cache. Exports stay mounted on the server; call UnmountAll first
// to remove them.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	errs := []error{s.mount.Close(), s.nfs.Close()}
	if s.ownsCache {
		errs = append(errs, s.cache.Close())
	}
	return errors.Join(errs...)
}

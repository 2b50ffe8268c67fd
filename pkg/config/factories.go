package config

import (
	"context"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/rpc"
	"github.com/marmos91/nfsclient/internal/ratelimiter"
	"github.com/marmos91/nfsclient/pkg/handlecache"
	"github.com/marmos91/nfsclient/pkg/metrics"
)

// CreateHandleCache creates the handle cache selected by cfg.Type.
//
// Supported types:
//   - memory: in-process LRU with TTL
//   - badger: persistent cache; cfg.Badger must set path or in_memory
//   - none: no caching
//
// The context is checked before opening a database; cancellation aborts
// creation.
func CreateHandleCache(ctx context.Context, cfg *CacheConfig, m metrics.HandleCacheMetrics) (handlecache.Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return handlecache.NewMemory(handlecache.MemoryConfig{
			TTL:        cfg.TTL,
			MaxEntries: cfg.MaxEntries,
			Metrics:    m,
		}), nil
	case "badger":
		return createBadgerHandleCache(ctx, cfg, m)
	case "none", "":
		return handlecache.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache type: %q", cfg.Type)
	}
}

// createBadgerHandleCache decodes the badger options map and opens the
// database. cfg.TTL applies unless the options set their own ttl.
func createBadgerHandleCache(ctx context.Context, cfg *CacheConfig, m metrics.HandleCacheMetrics) (handlecache.Cache, error) {
	badgerCfg := handlecache.BadgerConfig{TTL: cfg.TTL}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &badgerCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(cfg.Badger); err != nil {
		return nil, fmt.Errorf("invalid badger cache config: %w", err)
	}

	if badgerCfg.Path == "" && !badgerCfg.InMemory {
		return nil, fmt.Errorf("badger cache: path is required unless in_memory is set")
	}
	badgerCfg.Metrics = m

	cache, err := handlecache.NewBadger(ctx, badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger cache: %w", err)
	}

	logger.Info("Handle cache: badger at %q (ttl=%v)", badgerCfg.Path, badgerCfg.TTL)
	return cache, nil
}

// CreateCredential returns the AUTH_UNIX credential described by cfg.
// Fields left unset are filled from the local process when the credential
// is first sent.
func CreateCredential(cfg *AuthConfig) *rpc.LazyCredential {
	return rpc.NewLazyCredential(func() (*rpc.UnixAuth, error) {
		local, err := rpc.LocalUnixAuth()
		if err != nil {
			if cfg.MachineName == "" {
				return nil, err
			}
			// An explicit machine name makes the host name unnecessary.
			local = rpc.NewUnixAuth("", uint32(os.Getuid()), uint32(os.Getgid()), nil)
		}

		if cfg.MachineName != "" {
			local.MachineName = cfg.MachineName
		}
		if cfg.UID != nil {
			local.UID = *cfg.UID
		}
		if cfg.GID != nil {
			local.GID = *cfg.GID
		}
		if cfg.GIDs != nil {
			local.GIDs = append([]uint32(nil), cfg.GIDs...)
		}
		return local, nil
	})
}

// CreateRateLimiter returns the call rate limiter, or nil when limiting is
// disabled.
func CreateRateLimiter(cfg *RateLimitConfig) *ratelimiter.RateLimiter {
	return ratelimiter.New(cfg.RequestsPerSecond, cfg.Burst)
}

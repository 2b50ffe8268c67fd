package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/nfsclient/internal/protocol/rpc"
	"github.com/marmos91/nfsclient/pkg/handlecache"
)

func TestCreateHandleCache_Memory(t *testing.T) {
	cfg := &CacheConfig{Type: "memory", TTL: time.Minute, MaxEntries: 5}

	cache, err := CreateHandleCache(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create memory cache: %v", err)
	}
	defer func() { _ = cache.Close() }()

	if _, ok := cache.(*handlecache.Memory); !ok {
		t.Errorf("Expected *handlecache.Memory, got %T", cache)
	}
}

func TestCreateHandleCache_None(t *testing.T) {
	cache, err := CreateHandleCache(context.Background(), &CacheConfig{Type: "none"}, nil)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	if _, ok := cache.(handlecache.Nop); !ok {
		t.Errorf("Expected handlecache.Nop, got %T", cache)
	}
}

func TestCreateHandleCache_Badger(t *testing.T) {
	cfg := &CacheConfig{
		Type: "badger",
		TTL:  time.Minute,
		Badger: map[string]any{
			"path":                filepath.Join(t.TempDir(), "handles"),
			"ttl":                 "5m",
			"block_cache_size_mb": "4",
		},
	}

	cache, err := CreateHandleCache(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create badger cache: %v", err)
	}
	defer func() { _ = cache.Close() }()

	if _, ok := cache.(*handlecache.Badger); !ok {
		t.Errorf("Expected *handlecache.Badger, got %T", cache)
	}
}

func TestCreateHandleCache_BadgerMissingPath(t *testing.T) {
	cfg := &CacheConfig{Type: "badger", Badger: map[string]any{}}

	_, err := CreateHandleCache(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("Expected error for badger cache without path")
	}
}

func TestCreateHandleCache_BadgerInvalidOption(t *testing.T) {
	cfg := &CacheConfig{Type: "badger", Badger: map[string]any{"ttl": "soon", "in_memory": true}}

	_, err := CreateHandleCache(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("Expected error for unparsable ttl")
	}
}

func TestCreateHandleCache_UnknownType(t *testing.T) {
	_, err := CreateHandleCache(context.Background(), &CacheConfig{Type: "redis"}, nil)
	if err == nil {
		t.Fatal("Expected error for unknown cache type")
	}
}

func TestCreateHandleCache_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CreateHandleCache(ctx, &CacheConfig{Type: "memory"}, nil)
	if err == nil {
		t.Fatal("Expected error with canceled context")
	}
}

func TestCreateCredential_Overrides(t *testing.T) {
	uid, gid := uint32(1234), uint32(5678)
	cred := CreateCredential(&AuthConfig{
		MachineName: "workstation",
		UID:         &uid,
		GID:         &gid,
		GIDs:        []uint32{10, 20},
	})

	if cred.Built() {
		t.Fatal("Credential should be built lazily")
	}

	opaque, err := cred.Get()
	if err != nil {
		t.Fatalf("Failed to build credential: %v", err)
	}
	if opaque.Flavor != rpc.AuthUnix {
		t.Fatalf("Expected AUTH_UNIX flavor, got %d", opaque.Flavor)
	}

	auth, err := rpc.ParseUnixAuth(opaque.Body)
	if err != nil {
		t.Fatalf("Failed to parse credential body: %v", err)
	}
	if auth.MachineName != "workstation" || auth.UID != 1234 || auth.GID != 5678 {
		t.Errorf("Unexpected credential %+v", auth)
	}
	if len(auth.GIDs) != 2 || auth.GIDs[0] != 10 || auth.GIDs[1] != 20 {
		t.Errorf("Expected gids [10 20], got %v", auth.GIDs)
	}
}

func TestCreateRateLimiter(t *testing.T) {
	if rl := CreateRateLimiter(&RateLimitConfig{}); rl != nil {
		t.Error("Expected nil limiter when rate is 0")
	}

	rl := CreateRateLimiter(&RateLimitConfig{RequestsPerSecond: 10, Burst: 20})
	if rl == nil {
		t.Fatal("Expected limiter")
	}
	if rl.Burst() != 20 {
		t.Errorf("Expected burst 20, got %d", rl.Burst())
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	result := InitializeMetrics(GetDefaultConfig())

	if result.Server != nil {
		t.Error("Expected no metrics server when disabled")
	}
	if result.RPCMetrics == nil || result.CacheMetrics == nil {
		t.Error("Expected no-op metrics, got nil")
	}
}

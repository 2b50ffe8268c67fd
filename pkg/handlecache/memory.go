package handlecache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/nfs/types"
	"github.com/marmos91/nfsclient/pkg/metrics"
)

const backendMemory = "memory"

// MemoryConfig configures the in-process cache.
type MemoryConfig struct {
	// TTL is the entry lifetime. Zero means entries never expire.
	TTL time.Duration

	// MaxEntries bounds the cache. The least recently used entry is evicted
	// when full.
	// Default: 10000
	MaxEntries int

	Metrics metrics.HandleCacheMetrics
}

type memoryEntry struct {
	key      string
	handle   types.FileHandle
	cachedAt time.Time
	elem     *list.Element
}

// Memory is an LRU cache with per-entry TTL. Safe for concurrent use.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	lru        *list.List // front = most recently used
	ttl        time.Duration
	maxEntries int
	metrics    metrics.HandleCacheMetrics
	closed     bool

	// now is replaced in tests
	now func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoopHandleCacheMetrics()
	}
	return &Memory{
		entries:    make(map[string]*memoryEntry),
		lru:        list.New(),
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		metrics:    cfg.Metrics,
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (types.FileHandle, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return types.FileHandle{}, false, ErrClosed
	}

	entry, found := m.entries[key]
	if !found {
		m.metrics.RecordMiss(backendMemory)
		return types.FileHandle{}, false, nil
	}

	if m.ttl > 0 && m.now().Sub(entry.cachedAt) > m.ttl {
		m.remove(entry)
		m.metrics.RecordMiss(backendMemory)
		return types.FileHandle{}, false, nil
	}

	m.lru.MoveToFront(entry.elem)
	m.metrics.RecordHit(backendMemory)
	return entry.handle, true, nil
}

func (m *Memory) Put(_ context.Context, key string, fh types.FileHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if entry, found := m.entries[key]; found {
		entry.handle = fh
		entry.cachedAt = m.now()
		m.lru.MoveToFront(entry.elem)
		return nil
	}

	for len(m.entries) >= m.maxEntries {
		m.evictOldest()
	}

	entry := &memoryEntry{key: key, handle: fh, cachedAt: m.now()}
	entry.elem = m.lru.PushFront(entry)
	m.entries[key] = entry
	return nil
}

func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	for k, entry := range m.entries {
		if isUnder(k, key) {
			m.remove(entry)
		}
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries = make(map[string]*memoryEntry)
	m.lru.Init()
	return nil
}

// evictOldest drops the least recently used entry. Caller holds mu.
func (m *Memory) evictOldest() {
	back := m.lru.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*memoryEntry)
	m.remove(entry)
	m.metrics.RecordEviction(backendMemory)
	logger.Debug("Handle cache: evicted %s", entry.key)
}

// remove unlinks entry. Caller holds mu.
func (m *Memory) remove(entry *memoryEntry) {
	m.lru.Remove(entry.elem)
	delete(m.entries, entry.key)
}

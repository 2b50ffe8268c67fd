package handlecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/nfs/types"
	"github.com/marmos91/nfsclient/pkg/metrics"
)

const (
	backendBadger = "badger"

	// keyPrefix namespaces handle entries inside the database.
	keyPrefix = "fh:"
)

// BadgerConfig configures the persistent cache.
type BadgerConfig struct {
	// Path is the database directory. Created if missing.
	Path string `mapstructure:"path"`

	// InMemory keeps the database in memory. Path is ignored.
	InMemory bool `mapstructure:"in_memory"`

	// TTL is applied to every entry. Zero means entries never expire.
	TTL time.Duration `mapstructure:"ttl"`

	// SyncWrites fsyncs every Put.
	SyncWrites bool `mapstructure:"sync_writes"`

	// BlockCacheSizeMB is Badger's block cache size.
	// Default: 16
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is Badger's index cache size.
	// Default: 8
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`

	Metrics metrics.HandleCacheMetrics `mapstructure:"-"`
}

// Badger is a handle cache persisted in a BadgerDB database.
type Badger struct {
	db      *badger.DB
	ttl     time.Duration
	metrics metrics.HandleCacheMetrics

	closeOnce sync.Once
	closeErr  error
}

// NewBadger opens (or creates) the cache database described by cfg.
func NewBadger(ctx context.Context, cfg BadgerConfig) (*Badger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Path == "" && !cfg.InMemory {
		return nil, errors.New("badger handle cache: path is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoopHandleCacheMetrics()
	}

	blockCacheMB := cfg.BlockCacheSizeMB
	if blockCacheMB <= 0 {
		blockCacheMB = 16
	}
	indexCacheMB := cfg.IndexCacheSizeMB
	if indexCacheMB <= 0 {
		indexCacheMB = 8
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	// Entries are 32-byte handles; compression gains nothing.
	opts = opts.WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithSyncWrites(cfg.SyncWrites).
		WithBlockCacheSize(blockCacheMB << 20).
		WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Path, err)
	}

	logger.Debug("Handle cache: badger opened path=%q in_memory=%v ttl=%v", cfg.Path, cfg.InMemory, cfg.TTL)

	return &Badger{db: db, ttl: cfg.TTL, metrics: cfg.Metrics}, nil
}

func entryKey(key string) []byte {
	return []byte(keyPrefix + key)
}

func (b *Badger) Get(ctx context.Context, key string) (types.FileHandle, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.FileHandle{}, false, err
	}

	var fh types.FileHandle
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			h, err := types.FileHandleFromBytes(val)
			if err != nil {
				return err
			}
			fh = h
			return nil
		})
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		b.metrics.RecordMiss(backendBadger)
		return types.FileHandle{}, false, nil
	case errors.Is(err, badger.ErrDBClosed):
		return types.FileHandle{}, false, ErrClosed
	case err != nil:
		return types.FileHandle{}, false, fmt.Errorf("handle cache get %s: %w", key, err)
	}

	b.metrics.RecordHit(backendBadger)
	return fh, true, nil
}

func (b *Badger) Put(ctx context.Context, key string, fh types.FileHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(entryKey(key), fh[:])
		if b.ttl > 0 {
			e = e.WithTTL(b.ttl)
		}
		return txn.SetEntry(e)
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("handle cache put %s: %w", key, err)
	}
	return nil
}

func (b *Badger) Invalidate(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for _, k := range b.keysUnder(txn, key) {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("handle cache invalidate %s: %w", key, err)
	}
	return nil
}

// keysUnder returns the stored keys equal to or beneath key.
func (b *Badger) keysUnder(txn *badger.Txn, key string) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	prefix := entryKey(key)
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		k := it.Item().KeyCopy(nil)
		if isUnder(string(k[len(keyPrefix):]), key) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (b *Badger) Len() int {
	n := 0
	_ = b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n
}

func (b *Badger) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.db.Close()
	})
	return b.closeErr
}

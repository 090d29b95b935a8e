package transformcache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/erfianugrah/image-resizer-2-sub011/pkg/cachekey"
	"github.com/erfianugrah/image-resizer-2-sub011/pkg/kvstore"
	"github.com/erfianugrah/image-resizer-2-sub011/pkg/memcache"
)

// ErrCacheMiss is re-exported for callers that only import this package.
var ErrCacheMiss = kvstore.ErrCacheMiss

// PersistentStore is the durable tier contract consumed by the engine.
// *kvstore.Store is the production implementation.
type PersistentStore interface {
	Get(ctx context.Context, key string) (*kvstore.Entry, error)
	GetMetadata(ctx context.Context, key string) (*kvstore.Metadata, error)
	Put(ctx context.Context, key string, payload []byte, meta kvstore.Metadata, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, limit int64, cursor uint64) ([]kvstore.ListItem, uint64, bool, error)
	KeysByTag(ctx context.Context, tag string) ([]string, error)
	DropTagIndex(ctx context.Context, tag string) error
}

// WriteGate gates persistent writes against an external budget.
// *kvstore.WriteQuota is the production implementation.
type WriteGate interface {
	Allow(ctx context.Context) bool
	Record(ctx context.Context) error
}

// Config holds the engine configuration.
type Config struct {
	// KeyPrefix is the first field of every generated key.
	KeyPrefix string

	// DefaultTTL is the persistent-tier TTL for stored results.
	DefaultTTL time.Duration

	// MemoryTTL caps how long results live in the memory tier.
	MemoryTTL time.Duration

	// MaxMemoryEntries bounds the memory tier.
	MaxMemoryEntries int

	// FormatPriority is the candidate scan order for format-variant keys.
	FormatPriority []string

	// MaxFormatCandidates bounds the priority scan (0 = full list). Each
	// candidate costs one persistent-store round trip on the miss path.
	MaxFormatCandidates int

	// Quota optionally gates persistent writes (nil disables gating).
	Quota WriteGate
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:        cachekey.DefaultPrefix,
		DefaultTTL:       24 * time.Hour,
		MemoryTTL:        60 * time.Second,
		MaxMemoryEntries: memcache.DefaultMaxEntries,
		FormatPriority:   DefaultFormatPriority,
	}
}

// Cache is the two-tier transform result cache engine.
type Cache struct {
	store  PersistentStore
	memory *memcache.Cache
	keys   cachekey.Builder
	cfg    Config
	logger zerolog.Logger
	stats  *Stats
}

var _ PersistentStore = (*kvstore.Store)(nil)
var _ WriteGate = (*kvstore.WriteQuota)(nil)

// New creates the engine on top of a persistent store.
func New(store PersistentStore, cfg Config, logger zerolog.Logger) *Cache {
	if store == nil {
		panic("persistent store cannot be nil")
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 24 * time.Hour
	}
	if cfg.MemoryTTL <= 0 {
		cfg.MemoryTTL = 60 * time.Second
	}
	if len(cfg.FormatPriority) == 0 {
		cfg.FormatPriority = DefaultFormatPriority
	}

	return &Cache{
		store:  store,
		memory: memcache.New(cfg.MaxMemoryEntries),
		keys:   cachekey.NewBuilder(cfg.KeyPrefix),
		cfg:    cfg,
		logger: logger.With().Str("component", "transform-cache").Logger(),
		stats:  NewStats(),
	}
}

// Get resolves a transformation request against both tiers.
//
// Candidates are tried strictly in order because each step's necessity
// depends on the previous step's miss; a hit short-circuits, and issuing all
// candidates concurrently would waste store quota on the common case. Every
// persistent-tier hit is promoted into the memory tier under the base key so
// the next lookup for this logical resource is a single memory hit.
//
// Returns ErrCacheMiss on a definitive miss. Storage failures are logged and
// degrade to a miss; they never propagate.
func (c *Cache) Get(ctx context.Context, req cachekey.Request) (*kvstore.Entry, error) {
	start := time.Now()
	defer func() {
		d := time.Since(start)
		cacheLookupDuration.Observe(d.Seconds())
		c.stats.RecordLookup(d)
	}()

	keys := c.candidateKeys(req)
	baseKey := keys[0]

	for i, key := range keys {
		if entry := c.memory.Get(key); entry != nil {
			cacheLookups.WithLabelValues("hit_memory").Inc()
			c.stats.RecordHit()
			return entry, nil
		}

		entry, err := c.store.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, kvstore.ErrCacheMiss) {
				c.logger.Warn().Err(err).Str("key", key).Msg("Persistent tier read failed - treating as miss")
				c.stats.RecordError()
			}
			continue
		}

		if i > 0 {
			formatFallbacks.Inc()
			c.logger.Debug().
				Str("base_key", baseKey).
				Str("hit_key", key).
				Str("actual_format", entry.Metadata.ActualFormat).
				Msg("Lookup satisfied by format-variant key")
		}
		if err := c.memory.Put(baseKey, entry, c.memoryTTL(entry)); err != nil {
			c.logger.Warn().Err(err).Str("key", baseKey).Msg("Memory tier promotion failed")
		}

		cacheLookups.WithLabelValues("hit_kv").Inc()
		c.stats.RecordHit()
		return entry, nil
	}

	cacheLookups.WithLabelValues("miss").Inc()
	c.stats.RecordMiss()
	return nil, kvstore.ErrCacheMiss
}

// Exists reports whether any candidate key holds a live entry, using
// metadata-only reads against the persistent tier.
func (c *Cache) Exists(ctx context.Context, req cachekey.Request) bool {
	for _, key := range c.candidateKeys(req) {
		if c.memory.Has(key) {
			return true
		}
		if _, err := c.store.GetMetadata(ctx, key); err == nil {
			return true
		} else if !errors.Is(err, kvstore.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("key", key).Msg("Persistent tier metadata check failed")
			c.stats.RecordError()
		}
	}
	return false
}

// Store persists a freshly computed transformation result in both tiers and
// returns the canonical key it was written under. The key always carries the
// actual produced format derived from contentType, never "auto".
//
// The write is decoupled from the request's cancellation: its purpose is to
// benefit future requests, so it runs to completion even when the caller's
// read side has been aborted. A deduplicator in ctx short-circuits repeat
// writes of the same logical operation within one request; storage failures
// are logged and dropped, so stored=false never means the response failed.
func (c *Cache) Store(ctx context.Context, req cachekey.Request, payload []byte, contentType string, tags []string) (key string, stored bool) {
	actualFormat := FormatFromContentType(contentType)
	key = c.keys.Build(req, actualFormat)

	if d := DeduplicatorFrom(ctx); d != nil {
		if !d.ShouldWrite(OperationKey(req)) {
			c.logger.Debug().Str("key", key).Msg("Duplicate write suppressed for this request")
			cacheWrites.WithLabelValues("deduplicated").Inc()
			return key, false
		}
	}

	now := time.Now()
	meta := kvstore.Metadata{
		ContentType:  contentType,
		SizeBytes:    int64(len(payload)),
		CreatedAt:    now,
		ExpiresAt:    now.Add(c.cfg.DefaultTTL),
		TTLSeconds:   int(c.cfg.DefaultTTL / time.Second),
		ActualFormat: actualFormat,
		SourcePath:   req.Path,
		Tags:         tags,
	}

	wctx := context.WithoutCancel(ctx)

	if c.cfg.Quota != nil && !c.cfg.Quota.Allow(wctx) {
		cacheWrites.WithLabelValues("quota_blocked").Inc()
	} else if err := c.store.Put(wctx, key, payload, meta, c.cfg.DefaultTTL); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Persistent tier write failed - continuing without cache")
		c.stats.RecordError()
		cacheWrites.WithLabelValues("failed").Inc()
	} else {
		stored = true
		cacheWrites.WithLabelValues("stored").Inc()
		if c.cfg.Quota != nil {
			if err := c.cfg.Quota.Record(wctx); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to record write quota consumption")
			}
		}
		c.logger.Debug().
			Str("key", key).
			Str("actual_format", actualFormat).
			Int("size_bytes", len(payload)).
			Msg("Cached transformation result")
	}

	entry := &kvstore.Entry{Key: key, Payload: payload, Metadata: meta}
	if err := c.memory.Put(key, entry, c.cfg.MemoryTTL); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Memory tier write failed")
	}

	return key, stored
}

// Stats returns a snapshot of the engine's operational counters.
func (c *Cache) Stats() StatsReport {
	return c.stats.Report()
}

// memoryTTL bounds the memory-tier TTL by the entry's remaining persistent
// lifetime so the memory tier never outlives the durable entry.
func (c *Cache) memoryTTL(entry *kvstore.Entry) time.Duration {
	ttl := c.cfg.MemoryTTL
	if remaining := entry.Metadata.TTL(); remaining > 0 && remaining < ttl {
		ttl = remaining
	}
	return ttl
}

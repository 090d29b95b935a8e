package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss indicates the requested key was not found. Not a real
	// failure: callers treat it as ordinary control flow.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry could not be parsed.
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrTTLRequired indicates Put was called without a positive TTL.
	ErrTTLRequired = errors.New("kvstore: ttl is required")
)

// StoreError represents a failed persistent-tier operation with the
// operation name and affected key attached.
type StoreError struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("kvstore %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("kvstore %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Hash fields of the optimized storage scheme. Metadata lives in its own
// field so existence/metadata checks never fetch the payload, which is an
// order of magnitude cheaper than a full value read.
const (
	fieldMetadata = "meta"
	fieldPayload  = "payload"
)

// legacyEnvelope is the older storage scheme: one string value with the
// metadata embedded next to the payload. Still readable, never written.
type legacyEnvelope struct {
	Metadata Metadata `json:"metadata"`
	Payload  []byte   `json:"payload"`
}

// Store is the persistent cache tier. Each entry is a Redis hash with the
// metadata and payload in separate fields; TTL is enforced server-side by
// key expiry, so readers do not re-check expiry for this tier.
type Store struct {
	redis  *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewStore creates a persistent tier store. prefix scopes keys and the tag
// index and defaults to "transform".
func NewStore(redisClient *redis.Client, prefix string, logger zerolog.Logger) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = "transform"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
		logger: logger,
	}
}

// Get retrieves a full entry by key.
// Returns ErrCacheMiss if the key doesn't exist; malformed entries are
// logged and reported as a miss rather than propagated as parse errors.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	vals, err := s.redis.HMGet(ctx, key, fieldMetadata, fieldPayload).Result()
	if err != nil {
		if isWrongType(err) {
			return s.getLegacy(ctx, key)
		}
		kvErrors.WithLabelValues("get").Inc()
		return nil, &StoreError{Op: "get", Key: key, Err: err}
	}

	metaRaw, ok := vals[0].(string)
	if !ok {
		// No attached metadata: the key is absent, or was written in the
		// older payload-embedded scheme.
		return s.getLegacy(ctx, key)
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(metaRaw), &meta); err != nil {
		return nil, s.malformed(key, err)
	}

	entry := &Entry{Key: key, Metadata: meta}
	if payload, ok := vals[1].(string); ok {
		entry.Payload = []byte(payload)
	}

	kvHits.WithLabelValues("full").Inc()
	return entry, nil
}

// GetMetadata retrieves only the metadata attached to key, without reading
// the payload. Returns ErrCacheMiss if the key doesn't exist.
func (s *Store) GetMetadata(ctx context.Context, key string) (*Metadata, error) {
	metaRaw, err := s.redis.HGet(ctx, key, fieldMetadata).Result()
	if err != nil {
		if err == redis.Nil {
			// Key absent, or a hash without attached metadata.
			entry, lerr := s.getLegacy(ctx, key)
			if lerr != nil {
				return nil, lerr
			}
			return &entry.Metadata, nil
		}
		if isWrongType(err) {
			entry, lerr := s.getLegacy(ctx, key)
			if lerr != nil {
				return nil, lerr
			}
			return &entry.Metadata, nil
		}
		kvErrors.WithLabelValues("get_metadata").Inc()
		return nil, &StoreError{Op: "get_metadata", Key: key, Err: err}
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(metaRaw), &meta); err != nil {
		return nil, s.malformed(key, err)
	}

	kvHits.WithLabelValues("metadata").Inc()
	return &meta, nil
}

// getLegacy reads a key written in the older scheme: a plain string value
// holding a JSON envelope with embedded metadata.
func (s *Store) getLegacy(ctx context.Context, key string) (*Entry, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			kvMisses.Inc()
			return nil, ErrCacheMiss
		}
		if isWrongType(err) {
			// A hash without a metadata field: unusable either way.
			return nil, s.malformed(key, errors.New("hash entry without metadata field"))
		}
		kvErrors.WithLabelValues("get").Inc()
		return nil, &StoreError{Op: "get", Key: key, Err: err}
	}

	var envelope legacyEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, s.malformed(key, err)
	}

	kvHits.WithLabelValues("full").Inc()
	kvLegacyReads.Inc()
	return &Entry{Key: key, Payload: envelope.Payload, Metadata: envelope.Metadata}, nil
}

// Put stores payload and metadata under key with a server-side TTL. The
// metadata timestamps and TTL fields are normalized from ttl at write time.
func (s *Store) Put(ctx context.Context, key string, payload []byte, meta Metadata, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrTTLRequired
	}

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	meta.TTLSeconds = int(ttl / time.Second)
	meta.ExpiresAt = meta.CreatedAt.Add(ttl)
	if meta.SizeBytes == 0 {
		meta.SizeBytes = int64(len(payload))
	}

	data, err := json.Marshal(meta)
	if err != nil {
		kvErrors.WithLabelValues("put").Inc()
		return &StoreError{Op: "put", Key: key, Err: fmt.Errorf("marshal metadata: %w", err)}
	}

	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, key, fieldMetadata, data, fieldPayload, payload)
	pipe.Expire(ctx, key, ttl)
	for _, tag := range meta.Tags {
		pipe.SAdd(ctx, s.tagKey(tag), key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		kvErrors.WithLabelValues("put").Inc()
		return &StoreError{Op: "put", Key: key, Err: err}
	}

	kvBytesWritten.Add(float64(len(payload)))
	return nil
}

// Delete removes an entry. Idempotent: deleting an absent key is not an
// error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		kvErrors.WithLabelValues("delete").Inc()
		return &StoreError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// ListItem is one row of a paginated listing: the key plus its metadata,
// never the payload.
type ListItem struct {
	Key      string   `json:"key"`
	Metadata Metadata `json:"metadata"`
}

// List returns a page of entry metadata. cursor is an opaque continuation
// token (0 starts a scan); the returned cursor is 0 and complete is true
// when the scan has covered the whole keyspace. Keys that vanish or fail to
// parse mid-scan are skipped, not errors.
func (s *Store) List(ctx context.Context, limit int64, cursor uint64) ([]ListItem, uint64, bool, error) {
	if limit <= 0 {
		limit = 100
	}

	keys, next, err := s.redis.Scan(ctx, cursor, s.prefix+":*", limit).Result()
	if err != nil {
		kvErrors.WithLabelValues("list").Inc()
		return nil, 0, false, &StoreError{Op: "list", Err: err}
	}

	items := make([]ListItem, 0, len(keys))
	for _, key := range keys {
		// Tag index sets and the quota counter live under the same prefix
		// but are not entries.
		if strings.HasPrefix(key, s.tagKeyPrefix()) || strings.HasPrefix(key, s.prefix+":quota:") {
			continue
		}
		meta, err := s.GetMetadata(ctx, key)
		if err != nil {
			if !errors.Is(err, ErrCacheMiss) {
				s.logger.Warn().Err(err).Str("key", key).Msg("Skipping unreadable entry during list")
			}
			continue
		}
		items = append(items, ListItem{Key: key, Metadata: *meta})
	}

	return items, next, next == 0, nil
}

// KeysByTag returns all keys recorded in the tag index for tag. The index
// may contain keys that have since expired; deletes against them are
// idempotent.
func (s *Store) KeysByTag(ctx context.Context, tag string) ([]string, error) {
	keys, err := s.redis.SMembers(ctx, s.tagKey(tag)).Result()
	if err != nil {
		kvErrors.WithLabelValues("list").Inc()
		return nil, &StoreError{Op: "keys_by_tag", Key: s.tagKey(tag), Err: err}
	}
	return keys, nil
}

// DropTagIndex removes the index set for tag.
func (s *Store) DropTagIndex(ctx context.Context, tag string) error {
	if err := s.redis.Del(ctx, s.tagKey(tag)).Err(); err != nil {
		kvErrors.WithLabelValues("delete").Inc()
		return &StoreError{Op: "drop_tag_index", Key: s.tagKey(tag), Err: err}
	}
	return nil
}

func (s *Store) tagKey(tag string) string {
	return s.tagKeyPrefix() + tag
}

func (s *Store) tagKeyPrefix() string {
	return s.prefix + ":tag:"
}

// malformed logs a warn, counts the entry, and reports a miss. A corrupted
// entry must degrade to recompute, never fail the request.
func (s *Store) malformed(key string, err error) error {
	s.logger.Warn().
		Err(fmt.Errorf("%w: %v", ErrInvalidEntry, err)).
		Str("key", key).
		Msg("Malformed cache entry treated as miss")
	kvMalformedEntries.Inc()
	kvMisses.Inc()
	return ErrCacheMiss
}

func isWrongType(err error) bool {
	return err != nil && strings.Contains(err.Error(), "WRONGTYPE")
}

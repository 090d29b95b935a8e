// Package memcache implements the in-process cache tier (L1) for transformed
// images. It is a bounded, insertion-ordered map with per-entry TTLs. All
// operations are synchronous and never touch the network; the tier is a pure
// performance cache with no correctness dependency, so it is cleared
// wholesale on purge rather than tracking per-key invalidation.
package memcache

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"github.com/erfianugrah/image-resizer-2-sub011/pkg/kvstore"
)

// ErrTTLRequired is returned by Put when no positive TTL is given. Every
// entry requires an expiry to prevent unbounded staleness.
var ErrTTLRequired = errors.New("memcache: ttl is required")

// DefaultMaxEntries bounds the cache when no explicit capacity is configured.
const DefaultMaxEntries = 1000

// evictFraction is the share of the configured capacity removed in one batch
// when the cache overflows. Evicting a batch on write amortizes eviction cost
// and keeps read latency predictable.
const evictFraction = 5 // 1/5 = 20%

type memEntry struct {
	key       string
	entry     *kvstore.Entry
	expiresAt time.Time
}

// Cache is a bounded in-memory cache with TTL and oldest-first batch
// eviction. Safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	ll         *list.List // front = oldest insertion
	entries    map[string]*list.Element
}

// New creates a Cache holding at most maxEntries entries.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		maxEntries: maxEntries,
		ll:         list.New(),
		entries:    make(map[string]*list.Element),
	}
}

// Get returns the entry for key, or nil on miss. Expired entries are removed
// on access and reported as absent, never returned stale.
func (c *Cache) Get(key string) *kvstore.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		memMisses.Inc()
		return nil
	}
	me := elem.Value.(*memEntry)
	if time.Now().After(me.expiresAt) {
		c.removeElement(elem)
		memEvictions.WithLabelValues("expired").Inc()
		memMisses.Inc()
		return nil
	}
	memHits.Inc()
	return me.entry
}

// Has reports whether a live entry exists for key. Expired entries are
// removed on access.
func (c *Cache) Has(key string) bool {
	return c.Get(key) != nil
}

// Put stores entry under key for ttl. A non-positive ttl is a programming
// error and is rejected. Overwriting an existing key keeps its insertion
// position. Capacity overflow evicts the oldest 20% of capacity in one batch.
func (c *Cache) Put(key string, entry *kvstore.Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrTTLRequired
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(ttl)
	if elem, ok := c.entries[key]; ok {
		me := elem.Value.(*memEntry)
		me.entry = entry
		me.expiresAt = expiresAt
		return nil
	}

	c.entries[key] = c.ll.PushBack(&memEntry{key: key, entry: entry, expiresAt: expiresAt})

	if c.ll.Len() > c.maxEntries {
		c.evictOldestBatch()
	}
	memEntries.Set(float64(c.ll.Len()))
	return nil
}

// EvictExpired removes every expired entry and returns the removed count.
func (c *Cache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for elem := c.ll.Front(); elem != nil; {
		next := elem.Next()
		if now.After(elem.Value.(*memEntry).expiresAt) {
			c.removeElement(elem)
			memEvictions.WithLabelValues("expired").Inc()
			removed++
		}
		elem = next
	}
	memEntries.Set(float64(c.ll.Len()))
	return removed
}

// Len returns the number of entries currently held, including not-yet-swept
// expired ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.entries = make(map[string]*list.Element)
	memEntries.Set(0)
}

func (c *Cache) evictOldestBatch() {
	batch := c.maxEntries / evictFraction
	if batch < 1 {
		batch = 1
	}
	for i := 0; i < batch; i++ {
		oldest := c.ll.Front()
		if oldest == nil {
			return
		}
		c.removeElement(oldest)
		memEvictions.WithLabelValues("capacity").Inc()
	}
}

func (c *Cache) removeElement(elem *list.Element) {
	c.ll.Remove(elem)
	delete(c.entries, elem.Value.(*memEntry).key)
}

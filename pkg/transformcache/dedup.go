package transformcache

import (
	"context"
	"sync"

	"github.com/erfianugrah/image-resizer-2-sub011/pkg/cachekey"
)

// Deduplicator scopes persistent writes to at most one per logical operation
// within a single inbound request. Construct one per request and carry it in
// the request context; a process-wide instance would suppress legitimate
// writes across unrelated requests, which is exactly the failure mode this
// type exists to prevent. It provides no cross-request or cross-process
// guarantees: concurrent requests racing on the same brand-new resource are
// an accepted idempotent-overwrite race.
type Deduplicator struct {
	mu   sync.Mutex
	done map[string]bool
}

// NewDeduplicator creates an empty request-scoped deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{done: make(map[string]bool)}
}

// ShouldWrite returns true exactly once per operation key for this instance.
func (d *Deduplicator) ShouldWrite(operationKey string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.done[operationKey] {
		return false
	}
	d.done[operationKey] = true
	return true
}

// OperationKey identifies one logical write operation: the effective request
// URL plus the canonical serialization of the transform parameters, using
// the same canonicalization rules as key building so permuted parameters
// collapse to one operation.
func OperationKey(req cachekey.Request) string {
	return req.Path + "?" + cachekey.CanonicalQuery(req.Query) + "|" + cachekey.CanonicalParams(req.Params)
}

type dedupCtxKey struct{}

// WithDeduplicator returns a context carrying a fresh Deduplicator. Call at
// the top of each inbound request handler.
func WithDeduplicator(ctx context.Context) context.Context {
	return context.WithValue(ctx, dedupCtxKey{}, NewDeduplicator())
}

// DeduplicatorFrom extracts the request's Deduplicator, or nil when the
// caller opted out of write deduplication.
func DeduplicatorFrom(ctx context.Context) *Deduplicator {
	d, _ := ctx.Value(dedupCtxKey{}).(*Deduplicator)
	return d
}

// Package kvstore implements the persistent cache tier for transformed
// images on top of Redis.
package kvstore

import (
	"time"
)

// Metadata describes a stored transformation result. It is attached to the
// key itself (a dedicated hash field) so existence and metadata checks never
// read the payload.
type Metadata struct {
	// ContentType is the MIME type of the stored payload.
	ContentType string `json:"content_type"`

	// SizeBytes is the payload size at write time.
	SizeBytes int64 `json:"size_bytes"`

	// CreatedAt is when the entry was written.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is CreatedAt + TTLSeconds. The store also expires the key
	// server-side, so readers do not re-check this for the persistent tier.
	ExpiresAt time.Time `json:"expires_at"`

	// TTLSeconds is the write-time TTL in seconds.
	TTLSeconds int `json:"ttl_seconds"`

	// ActualFormat is the real output format produced by the transformation,
	// never the requested/"auto" value.
	ActualFormat string `json:"actual_format"`

	// SourcePath is the original resource path, kept for path-pattern purge.
	SourcePath string `json:"source_path"`

	// Tags are purge groups this entry belongs to.
	Tags []string `json:"tags,omitempty"`
}

// IsExpired returns true once wall-clock time has passed ExpiresAt.
func (m *Metadata) IsExpired() bool {
	return time.Now().After(m.ExpiresAt)
}

// TTL returns the remaining time until expiry, 0 if already expired.
func (m *Metadata) TTL() time.Duration {
	ttl := time.Until(m.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Entry is a stored transformation result. Entries are immutable: a new
// output format produces a new entry under a new key, never an in-place
// update.
type Entry struct {
	// Key is the canonical cache key this entry was stored under.
	Key string `json:"key"`

	// Payload is the transformed image. May be empty in metadata-only mode.
	Payload []byte `json:"payload,omitempty"`

	// Metadata describes the payload.
	Metadata Metadata `json:"metadata"`
}

// Package transformcache is the result cache engine for image
// transformations. It decides whether a previously computed result can be
// reused, stores and retrieves results across two tiers, and purges stale
// entries.
//
// One logical resource (source path + normalized transform parameters) may
// be stored under several keys over time, one per actual output format ever
// produced for it. Reads therefore scan an ordered list of candidate keys:
// the historical/default key first, then the explicitly requested format,
// then a short priority list of common output formats. A persistent-tier hit
// on any candidate is promoted into the memory tier under the base key so
// the next lookup is a single-step memory hit regardless of which format
// satisfied it.
//
// Writes always key on the actual produced format, never on the requested or
// "auto" value, and pass through a request-scoped deduplicator so one
// logical request persists each result at most once. Cross-request
// deduplication is deliberately out of scope: concurrent writers racing on
// the same brand-new key overwrite each other idempotently.
//
// The persistent tier is strictly an optimization. Every storage failure
// degrades to a miss (read) or a logged no-op (write); a total store outage
// means "always recompute", never an error response.
package transformcache

// Package cachekey builds deterministic cache keys for transformed images.
//
// A key identifies one stored transformation result and has five
// colon-delimited fields:
//
//	{prefix}:{basename}:{paramSummary}:{format}:{hash}
//
// The hash field is a zero-padded lowercase hex FNV-1a (32-bit) digest of the
// source path, the order-normalized query string, and the canonical JSON
// serialization of the transform parameters. Parameter insertion order never
// affects the key: objects are serialized with sorted keys at every nesting
// level, and reserved internal flags (names starting with "__") are dropped
// before hashing.
//
// The format field is the only field that varies between stored variants of
// the same logical resource. The hash deliberately excludes it, so a key for
// a different output format can be derived from an existing key by swapping
// that single field (see ReplaceFormat).
//
// The paramSummary field is a short human-readable token list (e.g.
// "w800-h600") for debugging and log inspection. Uniqueness is guaranteed by
// the hash, not the summary.
//
// External tooling parses stored keys, so the format above is a stable
// contract. ParseKey validates and splits a key into its fields.
package cachekey

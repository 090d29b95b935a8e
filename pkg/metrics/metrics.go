// Package metrics provides the centralized Prometheus registry reference for
// the transform cache. All metrics are defined in their respective packages
// (kvstore, memcache, transformcache, origin) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the transform cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Persistent Tier Metrics (pkg/kvstore):
//   - transform_kv_hits_total{mode} (Counter): Persistent-tier hits by read mode (full, metadata, legacy)
//   - transform_kv_misses_total (Counter): Persistent-tier misses
//   - transform_kv_errors_total{operation} (Counter): Store operation errors
//   - transform_kv_legacy_reads_total (Counter): Entries served from the legacy envelope format
//   - transform_kv_malformed_entries_total (Counter): Undecodable entries treated as misses
//   - transform_kv_bytes_written_total (Counter): Payload bytes written
//   - transform_kv_write_quota_remaining (Gauge): Remaining daily write budget
//   - transform_kv_write_quota_blocks_total (Counter): Writes blocked by the quota
//
// Memory Tier Metrics (pkg/memcache):
//   - transform_memory_hits_total (Counter): Memory-tier hits
//   - transform_memory_misses_total (Counter): Memory-tier misses
//   - transform_memory_evictions_total{reason} (Counter): Evictions by reason (capacity, expired)
//   - transform_memory_entries (Gauge): Current memory-tier entry count
//
// Engine Metrics (pkg/transformcache):
//   - transform_cache_lookups_total{result} (Counter): Lookups by result (hit_memory, hit_kv, miss)
//   - transform_cache_lookup_duration_seconds (Histogram): Full resolver scan duration
//   - transform_cache_format_fallbacks_total (Counter): Lookups satisfied by a format-variant key
//   - transform_cache_writes_total{result} (Counter): Writes by result (stored, failed, deduplicated, quota_blocked)
//   - transform_cache_purged_keys_total{selector} (Counter): Purged keys by selector (tag, path)
//
// Origin Metrics (pkg/origin):
//   - transform_origin_requests_total{status} (Counter): Origin requests by HTTP status
//   - transform_origin_request_duration_seconds (Histogram): Origin request duration
//   - transform_origin_errors_total{class} (Counter): Origin errors by class (client, server, network)
//   - transform_origin_retries_total{error_class} (Counter): Retry attempts by error class
//   - transform_origin_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - transform_origin_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Overall Cache Hit Rate
//   sum(rate(transform_cache_lookups_total{result=~"hit_.*"}[5m])) /
//   sum(rate(transform_cache_lookups_total[5m]))
//
//   # Format Fallback Rate
//   rate(transform_cache_format_fallbacks_total[5m]) /
//   rate(transform_cache_lookups_total{result="hit_kv"}[5m])
//
//   # Write Quota Headroom
//   transform_kv_write_quota_remaining < 1000
//
//   # P95 Lookup Latency
//   histogram_quantile(0.95, rate(transform_cache_lookup_duration_seconds_bucket[5m]))
//
//   # Origin Error Rate
//   rate(transform_origin_errors_total[5m])

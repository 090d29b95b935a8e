package kvstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// kvHits tracks persistent-tier hits by read mode (full, metadata)
	kvHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transform_kv_hits_total",
			Help: "Total number of persistent cache tier hits",
		},
		[]string{"mode"}, // "full", "metadata"
	)

	// kvMisses tracks persistent-tier misses
	kvMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transform_kv_misses_total",
			Help: "Total number of persistent cache tier misses",
		},
	)

	// kvErrors tracks store operation errors
	kvErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transform_kv_errors_total",
			Help: "Total number of persistent cache tier operation errors",
		},
		[]string{"operation"}, // "get", "get_metadata", "put", "delete", "list"
	)

	// kvLegacyReads tracks reads served via the legacy payload-embedded scheme
	kvLegacyReads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transform_kv_legacy_reads_total",
			Help: "Total number of reads that fell back to the legacy entry scheme",
		},
	)

	// kvMalformedEntries tracks entries dropped as unparseable
	kvMalformedEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transform_kv_malformed_entries_total",
			Help: "Total number of stored entries treated as a miss because they could not be parsed",
		},
	)

	// kvBytesWritten tracks payload bytes written to the persistent tier
	kvBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transform_kv_bytes_written_total",
			Help: "Total payload bytes written to the persistent cache tier",
		},
	)

	// kvWriteQuotaRemaining exposes the shared write budget
	kvWriteQuotaRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transform_kv_write_quota_remaining",
			Help: "Write operations remaining in the current persistent store quota window",
		},
	)

	// kvWriteQuotaBlocks tracks writes skipped because the quota was exhausted
	kvWriteQuotaBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transform_kv_write_quota_blocks_total",
			Help: "Total number of persistent writes skipped due to an exhausted write quota",
		},
	)
)

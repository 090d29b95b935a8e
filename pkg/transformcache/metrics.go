package transformcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheLookups tracks resolver outcomes
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transform_cache_lookups_total",
			Help: "Total transform cache lookups by outcome",
		},
		[]string{"result"}, // "hit_memory", "hit_kv", "miss"
	)

	// cacheLookupDuration tracks full resolver scan latency
	cacheLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transform_cache_lookup_duration_seconds",
			Help:    "Transform cache lookup duration including the candidate scan",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	// formatFallbacks counts hits served by a non-base candidate key
	formatFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transform_cache_format_fallbacks_total",
			Help: "Total lookups satisfied by a format-variant key instead of the base key",
		},
	)

	// cacheWrites tracks write-path outcomes
	cacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transform_cache_writes_total",
			Help: "Total transform cache write attempts by outcome",
		},
		[]string{"outcome"}, // "stored", "deduplicated", "quota_blocked", "failed"
	)

	// purgedKeys tracks keys removed by purge operations
	purgedKeys = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transform_cache_purged_keys_total",
			Help: "Total cache keys removed by purge operations",
		},
		[]string{"mode"}, // "tag", "path"
	)
)

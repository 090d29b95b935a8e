package memcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// memHits tracks memory-tier hits
	memHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transform_memory_hits_total",
			Help: "Total number of memory cache tier hits",
		},
	)

	// memMisses tracks memory-tier misses, including lazy expirations
	memMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transform_memory_misses_total",
			Help: "Total number of memory cache tier misses",
		},
	)

	// memEvictions tracks removals by cause
	memEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transform_memory_evictions_total",
			Help: "Total number of memory cache tier evictions",
		},
		[]string{"reason"}, // "capacity", "expired"
	)

	// memEntries exposes the current entry count
	memEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transform_memory_entries",
			Help: "Current number of entries held by the memory cache tier",
		},
	)
)

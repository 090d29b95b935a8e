package transformcache

import (
	"sync/atomic"
	"time"
)

// Stats collects hit/miss/error counters and lookup timing for the
// operational stats endpoint. Prometheus metrics cover dashboards; this
// snapshot feeds the admin JSON surface.
type Stats struct {
	hits         atomic.Int64
	misses       atomic.Int64
	errors       atomic.Int64
	lookups      atomic.Int64
	lookupMicros atomic.Int64
}

// NewStats creates a zeroed collector.
func NewStats() *Stats {
	return &Stats{}
}

// RecordHit counts one successful lookup.
func (s *Stats) RecordHit() { s.hits.Add(1) }

// RecordMiss counts one definitive miss.
func (s *Stats) RecordMiss() { s.misses.Add(1) }

// RecordError counts one storage fault (the lookup itself still resolved to
// hit or miss).
func (s *Stats) RecordError() { s.errors.Add(1) }

// RecordLookup accumulates the duration of one full resolver scan.
func (s *Stats) RecordLookup(d time.Duration) {
	s.lookups.Add(1)
	s.lookupMicros.Add(d.Microseconds())
}

// StatsReport is the snapshot served to operational tooling.
type StatsReport struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Errors      int64   `json:"errors"`
	HitRatio    float64 `json:"hitRatio"`
	AvgLookupMs float64 `json:"avgLookupMs"`
}

// Report builds a consistent-enough snapshot of the counters.
func (s *Stats) Report() StatsReport {
	hits := s.hits.Load()
	misses := s.misses.Load()
	report := StatsReport{
		Hits:   hits,
		Misses: misses,
		Errors: s.errors.Load(),
	}
	if total := hits + misses; total > 0 {
		report.HitRatio = float64(hits) / float64(total)
	}
	if lookups := s.lookups.Load(); lookups > 0 {
		report.AvgLookupMs = float64(s.lookupMicros.Load()) / float64(lookups) / 1000
	}
	return report
}

package transformcache

import (
	"testing"
	"time"
)

func TestStats_Report(t *testing.T) {
	s := NewStats()

	if r := s.Report(); r.HitRatio != 0 || r.AvgLookupMs != 0 {
		t.Errorf("zeroed stats report = %+v, want all zero", r)
	}

	s.RecordHit()
	s.RecordHit()
	s.RecordHit()
	s.RecordMiss()
	s.RecordError()
	s.RecordLookup(2 * time.Millisecond)
	s.RecordLookup(4 * time.Millisecond)

	r := s.Report()
	if r.Hits != 3 || r.Misses != 1 || r.Errors != 1 {
		t.Errorf("counters = %d/%d/%d, want 3/1/1", r.Hits, r.Misses, r.Errors)
	}
	if r.HitRatio != 0.75 {
		t.Errorf("HitRatio = %v, want 0.75", r.HitRatio)
	}
	if r.AvgLookupMs != 3 {
		t.Errorf("AvgLookupMs = %v, want 3", r.AvgLookupMs)
	}
}

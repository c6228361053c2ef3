package cache

import "sync/atomic"

// Statistics counts cache activity. All methods are safe for concurrent use.
type Statistics struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64
}

// Hits returns the number of lookups that found a live entry
func (s *Statistics) Hits() int64 { return s.hits.Load() }

// Misses returns the number of lookups that found nothing or an expired entry
func (s *Statistics) Misses() int64 { return s.misses.Load() }

// Sets returns the number of stores
func (s *Statistics) Sets() int64 { return s.sets.Load() }

// Deletes returns the number of explicit removals
func (s *Statistics) Deletes() int64 { return s.deletes.Load() }

// Evictions returns the number of entries dropped by expiry or size
func (s *Statistics) Evictions() int64 { return s.evictions.Load() }

// HitRatio returns hits over lookups, 0 before the first lookup
func (s *Statistics) HitRatio() float64 {
	hits, misses := s.Hits(), s.Misses()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// Summary is a point-in-time copy of Statistics
type Summary struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Sets      int64   `json:"sets"`
	Deletes   int64   `json:"deletes"`
	Evictions int64   `json:"evictions"`
	HitRatio  float64 `json:"hit_ratio"`
	Size      int     `json:"size"`
}

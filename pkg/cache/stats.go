package cache

import "sync/atomic"

// Stats tracks cache activity with lock-free counters.
type Stats struct {
	hits       atomic.Int64
	misses     atomic.Int64
	loads      atomic.Int64
	loadErrors atomic.Int64
	evictions  atomic.Int64
}

// Snapshot is a point-in-time copy of cache counters.
type Snapshot struct {
	Hits       int64
	Misses     int64
	Loads      int64
	LoadErrors int64
	Evictions  int64
	Size       int
	Capacity   int
}

func (s *Stats) snapshot() Snapshot {
	return Snapshot{
		Hits:       s.hits.Load(),
		Misses:     s.misses.Load(),
		Loads:      s.loads.Load(),
		LoadErrors: s.loadErrors.Load(),
		Evictions:  s.evictions.Load(),
	}
}

// HitRatio returns hits / (hits + misses), or 0 when nothing was requested.
func (s Snapshot) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// MissRatio returns misses / (hits + misses), or 0 when nothing was requested.
func (s Snapshot) MissRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Misses) / float64(total)
}

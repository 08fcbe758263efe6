package cache

import (
	"time"

	"github.com/puzpuzpuz/xsync"
)

// Metric names reported to stats.Tracker.
const (
	MetricHit      = "cache_hit"
	MetricMiss     = "cache_miss"
	MetricExpired  = "cache_expired"
	MetricWrite    = "cache_write"
	MetricDelete   = "cache_delete"
	MetricEvict    = "cache_evict"
	MetricChanged  = "cache_changed"
	MetricItems    = "cache_items"
	MetricSize     = "cache_size"
	MetricError    = "cache_error"
	MetricLoad     = "cache_load"
	MetricFailed   = "cache_load_failed"
	MetricObjClear = "cache_object_clear"
	MetricObjFreed = "cache_object_freed_bytes"
)

// Stats is a point in time snapshot of cache state.
type Stats struct {
	EntryCount int
	TotalSize  int64
	Hits       int64
	Misses     int64
	HitRate    float64
	MissRate   float64
	Evictions  int64
	Expired    int64

	// MemoryUsage is TotalSize as percentage of configured MaxSize.
	MemoryUsage float64

	Categories map[Category]CategoryStats
	Timestamp  time.Time
}

// CategoryStats is a per-category breakdown.
type CategoryStats struct {
	Entries int
	Size    int64
	Hits    int64
	Misses  int64
	HitRate float64
}

type categoryCounters struct {
	entries int
	size    int64
	hits    *xsync.Counter
	misses  *xsync.Counter
}

// statsAggregator keeps running counters, entries and size are only mutated under cache lock.
type statsAggregator struct {
	hits      *xsync.Counter
	misses    *xsync.Counter
	evictions *xsync.Counter
	expired   *xsync.Counter

	entries    int
	size       int64
	categories []categoryCounters
}

func newStatsAggregator() *statsAggregator {
	a := &statsAggregator{
		hits:       new(xsync.Counter),
		misses:     new(xsync.Counter),
		evictions:  new(xsync.Counter),
		expired:    new(xsync.Counter),
		categories: make([]categoryCounters, len(Categories)),
	}

	for i := range a.categories {
		a.categories[i].hits = new(xsync.Counter)
		a.categories[i].misses = new(xsync.Counter)
	}

	return a
}

func (a *statsAggregator) hit(c Category) {
	a.hits.Inc()

	if i := c.index(); i >= 0 {
		a.categories[i].hits.Inc()
	}
}

func (a *statsAggregator) miss(c Category) {
	a.misses.Inc()

	if i := c.index(); i >= 0 {
		a.categories[i].misses.Inc()
	}
}

func (a *statsAggregator) added(c Category, size int64) {
	a.entries++
	a.size += size

	if i := c.index(); i >= 0 {
		a.categories[i].entries++
		a.categories[i].size += size
	}
}

func (a *statsAggregator) removed(c Category, size int64) {
	a.entries--
	a.size -= size

	if i := c.index(); i >= 0 {
		a.categories[i].entries--
		a.categories[i].size -= size
	}
}

// emptied drops entry accounting while keeping hit and miss counters.
func (a *statsAggregator) emptied() {
	a.entries = 0
	a.size = 0

	for i := range a.categories {
		a.categories[i].entries = 0
		a.categories[i].size = 0
	}
}

func (a *statsAggregator) reset() {
	a.emptied()
	a.hits.Reset()
	a.misses.Reset()
	a.evictions.Reset()
	a.expired.Reset()

	for i := range a.categories {
		a.categories[i].hits.Reset()
		a.categories[i].misses.Reset()
	}
}

func (a *statsAggregator) snapshot(maxSize int64, now time.Time) Stats {
	s := Stats{
		EntryCount: a.entries,
		TotalSize:  a.size,
		Hits:       a.hits.Value(),
		Misses:     a.misses.Value(),
		Evictions:  a.evictions.Value(),
		Expired:    a.expired.Value(),
		Categories: make(map[Category]CategoryStats, len(Categories)),
		Timestamp:  now,
	}

	s.HitRate, s.MissRate = rates(s.Hits, s.Misses)

	if maxSize > 0 {
		s.MemoryUsage = float64(s.TotalSize) / float64(maxSize) * 100
	}

	for i, c := range a.categories {
		cs := CategoryStats{
			Entries: c.entries,
			Size:    c.size,
			Hits:    c.hits.Value(),
			Misses:  c.misses.Value(),
		}
		cs.HitRate, _ = rates(cs.Hits, cs.Misses)

		s.Categories[Categories[i]] = cs
	}

	return s
}

func rates(hits, misses int64) (hitRate, missRate float64) {
	total := hits + misses
	if total == 0 {
		return 0, 0
	}

	return float64(hits) / float64(total), float64(misses) / float64(total)
}

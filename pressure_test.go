package cache_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cache "github.com/vearutop/repocache"
)

func TestPressureMonitor_Check_sizeLimit(t *testing.T) {
	st := &stats.TrackerMock{}
	logger := &ctxd.LoggerMock{}
	o := cache.NewObjectCache()
	m := cache.NewPressureMonitor(o, cache.PressureConfig{SizeLimit: 100, Stats: st, Logger: logger})

	defer m.Stop()

	var events []cache.Event

	m.Subscribe(func(e cache.Event) { events = append(events, e) })

	o.Put("a", 1, 60)

	reason, freed := m.Check(context.Background())
	assert.Empty(t, reason)
	assert.Zero(t, freed)
	assert.Equal(t, 1, o.Len())

	o.Put("b", 2, 60)

	reason, freed = m.Check(context.Background())
	assert.Equal(t, cache.ReasonSizeLimit, reason)
	assert.Equal(t, int64(120), freed)
	assert.Equal(t, 0, o.Len())

	s := m.Stats()
	assert.Equal(t, int64(2), s.Checks)
	assert.Equal(t, int64(1), s.Clears)
	assert.Equal(t, int64(120), s.FreedBytes)
	assert.Equal(t, cache.ReasonSizeLimit, s.LastReason)
	assert.False(t, s.LastClear.IsZero())

	require.Len(t, events, 1)
	assert.Equal(t, cache.EventPressure, events[0].Type)
	assert.Equal(t, 2, events[0].Count)
	assert.Equal(t, int64(120), events[0].Size)

	assert.Equal(t, 1, st.Int(cache.MetricObjClear))
	assert.Equal(t, 120, st.Int(cache.MetricObjFreed))
	assert.Contains(t, logger.String(), "cleared object cache")
}

func TestPressureMonitor_Check_heap(t *testing.T) {
	heap := uint64(100)
	o := cache.NewObjectCache()
	m := cache.NewPressureMonitor(o, cache.PressureConfig{
		HeapInUseLimit: 1000,
		SizeLimit:      -1,
		HeapInUse:      func() uint64 { return heap },
	})

	defer m.Stop()

	o.Put("a", 1, 1<<30)

	reason, _ := m.Check(context.Background())
	assert.Empty(t, reason, "size check is disabled")

	heap = 2000

	reason, freed := m.Check(context.Background())
	assert.Equal(t, cache.ReasonMemoryPressure, reason)
	assert.Equal(t, int64(1<<30), freed)
}

func TestPressureMonitor_Tick(t *testing.T) {
	o := cache.NewObjectCache()
	m := cache.NewPressureMonitor(o, cache.PressureConfig{CheckEvery: 3, SizeLimit: 1})

	defer m.Stop()

	ctx := context.Background()

	o.Put("a", 1, 10)

	assert.False(t, m.Tick(ctx))
	assert.False(t, m.Tick(ctx))
	assert.Equal(t, 1, o.Len())

	assert.True(t, m.Tick(ctx))
	assert.Equal(t, 0, o.Len())
	assert.Equal(t, int64(1), m.Stats().Checks)
}

func TestPressureMonitor_memoryCache(t *testing.T) {
	o := cache.NewObjectCache()
	m := cache.NewPressureMonitor(o, cache.PressureConfig{CheckEvery: 2, SizeLimit: 1})

	defer m.Stop()

	c := newMemory(t, cache.Config{PressureMonitor: m})
	ctx := context.Background()

	o.Put("a", 1, 10)

	c.Set(ctx, key("A"), 1)
	c.Get(ctx, key("A"))

	// Object cache is cleared, cache entries stay.
	assert.Equal(t, 0, o.Len())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(1), m.Stats().Clears)
}

func TestPressureMonitor_Interval(t *testing.T) {
	var heapReads int64

	o := cache.NewObjectCache()
	m := cache.NewPressureMonitor(o, cache.PressureConfig{
		Interval:       time.Millisecond,
		HeapInUseLimit: 1,
		HeapInUse: func() uint64 {
			atomic.AddInt64(&heapReads, 1)

			return 2
		},
	})

	o.Put("a", 1, 10)

	assert.Eventually(t, func() bool {
		return o.Len() == 0
	}, time.Second, time.Millisecond)

	m.Stop()
	m.Stop()

	assert.Positive(t, atomic.LoadInt64(&heapReads))
	assert.Equal(t, cache.ReasonMemoryPressure, m.Stats().LastReason)
}

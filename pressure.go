package cache

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
)

// Pressure reasons.
const (
	ReasonMemoryPressure = "memory_pressure"
	ReasonSizeLimit      = "size_limit"
)

// Default pressure monitor configuration values.
const (
	DefaultCheckEvery      = 100
	DefaultObjectSizeLimit = 50 * 1024 * 1024
)

// PressureConfig controls PressureMonitor.
type PressureConfig struct {
	// Logger is an instance of contextualized logger, can be nil.
	Logger ctxd.Logger

	// Stats is metrics collector, can be nil.
	Stats stats.Tracker

	// Name is used in stats and logging.
	Name string

	// CheckEvery is a number of Tick calls between two checks, default 100.
	CheckEvery int

	// Interval enables periodic checks in background, disabled by default.
	Interval time.Duration

	// HeapInUseLimit sets heap in use threshold, 0 disables heap check.
	HeapInUseLimit uint64

	// SizeLimit is a threshold of object cache size in bytes, default 50MiB, -1 disables size check.
	SizeLimit int64

	// HeapInUse overrides heap in use reader, default is runtime.MemStats.HeapInuse.
	HeapInUse func() uint64
}

// PressureStats is a snapshot of monitor counters.
type PressureStats struct {
	Checks     int64
	Clears     int64
	FreedBytes int64
	LastReason string
	LastClear  time.Time
}

// PressureMonitor clears ObjectCache when process heap or object cache grows over limits.
//
// It does not affect entries of Memory caches.
type PressureMonitor struct {
	objects *ObjectCache
	config  PressureConfig
	log     ctxd.Logger
	stat    stats.Tracker
	bus     eventBus

	ticks atomic.Uint64

	mu     sync.Mutex
	counts PressureStats

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPressureMonitor creates a monitor of object cache.
func NewPressureMonitor(objects *ObjectCache, cfg PressureConfig) *PressureMonitor {
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = DefaultCheckEvery
	}

	if cfg.SizeLimit == 0 {
		cfg.SizeLimit = DefaultObjectSizeLimit
	}

	if cfg.HeapInUse == nil {
		cfg.HeapInUse = heapInUse
	}

	if cfg.Logger == nil {
		cfg.Logger = ctxd.NoOpLogger{}
	}

	if cfg.Stats == nil {
		cfg.Stats = stats.NoOp{}
	}

	m := &PressureMonitor{
		objects: objects,
		config:  cfg,
		log:     cfg.Logger,
		stat:    cfg.Stats,
		stop:    make(chan struct{}),
	}

	if cfg.Interval > 0 {
		go m.watch(cfg.Interval)
	}

	return m
}

// Objects returns monitored object cache.
func (m *PressureMonitor) Objects() *ObjectCache {
	return m.objects
}

// Tick counts an operation and runs Check on every CheckEvery call.
func (m *PressureMonitor) Tick(ctx context.Context) bool {
	if m.ticks.Add(1)%uint64(m.config.CheckEvery) != 0 {
		return false
	}

	m.Check(ctx)

	return true
}

// Check clears object cache if heap in use or object cache size exceed limits.
//
// Reason is empty if cache was not cleared.
func (m *PressureMonitor) Check(ctx context.Context) (reason string, freed int64) {
	m.mu.Lock()
	m.counts.Checks++
	m.mu.Unlock()

	size := m.objects.Size()

	switch {
	case m.config.HeapInUseLimit > 0 && m.config.HeapInUse() > m.config.HeapInUseLimit:
		reason = ReasonMemoryPressure
	case m.config.SizeLimit > 0 && size > m.config.SizeLimit:
		reason = ReasonSizeLimit
	default:
		return "", 0
	}

	freed, cnt := m.objects.Reset()
	now := time.Now()

	m.mu.Lock()
	m.counts.Clears++
	m.counts.FreedBytes += freed
	m.counts.LastReason = reason
	m.counts.LastClear = now
	m.mu.Unlock()

	m.log.Important(ctx, "cleared object cache",
		"name", m.config.Name,
		"reason", reason,
		"freed", freed,
		"count", cnt,
	)
	m.stat.Add(ctx, MetricObjClear, 1, "name", m.config.Name, "reason", reason)
	m.stat.Add(ctx, MetricObjFreed, float64(freed), "name", m.config.Name)
	m.bus.publish(Event{Type: EventPressure, Timestamp: now, Size: freed, Count: cnt, Reason: reason})

	return reason, freed
}

// Stats returns monitor counters.
func (m *PressureMonitor) Stats() PressureStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.counts
}

// Subscribe adds pressure event listener and returns a function to remove it.
func (m *PressureMonitor) Subscribe(l Listener) (unsubscribe func()) {
	return m.bus.Subscribe(l)
}

// Stop stops background checks and detaches listeners, it is safe to call multiple times.
func (m *PressureMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})

	m.bus.detachAll()
}

func (m *PressureMonitor) watch(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(context.Background())
		case <-m.stop:
			return
		}
	}
}

func heapInUse() uint64 {
	m := runtime.MemStats{}
	runtime.ReadMemStats(&m)

	return m.HeapInuse
}

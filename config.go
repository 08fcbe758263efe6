package cache

import (
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
)

// EvictionStrategy selects victims on capacity pressure.
type EvictionStrategy string

// Eviction strategies.
const (
	// LRU evicts least recently accessed entry.
	LRU = EvictionStrategy("lru")
	// LFU evicts least frequently accessed entry, least recently accessed one among equals.
	LFU = EvictionStrategy("lfu")
	// FIFO evicts oldest written entry, reads do not affect order.
	FIFO = EvictionStrategy("fifo")
)

// Default configuration values.
const (
	DefaultTTL             = 5 * time.Minute
	DefaultMaxSize         = 100 * 1024 * 1024
	DefaultMaxEntries      = 10000
	DefaultCleanupInterval = time.Minute
)

// SkipWriteTTL is a ttl value to indicate that cache must not be stored.
const SkipWriteTTL = time.Duration(-1)

// Config controls in-memory cache instance.
type Config struct {
	// Logger is an instance of contextualized logger, can be nil.
	Logger ctxd.Logger

	// Stats is metrics collector, can be nil.
	Stats stats.Tracker

	// Name is cache instance name, used in stats and logging.
	Name string

	// DefaultTTL is delay before entry expiration, default 5m.
	DefaultTTL time.Duration

	// MaxSize is a limit of total approximate entries size in bytes, default 100MiB.
	MaxSize int64

	// MaxEntries is a limit of entries count, default 10000.
	// Use -1 for zero capacity, writes succeed without storing.
	MaxEntries int

	// CleanupInterval is delay between two consecutive expired entries sweeps, default 1m.
	// Use -1 to disable background sweeps, Cleanup can still be called explicitly.
	CleanupInterval time.Duration

	// EvictionStrategy is LRU by default.
	EvictionStrategy EvictionStrategy

	// SizeOf overrides approximate size estimation, default is length of JSON encoding.
	SizeOf func(v interface{}) (int64, error)

	// PressureMonitor is notified on every read and write, can be nil.
	PressureMonitor *PressureMonitor

	// TimeNow overrides clock, default time.Now.
	TimeNow func() time.Time

	// Persistent is accepted for compatibility and has no effect, cache is never stored on disk.
	Persistent bool

	// StorageDir is accepted for compatibility and has no effect.
	StorageDir string

	// EnableCompression is accepted for compatibility and has no effect, Entry.Compressed is always false.
	EnableCompression bool
}

func (cfg Config) withDefaults() Config {
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = DefaultTTL
	}

	if cfg.MaxSize == 0 {
		cfg.MaxSize = DefaultMaxSize
	}

	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}

	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}

	if cfg.EvictionStrategy == "" {
		cfg.EvictionStrategy = LRU
	}

	if cfg.TimeNow == nil {
		cfg.TimeNow = time.Now
	}

	if cfg.Logger == nil {
		cfg.Logger = ctxd.NoOpLogger{}
	}

	if cfg.Stats == nil {
		cfg.Stats = stats.NoOp{}
	}

	return cfg
}

// capacity returns effective entries limit.
func (cfg Config) capacity() int {
	if cfg.MaxEntries < 0 {
		return 0
	}

	return cfg.MaxEntries
}

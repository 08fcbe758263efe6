package cache

import (
	"context"
	"sync"
	"time"

	bcache "github.com/bool64/cache"
	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/vearutop/repocache/resilience"
)

// DefaultFailedLoadTTL is default ttl of failed load cache.
const DefaultFailedLoadTTL = 20 * time.Second

// ReadThroughConfig is optional configuration for NewReadThrough.
type ReadThroughConfig struct {
	// Name is added to logs and stats.
	Name string

	// Cache is a cache instance, in-memory created with CacheConfig by default.
	Cache *Memory

	// CacheConfig is a configuration for cache instance if Cache is not provided.
	CacheConfig Config

	// Executor runs loads with retries, created with resilience.DefaultConfig() by default.
	Executor *resilience.Executor

	// FailedLoadTTL is ttl of failed load cache, default 20s, -1 disables errors cache.
	FailedLoadTTL time.Duration

	// Logger collects messages with context.
	Logger ctxd.Logger

	// Stats tracks stats.
	Stats stats.Tracker
}

// ReadThrough loads missing cache entries from Source without races.
//
// Please use NewReadThrough to create instance.
type ReadThrough struct {
	cache  *Memory
	source Source
	exec   *resilience.Executor

	// errors caches failures of recent loads.
	errors *bcache.ShardedMap

	lock     sync.Mutex               // Securing keyLocks
	keyLocks map[string]chan struct{} // Preventing load concurrency per key

	config ReadThroughConfig
	log    ctxd.Logger
	stat   stats.Tracker
}

// NewReadThrough creates a ReadThrough instance.
//
// Load is locked per key to avoid concurrent loads of the same data.
func NewReadThrough(source Source, config ReadThroughConfig) *ReadThrough {
	if config.FailedLoadTTL == 0 {
		config.FailedLoadTTL = DefaultFailedLoadTTL
	}

	rt := &ReadThrough{
		source:   source,
		config:   config,
		keyLocks: make(map[string]chan struct{}),
	}

	rt.log = config.Logger
	if rt.log == nil {
		rt.log = ctxd.NoOpLogger{}
	}

	rt.stat = config.Stats
	if rt.stat == nil {
		rt.stat = stats.NoOp{}
	}

	rt.cache = config.Cache
	if rt.cache == nil {
		cc := config.CacheConfig
		if cc.Name == "" {
			cc.Name = config.Name
		}

		if cc.Logger == nil {
			cc.Logger = config.Logger
		}

		if cc.Stats == nil {
			cc.Stats = config.Stats
		}

		rt.cache = NewMemory(cc)
	}

	rt.exec = config.Executor
	if rt.exec == nil {
		ec := resilience.DefaultConfig()
		ec.Logger = config.Logger
		ec.Stats = config.Stats
		rt.exec = resilience.NewExecutor(ec)
	}

	if config.FailedLoadTTL > 0 {
		rt.errors = bcache.NewShardedMap(func(cfg *bcache.Config) {
			cfg.Name = "err_" + config.Name
			cfg.Logger = config.Logger
			cfg.Stats = config.Stats
			cfg.TimeToLive = config.FailedLoadTTL
		})
	}

	return rt
}

// Cache returns underlying cache.
func (rt *ReadThrough) Cache() *Memory {
	return rt.cache
}

// Executor returns underlying executor.
func (rt *ReadThrough) Executor() *resilience.Executor {
	return rt.exec
}

// Get returns value from cache or from source.
func (rt *ReadThrough) Get(ctx context.Context, key Key) (interface{}, error) {
	k := key.String()

	for {
		res := rt.cache.Get(ctx, key)
		if res.Err != nil {
			return nil, res.Err
		}

		if res.Hit {
			return res.Data, nil
		}

		// Locking key for load or finding active lock.
		rt.lock.Lock()
		keyLock, alreadyLocked := rt.keyLocks[k]

		if !alreadyLocked {
			keyLock = make(chan struct{})
			rt.keyLocks[k] = keyLock
		}
		rt.lock.Unlock()

		if !alreadyLocked {
			return rt.loadLocked(ctx, key, keyLock)
		}

		rt.log.Debug(ctx, "waiting for cache value", "name", rt.config.Name, "key", k)

		select {
		case <-keyLock:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		// Value may still be missing if load failed or was not stored.
		if err := rt.recentlyFailed(ctx, k); err != nil {
			return nil, err
		}
	}
}

func (rt *ReadThrough) loadLocked(ctx context.Context, key Key, keyLock chan struct{}) (interface{}, error) {
	k := key.String()

	defer func() {
		rt.lock.Lock()
		delete(rt.keyLocks, k)
		close(keyLock)
		rt.lock.Unlock()
	}()

	// Check if load failed recently.
	if err := rt.recentlyFailed(ctx, k); err != nil {
		return nil, err
	}

	rt.log.Debug(ctx, "loading cache value", "name", rt.config.Name, "key", k)
	rt.stat.Add(ctx, MetricLoad, 1, "name", rt.config.Name)

	res := resilience.ExecuteWithRetry(ctx, rt.exec, "load_"+string(key.Category),
		func(ctx context.Context) (interface{}, error) {
			return rt.source.Load(ctx, key)
		})

	if !res.Success {
		rt.stat.Add(ctx, MetricFailed, 1, "name", rt.config.Name)

		if rt.errors != nil && !res.Cancelled {
			if err := rt.errors.Write(ctx, []byte(k), res.Err); err != nil {
				rt.log.Error(ctx, "failed to cache load failure",
					"error", err,
					"loadErr", res.Err,
					"key", k,
					"name", rt.config.Name)
			}
		}

		return nil, newError(CodeLoadError, res.Err)
	}

	if set := rt.cache.Set(ctx, key, res.Value); set.Err != nil {
		rt.log.Warn(ctx, "failed to store loaded value",
			"error", set.Err,
			"name", rt.config.Name,
			"key", k)
	}

	return res.Value, nil
}

func (rt *ReadThrough) recentlyFailed(ctx context.Context, k string) error {
	if rt.errors == nil {
		return nil
	}

	errVal, err := rt.errors.Read(ctx, []byte(k))
	if err != nil {
		return nil
	}

	if loadErr, ok := errVal.(error); ok {
		return newError(CodeLoadError, loadErr)
	}

	return nil
}

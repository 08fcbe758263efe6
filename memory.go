package cache

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

var (
	_ Walker   = &Memory{}
	_ Dumper   = &Memory{}
	_ Restorer = &Memory{}
)

// Memory is an in-memory TTL cache with LRU eviction. Please use NewMemory to create it.
type Memory struct {
	*memory
}

type memory struct {
	sync.Mutex

	// data keeps entries in access order, oldest first.
	data    *simplelru.LRU[string, *Entry]
	closed  bool
	version uint64

	stop     chan struct{}
	stopOnce sync.Once

	config Config
	log    ctxd.Logger
	stat   stats.Tracker
	agg    *statsAggregator
	bus    eventBus
}

// NewMemory creates an instance of in-memory cache with optional configuration.
func NewMemory(cfg ...Config) *Memory {
	config := Config{}

	if len(cfg) >= 1 {
		config = cfg[0]
	}

	config = config.withDefaults()

	size := config.capacity()
	if size < 1 {
		size = 1
	}

	// Positive size never fails.
	data, _ := simplelru.NewLRU[string, *Entry](size, nil)

	c := &memory{
		data:   data,
		stop:   make(chan struct{}),
		config: config,
		log:    config.Logger,
		stat:   config.Stats,
		agg:    newStatsAggregator(),
	}

	ctx := context.Background()

	if config.Persistent || config.StorageDir != "" || config.EnableCompression {
		c.log.Warn(ctx, "persistence and compression are not supported, options ignored",
			"name", config.Name,
			"persistent", config.Persistent,
			"storageDir", config.StorageDir,
			"compression", config.EnableCompression,
		)
	}

	switch config.EvictionStrategy {
	case LRU, LFU, FIFO:
	default:
		c.log.Warn(ctx, "unknown eviction strategy, using lru",
			"name", config.Name,
			"strategy", config.EvictionStrategy,
		)

		c.config.EvictionStrategy = LRU
	}

	if config.CleanupInterval > 0 {
		go c.cleaner(config.CleanupInterval)
	}

	C := &Memory{memory: c}

	runtime.SetFinalizer(C, func(m *Memory) {
		m.Destroy()
	})

	return C
}

// Get reads value.
//
// Absent and expired entries are reported as a miss, expired entries are removed.
func (c *memory) Get(ctx context.Context, key Key) GetResult {
	start := c.config.TimeNow()

	if SkipRead(ctx) {
		return GetResult{ExecutionTime: c.config.TimeNow().Sub(start)}
	}

	if !key.Category.Valid() {
		return GetResult{Err: c.fail(ctx, CodeGetError, key.String(), ErrUnknownCategory)}
	}

	k := key.String()

	c.Lock()

	if c.closed {
		c.Unlock()

		return GetResult{Err: c.fail(ctx, CodeGetError, k, ErrCacheClosed)}
	}

	e, found := c.data.Peek(k)
	if found && e.Expired(start) {
		c.remove(k, e)
		c.agg.expired.Inc()
		c.agg.miss(key.Category)
		c.Unlock()

		c.log.Debug(ctx, "cache key expired", "name", c.config.Name, "key", k)
		c.stat.Add(ctx, MetricExpired, 1, "name", c.config.Name)
		c.stat.Add(ctx, MetricMiss, 1, "name", c.config.Name)
		c.bus.publish(Event{Type: EventExpire, Key: k, Timestamp: start, Size: e.Size})
		c.bus.publish(Event{Type: EventMiss, Key: k, Timestamp: start, Reason: "expired"})
		c.tick(ctx)

		return GetResult{ExecutionTime: c.config.TimeNow().Sub(start)}
	}

	if !found {
		c.agg.miss(key.Category)
		c.Unlock()

		c.log.Debug(ctx, "cache miss", "name", c.config.Name, "key", k)
		c.stat.Add(ctx, MetricMiss, 1, "name", c.config.Name)
		c.bus.publish(Event{Type: EventMiss, Key: k, Timestamp: start})
		c.tick(ctx)

		return GetResult{ExecutionTime: c.config.TimeNow().Sub(start)}
	}

	if c.config.EvictionStrategy != FIFO {
		// Moving to the most recently used end.
		c.data.Get(k)
	}

	e.LastAccessed = start
	e.AccessCount++
	val := e.Value
	size := e.Size

	c.agg.hit(key.Category)
	c.Unlock()

	c.log.Debug(ctx, "cache hit", "name", c.config.Name, "key", k)
	c.stat.Add(ctx, MetricHit, 1, "name", c.config.Name)
	c.bus.publish(Event{Type: EventHit, Key: k, Timestamp: start, Size: size})
	c.tick(ctx)

	return GetResult{Hit: true, Data: val, ExecutionTime: c.config.TimeNow().Sub(start)}
}

// Set writes value.
//
// Entry time to live is taken from context (see WithTTL) or Config.DefaultTTL,
// tags are taken from context (see WithTags).
func (c *memory) Set(ctx context.Context, key Key, v interface{}) SetResult {
	start := c.config.TimeNow()
	k := key.String()

	if !key.Category.Valid() {
		return SetResult{Data: v, Err: c.fail(ctx, CodeSetError, k, ErrUnknownCategory)}
	}

	size, sum, err := c.measure(ctx, v)
	if err != nil {
		return SetResult{Data: v, Err: c.fail(ctx, CodeSetError, k, err)}
	}

	if size > c.config.MaxSize {
		return SetResult{Data: v, Err: c.fail(ctx, CodeSetError, k, ErrEntryTooLarge)}
	}

	ttl := TTL(ctx)
	if ttl == 0 {
		ttl = c.config.DefaultTTL
	}

	if ttl < 0 || c.config.capacity() == 0 {
		c.log.Debug(ctx, "skipped cache write", "name", c.config.Name, "key", k, "ttl", ttl)

		return SetResult{Success: true, Data: v, ExecutionTime: c.config.TimeNow().Sub(start)}
	}

	e := &Entry{
		Key:          key,
		Value:        v,
		CreatedAt:    start,
		LastAccessed: start,
		ExpiresAt:    start.Add(ttl),
		Size:         size,
		Tags:         Tags(ctx),
		Checksum:     sum,
	}

	c.Lock()

	if c.closed {
		c.Unlock()

		return SetResult{Data: v, Err: c.fail(ctx, CodeSetError, k, ErrCacheClosed)}
	}

	changed := false

	if prev, found := c.data.Peek(k); found {
		changed = prev.Checksum != sum || sum == 0

		c.remove(k, prev)
	}

	evicted := c.ensureCapacity(size)

	c.version++
	e.Version = c.version

	c.data.Add(k, e)
	c.agg.added(key.Category, size)
	c.Unlock()

	for _, ev := range evicted {
		c.log.Debug(ctx, "evicted cache entry", "name", c.config.Name, "key", ev.Key, "size", ev.Size)
		c.bus.publish(ev)
	}

	if len(evicted) > 0 {
		c.stat.Add(ctx, MetricEvict, float64(len(evicted)), "name", c.config.Name)
	}

	if changed {
		c.stat.Add(ctx, MetricChanged, 1, "name", c.config.Name)
	}

	c.log.Debug(ctx, "wrote to cache", "name", c.config.Name, "key", k, "size", size, "ttl", ttl)
	c.stat.Add(ctx, MetricWrite, 1, "name", c.config.Name)
	c.bus.publish(Event{Type: EventSet, Key: k, Timestamp: start, Size: size})
	c.tick(ctx)

	return SetResult{Success: true, Stored: true, Data: v, ExecutionTime: c.config.TimeNow().Sub(start)}
}

// Peek returns a copy of entry without affecting access order and statistics.
func (c *memory) Peek(key Key) (Entry, bool) {
	c.Lock()
	defer c.Unlock()

	e, found := c.data.Peek(key.String())
	if !found {
		return Entry{}, false
	}

	return *e, true
}

// Delete removes entry and reports if it was present.
func (c *memory) Delete(ctx context.Context, key Key) bool {
	k := key.String()

	c.Lock()
	e, found := c.data.Peek(k)

	if found {
		c.remove(k, e)
	}
	c.Unlock()

	if !found {
		return false
	}

	c.log.Debug(ctx, "deleted cache entry", "name", c.config.Name, "key", k)
	c.stat.Add(ctx, MetricDelete, 1, "name", c.config.Name)
	c.bus.publish(Event{Type: EventDelete, Key: k, Timestamp: c.config.TimeNow(), Size: e.Size})

	return true
}

// ClearRepository removes all entries of a namespace and returns their count.
func (c *memory) ClearRepository(ctx context.Context, namespace string) int {
	cnt := 0

	c.Lock()
	for _, k := range c.data.Keys() {
		if !hasNamespace(k, namespace) {
			continue
		}

		if e, found := c.data.Peek(k); found {
			c.remove(k, e)
			cnt++
		}
	}
	c.Unlock()

	c.log.Important(ctx, "cleared repository entries in cache",
		"name", c.config.Name,
		"namespace", namespace,
		"count", cnt,
	)
	c.bus.publish(Event{Type: EventClear, Key: namespace, Timestamp: c.config.TimeNow(), Count: cnt, Reason: "repository"})

	return cnt
}

// ClearAll removes all entries, resets statistics and returns count of removed entries.
func (c *memory) ClearAll(ctx context.Context) int {
	c.Lock()
	cnt := c.data.Len()
	c.data.Purge()
	c.agg.reset()
	c.Unlock()

	c.log.Important(ctx, "deleted all entries in cache",
		"name", c.config.Name,
		"count", cnt,
	)
	c.bus.publish(Event{Type: EventClear, Timestamp: c.config.TimeNow(), Count: cnt, Reason: "all"})

	return cnt
}

// Cleanup removes expired entries and returns their count.
func (c *memory) Cleanup(ctx context.Context) int {
	now := c.config.TimeNow()

	var expired []Event

	c.Lock()
	for _, k := range c.data.Keys() {
		e, found := c.data.Peek(k)
		if !found || !e.Expired(now) {
			continue
		}

		c.remove(k, e)
		expired = append(expired, Event{Type: EventExpire, Key: k, Timestamp: now, Size: e.Size})
	}

	c.agg.expired.Add(int64(len(expired)))
	items, size := c.agg.entries, c.agg.size
	c.Unlock()

	for _, e := range expired {
		c.bus.publish(e)
	}

	if len(expired) > 0 {
		c.log.Debug(ctx, "cleared expired cache items",
			"name", c.config.Name,
			"count", len(expired),
		)
		c.stat.Add(ctx, MetricExpired, float64(len(expired)), "name", c.config.Name)
	}

	c.stat.Set(ctx, MetricItems, float64(items), "name", c.config.Name)
	c.stat.Set(ctx, MetricSize, float64(size), "name", c.config.Name)
	c.bus.publish(Event{Type: EventCleanup, Timestamp: now, Count: len(expired)})

	return len(expired)
}

// Stats returns statistics snapshot.
func (c *memory) Stats() Stats {
	c.Lock()
	defer c.Unlock()

	return c.agg.snapshot(c.config.MaxSize, c.config.TimeNow())
}

// Subscribe adds event listener and returns a function to remove it.
//
// Listeners are called synchronously and must not call back into the cache.
func (c *memory) Subscribe(l Listener) (unsubscribe func()) {
	return c.bus.Subscribe(l)
}

// Destroy removes all entries, stops background cleanup and detaches listeners.
//
// It is safe to call Destroy multiple times, cache is not usable afterwards.
func (c *memory) Destroy() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})

	c.Lock()
	c.data.Purge()
	c.agg.emptied()
	c.closed = true
	c.Unlock()

	c.bus.detachAll()
}

// Len returns number of elements in cache.
func (c *memory) Len() int {
	c.Lock()
	defer c.Unlock()

	return c.data.Len()
}

// Walk walks cached entries from least to most recently used.
func (c *memory) Walk(walkFn func(e Entry) error) (int, error) {
	c.Lock()
	entries := make([]Entry, 0, c.data.Len())

	for _, e := range c.data.Values() {
		entries = append(entries, *e)
	}
	c.Unlock()

	n := 0

	for _, e := range entries {
		if err := walkFn(e); err != nil {
			return n, err
		}

		n++
	}

	return n, nil
}

// remove must be called under lock.
func (c *memory) remove(k string, e *Entry) {
	c.data.Remove(k)
	c.agg.removed(e.Key.Category, e.Size)
}

func (c *memory) fail(ctx context.Context, code ErrorCode, k string, err error) *Error {
	c.log.Error(ctx, "cache operation failed",
		"name", c.config.Name,
		"code", code,
		"key", k,
		"error", err,
	)
	c.stat.Add(ctx, MetricError, 1, "name", c.config.Name, "code", string(code))
	c.bus.publish(Event{Type: EventError, Key: k, Timestamp: c.config.TimeNow(), Reason: string(code), Err: err})

	return newError(code, err)
}

func (c *memory) tick(ctx context.Context) {
	if c.config.PressureMonitor != nil {
		c.config.PressureMonitor.Tick(ctx)
	}
}

func (c *memory) cleaner(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup(context.Background())
		case <-c.stop:
			return
		}
	}
}

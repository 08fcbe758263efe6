package cache_test

import (
	"context"
	"fmt"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	cache "github.com/vearutop/repocache"
	"github.com/vearutop/repocache/resilience"
)

func ExampleNewMemory() {
	// Create cache instance.
	c := cache.NewMemory(cache.Config{
		Name:       "repos",
		DefaultTTL: 13 * time.Minute,
		Logger:     &ctxd.LoggerMock{},
		Stats:      &stats.TrackerMock{},

		// Tweak these parameters to limit memory consumption at cost of cache hit rate.
		MaxEntries:       1000,
		MaxSize:          50 * 1024 * 1024,
		EvictionStrategy: cache.LRU,
	})
	defer c.Destroy()

	// Use context if available.
	ctx := context.TODO()

	k := cache.NewKey("/src/app", cache.CategoryBranches, "")

	// Write value to cache.
	_ = c.Set(ctx, k, []string{"main", "develop"})

	// Read value from cache.
	res := c.Get(ctx, k)
	fmt.Printf("%v %v\n", res.Hit, res.Data)

	// Output:
	// true [main develop]
}

func ExampleNewReadThrough() {
	ctx := context.TODO()

	rt := cache.NewReadThrough(
		cache.SourceFunc(func(ctx context.Context, key cache.Key) (interface{}, error) {
			// Load data from repository, for example with gitsource.Source.
			return []string{"v1.0.0", "v1.1.0"}, nil
		}),
		cache.ReadThroughConfig{
			Name:     "tags",
			Executor: resilience.NewExecutor(resilience.DefaultConfig()),
		},
	)
	defer rt.Cache().Destroy()

	k := cache.NewKey("/src/app", cache.CategoryTags, "")

	for i := 0; i < 3; i++ {
		v, err := rt.Get(ctx, k)
		if err != nil {
			fmt.Println(err)

			return
		}

		fmt.Println(v)
	}

	st := rt.Cache().Stats()
	fmt.Printf("hits: %d, misses: %d, health: %s\n", st.Hits, st.Misses, rt.Executor().Health())

	// Output:
	// [v1.0.0 v1.1.0]
	// [v1.0.0 v1.1.0]
	// [v1.0.0 v1.1.0]
	// hits: 2, misses: 1, health: healthy
}

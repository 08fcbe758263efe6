package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultSkipInterval is a minimal delay between two invalidations of a namespace.
const DefaultSkipInterval = 15 * time.Second

// Invalidator is a registry of repository invalidation callbacks, for example Memory.ClearRepository.
type Invalidator struct {
	sync.Mutex

	// SkipInterval defines minimal duration between two invalidations of a namespace (flood protection).
	SkipInterval time.Duration

	// Callbacks contains a list of functions to call on invalidate, they return count of removed entries.
	Callbacks []func(ctx context.Context, namespace string) int

	lastRun map[string]time.Time
}

// Invalidate removes cached data of a namespace and returns total count of removed entries.
func (i *Invalidator) Invalidate(ctx context.Context, namespace string) (int, error) {
	if i.Callbacks == nil {
		return 0, ErrNothingToInvalidate
	}

	i.Lock()
	defer i.Unlock()

	if i.SkipInterval == 0 {
		i.SkipInterval = DefaultSkipInterval
	}

	if i.lastRun == nil {
		i.lastRun = make(map[string]time.Time)
	}

	if last, ok := i.lastRun[namespace]; ok && time.Since(last) < i.SkipInterval {
		return 0, fmt.Errorf("%w at %s, %s did not pass",
			ErrAlreadyInvalidated, last.String(), i.SkipInterval.String())
	}

	i.lastRun[namespace] = time.Now()
	cnt := 0

	for _, cb := range i.Callbacks {
		cnt += cb(ctx, namespace)
	}

	return cnt, nil
}

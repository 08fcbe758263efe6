package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cache "github.com/vearutop/repocache"
)

func TestInvalidator_Invalidate(t *testing.T) {
	cache1 := newMemory(t, cache.Config{})
	cache2 := newMemory(t, cache.Config{})

	i := &cache.Invalidator{SkipInterval: time.Hour}
	ctx := context.Background()

	_, err := i.Invalidate(ctx, "repo")
	assert.True(t, errors.Is(err, cache.ErrNothingToInvalidate))

	i.Callbacks = append(i.Callbacks, cache1.ClearRepository, cache2.ClearRepository)

	cache1.Set(ctx, cache.NewKey("repo", cache.CategoryCommits, ""), 1)
	cache1.Set(ctx, cache.NewKey("other", cache.CategoryCommits, ""), 2)
	cache2.Set(ctx, cache.NewKey("repo", cache.CategoryTags, ""), 3)

	cnt, err := i.Invalidate(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, 2, cnt)

	assert.Equal(t, 1, cache1.Len())
	assert.Equal(t, 0, cache2.Len())

	_, err = i.Invalidate(ctx, "repo")
	assert.True(t, errors.Is(err, cache.ErrAlreadyInvalidated))

	// Other namespaces are not affected by flood protection.
	cnt, err = i.Invalidate(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
}

package cache_test

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	cache "github.com/vearutop/repocache"
)

func TestObjectCache(t *testing.T) {
	o := cache.NewObjectCache()

	_, found := o.Get("abc")
	assert.False(t, found)

	o.Put("abc", 1, 10)
	o.Put("def", 2, 20)
	o.Put("abc", 3, 15)

	v, found := o.Get("abc")
	assert.True(t, found)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, o.Len())
	assert.Equal(t, int64(35), o.Size())

	freed, cnt := o.Reset()
	assert.Equal(t, int64(35), freed)
	assert.Equal(t, 2, cnt)
	assert.Equal(t, 0, o.Len())
	assert.Equal(t, int64(0), o.Size())

	_, found = o.Get("abc")
	assert.False(t, found)
}

func TestObjectCache_concurrency(t *testing.T) {
	o := cache.NewObjectCache()

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				o.Put(strconv.Itoa(i*100+j), j, 1)
				o.Get(strconv.Itoa(j))
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 800, o.Len())
	assert.Equal(t, int64(800), o.Size())
}

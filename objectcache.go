package cache

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync"
)

// ObjectCache is a shared cache of parsed objects, for example Git commits by hash.
//
// It has no expiration and no capacity limits, PressureMonitor clears it as a whole.
type ObjectCache struct {
	store atomic.Pointer[objectStore]
}

type objectStore struct {
	data  *xsync.Map
	size  atomic.Int64
	count atomic.Int64
}

type object struct {
	val  interface{}
	size int64
}

func newObjectStore() *objectStore {
	return &objectStore{data: xsync.NewMap()}
}

// NewObjectCache creates an empty object cache.
func NewObjectCache() *ObjectCache {
	o := &ObjectCache{}
	o.store.Store(newObjectStore())

	return o
}

// Get returns cached object.
func (o *ObjectCache) Get(key string) (interface{}, bool) {
	v, ok := o.store.Load().data.Load(key)
	if !ok {
		return nil, false
	}

	return v.(object).val, true
}

// Put stores object with an approximate size in bytes.
func (o *ObjectCache) Put(key string, v interface{}, size int64) {
	s := o.store.Load()

	prev, loaded := s.data.LoadAndStore(key, object{val: v, size: size})
	if loaded {
		s.size.Add(size - prev.(object).size)

		return
	}

	s.size.Add(size)
	s.count.Add(1)
}

// Len returns approximate number of objects.
func (o *ObjectCache) Len() int {
	return int(o.store.Load().count.Load())
}

// Size returns approximate size of objects in bytes.
func (o *ObjectCache) Size() int64 {
	return o.store.Load().size.Load()
}

// Reset replaces storage with an empty one and returns freed size and count.
//
// Old storage is not mutated, so that concurrent readers finish with it and it is reclaimed by GC.
func (o *ObjectCache) Reset() (freed int64, count int) {
	old := o.store.Swap(newObjectStore())

	return old.size.Load(), int(old.count.Load())
}

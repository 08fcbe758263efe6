package cache

import (
	"context"
	"encoding/gob"
	"errors"
	"io"
)

// Dump saves cached entries and returns a number of processed entries.
//
// Dump uses encoding/gob to serialize cache entries, therefore it is necessary to
// register cached types in advance with GobRegister.
func (c *Memory) Dump(w io.Writer) (int, error) {
	encoder := gob.NewEncoder(w)

	return c.Walk(func(e Entry) error {
		return encoder.Encode(e)
	})
}

// Restore loads cached entries and returns number of restored entries.
//
// Expired entries are skipped, capacity limits are applied as for regular writes.
func (c *Memory) Restore(r io.Reader) (int, error) {
	var (
		decoder = gob.NewDecoder(r)
		n       = 0
		ctx     = context.Background()
	)

	for {
		var e Entry

		err := decoder.Decode(&e)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return n, newError(CodeRestoreError, err)
		}

		if !e.Key.Category.Valid() || e.Expired(c.config.TimeNow()) {
			continue
		}

		if e.Size > c.config.MaxSize || c.config.capacity() == 0 {
			continue
		}

		c.Lock()
		if c.closed {
			c.Unlock()

			return n, newError(CodeRestoreError, ErrCacheClosed)
		}

		k := e.Key.String()
		if prev, found := c.data.Peek(k); found {
			c.remove(k, prev)
		}

		evicted := c.ensureCapacity(e.Size)
		c.version++
		e.Version = c.version
		c.data.Add(k, &e)
		c.agg.added(e.Key.Category, e.Size)
		c.Unlock()

		for _, ev := range evicted {
			c.bus.publish(ev)
		}

		n++
	}

	c.log.Important(ctx, "restored cache entries", "name", c.config.Name, "count", n)

	return n, nil
}

// GobRegister enables cached type transferring.
func GobRegister(values ...interface{}) {
	for _, value := range values {
		gob.Register(value)
	}
}

// nolint:gochecknoinits // Registering types to a package level registry of "encoding/gob".
func init() {
	// Registering commonly used types.
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
}

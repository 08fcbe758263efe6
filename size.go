package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bool64/ctxd"
	"github.com/cespare/xxhash/v2"
)

// measure returns approximate size and checksum of a value.
//
// Size is a length of JSON encoding, values that can not be encoded (cyclic, channels, functions) fail.
func (c *memory) measure(ctx context.Context, v interface{}) (size int64, sum uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ctxd.WrapError(ctx, fmt.Errorf("panic: %v", r), "failed to measure cache entry")
		}
	}()

	if c.config.SizeOf != nil {
		size, err = c.config.SizeOf(v)
		if err != nil {
			return 0, 0, ctxd.WrapError(ctx, err, "failed to measure cache entry")
		}

		return size, 0, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return 0, 0, ctxd.WrapError(ctx, err, "failed to measure cache entry")
	}

	return int64(len(b)), xxhash.Sum64(b), nil
}

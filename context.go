package cache

import (
	"context"
	"time"
)

type (
	skipReadCtxKey struct{}
	ttlCtxKey      struct{}
	tagsCtxKey     struct{}
)

// WithTTL returns context with entry time to live for cache writes.
func WithTTL(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, ttlCtxKey{}, ttl)
}

// TTL returns entry time to live from context or zero.
func TTL(ctx context.Context) time.Duration {
	ttl, _ := ctx.Value(ttlCtxKey{}).(time.Duration)

	return ttl
}

// WithTags returns context with free-form tags attached to written entries.
func WithTags(ctx context.Context, tags ...string) context.Context {
	return context.WithValue(ctx, tagsCtxKey{}, tags)
}

// Tags returns entry tags from context.
func Tags(ctx context.Context) []string {
	tags, _ := ctx.Value(tagsCtxKey{}).([]string)

	return tags
}

// WithSkipRead returns context with cache read ignored.
//
// With such context Get always reports a miss discarding cached value.
func WithSkipRead(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipReadCtxKey{}, true)
}

// SkipRead returns true if cache read is ignored in context.
func SkipRead(ctx context.Context) bool {
	_, ok := ctx.Value(skipReadCtxKey{}).(bool)

	return ok
}

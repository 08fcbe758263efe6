package cache

import (
	"context"
	"io"
	"time"
)

// Entry is a stored value with its bookkeeping.
type Entry struct {
	Key          Key
	Value        interface{}
	CreatedAt    time.Time
	LastAccessed time.Time
	ExpiresAt    time.Time
	Size         int64
	AccessCount  int64

	// Version is distinct for every write within a cache instance, later writes have greater versions.
	Version uint64

	Tags []string

	// Compressed is reserved and always false.
	Compressed bool

	// Checksum is xxhash of JSON encoding, zero with custom Config.SizeOf.
	Checksum uint64
}

// Expired checks if entry is expired at given time.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// GetResult is a result of cache read.
type GetResult struct {
	Hit           bool
	Data          interface{}
	ExecutionTime time.Duration
	Err           *Error
}

// SetResult is a result of cache write.
type SetResult struct {
	Success bool

	// Stored is false when write succeeded without storing, for example with zero capacity.
	Stored bool

	Data          interface{}
	ExecutionTime time.Duration
	Err           *Error
}

// Source loads payload for a key on cache miss.
type Source interface {
	Load(ctx context.Context, key Key) (interface{}, error)
}

// SourceFunc implements Source with a function.
type SourceFunc func(ctx context.Context, key Key) (interface{}, error)

// Load calls function.
func (f SourceFunc) Load(ctx context.Context, key Key) (interface{}, error) {
	return f(ctx, key)
}

// Walker calls function for every entry in cache and fails on first error returned by that function.
//
// Count of processed entries is returned.
type Walker interface {
	Walk(func(e Entry) error) (int, error)
}

// Dumper dumps cache entries in binary format.
type Dumper interface {
	Dump(w io.Writer) (int, error)
}

// Restorer restores cache entries from binary dump.
type Restorer interface {
	Restore(r io.Reader) (int, error)
}

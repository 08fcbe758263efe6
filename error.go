package cache

import "fmt"

// SentinelError is an error.
type SentinelError string

const (
	// ErrCacheItemNotFound indicates missing cache entry.
	ErrCacheItemNotFound = SentinelError("missing cache item")

	// ErrCacheClosed indicates cache was destroyed and deactivated.
	ErrCacheClosed = SentinelError("cache is closed")

	// ErrUnknownCategory indicates a key with a category outside of the known set.
	ErrUnknownCategory = SentinelError("unknown cache category")

	// ErrEntryTooLarge indicates a payload that does not fit into MaxSize even in an empty cache.
	ErrEntryTooLarge = SentinelError("entry exceeds cache capacity")

	// ErrNothingToInvalidate indicates no caches were added to Invalidator.
	ErrNothingToInvalidate = SentinelError("nothing to invalidate")

	// ErrAlreadyInvalidated indicates recent invalidation.
	ErrAlreadyInvalidated = SentinelError("already invalidated")
)

// Error implements error.
func (e SentinelError) Error() string {
	return string(e)
}

// ErrorCode identifies a failed cache operation in a structured result.
type ErrorCode string

// Error codes reported in operation results.
const (
	CodeGetError     = ErrorCode("CACHE_GET_ERROR")
	CodeSetError     = ErrorCode("CACHE_SET_ERROR")
	CodeLoadError    = ErrorCode("CACHE_LOAD_ERROR")
	CodeRestoreError = ErrorCode("CACHE_RESTORE_ERROR")
)

// Error is a structured failure of a cache operation.
//
// Cache operations never panic across the public boundary, failures are reported as *Error in results.
type Error struct {
	Code    ErrorCode
	Message string

	cause error
}

func newError(code ErrorCode, cause error) *Error {
	return &Error{Code: code, Message: cause.Error(), cause: cause}
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

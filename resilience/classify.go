package resilience

import (
	"context"
	"errors"
	"strings"
)

// Category is a classified failure kind.
type Category string

// Error categories.
const (
	CategoryNetwork              = Category("network")
	CategoryTimeout              = Category("timeout")
	CategoryConnectionRefused    = Category("connection_refused")
	CategoryRepositoryNotFound   = Category("repository_not_found")
	CategoryNotGitRepository     = Category("not_git_repository")
	CategoryFileNotFound         = Category("file_not_found")
	CategoryAccessDenied         = Category("access_denied")
	CategoryObjectNotFound       = Category("object_not_found")
	CategoryAuthenticationFailed = Category("authentication_failed")
	CategoryMergeConflict        = Category("merge_conflict")
	CategoryLock                 = Category("lock_error")
	CategoryCommandFailed        = Category("command_failed")
	CategoryUnknown              = Category("unknown")
	CategoryNone                 = Category("")
)

// neverRetried categories are not retried even if configured as retryable.
var neverRetried = map[Category]bool{
	CategoryNotGitRepository: true,
	CategoryAccessDenied:     true,
}

// DefaultRetryable returns categories retried by default.
func DefaultRetryable() []Category {
	return []Category{
		CategoryNetwork,
		CategoryTimeout,
		CategoryConnectionRefused,
		CategoryFileNotFound,
		CategoryLock,
	}
}

type rule struct {
	category Category
	patterns []string
}

// rules are matched in order against lower-cased error message, first match wins.
var rules = []rule{
	{CategoryNotGitRepository, []string{"not a git repository"}},
	{CategoryRepositoryNotFound, []string{"repository not found", "repository does not exist", "no such repository"}},
	{CategoryAuthenticationFailed, []string{
		"authentication failed", "authentication required", "authorization failed", "invalid credentials",
		"permission denied (publickey",
	}},
	{CategoryAccessDenied, []string{"access denied", "permission denied", "operation not permitted", "eacces", "eperm"}},
	{CategoryConnectionRefused, []string{"connection refused", "econnrefused"}},
	{CategoryTimeout, []string{"timeout", "timed out", "deadline exceeded", "etimedout"}},
	{CategoryLock, []string{".lock", "lock file", "unable to lock", "is locked", "resource busy", "ebusy"}},
	{CategoryNetwork, []string{
		"network", "could not resolve host", "no such host", "connection reset", "econnreset",
		"enotfound", "no route to host", "broken pipe", "unexpected eof",
	}},
	{CategoryMergeConflict, []string{"merge conflict", "conflict"}},
	{CategoryObjectNotFound, []string{
		"object not found", "reference not found", "ref not found", "bad object", "unknown revision",
		"invalid reference", "not a valid object",
	}},
	{CategoryFileNotFound, []string{"no such file", "file not found", "file does not exist", "enoent"}},
	{CategoryCommandFailed, []string{"command failed", "exit status", "exit code"}},
}

// Classify maps error to a category.
//
// Matching is heuristic, it relies on error message substrings.
func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}

	msg := strings.ToLower(err.Error())

	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(msg, p) {
				return r.category
			}
		}
	}

	return CategoryUnknown
}

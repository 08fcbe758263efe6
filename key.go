package cache

import (
	"net/url"
	"strings"
)

// Category is a closed set of cached Git metadata kinds.
type Category string

// Known categories.
const (
	CategoryStatus   = Category("status")
	CategoryCommits  = Category("commits")
	CategoryBranches = Category("branches")
	CategoryTags     = Category("tags")
	CategoryRemotes  = Category("remotes")
	CategoryTimeline = Category("timeline")
)

// Categories lists known categories in a stable order.
var Categories = []Category{
	CategoryStatus,
	CategoryCommits,
	CategoryBranches,
	CategoryTags,
	CategoryRemotes,
	CategoryTimeline,
}

// Valid checks if category is known.
func (c Category) Valid() bool {
	return c.index() >= 0
}

func (c Category) index() int {
	for i, k := range Categories {
		if k == c {
			return i
		}
	}

	return -1
}

// Key identifies cached payload of a repository.
type Key struct {
	// Namespace is a repository id.
	Namespace string
	Category  Category
	Resource  string

	// Params is an optional bag of request parameters, different bags produce different keys.
	Params map[string]string
}

// NewKey creates a key.
func NewKey(namespace string, category Category, resource string) Key {
	return Key{Namespace: namespace, Category: category, Resource: resource}
}

// With returns a copy of key with a parameter added.
func (k Key) With(name, value string) Key {
	params := make(map[string]string, len(k.Params)+1)

	for n, v := range k.Params {
		params[n] = v
	}

	params[name] = value
	k.Params = params

	return k
}

// String serializes key.
//
// Parts are escaped and parameters are sorted by name, so logically different keys never collide.
func (k Key) String() string {
	s := namespacePrefix(k.Namespace) + string(k.Category) + ":" + url.QueryEscape(k.Resource)

	if len(k.Params) == 0 {
		return s
	}

	v := make(url.Values, len(k.Params))
	for n, p := range k.Params {
		v.Set(n, p)
	}

	// Encode sorts by name.
	return s + ":" + v.Encode()
}

func namespacePrefix(namespace string) string {
	return url.QueryEscape(namespace) + ":"
}

func hasNamespace(serializedKey, namespace string) bool {
	return strings.HasPrefix(serializedKey, namespacePrefix(namespace))
}

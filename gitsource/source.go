// Package gitsource loads Git repository metadata for cache.ReadThrough.
package gitsource

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bool64/ctxd"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	cache "github.com/vearutop/repocache"
)

// ErrUnsupportedCategory indicates a category that Source can not load.
const ErrUnsupportedCategory = cache.SentinelError("unsupported category")

// DefaultCommitsLimit is a number of commits loaded without "limit" parameter.
const DefaultCommitsLimit = 50

// MaxCommitsLimit is the largest accepted "limit" parameter.
const MaxCommitsLimit = 10000

var _ cache.Source = &Source{}

// Commit is a parsed commit.
type Commit struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Email   string    `json:"email"`
	When    time.Time `json:"when"`
	Message string    `json:"message"`
	Parents []string  `json:"parents,omitempty"`
}

// Ref is a branch or tag.
type Ref struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
	Head bool   `json:"head,omitempty"`
}

// Remote is a configured remote.
type Remote struct {
	Name string   `json:"name"`
	URLs []string `json:"urls"`
}

// FileStatus is a status of a changed file.
type FileStatus struct {
	Path     string `json:"path"`
	Staging  string `json:"staging"`
	Worktree string `json:"worktree"`
}

// Status is a worktree status.
type Status struct {
	Branch string       `json:"branch,omitempty"`
	Clean  bool         `json:"clean"`
	Files  []FileStatus `json:"files,omitempty"`
}

// Config is optional configuration of Source.
type Config struct {
	// Objects memoizes parsed commits, can be nil.
	Objects *cache.ObjectCache

	// Open resolves repository of a namespace that was not registered, default opens namespace as a path.
	Open func(namespace string) (*git.Repository, error)

	// Logger is an instance of contextualized logger, can be nil.
	Logger ctxd.Logger
}

// Source loads metadata with go-git.
type Source struct {
	mu    sync.Mutex
	repos map[string]*git.Repository

	objects *cache.ObjectCache
	open    func(namespace string) (*git.Repository, error)
	log     ctxd.Logger
}

// New creates a Source.
func New(cfg Config) *Source {
	s := &Source{
		repos:   make(map[string]*git.Repository),
		objects: cfg.Objects,
		open:    cfg.Open,
		log:     cfg.Logger,
	}

	if s.open == nil {
		s.open = git.PlainOpen
	}

	if s.log == nil {
		s.log = ctxd.NoOpLogger{}
	}

	return s
}

// Register binds a namespace to an opened repository.
func (s *Source) Register(namespace string, repo *git.Repository) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.repos[namespace] = repo
}

// Load reads data of a key category.
func (s *Source) Load(ctx context.Context, key cache.Key) (interface{}, error) {
	repo, err := s.repository(key.Namespace)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "loading git data", "namespace", key.Namespace, "category", key.Category, "resource", key.Resource)

	switch key.Category {
	case cache.CategoryStatus:
		return s.status(repo)
	case cache.CategoryCommits:
		return s.commits(ctx, repo, key)
	case cache.CategoryBranches:
		return s.refs(repo, true)
	case cache.CategoryTags:
		return s.refs(repo, false)
	case cache.CategoryRemotes:
		return s.remotes(repo)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCategory, key.Category)
	}
}

func (s *Source) repository(namespace string) (*git.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if repo, ok := s.repos[namespace]; ok {
		return repo, nil
	}

	repo, err := s.open(namespace)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", namespace, err)
	}

	s.repos[namespace] = repo

	return repo, nil
}

func (s *Source) status(repo *git.Repository) (Status, error) {
	var res Status

	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		res.Branch = head.Name().Short()
	}

	wt, err := repo.Worktree()
	if err != nil {
		return res, err
	}

	st, err := wt.Status()
	if err != nil {
		return res, err
	}

	res.Clean = st.IsClean()

	for path, fs := range st {
		if fs.Staging == git.Unmodified && fs.Worktree == git.Unmodified {
			continue
		}

		res.Files = append(res.Files, FileStatus{
			Path:     path,
			Staging:  string(rune(fs.Staging)),
			Worktree: string(rune(fs.Worktree)),
		})
	}

	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Path < res.Files[j].Path })

	return res, nil
}

// commits walks first-parent history from resource revision, HEAD by default.
func (s *Source) commits(ctx context.Context, repo *git.Repository, key cache.Key) ([]Commit, error) {
	limit := DefaultCommitsLimit

	if l, ok := key.Params["limit"]; ok {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid limit %q", l)
		}

		if n > MaxCommitsLimit {
			return nil, fmt.Errorf("limit %d exceeds maximum %d", n, MaxCommitsLimit)
		}

		limit = n
	}

	rev := key.Resource
	if rev == "" {
		rev = "HEAD"
	}

	h, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rev, err)
	}

	res := make([]Commit, 0, min(limit, DefaultCommitsLimit))
	next := *h

	for len(res) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c, err := s.commit(repo, next)
		if err != nil {
			return nil, err
		}

		res = append(res, c)

		if len(c.Parents) == 0 {
			break
		}

		next = plumbing.NewHash(c.Parents[0])
	}

	return res, nil
}

func (s *Source) commit(repo *git.Repository, h plumbing.Hash) (Commit, error) {
	if s.objects != nil {
		if v, ok := s.objects.Get(h.String()); ok {
			return v.(Commit), nil
		}
	}

	obj, err := repo.CommitObject(h)
	if err != nil {
		return Commit{}, fmt.Errorf("commit %s: %w", h, err)
	}

	c := newCommit(obj)

	if s.objects != nil {
		s.objects.Put(h.String(), c, commitSize(c))
	}

	return c, nil
}

func newCommit(obj *object.Commit) Commit {
	c := Commit{
		Hash:    obj.Hash.String(),
		Author:  obj.Author.Name,
		Email:   obj.Author.Email,
		When:    obj.Author.When,
		Message: obj.Message,
	}

	for _, p := range obj.ParentHashes {
		c.Parents = append(c.Parents, p.String())
	}

	return c
}

func commitSize(c Commit) int64 {
	const hexHash, overhead = 40, 64

	return int64(len(c.Author)+len(c.Email)+len(c.Message)+hexHash*(1+len(c.Parents))) + overhead
}

func (s *Source) refs(repo *git.Repository, branches bool) ([]Ref, error) {
	var (
		iter storer.ReferenceIter
		err  error
	)

	if branches {
		iter, err = repo.Branches()
	} else {
		iter, err = repo.Tags()
	}

	if err != nil {
		return nil, err
	}

	var headName plumbing.ReferenceName
	if head, err := repo.Head(); err == nil {
		headName = head.Name()
	}

	var res []Ref

	err = iter.ForEach(func(ref *plumbing.Reference) error {
		res = append(res, Ref{
			Name: ref.Name().Short(),
			Hash: ref.Hash().String(),
			Head: ref.Name() == headName,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })

	return res, nil
}

func (s *Source) remotes(repo *git.Repository) ([]Remote, error) {
	remotes, err := repo.Remotes()
	if err != nil {
		return nil, err
	}

	res := make([]Remote, 0, len(remotes))

	for _, r := range remotes {
		cfg := r.Config()
		res = append(res, Remote{Name: cfg.Name, URLs: cfg.URLs})
	}

	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })

	return res, nil
}

package gitsource_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cache "github.com/vearutop/repocache"
	"github.com/vearutop/repocache/gitsource"
)

type fixture struct {
	repo   *git.Repository
	wt     *git.Worktree
	hashes []plumbing.Hash
}

func newFixture(t *testing.T, messages ...string) *fixture {
	t.Helper()

	repo, err := git.Init(memory.NewStorage(), memfs.New())
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	f := &fixture{repo: repo, wt: wt}

	for i, msg := range messages {
		h, err := wt.Commit(msg, &git.CommitOptions{
			AllowEmptyCommits: true,
			Author: &object.Signature{
				Name:  "Jane Doe",
				Email: "jane@example.com",
				When:  time.Date(2024, 1, 1, i, 0, 0, 0, time.UTC),
			},
		})
		require.NoError(t, err)

		f.hashes = append(f.hashes, h)
	}

	return f
}

func newSource(f *fixture, objects *cache.ObjectCache) *gitsource.Source {
	s := gitsource.New(gitsource.Config{Objects: objects})
	s.Register("repo", f.repo)

	return s
}

func TestSource_Load_commits(t *testing.T) {
	f := newFixture(t, "first", "second", "third")
	objects := cache.NewObjectCache()
	s := newSource(f, objects)
	ctx := context.Background()

	v, err := s.Load(ctx, cache.NewKey("repo", cache.CategoryCommits, "").With("limit", "2"))
	require.NoError(t, err)

	commits := v.([]gitsource.Commit)
	require.Len(t, commits, 2)
	assert.Equal(t, "third", commits[0].Message)
	assert.Equal(t, f.hashes[2].String(), commits[0].Hash)
	assert.Equal(t, []string{f.hashes[1].String()}, commits[0].Parents)
	assert.Equal(t, "second", commits[1].Message)
	assert.Equal(t, "Jane Doe", commits[1].Author)
	assert.Equal(t, 2, objects.Len())
	assert.Positive(t, objects.Size())

	v, err = s.Load(ctx, cache.NewKey("repo", cache.CategoryCommits, ""))
	require.NoError(t, err)
	assert.Len(t, v.([]gitsource.Commit), 3)
	assert.Equal(t, 3, objects.Len())

	v, err = s.Load(ctx, cache.NewKey("repo", cache.CategoryCommits, f.hashes[0].String()))
	require.NoError(t, err)

	commits = v.([]gitsource.Commit)
	require.Len(t, commits, 1)
	assert.Equal(t, "first", commits[0].Message)
	assert.Empty(t, commits[0].Parents)
}

func TestSource_Load_commitsInvalid(t *testing.T) {
	s := newSource(newFixture(t, "first"), nil)
	ctx := context.Background()

	_, err := s.Load(ctx, cache.NewKey("repo", cache.CategoryCommits, "").With("limit", "zero"))
	assert.EqualError(t, err, `invalid limit "zero"`)

	_, err = s.Load(ctx, cache.NewKey("repo", cache.CategoryCommits, "").With("limit", "9000000000000000000"))
	assert.EqualError(t, err, "limit 9000000000000000000 exceeds maximum 10000")

	_, err = s.Load(ctx, cache.NewKey("repo", cache.CategoryCommits, "").With("limit", "99999999999999999999"))
	assert.EqualError(t, err, `invalid limit "99999999999999999999"`)

	commits, err := s.Load(ctx, cache.NewKey("repo", cache.CategoryCommits, "").With("limit", "10000"))
	require.NoError(t, err)
	assert.Len(t, commits, 1)

	_, err = s.Load(ctx, cache.NewKey("repo", cache.CategoryCommits, "no-such-branch"))
	assert.Error(t, err)
}

func TestSource_Load_commitsCancelled(t *testing.T) {
	s := newSource(newFixture(t, "first"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Load(ctx, cache.NewKey("repo", cache.CategoryCommits, ""))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSource_Load_refs(t *testing.T) {
	f := newFixture(t, "first", "second")

	require.NoError(t, f.repo.Storer.SetReference(
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("feature"), f.hashes[0])))

	_, err := f.repo.CreateTag("v1.0.0", f.hashes[0], nil)
	require.NoError(t, err)

	s := newSource(f, nil)
	ctx := context.Background()

	v, err := s.Load(ctx, cache.NewKey("repo", cache.CategoryBranches, ""))
	require.NoError(t, err)
	assert.Equal(t, []gitsource.Ref{
		{Name: "feature", Hash: f.hashes[0].String()},
		{Name: "master", Hash: f.hashes[1].String(), Head: true},
	}, v)

	v, err = s.Load(ctx, cache.NewKey("repo", cache.CategoryTags, ""))
	require.NoError(t, err)
	assert.Equal(t, []gitsource.Ref{{Name: "v1.0.0", Hash: f.hashes[0].String()}}, v)
}

func TestSource_Load_remotes(t *testing.T) {
	f := newFixture(t, "first")

	_, err := f.repo.CreateRemote(&config.RemoteConfig{Name: "upstream", URLs: []string{"https://example.com/u.git"}})
	require.NoError(t, err)

	_, err = f.repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{"https://example.com/o.git"}})
	require.NoError(t, err)

	v, err := newSource(f, nil).Load(context.Background(), cache.NewKey("repo", cache.CategoryRemotes, ""))
	require.NoError(t, err)
	assert.Equal(t, []gitsource.Remote{
		{Name: "origin", URLs: []string{"https://example.com/o.git"}},
		{Name: "upstream", URLs: []string{"https://example.com/u.git"}},
	}, v)
}

func TestSource_Load_status(t *testing.T) {
	f := newFixture(t, "first")
	s := newSource(f, nil)
	ctx := context.Background()

	v, err := s.Load(ctx, cache.NewKey("repo", cache.CategoryStatus, ""))
	require.NoError(t, err)
	assert.Equal(t, gitsource.Status{Branch: "master", Clean: true}, v)

	file, err := f.wt.Filesystem.Create("notes.txt")
	require.NoError(t, err)
	_, err = file.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, file.Close())

	v, err = s.Load(ctx, cache.NewKey("repo", cache.CategoryStatus, ""))
	require.NoError(t, err)

	st := v.(gitsource.Status)
	assert.False(t, st.Clean)
	assert.Equal(t, []gitsource.FileStatus{{Path: "notes.txt", Staging: "?", Worktree: "?"}}, st.Files)
}

func TestSource_Load_unsupported(t *testing.T) {
	s := newSource(newFixture(t, "first"), nil)

	_, err := s.Load(context.Background(), cache.NewKey("repo", cache.CategoryTimeline, ""))
	assert.True(t, errors.Is(err, gitsource.ErrUnsupportedCategory))
}

func TestSource_Load_open(t *testing.T) {
	f := newFixture(t, "first")
	opened := 0

	s := gitsource.New(gitsource.Config{
		Open: func(namespace string) (*git.Repository, error) {
			opened++

			if namespace != "lazy" {
				return nil, git.ErrRepositoryNotExists
			}

			return f.repo, nil
		},
	})

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.Load(ctx, cache.NewKey("lazy", cache.CategoryBranches, ""))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, opened)

	_, err := s.Load(ctx, cache.NewKey("missing", cache.CategoryBranches, ""))
	assert.ErrorIs(t, err, git.ErrRepositoryNotExists)
	assert.Contains(t, err.Error(), "open missing")
}

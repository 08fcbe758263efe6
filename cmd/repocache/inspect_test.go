package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func initRepo(t *testing.T, commits ...string) string {
	t.Helper()

	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	for i, msg := range commits {
		_, err := wt.Commit(msg, &git.CommitOptions{
			AllowEmptyCommits: true,
			Author: &object.Signature{
				Name:  "Jane Doe",
				Email: "jane@example.com",
				When:  time.Date(2024, 1, 1, i, 0, 0, 0, time.UTC),
			},
		})
		require.NoError(t, err)
	}

	return dir
}

func TestInspect(t *testing.T) {
	dir := initRepo(t, "first", "second", "third")

	out := bytes.NewBuffer(nil)
	logs := bytes.NewBuffer(nil)

	err := inspect(context.Background(), out, logs, dir, inspectFlags{
		category: "commits",
		params:   map[string]string{"limit": "2"},
		repeat:   3,
	})
	require.NoError(t, err)

	var r struct {
		Data []struct {
			Message string `yaml:"message"`
		} `yaml:"data"`
		Cache cacheReport `yaml:"cache"`
		Retry retryReport `yaml:"retry"`
	}

	require.NoError(t, yaml.Unmarshal(out.Bytes(), &r), out.String())

	require.Len(t, r.Data, 2)
	assert.Equal(t, "third", r.Data[0].Message)
	assert.Equal(t, "second", r.Data[1].Message)

	assert.Equal(t, 1, r.Cache.Entries)
	assert.Equal(t, int64(2), r.Cache.Hits)
	assert.Equal(t, int64(1), r.Cache.Misses)
	assert.Equal(t, int64(1), r.Retry.Operations)
	assert.Equal(t, "healthy", string(r.Retry.Health))
	assert.Empty(t, logs.String())
}

func TestInspect_notRepository(t *testing.T) {
	out := bytes.NewBuffer(nil)
	logs := bytes.NewBuffer(nil)

	err := inspect(context.Background(), out, logs, t.TempDir(), inspectFlags{category: "branches"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_LOAD_ERROR")
	assert.Contains(t, logs.String(), "operation failed")
	assert.Empty(t, out.String())
}

func TestInspect_unknownCategory(t *testing.T) {
	err := inspect(context.Background(), bytes.NewBuffer(nil), bytes.NewBuffer(nil), t.TempDir(),
		inspectFlags{category: "stashes"})
	assert.EqualError(t, err, "unknown cache category: stashes")
}

func TestRootCmd(t *testing.T) {
	dir := initRepo(t, "initial")

	out := bytes.NewBuffer(nil)
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(bytes.NewBuffer(nil))
	cmd.SetArgs([]string{"inspect", dir, "--category", "branches"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "name: master")
	assert.Contains(t, out.String(), "head: true")
}

package vcs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHead_NotARepository(t *testing.T) {
	rev, err := Head(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, rev)
	assert.Empty(t, rev.Short())
}

func TestHead_EmptyRepository(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	rev, err := Head(dir)
	require.NoError(t, err)
	assert.Nil(t, rev)
}

func TestHead_FromSubdirectory(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "site", "public"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site", "package.json"), []byte("{}"), 0o600))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("site/package.json")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Site Bot", Email: "bot@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	rev, err := Head(filepath.Join(dir, "site", "public"))
	require.NoError(t, err)
	require.NotNil(t, rev)
	assert.Equal(t, hash.String(), rev.Commit)
	assert.Equal(t, "master", rev.Branch)
	assert.Len(t, rev.Short(), 12)
}

package gitsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T, dir string) {
	t.Helper()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
}

func headMessage(t *testing.T, dir string) string {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	commit, err := repo.CommitObject(head.Hash())
	require.NoError(t, err)
	return commit.Message
}

func TestCommit(t *testing.T) {
	dir := t.TempDir()
	initRepo(t, dir)

	path := filepath.Join(dir, "book.md")
	require.NoError(t, os.WriteFile(path, []byte("---\nname: \"b\"\n---\n"), 0o644))

	committed, err := Commit(dir, "sync 1 book", []string{path})
	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, "sync 1 book", headMessage(t, dir))

	t.Run("nothing to commit", func(t *testing.T) {
		committed, err := Commit(dir, "again", []string{"book.md"})
		require.NoError(t, err)
		assert.False(t, committed)
	})

	t.Run("not a repository", func(t *testing.T) {
		_, err := Commit(t.TempDir(), "msg", nil)
		assert.Error(t, err)
	})
}

func TestSyncClonesThenPulls(t *testing.T) {
	origin := t.TempDir()
	initRepo(t, origin)
	require.NoError(t, os.WriteFile(filepath.Join(origin, "a.md"), []byte("a"), 0o644))
	_, err := Commit(origin, "first", []string{"a.md"})
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "flashcards")
	ctx := context.Background()

	require.NoError(t, Sync(ctx, origin, local))
	assert.FileExists(t, filepath.Join(local, "a.md"))

	require.NoError(t, os.WriteFile(filepath.Join(origin, "b.md"), []byte("b"), 0o644))
	_, err = Commit(origin, "second", []string{"b.md"})
	require.NoError(t, err)

	require.NoError(t, Sync(ctx, origin, local))
	assert.FileExists(t, filepath.Join(local, "b.md"))

	t.Run("already up to date", func(t *testing.T) {
		assert.NoError(t, Sync(ctx, origin, local))
	})
}

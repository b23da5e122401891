package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	f, size, err := OpenSource(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(5), size)
}

func TestOpenSourceRejectsDirectory(t *testing.T) {
	_, _, err := OpenSource(t.TempDir())
	assert.ErrorIs(t, err, ErrNotRegular)
}

func TestOpenSourceMissing(t *testing.T) {
	_, _, err := OpenSource(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolveDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))

	t.Run("new file", func(t *testing.T) {
		got, err := ResolveDestination(src, filepath.Join(dir, "new"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "new"), got)
	})

	t.Run("into directory", func(t *testing.T) {
		got, err := ResolveDestination(src, sub)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(sub, "src.bin"), got)
	})

	t.Run("existing file", func(t *testing.T) {
		existing := filepath.Join(dir, "old")
		require.NoError(t, os.WriteFile(existing, []byte("old"), 0644))
		got, err := ResolveDestination(src, existing)
		require.NoError(t, err)
		assert.Equal(t, existing, got)
	})

	t.Run("same file", func(t *testing.T) {
		_, err := ResolveDestination(src, src)
		assert.ErrorIs(t, err, ErrSameFile)
	})

	t.Run("same file through directory", func(t *testing.T) {
		_, err := ResolveDestination(src, dir)
		assert.ErrorIs(t, err, ErrSameFile)
	})
}

func TestTargetCommit(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(dst, []byte("previous contents"), 0644))

	target, err := CreateTarget(dst, 5, 0600)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(target.TempPath(), ".ringcp-tmp"))
	assert.Equal(t, dst, target.Path())
	assert.Equal(t, 1, registry.len())

	_, err = target.File().WriteAt([]byte("fresh"), 0)
	require.NoError(t, err)
	require.NoError(t, target.Commit())

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(got))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = os.Stat(target.TempPath())
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Zero(t, registry.len())

	assert.Error(t, target.Commit())
	assert.NoError(t, target.Abort())
}

func TestTargetAbort(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst")

	target, err := CreateTarget(dst, 1<<20, 0644)
	require.NoError(t, err)
	require.NoError(t, target.Abort())
	require.NoError(t, target.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, registry.len())
}

func TestCleanupTemps(t *testing.T) {
	dir := t.TempDir()
	a, err := CreateTarget(filepath.Join(dir, "a"), 0, 0644)
	require.NoError(t, err)
	b, err := CreateTarget(filepath.Join(dir, "b"), 0, 0644)
	require.NoError(t, err)
	require.NoError(t, a.File().Close())
	require.NoError(t, b.File().Close())

	CleanupTemps()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, registry.len())
}

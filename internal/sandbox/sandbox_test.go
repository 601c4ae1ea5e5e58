package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot(t *testing.T) (*Root, string) {
	t.Helper()
	dir := t.TempDir()
	root, err := New(dir)
	require.NoError(t, err)
	return root, root.Path()
}

func TestNew(t *testing.T) {
	t.Run("valid directory", func(t *testing.T) {
		root, dir := newRoot(t)
		assert.Equal(t, dir, root.Path())
		assert.True(t, filepath.IsAbs(root.Path()))
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := New(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})

	t.Run("file instead of directory", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "f")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
		_, err := New(file)
		assert.Error(t, err)
	})

	t.Run("empty root", func(t *testing.T) {
		_, err := New("")
		assert.Error(t, err)
	})
}

func TestResolveRelative(t *testing.T) {
	root, dir := newRoot(t)

	t.Run("plain destination", func(t *testing.T) {
		resolved, err := root.Resolve("assets/image.svg")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "assets", "image.svg"), resolved)
	})

	t.Run("nonexistent nested directories", func(t *testing.T) {
		resolved, err := root.Resolve("a/b/c/d.bin")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "a", "b", "c", "d.bin"), resolved)
	})

	t.Run("internal dot-dot stays inside", func(t *testing.T) {
		resolved, err := root.Resolve("a/../b/c.svg")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "b", "c.svg"), resolved)
	})

	t.Run("empty destination", func(t *testing.T) {
		_, err := root.Resolve("")
		assert.Error(t, err)
	})
}

func TestResolveRejectsEscapes(t *testing.T) {
	root, dir := newRoot(t)

	t.Run("leading dot-dot", func(t *testing.T) {
		_, err := root.Resolve("../outside/file.svg")
		assert.ErrorIs(t, err, ErrOutsideRoot)
	})

	t.Run("deep traversal", func(t *testing.T) {
		_, err := root.Resolve("a/../../../../etc/passwd")
		assert.ErrorIs(t, err, ErrOutsideRoot)
	})

	t.Run("absolute path outside root", func(t *testing.T) {
		_, err := root.Resolve("/etc/passwd")
		assert.ErrorIs(t, err, ErrOutsideRoot)
	})

	t.Run("absolute path inside root", func(t *testing.T) {
		resolved, err := root.Resolve(filepath.Join(dir, "ok.svg"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "ok.svg"), resolved)
	})
}

func TestResolveFollowsSymlinks(t *testing.T) {
	root, dir := newRoot(t)
	outside := t.TempDir()

	// A symlink inside the root pointing outside must not be writable through.
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "link")))

	_, err := root.Resolve("link/file.svg")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	// Symlinks that stay inside are fine.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "real"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "alias")))

	resolved, err := root.Resolve("alias/file.svg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "real", "file.svg"), resolved)
}

package osfilesystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystem_WriteFile(t *testing.T) {
	fs := New()
	path := filepath.Join(t.TempDir(), "a", "b", "frame_000001.png")

	require.NoError(t, fs.WriteFile(path, []byte("first")))
	require.NoError(t, fs.WriteFile(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	// No temporary files are left next to the target.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileSystem_WriteFileIntoFile(t *testing.T) {
	fs := New()
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	err := fs.WriteFile(filepath.Join(blocker, "frame.png"), []byte("x"))
	assert.Error(t, err)
}

func TestFileSystem_MkdirAllAndExists(t *testing.T) {
	fs := New()
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	exists, err := fs.Exists(dir)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, fs.MkdirAll(dir))

	exists, err = fs.Exists(dir)
	require.NoError(t, err)
	assert.True(t, exists)
}

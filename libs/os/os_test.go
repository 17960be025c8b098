package os

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.False(t, FileExists(dir))

	require.NoError(t, EnsureDir(dir, 0700))
	assert.True(t, FileExists(dir))

	// Existing directories are left alone.
	require.NoError(t, EnsureDir(dir, 0700))
}

func TestEnsureDirOverFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, WriteFile(file, []byte("x"), 0600))

	// a parent that is a regular file
	assert.Error(t, EnsureDir(filepath.Join(file, "sub"), 0700))
	// the target itself is a regular file
	assert.Error(t, EnsureDir(file, 0700))
}

func TestWriteFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, WriteFile(file, []byte("hello"), 0600))

	bz, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(bz))

	assert.Error(t, WriteFile(filepath.Join(file, "nested"), nil, 0600))
}

func TestWriteFileReplaces(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, WriteFile(file, []byte("first version"), 0600))
	require.NoError(t, WriteFile(file, []byte("second"), 0600))

	bz, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "second", string(bz))

	entries, err := os.ReadDir(filepath.Dir(file))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

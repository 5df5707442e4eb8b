package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureParentDir_CreatesNestedDirectory(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "a", "b", "notes.db")

	require.NoError(t, EnsureParentDir(path))

	fi, err := os.Stat(filepath.Join(tmp, "a", "b"))
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "the file itself is not created")
}

func TestEnsureParentDir_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x", "notes.key")
	require.NoError(t, EnsureParentDir(path))
	require.NoError(t, EnsureParentDir(path))
}

func TestEnsureParentDir_NoOps(t *testing.T) {
	for _, p := range []string{"", ":memory:", "notes.db"} {
		require.NoError(t, EnsureParentDir(p), p)
	}
}

func TestEnsureParentDir_ErrorWhenParentIsFile(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	err := EnsureParentDir(filepath.Join(file, "sub", "notes.db"))
	require.Error(t, err)
}

func TestEnsureParentDirs(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, EnsureParentDirs(
		filepath.Join(tmp, "db", "notes.db"),
		filepath.Join(tmp, "keys", "notes.key"),
	))
	for _, d := range []string{"db", "keys"} {
		_, err := os.Stat(filepath.Join(tmp, d))
		require.NoError(t, err)
	}
}

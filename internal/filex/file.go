// Package filex holds small filesystem helpers.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the directory that will hold path, so that the
// file itself can be opened or created. Paths in the current directory and
// in-memory SQLite names are left alone.
func EnsureParentDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// EnsureParentDirs is EnsureParentDir applied to each path.
func EnsureParentDirs(paths ...string) error {
	for _, p := range paths {
		if err := EnsureParentDir(p); err != nil {
			return err
		}
	}
	return nil
}

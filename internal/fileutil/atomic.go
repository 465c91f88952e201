package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWrite writes data to path by writing a sibling temp file in the same
// directory, fsyncing it, and renaming it over the target. The temp file is
// removed on any failure path so partial writes never become visible.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file onto %s: %w", path, err)
	}
	return nil
}

// AtomicMove renames src to dst within the same filesystem. It fails if dst
// already exists, since bucket moves must never silently overwrite a task
// file that's already there (e.g. a stale retry after a crash).
func AtomicMove(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("atomic move: destination %s already exists", dst)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("atomic move: stat %s: %w", dst, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("atomic move %s -> %s: %w", src, dst, err)
	}
	return nil
}

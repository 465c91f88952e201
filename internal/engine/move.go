package engine

import (
	"path/filepath"

	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/fileutil"
	"github.com/burl-dev/burl/internal/task"
)

// moveTask serializes file at its current path, then atomically moves it
// into toBucket under the same filename — step 10 of §4.10's generic
// transition shape (mutate, atomic_write, atomic_move). The write happens
// in place first so a crash between write and rename leaves the task
// recoverable from either bucket with identical content.
func (e *Engine) moveTask(file *task.File, currentPath, toBucket string) (string, error) {
	data := file.Serialize()
	if err := fileutil.AtomicWrite(currentPath, data); err != nil {
		return "", burlerr.IO("writing task file", err)
	}
	dst := filepath.Join(e.Ctx.BucketDir(toBucket), filepath.Base(currentPath))
	if err := fileutil.AtomicMove(currentPath, dst); err != nil {
		return "", burlerr.IO("moving task file", err)
	}
	return dst, nil
}

// atomicWriteTaskFile rewrites a task file in place (no bucket move), used
// by validate's in-QA report update.
func atomicWriteTaskFile(file *task.File, path string) error {
	if err := fileutil.AtomicWrite(path, file.Serialize()); err != nil {
		return burlerr.IO("writing task file", err)
	}
	return nil
}

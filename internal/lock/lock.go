// Package lock implements burl's filesystem lock manager (spec.md §4.7):
// exclusive-create named lock files under locks/, with RAII-style release
// and a non-destructive staleness report.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/fileutil"
)

// Names of the well-known lock classes from spec.md §4.7.
const (
	Workflow = "workflow"
	Claim    = "claim"
)

// TaskLockName returns the lock name for a per-task lock.
func TaskLockName(taskID string) string { return taskID }

// Info is the JSON body of a lock file, plus filesystem metadata used for
// the stale-lock report.
type Info struct {
	Owner     string    `json:"owner"`
	PID       int       `json:"pid"`
	CreatedAt time.Time `json:"created_at"`
	Action    string    `json:"action"`

	Name  string `json:"-"`
	Stale bool   `json:"-"`
}

// Guard owns an acquired lock file and releases it on Release. Release is
// the explicit, defer-driven substitute for destructor-based RAII: Go has
// no destructors, and a GC finalizer would not run deterministically on
// every exit path, so callers must `defer guard.Release()` immediately
// after a successful Acquire.
type Guard struct {
	path     string
	released bool
}

// Release removes the lock file. It is safe to call more than once and
// never panics, since releasing a lock is a best-effort cleanup step that
// must not mask the error path it is deferred from.
func (g *Guard) Release() error {
	if g == nil || g.released {
		return nil
	}
	g.released = true
	if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("releasing lock %s: %w", g.path, err)
	}
	return nil
}

// Acquire creates locksDir/<name>.lock exclusively. Concurrent acquisition
// of the same name fails with a KindLock error (AlreadyExists or any other
// I/O error) per spec.md's I7 invariant; it never clears a stale lock
// implicitly.
func Acquire(locksDir, name, owner, action string) (*Guard, error) {
	if err := fileutil.EnsureDir(locksDir); err != nil {
		return nil, burlerr.IO("creating locks directory", err)
	}
	path := filepath.Join(locksDir, name+".lock")

	info := Info{Owner: owner, PID: os.Getpid(), CreatedAt: time.Now().UTC(), Action: action}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, burlerr.IO("encoding lock body", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, burlerr.Lock(fmt.Sprintf("lock %q is already held", name), err)
		}
		return nil, burlerr.Lock(fmt.Sprintf("acquiring lock %q", name), err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(path)
		return nil, burlerr.Lock(fmt.Sprintf("writing lock %q", name), err)
	}

	return &Guard{path: path}, nil
}

// List returns the current locks, flagging any older than staleMinutes.
// Staleness is informational only: list never deletes.
func List(locksDir string, staleMinutes uint32) ([]Info, error) {
	entries, err := os.ReadDir(locksDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, burlerr.IO("listing locks", err)
	}

	cutoff := time.Now().Add(-time.Duration(staleMinutes) * time.Minute)
	var out []Info
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".lock" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(locksDir, e.Name()))
		if err != nil {
			continue // lock file raced out from under us; not an error worth failing List over
		}
		var info Info
		if err := json.Unmarshal(data, &info); err != nil {
			continue
		}
		info.Name = strings.TrimSuffix(e.Name(), ".lock")
		info.Stale = info.CreatedAt.Before(cutoff)
		out = append(out, info)
	}
	return out, nil
}

// Clear removes a lock file irrespective of ownership. force is accepted
// for call-site clarity (spec.md's `clear(name, force=true)`); Clear always
// behaves as a forced clear since burl has no soft-clear mode.
func Clear(locksDir, name string, force bool) error {
	path := filepath.Join(locksDir, name+".lock")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return burlerr.IO(fmt.Sprintf("clearing lock %q", name), err)
	}
	return nil
}

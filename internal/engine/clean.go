package engine

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/gitops"
)

// CleanPlan is the three candidate lists the Cleaner (spec.md §4.12)
// produces before anything is removed.
type CleanPlan struct {
	Completed []string // Git-known worktrees referenced by a DONE task
	Orphans   []string // Git-known worktrees not referenced by any task
	Stray     []string // subdirectories of .worktrees/ that aren't Git worktrees
}

// CleanReport is the outcome of executing a CleanPlan.
type CleanReport struct {
	Removed []string
	Skipped []string // left in place: dirty tracked changes
	Errors  map[string]error
}

// PlanClean scans .worktrees/ and classifies every candidate, per spec.md
// §4.12. It never removes anything.
func (e *Engine) PlanClean() (*CleanPlan, error) {
	idx, err := e.buildIndex()
	if err != nil {
		return nil, err
	}

	referenced := make(map[string]string) // worktree path -> bucket
	for _, entry := range idx.All() {
		file, err := loadTask(entry.Path)
		if err != nil {
			continue
		}
		if file.FrontMatter.Worktree != "" {
			referenced[filepath.Clean(file.FrontMatter.Worktree)] = entry.Bucket
		}
	}

	known, err := e.Worktree.KnownWorktrees()
	if err != nil {
		return nil, err
	}
	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[filepath.Clean(k)] = true
	}

	plan := &CleanPlan{}
	for k := range knownSet {
		if !e.Worktree.IsUnderWorktreesDir(k) {
			continue
		}
		if bucket, ok := referenced[k]; ok {
			if bucket == "DONE" {
				plan.Completed = append(plan.Completed, k)
			}
			continue
		}
		plan.Orphans = append(plan.Orphans, k)
	}

	dirs, err := e.Worktree.ListDirectories()
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		cd := filepath.Clean(d)
		if strings.Contains(cd, "..") || !e.Worktree.IsUnderWorktreesDir(cd) {
			continue
		}
		if !knownSet[cd] {
			plan.Stray = append(plan.Stray, cd)
		}
	}

	return plan, nil
}

// Clean executes plan: completed/orphan Git worktrees are removed through
// Git (worktree remove + branch delete), stray directories via a plain
// recursive delete (stray directories count as orphans and are only removed
// when includeOrphans is set). A worktree with uncommitted tracked changes is always
// skipped rather than erroring. Dirtiness is probed concurrently since each
// probe is an independent `git status` subprocess.
func (e *Engine) Clean(plan *CleanPlan, includeCompleted, includeOrphans bool) (*CleanReport, error) {
	report := &CleanReport{Errors: make(map[string]error)}

	var targets []string
	if includeCompleted {
		targets = append(targets, plan.Completed...)
	}
	if includeOrphans {
		targets = append(targets, plan.Orphans...)
	}

	dirty := make([]bool, len(targets))
	var g errgroup.Group
	for i, path := range targets {
		i, path := i, path
		g.Go(func() error {
			d, err := gitops.NewRepo(path).HasUncommittedTrackedChanges()
			if err != nil {
				dirty[i] = true // probe failure: treat as dirty, skip rather than risk data loss
				return nil
			}
			dirty[i] = d
			return nil
		})
	}
	_ = g.Wait()

	for i, path := range targets {
		if !e.Worktree.IsUnderWorktreesDir(path) || strings.Contains(path, "..") {
			report.Errors[path] = burlerr.Userf("refusing to remove path outside .worktrees/: %s", path)
			continue
		}
		if dirty[i] {
			report.Skipped = append(report.Skipped, path)
			continue
		}
		branch, err := gitops.NewRepo(path).CurrentBranch()
		if err != nil {
			report.Errors[path] = err
			continue
		}
		if err := e.Worktree.CleanupTaskWorktree(path, branch, false); err != nil {
			report.Errors[path] = err
			continue
		}
		report.Removed = append(report.Removed, path)
	}

	for _, path := range plan.Stray {
		if !includeOrphans {
			break
		}
		if !e.Worktree.IsUnderWorktreesDir(path) || strings.Contains(path, "..") {
			report.Errors[path] = burlerr.Userf("refusing to remove path outside .worktrees/: %s", path)
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			report.Errors[path] = burlerr.IO("removing stray worktree directory", err)
			continue
		}
		report.Removed = append(report.Removed, path)
	}

	e.appendEvent("clean", "", map[string]interface{}{
		"removed": report.Removed, "skipped": report.Skipped,
	})
	return report, nil
}

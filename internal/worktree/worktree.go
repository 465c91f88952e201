// Package worktree manages the per-task branch/worktree pairs under
// .worktrees/ (spec.md §4.9): one Git worktree and branch per in-flight
// task, isolated from the workflow worktree that tracks task-file state.
package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/gitops"
)

// Manager creates and tears down task worktrees against the base repo.
// Creation and removal are serialized with a single mutex: both mutate the
// shared .worktrees/ directory and the repo's worktree list, and Git's own
// worktree metadata is not safe for unsynchronized concurrent writers from
// one process.
type Manager struct {
	mu           sync.Mutex
	base         *gitops.Repo
	worktreesDir string
	mainBranch   string
	remote       string
}

// NewManager builds a Manager rooted at base, creating worktrees under
// worktreesDir and basing new task branches on remote/mainBranch.
func NewManager(base *gitops.Repo, worktreesDir, mainBranch, remote string) *Manager {
	return &Manager{base: base, worktreesDir: worktreesDir, mainBranch: mainBranch, remote: remote}
}

// TaskBranchName returns the per-task branch name for (id, slug): spec.md
// §4.9's `task-NNN-<slug>`.
func TaskBranchName(taskID, slug string) string {
	return strings.ToLower(taskID) + "-" + slug
}

// TaskWorktreePath returns the worktree directory for (id, slug).
func (m *Manager) TaskWorktreePath(taskID, slug string) string {
	return filepath.Join(m.worktreesDir, strings.ToLower(taskID)+"-"+slug)
}

// FetchMain fetches the main branch from the configured remote. Errors are
// returned to the caller to decide whether a stale local main is tolerable.
func (m *Manager) FetchMain() error {
	if err := m.base.Fetch(m.remote, m.mainBranch); err != nil {
		return burlerr.Git("fetching main branch", err)
	}
	return nil
}

// GetBaseSHA resolves the commit a new task branch should be based on:
// remote-tracking main if present, falling back to the local branch.
func (m *Manager) GetBaseSHA() (string, error) {
	remoteRef := m.remote + "/" + m.mainBranch
	if sha, err := m.base.HeadCommit(remoteRef); err == nil {
		return sha, nil
	}
	sha, err := m.base.HeadCommit(m.mainBranch)
	if err != nil {
		return "", burlerr.Git(fmt.Sprintf("resolving HEAD of %s", m.mainBranch), err)
	}
	return sha, nil
}

// Setup is the outcome of SetupTaskWorktree.
type Setup struct {
	Path    string
	Branch  string
	BaseSHA string
	Reused  bool
}

// SetupTaskWorktree implements spec.md §4.9's setup_task_worktree: fetch
// main, resolve a base SHA, then either reuse an existing, consistent
// branch+worktree pair or create a fresh one. existingBranch/existingPath
// come from a task file's recorded branch/worktree fields (empty for a
// first claim). A branch that exists without its worktree, or vice versa,
// is reported as a UserError rather than silently repaired — recovery goes
// through `burl doctor --repair`. If worktree creation fails after this
// call created the branch, the branch is rolled back.
func (m *Manager) SetupTaskWorktree(taskID, slug, existingBranch, existingPath string) (*Setup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Non-fatal per spec.md §4.9: local state may still be acceptable.
	_ = m.FetchMain()

	if existingBranch != "" {
		branchExists := m.base.BranchExists(existingBranch)
		pathExists := false
		if existingPath != "" {
			if _, err := os.Stat(existingPath); err == nil {
				pathExists = true
			}
		}
		switch {
		case branchExists && pathExists:
			wtRepo := gitops.NewRepo(existingPath)
			cur, err := wtRepo.CurrentBranch()
			if err != nil || cur != existingBranch {
				return nil, burlerr.Userf(
					"task worktree at %s is not on branch %s (repair with `burl doctor --repair`)",
					existingPath, existingBranch)
			}
			return &Setup{Path: existingPath, Branch: existingBranch, Reused: true}, nil
		case branchExists && !pathExists:
			return nil, burlerr.Userf(
				"branch %s exists but its worktree is missing (repair with `burl doctor --repair`)", existingBranch)
		case !branchExists && pathExists:
			return nil, burlerr.Userf(
				"worktree %s exists but branch %s is missing (repair with `burl doctor --repair`)",
				existingPath, existingBranch)
		}
		// Neither exists: fall through and create fresh, using the same
		// branch/path the task file already names.
	}

	branch := existingBranch
	if branch == "" {
		branch = TaskBranchName(taskID, slug)
	}
	path := existingPath
	if path == "" {
		path = m.TaskWorktreePath(taskID, slug)
	}

	baseSHA, err := m.GetBaseSHA()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, burlerr.IO("creating worktrees directory", err)
	}

	createdBranch := false
	if !m.base.BranchExists(branch) {
		if err := m.base.CreateBranch(branch, baseSHA); err != nil {
			return nil, burlerr.Git(fmt.Sprintf("creating branch %s", branch), err)
		}
		createdBranch = true
	}
	if err := m.base.CreateWorktree(path, branch); err != nil {
		if createdBranch {
			_ = m.base.DeleteBranch(branch)
		}
		return nil, burlerr.Git(fmt.Sprintf("creating worktree for %s", branch), err)
	}

	return &Setup{Path: path, Branch: branch, BaseSHA: baseSHA}, nil
}

// CleanupTaskWorktree removes a task's worktree and branch. A worktree with
// uncommitted tracked changes is left in place unless force is set, per
// spec.md §4.12's removal policy.
func (m *Manager) CleanupTaskWorktree(path, branch string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !force {
		wtRepo := gitops.NewRepo(path)
		dirty, err := wtRepo.HasUncommittedTrackedChanges()
		if err == nil && dirty {
			return burlerr.Userf("worktree %s has uncommitted tracked changes, skipping", path)
		}
	}

	if err := m.base.RemoveWorktree(path, force); err != nil {
		return burlerr.Git(fmt.Sprintf("removing worktree %s", path), err)
	}
	if err := m.base.DeleteBranch(branch); err != nil && !force {
		return burlerr.Git(fmt.Sprintf("deleting branch %s", branch), err)
	}
	_ = m.base.PruneWorktrees()
	return nil
}

// IsUnderWorktreesDir reports whether path lies inside the worktrees
// directory (at any depth) and contains no path-traversal component, the path
// safety check required by the cleaner (spec.md §4.12).
func (m *Manager) IsUnderWorktreesDir(path string) bool {
	if strings.Contains(path, "..") {
		return false
	}
	rel, err := filepath.Rel(m.worktreesDir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ListDirectories returns the immediate subdirectories of the worktrees
// directory, used by the cleaner to find candidates (both valid worktrees
// and orphan directories). A missing worktrees directory yields an empty
// list rather than an error.
func (m *Manager) ListDirectories() ([]string, error) {
	entries, err := os.ReadDir(m.worktreesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, burlerr.IO("listing worktrees directory", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(m.worktreesDir, e.Name()))
		}
	}
	return dirs, nil
}

// KnownWorktrees returns the paths Git currently tracks as worktrees of the
// base repo.
func (m *Manager) KnownWorktrees() ([]string, error) {
	paths, err := m.base.ListWorktrees()
	if err != nil {
		return nil, burlerr.Git("listing known worktrees", err)
	}
	return paths, nil
}

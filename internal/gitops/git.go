// Package gitops wraps git subprocess invocations for the transition
// engine: branch/worktree lifecycle, rebase/merge, and diff extraction.
package gitops

import (
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Retry constants for transient git errors (index/ref lock contention from
// concurrent burl invocations on the same repo).
const (
	retryInitialDelay = 200 * time.Millisecond
	retryMaxAttempts   = 6
	retryMultiplier    = 2
)

var transientPatterns = []string{
	"index file open failed",
	"index.lock",
	"cannot lock ref",
}

func isTransient(errMsg string) bool {
	for _, p := range transientPatterns {
		if strings.Contains(errMsg, p) {
			return true
		}
	}
	return false
}

// Repo wraps git operations rooted at a single working directory (a
// checkout or a worktree).
type Repo struct {
	Dir string
}

// NewRepo creates a Repo for the given directory.
func NewRepo(dir string) *Repo {
	return &Repo{Dir: dir}
}

// sleepFunc is a variable so tests can replace it to avoid real delays.
var sleepFunc = time.Sleep

// Run executes a git command in the repo directory, retrying transient
// failures (lock contention) with exponential backoff.
func (r *Repo) Run(args ...string) (string, error) {
	delay := retryInitialDelay
	for attempt := 0; attempt < retryMaxAttempts; attempt++ {
		cmd := exec.Command("git", args...)
		cmd.Dir = r.Dir
		out, err := cmd.CombinedOutput()
		if err == nil {
			return strings.TrimSpace(string(out)), nil
		}
		errMsg := strings.TrimSpace(string(out))
		if !isTransient(errMsg) || attempt == retryMaxAttempts-1 {
			return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), errMsg, err)
		}
		sleepFunc(delay)
		delay *= retryMultiplier
	}
	return "", nil // unreachable
}

// EnsureIdentity sets user.name/user.email locally if unresolvable, so
// commits made on the workflow worktree and task worktrees never fail with
// "Author identity unknown" in bare CI checkouts.
func (r *Repo) EnsureIdentity() {
	if _, err := r.Run("config", "user.name"); err != nil {
		_, _ = r.Run("config", "user.name", "burl")
	}
	if _, err := r.Run("config", "user.email"); err != nil {
		_, _ = r.Run("config", "user.email", "burl@localhost")
	}
}

// HeadCommit returns the commit hash at HEAD for a given ref.
func (r *Repo) HeadCommit(ref string) (string, error) {
	return r.Run("rev-parse", ref)
}

// BranchExists checks if a branch exists.
func (r *Repo) BranchExists(branch string) bool {
	_, err := r.Run("rev-parse", "--verify", "refs/heads/"+branch)
	return err == nil
}

// CreateBranch creates a new branch from a starting point.
func (r *Repo) CreateBranch(name, from string) error {
	_, err := r.Run("branch", name, from)
	return err
}

// DeleteBranch force-deletes a local branch.
func (r *Repo) DeleteBranch(name string) error {
	_, err := r.Run("branch", "-D", name)
	return err
}

// CreateWorktree creates a git worktree for a branch.
func (r *Repo) CreateWorktree(path, branch string) error {
	_, err := r.Run("worktree", "add", path, branch)
	return err
}

// RemoveWorktree removes a worktree. force bypasses the "has modifications"
// guard for tracked changes; it never removes a worktree directory whose
// contents are not known to git (callers must check that separately).
func (r *Repo) RemoveWorktree(path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := r.Run(args...)
	return err
}

// PruneWorktrees removes administrative files for worktrees whose
// filesystem directory is gone.
func (r *Repo) PruneWorktrees() error {
	_, err := r.Run("worktree", "prune")
	return err
}

// ListWorktrees returns the set of worktree paths git currently knows about.
func (r *Repo) ListWorktrees() ([]string, error) {
	out, err := r.Run("worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if p, ok := strings.CutPrefix(line, "worktree "); ok {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// CurrentBranch returns the branch checked out in this repo/worktree.
func (r *Repo) CurrentBranch() (string, error) {
	return r.Run("rev-parse", "--abbrev-ref", "HEAD")
}

// CommitsBetween returns commit hashes between two refs (exclusive of from,
// inclusive of to), oldest-last as produced by rev-list. If from is empty,
// returns all commits reachable from to.
func (r *Repo) CommitsBetween(from, to string) ([]string, error) {
	rangeSpec := to
	if from != "" {
		rangeSpec = from + ".." + to
	}
	out, err := r.Run("rev-list", rangeSpec)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// CountCommitsBetween reports len(CommitsBetween(from, to)) without
// allocating the full list.
func (r *Repo) CountCommitsBetween(from, to string) (int, error) {
	out, err := r.Run("rev-list", "--count", from+".."+to)
	if err != nil {
		return 0, err
	}
	var n int
	if _, err := fmt.Sscanf(out, "%d", &n); err != nil {
		return 0, fmt.Errorf("parsing rev-list --count output %q: %w", out, err)
	}
	return n, nil
}

// CommitMessage returns the full commit message for a given hash.
func (r *Repo) CommitMessage(hash string) (string, error) {
	return r.Run("log", "-1", "--format=%B", hash)
}

// HasUncommittedTrackedChanges reports whether the worktree has staged or
// unstaged changes to files git already tracks. Untracked files are
// ignored, matching spec.md's ensure_workflow_clean and cleanup guards.
func (r *Repo) HasUncommittedTrackedChanges() (bool, error) {
	out, err := r.Run("status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// StageAll stages all changes, including untracked files.
func (r *Repo) StageAll() error {
	_, err := r.Run("add", "-A")
	return err
}

// HasStagedChanges reports whether the index currently differs from HEAD.
func (r *Repo) HasStagedChanges() (bool, error) {
	out, err := r.Run("diff", "--cached", "--name-only")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Commit creates a commit with the given message. --no-verify skips
// pre-commit hooks: burl commits task-state mutations programmatically and
// there is no interactive agent available to fix a hook failure mid-flight.
func (r *Repo) Commit(message string) error {
	_, err := r.Run("commit", "--no-verify", "-m", message)
	return err
}

// Fetch fetches a single ref from a remote. Whether a failure is fatal is
// up to the caller: worktree setup ignores it, approve does not.
func (r *Repo) Fetch(remote, ref string) error {
	_, err := r.Run("fetch", remote, ref)
	return err
}

// Push pushes a local branch to a remote.
func (r *Repo) Push(remote, branch string) error {
	_, err := r.Run("push", remote, branch)
	return err
}

// RebaseAbort aborts an in-progress rebase, ignoring the error raised when
// none is in progress.
func (r *Repo) RebaseAbort() {
	_, _ = r.Run("rebase", "--abort")
}

// Rebase rebases the current branch onto targetBranch. On conflict it
// aborts the rebase and returns an error without mutating the branch
// further; callers decide how to recover (burl's approve internally
// rejects rather than resetting --hard, unlike simpler auto-regeneration
// pipelines).
func (r *Repo) Rebase(targetBranch string) error {
	r.RebaseAbort()
	_, err := r.Run("rebase", targetBranch)
	if err != nil {
		r.RebaseAbort()
		return fmt.Errorf("rebase conflict rebasing onto %s: %w", targetBranch, err)
	}
	return nil
}

// MergeFastForwardOnly merges branch into the current branch, refusing a
// non-fast-forward merge.
func (r *Repo) MergeFastForwardOnly(branch string) error {
	_, err := r.Run("merge", "--ff-only", branch)
	return err
}

// Checkout checks out a branch in this repo.
func (r *Repo) Checkout(branch string) error {
	_, err := r.Run("checkout", branch)
	return err
}

// IsAncestor reports whether ancestor is an ancestor of descendant.
func (r *Repo) IsAncestor(ancestor, descendant string) (bool, error) {
	cmd := exec.Command("git", "merge-base", "--is-ancestor", ancestor, descendant)
	cmd.Dir = r.Dir
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, err
}

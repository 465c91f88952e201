// Package burlctx implements burl's workflow context (spec.md §4.1): the
// single place every command resolves the repo root, the workflow
// worktree, the bucket/events/locks directories, and the loaded config.
package burlctx

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/config"
	"github.com/burl-dev/burl/internal/gitops"
)

// Context is the resolved tuple from spec.md §4.1.
type Context struct {
	RepoRoot         string
	WorkflowWorktree string
	WorkflowStateDir string
	EventsDir        string
	LocksDir         string
	WorktreesDir     string
	ConfigPath       string

	Config *config.Config
	Repo   *gitops.Repo // rooted at WorkflowWorktree, for workflow-branch operations
	Base   *gitops.Repo // rooted at RepoRoot, for main-branch and task-worktree operations
}

// BucketDir returns the absolute path of the named bucket directory.
func (c *Context) BucketDir(bucket string) string {
	return filepath.Join(c.WorkflowStateDir, bucket)
}

// Resolve walks up from startDir to find the enclosing Git repository, then
// locates and loads the burl workflow worktree under it. It fails with a
// UserError if startDir is outside a Git repo, or if the workflow worktree
// is missing or not checked out on the configured workflow branch.
func Resolve(startDir string) (*Context, error) {
	repoRoot, err := findRepoRoot(startDir)
	if err != nil {
		return nil, err
	}

	// The workflow worktree's own location is fixed at the conventional
	// path so it can be found before its config (which nominally carries
	// workflow_worktree) has been read. workflow_worktree in config.yaml
	// documents the convention; burl does not support relocating it.
	workflowWorktree := filepath.Join(repoRoot, ".burl")
	stateDir := filepath.Join(workflowWorktree, ".workflow")
	configPath := filepath.Join(stateDir, "config.yaml")

	if _, err := os.Stat(stateDir); err != nil {
		return nil, burlerr.User(
			"workflow not initialized: .burl/.workflow is missing (run `burl init`)", err)
	}

	cfg := config.Default()
	if data, err := os.ReadFile(configPath); err == nil {
		loaded, parseErr := config.Parse(data)
		if parseErr != nil {
			return nil, burlerr.Userf("parsing %s: %s", configPath, parseErr)
		}
		cfg = loaded
	} else if !os.IsNotExist(err) {
		return nil, burlerr.IO("reading workflow config", err)
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, burlerr.Userf("invalid %s: %s", configPath, errs[0])
	}

	workflowRepo := gitops.NewRepo(workflowWorktree)
	branch, err := workflowRepo.CurrentBranch()
	if err != nil {
		return nil, burlerr.User("workflow worktree is not a Git working tree", err)
	}
	if branch != cfg.WorkflowBranch {
		return nil, burlerr.Userf(
			"workflow worktree is on branch %q, expected %q", branch, cfg.WorkflowBranch)
	}

	baseRepo := gitops.NewRepo(repoRoot)

	return &Context{
		RepoRoot:         repoRoot,
		WorkflowWorktree: workflowWorktree,
		WorkflowStateDir: stateDir,
		EventsDir:        filepath.Join(stateDir, "events"),
		LocksDir:         filepath.Join(stateDir, "locks"),
		WorktreesDir:     filepath.Join(repoRoot, ".worktrees"),
		ConfigPath:       configPath,
		Config:           cfg,
		Repo:             workflowRepo,
		Base:             baseRepo,
	}, nil
}

// EnsureWorkflowClean fails with a GitError if the workflow worktree has
// staged or unstaged changes to tracked files. Untracked files (e.g. a
// half-written lock) are allowed, since locks/ is gitignored but still
// lives inside the worktree.
func (c *Context) EnsureWorkflowClean() error {
	dirty, err := c.Repo.HasUncommittedTrackedChanges()
	if err != nil {
		return burlerr.Git("checking workflow worktree status", err)
	}
	if dirty {
		return burlerr.Gitf("workflow worktree has uncommitted changes to tracked files")
	}
	return nil
}

func findRepoRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", burlerr.IO("resolving start directory", err)
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info != nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", burlerr.Userf("not inside a Git repository (started search at %s)", startDir)
		}
		dir = parent
	}
}

// RepoRelative returns path relative to the repo root, using forward
// slashes, for display and for front-matter fields like affects.
func (c *Context) RepoRelative(path string) string {
	rel, err := filepath.Rel(c.RepoRoot, path)
	if err != nil {
		return path
	}
	return strings.ReplaceAll(rel, string(filepath.Separator), "/")
}

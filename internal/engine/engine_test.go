package engine

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/burl-dev/burl/internal/burlctx"
	"github.com/burl-dev/burl/internal/task"
)

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return string(out)
}

// newTestEngine sets up a repo with a bare "origin" remote, an initial
// commit pushed to main, and an initialized burl workflow, returning a
// ready-to-use Engine rooted at the repo.
func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	tmp := t.TempDir()

	origin := filepath.Join(tmp, "origin.git")
	cmd := exec.Command("git", "init", "--bare", "-b", "main", origin)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git init --bare: %v\n%s", err, out)
	}

	root := filepath.Join(tmp, "repo")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}
	runGit(t, root, "init", "-q", "-b", "main")
	runGit(t, root, "remote", "add", "origin", origin)
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, root, "add", "README.md")
	runGit(t, root, "commit", "-q", "-m", "initial commit")
	runGit(t, root, "push", "-q", "-u", "origin", "main")

	runGit(t, root, "branch", "burl")
	workflowDir := filepath.Join(root, ".burl")
	runGit(t, root, "worktree", "add", "-q", workflowDir, "burl")

	stateDir := filepath.Join(workflowDir, ".workflow")
	for _, bucket := range task.Buckets {
		if err := os.MkdirAll(filepath.Join(stateDir, bucket), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte("workflow_branch: burl\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, workflowDir, "add", "-A")
	runGit(t, workflowDir, "commit", "-q", "-m", "init workflow state")

	ctx, err := burlctx.Resolve(root)
	if err != nil {
		t.Fatalf("burlctx.Resolve: %v", err)
	}
	// Tests opt into the legacy build_command fallback explicitly; leaving
	// the "cargo test" default in place would make every validate/approve
	// test in this package try to shell out to cargo.
	ctx.Config.BuildCommand = ""
	return New(ctx), root
}

// addReadyTask writes a new task file directly into READY, bypassing the
// CLI, and returns its ID.
func addReadyTask(t *testing.T, e *Engine, title string, fm task.FrontMatter) string {
	t.Helper()
	idx, err := e.buildIndex()
	if err != nil {
		t.Fatalf("buildIndex: %v", err)
	}
	id := idx.NextID()
	fm.ID = id
	fm.Title = title
	file := &task.File{FrontMatter: fm}
	path := filepath.Join(e.Ctx.BucketDir("READY"), task.Filename(id, title))
	if err := os.WriteFile(path, file.Serialize(), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, e.Ctx.WorkflowWorktree, "add", "-A")
	runGit(t, e.Ctx.WorkflowWorktree, "commit", "-q", "-m", "test: add "+id)
	return id
}

// commitFile writes a file and commits it inside worktreePath.
func commitFile(t *testing.T, worktreePath, relPath, content, message string) {
	t.Helper()
	full := filepath.Join(worktreePath, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, worktreePath, "add", "-A")
	runGit(t, worktreePath, "commit", "-q", "-m", message)
}

func loadTaskForTest(t *testing.T, e *Engine, id string) *task.File {
	t.Helper()
	idx, err := e.buildIndex()
	if err != nil {
		t.Fatalf("buildIndex: %v", err)
	}
	entry, ok := idx.Lookup(id)
	if !ok {
		t.Fatalf("task %s not found", id)
	}
	file, err := loadTask(entry.Path)
	if err != nil {
		t.Fatalf("loadTask: %v", err)
	}
	return file
}

func bucketOf(t *testing.T, e *Engine, id string) string {
	t.Helper()
	idx, err := e.buildIndex()
	if err != nil {
		t.Fatalf("buildIndex: %v", err)
	}
	entry, ok := idx.Lookup(id)
	if !ok {
		t.Fatalf("task %s not found", id)
	}
	return entry.Bucket
}

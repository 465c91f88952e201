package engine

import (
	"strings"
	"testing"

	"github.com/burl-dev/burl/internal/task"
)

func submitReadyTaskWithCommit(t *testing.T, e *Engine, title string, fm task.FrontMatter, relPath, content string) string {
	t.Helper()
	id := addReadyTask(t, e, title, fm)
	claimResult, err := e.Claim(id)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	commitFile(t, claimResult.WorktreePath, relPath, content, "implement "+id)
	if _, err := e.Submit(id); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return id
}

func TestValidatePassesAndAppendsReport(t *testing.T) {
	e, _ := newTestEngine(t)
	id := submitReadyTaskWithCommit(t, e, "add helper", task.FrontMatter{Affects: []string{"helper.go"}},
		"helper.go", "package helper\n\nfunc Helper() {}\n")

	result, err := e.Validate(id)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Passed {
		t.Errorf("expected validation to pass, report:\n%s", result.Report)
	}
	if got := bucketOf(t, e, id); got != "QA" {
		t.Errorf("bucket = %q, want QA (validate never moves the task)", got)
	}

	file := loadTaskForTest(t, e, id)
	if !strings.Contains(string(file.Body), "## QA Report") {
		t.Error("expected the task body to contain a QA Report section")
	}
}

func TestValidateRunsLegacyBuildCommandWhenNoProfileApplies(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Ctx.Config.BuildCommand = "true"
	id := submitReadyTaskWithCommit(t, e, "add helper", task.FrontMatter{Affects: []string{"helper.go"}},
		"helper.go", "package helper\n\nfunc Helper() {}\n")

	result, err := e.Validate(id)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Passed {
		t.Errorf("expected build_command fallback to pass, report:\n%s", result.Report)
	}
	if !strings.Contains(result.Report, "build: Pass") {
		t.Errorf("expected report to show the legacy build step ran, got:\n%s", result.Report)
	}
}

func TestValidateFailsWhenLegacyBuildCommandFails(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Ctx.Config.BuildCommand = "exit 1"
	id := submitReadyTaskWithCommit(t, e, "add helper", task.FrontMatter{Affects: []string{"helper.go"}},
		"helper.go", "package helper\n\nfunc Helper() {}\n")

	result, err := e.Validate(id)
	if err == nil {
		t.Fatal("expected Validate to return a validation error")
	}
	if result == nil || result.Passed {
		t.Fatalf("expected build_command fallback to fail, got result %+v", result)
	}
}

func TestValidateFailsOnStubMarkerAndStaysInQA(t *testing.T) {
	e, _ := newTestEngine(t)
	id := addReadyTask(t, e, "sneaky stub", task.FrontMatter{Affects: []string{"sneaky.go"}})
	claimResult, err := e.Claim(id)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	commitFile(t, claimResult.WorktreePath, "sneaky.go", "package sneaky\n\nfunc Do() {}\n", "add sneaky.go")
	if _, err := e.Submit(id); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Add a stub marker directly on the task branch after submit, so
	// validate (not submit) is what catches it.
	idxFile := loadTaskForTest(t, e, id)
	commitFile(t, idxFile.FrontMatter.Worktree, "sneaky.go",
		"package sneaky\n\nfunc Do() {\n\t// TODO: actually do it\n}\n", "sneak in a stub")

	result, err := e.Validate(id)
	if err == nil {
		t.Fatal("expected Validate to return a validation error")
	}
	if result == nil || result.Passed {
		t.Fatalf("expected a failing result, got %+v", result)
	}
	if got := bucketOf(t, e, id); got != "QA" {
		t.Errorf("bucket = %q, want QA (validate never moves the task even on failure)", got)
	}
}

package validate

import (
	"testing"

	"github.com/burl-dev/burl/internal/config"
)

func TestRunPipelinePassesWhenAllStepsSucceed(t *testing.T) {
	dir := t.TempDir()
	steps := []config.Step{{Name: "true", Command: "true"}}
	results, passed, err := RunPipeline(dir, steps, nil)
	if err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	if !passed || results[0].Status != StepPass {
		t.Fatalf("expected pass, got %+v", results)
	}
}

func TestRunPipelineFailsOnNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	steps := []config.Step{{Name: "fails", Command: "exit 1"}}
	results, passed, err := RunPipeline(dir, steps, nil)
	if err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	if passed || results[0].Status != StepFail {
		t.Fatalf("expected failure, got %+v", results)
	}
}

func TestRunPipelineSkipsUnmatchedGuard(t *testing.T) {
	dir := t.TempDir()
	steps := []config.Step{{Name: "rust-only", Command: "true", RunIfChangedExtensions: []string{"rs"}}}
	results, passed, err := RunPipeline(dir, steps, []string{"README.md"})
	if err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	if !passed || results[0].Status != StepSkip {
		t.Fatalf("expected skip, got %+v", results)
	}
}

func TestRunPipelineRunsWhenGuardMatchesExtension(t *testing.T) {
	dir := t.TempDir()
	steps := []config.Step{{Name: "rust-only", Command: "true", RunIfChangedExtensions: []string{"rs"}}}
	results, passed, err := RunPipeline(dir, steps, []string{"src/main.rs"})
	if err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	if !passed || results[0].Status != StepPass {
		t.Fatalf("expected pass, got %+v", results)
	}
}

func TestRunPipelineSkipOnlyRunStillPasses(t *testing.T) {
	dir := t.TempDir()
	steps := []config.Step{
		{Name: "a", Command: "true", RunIfChangedGlobs: []string{"*.rs"}},
		{Name: "b", Command: "true", RunIfChangedGlobs: []string{"*.py"}},
	}
	_, passed, err := RunPipeline(dir, steps, []string{"README.md"})
	if err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	if !passed {
		t.Fatal("a run with only Skip results should still pass")
	}
}

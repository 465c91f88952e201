package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/gitops"
	"github.com/burl-dev/burl/internal/task"
	"github.com/burl-dev/burl/internal/validate"
)

// ValidateResult is what the validate transition reports to the CLI.
type ValidateResult struct {
	TaskID string
	Passed bool
	Report string
}

// Validate implements spec.md §4.10.3: runs the full validation pipeline
// against base_sha..HEAD and appends a QA Report section to the task body.
// The task stays in QA regardless of outcome.
func (e *Engine) Validate(taskID string) (*ValidateResult, error) {
	idx, err := e.buildIndex()
	if err != nil {
		return nil, err
	}
	entry, err := e.resolveSingleBucketTarget(taskID, idx, "QA")
	if err != nil {
		return nil, err
	}

	var result *ValidateResult
	err = e.withTaskLock(entry.ID, "validate", func() error {
		file, err := loadTask(entry.Path)
		if err != nil {
			return err
		}
		if entry.Bucket != "QA" {
			return burlerr.Userf("%s is in %s, not QA", entry.ID, entry.Bucket)
		}
		fm := &file.FrontMatter
		if fm.Worktree == "" || fm.BaseSHA == "" {
			return burlerr.Userf("%s has no recorded worktree/base_sha (repair with `burl doctor --repair`)", entry.ID)
		}

		report, passed := e.runValidation(fm, fm.Worktree, fm.BaseSHA)
		file.AppendReportSection("## QA Report", report)

		return e.withWorkflowLock(func() error {
			if err := e.Ctx.EnsureWorkflowClean(); err != nil {
				return err
			}
			// Re-serializing and re-writing in place (no bucket move) still
			// goes through atomic_write so a crash mid-write never leaves a
			// half-written report visible.
			if err := writeInPlace(file, entry.Path); err != nil {
				return err
			}
			e.appendEvent("validate", entry.ID, map[string]interface{}{"passed": passed})
			if err := e.finalizeWorkflowCommit("burl: validate " + entry.ID); err != nil {
				return err
			}
			result = &ValidateResult{TaskID: entry.ID, Passed: passed, Report: report}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if !result.Passed {
		return result, burlerr.Validation(fmt.Sprintf("%s failed validation", entry.ID), nil)
	}
	return result, nil
}

// runValidation runs scope, stub, and pipeline-step checks against
// base..HEAD in worktreePath and renders a Markdown QA Report body.
func (e *Engine) runValidation(fm *task.FrontMatter, worktreePath, base string) (string, bool) {
	var b strings.Builder
	fmt.Fprintf(&b, "Timestamp: %s\n\n", time.Now().UTC().Format(time.RFC3339))

	overallPass := true

	if err := e.checkScopeAndStubs(fm, worktreePath, base); err != nil {
		overallPass = false
		fmt.Fprintf(&b, "- scope_and_stubs: FAIL (%s)\n", err)
	} else {
		b.WriteString("- scope_and_stubs: PASS\n")
	}

	steps, err := e.resolveProfile(fm)
	if err != nil {
		overallPass = false
		fmt.Fprintf(&b, "- pipeline: FAIL (%s)\n", err)
	} else if len(steps) > 0 {
		repo := gitops.NewRepo(worktreePath)
		changed, cfErr := gitops.ChangedFiles(repo, base)
		if cfErr != nil {
			overallPass = false
			fmt.Fprintf(&b, "- pipeline: FAIL (%s)\n", cfErr)
		} else {
			results, pipelinePassed, runErr := validate.RunPipeline(worktreePath, steps, changed)
			if runErr != nil {
				overallPass = false
				fmt.Fprintf(&b, "- pipeline: FAIL (%s)\n", runErr)
			} else {
				if !pipelinePassed {
					overallPass = false
				}
				for _, r := range results {
					fmt.Fprintf(&b, "- %s: %s\n", r.Name, r.Status)
				}
			}
		}
	}

	if overallPass {
		b.WriteString("\nOverall: PASS\n")
	} else {
		b.WriteString("\nOverall: FAIL\n")
	}
	return b.String(), overallPass
}

func writeInPlace(file *task.File, path string) error {
	return atomicWriteTaskFile(file, path)
}

package engine

import (
	"fmt"
	"time"

	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/config"
	"github.com/burl-dev/burl/internal/gitops"
	"github.com/burl-dev/burl/internal/task"
	"github.com/burl-dev/burl/internal/validate"
)

// ApproveResult is what the approve transition reports to the CLI.
type ApproveResult struct {
	TaskID string
}

// Approve implements spec.md §4.10.4's merge-strategy dispatch. On any
// failure along the way it performs an internal reject (moving the task
// back to READY or BLOCKED) and returns a GitError, so the caller exits 3.
// merge_strategy manual is the exception: it returns a UserError and leaves
// the task in QA.
func (e *Engine) Approve(taskID string) (*ApproveResult, error) {
	idx, err := e.buildIndex()
	if err != nil {
		return nil, err
	}
	entry, err := e.resolveSingleBucketTarget(taskID, idx, "QA")
	if err != nil {
		return nil, err
	}

	var result *ApproveResult
	err = e.withTaskLock(entry.ID, "approve", func() error {
		file, err := loadTask(entry.Path)
		if err != nil {
			return err
		}
		if entry.Bucket != "QA" {
			return burlerr.Userf("%s is in %s, not QA", entry.ID, entry.Bucket)
		}
		fm := &file.FrontMatter
		if fm.Worktree == "" || fm.Branch == "" {
			return burlerr.Userf("%s has no recorded worktree/branch (repair with `burl doctor --repair`)", entry.ID)
		}

		if e.Ctx.Config.MergeStrategy == config.MergeManual {
			return burlerr.Userf("merge_strategy manual is not implemented")
		}

		mergeBase, failErr := e.runMergeStrategy(file)
		if failErr != nil {
			return e.internalReject(file, entry, failErr.Error())
		}

		if e.Ctx.Config.PushMainOnApprove {
			if err := e.Base.Push(e.Ctx.Config.Remote, e.Ctx.Config.MainBranch); err != nil {
				return e.internalReject(file, entry, fmt.Sprintf("pushing %s failed: %s", e.Ctx.Config.MainBranch, err))
			}
		}

		// Best-effort cleanup: a worktree with uncommitted tracked changes
		// is left in place, which is not an error.
		_ = e.Worktree.CleanupTaskWorktree(fm.Worktree, fm.Branch, false)

		file.SetCompleted(time.Now().UTC())
		file.AppendReportSection("### Approved", fmt.Sprintf(
			"Timestamp: %s\nMerged into: %s\n", time.Now().UTC().Format(time.RFC3339), mergeBase))

		return e.withWorkflowLock(func() error {
			if err := e.Ctx.EnsureWorkflowClean(); err != nil {
				return err
			}
			if _, err := e.moveTask(file, entry.Path, "DONE"); err != nil {
				return err
			}
			e.appendEvent("approve", entry.ID, nil)
			if err := e.finalizeWorkflowCommit("burl: approve " + entry.ID); err != nil {
				return err
			}
			result = &ApproveResult{TaskID: entry.ID}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// runMergeStrategy runs the rebase/validate/merge sequence for the
// configured merge strategy, returning the branch merged into on success.
func (e *Engine) runMergeStrategy(file *task.File) (string, error) {
	fm := &file.FrontMatter
	remoteMain := e.Ctx.Config.Remote + "/" + e.Ctx.Config.MainBranch

	switch e.Ctx.Config.MergeStrategy {
	case config.MergeManual:
		return "", burlerr.Userf("merge_strategy manual is not implemented")
	case config.MergeFFOnly:
		if err := e.Base.Fetch(e.Ctx.Config.Remote, e.Ctx.Config.MainBranch); err != nil {
			return "", fmt.Errorf("fetching %s: %w", remoteMain, err)
		}
		taskRepo := gitops.NewRepo(fm.Worktree)
		ok, err := taskRepo.IsAncestor(remoteMain, fm.Branch)
		if err != nil {
			return "", fmt.Errorf("checking ancestry of %s: %w", remoteMain, err)
		}
		if !ok {
			return "", fmt.Errorf("%s does not descend from %s (ff_only requires a rebase first)", fm.Branch, remoteMain)
		}
	default: // rebase_ff_only
		if err := e.Base.Fetch(e.Ctx.Config.Remote, e.Ctx.Config.MainBranch); err != nil {
			return "", fmt.Errorf("fetching %s: %w", remoteMain, err)
		}
		taskRepo := gitops.NewRepo(fm.Worktree)
		if err := taskRepo.Rebase(remoteMain); err != nil {
			return "", err
		}
		if err := e.checkScopeAndStubs(fm, fm.Worktree, remoteMain); err != nil {
			return "", err
		}
		if steps, err := e.resolveProfile(fm); err == nil && len(steps) > 0 {
			changed, cfErr := gitops.ChangedFiles(taskRepo, remoteMain)
			if cfErr != nil {
				return "", cfErr
			}
			_, passed, runErr := validate.RunPipeline(fm.Worktree, steps, changed)
			if runErr != nil {
				return "", runErr
			}
			if !passed {
				return "", fmt.Errorf("validation pipeline failed against %s", remoteMain)
			}
		} else if err != nil {
			return "", err
		}
	}

	if err := e.Base.Checkout(e.Ctx.Config.MainBranch); err != nil {
		return "", fmt.Errorf("checking out %s: %w", e.Ctx.Config.MainBranch, err)
	}
	if err := e.Base.MergeFastForwardOnly(fm.Branch); err != nil {
		return "", fmt.Errorf("fast-forward merge of %s into %s failed: %w", fm.Branch, e.Ctx.Config.MainBranch, err)
	}
	return e.Ctx.Config.MainBranch, nil
}

// internalReject applies the shared rejection mutation and moves the task
// accordingly, per spec.md §4.10.4's "Internal reject", returning a
// GitError so the caller's exit code is 3 rather than submit/validate's 2.
func (e *Engine) internalReject(file *task.File, entry task.Entry, reason string) error {
	destination := e.applyRejection(file, reason, e.Actor, time.Now().UTC())
	file.FrontMatter.LastError = reason
	return e.withWorkflowLock(func() error {
		if err := e.Ctx.EnsureWorkflowClean(); err != nil {
			return err
		}
		if _, err := e.moveTask(file, entry.Path, destination); err != nil {
			return err
		}
		e.appendEvent("reject", entry.ID, map[string]interface{}{
			"reason": reason, "destination": destination, "qa_attempts": file.FrontMatter.QAAttempts,
		})
		if err := e.finalizeWorkflowCommit("burl: reject " + entry.ID); err != nil {
			return err
		}
		return burlerr.Git("approve failed", fmt.Errorf("%s", reason))
	})
}

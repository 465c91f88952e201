package engine

import (
	"time"

	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/gitops"
	"github.com/burl-dev/burl/internal/task"
)

// Submit implements spec.md §4.10.2. taskID may be empty when exactly one
// task is in DOING.
func (e *Engine) Submit(taskID string) (string, error) {
	idx, err := e.buildIndex()
	if err != nil {
		return "", err
	}
	entry, err := e.resolveSingleBucketTarget(taskID, idx, "DOING")
	if err != nil {
		return "", err
	}

	var resultID string
	err = e.withTaskLock(entry.ID, "submit", func() error {
		file, err := loadTask(entry.Path)
		if err != nil {
			return err
		}
		if entry.Bucket != "DOING" {
			return burlerr.Userf("%s is in %s, not DOING", entry.ID, entry.Bucket)
		}
		fm := &file.FrontMatter
		if fm.Worktree == "" || fm.BaseSHA == "" {
			return burlerr.Userf("%s has no recorded worktree/base_sha (repair with `burl doctor --repair`)", entry.ID)
		}

		repo := gitops.NewRepo(fm.Worktree)
		count, err := repo.CountCommitsBetween(fm.BaseSHA, "HEAD")
		if err != nil {
			return burlerr.Git("counting commits", err)
		}
		if count == 0 {
			return burlerr.Userf("%s has no commits since base_sha", entry.ID)
		}

		if err := e.checkScopeAndStubs(fm, fm.Worktree, fm.BaseSHA); err != nil {
			return err
		}

		if e.Ctx.Config.PushTaskBranchOnSubmit {
			if err := repo.Push(e.Ctx.Config.Remote, fm.Branch); err != nil {
				return burlerr.Git("pushing task branch", err)
			}
		}

		file.SetSubmitted(time.Now().UTC())

		return e.withWorkflowLock(func() error {
			if err := e.Ctx.EnsureWorkflowClean(); err != nil {
				return err
			}
			if _, err := e.moveTask(file, entry.Path, "QA"); err != nil {
				return err
			}
			e.appendEvent("submit", entry.ID, nil)
			if err := e.finalizeWorkflowCommit("burl: submit " + entry.ID); err != nil {
				return err
			}
			resultID = entry.ID
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return resultID, nil
}

// resolveSingleBucketTarget resolves taskID (normalizing and looking it up)
// or, if empty, requires exactly one task currently in bucket.
func (e *Engine) resolveSingleBucketTarget(taskID string, idx *task.Index, bucket string) (task.Entry, error) {
	if taskID != "" {
		norm, err := task.NormalizeID(taskID)
		if err != nil {
			return task.Entry{}, burlerr.User("invalid task ID", err)
		}
		entry, ok := idx.Lookup(norm)
		if !ok {
			return task.Entry{}, burlerr.Userf("task %s not found", norm)
		}
		return entry, nil
	}
	candidates := idx.TasksInBucket(bucket)
	if len(candidates) == 0 {
		return task.Entry{}, burlerr.Userf("no task in %s", bucket)
	}
	if len(candidates) > 1 {
		return task.Entry{}, burlerr.Userf("multiple tasks in %s; specify a task ID", bucket)
	}
	return candidates[0], nil
}

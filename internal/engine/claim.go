package engine

import (
	"sort"
	"time"

	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/task"
)

// ClaimResult is what Claim reports back to the CLI layer.
type ClaimResult struct {
	TaskID        string
	WorktreePath  string
	Branch        string
	Reused        bool
}

var priorityRank = map[task.Priority]int{
	task.PriorityHigh:   0,
	task.PriorityMedium: 1,
	task.PriorityLow:    2,
	task.PriorityOther:  3,
}

// Claim implements spec.md §4.10.1. taskID may be empty, in which case a
// candidate is selected from READY by priority rank then numeric ID among
// tasks whose dependencies are all satisfied.
func (e *Engine) Claim(taskID string) (*ClaimResult, error) {
	var result *ClaimResult
	err := e.withClaimLock(func() error {
		idx, err := e.buildIndex()
		if err != nil {
			return err
		}

		entry, err := e.resolveClaimTarget(taskID, idx)
		if err != nil {
			return err
		}

		return e.withTaskLock(entry.ID, "claim", func() error {
			file, err := loadTask(entry.Path)
			if err != nil {
				return err
			}
			if entry.Bucket != "READY" {
				return burlerr.Userf("%s is in %s, not READY", entry.ID, entry.Bucket)
			}
			if err := e.checkUnmetDependencies(&file.FrontMatter, idx); err != nil {
				return err
			}
			if err := e.checkConflicts(&file.FrontMatter, idx); err != nil {
				return err
			}

			setup, err := e.Worktree.SetupTaskWorktree(
				entry.ID, task.Slugify(file.FrontMatter.Title),
				file.FrontMatter.Branch, file.FrontMatter.Worktree)
			if err != nil {
				return err
			}

			baseSHA := setup.BaseSHA
			if setup.Reused && file.FrontMatter.BaseSHA != "" {
				baseSHA = file.FrontMatter.BaseSHA
			}
			file.SetAssigned(e.Actor, setup.Path, setup.Branch, baseSHA, time.Now().UTC())

			return e.withWorkflowLock(func() error {
				if err := e.Ctx.EnsureWorkflowClean(); err != nil {
					return err
				}
				if _, err := e.moveTask(file, entry.Path, "DOING"); err != nil {
					return err
				}
				e.appendEvent("claim", entry.ID, map[string]interface{}{
					"branch": setup.Branch, "worktree": setup.Path, "reused": setup.Reused,
				})
				if err := e.finalizeWorkflowCommit("burl: claim " + entry.ID); err != nil {
					return err
				}
				result = &ClaimResult{
					TaskID: entry.ID, WorktreePath: setup.Path, Branch: setup.Branch, Reused: setup.Reused,
				}
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) resolveClaimTarget(taskID string, idx *task.Index) (task.Entry, error) {
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

	candidates := idx.TasksInBucket("READY")
	var eligible []task.Entry
	var eligibleFM []task.FrontMatter
	for _, entry := range candidates {
		file, err := loadTask(entry.Path)
		if err != nil {
			continue
		}
		if e.checkUnmetDependencies(&file.FrontMatter, idx) != nil {
			continue
		}
		eligible = append(eligible, entry)
		eligibleFM = append(eligibleFM, file.FrontMatter)
	}
	if len(eligible) == 0 {
		return task.Entry{}, burlerr.Userf("no READY task has all dependencies satisfied")
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		ri, rj := priorityRank[eligibleFM[i].EffectivePriority()], priorityRank[eligibleFM[j].EffectivePriority()]
		if ri != rj {
			return ri < rj
		}
		return eligible[i].Number < eligible[j].Number
	})
	return eligible[0], nil
}

// checkUnmetDependencies returns a UserError if any of fm's depends_on
// tasks is not in DONE.
func (e *Engine) checkUnmetDependencies(fm *task.FrontMatter, idx *task.Index) error {
	for _, dep := range fm.DependsOn {
		norm, err := task.NormalizeID(dep)
		if err != nil {
			return burlerr.Userf("invalid depends_on entry %q: %s", dep, err)
		}
		entry, ok := idx.Lookup(norm)
		if !ok || entry.Bucket != "DONE" {
			return burlerr.Userf("unmet dependency %s", norm)
		}
	}
	return nil
}

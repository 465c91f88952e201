package engine

import (
	"fmt"
	"os"

	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/config"
	"github.com/burl-dev/burl/internal/gitops"
	"github.com/burl-dev/burl/internal/task"
	"github.com/burl-dev/burl/internal/validate"
)

// checkConflicts runs claim's scope-conflict detection (spec.md §4.11)
// against every DOING task, honoring the configured detection mode and
// policy.
func (e *Engine) checkConflicts(candidate *task.FrontMatter, idx *task.Index) error {
	if e.Ctx.Config.ConflictPolicy == config.ConflictIgnore {
		return nil
	}

	for _, entry := range idx.TasksInBucket("DOING") {
		other, err := loadTask(entry.Path)
		if err != nil {
			continue // unreadable DOING task can't be compared; doctor territory
		}
		overlap, err := e.scopesOverlap(candidate, &other.FrontMatter, entry)
		if err != nil {
			return err
		}
		if !overlap {
			continue
		}

		msg := fmt.Sprintf("scope conflict with %s (DOING)", entry.ID)
		switch e.Ctx.Config.ConflictPolicy {
		case config.ConflictWarn:
			fmt.Fprintln(os.Stderr, "warning: "+msg)
		default:
			return burlerr.Userf("%s", msg)
		}
	}
	return nil
}

func (e *Engine) scopesOverlap(candidate, other *task.FrontMatter, otherEntry task.Entry) (bool, error) {
	switch e.Ctx.Config.ConflictDetection {
	case config.ConflictDiff:
		return e.diffOverlap(candidate, other)
	case config.ConflictHybrid:
		changed, err := e.doingChangedFiles(other)
		if err == nil && len(changed) > 0 {
			return validate.AnyFileInScope(candidate.Affects, candidate.AffectsGlobs, changed)
		}
		return validate.ScopesOverlap(candidate.Affects, candidate.AffectsGlobs, other.Affects, other.AffectsGlobs)
	default:
		return validate.ScopesOverlap(candidate.Affects, candidate.AffectsGlobs, other.Affects, other.AffectsGlobs)
	}
}

func (e *Engine) diffOverlap(candidate, other *task.FrontMatter) (bool, error) {
	changed, err := e.doingChangedFiles(other)
	if err != nil {
		return false, nil // no diff available; treat as no overlap rather than failing claim
	}
	return validate.AnyFileInScope(candidate.Affects, candidate.AffectsGlobs, changed)
}

func (e *Engine) doingChangedFiles(other *task.FrontMatter) ([]string, error) {
	if other.Worktree == "" || other.BaseSHA == "" {
		return nil, fmt.Errorf("no worktree/base_sha recorded")
	}
	repo := gitops.NewRepo(other.Worktree)
	return gitops.ChangedFiles(repo, other.BaseSHA)
}

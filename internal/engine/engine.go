// Package engine implements burl's transition engine (spec.md §4.10): the
// claim, submit, validate, approve, reject, and clean operations that move
// a task between buckets under lock, each as a single recoverable step.
package engine

import (
	"fmt"
	"os"
	"os/user"

	"github.com/burl-dev/burl/internal/burlctx"
	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/event"
	"github.com/burl-dev/burl/internal/lock"
	"github.com/burl-dev/burl/internal/task"
	"github.com/burl-dev/burl/internal/worktree"
)

// Engine holds everything a transition needs beyond the resolved context:
// the identity to record as actor/owner, and the worktree manager built
// from the context's config.
type Engine struct {
	Ctx      *burlctx.Context
	Actor    string
	Worktree *worktree.Manager
}

// New builds an Engine for ctx, resolving the local actor identity the way
// claim/submit/approve/reject record it in front matter and events.
func New(ctx *burlctx.Context) *Engine {
	return &Engine{
		Ctx:      ctx,
		Actor:    resolveActor(),
		Worktree: worktree.NewManager(ctx.Base, ctx.WorktreesDir, ctx.Config.MainBranch, ctx.Config.Remote),
	}
}

func resolveActor() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	u, err := user.Current()
	name := "unknown"
	if err == nil && u.Username != "" {
		name = u.Username
	}
	return fmt.Sprintf("%s@%s", name, host)
}

// buildIndex builds the task index from the workflow's bucket directory.
func (e *Engine) buildIndex() (*task.Index, error) {
	return task.BuildIndex(e.Ctx.WorkflowStateDir)
}

// loadTask reads and parses the task file at path.
func loadTask(path string) (*task.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, burlerr.IO("reading task file", err)
	}
	return task.ParseFile(data)
}

// withTaskLock runs fn while holding the per-task lock, releasing it (best
// effort) afterward regardless of outcome.
func (e *Engine) withTaskLock(taskID, action string, fn func() error) error {
	guard, err := lock.Acquire(e.Ctx.LocksDir, lock.TaskLockName(taskID), e.Actor, action)
	if err != nil {
		return err
	}
	defer guard.Release()
	return fn()
}

// withClaimLock runs fn while holding the global claim lock, when
// configured; otherwise it runs fn directly.
func (e *Engine) withClaimLock(fn func() error) error {
	if !e.Ctx.Config.UseGlobalClaimLock {
		return fn()
	}
	guard, err := lock.Acquire(e.Ctx.LocksDir, lock.Claim, e.Actor, "claim")
	if err != nil {
		return err
	}
	defer guard.Release()
	return fn()
}

// withWorkflowLock runs fn while holding the workflow lock.
func (e *Engine) withWorkflowLock(fn func() error) error {
	guard, err := lock.Acquire(e.Ctx.LocksDir, lock.Workflow, e.Actor, "transition")
	if err != nil {
		return err
	}
	defer guard.Release()
	return fn()
}

// finalizeWorkflowCommit stages and, if anything changed, commits the
// workflow worktree, then optionally pushes it — steps 11/12 of §4.10's
// transition shape. It must run while the workflow lock is held.
func (e *Engine) finalizeWorkflowCommit(message string) error {
	if !e.Ctx.Config.WorkflowAutoCommit {
		return nil
	}
	if err := e.Ctx.Repo.StageAll(); err != nil {
		return burlerr.Git("staging workflow worktree", err)
	}
	staged, err := e.Ctx.Repo.HasStagedChanges()
	if err != nil {
		return burlerr.Git("checking workflow worktree staged changes", err)
	}
	if !staged {
		return nil
	}
	if err := e.Ctx.Repo.Commit(message); err != nil {
		return burlerr.Git("committing workflow worktree", err)
	}
	if e.Ctx.Config.WorkflowAutoPush {
		if err := e.Ctx.Repo.Push(e.Ctx.Config.Remote, e.Ctx.Config.WorkflowBranch); err != nil {
			return burlerr.Git("pushing workflow branch", err)
		}
	}
	return nil
}

// appendEvent appends one event, never failing a transition over a logging
// error — the bucket move already committed by the time events are
// appended in every transition below.
func (e *Engine) appendEvent(action, taskID string, details map[string]interface{}) {
	_ = event.Append(e.Ctx.EventsDir, event.Event{
		Action: action, TaskID: taskID, Actor: e.Actor, Details: details,
	})
}

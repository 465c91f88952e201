package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/task"
)

// Reject implements spec.md §4.10.5: a human-initiated rejection with a
// required, non-empty reason.
func (e *Engine) Reject(taskID, reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", burlerr.Userf("reject requires a non-empty reason")
	}

	idx, err := e.buildIndex()
	if err != nil {
		return "", err
	}
	entry, err := e.resolveSingleBucketTarget(taskID, idx, "QA")
	if err != nil {
		return "", err
	}

	var destination string
	err = e.withTaskLock(entry.ID, "reject", func() error {
		file, err := loadTask(entry.Path)
		if err != nil {
			return err
		}
		if entry.Bucket != "QA" {
			return burlerr.Userf("%s is in %s, not QA", entry.ID, entry.Bucket)
		}
		destination = e.applyRejection(file, reason, e.Actor, time.Now().UTC())

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
			return e.finalizeWorkflowCommit("burl: reject " + entry.ID)
		})
	})
	if err != nil {
		return "", err
	}
	return destination, nil
}

// applyRejection performs the shared mutation both a human reject and
// approve's internal-reject path need, returning the destination bucket.
func (e *Engine) applyRejection(file *task.File, reason, actor string, at time.Time) string {
	fm := &file.FrontMatter
	fm.IncrementQAAttempts()
	file.AppendReportSection("### Rejection:", fmt.Sprintf(
		"Timestamp: %s\nActor: %s\nAttempt: %d\nReason: %s\n",
		at.Format(time.RFC3339), actor, fm.QAAttempts, reason))
	fm.SubmittedAt = nil
	rejectedAt := at
	fm.RejectedAt = &rejectedAt

	if fm.QAAttempts >= e.Ctx.Config.QAMaxAttempts {
		return "BLOCKED"
	}
	if e.Ctx.Config.AutoPriorityBoostOnRetry && fm.EffectivePriority() != task.PriorityHigh {
		fm.Priority = task.PriorityHigh
	}
	return "READY"
}

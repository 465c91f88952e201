package task

import (
	"strings"
	"time"
)

// SetAssigned records a claim: assigned_to, started_at, worktree, branch
// and base_sha per spec.md §4.11's claim transaction. rejected_at is
// cleared, since a reclaim starts a fresh attempt.
func (f *File) SetAssigned(owner, worktree, branch, baseSHA string, at time.Time) {
	f.FrontMatter.AssignedTo = owner
	started := at.UTC()
	f.FrontMatter.StartedAt = &started
	f.FrontMatter.Worktree = worktree
	f.FrontMatter.Branch = branch
	f.FrontMatter.BaseSHA = baseSHA
	f.FrontMatter.RejectedAt = nil
}

// SetGitInfo updates the branch/base_sha pair without touching assignment.
func (f *File) SetGitInfo(branch, baseSHA string) {
	f.FrontMatter.Branch = branch
	f.FrontMatter.BaseSHA = baseSHA
}

// SetSubmitted records submitted_at for the submit transaction.
func (f *File) SetSubmitted(at time.Time) {
	submitted := at.UTC()
	f.FrontMatter.SubmittedAt = &submitted
}

// SetCompleted records completed_at for the approve transaction and clears
// any leftover rejection error, since an approved task is no longer
// carrying forward a failure state.
func (f *File) SetCompleted(at time.Time) {
	completed := at.UTC()
	f.FrontMatter.CompletedAt = &completed
	f.FrontMatter.LastError = ""
}

// IncrementQAAttempts bumps qa_attempts by one, the reject transaction's
// required side effect per spec.md's P9 property.
func (f *File) IncrementQAAttempts() {
	f.FrontMatter.QAAttempts++
}

// AppendReportSection appends content under heading in the task body, the
// mechanism validate/approve/reject use to record a `## QA Report` entry
// (spec.md §4.3) or a `### Rejection:`/`### Approved` block (§4.10) without
// disturbing the front matter's own fields. If heading already occurs in the
// body, content is inserted at the end of that section (just before the
// next `## ` heading, or at the end of the body if there isn't one) rather
// than duplicating the heading; otherwise a new section is created at the
// end of the body.
func (f *File) AppendReportSection(heading, content string) {
	body := string(f.Body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}

	pos := strings.Index(body, heading)
	if pos < 0 {
		body += "\n" + heading + "\n" + content
		if !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		f.Body = []byte(body)
		return
	}

	afterHeading := pos + len(heading)
	sectionEnd := len(body)
	if rel := strings.Index(body[afterHeading:], "\n## "); rel >= 0 {
		sectionEnd = afterHeading + rel
	}
	prefix := ""
	if sectionEnd > 0 && !strings.HasSuffix(body[:sectionEnd], "\n") {
		prefix = "\n"
	}
	insertion := prefix + content
	if !strings.HasSuffix(insertion, "\n") {
		insertion += "\n"
	}
	f.Body = []byte(body[:sectionEnd] + insertion + body[sectionEnd:])
}

// ClearAssigned returns a task to READY: assignment, timing and git fields
// set by a claim are removed, but qa_attempts and last_error survive so the
// next worker can see why the previous attempt failed.
func (f *File) ClearAssigned() {
	f.FrontMatter.AssignedTo = ""
	f.FrontMatter.StartedAt = nil
	f.FrontMatter.SubmittedAt = nil
	f.FrontMatter.Worktree = ""
	f.FrontMatter.Branch = ""
	f.FrontMatter.BaseSHA = ""
}

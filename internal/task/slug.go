package task

import (
	"regexp"
	"strings"
)

const maxSlugLength = 60

var nonSlugChar = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a task filename slug from a title: lowercase ASCII,
// non-alphanumeric runs collapsed to a single hyphen, trimmed, and bounded
// in length, per spec.md §6's file-naming rule.
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = nonSlugChar.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLength {
		s = s[:maxSlugLength]
		s = strings.TrimRight(s, "-")
	}
	if s == "" {
		s = "task"
	}
	return s
}

// Filename returns the canonical TASK-NNN-<slug>.md filename for id/title.
func Filename(id, title string) string {
	return id + "-" + Slugify(title) + ".md"
}

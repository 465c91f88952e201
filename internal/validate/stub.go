package validate

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/gitops"
)

// StubViolation is one added line matching a stub pattern.
type StubViolation struct {
	File           string
	Line           int
	Content        string
	MatchedPattern string
}

// StubResult is the outcome of CheckStubs.
type StubResult struct {
	Passed     bool
	Violations []StubViolation
}

// CheckStubs scans addedLines for stub markers. Only files whose extension
// (without a leading dot) is in checkExtensions are scanned. Invalid regex
// patterns are a user/config error, not a validation failure.
func CheckStubs(addedLines []gitops.AddedLine, patterns, checkExtensions []string) (*StubResult, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, burlerr.Userf("invalid stub pattern %q: %s", p, err)
		}
		compiled = append(compiled, re)
	}

	extSet := make(map[string]bool, len(checkExtensions))
	for _, e := range checkExtensions {
		extSet[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}

	var violations []StubViolation
	for _, line := range addedLines {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(line.File), "."))
		if !extSet[ext] {
			continue
		}
		for i, re := range compiled {
			if re.MatchString(line.Content) {
				violations = append(violations, StubViolation{
					File: line.File, Line: line.Line, Content: line.Content,
					MatchedPattern: patterns[i],
				})
				break
			}
		}
	}

	if len(violations) == 0 {
		return &StubResult{Passed: true}, nil
	}
	return &StubResult{Passed: false, Violations: violations}, nil
}

// FormatError renders a stub failure the way the transition engine prints
// it to stderr.
func (r *StubResult) FormatError() string {
	if r.Passed {
		return ""
	}
	var b strings.Builder
	b.WriteString("Stub patterns found in added lines\n\n")
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "%s:%d  + %s\n", v.File, v.Line, strings.TrimSpace(v.Content))
	}
	return b.String()
}

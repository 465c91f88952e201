// Package validate implements burl's scope, stub, and pipeline validators
// (spec.md §4.6), run in that order by the transition engine for submit,
// validate, and approve.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/burl-dev/burl/internal/burlerr"
)

// ScopeViolationType distinguishes a forbidden-path hit from an
// out-of-scope miss.
type ScopeViolationType int

const (
	Forbidden ScopeViolationType = iota
	OutOfScope
)

func (t ScopeViolationType) String() string {
	if t == Forbidden {
		return "Forbidden"
	}
	return "OutOfScope"
}

// ScopeViolation is one file that failed scope validation.
type ScopeViolation struct {
	FilePath       string
	Type           ScopeViolationType
	MatchedPattern string // set for Forbidden only
}

// ScopeResult is the outcome of CheckScope.
type ScopeResult struct {
	Passed     bool
	Violations []ScopeViolation
}

// ScopeInput carries the front-matter fields CheckScope needs, so the
// validator package has no dependency on the task package.
type ScopeInput struct {
	Affects      []string
	AffectsGlobs []string
	MustNotTouch []string
}

// CheckScope validates changedFiles against a task's declared scope
// (spec.md's rules S1/S2). An empty changedFiles list passes trivially.
// Invalid glob patterns are a user/config error, not a validation failure.
func CheckScope(input ScopeInput, changedFiles []string) (*ScopeResult, error) {
	if len(changedFiles) == 0 {
		return &ScopeResult{Passed: true}, nil
	}

	forbidden, err := compileGlobs(input.MustNotTouch, "must_not_touch")
	if err != nil {
		return nil, err
	}
	allowed, err := compileGlobs(input.AffectsGlobs, "affects_globs")
	if err != nil {
		return nil, err
	}

	allowedPaths := make(map[string]bool, len(input.Affects))
	for _, p := range input.Affects {
		allowedPaths[normalizePath(p)] = true
	}

	var violations []ScopeViolation
	for _, file := range changedFiles {
		f := normalizePath(file)

		if pattern, ok := forbidden.firstMatch(f); ok {
			violations = append(violations, ScopeViolation{FilePath: f, Type: Forbidden, MatchedPattern: pattern})
			continue
		}

		if allowedPaths[f] || allowed.matches(f) || underAllowedDirectory(f, allowedPaths) {
			continue
		}
		violations = append(violations, ScopeViolation{FilePath: f, Type: OutOfScope})
	}

	if len(violations) == 0 {
		return &ScopeResult{Passed: true}, nil
	}
	return &ScopeResult{Passed: false, Violations: violations}, nil
}

// FormatError renders a scope failure the way the transition engine prints
// it to stderr.
func (r *ScopeResult) FormatError(taskID string) string {
	if r.Passed {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Scope violation\n\n%s touched files outside allowed scope:\n", taskID)
	for _, v := range r.Violations {
		if v.Type == Forbidden {
			fmt.Fprintf(&b, "  x %s  (matches must_not_touch: %s)\n", v.FilePath, v.MatchedPattern)
		} else {
			fmt.Fprintf(&b, "  x %s  (not in affects/affects_globs)\n", v.FilePath)
		}
	}
	b.WriteString("\nFix: revert these changes or widen scope in the task file.")
	return b.String()
}

// AnyFileInScope reports whether any of files falls within the scope
// declared by affects/affectsGlobs, the check claim's diff/hybrid conflict
// detection modes use against another task's already-changed files.
func AnyFileInScope(affects, affectsGlobs []string, files []string) (bool, error) {
	allowedPaths := make(map[string]bool, len(affects))
	for _, p := range affects {
		allowedPaths[normalizePath(p)] = true
	}
	globs, err := compileGlobs(affectsGlobs, "affects_globs")
	if err != nil {
		return false, err
	}
	for _, f := range files {
		nf := normalizePath(f)
		if allowedPaths[nf] || globs.matches(nf) || underAllowedDirectory(nf, allowedPaths) {
			return true, nil
		}
	}
	return false, nil
}

// ScopesOverlap reports whether two declared scopes overlap per spec.md
// §4.11: a shared affects path, a shared glob pattern, an affects path
// matched by the other's affects_globs, or a prefix-directory relationship
// between the globs' base directories.
func ScopesOverlap(aAffects, aGlobs, bAffects, bGlobs []string) (bool, error) {
	aPaths := normalizeAll(aAffects)
	bPaths := normalizeAll(bAffects)
	for _, p := range aPaths {
		for _, q := range bPaths {
			if p == q {
				return true, nil
			}
		}
	}
	for _, g := range aGlobs {
		for _, h := range bGlobs {
			if normalizePath(g) == normalizePath(h) {
				return true, nil
			}
		}
	}

	if ok, err := AnyFileInScope(nil, aGlobs, bPaths); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	if ok, err := AnyFileInScope(nil, bGlobs, aPaths); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}

	return globBaseDirsOverlap(aGlobs, bGlobs), nil
}

func normalizeAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = normalizePath(p)
	}
	return out
}

func globBaseDirsOverlap(a, b []string) bool {
	for _, x := range globBaseDirs(a) {
		for _, y := range globBaseDirs(b) {
			if x == y || strings.HasPrefix(x, y) || strings.HasPrefix(y, x) {
				return true
			}
		}
	}
	return false
}

// globBaseDirs returns the literal directory prefix of each glob pattern
// (the portion before the first wildcard character), used to detect two
// globs that are rooted in the same or nested directories.
func globBaseDirs(globs []string) []string {
	var out []string
	for _, g := range globs {
		g = normalizePath(g)
		idx := strings.IndexAny(g, "*?[")
		base := g
		if idx >= 0 {
			base = g[:idx]
		}
		if slash := strings.LastIndex(base, "/"); slash >= 0 {
			base = base[:slash+1]
		} else {
			base = ""
		}
		out = append(out, base)
	}
	return out
}

func underAllowedDirectory(file string, allowedPaths map[string]bool) bool {
	for allowed := range allowedPaths {
		prefix := allowed
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		if strings.HasPrefix(file, prefix) {
			return true
		}
	}
	return false
}

func normalizePath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// globSet is a compiled set of glob patterns. Patterns use the same
// non-literal-separator semantics as the rest of burl's scope rules: "*"
// and "**" both match across "/" boundaries. A stdlib-only implementation
// is used here rather than a gitignore-style matcher because gitignore
// semantics treat "/" as a hard boundary for a bare "*", which would
// silently diverge from the scope rules' documented behavior (an
// affects_globs entry like "src/*.rs" is expected to also match
// "src/player/jump.rs").
type globSet struct {
	patterns []string
	regexes  []*regexp.Regexp
}

func compileGlobs(patterns []string, fieldName string) (*globSet, error) {
	gs := &globSet{}
	for _, p := range patterns {
		norm := normalizePath(p)
		re, err := globToRegexp(norm)
		if err != nil {
			return nil, burlerr.Userf("invalid glob pattern in %s: %q - %s", fieldName, p, err)
		}
		gs.patterns = append(gs.patterns, norm)
		gs.regexes = append(gs.regexes, re)
	}
	return gs, nil
}

func (gs *globSet) matches(file string) bool {
	_, ok := gs.firstMatch(file)
	return ok
}

func (gs *globSet) firstMatch(file string) (string, bool) {
	for i, re := range gs.regexes {
		if re.MatchString(file) {
			return gs.patterns[i], true
		}
	}
	return "", false
}

// globToRegexp translates a shell-style glob into an anchored regexp. "*"
// and "**" are equivalent (both match zero or more of any character,
// including "/"); "?" matches exactly one character; "[...]" is a
// character class ("[!...]" negates it). A "[" with no closing "]" is an
// error.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			for i+1 < len(pattern) && pattern[i+1] == '*' {
				i++
			}
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unclosed '['")
			}
			class := pattern[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		case '.', '+', '(', ')', '|', '^', '$', ']', '{', '}', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}

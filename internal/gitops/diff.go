package gitops

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// AddedLine is a single '+' hunk line from a diff, with its line number in
// the new version of the file.
type AddedLine struct {
	File    string
	Line    int
	Content string
}

// ChangedFiles returns the files changed between base and HEAD, normalized
// to forward slashes, deduped, in the order git reports them (already
// path-sorted).
func ChangedFiles(repo *Repo, base string) ([]string, error) {
	out, err := repo.Run("diff", "--name-only", base+"..HEAD")
	if err != nil {
		return nil, fmt.Errorf("listing changed files since %s: %w", base, err)
	}
	if out == "" {
		return nil, nil
	}
	seen := make(map[string]bool)
	var files []string
	for _, line := range strings.Split(out, "\n") {
		f := strings.ReplaceAll(strings.TrimSpace(line), "\\", "/")
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		files = append(files, f)
	}
	return files, nil
}

// AddedLines returns every added line between base and HEAD, with its
// content and 1-based line number in the new file. Deletions, context
// lines, and binary files are skipped.
func AddedLines(repo *Repo, base string) ([]AddedLine, error) {
	out, err := repo.Run("diff", "--unified=0", base+"..HEAD")
	if err != nil {
		return nil, fmt.Errorf("diffing since %s: %w", base, err)
	}
	return parseUnifiedAddedLines(out)
}

var hunkHeaderPrefix = "@@ -"

func parseUnifiedAddedLines(diff string) ([]AddedLine, error) {
	var result []AddedLine
	var currentFile string
	var newLine int
	binary := false

	scanner := bufio.NewScanner(strings.NewReader(diff))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "diff --git "):
			currentFile = ""
			binary = false
			continue
		case strings.HasPrefix(line, "Binary files "):
			binary = true
			continue
		case strings.HasPrefix(line, "--- "):
			continue // old-file header; carries no information we need
		case strings.HasPrefix(line, "+++ "):
			currentFile = parseDiffGitPath(line)
			continue
		case strings.HasPrefix(line, hunkHeaderPrefix):
			n, err := parseHunkNewStart(line)
			if err != nil {
				return nil, err
			}
			newLine = n
			continue
		}

		if binary || currentFile == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "+"):
			result = append(result, AddedLine{
				File:    currentFile,
				Line:    newLine,
				Content: line[1:],
			})
			newLine++
		case strings.HasPrefix(line, "-"):
			// deletion: does not advance the new-file line cursor
		default:
			// "\ No newline at end of file" or other diff metadata
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning diff: %w", err)
	}
	return result, nil
}

// parseDiffGitPath extracts the path from a "+++ b/path/to/file" line,
// stripping the a/ b/ prefix git diff uses, or returns "" for /dev/null
// (deleted files, which contribute no added lines).
func parseDiffGitPath(line string) string {
	path := strings.TrimPrefix(line, "+++ ")
	if path == "/dev/null" {
		return ""
	}
	if p, ok := strings.CutPrefix(path, "b/"); ok {
		path = p
	}
	return strings.ReplaceAll(path, "\\", "/")
}

// parseHunkNewStart parses the new-file start line from a unified diff hunk
// header, e.g. "@@ -12,3 +15,0 @@ func foo()" -> 15. A missing length (",0")
// means zero added lines in the new file; the count is irrelevant to the
// starting line we need.
func parseHunkNewStart(header string) (int, error) {
	// header looks like: @@ -<oldStart>[,<oldLen>] +<newStart>[,<newLen>] @@...
	idx := strings.Index(header, "+")
	if idx < 0 {
		return 0, fmt.Errorf("malformed hunk header %q: no '+' section", header)
	}
	rest := header[idx+1:]
	end := strings.IndexAny(rest, " ,")
	if end < 0 {
		end = len(rest)
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, fmt.Errorf("malformed hunk header %q: %w", header, err)
	}
	return n, nil
}

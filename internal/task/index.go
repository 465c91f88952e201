package task

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/burl-dev/burl/internal/burlerr"
)

// Buckets lists the five status directories in their canonical pipeline
// order, per spec.md §3.
var Buckets = []string{"READY", "DOING", "QA", "DONE", "BLOCKED"}

// filenamePattern matches a task filename: TASK-<digits>-<slug>.md.
var filenamePattern = regexp.MustCompile(`^TASK-(\d{3,})-.*\.md$`)

// Entry locates a single task file within the bucket tree.
type Entry struct {
	ID     string
	Bucket string
	Path   string
	Number int
}

// Index maps a normalized task ID to its current location.
type Index struct {
	byID map[string]Entry
}

// BuildIndex scans every bucket directory under bucketsDir for files
// matching TASK-\d{3,}-.*\.md and returns a map id -> {bucket, path,
// number}. A task ID present in more than one bucket is a hard error: it
// violates the bucket-uniqueness invariant (spec.md's I1/P1) and almost
// always means a previous transition crashed mid-move.
func BuildIndex(bucketsDir string) (*Index, error) {
	idx := &Index{byID: map[string]Entry{}}

	for _, bucket := range Buckets {
		dir := filepath.Join(bucketsDir, bucket)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, burlerr.IO(fmt.Sprintf("reading bucket %s", bucket), err)
		}

		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			m := filenamePattern.FindStringSubmatch(e.Name())
			if m == nil {
				continue
			}
			num, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			id := fmt.Sprintf("TASK-%0*d", len(m[1]), num)
			if len(m[1]) < 3 {
				id = fmt.Sprintf("TASK-%03d", num)
			}

			if prior, exists := idx.byID[id]; exists {
				return nil, burlerr.Validation(
					fmt.Sprintf("task %s found in both %s and %s", id, prior.Bucket, bucket), nil)
			}

			idx.byID[id] = Entry{
				ID:     id,
				Bucket: bucket,
				Path:   filepath.Join(dir, e.Name()),
				Number: num,
			}
		}
	}

	return idx, nil
}

// Lookup returns the entry for id, if present.
func (idx *Index) Lookup(id string) (Entry, bool) {
	e, ok := idx.byID[id]
	return e, ok
}

// TasksInBucket returns entries currently in bucket, ordered by ascending
// numeric ID.
func (idx *Index) TasksInBucket(bucket string) []Entry {
	var out []Entry
	for _, e := range idx.byID {
		if e.Bucket == bucket {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// All returns every indexed entry, ordered by ascending numeric ID.
func (idx *Index) All() []Entry {
	out := make([]Entry, 0, len(idx.byID))
	for _, e := range idx.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// NextID returns the next task ID to assign: max(existing)+1, or TASK-001
// if the index is empty.
func (idx *Index) NextID() string {
	max := 0
	for _, e := range idx.byID {
		if e.Number > max {
			max = e.Number
		}
	}
	return fmt.Sprintf("TASK-%03d", max+1)
}

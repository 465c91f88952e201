package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/burl-dev/burl/internal/task"
)

func TestMoveTaskRewritesContentAndRelocatesFile(t *testing.T) {
	e, _ := newTestEngine(t)
	id := addReadyTask(t, e, "relocate me", task.FrontMatter{Affects: []string{"x.go"}})

	idx, err := e.buildIndex()
	if err != nil {
		t.Fatal(err)
	}
	entry, ok := idx.Lookup(id)
	if !ok {
		t.Fatalf("lookup %s", id)
	}
	file := loadTaskForTest(t, e, id)
	file.FrontMatter.Priority = task.PriorityHigh

	dst, err := e.moveTask(file, entry.Path, "DOING")
	if err != nil {
		t.Fatalf("moveTask: %v", err)
	}

	if filepath.Dir(dst) != e.Ctx.BucketDir("DOING") {
		t.Errorf("dst dir = %q, want %q", filepath.Dir(dst), e.Ctx.BucketDir("DOING"))
	}
	if filepath.Base(dst) != filepath.Base(entry.Path) {
		t.Errorf("dst filename = %q, want unchanged %q", filepath.Base(dst), filepath.Base(entry.Path))
	}
	if _, err := os.Stat(entry.Path); !os.IsNotExist(err) {
		t.Errorf("expected the old READY path to be gone, stat err = %v", err)
	}

	moved, err := loadTask(dst)
	if err != nil {
		t.Fatalf("loadTask(dst): %v", err)
	}
	if moved.FrontMatter.Priority != task.PriorityHigh {
		t.Errorf("priority = %q, want %q (moveTask must serialize before relocating)", moved.FrontMatter.Priority, task.PriorityHigh)
	}
}

func TestAtomicWriteTaskFileUpdatesContentWithoutMoving(t *testing.T) {
	e, _ := newTestEngine(t)
	id := addReadyTask(t, e, "stay put", task.FrontMatter{Affects: []string{"y.go"}})

	idx, err := e.buildIndex()
	if err != nil {
		t.Fatal(err)
	}
	entry, ok := idx.Lookup(id)
	if !ok {
		t.Fatalf("lookup %s", id)
	}
	file := loadTaskForTest(t, e, id)
	file.FrontMatter.Tags = []string{"updated"}

	if err := atomicWriteTaskFile(file, entry.Path); err != nil {
		t.Fatalf("atomicWriteTaskFile: %v", err)
	}

	rewritten, err := loadTask(entry.Path)
	if err != nil {
		t.Fatalf("loadTask: %v", err)
	}
	if len(rewritten.FrontMatter.Tags) != 1 || rewritten.FrontMatter.Tags[0] != "updated" {
		t.Errorf("tags = %v, want [updated]", rewritten.FrontMatter.Tags)
	}

	idx2, err := e.buildIndex()
	if err != nil {
		t.Fatal(err)
	}
	entry2, ok := idx2.Lookup(id)
	if !ok {
		t.Fatalf("lookup %s after rewrite", id)
	}
	if entry2.Bucket != "READY" {
		t.Errorf("bucket = %q, want READY (atomicWriteTaskFile never moves the file)", entry2.Bucket)
	}
}

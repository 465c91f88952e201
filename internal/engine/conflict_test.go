package engine

import (
	"testing"

	"github.com/burl-dev/burl/internal/config"
	"github.com/burl-dev/burl/internal/task"
)

func TestClaimUnderDeclaredDetectionFailsOnOverlappingAffects(t *testing.T) {
	e, _ := newTestEngine(t)
	a := addReadyTask(t, e, "edit shared file", task.FrontMatter{Affects: []string{"shared.go"}})
	b := addReadyTask(t, e, "also edit shared file", task.FrontMatter{Affects: []string{"shared.go"}})

	if _, err := e.Claim(a); err != nil {
		t.Fatalf("Claim a: %v", err)
	}
	if _, err := e.Claim(b); err == nil {
		t.Fatal("expected Claim b to fail under declared-scope conflict detection")
	}
	if got := bucketOf(t, e, b); got != "READY" {
		t.Errorf("bucket = %q, want READY (failed claim must not move the task)", got)
	}
}

func TestClaimUnderDeclaredDetectionAllowsDisjointAffects(t *testing.T) {
	e, _ := newTestEngine(t)
	a := addReadyTask(t, e, "edit a", task.FrontMatter{Affects: []string{"a.go"}})
	b := addReadyTask(t, e, "edit b", task.FrontMatter{Affects: []string{"b.go"}})

	if _, err := e.Claim(a); err != nil {
		t.Fatalf("Claim a: %v", err)
	}
	if _, err := e.Claim(b); err != nil {
		t.Fatalf("Claim b: %v", err)
	}
}

func TestClaimUnderDiffDetectionIgnoresDeclaredOverlapWithoutActualCollision(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Ctx.Config.ConflictDetection = config.ConflictDiff

	a := addReadyTask(t, e, "declared broad, touches narrow", task.FrontMatter{AffectsGlobs: []string{"src/**"}})
	claimA, err := e.Claim(a)
	if err != nil {
		t.Fatalf("Claim a: %v", err)
	}
	commitFile(t, claimA.WorktreePath, "src/foo.go", "package foo\n", "touch src/foo.go")

	b := addReadyTask(t, e, "declared overlap via src/bar/**, untouched by a", task.FrontMatter{AffectsGlobs: []string{"src/bar/**"}})
	if _, err := e.Claim(b); err != nil {
		t.Fatalf("Claim b: %v (diff detection should only flag files a's actual diff touched)", err)
	}
}

func TestClaimUnderDiffDetectionCatchesActualCollision(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Ctx.Config.ConflictDetection = config.ConflictDiff

	a := addReadyTask(t, e, "touches src/foo.go", task.FrontMatter{AffectsGlobs: []string{"src/**"}})
	claimA, err := e.Claim(a)
	if err != nil {
		t.Fatalf("Claim a: %v", err)
	}
	commitFile(t, claimA.WorktreePath, "src/foo.go", "package foo\n", "touch src/foo.go")

	b := addReadyTask(t, e, "also wants src/foo.go", task.FrontMatter{Affects: []string{"src/foo.go"}})
	if _, err := e.Claim(b); err == nil {
		t.Fatal("expected Claim b to fail: its declared scope hits a's actual diff")
	}
}

func TestClaimUnderWarnPolicyLogsButDoesNotBlock(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Ctx.Config.ConflictPolicy = config.ConflictWarn

	a := addReadyTask(t, e, "edit shared file", task.FrontMatter{Affects: []string{"shared.go"}})
	b := addReadyTask(t, e, "also edit shared file", task.FrontMatter{Affects: []string{"shared.go"}})

	if _, err := e.Claim(a); err != nil {
		t.Fatalf("Claim a: %v", err)
	}
	if _, err := e.Claim(b); err != nil {
		t.Fatalf("Claim b: %v (warn policy must not block an overlapping claim)", err)
	}
	if got := bucketOf(t, e, b); got != "DOING" {
		t.Errorf("bucket = %q, want DOING", got)
	}
}

func TestClaimUnderIgnorePolicySkipsConflictCheckEntirely(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Ctx.Config.ConflictPolicy = config.ConflictIgnore

	a := addReadyTask(t, e, "edit shared file", task.FrontMatter{Affects: []string{"shared.go"}})
	b := addReadyTask(t, e, "also edit shared file", task.FrontMatter{Affects: []string{"shared.go"}})

	if _, err := e.Claim(a); err != nil {
		t.Fatalf("Claim a: %v", err)
	}
	if _, err := e.Claim(b); err != nil {
		t.Fatalf("Claim b: %v", err)
	}
}

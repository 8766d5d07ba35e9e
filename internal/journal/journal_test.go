package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAppendAndTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "runs.log")
	j, err := New(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	j.StartRun("/dev/sdx", 3, true)
	j.Info("running pass %d", 1)
	j.Warn("device full")
	j.Error("writer failed")

	lines := j.Tail(3)
	if len(lines) != 3 {
		t.Fatalf("tail = %d lines, want 3", len(lines))
	}
	if !strings.Contains(lines[0], "INFO") || !strings.Contains(lines[0], "running pass 1") {
		t.Fatalf("unexpected first tail line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "WARN") {
		t.Fatalf("warn level lost: %q", lines[1])
	}
	if !strings.Contains(lines[2], "ERROR") {
		t.Fatalf("error level lost: %q", lines[2])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if !strings.Contains(string(data), "device=/dev/sdx passes=3 mode=looping") {
		t.Fatalf("run header missing: %s", data)
	}
}

func TestTailOnMissingFile(t *testing.T) {
	j, err := New(filepath.Join(t.TempDir(), "runs.log"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if lines := j.Tail(10); lines != nil {
		t.Fatalf("expected nil tail before first append, got %v", lines)
	}
}

func TestNilJournalIsSafe(t *testing.T) {
	var j *Journal
	j.Info("ignored")
	j.Warn("ignored")
	j.Error("ignored")
	if j.Tail(5) != nil {
		t.Fatalf("nil journal tail should be nil")
	}
	if j.Path() != "" {
		t.Fatalf("nil journal path should be empty")
	}
}

package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPruneLogsRemovesOldMatches(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "facecam-old.log")
	fresh := filepath.Join(dir, "facecam-new.log")
	keep := filepath.Join(dir, "facecam.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, fresh, keep, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{old, keep, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := PruneLogs(NewNop(), dir, "facecam*.log", 7, keep)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected old log removed")
	}
	for _, path := range []string{fresh, keep, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
}

func TestPruneLogsDisabled(t *testing.T) {
	if got := PruneLogs(nil, t.TempDir(), "*.log", 0); got != 0 {
		t.Fatalf("expected no pruning, got %d", got)
	}
}

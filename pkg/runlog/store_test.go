package runlog

import (
	"os"
	"testing"
	"time"
)

func TestStore_WriteGetRoundTrip(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rec := &RunRecord{
		RunID:        "run-1",
		Year:         "2018",
		State:        RunStateRunning,
		ManifestPath: "/tmp/check.yaml",
		StoreType:    "file",
		PID:          os.Getpid(),
		CreatedAt:    now,
	}

	if err := s.Write(rec); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	got, err := s.Get("run-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.RunID != rec.RunID {
		t.Fatalf("run_id mismatch: got=%q want=%q", got.RunID, rec.RunID)
	}
	if got.State != RunStateRunning {
		t.Fatalf("state mismatch: got=%q want=%q", got.State, RunStateRunning)
	}
	if got.Year != "2018" {
		t.Fatalf("year not persisted: got=%q", got.Year)
	}
}

func TestStore_ListSortsNewestFirst(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	t1 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 30, 13, 0, 0, 0, time.UTC)

	if err := s.Write(&RunRecord{RunID: "run-1", Year: "2018", State: RunStateSuccess, CreatedAt: t1}); err != nil {
		t.Fatalf("Write run-1: %v", err)
	}
	if err := s.Write(&RunRecord{RunID: "run-2", Year: "2018", State: RunStateSuccess, CreatedAt: t2}); err != nil {
		t.Fatalf("Write run-2: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected run count: %d", len(got))
	}
	if got[0].RunID != "run-2" {
		t.Fatalf("expected newest first, got[0]=%q", got[0].RunID)
	}
}

func TestStore_Latest(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	latest, err := s.Latest()
	if err != nil {
		t.Fatalf("Latest() on empty registry: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil on empty registry, got %+v", latest)
	}

	t1 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := s.Write(&RunRecord{RunID: "run-1", Year: "2018", State: RunStateSuccess, CreatedAt: t1}); err != nil {
		t.Fatalf("Write run-1: %v", err)
	}

	latest, err = s.Latest()
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if latest == nil || latest.RunID != "run-1" {
		t.Fatalf("unexpected latest: %+v", latest)
	}
}

func TestStore_ZombieDetection(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	// A pid of max int is never a live process.
	rec := &RunRecord{
		RunID:     "run-dead",
		Year:      "2018",
		State:     RunStateRunning,
		PID:       1<<31 - 1,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Write(rec); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	got, err := s.Get("run-dead")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.State != RunStateUnknown {
		t.Fatalf("expected unknown state for dead pid, got %q", got.State)
	}
	if got.EndedAt == nil {
		t.Fatalf("expected ended_at to be stamped")
	}
}

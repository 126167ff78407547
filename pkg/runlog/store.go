package runlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"
)

// Store persists RunRecords under an on-disk registry directory.
//
// Each run owns one subdirectory:
//
//	<root>/<run_id>/run.json
//	<root>/<run_id>/report.jsonl
//
// run.json is replaced atomically so a concurrent reader never sees a
// partial record.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root)}
}

func (s *Store) RootDir() string {
	return s.root
}

func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.root, runID)
}

func (s *Store) RunPath(runID string) string {
	return filepath.Join(s.RunDir(runID), "run.json")
}

// ReportPath is where the run's JSONL report lives.
func (s *Store) ReportPath(runID string) string {
	return filepath.Join(s.RunDir(runID), "report.jsonl")
}

func (s *Store) ensureRoot() error {
	if s.root == "" {
		return errors.New("run registry root dir is empty")
	}
	return os.MkdirAll(s.root, 0755)
}

// Write stores the record, creating the run directory if needed. The
// record lands via temp file plus rename.
func (s *Store) Write(record *RunRecord) error {
	if record == nil {
		return errors.New("run record is nil")
	}
	runID := strings.TrimSpace(record.RunID)
	if runID == "" {
		return errors.New("run_id is required")
	}
	if err := s.ensureRoot(); err != nil {
		return err
	}

	runDir := s.RunDir(runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	return replaceFile(s.RunPath(runID), runDir, append(b, '\n'))
}

func replaceFile(path, dir string, data []byte) error {
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Get loads one run record. A record stuck in the running state whose
// process has died is demoted to unknown and stamped with an end time.
func (s *Store) Get(runID string) (*RunRecord, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, errors.New("run_id is required")
	}
	b, err := os.ReadFile(s.RunPath(runID))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil, errors.New("run.json is empty")
	}

	var record RunRecord
	if err := json.Unmarshal(b, &record); err != nil {
		return nil, fmt.Errorf("parse run.json: %w", err)
	}

	if record.State == RunStateRunning && record.PID > 0 && !isProcessAlive(record.PID) {
		record.State = RunStateUnknown
		now := time.Now().UTC()
		record.EndedAt = &now
		_ = s.Write(&record)
	}

	return &record, nil
}

// List returns all run records, newest first. Unreadable entries are
// skipped rather than failing the whole listing.
func (s *Store) List() ([]RunRecord, error) {
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read runs root: %w", err)
	}

	out := make([]RunRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		r, err := s.Get(entry.Name())
		if err != nil {
			continue
		}
		out = append(out, *r)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.UTC().After(out[j].CreatedAt.UTC())
	})
	return out, nil
}

// Latest returns the most recent run record, or nil when the registry
// is empty.
func (s *Store) Latest() (*RunRecord, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 checks for existence without delivering anything.
	return p.Signal(syscall.Signal(0)) == nil
}

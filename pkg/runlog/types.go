// Package runlog persists check-run records under the app data dir.
//
// Every check run gets a directory holding its run.json record and the
// JSONL report it produced. The registry is what `condorcheck runs`
// and the status server read.
package runlog

import "time"

// RunState is the lifecycle state of a check run.
//
// NOTE: These values are persisted in run.json and are part of the stable
// on-disk contract.
type RunState string

const (
	RunStateRunning RunState = "running"
	RunStateSuccess RunState = "success"
	RunStateFailed  RunState = "failed"
	RunStateUnknown RunState = "unknown"
)

// RunRecord is the persistent record written to run.json.
//
// The schema is designed for backward-compatible extension (additive fields).
type RunRecord struct {
	RunID        string   `json:"run_id"`
	Year         string   `json:"year"`
	State        RunState `json:"state"`
	ManifestPath string   `json:"manifest_path,omitempty"`
	ReportPath   string   `json:"report_path,omitempty"`
	StoreType    string   `json:"store_type,omitempty"`
	PID          int      `json:"pid,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// Aggregate results, populated when the run completes.
	SamplesChecked int `json:"samples_checked,omitempty"`
	JobsMissing    int `json:"jobs_missing,omitempty"`
	JobsRunning    int `json:"jobs_running,omitempty"`
	Warnings       int `json:"warnings,omitempty"`
	Resubmitted    int `json:"resubmitted,omitempty"`
}

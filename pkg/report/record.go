// Package report provides JSONL output for reconciliation results.
//
// Output is structured as typed record envelopes containing missing
// jobs, running jobs, warnings, resubmissions, and a final summary.
// Each line is a self-contained JSON object that can be parsed
// independently, which keeps check runs greppable and diffable.
package report

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/boostedhh/condorcheck/pkg/reconcile"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: condorcheck.<type>.v<version>
const (
	// TypeMissing identifies missing-job records.
	TypeMissing = "condorcheck.missing.v1"

	// TypeRunning identifies suppressed in-flight job records.
	TypeRunning = "condorcheck.running.v1"

	// TypeWarning identifies warning records.
	TypeWarning = "condorcheck.warning.v1"

	// TypeResubmit identifies resubmission attempt records.
	TypeResubmit = "condorcheck.resubmit.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "condorcheck.summary.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line of output contains a Record with a type-specific payload
// in the Data field. The type field determines how to interpret the
// Data payload.
type Record struct {
	// Type identifies the record type (e.g., "condorcheck.missing.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// RunID is the correlation ID for this check run.
	RunID string `json:"run_id"`

	// Year is the data-taking year under check.
	Year string `json:"year"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// MissingRecord is the data payload for one job lacking required
// output and not currently in the queue.
type MissingRecord struct {
	// Sample is the bare sample name.
	Sample string `json:"sample"`

	// Index is the job index within the sample.
	Index int `json:"index"`

	// Missing names the artifact kinds not found, primary first.
	Missing []string `json:"missing"`

	// ListingAbsent is set when the sample's secondary listing
	// directory did not exist, so every expected index was reported.
	ListingAbsent bool `json:"listing_absent,omitempty"`

	// DirectivePath is the condor directive to resubmit this job.
	DirectivePath string `json:"directive_path"`

	// LogPath is the paired stderr log for triage.
	LogPath string `json:"log_path"`
}

// NewMissingRecord builds the payload for a reconciler missing-job entry.
func NewMissingRecord(mj reconcile.MissingJob) *MissingRecord {
	kinds := make([]string, 0, len(mj.Missing))
	for _, k := range mj.Missing {
		kinds = append(kinds, string(k))
	}
	return &MissingRecord{
		Sample:        mj.Job.Sample,
		Index:         mj.Job.Index,
		Missing:       kinds,
		ListingAbsent: mj.ListingAbsent,
		DirectivePath: mj.DirectivePath,
		LogPath:       mj.LogPath,
	}
}

// RunningRecord is the data payload for a job suppressed because the
// scheduler reports it in flight.
type RunningRecord struct {
	Sample string `json:"sample"`
	Index  int    `json:"index"`
}

// WarningRecord is the data payload for ambiguous states the operator
// should look at.
type WarningRecord struct {
	Sample string `json:"sample"`
	Reason string `json:"reason"`
}

// ResubmitRecord is the data payload for one resubmission attempt.
//
// Attempts are emitted as records rather than failing the whole round,
// allowing partial resubmission when some directives are broken.
type ResubmitRecord struct {
	// Sample and Index identify the job being resubmitted.
	Sample string `json:"sample"`
	Index  int    `json:"index"`

	// DirectivePath is the directive handed to condor_submit.
	DirectivePath string `json:"directive_path"`

	// Submitted reports whether condor_submit exited zero.
	Submitted bool `json:"submitted"`

	// ExitCode is the condor_submit exit status.
	ExitCode int `json:"exit_code"`

	// Output carries the scheduler's combined output on failure.
	Output string `json:"output,omitempty"`
}

// SummaryRecord is the data payload for final summaries.
//
// A summary record is emitted at the end of a check run with
// aggregate statistics.
type SummaryRecord struct {
	// SamplesChecked is the number of samples reconciled.
	SamplesChecked int `json:"samples_checked"`

	// JobsExpected is the total expected job count across samples.
	JobsExpected int `json:"jobs_expected"`

	// JobsMissing is the number of missing jobs reported.
	JobsMissing int `json:"jobs_missing"`

	// JobsRunning is the number of jobs suppressed as in flight.
	JobsRunning int `json:"jobs_running"`

	// Warnings is the count of warnings emitted.
	Warnings int `json:"warnings"`

	// Resubmitted is the count of successful resubmissions, if any.
	Resubmitted int `json:"resubmitted,omitempty"`

	// Duration is the total check duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "report: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

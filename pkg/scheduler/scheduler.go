// Package scheduler abstracts the batch scheduler behind a small capability
// interface so the check pipeline can be exercised with a fake.
//
// The only real implementation shells out to the HTCondor command-line tools.
package scheduler

import (
	"context"

	"github.com/boostedhh/condorcheck/pkg/reconcile"
)

// Scheduler is the injected batch-scheduler capability.
type Scheduler interface {
	// ListRunning returns the live snapshot of jobs currently queued or
	// executing for the invoking user.
	ListRunning(ctx context.Context) (reconcile.RunningSet, error)

	// Submit submits the directive at the given path. A non-zero scheduler
	// exit status is reported in the outcome, not as an error: one failed
	// resubmission must not abort the rest of the round.
	Submit(ctx context.Context, directivePath string) (SubmitOutcome, error)
}

// SubmitOutcome describes one resubmission attempt.
type SubmitOutcome struct {
	// DirectivePath is the .jdl that was submitted.
	DirectivePath string

	// ExitCode is the scheduler command's exit status.
	ExitCode int

	// Output is the combined stdout/stderr of the submit command, trimmed.
	Output string
}

// OK reports whether the submission was accepted by the scheduler.
func (o SubmitOutcome) OK() bool {
	return o.ExitCode == 0
}

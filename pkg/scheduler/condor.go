package scheduler

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/boostedhh/condorcheck/pkg/jobfile"
	"github.com/boostedhh/condorcheck/pkg/reconcile"
)

// Default HTCondor command names; resolved via PATH.
const (
	DefaultQueueBin  = "condor_q"
	DefaultSubmitBin = "condor_submit"
)

// Condor shells out to the HTCondor command-line tools.
type Condor struct {
	queueBin  string
	submitBin string
	user      string
}

var _ Scheduler = (*Condor)(nil)

// CondorConfig configures a Condor scheduler.
type CondorConfig struct {
	// QueueBin / SubmitBin override the condor_q and condor_submit
	// command names. Empty uses the defaults.
	QueueBin  string
	SubmitBin string

	// User restricts the queue listing to one schedd user. Empty lists
	// the invoking user's jobs, condor_q's own default.
	User string
}

// NewCondor creates a Condor scheduler.
func NewCondor(cfg CondorConfig) *Condor {
	c := &Condor{queueBin: cfg.QueueBin, submitBin: cfg.SubmitBin, user: cfg.User}
	if c.queueBin == "" {
		c.queueBin = DefaultQueueBin
	}
	if c.submitBin == "" {
		c.submitBin = DefaultSubmitBin
	}
	return c
}

// ListRunning queries condor_q and decodes the running-job set.
//
// A condor_q failure is a real error: pretending the queue is empty would
// turn every in-flight job into a resubmission candidate.
func (c *Condor) ListRunning(ctx context.Context) (reconcile.RunningSet, error) {
	args := []string{"-nobatch"}
	if c.user != "" {
		args = append(args, c.user)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.queueBin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", c.queueBin, err, strings.TrimSpace(stderr.String()))
	}

	return ParseQueue(&stdout)
}

// ParseQueue decodes a condor_q listing into a RunningSet.
//
// Queue lines name the job script (<year>_<sample>_<index>.sh) in their
// command column. Column positions vary between condor versions, so any
// whitespace-delimited field naming a job script is accepted; header and
// summary lines simply have no such field. Scripts whose names don't follow
// the batch naming scheme belong to other workflows and are skipped.
func ParseQueue(r io.Reader) (reconcile.RunningSet, error) {
	running := reconcile.NewRunningSet()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		for _, field := range strings.Fields(scanner.Text()) {
			if !jobfile.IsJobScript(field) {
				continue
			}
			job, err := jobfile.ParseJobName(field)
			if err != nil {
				continue
			}
			running.Add(job)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read queue listing: %w", err)
	}

	return running, nil
}

// Submit runs condor_submit against the directive.
//
// The exit status and combined output land in the outcome; only a failure
// to start the command at all (binary missing, context cancelled) is an
// error.
func (c *Condor) Submit(ctx context.Context, directivePath string) (SubmitOutcome, error) {
	out := SubmitOutcome{DirectivePath: directivePath}

	cmd := exec.CommandContext(ctx, c.submitBin, directivePath)
	combined, err := cmd.CombinedOutput()
	out.Output = strings.TrimSpace(string(combined))

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, fmt.Errorf("%s %s: %w", c.submitBin, directivePath, err)
	}

	return out, nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/boostedhh/condorcheck/internal/observability"
	"github.com/boostedhh/condorcheck/pkg/manifest"
	"github.com/boostedhh/condorcheck/pkg/match"
	"github.com/boostedhh/condorcheck/pkg/reconcile"
	"github.com/boostedhh/condorcheck/pkg/report"
	"github.com/boostedhh/condorcheck/pkg/runlog"
	"github.com/boostedhh/condorcheck/pkg/scan"
	"github.com/boostedhh/condorcheck/pkg/scheduler"
	"github.com/boostedhh/condorcheck/pkg/storage"
	filestore "github.com/boostedhh/condorcheck/pkg/storage/file"
	s3store "github.com/boostedhh/condorcheck/pkg/storage/s3"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Reconcile a batch against its produced outputs",
	Long: `Reconcile the jobs in a submission directory against the outputs
present on storage. The batch is described either by a YAML/JSON check
manifest (--job) or by the batch coordinates directly (--processor,
--tag, --year, ...).

Jobs still in the condor queue are suppressed when --check-running is
set. Missing jobs are reported with the directive and log paths for
follow-up, and resubmitted when --submit-missing is set.

Example:
  condorcheck check --job check.yaml
  condorcheck check --processor skimmer --tag Apr14 --year 2018 \
      --user rkansal --analysis bbbb --site lpc
  condorcheck check --job check.yaml --sample "QCD_HT*" --check-running
  condorcheck check --job check.yaml --submit-missing
  condorcheck check --job check.yaml --dry-run`,
	RunE: runCheck,
}

// checkFlags is the flag surface shared by check and resubmit-style
// invocations.
type checkFlags struct {
	jobPath    string
	processor  string
	analysis   string
	site       string
	tag        string
	year       string
	user       string
	submission string

	output   string
	samples  []string
	excludes []string

	submitMissing bool
	checkRunning  bool
	noParquet     bool
	jsonOut       bool
	dryRun        bool
}

var checkOpts checkFlags

func init() {
	rootCmd.AddCommand(checkCmd)

	f := checkCmd.Flags()
	f.StringVarP(&checkOpts.jobPath, "job", "j", "", "Path to check manifest (alternative to the direct flags)")
	f.StringVar(&checkOpts.processor, "processor", "", "Processor name the batch ran")
	f.StringVar(&checkOpts.analysis, "analysis", "bbbb", "Analysis: bbbb or bbtautau")
	f.StringVar(&checkOpts.site, "site", "lpc", "Storage site: lpc or ucsd")
	f.StringVar(&checkOpts.tag, "tag", "", "Batch tag")
	f.StringVar(&checkOpts.year, "year", "", "Data-taking year")
	f.StringVar(&checkOpts.user, "user", "", "Storage username owning the output tree")
	f.StringVar(&checkOpts.submission, "submission", "", "Submission directory (default condor/<processor>/<tag>)")

	f.StringVarP(&checkOpts.output, "output", "o", "", "Override report destination")
	f.StringArrayVar(&checkOpts.samples, "sample", nil, "Only check samples matching this glob (repeatable)")
	f.StringArrayVar(&checkOpts.excludes, "exclude", nil, "Skip samples matching this glob (repeatable)")

	f.BoolVar(&checkOpts.submitMissing, "submit-missing", false, "Resubmit every missing job's directive")
	f.BoolVar(&checkOpts.checkRunning, "check-running", false, "Query the condor queue and suppress in-flight jobs")
	f.BoolVar(&checkOpts.noParquet, "no-parquet", false, "Skip the secondary parquet-listing check")
	f.BoolVar(&checkOpts.jsonOut, "json", false, "Emit the JSONL report on stdout instead of the summary table")
	f.BoolVar(&checkOpts.dryRun, "dry-run", false, "Validate configuration and show plan without executing")
}

func runCheck(cmd *cobra.Command, args []string) error {
	m, err := loadCheckManifest(cmd, &checkOpts)
	if err != nil {
		return err
	}

	if checkOpts.dryRun {
		return showCheckPlan(m)
	}

	_, err = executeCheck(cmd.Context(), m, checkOpts.jobPath, checkOpts.jsonOut)
	return err
}

// loadCheckManifest builds the effective manifest: from the manifest
// file when --job is given, from the direct flags otherwise, with flag
// overrides applied on top and storage locations resolved.
func loadCheckManifest(cmd *cobra.Command, opts *checkFlags) (*manifest.Manifest, error) {
	var m *manifest.Manifest

	if opts.jobPath != "" {
		loaded, err := manifest.Load(opts.jobPath)
		if err != nil {
			observability.CLILogger.Error("Failed to load manifest",
				zap.String("path", opts.jobPath),
				zap.Error(err))
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
		}
		m = loaded
	} else {
		built, err := manifestFromFlags(opts)
		if err != nil {
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid batch flags", err)
		}
		m = built
	}

	if opts.output != "" {
		m.Output.Destination = opts.output
	}
	if len(opts.samples) > 0 {
		m.Samples.Includes = opts.samples
	}
	if len(opts.excludes) > 0 {
		m.Samples.Excludes = append(m.Samples.Excludes, opts.excludes...)
	}
	if opts.noParquet {
		enabled := false
		m.Check.Parquet = &enabled
	}
	if cmd != nil {
		if cmd.Flags().Changed("check-running") {
			m.Check.Running = opts.checkRunning
		}
		if cmd.Flags().Changed("submit-missing") {
			m.Check.SubmitMissing = opts.submitMissing
		}
	}

	if err := m.Resolve(); err != nil {
		observability.CLILogger.Error("Cannot resolve storage locations", zap.Error(err))
		return nil, exitError(foundry.ExitInvalidArgument, "Cannot resolve storage locations", err)
	}

	observability.CLILogger.Debug("Effective check configuration",
		zap.String("year", m.Year),
		zap.String("store", m.Storage.Store),
		zap.String("output_root", m.Storage.OutputRoot),
		zap.String("submission_root", m.Submission.Root))
	return m, nil
}

// manifestFromFlags synthesizes a manifest from the direct flag set and
// validates it the same way a loaded file would be.
func manifestFromFlags(opts *checkFlags) (*manifest.Manifest, error) {
	if opts.processor == "" || opts.tag == "" || opts.year == "" || opts.user == "" {
		return nil, fmt.Errorf("either --job or all of --processor, --tag, --year and --user are required")
	}

	m := &manifest.Manifest{
		Version: manifest.DefaultVersion,
		Year:    opts.year,
		Batch: manifest.BatchConfig{
			Site:      opts.site,
			User:      opts.user,
			Analysis:  opts.analysis,
			Processor: opts.processor,
			Tag:       opts.tag,
		},
	}
	m.Submission.Root = opts.submission
	if m.Submission.Root == "" {
		m.Submission.Root = filepath.Join("condor", opts.processor, opts.tag)
	}

	if err := manifest.Validate(m); err != nil {
		return nil, err
	}
	m.ApplyDefaults()
	return m, nil
}

// showCheckPlan displays what would be checked without executing.
func showCheckPlan(m *manifest.Manifest) error {
	fmt.Println("=== Check Plan (dry-run) ===")
	fmt.Println()
	fmt.Printf("Year:        %s\n", m.Year)
	if m.Batch.Processor != "" {
		fmt.Printf("Processor:   %s\n", m.Batch.Processor)
		fmt.Printf("Tag:         %s\n", m.Batch.Tag)
		fmt.Printf("Analysis:    %s\n", m.Batch.Analysis)
		fmt.Printf("Site:        %s\n", m.Batch.Site)
	}
	fmt.Printf("Submission:  %s\n", m.Submission.Root)
	fmt.Printf("Store:       %s\n", m.Storage.Store)
	if m.Storage.Store == manifest.StoreS3 {
		fmt.Printf("Bucket:      %s\n", m.Storage.Bucket)
		if m.Storage.Endpoint != "" {
			fmt.Printf("Endpoint:    %s\n", m.Storage.Endpoint)
		}
	} else if m.Storage.BaseDir != "" {
		fmt.Printf("Base Dir:    %s\n", m.Storage.BaseDir)
	}
	fmt.Printf("Outputs:     %s\n", m.Storage.OutputRoot)
	fmt.Printf("Pickles:     %s\n", m.Storage.PrimaryDir)
	if m.Check.ParquetEnabled() {
		fmt.Printf("Parquet:     %s\n", m.Storage.SecondaryDir)
	} else {
		fmt.Println("Parquet:     disabled")
	}
	fmt.Println()

	if len(m.Samples.Includes) > 0 || len(m.Samples.Excludes) > 0 {
		fmt.Println("Samples:")
		for _, p := range m.Samples.Includes {
			fmt.Printf("  Include: %s\n", p)
		}
		for _, p := range m.Samples.Excludes {
			fmt.Printf("  Exclude: %s\n", p)
		}
		fmt.Println()
	}

	if m.Check.RateLimit > 0 {
		fmt.Printf("Rate Limit:  %.1f req/s\n", m.Check.RateLimit)
	}
	fmt.Printf("Queue Check: %t\n", m.Check.Running)
	fmt.Printf("Resubmit:    %t\n", m.Check.SubmitMissing)
	fmt.Printf("Scheduler:   %s / %s\n", m.Scheduler.QueueBin, m.Scheduler.SubmitBin)
	fmt.Printf("Output:      %s\n", m.Output.Destination)
	fmt.Println()
	fmt.Println("Configuration validated successfully. Remove --dry-run to execute.")
	return nil
}

// checkOutcome summarizes one executed check for the calling command.
type checkOutcome struct {
	RunID       string
	Result      reconcile.Result
	Resubmitted int
}

// executeCheck runs the full check: optional queue snapshot, storage
// scan, reconciliation, report emission, and run registry bookkeeping.
func executeCheck(ctx context.Context, m *manifest.Manifest, manifestPath string, jsonToStdout bool) (*checkOutcome, error) {
	runID := uuid.New().String()
	start := time.Now()

	registry := runlog.NewStore(runRegistryDir())
	runRec := &runlog.RunRecord{
		RunID:        runID,
		Year:         m.Year,
		State:        runlog.RunStateRunning,
		StoreType:    m.Storage.Store,
		PID:          os.Getpid(),
		CreatedAt:    start.UTC(),
		ManifestPath: manifestPath,
		ReportPath:   registry.ReportPath(runID),
	}
	if err := registry.Write(runRec); err != nil {
		observability.CLILogger.Warn("Failed to record run", zap.Error(err))
	}

	finishRun := func(state runlog.RunState) {
		now := time.Now().UTC()
		runRec.State = state
		runRec.EndedAt = &now
		if err := registry.Write(runRec); err != nil {
			observability.CLILogger.Warn("Failed to update run record", zap.Error(err))
		}
	}

	scanner, closeStores, err := buildScanner(ctx, m)
	if err != nil {
		finishRun(runlog.RunStateFailed)
		return nil, err
	}
	defer closeStores()

	sched := scheduler.NewCondor(scheduler.CondorConfig{
		QueueBin:  m.Scheduler.QueueBin,
		SubmitBin: m.Scheduler.SubmitBin,
		User:      m.Batch.User,
	})

	running := reconcile.NewRunningSet()
	if m.Check.Running {
		observability.CLILogger.Info("Snapshotting condor queue",
			zap.String("run_id", runID),
			zap.String("queue_bin", m.Scheduler.QueueBin))
		running, err = sched.ListRunning(ctx)
		if err != nil {
			finishRun(runlog.RunStateFailed)
			observability.CLILogger.Error("Failed to list condor queue", zap.Error(err))
			return nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to list condor queue", err)
		}
	}

	observability.CLILogger.Info("Scanning submission directory and output listings",
		zap.String("run_id", runID),
		zap.String("year", m.Year),
		zap.Int("jobs_in_queue", len(running)))
	inputs, err := scanner.Gather(ctx, running)
	if err != nil {
		finishRun(runlog.RunStateFailed)
		if ctx.Err() != nil {
			return nil, exitError(foundry.ExitSignalInt, "Check cancelled", err)
		}
		observability.CLILogger.Error("Scan failed", zap.Error(err))
		return nil, exitError(foundry.ExitExternalServiceUnavailable, "Scan failed", err)
	}
	for _, key := range scanner.SkippedDirectives() {
		observability.CLILogger.Warn("Directive name does not decode, ignored",
			zap.String("directive", key))
	}

	res := reconcile.Reconcile(inputs)

	writer, cleanup, err := createReportWriter(m, registry, runID, jsonToStdout)
	if err != nil {
		finishRun(runlog.RunStateFailed)
		observability.CLILogger.Error("Failed to create report output", zap.Error(err))
		return nil, exitError(foundry.ExitFileWriteError, "Failed to create report output", err)
	}
	defer cleanup()

	resubmitted, err := emitReport(ctx, writer, sched, &res, inputs, m.Check.SubmitMissing, start)
	if err != nil {
		finishRun(runlog.RunStateFailed)
		return nil, err
	}

	if m.Output.Destination == manifest.DefaultDestination && !jsonToStdout {
		renderSummaryTable(os.Stdout, &res, inputs, resubmitted)
	}

	runRec.SamplesChecked = len(inputs.Samples)
	runRec.JobsMissing = len(res.Missing)
	runRec.JobsRunning = len(res.Running)
	runRec.Warnings = len(res.Warnings)
	runRec.Resubmitted = resubmitted
	finishRun(runlog.RunStateSuccess)

	observability.CLILogger.Info("Check completed",
		zap.String("run_id", runID),
		zap.Int("samples", len(inputs.Samples)),
		zap.Int("missing", len(res.Missing)),
		zap.Int("running", len(res.Running)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Int("resubmitted", resubmitted),
		zap.Duration("duration", time.Since(start)))

	return &checkOutcome{RunID: runID, Result: res, Resubmitted: resubmitted}, nil
}

// buildScanner creates the stores and scanner from manifest configuration.
func buildScanner(ctx context.Context, m *manifest.Manifest) (*scan.Scanner, func(), error) {
	submission, err := filestore.New(filestore.Config{BaseDir: m.Submission.Root})
	if err != nil {
		observability.CLILogger.Error("Failed to open submission directory", zap.Error(err))
		return nil, nil, exitError(foundry.ExitInvalidArgument, "Invalid submission directory", err)
	}

	output, err := createStore(ctx, m)
	if err != nil {
		observability.CLILogger.Error("Failed to create output store", zap.Error(err))
		return nil, nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to output storage", err)
	}

	matcher, err := match.New(match.Config{
		Includes: m.Samples.Includes,
		Excludes: m.Samples.Excludes,
	})
	if err != nil {
		observability.CLILogger.Error("Invalid sample patterns", zap.Error(err))
		return nil, nil, exitError(foundry.ExitInvalidArgument, "Invalid sample patterns", err)
	}

	var limiter *rate.Limiter
	if m.Check.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(m.Check.RateLimit), 1)
	}

	scanner, err := scan.New(submission, output, scan.Config{
		Year: m.Year,
		Layout: scan.Layout{
			SubmissionRoot: m.Submission.Root,
			OutputRoot:     m.Storage.OutputRoot,
			PrimaryDir:     m.Storage.PrimaryDir,
			SecondaryDir:   m.Storage.SecondaryDir,
		},
		Matcher:           matcher,
		Limiter:           limiter,
		SecondaryRequired: m.Check.ParquetEnabled(),
		PageSize:          m.Check.PageSize,
	})
	if err != nil {
		return nil, nil, exitError(foundry.ExitInvalidArgument, "Invalid scan configuration", err)
	}

	closeStores := func() {
		_ = submission.Close()
		_ = output.Close()
	}
	return scanner, closeStores, nil
}

// createStore creates the output store from manifest configuration.
func createStore(ctx context.Context, m *manifest.Manifest) (storage.Store, error) {
	switch m.Storage.Store {
	case manifest.StoreS3:
		return s3store.New(ctx, s3store.Config{
			Bucket:   m.Storage.Bucket,
			Region:   m.Storage.Region,
			Endpoint: m.Storage.Endpoint,
			Profile:  m.Storage.Profile,
			// Gateways at T2 sites are S3-compatible, not AWS; they
			// need path-style URLs.
			ForcePathStyle: m.Storage.Endpoint != "",
		})
	default:
		return filestore.New(filestore.Config{BaseDir: m.Storage.BaseDir})
	}
}

// createReportWriter creates the JSONL report writer. The report is
// always captured in the run registry; the manifest destination
// additionally receives a copy. A stdout destination only gets the
// JSONL stream when jsonToStdout is set, otherwise stdout carries the
// summary table instead.
func createReportWriter(m *manifest.Manifest, registry *runlog.Store, runID string, jsonToStdout bool) (report.Writer, func(), error) {
	regFile, err := os.Create(registry.ReportPath(runID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create registry report %s: %w", registry.ReportPath(runID), err)
	}

	dest := m.Output.Destination
	if dest == "" || dest == manifest.DefaultDestination {
		var out io.Writer = regFile
		if jsonToStdout {
			out = io.MultiWriter(os.Stdout, regFile)
		}
		w := report.NewJSONLWriter(out, runID, m.Year)
		return w, func() { _ = w.Close(); _ = regFile.Close() }, nil
	}

	path := strings.TrimPrefix(dest, "file:")

	f, err := os.Create(path)
	if err != nil {
		_ = regFile.Close()
		return nil, nil, fmt.Errorf("failed to create report file %s: %w", path, err)
	}

	w := report.NewJSONLWriter(io.MultiWriter(f, regFile), runID, m.Year)
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
		_ = regFile.Close()
	}
	return w, cleanup, nil
}

// emitReport writes all result records, optionally resubmitting missing
// jobs, and finishes with the summary record. Returns the number of
// successful resubmissions.
func emitReport(ctx context.Context, w report.Writer, sched scheduler.Scheduler, res *reconcile.Result, inputs reconcile.Inputs, resubmit bool, start time.Time) (int, error) {
	for _, warn := range res.Warnings {
		if err := w.WriteWarning(ctx, &report.WarningRecord{Sample: warn.Sample, Reason: warn.Reason}); err != nil {
			return 0, exitError(foundry.ExitFileWriteError, "Failed to write warning record", err)
		}
	}

	for _, job := range res.Running {
		if err := w.WriteRunning(ctx, &report.RunningRecord{Sample: job.Sample, Index: job.Index}); err != nil {
			return 0, exitError(foundry.ExitFileWriteError, "Failed to write running record", err)
		}
	}

	resubmitted := 0
	for _, mj := range res.Missing {
		if err := w.WriteMissing(ctx, report.NewMissingRecord(mj)); err != nil {
			return resubmitted, exitError(foundry.ExitFileWriteError, "Failed to write missing record", err)
		}

		if !resubmit {
			continue
		}

		rec, ok, err := resubmitOne(ctx, sched, mj.Job.Sample, mj.Job.Index, mj.DirectivePath)
		if err != nil {
			return resubmitted, err
		}
		if ok {
			resubmitted++
		}
		if err := w.WriteResubmit(ctx, rec); err != nil {
			return resubmitted, exitError(foundry.ExitFileWriteError, "Failed to write resubmit record", err)
		}
	}

	expected := 0
	for _, n := range inputs.Expected {
		expected += n
	}
	duration := time.Since(start)
	summary := &report.SummaryRecord{
		SamplesChecked: len(inputs.Samples),
		JobsExpected:   expected,
		JobsMissing:    len(res.Missing),
		JobsRunning:    len(res.Running),
		Warnings:       len(res.Warnings),
		Resubmitted:    resubmitted,
		Duration:       duration,
		DurationHuman:  duration.Round(time.Millisecond).String(),
	}
	if err := w.WriteSummary(ctx, summary); err != nil {
		return resubmitted, exitError(foundry.ExitFileWriteError, "Failed to write summary record", err)
	}

	return resubmitted, nil
}

// resubmitOne submits a single directive and returns its report record.
// ok reports acceptance by the scheduler.
func resubmitOne(ctx context.Context, sched scheduler.Scheduler, sample string, index int, directivePath string) (*report.ResubmitRecord, bool, error) {
	outcome, err := sched.Submit(ctx, directivePath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, exitError(foundry.ExitSignalInt, "Resubmission cancelled", err)
		}
		observability.CLILogger.Error("condor_submit failed to run",
			zap.String("directive", directivePath),
			zap.Error(err))
		return nil, false, exitError(foundry.ExitExternalServiceUnavailable, "Failed to run condor_submit", err)
	}

	rec := &report.ResubmitRecord{
		Sample:        sample,
		Index:         index,
		DirectivePath: outcome.DirectivePath,
		Submitted:     outcome.OK(),
		ExitCode:      outcome.ExitCode,
	}
	if !outcome.OK() {
		rec.Output = outcome.Output
		observability.CLILogger.Warn("Resubmission rejected",
			zap.String("directive", directivePath),
			zap.Int("exit_code", outcome.ExitCode))
	}
	return rec, outcome.OK(), nil
}

// renderSummaryTable prints the human-readable view of a check result.
func renderSummaryTable(out io.Writer, res *reconcile.Result, inputs reconcile.Inputs, resubmitted int) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	if len(res.Missing) > 0 {
		fmt.Fprintln(tw, "SAMPLE\tINDEX\tMISSING\tDIRECTIVE")
		for _, mj := range res.Missing {
			kinds := make([]string, 0, len(mj.Missing))
			for _, k := range mj.Missing {
				kinds = append(kinds, string(k))
			}
			note := strings.Join(kinds, "+")
			if mj.ListingAbsent {
				note += " (listing absent)"
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", mj.Job.Sample, mj.Job.Index, note, mj.DirectivePath)
		}
		fmt.Fprintln(tw)
	}

	for _, warn := range res.Warnings {
		fmt.Fprintf(tw, "warning: %s: %s\n", warn.Sample, warn.Reason)
	}

	expected := 0
	for _, n := range inputs.Expected {
		expected += n
	}
	fmt.Fprintf(tw, "%d samples, %d jobs expected, %d missing, %d running, %d resubmitted\n",
		len(inputs.Samples), expected, len(res.Missing), len(res.Running), resubmitted)
	_ = tw.Flush()
}

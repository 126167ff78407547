package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boostedhh/condorcheck/internal/observability"
	"github.com/boostedhh/condorcheck/pkg/report"
	"github.com/boostedhh/condorcheck/pkg/runlog"
	"github.com/boostedhh/condorcheck/pkg/scheduler"
)

var resubmitCmd = &cobra.Command{
	Use:   "resubmit [report.jsonl]",
	Short: "Resubmit the missing jobs from a saved report",
	Long: `Replay the resubmission decisions of an earlier check: read the
missing-job records from a JSONL report and feed each directive back to
condor_submit.

Without an argument the report of the most recent recorded run is used;
--run selects a specific run from the registry.

A submission the scheduler rejects is reported and does not abort the
remaining resubmissions.

Example:
  condorcheck resubmit                 # latest recorded run
  condorcheck resubmit report.jsonl
  condorcheck resubmit --run 8f14e45f
  condorcheck resubmit --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResubmit,
}

var (
	resubmitRunID     string
	resubmitQueueBin  string
	resubmitSubmitBin string
	resubmitDryRun    bool
)

func init() {
	rootCmd.AddCommand(resubmitCmd)

	resubmitCmd.Flags().StringVar(&resubmitRunID, "run", "", "Resubmit from this recorded run's report")
	resubmitCmd.Flags().StringVar(&resubmitQueueBin, "queue-bin", "", "Override the condor_q binary")
	resubmitCmd.Flags().StringVar(&resubmitSubmitBin, "submit-bin", "", "Override the condor_submit binary")
	resubmitCmd.Flags().BoolVar(&resubmitDryRun, "dry-run", false, "List the directives that would be resubmitted")
}

func runResubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	reportPath, err := resolveReportPath(args)
	if err != nil {
		return err
	}

	f, err := os.Open(reportPath)
	if err != nil {
		observability.CLILogger.Error("Failed to open report", zap.String("path", reportPath), zap.Error(err))
		return exitError(foundry.ExitFileReadError, "Failed to open report", err)
	}
	defer f.Close()

	missing, err := readMissingRecords(f)
	if err != nil {
		observability.CLILogger.Error("Failed to read report", zap.String("path", reportPath), zap.Error(err))
		return exitError(foundry.ExitFileReadError, "Failed to read report", err)
	}
	if len(missing) == 0 {
		observability.CLILogger.Info("Report has no missing jobs, nothing to resubmit",
			zap.String("path", reportPath))
		return nil
	}

	if resubmitDryRun {
		fmt.Printf("Would resubmit %d directives from %s:\n", len(missing), reportPath)
		for _, rec := range missing {
			fmt.Printf("  %s\n", rec.DirectivePath)
		}
		return nil
	}

	sched := scheduler.NewCondor(scheduler.CondorConfig{
		QueueBin:  resubmitQueueBin,
		SubmitBin: resubmitSubmitBin,
	})

	w := report.NewJSONLWriter(os.Stdout, "", "")
	defer w.Close()

	resubmitted := 0
	for _, mr := range missing {
		rec, ok, err := resubmitOne(ctx, sched, mr.Sample, mr.Index, mr.DirectivePath)
		if err != nil {
			return err
		}
		if ok {
			resubmitted++
		}
		if err := w.WriteResubmit(ctx, rec); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write resubmit record", err)
		}
	}

	observability.CLILogger.Info("Resubmission completed",
		zap.String("report", reportPath),
		zap.Int("missing", len(missing)),
		zap.Int("resubmitted", resubmitted))
	return nil
}

// resolveReportPath picks the report to replay: the positional path,
// the --run registry entry, or the latest recorded run.
func resolveReportPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	registry := runlog.NewStore(runRegistryDir())
	if resubmitRunID != "" {
		rec, err := registry.Get(resubmitRunID)
		if err != nil {
			return "", exitError(foundry.ExitFileNotFound, "Run not found", err)
		}
		return rec.ReportPath, nil
	}

	rec, err := registry.Latest()
	if err != nil {
		return "", exitError(foundry.ExitFileReadError, "Failed to read run registry", err)
	}
	if rec == nil {
		return "", exitError(foundry.ExitFileNotFound, "No recorded runs",
			fmt.Errorf("run registry %s is empty", registry.RootDir()))
	}
	return rec.ReportPath, nil
}

// readMissingRecords decodes the missing-job records out of a JSONL
// report stream, ignoring every other record type.
func readMissingRecords(r io.Reader) ([]report.MissingRecord, error) {
	var missing []report.MissingRecord

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec report.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.Type != report.TypeMissing {
			continue
		}

		var mr report.MissingRecord
		if err := json.Unmarshal(rec.Data, &mr); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if mr.DirectivePath == "" {
			return nil, fmt.Errorf("line %d: missing record has no directive path", line)
		}
		missing = append(missing, mr)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return missing, nil
}

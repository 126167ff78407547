package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/boostedhh/condorcheck/pkg/runlog"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded check runs",
	Long: `List the check runs recorded in the local run registry, newest
first. Each run keeps its JSONL report next to the run record.

Example:
  condorcheck runs
  condorcheck runs --json
  condorcheck runs show <run-id>`,
	RunE: runRuns,
}

var runsJSON bool

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded check runs",
	RunE:  runRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsCmd.PersistentFlags().BoolVar(&runsJSON, "json", false, "Emit JSON instead of a table")
}

func runRuns(cmd *cobra.Command, args []string) error {
	registry := runlog.NewStore(runRegistryDir())
	records, err := registry.List()
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read run registry", err)
	}

	if runsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tYEAR\tSTATE\tSAMPLES\tMISSING\tRUNNING\tRESUBMITTED\tSTARTED")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			rec.RunID,
			rec.Year,
			rec.State,
			rec.SamplesChecked,
			rec.JobsMissing,
			rec.JobsRunning,
			rec.Resubmitted,
			rec.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	registry := runlog.NewStore(runRegistryDir())
	rec, err := registry.Get(args[0])
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Run not found", err)
	}

	if runsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	fmt.Printf("Run ID:       %s\n", rec.RunID)
	fmt.Printf("Year:         %s\n", rec.Year)
	fmt.Printf("State:        %s\n", rec.State)
	fmt.Printf("Store:        %s\n", rec.StoreType)
	fmt.Printf("Manifest:     %s\n", rec.ManifestPath)
	fmt.Printf("Report:       %s\n", rec.ReportPath)
	fmt.Printf("Started:      %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if rec.EndedAt != nil {
		fmt.Printf("Ended:        %s\n", rec.EndedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Printf("Samples:      %d\n", rec.SamplesChecked)
	fmt.Printf("Missing:      %d\n", rec.JobsMissing)
	fmt.Printf("Running:      %d\n", rec.JobsRunning)
	fmt.Printf("Warnings:     %d\n", rec.Warnings)
	fmt.Printf("Resubmitted:  %d\n", rec.Resubmitted)
	return nil
}

// Package cmd implements the condorcheck CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/boostedhh/condorcheck/internal/observability"
)

// appName is the binary and config identity.
const appName = "condorcheck"

// versionInfo holds build-time version metadata, set via SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for the version output.
// Called from main with ldflags-injected values.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootVerbose bool

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Reconcile condor batch jobs against their produced outputs",
	Long: `condorcheck reconciles the jobs a condor batch was submitted with
against the outputs it actually produced on storage, suppressing jobs
that are still in the queue. Missing jobs are reported as JSONL records
carrying the directive path needed to resubmit them.

Examples:
  condorcheck check --job check.yaml
  condorcheck resubmit --job check.yaml
  condorcheck runs
  condorcheck serve --port 8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if rootVerbose {
			observability.InitCLILogger("debug")
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
	_ = viper.BindPFlag("logging.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)",
		versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
}

// initConfig wires viper defaults and environment overrides.
func initConfig() {
	setDefaults()

	viper.SetEnvPrefix(strings.ToUpper(appName))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// setDefaults registers configuration defaults on the global viper.
func setDefaults() {
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.shutdown_timeout", "10s")

	viper.SetDefault("logging.level", "info")

	viper.SetDefault("registry.dir", "")
}

// Execute runs the root command under a signal-aware context and
// returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)",
		versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		observability.CLILogger.Error(err.Error())
		return exitCodeOf(err)
	}
	return 0
}

// codedError carries a foundry exit code through RunE returns so
// Execute can translate command failures into process exit codes.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

// exitError creates an error that causes the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &codedError{code: code, err: fmt.Errorf("%s: %w", message, err)}
}

// exitCodeOf extracts the exit code from an error chain, defaulting to 1.
func exitCodeOf(err error) int {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}

// ExitWithCode logs the error and terminates the process immediately.
// Reserved for commands that cannot return through RunE.
func ExitWithCode(logger *zap.Logger, code int, message string, err error) {
	logger.Error(message, zap.Error(err))
	os.Exit(code)
}

// runRegistryDir resolves the run registry location: the registry.dir
// config key when set, otherwise runs/ under the app data dir.
func runRegistryDir() string {
	if dir := viper.GetString("registry.dir"); dir != "" {
		return dir
	}
	return filepath.Join(gfconfig.GetAppDataDir(appName), "runs")
}

package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boostedhh/condorcheck/internal/config"
	"github.com/boostedhh/condorcheck/internal/observability"
	"github.com/boostedhh/condorcheck/internal/server"
	"github.com/boostedhh/condorcheck/pkg/runlog"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve recorded runs over HTTP",
	Long: `Start an HTTP server exposing the run registry: recorded check
runs, their summaries, and their JSONL reports.

Endpoints:
  GET /health            Liveness
  GET /version           Build version
  GET /runs              All recorded runs, newest first
  GET /runs/latest       Most recent run
  GET /runs/{id}         One run record
  GET /runs/{id}/report  The run's JSONL report

Example:
  condorcheck serve
  condorcheck serve --port 9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind address (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	overrides := map[string]any{}
	if serveHost != "" {
		overrides["server.host"] = serveHost
	}
	if servePort != 0 {
		overrides["server.port"] = servePort
	}

	cfg, err := config.Load(ctx, overrides)
	if err != nil {
		observability.CLILogger.Error("Failed to load configuration", zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	logger := observability.ServerLogger(cfg.Logging.Level)
	defer func() { _ = logger.Sync() }()

	registryDir := cfg.Registry.Dir
	if registryDir == "" {
		registryDir = runRegistryDir()
	}

	srv := server.New(cfg.Server, runlog.NewStore(registryDir), logger)
	srv.SetVersion(versionInfo.Version)

	logger.Info("Starting server",
		zap.String("addr", srv.Addr()),
		zap.String("registry_dir", registryDir))

	if err := srv.Start(ctx); err != nil {
		logger.Error("Server failed", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
	}
	return nil
}

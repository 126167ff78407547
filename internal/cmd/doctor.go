package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/boostedhh/condorcheck/internal/errors"
	"github.com/boostedhh/condorcheck/internal/observability"
	"github.com/boostedhh/condorcheck/pkg/manifest"
)

var doctorS3 bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the system and suggest fixes for common issues.

Examples:
  condorcheck doctor        # Full environment check
  condorcheck doctor --s3   # Also verify AWS credentials for S3 storage`,
	Run: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorS3, "s3", false, "Run S3 storage checks")
}

func runDoctor(cmd *cobra.Command, args []string) {
	observability.CLILogger.Info("=== " + appName + " doctor ===")
	observability.CLILogger.Info("")
	observability.CLILogger.Info("Running diagnostic checks...")
	observability.CLILogger.Info("")

	allChecks := true
	checkNum := 1
	totalChecks := 8
	if doctorS3 {
		totalChecks = 9
	}

	// Check 1: Go version
	goVersion := runtime.Version()
	if goVersion >= "go1.23" {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking Go version... ✅ %s", checkNum, totalChecks, goVersion),
			zap.String("go_version", goVersion))
	} else {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", checkNum, totalChecks, goVersion),
			zap.String("go_version", goVersion))
		allChecks = false
	}
	checkNum++

	// Check 2: Crucible access
	version := crucible.GetVersion()
	if version.Crucible != "" {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking Crucible access... ✅ v%s", checkNum, totalChecks, version.Crucible),
			zap.String("crucible_version", version.Crucible))
	} else {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking Crucible access... ❌ Cannot access Crucible", checkNum, totalChecks))
		ExitWithCode(observability.CLILogger, foundry.ExitExternalServiceUnavailable, "Cannot access Crucible",
			errwrap.NewExternalServiceError("Crucible service unavailable"))
		allChecks = false
	}
	checkNum++

	// Check 3: Gofulmen access
	if version.Gofulmen != "" {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking Gofulmen access... ✅ v%s", checkNum, totalChecks, version.Gofulmen),
			zap.String("gofulmen_version", version.Gofulmen))
	} else {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking Gofulmen access... ❌ Cannot access Gofulmen", checkNum, totalChecks))
		allChecks = false
	}
	checkNum++

	// Check 4: condor_q
	if path, err := exec.LookPath("condor_q"); err != nil {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking condor_q... ⚠️  not found in PATH", checkNum, totalChecks),
			zap.Error(err))
		allChecks = false
	} else {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking condor_q... ✅ %s", checkNum, totalChecks, path),
			zap.String("queue_bin", path))
	}
	checkNum++

	// Check 5: condor_submit
	if path, err := exec.LookPath("condor_submit"); err != nil {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking condor_submit... ⚠️  not found in PATH", checkNum, totalChecks),
			zap.Error(err))
		allChecks = false
	} else {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking condor_submit... ✅ %s", checkNum, totalChecks, path),
			zap.String("submit_bin", path))
	}
	checkNum++

	// Check 6: Site mounts
	sites := make([]string, 0, 2)
	for site := range manifest.SiteMounts() {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	mounted := make([]string, 0, len(sites))
	for _, site := range sites {
		mount := manifest.SiteMounts()[site]
		if info, err := os.Stat(mount); err == nil && info.IsDir() {
			mounted = append(mounted, fmt.Sprintf("%s (%s)", site, mount))
		}
	}
	if len(mounted) > 0 {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking site mounts... ✅ %s", checkNum, totalChecks, strings.Join(mounted, ", ")),
			zap.Strings("mounts", mounted))
	} else {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking site mounts... ⚠️  no site mount reachable (file store needs one, S3 gateways do not)", checkNum, totalChecks))
		allChecks = false
	}
	checkNum++

	// Check 7: Run registry directory
	registryDir := runRegistryDir()
	if err := os.MkdirAll(registryDir, 0o755); err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking run registry... ❌ Cannot create %s", checkNum, totalChecks, registryDir),
			zap.Error(err))
		ExitWithCode(observability.CLILogger, foundry.ExitFileWriteError, "Cannot create run registry directory",
			errwrap.WrapInternal(cmd.Context(), err, "Cannot create run registry directory"))
		allChecks = false
	} else {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking run registry... ✅ %s", checkNum, totalChecks, registryDir),
			zap.String("registry_dir", registryDir))
	}
	checkNum++

	// Check 8: Environment
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking environment... ✅ %s/%s", checkNum, totalChecks, runtime.GOOS, runtime.GOARCH),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH))
	checkNum++

	if doctorS3 {
		allChecks = runS3Checks(cmd.Context(), checkNum, totalChecks) && allChecks
	}

	observability.CLILogger.Info("")
	if allChecks {
		observability.CLILogger.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", appName))
	} else {
		observability.CLILogger.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	observability.CLILogger.Info("")
	observability.CLILogger.Info("=== End Diagnostics ===")
}

// runS3Checks verifies AWS credentials are resolvable for S3 storage.
func runS3Checks(ctx context.Context, checkNum, totalChecks int) bool {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("S3 Storage Checks:")

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking AWS credentials... ❌ Cannot load AWS config", checkNum, totalChecks),
			zap.Error(err))
		printAWSCredentialsHelp()
		return false
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking AWS credentials... ❌ Cannot retrieve credentials", checkNum, totalChecks),
			zap.Error(err))
		printAWSCredentialsHelp()
		return false
	}

	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking AWS credentials... ✅ Found credentials", checkNum, totalChecks),
		zap.String("access_key", maskAccessKey(creds.AccessKeyID)),
		zap.String("source", creds.Source))
	return true
}

// maskAccessKey masks all but the last 4 characters of an access key.
func maskAccessKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// printAWSCredentialsHelp prints help for configuring AWS credentials.
func printAWSCredentialsHelp() {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("To configure credentials for the storage gateway:")
	observability.CLILogger.Info("  1. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY environment variables, or")
	observability.CLILogger.Info("  2. Run 'aws configure' to set up a profile")
	observability.CLILogger.Info("")
	observability.CLILogger.Info("For site gateways (XRootD S3, MinIO, dCache), also set the endpoint")
	observability.CLILogger.Info("in the manifest's storage.endpoint field.")
	observability.CLILogger.Info("")
}

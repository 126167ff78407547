// Package manifest provides loading and validation of condorcheck check manifests.
//
// A check manifest is a YAML or JSON file that configures one batch-completion
// check: the submission directory, output storage, sample filters, and the
// scheduler binaries to shell out to.
//
// Manifests are validated against a JSON Schema to ensure correctness before
// execution. The schema enforces strict typing and disallows unknown properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	year: "2018"
//	batch:
//	  site: lpc
//	  user: rkansal
//	  analysis: bbbb
//	  processor: skimmer
//	  tag: Apr14
//	submission:
//	  root: /work/submit/condor/skimmer/Apr14
//	samples:
//	  includes:
//	    - "QCD_HT*"
//	check:
//	  parquet: true
//	  running: true
//
// The output location is either derived from the batch coordinates
// (site mount + store/user/<user>/<analysis>/<processor>/<tag>/<year>)
// or spelled out under storage.
package manifest

import "fmt"

// Manifest represents a validated check manifest.
//
// Required fields are Version, Year, and Submission. The remaining sections
// are optional with sensible defaults.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	// Example: "https://schemas.boostedhh.dev/condorcheck/v1.0.0/check-manifest.schema.json"
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Year is the data-taking year the check covers (e.g. "2018", "2022EE").
	Year string `json:"year" yaml:"year"`

	// Batch names the coordinates the output tree is keyed by. Optional
	// when storage spells out the locations directly.
	Batch BatchConfig `json:"batch,omitempty" yaml:"batch,omitempty"`

	// Submission locates the condor submission directory.
	Submission SubmissionConfig `json:"submission" yaml:"submission"`

	// Storage configures the output store and listing layout.
	Storage StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`

	// Samples configures sample filtering by glob patterns (optional).
	Samples SamplesConfig `json:"samples,omitempty" yaml:"samples,omitempty"`

	// Check configures check behavior (optional).
	Check CheckConfig `json:"check,omitempty" yaml:"check,omitempty"`

	// Scheduler configures the batch scheduler binaries (optional).
	Scheduler SchedulerConfig `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`

	// Output configures the report destination (optional).
	Output OutputConfig `json:"output,omitempty" yaml:"output,omitempty"`
}

// BatchConfig names the coordinates a batch's output tree is keyed by:
// `store/user/<user>/<analysis>/<processor>/<tag>/<year>` under the
// site mount.
type BatchConfig struct {
	// Site is the storage site, "lpc" or "ucsd".
	Site string `json:"site,omitempty" yaml:"site,omitempty"`

	// User is the storage username owning the output tree.
	User string `json:"user,omitempty" yaml:"user,omitempty"`

	// Analysis selects the analysis, "bbbb" or "bbtautau".
	Analysis string `json:"analysis,omitempty" yaml:"analysis,omitempty"`

	// Processor is the processor name the batch ran.
	Processor string `json:"processor,omitempty" yaml:"processor,omitempty"`

	// Tag is the free-text batch tag.
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty"`
}

// complete reports whether every coordinate needed for path derivation
// is present.
func (b BatchConfig) complete() bool {
	return b.User != "" && b.Analysis != "" && b.Processor != "" && b.Tag != ""
}

// SubmissionConfig locates the condor submission directory.
type SubmissionConfig struct {
	// Root is the directory holding the .jdl directives and logs/.
	Root string `json:"root" yaml:"root"`
}

// StorageConfig configures the output store and listing roots.
type StorageConfig struct {
	// Store is the storage backend, "file" or "s3". Default: "file".
	Store string `json:"store,omitempty" yaml:"store,omitempty"`

	// BaseDir is the filesystem root for the file store (EOS/ceph mount).
	BaseDir string `json:"base_dir,omitempty" yaml:"base_dir,omitempty"`

	// Bucket is the bucket name for the s3 store.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Region is the bucket region. Optional.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint is a custom endpoint URL for S3-compatible gateways. Optional.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Profile is the credential profile name. Optional.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`

	// OutputRoot is the store prefix holding one subdirectory per
	// sample. Derived from the batch coordinates when empty.
	OutputRoot string `json:"output_root,omitempty" yaml:"output_root,omitempty"`

	// PrimaryDir is the per-sample subdirectory holding the pickles
	// listing. Default: "pickles".
	PrimaryDir string `json:"primary_dir,omitempty" yaml:"primary_dir,omitempty"`

	// SecondaryDir is the per-sample subdirectory holding the parquet
	// listing. Default: "parquet".
	SecondaryDir string `json:"secondary_dir,omitempty" yaml:"secondary_dir,omitempty"`
}

// SamplesConfig configures sample filtering by glob patterns.
type SamplesConfig struct {
	// Includes is a list of glob patterns a sample must match.
	// Empty means all samples.
	Includes []string `json:"includes,omitempty" yaml:"includes,omitempty"`

	// Excludes is a list of glob patterns a sample must not match. Optional.
	Excludes []string `json:"excludes,omitempty" yaml:"excludes,omitempty"`
}

// CheckConfig configures check behavior.
//
// All fields are optional with defaults applied during loading.
type CheckConfig struct {
	// Parquet enables the secondary parquet-listing check.
	// Default: true. Trigger-style batches set this to false.
	Parquet *bool `json:"parquet,omitempty" yaml:"parquet,omitempty"`

	// Running enables the live condor queue check; jobs found in the
	// queue are suppressed from the missing report. Default: false.
	Running bool `json:"running,omitempty" yaml:"running,omitempty"`

	// SubmitMissing resubmits every missing job's directive.
	// Default: false.
	SubmitMissing bool `json:"submit_missing,omitempty" yaml:"submit_missing,omitempty"`

	// RateLimit is the maximum storage requests per second (0 = unlimited).
	// Default: 0.
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`

	// PageSize is the listing page size. Range: 1-10000. Default: 1000.
	PageSize int `json:"page_size,omitempty" yaml:"page_size,omitempty"`
}

// SchedulerConfig configures the batch scheduler binaries.
type SchedulerConfig struct {
	// QueueBin is the queue listing binary. Default: "condor_q".
	QueueBin string `json:"queue_bin,omitempty" yaml:"queue_bin,omitempty"`

	// SubmitBin is the submission binary. Default: "condor_submit".
	SubmitBin string `json:"submit_bin,omitempty" yaml:"submit_bin,omitempty"`
}

// OutputConfig configures the report destination.
type OutputConfig struct {
	// Destination is the report target.
	// Values: "stdout" or "file:/path/to/report.jsonl"
	// Default: "stdout".
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`
}

// Default values for optional configuration fields.
const (
	// DefaultVersion is the current manifest schema version.
	DefaultVersion = "1.0"

	// StoreFile and StoreS3 are the supported storage backends.
	StoreFile = "file"
	StoreS3   = "s3"

	// DefaultStore is the default storage backend.
	DefaultStore = StoreFile

	// DefaultPageSize is the default listing page size.
	DefaultPageSize = 1000

	// DefaultQueueBin is the default queue listing binary.
	DefaultQueueBin = "condor_q"

	// DefaultSubmitBin is the default submission binary.
	DefaultSubmitBin = "condor_submit"

	// DefaultDestination is the default report destination.
	DefaultDestination = "stdout"

	// DefaultParquet is the default value for the parquet check.
	DefaultParquet = true

	// DefaultPrimaryDir is the per-sample pickles listing subdirectory.
	DefaultPrimaryDir = "pickles"

	// DefaultSecondaryDir is the per-sample parquet listing subdirectory.
	DefaultSecondaryDir = "parquet"
)

// siteMounts maps a site to its fuse mount for the file store.
var siteMounts = map[string]string{
	"lpc":  "/eos/uscms",
	"ucsd": "/ceph/cms",
}

// SiteMounts returns the known site fuse mounts, keyed by site name.
func SiteMounts() map[string]string {
	mounts := make(map[string]string, len(siteMounts))
	for site, mount := range siteMounts {
		mounts[site] = mount
	}
	return mounts
}

// ApplyDefaults fills in default values for optional fields.
//
// This should be called after loading and validating the manifest to ensure
// all optional fields have sensible values.
func (m *Manifest) ApplyDefaults() {
	if m.Storage.Store == "" {
		m.Storage.Store = DefaultStore
	}

	if m.Check.Parquet == nil {
		defaultParquet := DefaultParquet
		m.Check.Parquet = &defaultParquet
	}
	if m.Check.PageSize == 0 {
		m.Check.PageSize = DefaultPageSize
	}
	// RateLimit: 0 is a valid value (unlimited), so no default needed

	if m.Scheduler.QueueBin == "" {
		m.Scheduler.QueueBin = DefaultQueueBin
	}
	if m.Scheduler.SubmitBin == "" {
		m.Scheduler.SubmitBin = DefaultSubmitBin
	}

	if m.Storage.PrimaryDir == "" {
		m.Storage.PrimaryDir = DefaultPrimaryDir
	}
	if m.Storage.SecondaryDir == "" {
		m.Storage.SecondaryDir = DefaultSecondaryDir
	}

	if m.Output.Destination == "" {
		m.Output.Destination = DefaultDestination
	}
}

// Resolve derives the storage locations from the batch coordinates and
// verifies the result is actionable. Called after ApplyDefaults.
func (m *Manifest) Resolve() error {
	if m.Storage.OutputRoot == "" {
		if !m.Batch.complete() {
			return fmt.Errorf("manifest: storage.output_root is empty and batch coordinates (user, analysis, processor, tag) are incomplete")
		}
		m.Storage.OutputRoot = fmt.Sprintf("store/user/%s/%s/%s/%s/%s",
			m.Batch.User, m.Batch.Analysis, m.Batch.Processor, m.Batch.Tag, m.Year)
	}

	switch m.Storage.Store {
	case StoreFile:
		if m.Storage.BaseDir == "" {
			mount, ok := siteMounts[m.Batch.Site]
			if !ok {
				return fmt.Errorf("manifest: storage.base_dir is empty and batch.site %q has no known mount", m.Batch.Site)
			}
			m.Storage.BaseDir = mount
		}
	case StoreS3:
		if m.Storage.Bucket == "" {
			return fmt.Errorf("manifest: storage.bucket is required for the s3 store")
		}
	}
	return nil
}

// ParquetEnabled returns whether the secondary parquet check is enabled.
// Returns the configured value, or DefaultParquet if not set.
func (c *CheckConfig) ParquetEnabled() bool {
	if c.Parquet == nil {
		return DefaultParquet
	}
	return *c.Parquet
}

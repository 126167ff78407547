package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostedhh/condorcheck/pkg/jobfile"
	"github.com/boostedhh/condorcheck/pkg/manifest"
	"github.com/boostedhh/condorcheck/pkg/reconcile"
	"github.com/boostedhh/condorcheck/pkg/runlog"
)

func testManifest() *manifest.Manifest {
	m := &manifest.Manifest{
		Version:    "1.0",
		Year:       "2017",
		Submission: manifest.SubmissionConfig{Root: "/data/jobs/condor/skimmer/Apr14"},
		Storage: manifest.StorageConfig{
			Store:      "file",
			BaseDir:    "/eos/uscms",
			OutputRoot: "store/user/rkansal/bbbb/skimmer/Apr14/2017",
		},
	}
	m.ApplyDefaults()
	return m
}

func TestShowCheckPlan(t *testing.T) {
	tests := []struct {
		name     string
		manifest *manifest.Manifest
		contains []string
	}{
		{
			name:     "file store defaults",
			manifest: testManifest(),
			contains: []string{
				"Check Plan (dry-run)",
				"Year:        2017",
				"Submission:  /data/jobs/condor/skimmer/Apr14",
				"Store:       file",
				"Base Dir:    /eos/uscms",
				"Outputs:     store/user/rkansal/bbbb/skimmer/Apr14/2017",
				"Pickles:     pickles",
				"Parquet:     parquet",
				"Queue Check: false",
				"Resubmit:    false",
				"Scheduler:   condor_q / condor_submit",
				"Output:      stdout",
			},
		},
		{
			name: "s3 store with endpoint and samples",
			manifest: func() *manifest.Manifest {
				m := testManifest()
				m.Storage.Store = "s3"
				m.Storage.Bucket = "cms-output"
				m.Storage.Endpoint = "https://gateway.t2.example.org"
				m.Samples.Includes = []string{"QCD_HT*"}
				m.Samples.Excludes = []string{"*_ext"}
				m.Check.RateLimit = 20
				return m
			}(),
			contains: []string{
				"Store:       s3",
				"Bucket:      cms-output",
				"Endpoint:    https://gateway.t2.example.org",
				"Include: QCD_HT*",
				"Exclude: *_ext",
				"Rate Limit:  20.0 req/s",
			},
		},
		{
			name: "batch coordinates and disabled parquet",
			manifest: func() *manifest.Manifest {
				m := testManifest()
				m.Batch = manifest.BatchConfig{
					Site: "lpc", User: "rkansal", Analysis: "bbbb",
					Processor: "skimmer", Tag: "Apr14",
				}
				enabled := false
				m.Check.Parquet = &enabled
				return m
			}(),
			contains: []string{
				"Processor:   skimmer",
				"Tag:         Apr14",
				"Site:        lpc",
				"Parquet:     disabled",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Capture stdout
			old := os.Stdout
			r, w, _ := os.Pipe()
			os.Stdout = w

			err := showCheckPlan(tt.manifest)
			require.NoError(t, err)

			require.NoError(t, w.Close())
			os.Stdout = old

			var buf bytes.Buffer
			_, _ = buf.ReadFrom(r)
			output := buf.String()

			for _, want := range tt.contains {
				assert.Contains(t, output, want, "output should contain %q", want)
			}
		})
	}
}

func TestLoadCheckManifest_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "check.yaml")
	content := `version: "1.0"
year: "2018"
submission:
  root: /data/jobs/condor/skimmer/Apr14
storage:
  store: file
  base_dir: /eos/uscms
  output_root: store/user/rkansal/bbbb/skimmer/Apr14/2018
samples:
  excludes:
    - "*_old"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	opts := &checkFlags{
		jobPath:   path,
		output:    "report.jsonl",
		samples:   []string{"TTbar*"},
		excludes:  []string{"*_ext"},
		noParquet: true,
	}
	m, err := loadCheckManifest(nil, opts)
	require.NoError(t, err)

	assert.Equal(t, "report.jsonl", m.Output.Destination)
	assert.Equal(t, []string{"TTbar*"}, m.Samples.Includes)
	assert.Equal(t, []string{"*_old", "*_ext"}, m.Samples.Excludes)
	assert.False(t, m.Check.ParquetEnabled())
}

func TestLoadCheckManifest_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "check.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"1.0\"\n"), 0o644))

	_, err := loadCheckManifest(nil, &checkFlags{jobPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid manifest")
}

func TestManifestFromFlags(t *testing.T) {
	t.Run("complete flag set", func(t *testing.T) {
		m, err := manifestFromFlags(&checkFlags{
			processor: "skimmer",
			analysis:  "bbbb",
			site:      "lpc",
			tag:       "Apr14",
			year:      "2018",
			user:      "rkansal",
		})
		require.NoError(t, err)

		assert.Equal(t, "2018", m.Year)
		assert.Equal(t, "skimmer", m.Batch.Processor)
		assert.Equal(t, filepath.Join("condor", "skimmer", "Apr14"), m.Submission.Root)

		require.NoError(t, m.Resolve())
		assert.Equal(t, "store/user/rkansal/bbbb/skimmer/Apr14/2018", m.Storage.OutputRoot)
		assert.Equal(t, "/eos/uscms", m.Storage.BaseDir)
	})

	t.Run("missing required flags", func(t *testing.T) {
		_, err := manifestFromFlags(&checkFlags{processor: "skimmer"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--job")
	})

	t.Run("bad analysis rejected by schema", func(t *testing.T) {
		_, err := manifestFromFlags(&checkFlags{
			processor: "skimmer",
			analysis:  "dijets",
			site:      "lpc",
			tag:       "Apr14",
			year:      "2018",
			user:      "rkansal",
		})
		require.Error(t, err)
	})
}

func TestCreateReportWriter_Stdout(t *testing.T) {
	registry := runlog.NewStore(t.TempDir())
	require.NoError(t, os.MkdirAll(registry.RunDir("run-1"), 0o755))

	m := testManifest()
	writer, cleanup, err := createReportWriter(m, registry, "run-1", false)
	require.NoError(t, err)
	require.NotNil(t, writer)
	cleanup()

	// The registry copy exists even for stdout destinations.
	_, err = os.Stat(registry.ReportPath("run-1"))
	assert.NoError(t, err)
}

func TestCreateReportWriter_File(t *testing.T) {
	registry := runlog.NewStore(t.TempDir())
	require.NoError(t, os.MkdirAll(registry.RunDir("run-2"), 0o755))

	dest := filepath.Join(t.TempDir(), "report.jsonl")
	m := testManifest()
	m.Output.Destination = "file:" + dest

	writer, cleanup, err := createReportWriter(m, registry, "run-2", false)
	require.NoError(t, err)
	require.NotNil(t, writer)
	cleanup()

	_, err = os.Stat(dest)
	assert.NoError(t, err)
}

func TestCreateStore_UnknownFallsBackToFile(t *testing.T) {
	m := testManifest()
	m.Storage.BaseDir = t.TempDir()

	store, err := createStore(t.Context(), m)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, "file", string(store.Type()))
}

func TestRenderSummaryTable(t *testing.T) {
	res := &reconcile.Result{
		Missing: []reconcile.MissingJob{
			{
				Job:           jobfile.Job{Year: "2018", Sample: "ttbar", Index: 2},
				Missing:       []reconcile.Kind{reconcile.KindPrimary},
				DirectivePath: "/work/submit/2018_ttbar_2.jdl",
			},
		},
		Warnings: []reconcile.Warning{
			{Sample: "wjets", Reason: reconcile.WarnNoExpectedCount},
		},
	}
	in := reconcile.Inputs{
		Samples:  []string{"ttbar", "wjets"},
		Expected: map[string]int{"ttbar": 3},
	}

	var buf bytes.Buffer
	renderSummaryTable(&buf, res, in, 1)
	out := buf.String()

	assert.Contains(t, out, "ttbar")
	assert.Contains(t, out, "/work/submit/2018_ttbar_2.jdl")
	assert.Contains(t, out, "warning: wjets")
	assert.Contains(t, out, "2 samples, 3 jobs expected, 1 missing, 0 running, 1 resubmitted")
}

func TestCheckCommandRegistered(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, strings.Fields(c.Use)[0])
	}
	for _, want := range []string{"check", "resubmit", "runs", "serve", "doctor"} {
		assert.Contains(t, names, want)
	}
}

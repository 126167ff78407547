package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMissingRecords(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"condorcheck.warning.v1","ts":"2026-04-14T12:00:00Z","run_id":"r1","data":{"sample":"wjets","reason":"no submission directives found; sample skipped"}}`,
		`{"type":"condorcheck.missing.v1","ts":"2026-04-14T12:00:01Z","run_id":"r1","data":{"sample":"ttbar","index":2,"missing":["primary"],"directive_path":"/work/submit/2018_ttbar_2.jdl","log_path":"/work/submit/logs/2018_ttbar_2.err"}}`,
		`{"type":"condorcheck.missing.v1","ts":"2026-04-14T12:00:02Z","run_id":"r1","data":{"sample":"qcd_ht700","index":0,"missing":["primary","secondary"],"listing_absent":true,"directive_path":"/work/submit/2018_qcd_ht700_0.jdl","log_path":"/work/submit/logs/2018_qcd_ht700_0.err"}}`,
		`{"type":"condorcheck.summary.v1","ts":"2026-04-14T12:00:03Z","run_id":"r1","data":{"samples_checked":3,"jobs_missing":2}}`,
	}, "\n")

	missing, err := readMissingRecords(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, missing, 2)
	assert.Equal(t, "ttbar", missing[0].Sample)
	assert.Equal(t, 2, missing[0].Index)
	assert.Equal(t, "/work/submit/2018_ttbar_2.jdl", missing[0].DirectivePath)
	assert.Equal(t, "qcd_ht700", missing[1].Sample)
	assert.True(t, missing[1].ListingAbsent)
}

func TestReadMissingRecords_Empty(t *testing.T) {
	missing, err := readMissingRecords(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestReadMissingRecords_BadJSON(t *testing.T) {
	_, err := readMissingRecords(strings.NewReader("not json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestReadMissingRecords_NoDirectivePath(t *testing.T) {
	input := `{"type":"condorcheck.missing.v1","ts":"2026-04-14T12:00:01Z","run_id":"r1","data":{"sample":"ttbar","index":2}}`
	_, err := readMissingRecords(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directive path")
}

package scheduler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostedhh/condorcheck/pkg/jobfile"
)

const queueListing = `

-- Schedd: lpcschedd3.fnal.gov : <131.225.188.55:9618?... @ 04/24/24 11:02:14
 ID          OWNER    SUBMITTED     RUN_TIME ST PRI SIZE      CMD
52871203.0   rkansal  4/24 09:11   0+01:50:33 R  0   2929.7 2018_ttbar_2.sh
52871204.0   rkansal  4/24 09:11   0+01:50:12 I  0   0.0    2018_QCD_HT700to1000_0.sh
52871205.0   rkansal  4/24 09:12   0+00:00:00 H  0   0.0    unrelated_workflow.sh
52871206.0   rkansal  4/24 09:12   0+00:12:41 R  0   1820.2 some_other_binary

3 jobs; 0 completed, 0 removed, 1 idle, 2 running, 1 held, 0 suspended
`

func TestParseQueue(t *testing.T) {
	running, err := ParseQueue(strings.NewReader(queueListing))
	require.NoError(t, err)

	assert.Len(t, running, 2)
	assert.True(t, running.Has(jobfile.Job{Year: "2018", Sample: "ttbar", Index: 2}))
	assert.True(t, running.Has(jobfile.Job{Year: "2018", Sample: "QCD_HT700to1000", Index: 0}))
}

func TestParseQueue_Empty(t *testing.T) {
	running, err := ParseQueue(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, running)
}

func TestParseQueue_SkipsForeignScripts(t *testing.T) {
	// A .sh name that doesn't follow year_sample_index belongs to some
	// other workflow and must not poison the running set.
	running, err := ParseQueue(strings.NewReader("1.0 user 4/24 09:11 R 0 1.0 run.sh\n"))
	require.NoError(t, err)
	assert.Empty(t, running)
}

func TestNewCondor_Defaults(t *testing.T) {
	c := NewCondor(CondorConfig{})
	assert.Equal(t, DefaultQueueBin, c.queueBin)
	assert.Equal(t, DefaultSubmitBin, c.submitBin)

	c = NewCondor(CondorConfig{QueueBin: "my_q", SubmitBin: "my_submit"})
	assert.Equal(t, "my_q", c.queueBin)
	assert.Equal(t, "my_submit", c.submitBin)
}

func TestSubmitOutcome_OK(t *testing.T) {
	assert.True(t, SubmitOutcome{ExitCode: 0}.OK())
	assert.False(t, SubmitOutcome{ExitCode: 1}.OK())
}

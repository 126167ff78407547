package jobfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Job
	}{
		{
			name:  "simple sample",
			input: "2018_ttbar_4.jdl",
			want:  Job{Year: "2018", Sample: "ttbar", Index: 4},
		},
		{
			name:  "sample with underscores",
			input: "2022EE_QCD_HT700to1000_12.jdl",
			want:  Job{Year: "2022EE", Sample: "QCD_HT700to1000", Index: 12},
		},
		{
			name:  "job script extension",
			input: "2018_ttbar_0.sh",
			want:  Job{Year: "2018", Sample: "ttbar", Index: 0},
		},
		{
			name:  "bare name without extension",
			input: "2018_ttbar_7",
			want:  Job{Year: "2018", Sample: "ttbar", Index: 7},
		},
		{
			name:  "name with leading path",
			input: "condor/skimmer/Apr24/2018_ttbar_3.jdl",
			want:  Job{Year: "2018", Sample: "ttbar", Index: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJobName(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseJobName_Malformed(t *testing.T) {
	for _, input := range []string{
		"",
		"ttbar.jdl",
		"2018_ttbar.jdl",
		"2018_ttbar_x.jdl",
		"2018_ttbar_-1.jdl",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseJobName(input)
			assert.ErrorIs(t, err, ErrBadJobName)
		})
	}
}

func TestJobName_RoundTrip(t *testing.T) {
	j := Job{Year: "2017", Sample: "QCD_HT1000to1500", Index: 42}

	parsed, err := ParseJobName(j.Name())
	require.NoError(t, err)
	assert.Equal(t, j, parsed)
}

func TestJobPaths(t *testing.T) {
	j := Job{Year: "2018", Sample: "ttbar", Index: 2}

	assert.Equal(t, "condor/skimmer/Apr24/2018_ttbar_2.jdl", j.DirectivePath("condor/skimmer/Apr24"))
	assert.Equal(t, "condor/skimmer/Apr24/logs/2018_ttbar_2.err", j.LogPath("condor/skimmer/Apr24"))
}

func TestParseArtifactIndex(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"out_12.parquet", 12},
		{"out_0.pkl", 0},
		{"nano_3.pkl.gz", 3},
		{"2018_ttbar_5.parquet", 5},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseArtifactIndex(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArtifactIndex_Malformed(t *testing.T) {
	for _, input := range []string{"out.parquet", "out_x.parquet", ""} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseArtifactIndex(input)
			assert.ErrorIs(t, err, ErrBadArtifactName)
		})
	}
}

func TestNameKindHelpers(t *testing.T) {
	assert.True(t, IsDirective("2018_ttbar_0.jdl"))
	assert.False(t, IsDirective("2018_ttbar_0.sh"))
	assert.True(t, IsJobScript("2018_ttbar_0.sh"))
	assert.False(t, IsJobScript("2018_ttbar_0.err"))
}

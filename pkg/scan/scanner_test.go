package scan

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostedhh/condorcheck/pkg/jobfile"
	"github.com/boostedhh/condorcheck/pkg/match"
	"github.com/boostedhh/condorcheck/pkg/reconcile"
	"github.com/boostedhh/condorcheck/pkg/storage"
)

// fakeStore serves a fixed key set. Listings return everything in one
// page, which is enough for scanner behavior tests.
type fakeStore struct {
	keys []string
}

func newFakeStore(keys ...string) *fakeStore {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	return &fakeStore{keys: sorted}
}

func (f *fakeStore) List(_ context.Context, opts storage.ListOptions) (*storage.ListResult, error) {
	res := &storage.ListResult{}
	for _, key := range f.keys {
		if strings.HasPrefix(key, opts.Prefix) {
			res.Objects = append(res.Objects, storage.ObjectSummary{Key: key})
		}
	}
	return res, nil
}

func (f *fakeStore) Head(_ context.Context, key string) (*storage.ObjectMeta, error) {
	for _, k := range f.keys {
		if k == key {
			return &storage.ObjectMeta{ObjectSummary: storage.ObjectSummary{Key: k}}, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) PrefixExists(_ context.Context, prefix string) (bool, error) {
	for _, key := range f.keys {
		if strings.HasPrefix(key, prefix) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListWithDelimiter(_ context.Context, opts storage.ListWithDelimiterOptions) (*storage.ListWithDelimiterResult, error) {
	res := &storage.ListWithDelimiterResult{}
	seen := map[string]bool{}
	for _, key := range f.keys {
		if !strings.HasPrefix(key, opts.Prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, opts.Prefix)
		if i := strings.Index(rest, opts.Delimiter); i >= 0 {
			cp := opts.Prefix + rest[:i+1]
			if !seen[cp] {
				seen[cp] = true
				res.CommonPrefixes = append(res.CommonPrefixes, cp)
			}
		} else {
			res.Objects = append(res.Objects, storage.ObjectSummary{Key: key})
		}
	}
	return res, nil
}

func (f *fakeStore) Type() storage.StoreType { return storage.StoreFile }
func (f *fakeStore) Close() error            { return nil }

func TestExpectedCounts(t *testing.T) {
	submission := newFakeStore(
		"2018_ttbar_0.jdl",
		"2018_ttbar_1.jdl",
		"2018_ttbar_0.sh",
		"2018_qcd_ht700_0.jdl",
		"2017_ttbar_0.jdl",
		"logs/2018_ttbar_0.err",
	)
	s, err := New(submission, newFakeStore(), Config{Year: "2018"})
	require.NoError(t, err)

	samples, counts, err := s.ExpectedCounts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"qcd_ht700", "ttbar"}, samples)
	assert.Equal(t, map[string]int{"ttbar": 2, "qcd_ht700": 1}, counts)
	assert.Empty(t, s.SkippedDirectives())
}

func TestExpectedCounts_GapsSizeByMaxIndex(t *testing.T) {
	// A sample is sized by its highest directive index, not by how
	// many directive files happen to survive in the directory.
	submission := newFakeStore(
		"2018_ttbar_0.jdl",
		"2018_ttbar_4.jdl",
	)
	s, err := New(submission, newFakeStore(), Config{Year: "2018"})
	require.NoError(t, err)

	_, counts, err := s.ExpectedCounts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"ttbar": 5}, counts)
}

func TestExpectedCounts_RecordsUndecodableNames(t *testing.T) {
	submission := newFakeStore(
		"2018_ttbar_0.jdl",
		"notes.jdl",
	)
	s, err := New(submission, newFakeStore(), Config{Year: "2018"})
	require.NoError(t, err)

	samples, _, err := s.ExpectedCounts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ttbar"}, samples)
	assert.Equal(t, []string{"notes.jdl"}, s.SkippedDirectives())
}

func TestExpectedCountsWithMatcher(t *testing.T) {
	submission := newFakeStore(
		"2018_ttbar_0.jdl",
		"2018_qcd_ht700_0.jdl",
	)
	m, err := match.New(match.Config{Includes: []string{"ttbar*"}})
	require.NoError(t, err)

	s, err := New(submission, newFakeStore(), Config{Year: "2018", Matcher: m})
	require.NoError(t, err)

	samples, counts, err := s.ExpectedCounts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ttbar"}, samples)
	assert.Equal(t, map[string]int{"ttbar": 1}, counts)
}

func TestOutputs(t *testing.T) {
	output := newFakeStore(
		"out/2018/ttbar/pickles/ttbar_0.pkl",
		"out/2018/ttbar/pickles/ttbar_2.pkl",
		"out/2018/ttbar/pickles/README.txt",
	)
	s, err := New(newFakeStore(), output, Config{
		Year:   "2018",
		Layout: Layout{OutputRoot: "out/2018"},
	})
	require.NoError(t, err)

	produced, absent, err := s.Outputs(context.Background(), reconcile.KindPrimary, []string{"ttbar", "qcd_ht700"})
	require.NoError(t, err)

	assert.True(t, produced["ttbar"].Has(0))
	assert.False(t, produced["ttbar"].Has(1))
	assert.True(t, produced["ttbar"].Has(2))
	assert.False(t, absent["ttbar"])

	assert.True(t, absent["qcd_ht700"])
	assert.Len(t, produced["qcd_ht700"], 0)
}

func TestOutputsUnknownKind(t *testing.T) {
	s, err := New(newFakeStore(), newFakeStore(), Config{Year: "2018"})
	require.NoError(t, err)

	_, _, err = s.Outputs(context.Background(), reconcile.Kind("ntuples"), nil)
	assert.Error(t, err)
}

func TestDiscoverSamples(t *testing.T) {
	output := newFakeStore(
		"out/2018/ttbar/pickles/ttbar_0.pkl",
		"out/2018/qcd_ht700/pickles/qcd_ht700_0.pkl",
		"out/2018/stray.txt",
	)
	s, err := New(newFakeStore(), output, Config{
		Year:   "2018",
		Layout: Layout{OutputRoot: "out/2018"},
	})
	require.NoError(t, err)

	samples, err := s.DiscoverSamples(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"qcd_ht700", "ttbar"}, samples)
}

func TestGather(t *testing.T) {
	submission := newFakeStore(
		"2018_ttbar_0.jdl",
		"2018_ttbar_1.jdl",
		"2018_ttbar_2.jdl",
		"2018_qcd_ht700_0.jdl",
	)
	output := newFakeStore(
		"out/2018/ttbar/pickles/ttbar_0.pkl",
		"out/2018/ttbar/pickles/ttbar_2.pkl",
		"out/2018/ttbar/parquet/ttbar_0.parquet",
		"out/2018/ttbar/parquet/ttbar_2.parquet",
		"out/2018/qcd_ht700/pickles/qcd_ht700_0.pkl",
	)
	s, err := New(submission, output, Config{
		Year: "2018",
		Layout: Layout{
			SubmissionRoot: "/work/submit/2018",
			OutputRoot:     "out/2018",
		},
		SecondaryRequired: true,
	})
	require.NoError(t, err)

	running := reconcile.RunningSet{
		{Year: "2018", Sample: "ttbar", Index: 1}: {},
	}
	in, err := s.Gather(context.Background(), running)
	require.NoError(t, err)

	assert.Equal(t, "2018", in.Year)
	assert.Equal(t, []string{"qcd_ht700", "ttbar"}, in.Samples)
	assert.Equal(t, "/work/submit/2018", in.SubmissionRoot)

	res := reconcile.Reconcile(in)

	// ttbar index 1 is in the queue, 0 and 2 are complete, so nothing
	// is missing for ttbar. qcd_ht700 has no parquet listing at all.
	assert.Equal(t, []jobfile.Job{{Year: "2018", Sample: "ttbar", Index: 1}}, res.Running)
	require.Len(t, res.Missing, 1)
	assert.Equal(t, "qcd_ht700", res.Missing[0].Job.Sample)
	assert.True(t, res.Missing[0].ListingAbsent)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, reconcile.WarnSecondaryListingAbsent, res.Warnings[0].Reason)
}

func TestGather_SampleOnlyInStorageIsWarned(t *testing.T) {
	// wjets has outputs on storage but no submission directives, so
	// the check cannot be sized for it. It must surface loudly, not
	// vanish.
	submission := newFakeStore(
		"2018_ttbar_0.jdl",
	)
	output := newFakeStore(
		"out/2018/ttbar/pickles/ttbar_0.pkl",
		"out/2018/wjets/pickles/wjets_0.pkl",
	)
	s, err := New(submission, output, Config{
		Year:   "2018",
		Layout: Layout{SubmissionRoot: "/work/submit/2018", OutputRoot: "out/2018"},
	})
	require.NoError(t, err)

	in, err := s.Gather(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ttbar", "wjets"}, in.Samples)

	res := reconcile.Reconcile(in)
	assert.Empty(t, res.Missing)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "wjets", res.Warnings[0].Sample)
	assert.Equal(t, reconcile.WarnNoExpectedCount, res.Warnings[0].Reason)
}

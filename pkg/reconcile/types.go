package reconcile

import "github.com/boostedhh/condorcheck/pkg/jobfile"

// Kind is an output artifact category a job is expected to produce.
type Kind string

const (
	// KindPrimary is the pickled summary artifact every processor produces.
	KindPrimary Kind = "pickles"

	// KindSecondary is the columnar parquet artifact; trigger-style
	// processors do not produce it.
	KindSecondary Kind = "parquet"
)

// IndexSet is a set of job indices.
type IndexSet map[int]struct{}

// NewIndexSet builds an IndexSet from the given indices.
// Duplicates collapse, which is exactly what output listings need.
func NewIndexSet(indices ...int) IndexSet {
	s := make(IndexSet, len(indices))
	for _, i := range indices {
		s[i] = struct{}{}
	}
	return s
}

// Add inserts an index into the set.
func (s IndexSet) Add(i int) { s[i] = struct{}{} }

// Has reports whether the index is present.
func (s IndexSet) Has(i int) bool {
	_, ok := s[i]
	return ok
}

// RunningSet is the live snapshot of jobs currently executing under the
// batch scheduler, keyed by (year, sample, index).
type RunningSet map[jobfile.Job]struct{}

// NewRunningSet builds a RunningSet from the given jobs.
func NewRunningSet(jobs ...jobfile.Job) RunningSet {
	s := make(RunningSet, len(jobs))
	for _, j := range jobs {
		s[j] = struct{}{}
	}
	return s
}

// Add inserts a job into the set.
func (s RunningSet) Add(j jobfile.Job) { s[j] = struct{}{} }

// Has reports whether the job is present.
func (s RunningSet) Has(j jobfile.Job) bool {
	_, ok := s[j]
	return ok
}

// Inputs carries everything Reconcile needs. All maps are keyed by sample
// name. Reconcile never mutates its inputs.
type Inputs struct {
	// Year is the data-taking year of the batch under check.
	Year string

	// Samples is the sample universe (samples present in storage), in the
	// order reports should be emitted. Callers supply a sorted slice.
	Samples []string

	// Expected maps sample -> highest submitted job index + 1.
	// A sample absent from this map cannot be sized and is skipped with
	// a warning.
	Expected map[string]int

	// ProducedPrimary / ProducedSecondary are the indices found in the
	// primary and secondary output listings.
	ProducedPrimary   map[string]IndexSet
	ProducedSecondary map[string]IndexSet

	// PrimaryAbsent / SecondaryAbsent flag samples whose listing directory
	// does not exist at all (as opposed to existing but empty).
	PrimaryAbsent   map[string]bool
	SecondaryAbsent map[string]bool

	// SecondaryRequired enables the secondary-output check. When false the
	// secondary listing is never consulted.
	SecondaryRequired bool

	// Running suppresses missing-reports for in-flight jobs.
	Running RunningSet

	// SubmissionRoot is the directory holding the .jdl directives; missing
	// jobs carry directive and log paths rooted here.
	SubmissionRoot string
}

// MissingJob is one (sample, index) pair lacking required output and not
// currently running.
type MissingJob struct {
	Job jobfile.Job

	// Missing names the artifact kind(s) that were not found, in
	// primary-then-secondary order.
	Missing []Kind

	// ListingAbsent is set when the secondary listing directory did not
	// exist for the sample, so every expected index was reported.
	ListingAbsent bool

	// DirectivePath and LogPath locate the resubmission directive and its
	// paired error log.
	DirectivePath string
	LogPath       string
}

// Warning flags an ambiguous state the operator should look at.
type Warning struct {
	Sample string
	Reason string
}

// Warning reasons.
const (
	// WarnNoExpectedCount: sample present in storage but no submission
	// directives were found, so the check cannot be sized.
	WarnNoExpectedCount = "no submission directives found; sample skipped"

	// WarnPrimaryListingAbsent: primary listing directory missing; treated
	// as zero primary outputs.
	WarnPrimaryListingAbsent = "primary output listing absent; treated as empty"

	// WarnSecondaryListingAbsent: secondary listing directory missing;
	// every non-running expected index was reported.
	WarnSecondaryListingAbsent = "secondary output listing absent; all expected jobs reported"
)

// Result is the outcome of one reconciliation pass.
type Result struct {
	// Missing is the ordered missing-job report.
	Missing []MissingJob

	// Running lists expected jobs that were suppressed because the
	// scheduler reports them in flight.
	Running []jobfile.Job

	// Warnings lists ambiguous states encountered, in sample order.
	Warnings []Warning
}

// Package reconcile decides which submitted condor jobs are missing output.
//
// Reconcile is a pure function of its Inputs: it performs no I/O, issues no
// resubmissions, and running it twice over the same inputs yields the same
// report in the same order. Gathering the inputs (storage scans, condor_q)
// is pkg/scan and pkg/scheduler; acting on the report is the caller's job.
package reconcile

import "github.com/boostedhh/condorcheck/pkg/jobfile"

// Reconcile computes the missing-job report for one batch.
//
// For every sample in the universe, every index in [0, expected) lands in
// exactly one bucket: complete (no report), running (suppressed), or missing.
// Samples without an expected count are skipped with a warning, since a
// sample whose directives were never generated looks identical to one that
// was never meant to run.
func Reconcile(in Inputs) Result {
	var res Result

	for _, sample := range in.Samples {
		expected, sized := in.Expected[sample]

		// The secondary listing missing entirely escalates to "every
		// expected job is missing", provided we can size the sample.
		if in.SecondaryRequired && in.SecondaryAbsent[sample] {
			if !sized {
				res.Warnings = append(res.Warnings, Warning{Sample: sample, Reason: WarnNoExpectedCount})
				continue
			}
			res.Warnings = append(res.Warnings, Warning{Sample: sample, Reason: WarnSecondaryListingAbsent})

			for i := 0; i < expected; i++ {
				job := jobfile.Job{Year: in.Year, Sample: sample, Index: i}
				if in.Running.Has(job) {
					res.Running = append(res.Running, job)
					continue
				}
				res.Missing = append(res.Missing, missingJob(job, in.SubmissionRoot, true, KindPrimary, KindSecondary))
			}
			continue
		}

		if !sized {
			res.Warnings = append(res.Warnings, Warning{Sample: sample, Reason: WarnNoExpectedCount})
			continue
		}

		primary := in.ProducedPrimary[sample]
		if in.PrimaryAbsent[sample] {
			// Unlike the secondary listing, an absent primary listing is
			// not an escalation: it reads as zero produced outputs and the
			// per-index walk below picks up every gap.
			res.Warnings = append(res.Warnings, Warning{Sample: sample, Reason: WarnPrimaryListingAbsent})
			primary = nil
		}
		secondary := in.ProducedSecondary[sample]

		for i := 0; i < expected; i++ {
			job := jobfile.Job{Year: in.Year, Sample: sample, Index: i}
			if in.Running.Has(job) {
				res.Running = append(res.Running, job)
				continue
			}

			var missing []Kind
			if !primary.Has(i) {
				missing = append(missing, KindPrimary)
			}
			if in.SecondaryRequired && !secondary.Has(i) {
				missing = append(missing, KindSecondary)
			}
			if len(missing) == 0 {
				continue
			}
			res.Missing = append(res.Missing, missingJob(job, in.SubmissionRoot, false, missing...))
		}
	}

	return res
}

func missingJob(job jobfile.Job, root string, listingAbsent bool, kinds ...Kind) MissingJob {
	return MissingJob{
		Job:           job,
		Missing:       kinds,
		ListingAbsent: listingAbsent,
		DirectivePath: job.DirectivePath(root),
		LogPath:       job.LogPath(root),
	}
}

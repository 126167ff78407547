// Package scan gathers reconciliation inputs from a submission
// directory and an output store.
//
// The submission directory holds one condor directive per job
// (<year>_<sample>_<index>.jdl). The output store holds one tree per
// sample, each with a listing subdirectory per artifact kind.
package scan

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"golang.org/x/time/rate"

	"github.com/boostedhh/condorcheck/pkg/jobfile"
	"github.com/boostedhh/condorcheck/pkg/match"
	"github.com/boostedhh/condorcheck/pkg/reconcile"
	"github.com/boostedhh/condorcheck/pkg/storage"
)

// defaultPageSize bounds a single listing call.
const defaultPageSize = 1000

// Default listing subdirectory names under each sample.
const (
	DefaultPrimaryDir   = "pickles"
	DefaultSecondaryDir = "parquet"
)

// Layout names the trees a scan walks.
type Layout struct {
	// SubmissionRoot is the directory holding the .jdl directives.
	// The submission store is rooted here, so listings use an empty
	// prefix. The value itself is carried into the reconciler inputs
	// for stamping directive and log paths.
	SubmissionRoot string

	// OutputRoot is the store prefix holding one subdirectory per
	// sample.
	OutputRoot string

	// PrimaryDir / SecondaryDir are the per-sample listing
	// subdirectories. Empty uses the defaults.
	PrimaryDir   string
	SecondaryDir string
}

// Config controls a Scanner.
type Config struct {
	Year              string
	Layout            Layout
	Matcher           *match.Matcher
	Limiter           *rate.Limiter
	SecondaryRequired bool
	PageSize          int
}

// Scanner builds reconcile.Inputs from a submission store and an
// output store. The two may share a backend.
type Scanner struct {
	submission storage.Store
	output     storage.Store
	cfg        Config
	pageSize   int

	skipped []string
}

// New validates cfg and returns a Scanner.
func New(submission, output storage.Store, cfg Config) (*Scanner, error) {
	if submission == nil || output == nil {
		return nil, fmt.Errorf("scan: submission and output stores are required")
	}
	if cfg.Year == "" {
		return nil, fmt.Errorf("scan: year is required")
	}
	if cfg.Layout.PrimaryDir == "" {
		cfg.Layout.PrimaryDir = DefaultPrimaryDir
	}
	if cfg.Layout.SecondaryDir == "" {
		cfg.Layout.SecondaryDir = DefaultSecondaryDir
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Scanner{
		submission: submission,
		output:     output,
		cfg:        cfg,
		pageSize:   pageSize,
	}, nil
}

// ExpectedCounts lists the submission directory and sizes each sample
// as its highest directive index + 1. Samples are returned in sorted
// order. Directives for other years, non-matching samples, and files
// that are not directives are skipped; directive names that do not
// decode are recorded and retrievable via SkippedDirectives.
func (s *Scanner) ExpectedCounts(ctx context.Context) ([]string, map[string]int, error) {
	counts := make(map[string]int)

	err := s.eachKey(ctx, s.submission, "", func(key string) error {
		if !jobfile.IsDirective(key) {
			return nil
		}
		job, err := jobfile.ParseJobName(path.Base(key))
		if err != nil {
			s.skipped = append(s.skipped, key)
			return nil
		}
		if job.Year != s.cfg.Year {
			return nil
		}
		if s.cfg.Matcher != nil && !s.cfg.Matcher.Match(job.Sample) {
			return nil
		}
		if job.Index+1 > counts[job.Sample] {
			counts[job.Sample] = job.Index + 1
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan: list submission directives: %w", err)
	}

	samples := make([]string, 0, len(counts))
	for sample := range counts {
		samples = append(samples, sample)
	}
	sort.Strings(samples)
	return samples, counts, nil
}

// SkippedDirectives returns the directive keys that did not decode
// under the year_sample_index scheme, in encounter order.
func (s *Scanner) SkippedDirectives() []string {
	return s.skipped
}

// Outputs lists the produced artifacts of one kind for each sample.
// The absent map marks samples whose listing prefix does not exist,
// which is distinct from an existing but empty listing.
func (s *Scanner) Outputs(ctx context.Context, kind reconcile.Kind, samples []string) (map[string]reconcile.IndexSet, map[string]bool, error) {
	dir, err := s.kindDir(kind)
	if err != nil {
		return nil, nil, err
	}

	produced := make(map[string]reconcile.IndexSet, len(samples))
	absent := make(map[string]bool, len(samples))

	for _, sample := range samples {
		prefix := path.Join(s.cfg.Layout.OutputRoot, sample, dir) + "/"

		exists, err := s.prefixExists(ctx, prefix)
		if err != nil {
			return nil, nil, fmt.Errorf("scan: check %s listing for %s: %w", kind, sample, err)
		}
		if !exists {
			absent[sample] = true
			produced[sample] = reconcile.NewIndexSet()
			continue
		}

		indices := reconcile.NewIndexSet()
		err = s.eachKey(ctx, s.output, prefix, func(key string) error {
			idx, err := jobfile.ParseArtifactIndex(key)
			if err != nil {
				return nil
			}
			indices.Add(idx)
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("scan: list %s outputs for %s: %w", kind, sample, err)
		}
		produced[sample] = indices
	}
	return produced, absent, nil
}

// DiscoverSamples lists the immediate children of the output root and
// returns the sample names found there, filtered by the matcher. Empty
// when the store has no native delimiter support.
func (s *Scanner) DiscoverSamples(ctx context.Context) ([]string, error) {
	dl, ok := s.output.(storage.DelimiterLister)
	if !ok {
		return nil, nil
	}

	prefix := s.cfg.Layout.OutputRoot
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var samples []string
	token := ""
	for {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		res, err := dl.ListWithDelimiter(ctx, storage.ListWithDelimiterOptions{
			Prefix:            prefix,
			Delimiter:         "/",
			MaxKeys:           s.pageSize,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("scan: discover samples: %w", err)
		}
		for _, cp := range res.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(cp, prefix), "/")
			if name == "" {
				continue
			}
			if s.cfg.Matcher != nil && !s.cfg.Matcher.Match(name) {
				continue
			}
			samples = append(samples, name)
		}
		if !res.IsTruncated || res.ContinuationToken == "" {
			break
		}
		token = res.ContinuationToken
	}
	sort.Strings(samples)
	return samples, nil
}

// Gather runs the full scan and assembles the reconciler inputs.
// The sample universe is the union of samples present in storage and
// samples with submission directives, so a sample missing from either
// side is still reported on. running is the set of jobs currently in
// the scheduler queue.
func (s *Scanner) Gather(ctx context.Context, running reconcile.RunningSet) (reconcile.Inputs, error) {
	directive, expected, err := s.ExpectedCounts(ctx)
	if err != nil {
		return reconcile.Inputs{}, err
	}

	stored, err := s.DiscoverSamples(ctx)
	if err != nil {
		return reconcile.Inputs{}, err
	}
	samples := unionSorted(directive, stored)

	primary, primaryAbsent, err := s.Outputs(ctx, reconcile.KindPrimary, samples)
	if err != nil {
		return reconcile.Inputs{}, err
	}

	in := reconcile.Inputs{
		Year:              s.cfg.Year,
		Samples:           samples,
		Expected:          expected,
		ProducedPrimary:   primary,
		PrimaryAbsent:     primaryAbsent,
		SecondaryRequired: s.cfg.SecondaryRequired,
		Running:           running,
		SubmissionRoot:    s.cfg.Layout.SubmissionRoot,
	}

	if s.cfg.SecondaryRequired {
		secondary, secondaryAbsent, err := s.Outputs(ctx, reconcile.KindSecondary, samples)
		if err != nil {
			return reconcile.Inputs{}, err
		}
		in.ProducedSecondary = secondary
		in.SecondaryAbsent = secondaryAbsent
	}
	return in, nil
}

func (s *Scanner) kindDir(kind reconcile.Kind) (string, error) {
	switch kind {
	case reconcile.KindPrimary:
		return s.cfg.Layout.PrimaryDir, nil
	case reconcile.KindSecondary:
		return s.cfg.Layout.SecondaryDir, nil
	default:
		return "", fmt.Errorf("scan: unknown artifact kind %q", kind)
	}
}

func (s *Scanner) prefixExists(ctx context.Context, prefix string) (bool, error) {
	pc, ok := s.output.(storage.PrefixChecker)
	if !ok {
		// Without prefix support an empty listing and an absent one
		// are indistinguishable. Assume present and let the listing
		// decide.
		return true, nil
	}
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	return pc.PrefixExists(ctx, prefix)
}

// eachKey pages through a listing and calls fn for every key.
func (s *Scanner) eachKey(ctx context.Context, store storage.Store, prefix string, fn func(key string) error) error {
	token := ""
	for {
		if err := s.wait(ctx); err != nil {
			return err
		}
		res, err := store.List(ctx, storage.ListOptions{
			Prefix:            prefix,
			MaxKeys:           s.pageSize,
			ContinuationToken: token,
		})
		if err != nil {
			return err
		}
		for _, obj := range res.Objects {
			if err := fn(obj.Key); err != nil {
				return err
			}
		}
		if !res.IsTruncated || res.ContinuationToken == "" {
			return nil
		}
		token = res.ContinuationToken
	}
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Scanner) wait(ctx context.Context) error {
	if s.cfg.Limiter == nil {
		return nil
	}
	return s.cfg.Limiter.Wait(ctx)
}

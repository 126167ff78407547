// Package jobfile encodes and decodes the filename scheme used for condor
// job directives, job scripts, and produced output artifacts.
//
// Job identity is carried entirely in filenames:
//
//	<year>_<sample>_<index>.jdl     submission directive
//	<year>_<sample>_<index>.sh      job script (as seen in condor_q)
//	<year>_<sample>_<index>.err     job log
//	<anything>_<index>.<ext>        output artifact
//
// The sample token may itself contain underscores (e.g. QCD_HT700to1000),
// so decoding takes the first token as the year and the last as the index.
// All path and key handling in the rest of the codebase goes through this
// package so the encoding can change in one place.
package jobfile

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Job identifies one unit of batch work within a submission batch.
type Job struct {
	Year   string
	Sample string
	Index  int
}

// Decoding errors.
var (
	// ErrBadJobName indicates a name that does not follow year_sample_index.
	ErrBadJobName = errors.New("malformed job name")

	// ErrBadArtifactName indicates an artifact filename without a trailing index.
	ErrBadArtifactName = errors.New("malformed artifact name")
)

// Name returns the bare job name: <year>_<sample>_<index>.
func (j Job) Name() string {
	return fmt.Sprintf("%s_%s_%d", j.Year, j.Sample, j.Index)
}

// DirectivePath returns the submission-directive path for the job under the
// given submission root.
func (j Job) DirectivePath(root string) string {
	return path.Join(root, j.Name()+".jdl")
}

// LogPath returns the paired error-log path for the job under the given
// submission root.
func (j Job) LogPath(root string) string {
	return path.Join(root, "logs", j.Name()+".err")
}

// ParseJobName decodes <year>_<sample>_<index> from a job name.
//
// The name may carry an extension (.jdl, .sh, .err), which is stripped.
// Returns ErrBadJobName if the name has fewer than three tokens or the
// final token is not a non-negative integer.
func ParseJobName(name string) (Job, error) {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))

	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return Job{}, fmt.Errorf("%w: %q", ErrBadJobName, name)
	}

	idx, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || idx < 0 {
		return Job{}, fmt.Errorf("%w: %q: bad index token", ErrBadJobName, name)
	}

	return Job{
		Year:   parts[0],
		Sample: strings.Join(parts[1:len(parts)-1], "_"),
		Index:  idx,
	}, nil
}

// ParseArtifactIndex decodes the job index from a produced output artifact
// filename. The index is the final underscore-delimited token before the
// first dot, e.g. "out_12.parquet" -> 12, "nano_3.pkl.gz" -> 3.
func ParseArtifactIndex(name string) (int, error) {
	base := path.Base(name)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}

	parts := strings.Split(base, "_")
	idx, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadArtifactName, name)
	}
	return idx, nil
}

// IsDirective reports whether a filename names a submission directive.
func IsDirective(name string) bool {
	return strings.HasSuffix(name, ".jdl")
}

// IsJobScript reports whether a filename names a condor job script.
func IsJobScript(name string) bool {
	return strings.HasSuffix(name, ".sh")
}

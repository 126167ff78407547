package storage

import "context"

// DelimiterLister supports delimiter-based listing.
//
// The output area is laid out directory-like (<year>/<sample>/<listing>/...),
// so sample discovery and per-listing scans want immediate children rather
// than a full recursive walk. Backends map this to native delimiter listing
// when available (S3 ListObjectsV2 with Delimiter) or a plain directory read.
type DelimiterLister interface {
	ListWithDelimiter(ctx context.Context, opts ListWithDelimiterOptions) (*ListWithDelimiterResult, error)
}

// ListWithDelimiterOptions configures one delimiter listing page.
// ContinuationToken resumes from a previous truncated result.
type ListWithDelimiterOptions struct {
	Prefix            string
	Delimiter         string
	ContinuationToken string
	MaxKeys           int
}

// ListWithDelimiterResult is one page of a delimiter listing: the objects
// directly under the prefix plus the delimiter-terminated child prefixes.
type ListWithDelimiterResult struct {
	Objects           []ObjectSummary
	CommonPrefixes    []string
	ContinuationToken string
	IsTruncated       bool
}

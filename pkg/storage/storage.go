// Package storage abstracts listing of Tier-2 output storage.
//
// Stores implement a minimal surface focused on listing keys under a prefix.
// The two implementations cover the site layouts we actually run against:
// fuse-mounted EOS/ceph directories (file) and S3-compatible gateways (s3).
// Authentication for remote stores uses SDK default credential chains.
package storage

import (
	"context"
	"time"
)

// Store abstracts output-storage listing operations.
//
// Implementations should support pagination via continuation tokens and be
// safe for concurrent use.
type Store interface {
	// List returns a page of objects with the given prefix.
	// Use ContinuationToken from ListResult for subsequent pages.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// Head returns metadata for a single object.
	// Returns ErrNotFound if the object does not exist.
	Head(ctx context.Context, key string) (*ObjectMeta, error)

	// Type identifies the backing store implementation.
	Type() StoreType

	// Close releases any resources held by the store.
	Close() error
}

// PrefixChecker reports whether a listing prefix exists at all.
//
// The reconciler distinguishes "listing directory absent" (a modeled
// condition) from "listing directory empty". On object stores the two
// collapse: a prefix exists iff at least one key lives under it.
type PrefixChecker interface {
	PrefixExists(ctx context.Context, prefix string) (bool, error)
}

// ListOptions configures a List operation.
type ListOptions struct {
	// Prefix filters results to keys starting with this value.
	Prefix string

	// ContinuationToken resumes listing from a previous ListResult.
	// Empty string starts from the beginning.
	ContinuationToken string

	// MaxKeys limits the number of objects returned per page.
	// Zero uses the store default (typically 1000).
	MaxKeys int
}

// ListResult contains a page of objects from a List operation.
type ListResult struct {
	Objects []ObjectSummary

	// ContinuationToken is used to retrieve the next page.
	// Empty string indicates no more pages.
	ContinuationToken string

	// IsTruncated indicates whether more results are available.
	IsTruncated bool
}

// ObjectSummary contains basic metadata returned from List operations.
type ObjectSummary struct {
	// Key is the full object key (path) relative to the store root.
	Key string

	// Size is the object size in bytes.
	Size int64

	// LastModified is when the object was last modified.
	LastModified time.Time
}

// ObjectMeta contains full metadata for a single object.
type ObjectMeta struct {
	ObjectSummary
}

// StoreType identifies a storage backend.
type StoreType string

const (
	// StoreFile represents a locally mounted filesystem (EOS/ceph fuse mounts).
	StoreFile StoreType = "file"

	// StoreS3 represents S3-compatible object storage.
	StoreS3 StoreType = "s3"
)

func (s StoreType) String() string {
	return string(s)
}

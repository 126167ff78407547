// Package s3 implements storage.Store for S3-compatible object storage.
//
// Some Tier-2 sites expose their storage element through an S3 gateway; this
// store lets checks run against those endpoints without a fuse mount.
package s3

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/boostedhh/condorcheck/pkg/storage"
)

// DefaultMaxKeys is the default page size for List operations.
const DefaultMaxKeys = 1000

// Store implements storage.Store for AWS S3 and S3-compatible storage.
type Store struct {
	client  *s3.Client
	bucket  string
	maxKeys int
}

var (
	_ storage.Store           = (*Store)(nil)
	_ storage.PrefixChecker   = (*Store)(nil)
	_ storage.DelimiterLister = (*Store)(nil)
)

// Config configures an S3 store.
type Config struct {
	// Bucket is the bucket holding the analysis output area.
	Bucket string

	// Region is the region hint; optional for S3-compatible gateways.
	Region string

	// Endpoint is the gateway URL for S3-compatible storage.
	Endpoint string

	// Profile selects a shared-config credential profile. Optional.
	Profile string

	// AccessKeyID/SecretAccessKey provide explicit static credentials.
	// When empty the SDK default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle forces path-style URLs; required by most gateways.
	ForcePathStyle bool

	// MaxKeys overrides the default page size.
	MaxKeys int
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	return nil
}

// New creates an S3 store with the given configuration.
//
// Uses the AWS SDK v2 default credential chain unless explicit credentials
// are provided.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &storage.StoreError{Op: "New", Store: storage.StoreS3, Root: cfg.Bucket, Err: err}
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	return &Store{
		client:  s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:  cfg.Bucket,
		maxKeys: maxKeys,
	}, nil
}

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	// Gateways generally ignore the region, but the SDK requires one.
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}
	return awsCfg, nil
}

// Type identifies this store as an S3 backend.
func (s *Store) Type() storage.StoreType { return storage.StoreS3 }

func (s *Store) Close() error { return nil }

func (s *Store) List(ctx context.Context, opts storage.ListOptions) (*storage.ListResult, error) {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 || maxKeys > s.maxKeys {
		maxKeys = s.maxKeys
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(int32(maxKeys)),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}

	output, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, s.wrapError("List", "", err)
	}

	objects := make([]storage.ObjectSummary, 0, len(output.Contents))
	for _, obj := range output.Contents {
		objects = append(objects, storage.ObjectSummary{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}

	result := &storage.ListResult{
		Objects:     objects,
		IsTruncated: aws.ToBool(output.IsTruncated),
	}
	if output.NextContinuationToken != nil {
		result.ContinuationToken = *output.NextContinuationToken
	}
	return result, nil
}

func (s *Store) Head(ctx context.Context, key string) (*storage.ObjectMeta, error) {
	output, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.wrapError("Head", key, err)
	}

	return &storage.ObjectMeta{
		ObjectSummary: storage.ObjectSummary{
			Key:          key,
			Size:         aws.ToInt64(output.ContentLength),
			LastModified: aws.ToTime(output.LastModified),
		},
	}, nil
}

// ListWithDelimiter lists immediate children of a prefix using native
// delimiter listing.
func (s *Store) ListWithDelimiter(ctx context.Context, opts storage.ListWithDelimiterOptions) (*storage.ListWithDelimiterResult, error) {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 || maxKeys > s.maxKeys {
		maxKeys = s.maxKeys
	}

	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Delimiter: aws.String(delimiter),
		MaxKeys:   aws.Int32(int32(maxKeys)),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}

	output, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, s.wrapError("ListWithDelimiter", opts.Prefix, err)
	}

	res := &storage.ListWithDelimiterResult{
		IsTruncated: aws.ToBool(output.IsTruncated),
	}
	for _, obj := range output.Contents {
		res.Objects = append(res.Objects, storage.ObjectSummary{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	for _, cp := range output.CommonPrefixes {
		res.CommonPrefixes = append(res.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	if output.NextContinuationToken != nil {
		res.ContinuationToken = *output.NextContinuationToken
	}
	return res, nil
}

// PrefixExists reports whether at least one key lives under the prefix.
// Object stores have no directories, so an empty prefix is an absent prefix.
func (s *Store) PrefixExists(ctx context.Context, prefix string) (bool, error) {
	output, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, s.wrapError("PrefixExists", prefix, err)
	}
	return aws.ToInt32(output.KeyCount) > 0, nil
}

// wrapError converts S3 errors to storage errors with appropriate sentinels.
func (s *Store) wrapError(op, key string, err error) error {
	wrapped := &storage.StoreError{
		Op:    op,
		Store: storage.StoreS3,
		Root:  s.bucket,
		Key:   key,
		Err:   err,
	}

	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket

	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		wrapped.Err = storage.ErrNotFound
		return wrapped
	case errors.As(err, &noSuchBucket):
		wrapped.Err = storage.ErrBucketNotFound
		return wrapped
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			wrapped.Err = storage.ErrNotFound
		case "NoSuchBucket":
			wrapped.Err = storage.ErrBucketNotFound
		case "AccessDenied", "Forbidden":
			wrapped.Err = storage.ErrAccessDenied
		case "InvalidAccessKeyId", "SignatureDoesNotMatch":
			wrapped.Err = storage.ErrInvalidCredentials
		case "ServiceUnavailable", "SlowDown", "InternalError":
			wrapped.Err = storage.ErrStoreUnavailable
		}
	}

	return wrapped
}

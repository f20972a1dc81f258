// S3-compatible VideoStore backed by the AWS SDK for Go v2.
//
// Credentials are resolved via the standard AWS credential chain (env vars,
// ~/.aws/credentials, IAM role, etc.) unless static credentials are supplied
// in the configuration. Custom endpoints and path-style addressing are
// supported for MinIO and other S3-compatible stores.

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the AWS S3 client used by the video store. Narrowing
// the interface keeps tests free of real network calls.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Presigner is the subset of the AWS presign client used to derive
// time-limited direct-access URLs.
type S3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config configures the S3 video store. Bucket is the only required field.
type S3Config struct {
	Bucket string
	Region string
	// Prefix is an optional key prefix applied to every lookup, letting the
	// site share a bucket with other tenants of the account.
	Prefix string
	// Endpoint overrides the S3 endpoint for S3-compatible stores.
	Endpoint string
	// PathStyle forces path-style addressing (required by most MinIO setups).
	PathStyle bool
	// AccessKey/SecretKey are optional static credentials. When empty the
	// default AWS credential chain is used.
	AccessKey string
	SecretKey string
}

// S3Store implements VideoStore against an S3-compatible object store.
type S3Store struct {
	bucket  string
	prefix  string
	client  S3API
	presign S3Presigner
}

// NewS3Store builds an S3Store from the given configuration and verifies the
// bucket is reachable. A missing bucket name is a fatal misconfiguration.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 store: bucket name is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	s := &S3Store{
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		client:  client,
		presign: s3.NewPresignClient(client),
	}

	// Verify the bucket is accessible before serving traffic.
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("cannot access video bucket %q: %w", cfg.Bucket, err)
	}

	slog.Info("S3 video store initialized", "bucket", cfg.Bucket, "region", cfg.Region, "prefix", cfg.Prefix)
	return s, nil
}

// NewS3StoreWithClient builds an S3Store around pre-configured clients.
// Used by tests with mock S3API/S3Presigner implementations.
func NewS3StoreWithClient(bucket, prefix string, client S3API, presign S3Presigner) *S3Store {
	return &S3Store{
		bucket:  bucket,
		prefix:  prefix,
		client:  client,
		presign: presign,
	}
}

// objectKey maps a gateway key to the upstream S3 key.
func (s *S3Store) objectKey(key string) string {
	return s.prefix + key
}

// GetMetadata issues a HeadObject for the key. A missing object returns
// (nil, nil); other store errors are returned wrapped.
func (s *S3Store) GetMetadata(ctx context.Context, key string) (*ObjectMetadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("head object %q: %w", key, err)
	}

	meta := &ObjectMetadata{
		ContentType: aws.ToString(out.ContentType),
		ETag:        aws.ToString(out.ETag),
	}
	if out.ContentLength != nil {
		meta.ContentLength = *out.ContentLength
	}
	if out.LastModified != nil {
		meta.LastModified = *out.LastModified
	}
	return meta, nil
}

// StreamRange fetches the requested byte span of the object. The metadata
// lookup runs first because range clamping depends on the total size. A nil
// range streams the whole object with status 200; otherwise the resolved
// range is requested from the store and served as 206 partial content.
func (s *S3Store) StreamRange(ctx context.Context, key string, rng *RangeSpec) (*StreamResult, error) {
	meta, err := s.GetMetadata(ctx, key)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, nil
	}

	start, end, err := rng.Resolve(meta.ContentLength)
	if err != nil {
		return nil, fmt.Errorf("resolving range for %q: %w", key, err)
	}

	in := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	}
	result := &StreamResult{
		ContentLength: end - start + 1,
		ContentType:   meta.ContentType,
		ETag:          meta.ETag,
		Status:        200,
	}
	if rng != nil {
		in.Range = aws.String(fmt.Sprintf("bytes=%d-%d", start, end))
		result.ContentRange = fmt.Sprintf("bytes %d-%d/%d", start, end, meta.ContentLength)
		result.Status = 206
	}

	out, err := s.client.GetObject(ctx, in)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	result.Body = out.Body
	return result, nil
}

// PresignURL derives a time-limited GET URL for the object. Errors propagate:
// there is no sensible partial result for this call.
func (s *S3Store) PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presigning %q: %w", key, err)
	}
	return req.URL, nil
}

// Exists probes the object with HeadObject. Any error, not-found or
// otherwise, reports false.
func (s *S3Store) Exists(ctx context.Context, key string) bool {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	return err == nil
}

// isNotFound reports whether an AWS error means the object is absent.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "NoSuchKey" || code == "NotFound" || code == "404" || code == "NoSuchBucket" {
			return true
		}
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}
	return false
}

var _ VideoStore = (*S3Store)(nil)

package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// notFoundError satisfies smithy.APIError with a NoSuchKey code.
type notFoundError struct{}

func (e *notFoundError) Error() string                 { return "NoSuchKey: not found" }
func (e *notFoundError) ErrorCode() string             { return "NoSuchKey" }
func (e *notFoundError) ErrorMessage() string          { return "The specified key does not exist." }
func (e *notFoundError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

// mockS3 is an in-memory S3API/S3Presigner with a single fixed object set.
type mockS3 struct {
	objects map[string]string // key -> content
	// headErr/getErr force errors for fault-path tests.
	headErr error
	getErr  error
	// lastRange records the Range header of the most recent GetObject call.
	lastRange string
}

func (m *mockS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.headErr != nil {
		return nil, m.headErr
	}
	content, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &notFoundError{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String("video/mp4"),
		ETag:          aws.String(`"abc123"`),
		LastModified:  aws.Time(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)),
	}, nil
}

func (m *mockS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	content, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &notFoundError{}
	}
	m.lastRange = aws.ToString(in.Range)
	body := content
	if m.lastRange != "" {
		var start, end int
		if _, err := fmt.Sscanf(m.lastRange, "bytes=%d-%d", &start, &end); err != nil {
			return nil, fmt.Errorf("mock: bad range %q: %v", m.lastRange, err)
		}
		if end >= len(content) {
			end = len(content) - 1
		}
		body = content[start : end+1]
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func (m *mockS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func (m *mockS3) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	opts := &s3.PresignOptions{}
	for _, fn := range optFns {
		fn(opts)
	}
	return &v4.PresignedHTTPRequest{
		URL: fmt.Sprintf("https://cutroom-media.example.com/%s?X-Amz-Expires=%d&X-Amz-Signature=deadbeef",
			aws.ToString(in.Key), int(opts.Expires.Seconds())),
		Method: "GET",
	}, nil
}

func newTestS3Store(objects map[string]string) (*S3Store, *mockS3) {
	m := &mockS3{objects: objects}
	return NewS3StoreWithClient("cutroom-media", "", m, m), m
}

func TestS3GetMetadata(t *testing.T) {
	store, _ := newTestS3Store(map[string]string{"showreel.mp4": strings.Repeat("x", 1000)})

	meta, err := store.GetMetadata(context.Background(), "showreel.mp4")
	if err != nil {
		t.Fatalf("GetMetadata error: %v", err)
	}
	if meta == nil {
		t.Fatal("GetMetadata returned nil for existing object")
	}
	if meta.ContentLength != 1000 {
		t.Errorf("ContentLength = %d, want 1000", meta.ContentLength)
	}
	if meta.ContentType != "video/mp4" {
		t.Errorf("ContentType = %q, want video/mp4", meta.ContentType)
	}
	if meta.ETag != `"abc123"` {
		t.Errorf("ETag = %q, want %q", meta.ETag, `"abc123"`)
	}
}

func TestS3GetMetadataMissing(t *testing.T) {
	store, _ := newTestS3Store(map[string]string{})

	meta, err := store.GetMetadata(context.Background(), "nope.mp4")
	if err != nil {
		t.Fatalf("GetMetadata error for missing object: %v", err)
	}
	if meta != nil {
		t.Errorf("GetMetadata = %+v, want nil for missing object", meta)
	}
}

func TestS3StreamRangeFullObject(t *testing.T) {
	content := strings.Repeat("v", 500)
	store, mock := newTestS3Store(map[string]string{"clip.mp4": content})

	res, err := store.StreamRange(context.Background(), "clip.mp4", nil)
	if err != nil {
		t.Fatalf("StreamRange error: %v", err)
	}
	defer res.Body.Close()

	if res.Status != 200 {
		t.Errorf("Status = %d, want 200", res.Status)
	}
	if res.ContentRange != "" {
		t.Errorf("ContentRange = %q, want empty for full object", res.ContentRange)
	}
	if res.ContentLength != 500 {
		t.Errorf("ContentLength = %d, want 500", res.ContentLength)
	}
	if mock.lastRange != "" {
		t.Errorf("upstream Range header = %q, want none", mock.lastRange)
	}
	body, _ := io.ReadAll(res.Body)
	if string(body) != content {
		t.Errorf("body mismatch: got %d bytes", len(body))
	}
}

func TestS3StreamRangePartial(t *testing.T) {
	store, mock := newTestS3Store(map[string]string{"clip.mp4": strings.Repeat("v", 1000)})

	rng := &RangeSpec{Start: int64p(0), End: int64p(99)}
	res, err := store.StreamRange(context.Background(), "clip.mp4", rng)
	if err != nil {
		t.Fatalf("StreamRange error: %v", err)
	}
	defer res.Body.Close()

	if res.Status != 206 {
		t.Errorf("Status = %d, want 206", res.Status)
	}
	if res.ContentRange != "bytes 0-99/1000" {
		t.Errorf("ContentRange = %q, want %q", res.ContentRange, "bytes 0-99/1000")
	}
	if res.ContentLength != 100 {
		t.Errorf("ContentLength = %d, want 100", res.ContentLength)
	}
	if mock.lastRange != "bytes=0-99" {
		t.Errorf("upstream Range header = %q, want bytes=0-99", mock.lastRange)
	}
}

func TestS3StreamRangeClampsEnd(t *testing.T) {
	store, _ := newTestS3Store(map[string]string{"clip.mp4": strings.Repeat("v", 1000)})

	// End far beyond the object: served range must reflect the clamped end.
	rng := &RangeSpec{Start: int64p(0), End: int64p(2000)}
	res, err := store.StreamRange(context.Background(), "clip.mp4", rng)
	if err != nil {
		t.Fatalf("StreamRange error: %v", err)
	}
	defer res.Body.Close()

	if res.ContentRange != "bytes 0-999/1000" {
		t.Errorf("ContentRange = %q, want %q", res.ContentRange, "bytes 0-999/1000")
	}
	if res.ContentLength != 1000 {
		t.Errorf("ContentLength = %d, want 1000", res.ContentLength)
	}
}

func TestS3StreamRangeSuffix(t *testing.T) {
	store, _ := newTestS3Store(map[string]string{"clip.mp4": strings.Repeat("v", 1000)})

	rng := &RangeSpec{End: int64p(100)}
	res, err := store.StreamRange(context.Background(), "clip.mp4", rng)
	if err != nil {
		t.Fatalf("StreamRange error: %v", err)
	}
	defer res.Body.Close()

	if res.ContentRange != "bytes 900-999/1000" {
		t.Errorf("ContentRange = %q, want %q", res.ContentRange, "bytes 900-999/1000")
	}
}

func TestS3StreamRangeMissing(t *testing.T) {
	store, _ := newTestS3Store(map[string]string{})

	res, err := store.StreamRange(context.Background(), "nope.mp4", nil)
	if err != nil {
		t.Fatalf("StreamRange error for missing object: %v", err)
	}
	if res != nil {
		t.Errorf("StreamRange = %+v, want nil for missing object", res)
	}
}

func TestS3PresignURL(t *testing.T) {
	store, _ := newTestS3Store(map[string]string{"clip.mp4": "v"})

	url, err := store.PresignURL(context.Background(), "clip.mp4", time.Hour)
	if err != nil {
		t.Fatalf("PresignURL error: %v", err)
	}
	if !strings.Contains(url, "clip.mp4") {
		t.Errorf("presigned URL %q does not contain the key", url)
	}
	if !strings.Contains(url, "X-Amz-Expires=3600") {
		t.Errorf("presigned URL %q does not carry the expiry", url)
	}
}

func TestS3PresignURLPropagatesError(t *testing.T) {
	store, mock := newTestS3Store(map[string]string{})
	mock.getErr = fmt.Errorf("signer unavailable")

	if _, err := store.PresignURL(context.Background(), "clip.mp4", time.Hour); err == nil {
		t.Fatal("PresignURL should propagate signer errors")
	}
}

func TestS3Exists(t *testing.T) {
	store, mock := newTestS3Store(map[string]string{"clip.mp4": "v"})

	if !store.Exists(context.Background(), "clip.mp4") {
		t.Error("Exists = false for existing object")
	}
	if store.Exists(context.Background(), "nope.mp4") {
		t.Error("Exists = true for missing object")
	}

	// Transport errors fail closed.
	mock.headErr = fmt.Errorf("connection refused")
	if store.Exists(context.Background(), "clip.mp4") {
		t.Error("Exists = true when the store errors")
	}
}

func TestS3KeyPrefix(t *testing.T) {
	m := &mockS3{objects: map[string]string{"site/showreel.mp4": "vvvv"}}
	store := NewS3StoreWithClient("cutroom-media", "site/", m, m)

	meta, err := store.GetMetadata(context.Background(), "showreel.mp4")
	if err != nil || meta == nil {
		t.Fatalf("GetMetadata with prefix = (%+v, %v), want object", meta, err)
	}
}

// Package storage provides the video object store clients for CutRoom.
//
// A VideoStore translates an opaque object key into metadata and byte
// streams from a backing blob store. Two implementations exist: an
// S3-compatible client (production) and a local-filesystem store used for
// development. Both are stateless apart from their connection configuration,
// so a single instance is shared by all concurrent requests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupported is returned when a backend does not implement an optional
// capability, such as presigned URLs on the local-filesystem store.
var ErrUnsupported = errors.New("storage: unsupported operation")

// ObjectMetadata describes a stored video object. It is fetched once per
// request and never cached across requests; downstream caches work off the
// HTTP headers the gateway emits.
type ObjectMetadata struct {
	// ContentLength is the total object size in bytes.
	ContentLength int64
	// ContentType is the stored MIME type, empty if the store has none.
	ContentType string
	// ETag is the store's content validator, empty if unavailable.
	ETag string
	// LastModified is the object's modification time, zero if unavailable.
	LastModified time.Time
}

// StreamResult carries one playable byte stream plus the headers needed to
// relay it. It is consumed exactly once: the caller owns Body and must close
// it.
type StreamResult struct {
	// Body is the object bytes for the served range.
	Body io.ReadCloser
	// ContentLength is the size of the served range, not the total object.
	ContentLength int64
	// ContentType is the MIME type to serve.
	ContentType string
	// ContentRange is the Content-Range header value, empty for full-object
	// responses.
	ContentRange string
	// Status is the HTTP status to relay: 200 for full objects, 206 for
	// partial content.
	Status int
	// ETag is the store's validator, empty if unavailable.
	ETag string
}

// VideoStore is the object-store client consumed by the streaming gateway.
//
// GetMetadata and StreamRange report a missing object as (nil, nil); any
// transport error they do return is collapsed to absence by the gateway.
// PresignURL propagates errors instead, since that path has no fallback.
type VideoStore interface {
	// GetMetadata issues a metadata-only lookup for the object.
	GetMetadata(ctx context.Context, key string) (*ObjectMetadata, error)
	// StreamRange opens a byte stream for the requested range of the object.
	// A nil RangeSpec means the full object.
	StreamRange(ctx context.Context, key string, rng *RangeSpec) (*StreamResult, error)
	// PresignURL derives a time-limited direct-access URL for the object.
	PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	// Exists is a best-effort existence probe. Errors fail closed to false.
	Exists(ctx context.Context, key string) bool
}

// RangeSpec is a parsed HTTP Range header in byte units. A nil Start with a
// set End means a suffix range (bytes=-N, requesting the final N bytes of
// the object, per RFC 9110).
type RangeSpec struct {
	Start *int64
	End   *int64
}

// ParseRangeHeader parses a Range request header value into a RangeSpec.
// An empty header returns (nil, nil), meaning the full object. Only single
// byte ranges are supported; multi-range requests are rejected.
func ParseRangeHeader(header string) (*RangeSpec, error) {
	if header == "" {
		return nil, nil
	}
	if !strings.HasPrefix(header, "bytes=") {
		return nil, fmt.Errorf("invalid range header: missing bytes= prefix")
	}
	spec := strings.TrimPrefix(header, "bytes=")
	if strings.Contains(spec, ",") {
		return nil, fmt.Errorf("multi-range not supported")
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid range spec: %q", spec)
	}
	startStr := strings.TrimSpace(parts[0])
	endStr := strings.TrimSpace(parts[1])
	if startStr == "" && endStr == "" {
		return nil, fmt.Errorf("invalid range: both bounds empty")
	}

	rng := &RangeSpec{}
	if startStr != "" {
		start, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || start < 0 {
			return nil, fmt.Errorf("invalid range start: %q", startStr)
		}
		rng.Start = &start
	}
	if endStr != "" {
		end, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return nil, fmt.Errorf("invalid range end: %q", endStr)
		}
		rng.End = &end
	}
	if rng.Start != nil && rng.End != nil && *rng.Start > *rng.End {
		return nil, fmt.Errorf("invalid range: start %d after end %d", *rng.Start, *rng.End)
	}
	return rng, nil
}

// Resolve turns the spec into absolute [start, end] offsets for an object of
// the given total size. The end is always clamped to totalSize-1. Returns an
// error for unsatisfiable ranges (start beyond the object, empty object).
func (r *RangeSpec) Resolve(totalSize int64) (start, end int64, err error) {
	if totalSize <= 0 {
		return 0, 0, fmt.Errorf("empty object")
	}
	if r == nil {
		return 0, totalSize - 1, nil
	}

	if r.Start == nil {
		// Suffix range: last N bytes.
		n := *r.End
		if n <= 0 {
			return 0, 0, fmt.Errorf("invalid suffix length %d", n)
		}
		if n >= totalSize {
			return 0, totalSize - 1, nil
		}
		return totalSize - n, totalSize - 1, nil
	}

	start = *r.Start
	if start >= totalSize {
		return 0, 0, fmt.Errorf("range start %d beyond object size %d", start, totalSize)
	}
	end = totalSize - 1
	if r.End != nil && *r.End < end {
		end = *r.End
	}
	return start, end, nil
}

// videoMimeTypes maps lowercased file extensions to video MIME types.
var videoMimeTypes = map[string]string{
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"ogg":  "video/ogg",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"mkv":  "video/x-matroska",
}

// MimeTypeFromKey derives a video MIME type from the key's file extension.
// The match is case-insensitive; unknown or missing extensions default to
// video/mp4.
func MimeTypeFromKey(key string) string {
	idx := strings.LastIndexByte(key, '.')
	if idx < 0 || idx == len(key)-1 {
		return "video/mp4"
	}
	if mt, ok := videoMimeTypes[strings.ToLower(key[idx+1:])]; ok {
		return mt
	}
	return "video/mp4"
}

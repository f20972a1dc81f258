package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore implements VideoStore on the local filesystem. It exists for
// development and tests, where standing up an S3-compatible store is
// overkill. Keys map to file paths under a configurable root directory.
//
// Presigned URLs are not supported: there is no signer that an external
// client could verify, so PresignURL returns ErrUnsupported.
type LocalStore struct {
	// RootDir is the base directory under which all video files live.
	RootDir string
}

// NewLocalStore creates a LocalStore rooted at the given directory, creating
// it if necessary.
func NewLocalStore(rootDir string) (*LocalStore, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating video root directory %q: %w", rootDir, err)
	}
	return &LocalStore{RootDir: rootDir}, nil
}

// filePath maps a key to a filesystem path under the root. Keys that escape
// the root after cleaning are rejected.
func (l *LocalStore) filePath(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("empty key")
	}
	p := filepath.Join(l.RootDir, clean)
	if !strings.HasPrefix(p, filepath.Clean(l.RootDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("key %q escapes storage root", key)
	}
	return p, nil
}

// GetMetadata stats the backing file. Missing files return (nil, nil).
func (l *LocalStore) GetMetadata(ctx context.Context, key string) (*ObjectMetadata, error) {
	p, err := l.filePath(key)
	if err != nil {
		return nil, nil
	}
	fi, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %q: %w", key, err)
	}
	if fi.IsDir() {
		return nil, nil
	}
	return &ObjectMetadata{
		ContentLength: fi.Size(),
		ContentType:   MimeTypeFromKey(key),
		ETag:          localETag(fi),
		LastModified:  fi.ModTime(),
	}, nil
}

// StreamRange opens the file, seeks to the resolved start offset, and limits
// the reader to the served range.
func (l *LocalStore) StreamRange(ctx context.Context, key string, rng *RangeSpec) (*StreamResult, error) {
	meta, err := l.GetMetadata(ctx, key)
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

	p, err := l.filePath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", key, err)
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seeking %q to %d: %w", key, start, err)
	}

	result := &StreamResult{
		Body:          &limitedFile{Reader: io.LimitReader(f, end-start+1), f: f},
		ContentLength: end - start + 1,
		ContentType:   meta.ContentType,
		ETag:          meta.ETag,
		Status:        200,
	}
	if rng != nil {
		result.ContentRange = fmt.Sprintf("bytes %d-%d/%d", start, end, meta.ContentLength)
		result.Status = 206
	}
	return result, nil
}

// PresignURL is unsupported on the local store.
func (l *LocalStore) PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "", ErrUnsupported
}

// Exists reports whether the backing file exists. Errors fail closed.
func (l *LocalStore) Exists(ctx context.Context, key string) bool {
	p, err := l.filePath(key)
	if err != nil {
		return false
	}
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

// localETag derives a weak validator from file size and mtime, enough for
// browser revalidation in development.
func localETag(fi os.FileInfo) string {
	return fmt.Sprintf(`"%x-%x"`, fi.ModTime().UnixNano(), fi.Size())
}

// limitedFile pairs a range-limited reader with the underlying file so the
// consumer's Close releases the file handle.
type limitedFile struct {
	io.Reader
	f *os.File
}

func (lf *limitedFile) Close() error {
	return lf.f.Close()
}

var _ VideoStore = (*LocalStore)(nil)

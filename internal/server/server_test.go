package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cutroom/cutroom/internal/config"
	"github.com/cutroom/cutroom/internal/inquiries"
	"github.com/cutroom/cutroom/internal/metrics"
	"github.com/cutroom/cutroom/internal/storage"
)

type fakeVideoStore struct {
	objects map[string][]byte
}

func (f *fakeVideoStore) GetMetadata(ctx context.Context, key string) (*storage.ObjectMetadata, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, nil
	}
	return &storage.ObjectMetadata{
		ContentLength: int64(len(data)),
		ContentType:   storage.MimeTypeFromKey(key),
		LastModified:  time.Now(),
	}, nil
}

func (f *fakeVideoStore) StreamRange(ctx context.Context, key string, rng *storage.RangeSpec) (*storage.StreamResult, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, nil
	}
	total := int64(len(data))
	start, end, err := rng.Resolve(total)
	if err != nil {
		return nil, err
	}
	res := &storage.StreamResult{
		Body:          io.NopCloser(bytes.NewReader(data[start : end+1])),
		ContentLength: end - start + 1,
		ContentType:   storage.MimeTypeFromKey(key),
		Status:        http.StatusOK,
	}
	if rng != nil {
		res.Status = http.StatusPartialContent
		res.ContentRange = fmt.Sprintf("bytes %d-%d/%d", start, end, total)
	}
	return res, nil
}

func (f *fakeVideoStore) PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://media.example.com/" + key + "?X-Amz-Expires=3600", nil
}

func (f *fakeVideoStore) Exists(ctx context.Context, key string) bool {
	_, ok := f.objects[key]
	return ok
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Site:   config.SiteConfig{BaseURL: "https://cutroom.example"},
		Stream: config.StreamConfig{TimeoutSeconds: 25, PresignTTLSeconds: 3600},
		Contact: config.ContactConfig{
			RatePerMinute: 5,
			Burst:         3,
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store := &fakeVideoStore{objects: map[string][]byte{
		"showreel.mp4": []byte("abcdefghijklmnop"),
	}}
	db, err := inquiries.NewStore(filepath.Join(t.TempDir(), "inquiries.db"))
	if err != nil {
		t.Fatalf("inquiries.NewStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv, err := New(testConfig(), WithVideoStore(store), WithInquiryStore(db))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id header")
	}
	if w.Header().Get("Server") != "CutRoom" {
		t.Errorf("Server header = %q", w.Header().Get("Server"))
	}
}

func TestVideoRoute(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/video/showreel.mp4", nil)
	req.Header.Set("Range", "bytes=0-3")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206: %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != "abcd" {
		t.Errorf("body = %q, want abcd", got)
	}
	if cr := w.Header().Get("Content-Range"); cr != "bytes 0-3/16" {
		t.Errorf("Content-Range = %q", cr)
	}
}

func TestVideoRouteMissingKey(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/video", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSitemapRoute(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "xml") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "https://cutroom.example/contact") {
		t.Error("sitemap missing contact page URL")
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics.Register()
	srv := newTestServer(t)
	handler := srv.Handler()

	// Drive one instrumented request so the counter has a series.
	warm := httptest.NewRequest(http.MethodGet, "/health", nil)
	handler.ServeHTTP(httptest.NewRecorder(), warm)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "cutroom_http_requests_total") {
		t.Error("metrics output missing cutroom_http_requests_total")
	}
}

func TestResolveVideoURL(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	tests := []struct {
		ref  string
		want string
	}{
		{"store:showreel.mp4", "/api/video/showreel.mp4"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ"},
		{"https://vimeo.com/123456", "https://player.vimeo.com/video/123456"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/video-url?ref="+url.QueryEscape(tt.ref), nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ref %q: status = %d: %s", tt.ref, w.Code, w.Body.String())
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("ref %q: invalid JSON: %v", tt.ref, err)
		}
		if body["url"] != tt.want {
			t.Errorf("ref %q: url = %q, want %q", tt.ref, body["url"], tt.want)
		}
	}
}

func TestContactSubmitAndRateLimit(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	payload := `{"name":"Ada","email":"ada@example.com","message":"Wedding film inquiry"}`

	submit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "198.51.100.7:40000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	// Burst of 3 succeeds, the fourth is throttled.
	for i := 0; i < 3; i++ {
		if w := submit(); w.Code != http.StatusCreated {
			t.Fatalf("submission %d: status = %d, want 201: %s", i+1, w.Code, w.Body.String())
		}
	}
	w := submit()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// A different client is not affected.
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.9:40000"
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req)
	if w2.Code != http.StatusCreated {
		t.Errorf("other client status = %d, want 201", w2.Code)
	}
}

func TestRateLimitSkipsOtherRoutes(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	// Far more GETs than the contact budget allows; none should be throttled.
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "198.51.100.7:40000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"192.0.2.1:1234", "", "192.0.2.1"},
		{"192.0.2.1:1234", "203.0.113.5", "203.0.113.5"},
		{"192.0.2.1:1234", "203.0.113.5, 10.0.0.1", "203.0.113.5"},
		{"[2001:db8::1]:1234", "", "[2001:db8::1]"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.remoteAddr
		if tt.forwarded != "" {
			r.Header.Set("X-Forwarded-For", tt.forwarded)
		}
		if got := clientIP(r); got != tt.want {
			t.Errorf("clientIP(%q, fwd=%q) = %q, want %q", tt.remoteAddr, tt.forwarded, got, tt.want)
		}
	}
}

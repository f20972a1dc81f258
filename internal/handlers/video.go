// Package handlers implements the HTTP handlers for the CutRoom media API.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cutroom/cutroom/internal/metrics"
	"github.com/cutroom/cutroom/internal/storage"
)

// Default knobs for the streaming gateway. The stream timeout bounds only the
// upstream store call; once headers are out, body relay runs on the request
// context alone.
const (
	DefaultStreamTimeout = 25 * time.Second
	DefaultPresignTTL    = 3600 * time.Second
)

// presignCacheControl keeps the cached response shorter-lived than the
// presigned URL itself, so clients revalidate before the signature expires.
const presignCacheControl = "private, max-age=3500"

// streamCacheControl matches immutable, content-addressed video objects.
const streamCacheControl = "public, max-age=31536000, immutable"

// requestMode classifies a video request before any I/O happens.
type requestMode int

const (
	modeDirectStream requestMode = iota
	modeJSONURL
	modeRedirect
	modeHeadQuery
)

// String returns the metrics label for the mode.
func (m requestMode) String() string {
	switch m {
	case modeJSONURL:
		return "url"
	case modeRedirect:
		return "redirect"
	case modeHeadQuery:
		return "head"
	default:
		return "stream"
	}
}

// classifyRequest picks exactly one response mode from the method and query
// parameters. HEAD always wins so that players probing a resource never
// trigger presigning.
func classifyRequest(method string, query url.Values) requestMode {
	if method == http.MethodHead {
		return modeHeadQuery
	}
	switch {
	case query.Get("url") == "1":
		return modeJSONURL
	case query.Get("redirect") == "1":
		return modeRedirect
	default:
		return modeDirectStream
	}
}

// VideoHandler is the range-aware streaming gateway in front of the video
// store. It holds no per-request state; one instance serves all requests.
type VideoHandler struct {
	store         storage.VideoStore
	streamTimeout time.Duration
	presignTTL    time.Duration
}

// NewVideoHandler creates a VideoHandler over the given store. Zero timeout
// or TTL values fall back to the defaults.
func NewVideoHandler(store storage.VideoStore, streamTimeout, presignTTL time.Duration) *VideoHandler {
	if streamTimeout <= 0 {
		streamTimeout = DefaultStreamTimeout
	}
	if presignTTL <= 0 {
		presignTTL = DefaultPresignTTL
	}
	return &VideoHandler{
		store:         store,
		streamTimeout: streamTimeout,
		presignTTL:    presignTTL,
	}
}

// videoKey extracts and percent-decodes the store key from the request path.
// The escaped path is used so keys containing encoded slashes survive.
func videoKey(r *http.Request) string {
	p := r.URL.EscapedPath()
	p = strings.TrimPrefix(p, "/api/video")
	p = strings.TrimPrefix(p, "/")
	key, err := url.PathUnescape(p)
	if err != nil {
		return ""
	}
	return key
}

// ServeVideo handles GET and HEAD /api/video/{key}. Each request resolves to
// exactly one of: 400 missing key, JSON presigned URL, redirect to a
// presigned URL, direct byte streaming, HEAD metadata, or a 500 fallback.
func (h *VideoHandler) ServeVideo(w http.ResponseWriter, r *http.Request) {
	key := videoKey(r)
	mode := classifyRequest(r.Method, r.URL.Query())
	isHead := mode == modeHeadQuery

	if key == "" {
		metrics.VideoRequestsTotal.WithLabelValues(mode.String(), "400").Inc()
		if isHead {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSONError(w, http.StatusBadRequest, "Video key is required")
		return
	}

	switch mode {
	case modeJSONURL:
		h.serveJSONURL(w, r, key)
	case modeRedirect:
		h.serveRedirect(w, r, key)
	case modeHeadQuery:
		h.serveHead(w, r, key)
	default:
		h.serveStream(w, r, key)
	}
}

// serveJSONURL responds with the presigned URL as JSON data. Presign errors
// have no fallback and surface as a generic 500.
func (h *VideoHandler) serveJSONURL(w http.ResponseWriter, r *http.Request, key string) {
	u, err := h.store.PresignURL(r.Context(), key, h.presignTTL)
	if err != nil {
		slog.Error("presigning video URL failed", "key", key, "error", err)
		metrics.VideoRequestsTotal.WithLabelValues("url", "500").Inc()
		metrics.PresignsTotal.WithLabelValues("error").Inc()
		writeJSONError(w, http.StatusInternalServerError, "Failed to stream video")
		return
	}
	metrics.VideoRequestsTotal.WithLabelValues("url", "200").Inc()
	metrics.PresignsTotal.WithLabelValues("success").Inc()

	w.Header().Set("Cache-Control", presignCacheControl)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": u})
}

// serveRedirect issues a 302 to the presigned URL so a CDN edge can cache the
// redirect instead of proxying bytes.
func (h *VideoHandler) serveRedirect(w http.ResponseWriter, r *http.Request, key string) {
	u, err := h.store.PresignURL(r.Context(), key, h.presignTTL)
	if err != nil {
		slog.Error("presigning video URL failed", "key", key, "error", err)
		metrics.VideoRequestsTotal.WithLabelValues("redirect", "500").Inc()
		metrics.PresignsTotal.WithLabelValues("error").Inc()
		writeJSONError(w, http.StatusInternalServerError, "Failed to stream video")
		return
	}
	metrics.VideoRequestsTotal.WithLabelValues("redirect", "302").Inc()
	metrics.PresignsTotal.WithLabelValues("success").Inc()

	w.Header().Set("Cache-Control", presignCacheControl)
	http.Redirect(w, r, u, http.StatusFound)
}

// serveHead reports full-object metadata without touching the data path.
// HEAD never applies Range logic: Content-Length is always the total size.
func (h *VideoHandler) serveHead(w http.ResponseWriter, r *http.Request, key string) {
	meta, err := h.store.GetMetadata(r.Context(), key)
	if err != nil {
		slog.Warn("video metadata lookup failed", "key", key, "error", err)
	}
	if meta == nil {
		metrics.VideoRequestsTotal.WithLabelValues("head", "404").Inc()
		w.WriteHeader(http.StatusNotFound)
		return
	}
	metrics.VideoRequestsTotal.WithLabelValues("head", "200").Inc()

	contentType := meta.ContentType
	if contentType == "" {
		contentType = storage.MimeTypeFromKey(key)
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.FormatInt(meta.ContentLength, 10))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", streamCacheControl)
	if meta.ETag != "" {
		w.Header().Set("ETag", meta.ETag)
	}
	w.WriteHeader(http.StatusOK)
}

// streamOutcome carries the result of the racing store call.
type streamOutcome struct {
	res *storage.StreamResult
	err error
}

// serveStream relays object bytes with range semantics. The store call races
// a timer: if the store has not produced a result within the stream timeout,
// the request fails into the 404 path and the late result is discarded.
func (h *VideoHandler) serveStream(w http.ResponseWriter, r *http.Request, key string) {
	rng, err := storage.ParseRangeHeader(r.Header.Get("Range"))
	if err != nil {
		// Malformed Range headers collapse to the same not-found contract the
		// player already handles.
		slog.Debug("rejecting malformed range header", "key", key, "error", err)
		metrics.VideoRequestsTotal.WithLabelValues("stream", "404").Inc()
		writeJSONError(w, http.StatusNotFound, "Video not found or streaming failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outcomeCh := make(chan streamOutcome, 1)
	go func() {
		res, err := h.store.StreamRange(ctx, key, rng)
		outcomeCh <- streamOutcome{res: res, err: err}
	}()

	timer := time.NewTimer(h.streamTimeout)
	defer timer.Stop()

	var out streamOutcome
	select {
	case out = <-outcomeCh:
	case <-timer.C:
		// Abandon the upstream fetch; the buffered channel lets the goroutine
		// finish, and the drain below closes any body it eventually produced.
		cancel()
		go func() {
			if late := <-outcomeCh; late.res != nil && late.res.Body != nil {
				late.res.Body.Close()
			}
		}()
		slog.Warn("video stream timed out", "key", key, "timeout", h.streamTimeout)
		metrics.VideoRequestsTotal.WithLabelValues("stream", "404").Inc()
		writeJSONError(w, http.StatusNotFound, "Video not found or streaming failed")
		return
	}

	if out.err != nil || out.res == nil || out.res.Body == nil {
		if out.err != nil {
			slog.Warn("video stream failed", "key", key, "error", out.err)
		}
		if out.res != nil && out.res.Body != nil {
			out.res.Body.Close()
		}
		metrics.VideoRequestsTotal.WithLabelValues("stream", "404").Inc()
		writeJSONError(w, http.StatusNotFound, "Video not found or streaming failed")
		return
	}
	res := out.res
	defer res.Body.Close()

	contentType := res.ContentType
	if contentType == "" {
		contentType = storage.MimeTypeFromKey(key)
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.FormatInt(res.ContentLength, 10))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", streamCacheControl)
	if res.ContentRange != "" {
		w.Header().Set("Content-Range", res.ContentRange)
	}
	if res.ETag != "" {
		w.Header().Set("ETag", res.ETag)
	}
	metrics.VideoRequestsTotal.WithLabelValues("stream", strconv.Itoa(res.Status)).Inc()
	w.WriteHeader(res.Status)

	// Client disconnects cancel ctx via the request context, which tears down
	// the upstream read.
	n, err := io.Copy(w, res.Body)
	metrics.VideoBytesSentTotal.Add(float64(n))
	if err != nil {
		slog.Debug("video stream interrupted", "key", key, "sent", n, "error", err)
	}
}

// writeJSONError writes a JSON error body with the given status. Bodies never
// include internal error detail.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Package metrics defines the Prometheus metrics for the CutRoom backend.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// HTTP metrics (RED: Rate, Errors, Duration).
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutroom_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency in seconds by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cutroom_http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Streaming and site metrics.
var (
	// VideoRequestsTotal counts video gateway requests by response mode
	// (stream, url, redirect, head) and status.
	VideoRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutroom_video_requests_total",
			Help: "Video gateway requests by mode",
		},
		[]string{"mode", "status"},
	)

	// VideoBytesSentTotal counts video bytes relayed to clients.
	VideoBytesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cutroom_video_bytes_sent_total",
			Help: "Total video bytes sent to clients",
		},
	)

	// PresignsTotal counts presigned-URL generations by outcome.
	PresignsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutroom_presigns_total",
			Help: "Presigned URL generations",
		},
		[]string{"status"},
	)

	// InquiriesTotal counts contact form submissions by outcome.
	InquiriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutroom_inquiries_total",
			Help: "Contact form submissions",
		},
		[]string{"status"},
	)
)

// Register registers all collectors with the default registry. Called
// explicitly from main so registration stays conditional on configuration.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			VideoRequestsTotal,
			VideoBytesSentTotal,
			PresignsTotal,
			InquiriesTotal,
		)
		// Seed the mode series so dashboards show zeroes before traffic.
		VideoRequestsTotal.WithLabelValues("stream", "200")
	})
}

// NormalizePath maps request paths to low-cardinality templates for metric
// labels. Individual video keys must never become label values.
func NormalizePath(path string) string {
	switch path {
	case "/health", "/metrics", "/sitemap.xml", "/openapi.json", "/api/contact", "/api/video-url":
		return path
	case "/docs", "/docs/":
		return "/docs"
	case "/", "":
		return "/"
	}
	if strings.HasPrefix(path, "/docs") {
		return "/docs"
	}
	if strings.HasPrefix(path, "/api/video") {
		return "/api/video/{key}"
	}
	return "/"
}

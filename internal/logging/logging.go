// Package logging configures structured logging for the CutRoom backend
// using log/slog.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Setup installs the default slog logger with the given level and format.
// Supported levels: "debug", "info", "warn", "error" (default: "info").
// Supported formats: "text", "json" (default: "text").
func Setup(level, format string, w io.Writer) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// HTTPLogger returns a request-scoped logger carrying common attributes.
func HTTPLogger(method, path, requestID string) *slog.Logger {
	return slog.Default().With(
		slog.String("method", method),
		slog.String("path", path),
		slog.String("request_id", requestID),
	)
}

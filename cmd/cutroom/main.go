// Package main is the entry point for the CutRoom site backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cutroom/cutroom/internal/config"
	"github.com/cutroom/cutroom/internal/handlers"
	"github.com/cutroom/cutroom/internal/inquiries"
	"github.com/cutroom/cutroom/internal/logging"
	"github.com/cutroom/cutroom/internal/mailer"
	"github.com/cutroom/cutroom/internal/metrics"
	"github.com/cutroom/cutroom/internal/server"
	"github.com/cutroom/cutroom/internal/storage"
)

func main() {
	configPath := flag.String("config", "cutroom.yaml", "path to configuration file")
	port := flag.Int("port", 0, "override listening port (default: from config or 8080)")
	host := flag.String("host", "", "override listening host (default: from config or 0.0.0.0)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (default: from config or info)")
	logFormat := flag.String("log-format", "", "log format: text, json (default: from config or text)")
	shutdownTimeout := flag.Int("shutdown-timeout", 0, "graceful shutdown timeout in seconds (default: from config or 30)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command-line flags override config file values.
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if *shutdownTimeout != 0 {
		cfg.Server.ShutdownTimeout = *shutdownTimeout
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	metrics.Register()

	// Video store backend.
	var videoStore storage.VideoStore
	switch cfg.Storage.Backend {
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			fmt.Fprintf(os.Stderr, "storage.s3.bucket is required when backend is 's3'\n")
			os.Exit(1)
		}
		s3Store, s3Err := storage.NewS3Store(context.Background(), storage.S3Config{
			Bucket:    cfg.Storage.S3.Bucket,
			Region:    cfg.Storage.S3.Region,
			Prefix:    cfg.Storage.S3.Prefix,
			Endpoint:  cfg.Storage.S3.Endpoint,
			PathStyle: cfg.Storage.S3.PathStyle,
			AccessKey: cfg.Storage.S3.AccessKey,
			SecretKey: cfg.Storage.S3.SecretKey,
		})
		if s3Err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize S3 video store: %v\n", s3Err)
			os.Exit(1)
		}
		videoStore = s3Store
	default:
		root := cfg.Storage.Local.RootDir
		if err := os.MkdirAll(root, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create video root directory: %v\n", err)
			os.Exit(1)
		}
		localStore, localErr := storage.NewLocalStore(root)
		if localErr != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize local video store: %v\n", localErr)
			os.Exit(1)
		}
		videoStore = localStore
		slog.Info("Video store initialized", "backend", "local", "root", root)
	}

	// Inquiry persistence.
	dbPath := cfg.Inquiries.SQLitePath
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create inquiries directory: %v\n", err)
		os.Exit(1)
	}
	inquiryStore, err := inquiries.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize inquiry store: %v\n", err)
		os.Exit(1)
	}
	defer inquiryStore.Close()

	// Mail notification is optional; an empty host disables it.
	var inquiryMailer handlers.InquiryMailer
	if cfg.Mail.Host != "" {
		m, mailErr := mailer.New(mailer.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			To:       cfg.Mail.To,
			StartTLS: cfg.Mail.StartTLS,
		})
		if mailErr != nil {
			fmt.Fprintf(os.Stderr, "failed to configure mailer: %v\n", mailErr)
			os.Exit(1)
		}
		inquiryMailer = m
		slog.Info("Inquiry mail notifications enabled", "host", cfg.Mail.Host, "to", cfg.Mail.To)
	}

	srv, err := server.New(cfg,
		server.WithVideoStore(videoStore),
		server.WithInquiryStore(inquiryStore),
		server.WithMailer(inquiryMailer),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create server: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	// Start the server in a goroutine so we can handle shutdown signals.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("CutRoom listening", "addr", addr)
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Received signal, shutting down", "signal", sig)

		// Give in-flight requests time to complete.
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Shutdown error", "error", err)
		}
		slog.Info("Server stopped")

	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}
}

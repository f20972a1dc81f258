// Package config handles loading and parsing of the CutRoom configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the CutRoom backend.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Site      SiteConfig      `yaml:"site"`
	Storage   StorageConfig   `yaml:"storage"`
	Stream    StreamConfig    `yaml:"stream"`
	Inquiries InquiriesConfig `yaml:"inquiries"`
	Mail      MailConfig      `yaml:"mail"`
	Contact   ContactConfig   `yaml:"contact"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// ShutdownTimeout is the graceful shutdown window in seconds.
	ShutdownTimeout int `yaml:"shutdown_timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// SiteConfig holds site-wide settings.
type SiteConfig struct {
	// BaseURL is the public origin of the site, used for sitemap entries.
	BaseURL string `yaml:"base_url"`
}

// StorageConfig holds video store settings.
type StorageConfig struct {
	// Backend is "s3" or "local".
	Backend string      `yaml:"backend"`
	S3      S3Config    `yaml:"s3"`
	Local   LocalConfig `yaml:"local"`
}

// S3Config holds S3-compatible store settings. Bucket is required when the
// backend is "s3".
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// LocalConfig holds local filesystem store settings.
type LocalConfig struct {
	// RootDir is the base directory for local video files.
	RootDir string `yaml:"root_dir"`
}

// StreamConfig holds streaming gateway settings.
type StreamConfig struct {
	// TimeoutSeconds bounds the upstream store call on the direct-stream path.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// PresignTTLSeconds is the lifetime of presigned URLs.
	PresignTTLSeconds int `yaml:"presign_ttl_seconds"`
}

// InquiriesConfig holds contact submission persistence settings.
type InquiriesConfig struct {
	// SQLitePath is the filesystem path for the inquiries database.
	SQLitePath string `yaml:"sqlite_path"`
}

// MailConfig holds SMTP notification settings. An empty host disables mail.
type MailConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	StartTLS bool     `yaml:"starttls"`
}

// ContactConfig holds contact endpoint rate-limit settings.
type ContactConfig struct {
	// RatePerMinute is the sustained submission rate allowed per client IP.
	RatePerMinute float64 `yaml:"rate_per_minute"`
	// Burst is the rate-limiter burst size per client IP.
	Burst int `yaml:"burst"`
}

// Load reads a YAML configuration file from the given path and returns a
// parsed Config with defaults applied. If the primary path fails, it falls
// back to cutroom.example.yaml in the same or parent directory.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		fallbackPaths := []string{
			filepath.Join(filepath.Dir(path), "cutroom.example.yaml"),
			filepath.Join(filepath.Dir(path), "..", "cutroom.example.yaml"),
		}
		var fallbackErr error
		for _, fp := range fallbackPaths {
			data, fallbackErr = os.ReadFile(fp)
			if fallbackErr == nil {
				break
			}
		}
		if fallbackErr != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Site: SiteConfig{
			BaseURL: "http://localhost:8080",
		},
		Storage: StorageConfig{
			Backend: "local",
			Local: LocalConfig{
				RootDir: "./data/videos",
			},
		},
		Stream: StreamConfig{
			TimeoutSeconds:    25,
			PresignTTLSeconds: 3600,
		},
		Inquiries: InquiriesConfig{
			SQLitePath: "./data/inquiries.db",
		},
		Contact: ContactConfig{
			RatePerMinute: 5,
			Burst:         3,
		},
	}
}

// applyDefaults fills in fields still at their zero value after YAML
// unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Site.BaseURL == "" {
		cfg.Site.BaseURL = "http://localhost:8080"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.Local.RootDir == "" {
		cfg.Storage.Local.RootDir = "./data/videos"
	}
	if cfg.Stream.TimeoutSeconds == 0 {
		cfg.Stream.TimeoutSeconds = 25
	}
	if cfg.Stream.PresignTTLSeconds == 0 {
		cfg.Stream.PresignTTLSeconds = 3600
	}
	if cfg.Inquiries.SQLitePath == "" {
		cfg.Inquiries.SQLitePath = "./data/inquiries.db"
	}
	if cfg.Contact.RatePerMinute == 0 {
		cfg.Contact.RatePerMinute = 5
	}
	if cfg.Contact.Burst == 0 {
		cfg.Contact.Burst = 3
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}
}

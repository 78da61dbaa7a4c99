package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/pdfmd/internal/extract"
	"github.com/dgallion1/pdfmd/internal/pdf"
	"github.com/dgallion1/pdfmd/internal/staging"
)

type Config struct {
	Port string

	// Auth. Empty disables bearer auth.
	APIKey string

	// Upload limits
	MaxUploadBytes int64

	// Staging
	StagingMedium     string
	StagingDir        string
	StagingStaleAfter time.Duration

	// Extraction
	Engine                   string
	ExtractTimeout           time.Duration
	MaxConcurrentConversions int
	PDFLimits                pdf.Limits

	LogLevel string
}

func Load() Config {
	def := pdf.DefaultLimits()
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("API_KEY"),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		StagingMedium:     envOr("STAGING_MEDIUM", string(staging.Disk)),
		StagingDir:        envOr("STAGING_DIR", os.TempDir()),
		StagingStaleAfter: envDuration("STAGING_STALE_AFTER", 1*time.Hour),

		Engine:                   envOr("ENGINE", "native"),
		ExtractTimeout:           envDuration("EXTRACT_TIMEOUT", 30*time.Second),
		MaxConcurrentConversions: envInt("MAX_CONCURRENT_CONVERSIONS", 8),
		PDFLimits: pdf.Limits{
			MaxObjects:     envInt("PDF_MAX_OBJECTS", def.MaxObjects),
			MaxDepth:       envInt("PDF_MAX_DEPTH", def.MaxDepth),
			MaxStreamBytes: envInt64("PDF_MAX_STREAM_BYTES", def.MaxStreamBytes),
			MaxTotalBytes:  envInt64("PDF_MAX_TOTAL_BYTES", def.MaxTotalBytes),
			MaxPages:       envInt("PDF_MAX_PAGES", def.MaxPages),
			MaxOperations:  envInt("PDF_MAX_OPERATIONS", def.MaxOperations),
		},

		LogLevel: envOr("LOG_LEVEL", "info"),
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.StagingStaleAfter <= 0 {
		cfg.StagingStaleAfter = 1 * time.Hour
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = 30 * time.Second
	}
	if cfg.MaxConcurrentConversions <= 0 {
		cfg.MaxConcurrentConversions = 8
	}
	if cfg.PDFLimits.MaxStreamBytes > cfg.PDFLimits.MaxTotalBytes && cfg.PDFLimits.MaxTotalBytes > 0 {
		cfg.PDFLimits.MaxStreamBytes = cfg.PDFLimits.MaxTotalBytes
	}

	return cfg
}

func (c Config) Validate() error {
	medium, err := staging.ParseMedium(c.StagingMedium)
	if err != nil {
		return fmt.Errorf("STAGING_MEDIUM: %w", err)
	}
	engine := strings.ToLower(c.Engine)
	known := false
	for _, e := range extract.Engines {
		if e == engine {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("ENGINE must be one of %s, got %q", strings.Join(extract.Engines, ", "), c.Engine)
	}
	if engine == "pdftotext" && medium != staging.Disk {
		return fmt.Errorf("ENGINE=pdftotext requires STAGING_MEDIUM=disk")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

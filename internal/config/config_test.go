package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "API_KEY", "MAX_UPLOAD_BYTES", "STAGING_MEDIUM", "ENGINE", "EXTRACT_TIMEOUT", "MAX_CONCURRENT_CONVERSIONS", "PDF_MAX_PAGES", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.APIKey != "" {
		t.Errorf("expected auth disabled by default")
	}
	if cfg.MaxUploadBytes != 52428800 {
		t.Errorf("expected 50MB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.StagingMedium != "disk" || cfg.Engine != "native" {
		t.Errorf("unexpected medium/engine %q/%q", cfg.StagingMedium, cfg.Engine)
	}
	if cfg.ExtractTimeout != 30*time.Second || cfg.MaxConcurrentConversions != 8 {
		t.Errorf("unexpected timeout/concurrency %v/%d", cfg.ExtractTimeout, cfg.MaxConcurrentConversions)
	}
	if cfg.PDFLimits.MaxPages != 5000 {
		t.Errorf("expected 5000 page limit, got %d", cfg.PDFLimits.MaxPages)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadOverridesAndClamps(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "-5")
	t.Setenv("EXTRACT_TIMEOUT", "2s")
	t.Setenv("MAX_CONCURRENT_CONVERSIONS", "0")
	t.Setenv("PDF_MAX_STREAM_BYTES", "1000")
	t.Setenv("PDF_MAX_TOTAL_BYTES", "500")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.MaxUploadBytes != 52428800 {
		t.Errorf("negative upload limit should fall back, got %d", cfg.MaxUploadBytes)
	}
	if cfg.ExtractTimeout != 2*time.Second {
		t.Errorf("expected 2s timeout, got %v", cfg.ExtractTimeout)
	}
	if cfg.MaxConcurrentConversions != 8 {
		t.Errorf("expected clamped concurrency 8, got %d", cfg.MaxConcurrentConversions)
	}
	if cfg.PDFLimits.MaxStreamBytes != 500 {
		t.Errorf("stream limit should not exceed total, got %d", cfg.PDFLimits.MaxStreamBytes)
	}
	lvl, err := cfg.SlogLevel()
	if err != nil || lvl != slog.LevelDebug {
		t.Errorf("expected debug level, got %v (%v)", lvl, err)
	}
}

func TestValidate(t *testing.T) {
	base := Config{StagingMedium: "disk", Engine: "native", LogLevel: "info"}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(*Config) {}, false},
		{"memory ok", func(c *Config) { c.StagingMedium = "memory" }, false},
		{"bad medium", func(c *Config) { c.StagingMedium = "tape" }, true},
		{"bad engine", func(c *Config) { c.Engine = "ocr" }, true},
		{"pdftotext needs disk", func(c *Config) { c.Engine = "pdftotext"; c.StagingMedium = "memory" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

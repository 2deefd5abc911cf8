package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.WinStride != 8 || cfg.Padding != 8 || cfg.ScaleStep != 1.05 {
		t.Errorf("unexpected detection defaults: stride=%d padding=%d scale=%g", cfg.WinStride, cfg.Padding, cfg.ScaleStep)
	}
	if cfg.Addr() != "0.0.0.0:5000" {
		t.Errorf("Expected 0.0.0.0:5000, got %s", cfg.Addr())
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"empty device", func(c *Config) { c.CameraDevice = "" }},
		{"zero frame width", func(c *Config) { c.FrameWidth = 0 }},
		{"negative capture height", func(c *Config) { c.CaptureHeight = -1 }},
		{"zero stride", func(c *Config) { c.WinStride = 0 }},
		{"negative padding", func(c *Config) { c.Padding = -2 }},
		{"scale step of one", func(c *Config) { c.ScaleStep = 1 }},
		{"unknown format", func(c *Config) { c.ImageFormat = "gif" }},
		{"quality too high", func(c *Config) { c.JPEGQuality = 101 }},
		{"max delay below delay", func(c *Config) {
			c.CaptureRetryDelay = time.Second
			c.CaptureRetryMaxDelay = time.Millisecond
		}},
		{"journal without flush interval", func(c *Config) { c.JournalFlushInterval = 0 }},
	}

	for _, tt := range tests {
		cfg := Default()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestValidate_JournalDisabledIgnoresJournalSettings(t *testing.T) {
	cfg := Default()
	cfg.JournalPath = ""
	cfg.JournalBufferLimit = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled journal should not be validated: %v", err)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dronecam.toml")
	content := `
port = 8081
camera_device = "/dev/video0"
capture_retry_delay = "50ms"

[detection]
win_stride = 4
scale_step = 1.1

[output]
format = "PNG"

[journal]
path = ""
flush_interval = "5s"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("PORT", "9090")
	t.Setenv("PADDING", "16")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("env should override file port, got %d", cfg.Port)
	}
	if cfg.CameraDevice != "/dev/video0" {
		t.Errorf("Expected camera device from file, got %s", cfg.CameraDevice)
	}
	if cfg.WinStride != 4 || cfg.ScaleStep != 1.1 {
		t.Errorf("detection section not applied: stride=%d scale=%g", cfg.WinStride, cfg.ScaleStep)
	}
	if cfg.Padding != 16 {
		t.Errorf("Expected padding 16 from env, got %d", cfg.Padding)
	}
	if cfg.ImageFormat != FormatPNG {
		t.Errorf("Expected png format, got %s", cfg.ImageFormat)
	}
	if cfg.CaptureRetryDelay != 50*time.Millisecond {
		t.Errorf("Expected 50ms retry delay, got %s", cfg.CaptureRetryDelay)
	}
	if cfg.JournalPath != "" || cfg.JournalFlushInterval != 5*time.Second {
		t.Errorf("journal section not applied: path=%q flush=%s", cfg.JournalPath, cfg.JournalFlushInterval)
	}
	if cfg.FrameWidth != 320 {
		t.Errorf("unset keys should keep defaults, got frame width %d", cfg.FrameWidth)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte(`capture_retry_delay = "soon"`), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid duration")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestGetEnvHelpers_InvalidFallsBack(t *testing.T) {
	t.Setenv("DRONECAM_TEST_INT", "abc")
	t.Setenv("DRONECAM_TEST_FLOAT", "x1.5")
	t.Setenv("DRONECAM_TEST_DURATION", "10")

	if got := getEnvAsInt("DRONECAM_TEST_INT", 7); got != 7 {
		t.Errorf("getEnvAsInt = %d, expected 7", got)
	}
	if got := getEnvAsFloat("DRONECAM_TEST_FLOAT", 1.5); got != 1.5 {
		t.Errorf("getEnvAsFloat = %g, expected 1.5", got)
	}
	if got := getEnvAsDuration("DRONECAM_TEST_DURATION", time.Second); got != time.Second {
		t.Errorf("getEnvAsDuration = %s, expected 1s", got)
	}
}

func TestLoad_EmptyJournalPathDisablesJournal(t *testing.T) {
	t.Setenv("JOURNAL_PATH", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.JournalPath != "" {
		t.Errorf("Expected journal disabled, got %q", cfg.JournalPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config with journal disabled should be valid: %v", err)
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Image formats accepted by ImageFormat.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

type Config struct {
	Host string
	Port int

	CameraDevice  string // Index ("2") or path/URL of the capture device
	CaptureWidth  int
	CaptureHeight int

	FrameWidth  int // Processing resolution, every frame is resized to it
	FrameHeight int

	WinStride      int     // Sliding-window stride in pixels (both axes)
	Padding        int     // Padding margin in pixels (both axes)
	ScaleStep      float64 // Ratio between successive detection scales
	HitThreshold   float64
	FinalThreshold float64

	ImageFormat string
	JPEGQuality int

	CaptureRetryDelay    time.Duration // 0 = retry immediately
	CaptureRetryMaxDelay time.Duration

	LogDirectory string

	JournalPath          string // Empty disables the detection journal
	JournalFlushInterval time.Duration
	JournalBufferLimit   int
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:                 "0.0.0.0",
		Port:                 5000,
		CameraDevice:         "2",
		CaptureWidth:         320,
		CaptureHeight:        240,
		FrameWidth:           320,
		FrameHeight:          240,
		WinStride:            8,
		Padding:              8,
		ScaleStep:            1.05,
		HitThreshold:         0,
		FinalThreshold:       2,
		ImageFormat:          FormatJPEG,
		JPEGQuality:          95,
		CaptureRetryDelay:    0,
		CaptureRetryMaxDelay: time.Second,
		LogDirectory:         filepath.Join(".", "logs"),
		JournalPath:          filepath.Join(".", "data", "detections.db"),
		JournalFlushInterval: 30 * time.Second,
		JournalBufferLimit:   100,
	}
}

// Load builds the configuration from defaults, an optional TOML file and
// the environment (a .env file in the working directory is read first).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		fc, err := loadFileConfig(path)
		if err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		if err := applyFileConfig(cfg, fc); err != nil {
			return nil, fmt.Errorf("apply config file %s: %w", path, err)
		}
	}

	// Missing .env is not an error.
	_ = godotenv.Load()
	applyEnv(cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Host = getEnv("HOST", cfg.Host)
	cfg.Port = getEnvAsInt("PORT", cfg.Port)
	cfg.CameraDevice = getEnv("CAMERA_DEVICE", cfg.CameraDevice)
	cfg.CaptureWidth = getEnvAsInt("CAPTURE_WIDTH", cfg.CaptureWidth)
	cfg.CaptureHeight = getEnvAsInt("CAPTURE_HEIGHT", cfg.CaptureHeight)
	cfg.FrameWidth = getEnvAsInt("FRAME_WIDTH", cfg.FrameWidth)
	cfg.FrameHeight = getEnvAsInt("FRAME_HEIGHT", cfg.FrameHeight)
	cfg.WinStride = getEnvAsInt("WIN_STRIDE", cfg.WinStride)
	cfg.Padding = getEnvAsInt("PADDING", cfg.Padding)
	cfg.ScaleStep = getEnvAsFloat("SCALE_STEP", cfg.ScaleStep)
	cfg.HitThreshold = getEnvAsFloat("HIT_THRESHOLD", cfg.HitThreshold)
	cfg.FinalThreshold = getEnvAsFloat("FINAL_THRESHOLD", cfg.FinalThreshold)
	cfg.ImageFormat = strings.ToLower(getEnv("IMAGE_FORMAT", cfg.ImageFormat))
	cfg.JPEGQuality = getEnvAsInt("JPEG_QUALITY", cfg.JPEGQuality)
	cfg.CaptureRetryDelay = getEnvAsDuration("CAPTURE_RETRY_DELAY", cfg.CaptureRetryDelay)
	cfg.CaptureRetryMaxDelay = getEnvAsDuration("CAPTURE_RETRY_MAX_DELAY", cfg.CaptureRetryMaxDelay)
	cfg.LogDirectory = getEnv("LOG_DIR", cfg.LogDirectory)
	// An explicitly empty JOURNAL_PATH disables the journal.
	if value, ok := os.LookupEnv("JOURNAL_PATH"); ok {
		cfg.JournalPath = value
	}
	cfg.JournalFlushInterval = getEnvAsDuration("JOURNAL_FLUSH_INTERVAL", cfg.JournalFlushInterval)
	cfg.JournalBufferLimit = getEnvAsInt("JOURNAL_BUFFER_LIMIT", cfg.JournalBufferLimit)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.CameraDevice == "" {
		return fmt.Errorf("camera device must be set")
	}
	if c.CaptureWidth <= 0 || c.CaptureHeight <= 0 {
		return fmt.Errorf("capture resolution must be positive, got %dx%d", c.CaptureWidth, c.CaptureHeight)
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame resolution must be positive, got %dx%d", c.FrameWidth, c.FrameHeight)
	}
	if c.WinStride <= 0 {
		return fmt.Errorf("window stride must be positive, got %d", c.WinStride)
	}
	if c.Padding < 0 {
		return fmt.Errorf("padding must not be negative, got %d", c.Padding)
	}
	if c.ScaleStep <= 1 {
		return fmt.Errorf("scale step must be greater than 1, got %g", c.ScaleStep)
	}
	switch c.ImageFormat {
	case FormatJPEG, FormatPNG:
	default:
		return fmt.Errorf("unknown image format %q", c.ImageFormat)
	}
	if c.JPEGQuality < 0 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be within 0..100, got %d", c.JPEGQuality)
	}
	if c.CaptureRetryDelay < 0 || c.CaptureRetryMaxDelay < c.CaptureRetryDelay {
		return fmt.Errorf("invalid capture retry delays %s/%s", c.CaptureRetryDelay, c.CaptureRetryMaxDelay)
	}
	if c.JournalPath != "" && (c.JournalFlushInterval <= 0 || c.JournalBufferLimit <= 0) {
		return fmt.Errorf("journal flush interval and buffer limit must be positive")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

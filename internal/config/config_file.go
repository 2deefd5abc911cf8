package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config with pointer fields so unset keys keep their defaults.
// Durations are strings ("250ms", "30s") to keep the file readable.
type fileConfig struct {
	Host          *string `toml:"host"`
	Port          *int    `toml:"port"`
	CameraDevice  *string `toml:"camera_device"`
	CaptureWidth  *int    `toml:"capture_width"`
	CaptureHeight *int    `toml:"capture_height"`
	FrameWidth    *int    `toml:"frame_width"`
	FrameHeight   *int    `toml:"frame_height"`

	Detection struct {
		WinStride      *int     `toml:"win_stride"`
		Padding        *int     `toml:"padding"`
		ScaleStep      *float64 `toml:"scale_step"`
		HitThreshold   *float64 `toml:"hit_threshold"`
		FinalThreshold *float64 `toml:"final_threshold"`
	} `toml:"detection"`

	Output struct {
		Format      *string `toml:"format"`
		JPEGQuality *int    `toml:"jpeg_quality"`
	} `toml:"output"`

	CaptureRetryDelay    *string `toml:"capture_retry_delay"`
	CaptureRetryMaxDelay *string `toml:"capture_retry_max_delay"`
	LogDirectory         *string `toml:"log_dir"`

	Journal struct {
		Path          *string `toml:"path"`
		FlushInterval *string `toml:"flush_interval"`
		BufferLimit   *int    `toml:"buffer_limit"`
	} `toml:"journal"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

func applyFileConfig(cfg *Config, fc fileConfig) error {
	setString(fc.Host, &cfg.Host)
	setInt(fc.Port, &cfg.Port)
	setString(fc.CameraDevice, &cfg.CameraDevice)
	setInt(fc.CaptureWidth, &cfg.CaptureWidth)
	setInt(fc.CaptureHeight, &cfg.CaptureHeight)
	setInt(fc.FrameWidth, &cfg.FrameWidth)
	setInt(fc.FrameHeight, &cfg.FrameHeight)

	setInt(fc.Detection.WinStride, &cfg.WinStride)
	setInt(fc.Detection.Padding, &cfg.Padding)
	setFloat(fc.Detection.ScaleStep, &cfg.ScaleStep)
	setFloat(fc.Detection.HitThreshold, &cfg.HitThreshold)
	setFloat(fc.Detection.FinalThreshold, &cfg.FinalThreshold)

	if fc.Output.Format != nil {
		cfg.ImageFormat = strings.ToLower(*fc.Output.Format)
	}
	setInt(fc.Output.JPEGQuality, &cfg.JPEGQuality)

	setString(fc.LogDirectory, &cfg.LogDirectory)
	setString(fc.Journal.Path, &cfg.JournalPath)
	setInt(fc.Journal.BufferLimit, &cfg.JournalBufferLimit)

	if err := setDuration("capture_retry_delay", fc.CaptureRetryDelay, &cfg.CaptureRetryDelay); err != nil {
		return err
	}
	if err := setDuration("capture_retry_max_delay", fc.CaptureRetryMaxDelay, &cfg.CaptureRetryMaxDelay); err != nil {
		return err
	}
	return setDuration("journal.flush_interval", fc.Journal.FlushInterval, &cfg.JournalFlushInterval)
}

func setString(v *string, dst *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(v *int, dst *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(v *float64, dst *float64) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(key string, v *string, dst *time.Duration) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, *v, err)
	}
	*dst = d
	return nil
}

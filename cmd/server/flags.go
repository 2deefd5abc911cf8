package main

import (
	"strings"

	pflag "github.com/spf13/pflag"

	"dronecam/internal/config"
)

// applyFlags copies every flag the user set into cfg.
func applyFlags(cfg *config.Config, flags *pflag.FlagSet, fv *flagValues) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = fv.host
		case "port":
			cfg.Port = fv.port
		case "device":
			cfg.CameraDevice = fv.device
		case "width":
			cfg.FrameWidth = fv.frameWidth
		case "height":
			cfg.FrameHeight = fv.frameHeight
		case "win-stride":
			cfg.WinStride = fv.winStride
		case "padding":
			cfg.Padding = fv.padding
		case "scale-step":
			cfg.ScaleStep = fv.scaleStep
		case "format":
			cfg.ImageFormat = strings.ToLower(fv.format)
		case "jpeg-quality":
			cfg.JPEGQuality = fv.jpegQuality
		case "log-dir":
			cfg.LogDirectory = fv.logDir
		case "journal":
			cfg.JournalPath = fv.journal
		case "retry-delay":
			cfg.CaptureRetryDelay = fv.retryDelay
		case "retry-max-delay":
			cfg.CaptureRetryMaxDelay = fv.retryMaxDelay
		}
	})
}

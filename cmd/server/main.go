package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dronecam/internal/app"
	"dronecam/internal/config"
	"dronecam/internal/logger"
)

var exampleUsage = strings.TrimSpace(`
  dronecam --device 0 --port 8080
  dronecam --config ./dronecam.toml --format png
  CAMERA_DEVICE=rtsp://10.0.0.5/live dronecam
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// flagValues mirrors the overridable settings. Only flags set on the command
// line are applied over the file and environment configuration.
type flagValues struct {
	host          string
	port          int
	device        string
	frameWidth    int
	frameHeight   int
	winStride     int
	padding       int
	scaleStep     float64
	format        string
	jpegQuality   int
	logDir        string
	journal       string
	retryDelay    time.Duration
	retryMaxDelay time.Duration
}

func main() {
	var cfgPath string
	var fv flagValues
	def := config.Default()

	root := &cobra.Command{
		Use:          "dronecam",
		Short:        "Stream a camera feed with people detections drawn on every frame",
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			applyFlags(cfg, cmd.Flags(), &fv)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			log, err := logger.NewLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer log.Close()

			application, err := app.NewApp(cfg, log)
			if err != nil {
				log.Error("Failed to start: %v", err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return application.Run(ctx)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to a TOML config file")
	f.StringVar(&fv.host, "host", def.Host, "HTTP listen host")
	f.IntVar(&fv.port, "port", def.Port, "HTTP listen port")
	f.StringVar(&fv.device, "device", def.CameraDevice, "camera index, file path or stream URL")
	f.IntVar(&fv.frameWidth, "width", def.FrameWidth, "processing frame width")
	f.IntVar(&fv.frameHeight, "height", def.FrameHeight, "processing frame height")
	f.IntVar(&fv.winStride, "win-stride", def.WinStride, "detector window stride in pixels")
	f.IntVar(&fv.padding, "padding", def.Padding, "detector padding in pixels")
	f.Float64Var(&fv.scaleStep, "scale-step", def.ScaleStep, "ratio between detection scales")
	f.StringVar(&fv.format, "format", def.ImageFormat, "stream image format (jpeg or png)")
	f.IntVar(&fv.jpegQuality, "jpeg-quality", def.JPEGQuality, "JPEG quality 0..100")
	f.StringVar(&fv.logDir, "log-dir", def.LogDirectory, "directory for per-level log files")
	f.StringVar(&fv.journal, "journal", def.JournalPath, "detection journal database path (empty disables)")
	f.DurationVar(&fv.retryDelay, "retry-delay", def.CaptureRetryDelay, "initial delay after a failed capture")
	f.DurationVar(&fv.retryMaxDelay, "retry-max-delay", def.CaptureRetryMaxDelay, "maximum delay between failed captures")

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

package camera

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"dronecam/internal/config"
	"dronecam/internal/logger"

	"gocv.io/x/gocv"
)

// ErrNoFrame is returned when the device produced no frame this time.
var ErrNoFrame = errors.New("camera: no frame available")

// FrameSource produces raw frames on demand. The caller owns the returned
// Mat and must Close it.
type FrameSource interface {
	Read() (gocv.Mat, error)
	Close() error
}

// VideoSource reads frames from a gocv VideoCapture device.
type VideoSource struct {
	device  string
	capture *gocv.VideoCapture
	mu      sync.Mutex
	logger  *logger.Logger
}

// OpenVideoSource opens the configured device and requests the capture resolution.
// A numeric device is treated as a camera index, anything else as a path or URL.
func OpenVideoSource(cfg *config.Config, logger *logger.Logger) (*VideoSource, error) {
	var device interface{} = cfg.CameraDevice
	if index, err := strconv.Atoi(cfg.CameraDevice); err == nil {
		device = index
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open video capture device %s: %w", cfg.CameraDevice, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.CaptureWidth))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.CaptureHeight))

	logger.Info("Camera %s opened (%dx%d requested)", cfg.CameraDevice, cfg.CaptureWidth, cfg.CaptureHeight)

	return &VideoSource{
		device:  cfg.CameraDevice,
		capture: capture,
		logger:  logger,
	}, nil
}

// Read grabs the next frame. It returns ErrNoFrame when the device is busy,
// disconnected or returned an empty image.
func (s *VideoSource) Read() (gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return gocv.Mat{}, ErrNoFrame
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return gocv.Mat{}, ErrNoFrame
	}
	return mat, nil
}

// Close releases the device.
func (s *VideoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return nil
	}
	err := s.capture.Close()
	s.capture = nil
	s.logger.Info("Camera %s closed", s.device)
	return err
}

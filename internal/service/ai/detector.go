package ai

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"dronecam/internal/config"
	"dronecam/internal/dto"
	"dronecam/internal/logger"

	"gocv.io/x/gocv"
)

// Params are the sliding-window settings passed to a Detector on every call.
type Params struct {
	WinStride      image.Point
	Padding        image.Point
	ScaleStep      float64
	HitThreshold   float64
	FinalThreshold float64
}

// ParamsFromConfig builds detection parameters from the configuration.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		WinStride:      image.Pt(cfg.WinStride, cfg.WinStride),
		Padding:        image.Pt(cfg.Padding, cfg.Padding),
		ScaleStep:      cfg.ScaleStep,
		HitThreshold:   cfg.HitThreshold,
		FinalThreshold: cfg.FinalThreshold,
	}
}

// Detector finds objects in a frame. Implementations must not modify frame.
type Detector interface {
	Detect(frame gocv.Mat, params Params) ([]dto.Detection, error)
}

// HOGDetector detects people with OpenCV's default HOG + linear SVM model.
type HOGDetector struct {
	hog    gocv.HOGDescriptor
	mu     sync.Mutex
	logger *logger.Logger
}

// NewHOGDetector loads the default people detector.
func NewHOGDetector(logger *logger.Logger) (*HOGDetector, error) {
	hog := gocv.NewHOGDescriptor()

	svm := gocv.HOGDefaultPeopleDetector()
	defer svm.Close()

	if err := hog.SetSVMDetector(svm); err != nil {
		hog.Close()
		return nil, fmt.Errorf("failed to set SVM detector: %w", err)
	}

	logger.Info("HOG people detector initialized")
	return &HOGDetector{hog: hog, logger: logger}, nil
}

// Detect runs multi-scale detection over frame.
func (d *HOGDetector) Detect(frame gocv.Mat, params Params) ([]dto.Detection, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	d.mu.Lock()
	rects := d.hog.DetectMultiScaleWithParams(frame, params.HitThreshold,
		params.WinStride, params.Padding, params.ScaleStep, params.FinalThreshold, false)
	d.mu.Unlock()

	detections := make([]dto.Detection, 0, len(rects))
	for _, r := range rects {
		detections = append(detections, dto.DetectionFromRect(r))
	}
	return detections, nil
}

// Close releases the descriptor.
func (d *HOGDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hog.Close()
}

// Overlay is the style used to outline detections.
type Overlay struct {
	Color     color.RGBA
	Thickness int
}

// DefaultOverlay draws 2px green outlines.
var DefaultOverlay = Overlay{Color: color.RGBA{R: 0, G: 255, B: 0, A: 0}, Thickness: 2}

// DrawDetections outlines every detection on mat, in order.
func DrawDetections(mat *gocv.Mat, detections []dto.Detection, overlay Overlay) error {
	for _, detection := range detections {
		if err := gocv.Rectangle(mat, detection.Rect(), overlay.Color, overlay.Thickness); err != nil {
			return fmt.Errorf("failed to draw rectangle: %w", err)
		}
	}
	return nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"dronecam/internal/config"
	"dronecam/internal/dto"
	"dronecam/internal/logger"
	"dronecam/internal/service/ai"
	"dronecam/internal/service/camera"
	"dronecam/internal/service/frameslot"

	"gocv.io/x/gocv"
)

// Recorder receives every non-empty detection batch.
type Recorder interface {
	Record(pass dto.DetectionPass)
}

// Stats is a point-in-time view of the loop counters.
type Stats struct {
	Iterations      uint64 `json:"iterations"`
	Published       uint64 `json:"published"`
	CaptureFailures uint64 `json:"capture_failures"`
	LastDetections  int64  `json:"last_detections"`
}

// Loop captures frames, runs the detector, draws the detections and
// publishes the annotated frame into the slot.
type Loop struct {
	source   camera.FrameSource
	detector ai.Detector
	slot     *frameslot.FrameSlot
	recorder Recorder
	logger   *logger.Logger

	size    image.Point
	params  ai.Params
	overlay ai.Overlay
	backoff *backoff

	iterations      atomic.Uint64
	published       atomic.Uint64
	captureFailures atomic.Uint64
	lastDetections  atomic.Int64
}

// NewLoop wires a loop. recorder may be nil.
func NewLoop(source camera.FrameSource, detector ai.Detector, slot *frameslot.FrameSlot, recorder Recorder, cfg *config.Config, logger *logger.Logger) *Loop {
	return &Loop{
		source:   source,
		detector: detector,
		slot:     slot,
		recorder: recorder,
		logger:   logger,
		size:     image.Pt(cfg.FrameWidth, cfg.FrameHeight),
		params:   ai.ParamsFromConfig(cfg),
		overlay:  ai.DefaultOverlay,
		backoff:  newBackoff(cfg.CaptureRetryDelay, cfg.CaptureRetryMaxDelay),
	}
}

// Run loops until ctx is cancelled or the detector fails. Capture failures
// are retried forever. A detection failure is returned; it means annotation
// has stopped.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Capture-detect loop started (%dx%d, stride %v, padding %v, scale %.2f)",
		l.size.X, l.size.Y, l.params.WinStride, l.params.Padding, l.params.ScaleStep)

	failing := false
	for {
		if ctx.Err() != nil {
			l.logger.Info("Capture-detect loop stopped after %d iterations", l.iterations.Load())
			return nil
		}
		l.iterations.Add(1)

		frame, err := l.source.Read()
		if err != nil {
			l.captureFailures.Add(1)
			if !failing {
				failing = true
				l.logger.Warning("Frame capture failing, retrying: %v", err)
			}
			l.backoff.Wait(ctx)
			continue
		}
		if failing {
			failing = false
			l.logger.Info("Frame capture recovered after %d failures", l.captureFailures.Load())
		}
		l.backoff.Reset()

		if err := l.process(frame); err != nil {
			var resizeErr *resizeError
			if errors.As(err, &resizeErr) {
				l.captureFailures.Add(1)
				continue
			}
			l.logger.Error("Capture-detect loop stopped: %v", err)
			return err
		}
	}
}

type resizeError struct{ err error }

func (e *resizeError) Error() string { return "resize: " + e.err.Error() }
func (e *resizeError) Unwrap() error { return e.err }

// process annotates one frame and publishes it. It always closes frame.
func (l *Loop) process(frame gocv.Mat) error {
	annotated := gocv.NewMat()
	err := gocv.Resize(frame, &annotated, l.size, 0, 0, gocv.InterpolationLinear)
	frame.Close()
	if err != nil {
		annotated.Close()
		return &resizeError{err: err}
	}

	detections, err := l.detector.Detect(annotated, l.params)
	if err != nil {
		annotated.Close()
		return fmt.Errorf("detect: %w", err)
	}

	if err := ai.DrawDetections(&annotated, detections, l.overlay); err != nil {
		annotated.Close()
		return fmt.Errorf("draw: %w", err)
	}

	if l.slot.Publish(annotated) > 0 {
		l.published.Add(1)
	}
	l.lastDetections.Store(int64(len(detections)))

	if l.recorder != nil && len(detections) > 0 {
		l.recorder.Record(dto.DetectionPass{Timestamp: time.Now(), Detections: detections})
	}
	return nil
}

// Stats returns the current counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Iterations:      l.iterations.Load(),
		Published:       l.published.Load(),
		CaptureFailures: l.captureFailures.Load(),
		LastDetections:  l.lastDetections.Load(),
	}
}

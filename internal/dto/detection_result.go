package dto

import (
	"image"
	"time"
)

// Detection is one rectangle reported by the detector, in frame coordinates.
type Detection struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the detection into an image.Rectangle.
func (d Detection) Rect() image.Rectangle {
	return image.Rect(d.X, d.Y, d.X+d.Width, d.Y+d.Height)
}

// DetectionFromRect builds a Detection from an image.Rectangle.
func DetectionFromRect(r image.Rectangle) Detection {
	return Detection{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// DetectionPass is the batch of detections produced for one published frame.
type DetectionPass struct {
	ID         int64       `json:"id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Detections []Detection `json:"detections"`
}

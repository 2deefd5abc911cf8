package stream

import (
	"fmt"

	"dronecam/internal/config"

	"gocv.io/x/gocv"
)

// Encoder compresses a frame into image bytes.
type Encoder interface {
	Encode(frame gocv.Mat) ([]byte, error)
	ContentType() string
}

// ImageEncoder encodes with OpenCV's imgcodecs.
type ImageEncoder struct {
	ext         gocv.FileExt
	contentType string
	params      []int
}

// NewEncoder returns the encoder for the configured image format.
func NewEncoder(cfg *config.Config) (*ImageEncoder, error) {
	switch cfg.ImageFormat {
	case config.FormatJPEG:
		return &ImageEncoder{
			ext:         gocv.JPEGFileExt,
			contentType: "image/jpeg",
			params:      []int{int(gocv.IMWriteJpegQuality), cfg.JPEGQuality},
		}, nil
	case config.FormatPNG:
		return &ImageEncoder{
			ext:         gocv.PNGFileExt,
			contentType: "image/png",
		}, nil
	default:
		return nil, fmt.Errorf("unsupported image format %q", cfg.ImageFormat)
	}
}

// Encode returns a copy of the encoded bytes.
func (e *ImageEncoder) Encode(frame gocv.Mat) ([]byte, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("cannot encode empty frame")
	}

	buf, err := gocv.IMEncodeWithParams(e.ext, frame, e.params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// ContentType is the MIME type of the encoded bytes.
func (e *ImageEncoder) ContentType() string {
	return e.contentType
}

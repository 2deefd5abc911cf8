package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"dronecam/internal/service/frameslot"
)

// Boundary separates the parts of the multipart stream.
const Boundary = "frame"

// MultipartContentType is the Content-Type of the /video_feed response.
const MultipartContentType = "multipart/x-mixed-replace; boundary=" + Boundary

// Streamer serves encoded frames from the slot to any number of viewers.
type Streamer struct {
	slot    *frameslot.FrameSlot
	encoder Encoder
	viewers atomic.Int64
}

// NewStreamer creates a Streamer reading from slot.
func NewStreamer(slot *frameslot.FrameSlot, encoder Encoder) *Streamer {
	return &Streamer{slot: slot, encoder: encoder}
}

// FrameFunc receives one encoded frame. Returning an error ends the stream.
type FrameFunc func(data []byte) error

// Each calls fn for every new frame published to the slot until ctx ends,
// the slot closes, encoding fails or fn returns an error. Frames published
// while fn runs are skipped except for the latest. A clean end (ctx or
// slot closed) returns nil.
func (s *Streamer) Each(ctx context.Context, fn FrameFunc) error {
	s.viewers.Add(1)
	defer s.viewers.Add(-1)

	var last uint64
	for {
		snap, err := s.slot.Wait(ctx, last)
		if err != nil {
			if errors.Is(err, frameslot.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		last = snap.Seq

		data, err := s.encoder.Encode(snap.Frame)
		snap.Close()
		if err != nil {
			return fmt.Errorf("encode frame %d: %w", last, err)
		}

		if err := fn(data); err != nil {
			return err
		}
	}
}

// Stream writes the multipart body to w, one part per frame. flush, when
// not nil, is called after every part.
func (s *Streamer) Stream(ctx context.Context, w io.Writer, flush func()) error {
	contentType := s.encoder.ContentType()
	return s.Each(ctx, func(data []byte) error {
		if err := WritePart(w, contentType, data); err != nil {
			return err
		}
		if flush != nil {
			flush()
		}
		return nil
	})
}

// Viewers returns the number of active streams.
func (s *Streamer) Viewers() int64 {
	return s.viewers.Load()
}

// WritePart writes one part:
//
//	--frame\r\n
//	Content-Type: <contentType>\r\n
//	\r\n
//	<data>\r\n
func WritePart(w io.Writer, contentType string, data []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: %s\r\n\r\n", Boundary, contentType); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

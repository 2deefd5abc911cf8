package stream

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dronecam/internal/config"
	"dronecam/internal/service/frameslot"

	"gocv.io/x/gocv"
)

func colorFrame(v float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), 240, 320, gocv.MatTypeCV8UC3)
}

func jpegEncoder(t *testing.T) *ImageEncoder {
	t.Helper()
	enc, err := NewEncoder(config.Default())
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	return enc
}

func TestEncoder_Deterministic(t *testing.T) {
	enc := jpegEncoder(t)
	frame := colorFrame(90)
	defer frame.Close()

	a, err := enc.Encode(frame)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	b, err := enc.Encode(frame)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding the same frame twice should give identical bytes")
	}
	if len(a) < 4 || a[0] != 0xFF || a[1] != 0xD8 || a[len(a)-2] != 0xFF || a[len(a)-1] != 0xD9 {
		t.Error("output is not a JPEG (missing SOI/EOI markers)")
	}
	if enc.ContentType() != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", enc.ContentType())
	}
}

func TestEncoder_PNG(t *testing.T) {
	cfg := config.Default()
	cfg.ImageFormat = config.FormatPNG
	enc, err := NewEncoder(cfg)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	frame := colorFrame(10)
	defer frame.Close()

	data, err := enc.Encode(frame)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
	if enc.ContentType() != "image/png" {
		t.Errorf("Expected image/png, got %s", enc.ContentType())
	}
}

func TestEncoder_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.ImageFormat = "bmp"
	if _, err := NewEncoder(cfg); err == nil {
		t.Error("Expected error for unsupported format")
	}

	empty := gocv.NewMat()
	defer empty.Close()
	if _, err := jpegEncoder(t).Encode(empty); err == nil {
		t.Error("Expected error for empty frame")
	}
}

func TestWritePart_Framing(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePart(&buf, "image/jpeg", []byte("DATA")); err != nil {
		t.Fatalf("WritePart failed: %v", err)
	}
	want := "--frame\r\nContent-Type: image/jpeg\r\n\r\nDATA\r\n"
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}
}

// fakeEncoder returns the frame's first pixel as a one-byte payload.
type fakeEncoder struct {
	err error
}

func (e *fakeEncoder) Encode(frame gocv.Mat) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []byte{frame.GetVecbAt(0, 0)[0]}, nil
}

func (e *fakeEncoder) ContentType() string { return "image/test" }

func TestStreamer_NothingBeforeFirstPublish(t *testing.T) {
	slot := frameslot.New()
	defer slot.Close()
	s := NewStreamer(slot, &fakeEncoder{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	if err := s.Stream(ctx, &buf, nil); err != nil {
		t.Fatalf("Stream should end cleanly on cancel, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("no part may be written before the first publish, got %q", buf.String())
	}
}

func TestStreamer_EmitsPartsInPublishOrder(t *testing.T) {
	slot := frameslot.New()
	defer slot.Close()
	s := NewStreamer(slot, &fakeEncoder{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan byte, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- s.Each(ctx, func(data []byte) error {
			got <- data[0]
			return nil
		})
	}()

	var values []byte
	for v := 1; v <= 3; v++ {
		slot.Publish(colorFrame(float64(v)))
		select {
		case b := <-got:
			values = append(values, b)
		case <-time.After(2 * time.Second):
			t.Fatalf("no frame emitted after publish %d", v)
		}
	}
	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Each should end cleanly, got %v", err)
	}

	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			t.Errorf("frames emitted out of order: %v", values)
		}
	}
	if values[len(values)-1] != 3 {
		t.Errorf("Expected last frame 3, got %v", values)
	}
}

func TestStreamer_EncodeFailureEndsOnlyThatStream(t *testing.T) {
	slot := frameslot.New()
	defer slot.Close()
	slot.Publish(colorFrame(1))

	errEncode := errors.New("codec broken")
	broken := NewStreamer(slot, &fakeEncoder{err: errEncode})

	err := broken.Each(context.Background(), func([]byte) error { return nil })
	if !errors.Is(err, errEncode) {
		t.Errorf("Expected encode error, got %v", err)
	}

	healthy := NewStreamer(slot, &fakeEncoder{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var count int
	err = healthy.Each(ctx, func([]byte) error {
		count++
		cancel()
		return nil
	})
	if err != nil || count != 1 {
		t.Errorf("other viewers must be unaffected: err=%v count=%d", err, count)
	}
}

func TestStreamer_WriteErrorEndsStream(t *testing.T) {
	slot := frameslot.New()
	defer slot.Close()
	slot.Publish(colorFrame(1))

	errGone := errors.New("viewer gone")
	s := NewStreamer(slot, &fakeEncoder{})
	if err := s.Each(context.Background(), func([]byte) error { return errGone }); !errors.Is(err, errGone) {
		t.Errorf("Expected viewer error, got %v", err)
	}
	if s.Viewers() != 0 {
		t.Errorf("Expected 0 viewers after stream end, got %d", s.Viewers())
	}
}

func TestStreamer_ManyViewersProgressIndependently(t *testing.T) {
	const viewers = 6

	slot := frameslot.New()
	defer slot.Close()
	s := NewStreamer(slot, jpegEncoder(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	counts := make([]atomic.Int64, viewers)
	for i := 0; i < viewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var buf bytes.Buffer
			s.Each(ctx, func(data []byte) error {
				counts[i].Add(1)
				buf.Reset()
				return WritePart(&buf, "image/jpeg", data)
			})
		}(i)
	}

	// One viewer stalls; the writer and the others must not be blocked by it.
	stalled := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Each(ctx, func([]byte) error {
			<-stalled
			return errors.New("stalled viewer released")
		})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for v := 0; ; v++ {
		start := time.Now()
		slot.Publish(colorFrame(float64(v % 256)))
		if time.Since(start) > time.Second {
			t.Fatal("publish blocked on readers")
		}

		done := true
		for i := range counts {
			if counts[i].Load() < 3 {
				done = false
			}
		}
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("viewers did not make progress")
		}
		time.Sleep(2 * time.Millisecond)
	}

	close(stalled)
	cancel()
	wg.Wait()
}

package frameslot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

// solidFrame returns a 1-channel frame where every pixel equals v.
func solidFrame(v uint8) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(v), 0, 0, 0), 24, 32, gocv.MatTypeCV8UC1)
}

func TestLatest_EmptyBeforePublish(t *testing.T) {
	s := New()
	defer s.Close()

	if _, ok := s.Latest(); ok {
		t.Error("Latest should report empty before the first publish")
	}
	if s.Seq() != 0 {
		t.Errorf("Expected seq 0, got %d", s.Seq())
	}
}

func TestPublish_ReplacesValue(t *testing.T) {
	s := New()
	defer s.Close()

	if seq := s.Publish(solidFrame(10)); seq != 1 {
		t.Errorf("Expected seq 1, got %d", seq)
	}
	if seq := s.Publish(solidFrame(20)); seq != 2 {
		t.Errorf("Expected seq 2, got %d", seq)
	}

	snap, ok := s.Latest()
	if !ok {
		t.Fatal("Expected a frame")
	}
	defer snap.Close()

	if snap.Seq != 2 {
		t.Errorf("Expected snapshot seq 2, got %d", snap.Seq)
	}
	if got := snap.Frame.GetUCharAt(0, 0); got != 20 {
		t.Errorf("Expected latest pixel value 20, got %d", got)
	}
}

func TestLatest_SnapshotIsIndependent(t *testing.T) {
	s := New()
	defer s.Close()

	s.Publish(solidFrame(5))
	snap, ok := s.Latest()
	if !ok {
		t.Fatal("Expected a frame")
	}
	defer snap.Close()

	// Publishing closes the previous frame; the snapshot must survive it.
	s.Publish(solidFrame(6))
	if got := snap.Frame.GetUCharAt(3, 3); got != 5 {
		t.Errorf("snapshot changed after publish: got %d", got)
	}
}

func TestWait_BlocksUntilPublish(t *testing.T) {
	s := New()
	defer s.Close()

	done := make(chan Snapshot, 1)
	go func() {
		snap, err := s.Wait(context.Background(), 0)
		if err != nil {
			t.Errorf("Wait failed: %v", err)
			close(done)
			return
		}
		done <- snap
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before any publish")
	case <-time.After(50 * time.Millisecond):
	}

	s.Publish(solidFrame(42))

	select {
	case snap, ok := <-done:
		if !ok {
			return
		}
		defer snap.Close()
		if snap.Seq != 1 || snap.Frame.GetUCharAt(0, 0) != 42 {
			t.Errorf("unexpected snapshot seq=%d value=%d", snap.Seq, snap.Frame.GetUCharAt(0, 0))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not wake up after publish")
	}
}

func TestWait_ReturnsImmediatelyWhenNewer(t *testing.T) {
	s := New()
	defer s.Close()

	s.Publish(solidFrame(1))
	s.Publish(solidFrame(2))

	snap, err := s.Wait(context.Background(), 0)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	defer snap.Close()

	// Frame 1 is skipped: only the latest value is kept.
	if snap.Seq != 2 {
		t.Errorf("Expected seq 2, got %d", snap.Seq)
	}
}

func TestWait_ContextCancel(t *testing.T) {
	s := New()
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := s.Wait(ctx, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestClose_WakesWaiters(t *testing.T) {
	s := New()

	errc := make(chan error, 1)
	go func() {
		_, err := s.Wait(context.Background(), 0)
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not wake the waiter")
	}

	if seq := s.Publish(solidFrame(1)); seq != 0 {
		t.Errorf("Publish after Close should be dropped, got seq %d", seq)
	}
}

// Every frame carries its own sequence number as pixel value, so a torn or
// mismatched read shows up as seq/pixel disagreement.
func TestConcurrentReaders_NoTornFramesAndMonotonic(t *testing.T) {
	const (
		publishes = 200
		readers   = 8
	)

	s := New()
	defer s.Close()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			var last uint64
			for {
				select {
				case <-stop:
					return
				default:
				}

				snap, ok := s.Latest()
				if !ok {
					continue
				}
				want := uint8(snap.Seq % 256)
				first := snap.Frame.GetUCharAt(0, 0)
				lastPx := snap.Frame.GetUCharAt(23, 31)
				seq := snap.Seq
				snap.Close()

				if first != want || lastPx != want {
					t.Errorf("reader %d: torn frame seq=%d pixels=%d/%d", id, seq, first, lastPx)
					return
				}
				if seq < last {
					t.Errorf("reader %d: seq went backwards %d -> %d", id, last, seq)
					return
				}
				last = seq
			}
		}(r)
	}

	for i := 1; i <= publishes; i++ {
		s.Publish(solidFrame(uint8(i % 256)))
	}
	close(stop)
	wg.Wait()

	if s.Seq() != publishes {
		t.Errorf("Expected seq %d, got %d", publishes, s.Seq())
	}
}

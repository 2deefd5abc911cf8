// Package frameslot holds the most recently published annotated frame.
//
// One writer publishes, any number of readers take snapshots. A reader
// always receives its own clone of a complete frame, so publishing never
// mutates a value a reader is using. No history is kept: readers that are
// slower than the writer skip frames.
package frameslot

import (
	"context"
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// ErrClosed is returned by Wait once the slot has been closed.
var ErrClosed = errors.New("frameslot: closed")

// Snapshot is a reader's private copy of a published frame. Seq increases by
// one with every publish. The reader must Close the Frame.
type Snapshot struct {
	Frame gocv.Mat
	Seq   uint64
}

// Close releases the snapshot's frame.
func (s Snapshot) Close() error {
	return s.Frame.Close()
}

// FrameSlot is a single-value, concurrency-safe holder of the latest frame.
type FrameSlot struct {
	mu      sync.RWMutex
	frame   gocv.Mat
	seq     uint64
	closed  bool
	updated chan struct{} // closed and replaced on every publish
}

// New returns an empty slot.
func New() *FrameSlot {
	return &FrameSlot{updated: make(chan struct{})}
}

// Publish replaces the stored frame and takes ownership of frame.
// It returns the sequence number assigned to it, or 0 if the slot is closed.
func (s *FrameSlot) Publish(frame gocv.Mat) uint64 {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		frame.Close()
		return 0
	}

	old := s.frame
	hadFrame := s.seq > 0
	s.frame = frame
	s.seq++
	seq := s.seq
	close(s.updated)
	s.updated = make(chan struct{})
	s.mu.Unlock()

	// Readers only touch s.frame while holding the read lock, so the
	// previous frame is unreachable here.
	if hadFrame {
		old.Close()
	}
	return seq
}

// Latest returns a snapshot of the most recent frame. ok is false while
// nothing has been published yet.
func (s *FrameSlot) Latest() (snap Snapshot, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.seq == 0 || s.closed {
		return Snapshot{}, false
	}
	return Snapshot{Frame: s.frame.Clone(), Seq: s.seq}, true
}

// Wait blocks until a frame newer than after is available and returns a
// snapshot of the latest one. Intermediate frames may be skipped.
func (s *FrameSlot) Wait(ctx context.Context, after uint64) (Snapshot, error) {
	for {
		s.mu.RLock()
		if s.closed {
			s.mu.RUnlock()
			return Snapshot{}, ErrClosed
		}
		if s.seq > after {
			snap := Snapshot{Frame: s.frame.Clone(), Seq: s.seq}
			s.mu.RUnlock()
			return snap, nil
		}
		updated := s.updated
		s.mu.RUnlock()

		select {
		case <-updated:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
}

// Seq returns the sequence number of the latest publish, 0 if none.
func (s *FrameSlot) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Close releases the stored frame and wakes all waiting readers.
func (s *FrameSlot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.updated)
	if s.seq > 0 {
		return s.frame.Close()
	}
	return nil
}

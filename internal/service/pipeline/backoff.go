package pipeline

import (
	"context"
	"math/rand"
	"time"
)

// backoff spaces out capture retries. A zero base disables it and retries
// happen immediately.
type backoff struct {
	base time.Duration
	max  time.Duration
	cur  time.Duration
}

func newBackoff(base, max time.Duration) *backoff { return &backoff{base: base, max: max} }

// next advances the delay and returns it with +/-20% jitter.
func (b *backoff) next() time.Duration {
	if b.base <= 0 {
		return 0
	}
	if b.cur <= 0 {
		b.cur = b.base
	} else {
		b.cur *= 2
		if b.cur > b.max {
			b.cur = b.max
		}
	}
	j := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(b.cur) * j)
}

// Wait sleeps for the next delay or until ctx is done.
func (b *backoff) Wait(ctx context.Context) {
	d := b.next()
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (b *backoff) Reset() { b.cur = 0 }

// Package resilience provides the retry backoff used between failed
// backend sessions.
package resilience

import (
	"context"
	"time"
)

// Default backoff shape: quick first retry, capped growth.
const (
	DefaultMinDelay = 500 * time.Millisecond
	DefaultMaxDelay = 30 * time.Second
	defaultFactor   = 2.0
)

// Backoff produces exponentially growing delays between retries. It is not
// safe for concurrent use; each retry loop owns its own instance.
type Backoff struct {
	// Min is the first delay. Zero uses [DefaultMinDelay].
	Min time.Duration

	// Max caps the delay. Zero uses [DefaultMaxDelay].
	Max time.Duration

	next time.Duration
}

// Next returns the delay to wait before the upcoming attempt and advances
// the schedule.
func (b *Backoff) Next() time.Duration {
	minD := b.Min
	if minD <= 0 {
		minD = DefaultMinDelay
	}
	maxD := b.Max
	if maxD <= 0 {
		maxD = DefaultMaxDelay
	}

	if b.next == 0 {
		b.next = minD
	}
	d := b.next

	b.next = time.Duration(float64(b.next) * defaultFactor)
	if b.next > maxD {
		b.next = maxD
	}
	return d
}

// Reset returns the schedule to the initial delay. Call it after a
// successful attempt.
func (b *Backoff) Reset() {
	b.next = 0
}

// Sleep waits for the next delay or until ctx is cancelled, returning
// ctx.Err in the latter case.
func (b *Backoff) Sleep(ctx context.Context) error {
	t := time.NewTimer(b.Next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

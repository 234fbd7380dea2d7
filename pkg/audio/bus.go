package audio

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultBusCapacity bounds the number of frames queued between the
	// device callback and the consumer. At 1024 samples per frame and 16 kHz
	// this is roughly 6.4 s of audio.
	DefaultBusCapacity = 100

	// DefaultPollInterval is the upper bound on how long PullBatch waits for
	// new frames before returning. It keeps a waiting consumer responsive to
	// cancellation even when no audio arrives.
	DefaultPollInterval = 100 * time.Millisecond
)

// Bus is a bounded, thread-safe hand-off of PCM frames between the
// hardware-driven capture callback (producer) and the cooperative session
// loop (consumer).
//
// Push never blocks and never allocates beyond the fixed capacity: when the
// bus is full the oldest frame is dropped and a counter is incremented. The
// producer therefore never waits on the consumer, which is the one rule the
// device callback context cannot break.
type Bus struct {
	mu      sync.Mutex
	frames  []Frame
	cap     int
	dropped uint64

	// notify wakes a consumer blocked in PullBatch. Capacity 1: a pending
	// signal already covers any number of queued frames.
	notify chan struct{}

	pollInterval time.Duration
}

// BusOption is a functional option for NewBus.
type BusOption func(*Bus)

// WithPollInterval overrides the bounded wait used by PullBatch. Useful in
// tests to keep suite execution fast.
func WithPollInterval(d time.Duration) BusOption {
	return func(b *Bus) { b.pollInterval = d }
}

// NewBus creates a Bus holding at most capacity frames. A capacity ≤ 0 uses
// [DefaultBusCapacity].
func NewBus(capacity int, opts ...BusOption) *Bus {
	if capacity <= 0 {
		capacity = DefaultBusCapacity
	}
	b := &Bus{
		frames:       make([]Frame, 0, capacity),
		cap:          capacity,
		notify:       make(chan struct{}, 1),
		pollInterval: DefaultPollInterval,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Push enqueues a frame. It is safe to call from the device callback: the
// lock is held only long enough to append one frame reference, and on
// overflow the oldest frame is dropped rather than blocking the producer.
func (b *Bus) Push(f Frame) {
	b.mu.Lock()
	if len(b.frames) == b.cap {
		copy(b.frames, b.frames[1:])
		b.frames = b.frames[:b.cap-1]
		b.dropped++
	}
	b.frames = append(b.frames, f)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// PullBatch drains all currently queued frames in arrival order. If the bus
// is empty it waits for a push, but never longer than the poll interval, so
// a caller in a loop observes ctx cancellation within one interval. The
// returned slice may be empty.
func (b *Bus) PullBatch(ctx context.Context) []Frame {
	if batch := b.drain(); len(batch) > 0 {
		return batch
	}

	timer := time.NewTimer(b.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
		return nil
	case <-b.notify:
		return b.drain()
	}
}

// drain swaps out the queued frames under the lock.
func (b *Bus) drain() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.frames) == 0 {
		return nil
	}
	batch := b.frames
	b.frames = make([]Frame, 0, b.cap)
	return batch
}

// Len reports the number of frames currently queued.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Dropped reports how many frames have been discarded due to overflow since
// the bus was created.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

package audio

import (
	"context"
	"testing"
	"time"
)

func frameWithByte(b byte) Frame {
	return Frame{Data: []byte{b, 0}, SampleRate: 16000, Channels: 1}
}

func TestBusPushPullOrder(t *testing.T) {
	bus := NewBus(10)
	for i := byte(0); i < 5; i++ {
		bus.Push(frameWithByte(i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	frames := bus.PullBatch(ctx)
	if len(frames) != 5 {
		t.Fatalf("got %d frames, want 5", len(frames))
	}
	for i, f := range frames {
		if f.Data[0] != byte(i) {
			t.Errorf("frame %d: got payload %d, want %d", i, f.Data[0], i)
		}
	}
}

func TestBusDropOldestOnOverflow(t *testing.T) {
	bus := NewBus(3)
	for i := byte(0); i < 5; i++ {
		bus.Push(frameWithByte(i))
	}

	if got := bus.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	if got := bus.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	frames := bus.PullBatch(ctx)
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	// Oldest two (0, 1) were discarded.
	for i, want := range []byte{2, 3, 4} {
		if frames[i].Data[0] != want {
			t.Errorf("frame %d: got payload %d, want %d", i, frames[i].Data[0], want)
		}
	}
}

func TestBusPushNeverBlocks(t *testing.T) {
	bus := NewBus(1)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			bus.Push(frameWithByte(byte(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Push blocked with no consumer")
	}
}

func TestBusPullBatchWakesOnPush(t *testing.T) {
	bus := NewBus(10, WithPollInterval(10*time.Second))

	got := make(chan []Frame, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		got <- bus.PullBatch(ctx)
	}()

	// Give the puller time to park on the notify channel.
	time.Sleep(50 * time.Millisecond)
	bus.Push(frameWithByte(42))

	select {
	case frames := <-got:
		if len(frames) != 1 || frames[0].Data[0] != 42 {
			t.Fatalf("got %v, want single frame with payload 42", frames)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PullBatch did not wake on Push")
	}
}

func TestBusPullBatchReturnsOnCancel(t *testing.T) {
	bus := NewBus(10, WithPollInterval(10*time.Second))
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan []Frame, 1)
	go func() { got <- bus.PullBatch(ctx) }()
	cancel()

	select {
	case frames := <-got:
		if len(frames) != 0 {
			t.Fatalf("got %d frames after cancel, want 0", len(frames))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PullBatch did not return after context cancel")
	}
}

func TestBusPollIntervalElapses(t *testing.T) {
	bus := NewBus(10, WithPollInterval(20*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	frames := bus.PullBatch(ctx)
	if len(frames) != 0 {
		t.Fatalf("got %d frames from empty bus, want 0", len(frames))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("PullBatch took %v, expected roughly the poll interval", elapsed)
	}
}

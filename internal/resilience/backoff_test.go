package resilience

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_GrowsAndCaps(t *testing.T) {
	t.Parallel()

	b := &Backoff{Min: 100 * time.Millisecond, Max: 400 * time.Millisecond}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		400 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("Next() call %d = %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoff_Reset(t *testing.T) {
	t.Parallel()

	b := &Backoff{Min: 100 * time.Millisecond, Max: time.Second}
	b.Next()
	b.Next()
	b.Reset()

	if got := b.Next(); got != 100*time.Millisecond {
		t.Errorf("Next() after Reset = %v, want %v", got, 100*time.Millisecond)
	}
}

func TestBackoff_Defaults(t *testing.T) {
	t.Parallel()

	b := &Backoff{}
	if got := b.Next(); got != DefaultMinDelay {
		t.Errorf("Next() = %v, want %v", got, DefaultMinDelay)
	}
}

func TestBackoff_SleepCancelled(t *testing.T) {
	t.Parallel()

	b := &Backoff{Min: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Sleep(ctx); err != context.Canceled {
		t.Fatalf("Sleep err = %v, want context.Canceled", err)
	}
}

func TestBackoff_SleepWaits(t *testing.T) {
	t.Parallel()

	b := &Backoff{Min: 10 * time.Millisecond}
	start := time.Now()
	if err := b.Sleep(context.Background()); err != nil {
		t.Fatalf("Sleep err = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Sleep returned after %v, want at least 10ms", elapsed)
	}
}

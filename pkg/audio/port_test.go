package audio

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func testPortConfig() PortConfig {
	return PortConfig{
		CaptureRate:  16000,
		PlaybackRate: 16000,
		Channels:     1,
		FrameSize:    4,
		InputDevice:  -1,
		OutputDevice: -1,
	}
}

func pullOneFrame(t *testing.T, bus *Bus) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	frames := bus.PullBatch(ctx)
	if len(frames) != 1 {
		t.Fatalf("pulled %d frames; want 1", len(frames))
	}
	return frames[0]
}

func TestCaptureCallback_PushesMonoFrame(t *testing.T) {
	t.Parallel()

	bus := NewBus(4, WithPollInterval(10*time.Millisecond))
	p := NewPort(testPortConfig(), bus)
	p.epoch = time.Now()

	p.captureCallback([]int16{100, -100, 200, -200})

	f := pullOneFrame(t, bus)
	want := []byte{100, 0, 156, 255, 200, 0, 56, 255}
	if !bytes.Equal(f.Data, want) {
		t.Errorf("frame data = %v; want %v", f.Data, want)
	}
	if f.SampleRate != 16000 || f.Channels != 1 {
		t.Errorf("frame meta = %d Hz / %d ch; want 16000 / 1", f.SampleRate, f.Channels)
	}
}

func TestCaptureCallback_StereoFallbackDownmixes(t *testing.T) {
	t.Parallel()

	bus := NewBus(4, WithPollInterval(10*time.Millisecond))
	p := NewPort(testPortConfig(), bus)
	p.epoch = time.Now()
	p.captureStereo = true

	// Interleaved L/R pairs; each pair averages to one mono sample.
	p.captureCallback([]int16{100, 300, -100, -300, 0, 50, 1000, 1000})

	f := pullOneFrame(t, bus)
	got := make([]int16, len(f.Data)/2)
	for i := range got {
		got[i] = int16(f.Data[i*2]) | int16(f.Data[i*2+1])<<8
	}
	want := []int16{200, -200, 25, 1000}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d; want %d", i, got[i], want[i])
		}
	}
}

func TestCaptureCallback_StereoFallbackRunsCaptureFilter(t *testing.T) {
	t.Parallel()

	bus := NewBus(4, WithPollInterval(10*time.Millisecond))
	var filtered []byte
	filter := processorFunc(func(pcm []byte) []byte {
		filtered = append([]byte(nil), pcm...)
		return pcm
	})
	p := NewPort(testPortConfig(), bus, WithCaptureFilter(filter))
	p.epoch = time.Now()
	p.captureStereo = true

	p.captureCallback([]int16{10, 10, 20, 20, 30, 30, 40, 40})

	// The filter must see the downmixed mono block, not the raw stereo one.
	if len(filtered) != 8 {
		t.Fatalf("filter saw %d bytes; want 8 (four mono samples)", len(filtered))
	}
	pullOneFrame(t, bus)
}

func TestPlay_StoppedPortDropsAudio(t *testing.T) {
	t.Parallel()

	p := NewPort(testPortConfig(), NewBus(4))
	if err := p.Play([]byte{1, 0, 2, 0}, 16000, true); err != nil {
		t.Fatalf("Play on a stopped port = %v; want nil", err)
	}
	if p.Running() {
		t.Error("port reports running without Start")
	}
}

type processorFunc func(pcm []byte) []byte

func (f processorFunc) Process(pcm []byte) []byte { return f(pcm) }

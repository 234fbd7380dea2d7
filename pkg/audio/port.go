// Package audio provides the frame types, conversion helpers, and device
// plumbing for the Gemipi voice engine.
//
// The two central pieces are:
//
//   - [Bus] — a bounded, non-blocking hand-off between the PortAudio capture
//     callback and the cooperative session loop.
//   - [Port] — owner of the physical capture and playback streams.
//
// Everything here speaks little-endian signed 16-bit PCM; sample rates are
// carried explicitly on [Frame] values.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Processor transforms a block of 16-bit LE PCM and returns the result.
// Implementations may return the input unchanged (pass-through). Used to hook
// the echo canceller into the capture path and the effects chain into the
// playback path without this package depending on the DSP package.
type Processor interface {
	Process(pcm []byte) []byte
}

// ReferenceSink receives a copy of every block written to the playback device
// so an echo canceller can use it as its far-end reference.
type ReferenceSink interface {
	FeedReference(pcm []byte)
}

// PortConfig describes the device topology for a [Port].
type PortConfig struct {
	// CaptureRate is the microphone sample rate in Hz.
	CaptureRate int

	// PlaybackRate is the speaker sample rate in Hz. Inbound audio at other
	// rates is resampled before writing.
	PlaybackRate int

	// Channels is the channel count for both streams. Mono (1) is the only
	// configuration the engine's collaborators accept; a device that
	// refuses mono is reopened in stereo and converted at the boundary.
	Channels int

	// FrameSize is the number of samples per hardware buffer.
	FrameSize int

	// InputDevice and OutputDevice select devices by PortAudio index.
	// A negative index selects the host default.
	InputDevice  int
	OutputDevice int
}

// Port owns the physical capture and playback device handles.
//
// Capture runs in PortAudio callback mode: the callback (hardware-driven
// producer context) optionally runs the frame through a capture filter and
// pushes it onto the [Bus]. It never blocks and never waits on the consumer.
// Playback is blocking-write from the cooperative side via [Port.Play].
//
// Start and Stop are idempotent; Stop releases the device handles on every
// exit path.
type Port struct {
	cfg PortConfig
	bus *Bus

	captureFilter Processor
	effects       Processor
	echoRef       ReferenceSink

	mu       sync.Mutex
	started  bool
	capture  *portaudio.Stream
	playback *portaudio.Stream
	epoch    time.Time

	// captureStereo and playStereo record that a device refused mono and
	// was opened with two channels instead; conversion happens at the
	// stream boundary so everything else stays mono.
	captureStereo bool
	playStereo    bool

	// playMu serialises Play callers; playBuf is the fixed hardware buffer
	// registered with the blocking playback stream.
	playMu  sync.Mutex
	playBuf []int16
}

// PortOption is a functional option for NewPort.
type PortOption func(*Port)

// WithCaptureFilter inserts a processor (typically the echo canceller)
// between the capture callback and the bus. The filter runs in the hardware
// callback context and must be fast and non-blocking.
func WithCaptureFilter(f Processor) PortOption {
	return func(p *Port) { p.captureFilter = f }
}

// WithEffects inserts a processor (typically the voice-effects chain) into
// the playback path. It is applied only to synthesized speech.
func WithEffects(e Processor) PortOption {
	return func(p *Port) { p.effects = e }
}

// WithEchoReference registers a sink that receives every block written to
// the playback device, post-effects, as echo-cancellation reference.
func WithEchoReference(s ReferenceSink) PortOption {
	return func(p *Port) { p.echoRef = s }
}

// NewPort creates a Port that will deliver captured frames to bus. The
// devices are not opened until [Port.Start].
func NewPort(cfg PortConfig, bus *Bus, opts ...PortOption) *Port {
	p := &Port{cfg: cfg, bus: bus}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start initialises PortAudio and opens and starts both streams. It is
// idempotent. Any failure releases everything acquired so far and returns an
// error wrapping [ErrDeviceInit].
func (p *Port) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: initialize portaudio: %v", ErrDeviceInit, err)
	}

	fail := func(op string, err error) error {
		p.releaseLocked()
		return fmt.Errorf("%w: %s: %v", ErrDeviceInit, op, err)
	}

	inDev, err := deviceByIndex(p.cfg.InputDevice, true)
	if err != nil {
		return fail("select input device", err)
	}
	outDev, err := deviceByIndex(p.cfg.OutputDevice, false)
	if err != nil {
		return fail("select output device", err)
	}

	p.epoch = time.Now()

	inParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   inDev,
			Channels: p.cfg.Channels,
			Latency:  inDev.DefaultLowInputLatency,
		},
		SampleRate:      float64(p.cfg.CaptureRate),
		FramesPerBuffer: p.cfg.FrameSize,
	}
	capture, err := portaudio.OpenStream(inParams, p.captureCallback)
	if err != nil && p.cfg.Channels == 1 {
		// Some hosts only expose stereo endpoints. Reopen with two
		// channels and downmix in the callback.
		p.captureStereo = true
		inParams.Input.Channels = 2
		capture, err = portaudio.OpenStream(inParams, p.captureCallback)
	}
	if err != nil {
		p.captureStereo = false
		return fail("open capture stream", err)
	}
	p.capture = capture

	p.playBuf = make([]int16, p.cfg.FrameSize*p.cfg.Channels)
	outParams := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   outDev,
			Channels: p.cfg.Channels,
			Latency:  outDev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(p.cfg.PlaybackRate),
		FramesPerBuffer: p.cfg.FrameSize,
	}
	playback, err := portaudio.OpenStream(outParams, &p.playBuf)
	if err != nil && p.cfg.Channels == 1 {
		p.playStereo = true
		p.playBuf = make([]int16, p.cfg.FrameSize*2)
		outParams.Output.Channels = 2
		playback, err = portaudio.OpenStream(outParams, &p.playBuf)
	}
	if err != nil {
		p.playStereo = false
		return fail("open playback stream", err)
	}
	p.playback = playback

	if err := p.capture.Start(); err != nil {
		return fail("start capture stream", err)
	}
	if err := p.playback.Start(); err != nil {
		return fail("start playback stream", err)
	}

	p.started = true
	slog.Info("audio port started",
		"capture_rate", p.cfg.CaptureRate,
		"playback_rate", p.cfg.PlaybackRate,
		"frame_size", p.cfg.FrameSize,
		"input_device", inDev.Name,
		"output_device", outDev.Name,
		"capture_stereo_fallback", p.captureStereo,
		"playback_stereo_fallback", p.playStereo,
	)
	return nil
}

// captureCallback runs in the PortAudio (hardware-driven) context. It must
// complete quickly and must never block on the consumer, so all it does is
// copy the buffer, run the optional capture filter, and push to the bus.
func (p *Port) captureCallback(in []int16) {
	data := make([]byte, len(in)*2)
	for i, s := range in {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	if p.captureStereo {
		data = StereoToMono(data)
	}
	if p.captureFilter != nil {
		data = p.captureFilter.Process(data)
	}
	p.bus.Push(Frame{
		Data:       data,
		SampleRate: p.cfg.CaptureRate,
		Channels:   p.cfg.Channels,
		Timestamp:  time.Since(p.epoch),
	})
}

// Play resamples pcm from srcRate to the playback rate, applies the effects
// chain when synthesized is true, feeds the result to the echo-cancellation
// reference sink, and writes it to the device in hardware-buffer-sized
// blocks (the final partial block is zero-padded).
//
// Calling Play on a stopped port drops the audio and returns nil; a write
// failure on a running stream returns an error wrapping [ErrDeviceIO].
func (p *Port) Play(pcm []byte, srcRate int, synthesized bool) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	stream := p.playback
	stereo := p.playStereo
	p.mu.Unlock()

	out := ResampleMono16(pcm, srcRate, p.cfg.PlaybackRate)
	if synthesized && p.effects != nil {
		out = p.effects.Process(out)
	}
	if p.echoRef != nil {
		p.echoRef.FeedReference(out)
	}
	if stereo {
		// The echo reference stays mono; only the device write widens.
		out = MonoToStereo(out)
	}

	p.playMu.Lock()
	defer p.playMu.Unlock()

	blockBytes := len(p.playBuf) * 2
	for off := 0; off < len(out); off += blockBytes {
		end := off + blockBytes
		if end > len(out) {
			end = len(out)
		}
		chunk := out[off:end]
		for i := range p.playBuf {
			if i*2+1 < len(chunk) {
				p.playBuf[i] = int16(chunk[i*2]) | int16(chunk[i*2+1])<<8
			} else {
				p.playBuf[i] = 0
			}
		}
		if err := stream.Write(); err != nil {
			// Output underflow is routine when playback pauses between
			// turns; anything else is a real device failure.
			if errors.Is(err, portaudio.OutputUnderflowed) {
				continue
			}
			return fmt.Errorf("%w: write playback: %v", ErrDeviceIO, err)
		}
	}
	return nil
}

// Running reports whether the device streams are open.
func (p *Port) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Stop stops both streams, releases the device handles, and terminates
// PortAudio. It is idempotent and releases resources even when individual
// close calls fail.
func (p *Port) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started && p.capture == nil && p.playback == nil {
		return nil
	}
	p.started = false
	err := p.releaseLocked()
	slog.Info("audio port stopped")
	return err
}

// releaseLocked tears down whatever device state exists. Callers must hold
// p.mu. Errors are joined; the handles are always cleared.
func (p *Port) releaseLocked() error {
	var errs []error

	if p.capture != nil {
		// Abort discards pending capture buffers; faster than Stop.
		if err := p.capture.Abort(); err != nil {
			errs = append(errs, fmt.Errorf("abort capture: %w", err))
		}
		if err := p.capture.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close capture: %w", err))
		}
		p.capture = nil
	}
	if p.playback != nil {
		if err := p.playback.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playback: %w", err))
		}
		if err := p.playback.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close playback: %w", err))
		}
		p.playback = nil
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("terminate portaudio: %w", err))
	}
	return errors.Join(errs...)
}

// deviceByIndex resolves a PortAudio device by index, falling back to the
// host default for negative indices.
func deviceByIndex(index int, input bool) (*portaudio.DeviceInfo, error) {
	if index < 0 {
		if input {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if index >= len(devices) {
		return nil, fmt.Errorf("device index %d out of range (%d devices)", index, len(devices))
	}
	return devices[index], nil
}

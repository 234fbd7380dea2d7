// Package dsp implements the signal-processing stages of the Gemipi voice
// engine: frequency-domain acoustic echo cancellation and the voice-effects
// chain applied to synthesized speech.
package dsp

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// defaultStepSize is the NLMS adaptation rate mu.
	defaultStepSize = 0.1

	// defaultSmoothing is the power-estimate smoothing factor beta.
	defaultSmoothing = 0.95

	// regularization keeps the normalized update finite on silent reference
	// blocks.
	regularization = 1e-8

	// maxReferenceBlocks bounds the far-end queue; beyond this the oldest
	// reference audio is no longer useful for cancellation anyway.
	maxReferenceBlocks = 100
)

// EchoCanceller removes played-back speech from the microphone signal using
// a frequency-domain block NLMS adaptive filter (overlap-save). Reference
// audio is fed from the playback path via [EchoCanceller.FeedReference];
// captured blocks pass through [EchoCanceller.Process].
//
// All methods are safe for concurrent use: FeedReference is called from the
// playback goroutine while Process runs in the capture callback.
type EchoCanceller struct {
	mu sync.Mutex

	blockSize int
	fftSize   int
	fft       *fourier.FFT

	stepSize  float64
	smoothing float64

	// weights is the adaptive filter in the frequency domain; power is the
	// smoothed per-bin reference power estimate.
	weights []complex128
	power   []float64

	// history holds the last two reference blocks (overlap-save input).
	history []float64

	refQueue    [][]float64
	refPending  []float64 // trailing partial reference block awaiting more audio
	refDropped  uint64
	guardEvents uint64

	// scratch buffers reused across blocks.
	timeBuf  []float64
	freqBuf  []complex128
	errFreq  []complex128
	errTime  []float64
	estimate []float64
}

// CancellerOption configures an EchoCanceller.
type CancellerOption func(*EchoCanceller)

// WithStepSize overrides the NLMS adaptation rate.
func WithStepSize(mu float64) CancellerOption {
	return func(c *EchoCanceller) {
		if mu > 0 {
			c.stepSize = mu
		}
	}
}

// WithSmoothing overrides the reference power smoothing factor.
func WithSmoothing(beta float64) CancellerOption {
	return func(c *EchoCanceller) {
		if beta > 0 && beta < 1 {
			c.smoothing = beta
		}
	}
}

// NewEchoCanceller creates a canceller operating on blocks of blockSize
// 16-bit mono samples. Process input must be exactly blockSize samples
// (blockSize*2 bytes); other sizes pass through untouched.
func NewEchoCanceller(blockSize int, opts ...CancellerOption) *EchoCanceller {
	c := &EchoCanceller{
		blockSize: blockSize,
		fftSize:   blockSize * 2,
		stepSize:  defaultStepSize,
		smoothing: defaultSmoothing,
	}
	for _, o := range opts {
		o(c)
	}
	c.fft = fourier.NewFFT(c.fftSize)
	bins := c.fftSize/2 + 1
	c.weights = make([]complex128, bins)
	c.power = make([]float64, bins)
	c.history = make([]float64, c.fftSize)
	c.timeBuf = make([]float64, c.fftSize)
	c.freqBuf = make([]complex128, bins)
	c.errFreq = make([]complex128, bins)
	c.errTime = make([]float64, c.fftSize)
	c.estimate = make([]float64, c.blockSize)
	return c
}

// FeedReference queues a copy of played-back audio as the far-end reference.
// The input accumulates into filter-sized blocks; a trailing partial block is
// held back until the next call completes it, so callers may chunk however
// they like. When the queue is full the oldest blocks are discarded.
func (c *EchoCanceller) FeedReference(pcm []byte) {
	samples := bytesToFloats(pcm)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refPending = append(c.refPending, samples...)
	whole := (len(c.refPending) / c.blockSize) * c.blockSize
	for off := 0; off < whole; off += c.blockSize {
		block := make([]float64, c.blockSize)
		copy(block, c.refPending[off:off+c.blockSize])
		if len(c.refQueue) >= maxReferenceBlocks {
			c.refQueue = c.refQueue[1:]
			c.refDropped++
		}
		c.refQueue = append(c.refQueue, block)
	}
	c.refPending = append(c.refPending[:0], c.refPending[whole:]...)
}

// Process cancels the queued reference from one captured block and returns
// the cleaned audio. When no reference is queued, or the block size does not
// match the filter size, the input is returned unchanged. A non-finite
// filter state (numerical blow-up) resets the filter and returns the
// original microphone block.
func (c *EchoCanceller) Process(pcm []byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(pcm) != c.blockSize*2 {
		return pcm
	}
	if len(c.refQueue) == 0 {
		return pcm
	}

	ref := c.refQueue[0]
	c.refQueue = c.refQueue[1:]
	mic := bytesToFloats(pcm)

	// Overlap-save: shift the newest reference block into the history.
	copy(c.history, c.history[c.blockSize:])
	copy(c.history[c.blockSize:], ref)

	refSpec := c.fft.Coefficients(c.freqBuf, c.history)

	// Echo estimate: filter the reference and keep the valid second half.
	for i := range refSpec {
		c.errFreq[i] = c.weights[i] * refSpec[i]
	}
	full := c.fft.Sequence(c.timeBuf, c.errFreq)
	scale := 1 / float64(c.fftSize)
	for i := 0; i < c.blockSize; i++ {
		c.estimate[i] = full[c.blockSize+i] * scale
	}

	finite := true
	for i := 0; i < c.blockSize; i++ {
		c.errTime[i] = 0
		residual := mic[i] - c.estimate[i]
		c.errTime[c.blockSize+i] = residual
		if !isFinite(residual) {
			finite = false
		}
	}
	if !finite {
		c.resetLocked()
		c.guardEvents++
		return pcm
	}

	// Smoothed per-bin power, then the normalized weight update.
	errSpec := c.fft.Coefficients(c.errFreq, c.errTime)
	for i := range refSpec {
		mag := real(refSpec[i])*real(refSpec[i]) + imag(refSpec[i])*imag(refSpec[i])
		c.power[i] = c.smoothing*c.power[i] + (1-c.smoothing)*mag
		gain := complex(c.stepSize/(c.power[i]+regularization), 0)
		c.weights[i] += gain * cmplx.Conj(refSpec[i]) * errSpec[i]
	}

	// Causality constraint: zero the acausal half of the impulse response.
	w := c.fft.Sequence(c.timeBuf, c.weights)
	for i := range w {
		w[i] *= scale
	}
	for i := c.blockSize; i < c.fftSize; i++ {
		w[i] = 0
	}
	c.fft.Coefficients(c.weights, w)

	for i := range c.weights {
		if !isFiniteComplex(c.weights[i]) {
			c.resetLocked()
			c.guardEvents++
			return pcm
		}
	}

	return floatsToBytes(c.errTime[c.blockSize:])
}

// Reset clears the adaptive filter state and the reference queue. Called
// between sessions so stale echo paths do not leak across conversations.
func (c *EchoCanceller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.refQueue = nil
	c.refPending = nil
}

func (c *EchoCanceller) resetLocked() {
	for i := range c.weights {
		c.weights[i] = 0
	}
	for i := range c.power {
		c.power[i] = 0
	}
	for i := range c.history {
		c.history[i] = 0
	}
}

// GuardActivations reports how many times the non-finite guard fired.
func (c *EchoCanceller) GuardActivations() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.guardEvents
}

// ReferenceDropped reports how many reference blocks were discarded because
// the queue overflowed.
func (c *EchoCanceller) ReferenceDropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refDropped
}

// bytesToFloats converts s16le PCM to normalized [-1, 1) float samples.
func bytesToFloats(pcm []byte) []float64 {
	out := make([]float64, len(pcm)/2)
	for i := range out {
		out[i] = float64(int16(pcm[i*2])|int16(pcm[i*2+1])<<8) / 32768
	}
	return out
}

func floatsToBytes(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		s := clampFloat(f * 32768)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func clampFloat(f float64) int16 {
	r := math.Round(f)
	switch {
	case r > math.MaxInt16:
		return math.MaxInt16
	case r < math.MinInt16:
		return math.MinInt16
	default:
		return int16(r)
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func isFiniteComplex(c complex128) bool {
	return isFinite(real(c)) && isFinite(imag(c))
}

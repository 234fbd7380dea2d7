// Package wakeword defines the detector contract used to gate session
// activation, plus a built-in energy detector for keyword-free setups.
package wakeword

import (
	"math"
	"sync"
)

// Detector examines capture frames and reports when the activation
// condition is met. Implementations keep internal state across frames and
// must be reset between listening phases.
type Detector interface {
	// Process examines one frame of 16-bit LE mono PCM. When the activation
	// condition is met it returns the triggering label and true.
	Process(frame []byte) (label string, detected bool)

	// Reset clears accumulated state so a new listening phase starts fresh.
	Reset()
}

const (
	// DefaultThreshold is the RMS level (0..1 of full scale) treated as
	// speech onset.
	DefaultThreshold = 0.03

	// defaultHoldFrames is how many consecutive loud frames are required
	// before triggering, filtering out single-frame pops.
	defaultHoldFrames = 3
)

// EnergyDetector is a keyword-free Detector that triggers on sustained voice
// energy. It computes the RMS of each frame and fires after several
// consecutive frames exceed the threshold, so door slams and clicks do not
// start a session.
type EnergyDetector struct {
	mu         sync.Mutex
	threshold  float64
	holdFrames int
	loudRun    int
}

// EnergyOption configures a NewEnergyDetector.
type EnergyOption func(*EnergyDetector)

// WithThreshold overrides the RMS activation threshold (0..1 of full scale).
func WithThreshold(t float64) EnergyOption {
	return func(d *EnergyDetector) {
		if t > 0 {
			d.threshold = t
		}
	}
}

// WithHoldFrames overrides how many consecutive loud frames trigger
// activation.
func WithHoldFrames(n int) EnergyOption {
	return func(d *EnergyDetector) {
		if n > 0 {
			d.holdFrames = n
		}
	}
}

// NewEnergyDetector creates an energy detector with the default threshold
// and hold.
func NewEnergyDetector(opts ...EnergyOption) *EnergyDetector {
	d := &EnergyDetector{
		threshold:  DefaultThreshold,
		holdFrames: defaultHoldFrames,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Process implements Detector.
func (d *EnergyDetector) Process(frame []byte) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rms(frame) >= d.threshold {
		d.loudRun++
	} else {
		d.loudRun = 0
	}

	if d.loudRun >= d.holdFrames {
		d.loudRun = 0
		return "voice", true
	}
	return "", false
}

// Reset implements Detector.
func (d *EnergyDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loudRun = 0
}

// rms returns the root-mean-square of a 16-bit LE mono frame, normalized to
// 0..1 of full scale.
func rms(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(frame[i*2]) | int16(frame[i*2+1])<<8)
		sum += s * s
	}
	return math.Sqrt(sum/float64(n)) / 32768
}

package dsp

import (
	"math"
	"sync"
)

// EffectsConfig selects and parameterises the voice-effect stages. Each
// stage is applied only when its enable flag is set; a zero-value config is
// a no-op chain.
type EffectsConfig struct {
	// PitchShift transposes the voice by the given number of semitones
	// (negative lowers it). The output keeps the input duration.
	PitchShiftEnabled   bool
	PitchShiftSemitones float64

	// Chorus mixes in a copy delayed by an LFO-modulated amount, thickening
	// the voice.
	ChorusEnabled bool
	ChorusDepth   float64 // modulation depth as fraction of base delay, 0..1
	ChorusRateHz  float64
	ChorusMix     float64 // wet fraction, 0..1

	// Resonance emphasises a narrow band, giving a metallic ring.
	ResonanceEnabled bool
	ResonanceFreqHz  float64
	ResonanceMix     float64

	// Bitcrush quantises samples to the given bit depth.
	BitcrushEnabled bool
	BitcrushBits    int
}

// DefaultEffectsConfig returns the stock synthetic-voice treatment.
func DefaultEffectsConfig() EffectsConfig {
	return EffectsConfig{
		PitchShiftEnabled:   true,
		PitchShiftSemitones: 2,
		ChorusEnabled:       true,
		ChorusDepth:         0.4,
		ChorusRateHz:        0.5,
		ChorusMix:           0.3,
		ResonanceEnabled:    true,
		ResonanceFreqHz:     2500,
		ResonanceMix:        0.3,
		BitcrushEnabled:     true,
		BitcrushBits:        12,
	}
}

// EffectsChain applies the enabled stages in a fixed order: pitch shift,
// chorus, resonance, bitcrush. The chain is stateful (chorus delay line,
// biquad history, LFO phase) and safe for concurrent use, though in practice
// a single playback goroutine drives it.
type EffectsChain struct {
	mu         sync.Mutex
	cfg        EffectsConfig
	sampleRate int

	// chorus state
	delayLine []float64
	delayPos  int
	lfoPhase  float64

	// resonance biquad state
	bq biquad
}

const chorusBaseDelaySec = 0.025

// NewEffectsChain creates a chain operating at the given playback sample
// rate.
func NewEffectsChain(sampleRate int, cfg EffectsConfig) *EffectsChain {
	e := &EffectsChain{cfg: cfg, sampleRate: sampleRate}
	e.initLocked()
	return e
}

func (e *EffectsChain) initLocked() {
	delaySamples := int(float64(e.sampleRate) * chorusBaseDelaySec * 2)
	if delaySamples < 1 {
		delaySamples = 1
	}
	e.delayLine = make([]float64, delaySamples)
	e.delayPos = 0
	e.lfoPhase = 0
	if e.cfg.ResonanceEnabled {
		e.bq = newBandpass(e.cfg.ResonanceFreqHz, float64(e.sampleRate), 5)
	}
}

// Process runs one block of 16-bit mono PCM through the enabled stages.
func (e *EffectsChain) Process(pcm []byte) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(pcm) < 2 {
		return pcm
	}

	samples := bytesToFloats(pcm)

	if e.cfg.PitchShiftEnabled && e.cfg.PitchShiftSemitones != 0 {
		samples = pitchShift(samples, e.cfg.PitchShiftSemitones)
	}
	if e.cfg.ChorusEnabled {
		e.chorus(samples)
	}
	if e.cfg.ResonanceEnabled {
		e.resonance(samples)
	}
	if e.cfg.BitcrushEnabled && e.cfg.BitcrushBits > 0 && e.cfg.BitcrushBits < 16 {
		bitcrush(samples, e.cfg.BitcrushBits)
	}

	return floatsToBytes(samples)
}

// Reset clears the chorus delay line, LFO phase, and filter history. Called
// between sessions.
func (e *EffectsChain) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initLocked()
}

// pitchShift transposes by resampling with factor 2^(semitones/12) and then
// padding or truncating back to the original length, so block timing is
// preserved.
func pitchShift(samples []float64, semitones float64) []float64 {
	factor := math.Pow(2, semitones/12)
	n := len(samples)
	resampledLen := int(math.Round(float64(n) / factor))
	if resampledLen < 1 {
		resampledLen = 1
	}

	resampled := make([]float64, resampledLen)
	for i := range resampled {
		pos := float64(i) * factor
		i0 := int(pos)
		if i0 >= n-1 {
			resampled[i] = samples[n-1]
			continue
		}
		frac := pos - float64(i0)
		resampled[i] = samples[i0]*(1-frac) + samples[i0+1]*frac
	}

	out := make([]float64, n)
	copy(out, resampled)
	return out
}

func (e *EffectsChain) chorus(samples []float64) {
	baseDelay := float64(e.sampleRate) * chorusBaseDelaySec
	lfoStep := 2 * math.Pi * e.cfg.ChorusRateHz / float64(e.sampleRate)
	mix := e.cfg.ChorusMix

	for i := range samples {
		delay := baseDelay * (1 + e.cfg.ChorusDepth*math.Sin(e.lfoPhase))
		readPos := float64(e.delayPos) - delay
		for readPos < 0 {
			readPos += float64(len(e.delayLine))
		}
		r0 := int(readPos) % len(e.delayLine)
		r1 := (r0 + 1) % len(e.delayLine)
		frac := readPos - math.Floor(readPos)
		delayed := e.delayLine[r0]*(1-frac) + e.delayLine[r1]*frac

		e.delayLine[e.delayPos] = samples[i]
		e.delayPos = (e.delayPos + 1) % len(e.delayLine)

		samples[i] = samples[i]*(1-mix) + delayed*mix

		e.lfoPhase += lfoStep
		if e.lfoPhase > 2*math.Pi {
			e.lfoPhase -= 2 * math.Pi
		}
	}
}

func (e *EffectsChain) resonance(samples []float64) {
	mix := e.cfg.ResonanceMix
	for i := range samples {
		wet := e.bq.process(samples[i])
		samples[i] = samples[i]*(1-mix) + wet*mix
	}
}

// bitcrush quantises normalized samples to 2^bits levels.
func bitcrush(samples []float64, bits int) {
	levels := math.Pow(2, float64(bits)) / 2
	for i := range samples {
		samples[i] = math.Round(samples[i]*levels) / levels
	}
}

// biquad is a direct-form-I band-pass filter (RBJ cookbook, constant skirt
// gain).
type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func newBandpass(freq, sampleRate, q float64) biquad {
	omega := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(omega) / (2 * q)
	a0 := 1 + alpha
	return biquad{
		b0: alpha / a0,
		b1: 0,
		b2: -alpha / a0,
		a1: -2 * math.Cos(omega) / a0,
		a2: (1 - alpha) / a0,
	}
}

func (b *biquad) process(x float64) float64 {
	y := b.b0*x + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2
	b.x2, b.x1 = b.x1, x
	b.y2, b.y1 = b.y1, y
	return y
}

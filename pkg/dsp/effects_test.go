package dsp

import (
	"bytes"
	"math"
	"testing"
)

func TestEffectsChainDisabledPassthroughValues(t *testing.T) {
	chain := NewEffectsChain(16000, EffectsConfig{})
	in := floatsToPCM(sineBlock(440, 16000, 512, 12000, 0))
	got := chain.Process(in)
	if !bytes.Equal(got, in) {
		t.Error("all-disabled chain must not alter the signal")
	}
}

func TestEffectsChainPreservesLength(t *testing.T) {
	tests := []struct {
		name string
		cfg  EffectsConfig
	}{
		{"default", DefaultEffectsConfig()},
		{"pitch up", EffectsConfig{PitchShiftEnabled: true, PitchShiftSemitones: 4}},
		{"pitch down", EffectsConfig{PitchShiftEnabled: true, PitchShiftSemitones: -7}},
		{"chorus only", EffectsConfig{ChorusEnabled: true, ChorusDepth: 0.4, ChorusRateHz: 0.5, ChorusMix: 0.5}},
		{"resonance only", EffectsConfig{ResonanceEnabled: true, ResonanceFreqHz: 2500, ResonanceMix: 0.3}},
		{"bitcrush only", EffectsConfig{BitcrushEnabled: true, BitcrushBits: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := NewEffectsChain(24000, tt.cfg)
			in := floatsToPCM(sineBlock(440, 24000, 1024, 12000, 0))
			got := chain.Process(in)
			if len(got) != len(in) {
				t.Errorf("output %d bytes, want %d", len(got), len(in))
			}
		})
	}
}

func TestEffectsChainOutputInRange(t *testing.T) {
	chain := NewEffectsChain(24000, DefaultEffectsConfig())
	in := floatsToPCM(sineBlock(300, 24000, 2048, 30000, 0))
	out := pcmToFloats(chain.Process(in))
	for i, s := range out {
		if s > math.MaxInt16 || s < math.MinInt16 {
			t.Fatalf("sample %d out of int16 range: %v", i, s)
		}
	}
}

func TestBitcrushQuantises(t *testing.T) {
	cfg := EffectsConfig{BitcrushEnabled: true, BitcrushBits: 12}
	chain := NewEffectsChain(24000, cfg)
	in := floatsToPCM(sineBlock(440, 24000, 512, 20000, 0.3))
	out := pcmToFloats(chain.Process(in))

	// 12-bit quantisation of normalized audio leaves int16 samples on a
	// grid of multiples of 16.
	for i, s := range out {
		if int(s)%16 != 0 {
			t.Fatalf("sample %d = %v not on 12-bit grid", i, s)
		}
	}
}

func TestBitcrushIdempotent(t *testing.T) {
	cfg := EffectsConfig{BitcrushEnabled: true, BitcrushBits: 10}
	in := floatsToPCM(sineBlock(440, 24000, 512, 20000, 0))

	once := NewEffectsChain(24000, cfg).Process(in)
	twice := NewEffectsChain(24000, cfg).Process(once)
	if !bytes.Equal(once, twice) {
		t.Error("bitcrushing already-crushed audio must be a no-op")
	}
}

func TestEffectsChainReset(t *testing.T) {
	cfg := EffectsConfig{ChorusEnabled: true, ChorusDepth: 0.4, ChorusRateHz: 0.5, ChorusMix: 0.5}
	chain := NewEffectsChain(24000, cfg)
	in := floatsToPCM(sineBlock(440, 24000, 1024, 12000, 0))

	first := chain.Process(in)
	chain.Reset()
	second := chain.Process(in)

	// After Reset the delay line and LFO phase are back at zero, so the
	// same input must produce the same output.
	if !bytes.Equal(first, second) {
		t.Error("Reset did not restore initial chorus state")
	}
}

func TestEffectsChainShortInput(t *testing.T) {
	chain := NewEffectsChain(24000, DefaultEffectsConfig())
	if got := chain.Process(nil); len(got) != 0 {
		t.Errorf("nil input produced %d bytes", len(got))
	}
	one := []byte{0x01}
	if got := chain.Process(one); !bytes.Equal(got, one) {
		t.Error("sub-sample input must pass through unchanged")
	}
}

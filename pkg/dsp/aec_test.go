package dsp

import (
	"bytes"
	"math"
	"testing"
)

const testBlock = 1024

// floatsToPCM and pcmToFloats round-trip normalized [-1, 1] samples through
// the s16le wire format the canceller consumes.
func floatsToPCM(samples []float64) []byte {
	return floatsToBytes(samples)
}

func pcmToFloats(pcm []byte) []float64 {
	return bytesToFloats(pcm)
}

func sineBlock(freq float64, rate, n int, amplitude float64, phase0 float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(phase0+2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func energy(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return sum
}

func TestEchoCancellerPassthroughWithoutReference(t *testing.T) {
	aec := NewEchoCanceller(testBlock)
	in := floatsToPCM(sineBlock(440, 16000, testBlock, 0.03, 0))
	got := aec.Process(in)
	if !bytes.Equal(got, in) {
		t.Error("Process without reference must return the input unchanged")
	}
}

func TestEchoCancellerPassthroughOnSizeMismatch(t *testing.T) {
	aec := NewEchoCanceller(testBlock)
	aec.FeedReference(floatsToPCM(make([]float64, testBlock)))
	in := floatsToPCM(make([]float64, testBlock/2))
	got := aec.Process(in)
	if !bytes.Equal(got, in) {
		t.Error("mismatched block size must pass through unchanged")
	}
}

func TestEchoCancellerSilenceStaysSilent(t *testing.T) {
	aec := NewEchoCanceller(testBlock)
	silence := floatsToPCM(make([]float64, testBlock))
	aec.FeedReference(silence)
	got := pcmToFloats(aec.Process(silence))
	for i, s := range got {
		if s != 0 {
			t.Fatalf("sample %d = %v, want 0", i, s)
		}
	}
}

func TestEchoCancellerOutputIsFinite(t *testing.T) {
	aec := NewEchoCanceller(testBlock)
	phase := 0.0
	for block := 0; block < 20; block++ {
		ref := sineBlock(300, 16000, testBlock, 0.25, phase)
		phase += 2 * math.Pi * 300 * testBlock / 16000
		aec.FeedReference(floatsToPCM(ref))

		mic := make([]float64, testBlock)
		for i := range mic {
			mic[i] = 0.5 * ref[i]
		}
		out := pcmToFloats(aec.Process(floatsToPCM(mic)))
		for i, s := range out {
			if math.IsNaN(s) || math.IsInf(s, 0) {
				t.Fatalf("block %d sample %d not finite: %v", block, i, s)
			}
		}
	}
	if aec.GuardActivations() != 0 {
		t.Errorf("guard fired %d times on well-conditioned input", aec.GuardActivations())
	}
}

func TestEchoCancellerConverges(t *testing.T) {
	aec := NewEchoCanceller(testBlock)

	var micEnergy, outEnergy float64
	phase := 0.0
	const blocks = 300
	for block := 0; block < blocks; block++ {
		ref := sineBlock(250, 16000, testBlock, 0.3, phase)
		phase += 2 * math.Pi * 250 * testBlock / 16000
		aec.FeedReference(floatsToPCM(ref))

		// Microphone hears an attenuated copy of the playback.
		mic := make([]float64, testBlock)
		for i := range mic {
			mic[i] = 0.8 * ref[i]
		}
		out := pcmToFloats(aec.Process(floatsToPCM(mic)))

		// Judge only the tail, after adaptation has had time to settle.
		if block >= blocks-50 {
			micEnergy += energy(mic)
			outEnergy += energy(out)
		}
	}

	if outEnergy >= 0.5*micEnergy {
		t.Errorf("echo not attenuated: residual energy %g vs mic energy %g", outEnergy, micEnergy)
	}
}

func TestEchoCancellerReferenceQueueBounded(t *testing.T) {
	aec := NewEchoCanceller(testBlock)
	block := floatsToPCM(make([]float64, testBlock))
	for i := 0; i < maxReferenceBlocks+10; i++ {
		aec.FeedReference(block)
	}
	if got := aec.ReferenceDropped(); got != 10 {
		t.Errorf("ReferenceDropped() = %d, want 10", got)
	}
}

func TestEchoCancellerReferenceAccumulatesAcrossCalls(t *testing.T) {
	aec := NewEchoCanceller(testBlock)
	// Half a block per call: two calls complete one queued block, so
	// 2*maxReferenceBlocks calls fill the queue exactly without drops.
	half := floatsToPCM(make([]float64, testBlock/2))
	for i := 0; i < 2*maxReferenceBlocks; i++ {
		aec.FeedReference(half)
	}
	if got := aec.ReferenceDropped(); got != 0 {
		t.Fatalf("ReferenceDropped() = %d after chunked feeds, want 0", got)
	}
	aec.FeedReference(floatsToPCM(make([]float64, testBlock)))
	if got := aec.ReferenceDropped(); got != 1 {
		t.Errorf("ReferenceDropped() = %d, want 1", got)
	}
}

func TestEchoCancellerReset(t *testing.T) {
	aec := NewEchoCanceller(testBlock)
	ref := sineBlock(250, 16000, testBlock, 0.3, 0)
	aec.FeedReference(floatsToPCM(ref))
	aec.Process(floatsToPCM(ref))
	// Leave a partial block pending so Reset has to discard it too.
	aec.FeedReference(floatsToPCM(make([]float64, testBlock/2)))

	aec.Reset()
	aec.FeedReference(floatsToPCM(make([]float64, testBlock/2)))

	// After reset the queue is empty, so Process is a pure passthrough.
	in := floatsToPCM(sineBlock(440, 16000, testBlock, 0.03, 0))
	got := aec.Process(in)
	if !bytes.Equal(got, in) {
		t.Error("Process after Reset must pass through unchanged")
	}
}

package audio

import (
	"bytes"
	"testing"
)

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func bytesToSamples(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return out
}

func TestResampleMono16Identity(t *testing.T) {
	in := samplesToBytes([]int16{0, 100, -100, 32767, -32768})
	got := ResampleMono16(in, 16000, 16000)
	if !bytes.Equal(got, in) {
		t.Errorf("identity resample changed data: got %v, want %v", got, in)
	}
}

func TestResampleMono16Empty(t *testing.T) {
	if got := ResampleMono16(nil, 16000, 24000); len(got) != 0 {
		t.Errorf("resampling empty input produced %d bytes", len(got))
	}
}

func TestResampleMono16OutputLength(t *testing.T) {
	tests := []struct {
		name        string
		inSamples   int
		src, dst    int
		wantSamples int
	}{
		{"upsample 16k to 24k", 1024, 16000, 24000, 1536},
		{"downsample 24k to 16k", 1536, 24000, 16000, 1024},
		{"upsample 16k to 48k", 160, 16000, 48000, 480},
		{"downsample 48k to 16k", 480, 48000, 16000, 160},
		{"odd ratio 22050 to 16000", 441, 22050, 16000, 320},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := samplesToBytes(make([]int16, tt.inSamples))
			got := ResampleMono16(in, tt.src, tt.dst)
			if len(got)/2 != tt.wantSamples {
				t.Errorf("got %d samples, want %d", len(got)/2, tt.wantSamples)
			}
		})
	}
}

func TestResampleMono16Interpolates(t *testing.T) {
	// Doubling the rate of a ramp should keep it monotonic with midpoints.
	in := samplesToBytes([]int16{0, 100, 200, 300})
	out := bytesToSamples(ResampleMono16(in, 8000, 16000))
	if len(out) != 8 {
		t.Fatalf("got %d samples, want 8", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Errorf("output not monotonic at %d: %v", i, out)
			break
		}
	}
	if out[0] != 0 {
		t.Errorf("first sample = %d, want 0", out[0])
	}
}

func TestResampleMono16ClampsExtremes(t *testing.T) {
	in := samplesToBytes([]int16{32767, 32767, -32768, -32768})
	out := bytesToSamples(ResampleMono16(in, 16000, 24000))
	for i, s := range out {
		if s > 32767 || s < -32768 {
			t.Errorf("sample %d out of range: %d", i, s)
		}
	}
}

func TestMonoToStereo(t *testing.T) {
	in := samplesToBytes([]int16{1, 2, 3})
	got := bytesToSamples(MonoToStereo(in))
	want := []int16{1, 1, 2, 2, 3, 3}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMono(t *testing.T) {
	in := samplesToBytes([]int16{100, 200, -100, 100, 32767, 32767})
	got := bytesToSamples(StereoToMono(in))
	want := []int16{150, 0, 32767}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

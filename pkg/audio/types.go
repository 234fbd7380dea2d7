package audio

import "time"

// Frame represents a single frame of PCM audio flowing through the pipeline.
// Frames are the atomic unit of audio transport — captured from the input
// device, gated by the session state machine, exchanged with the backend, and
// played through the output device. A Frame is immutable once produced:
// ownership transfers from producer to consumer on hand-off, and no component
// mutates a frame it did not create.
type Frame struct {
	// Data is little-endian signed 16-bit PCM. Sample rate and channel count
	// are carried alongside so consumers never have to guess the format.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for capture, 24000 for backend output).
	SampleRate int

	// Channels: 1 for mono capture, which is the only bit-exact contract this
	// engine surfaces to collaborators.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Samples returns the number of 16-bit samples in the frame.
func (f Frame) Samples() int { return len(f.Data) / 2 }

package audio

import "errors"

// ErrDeviceInit indicates that an audio device could not be opened or
// started. It is fatal to a run: there is no audio engine without devices.
var ErrDeviceInit = errors.New("audio: device init failed")

// ErrDeviceIO indicates a runtime failure on an already-open stream. It is
// recoverable: the affected stream is stopped and released, and the failure
// propagates upward as a non-fatal session error.
var ErrDeviceIO = errors.New("audio: device i/o failed")

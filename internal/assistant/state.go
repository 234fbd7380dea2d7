package assistant

// State is the turn-taking state of the engine.
type State int32

const (
	// StateListening means no session is active; capture frames feed the
	// wake-word detector only.
	StateListening State = iota

	// StateActivated means a session is live and the user holds the floor;
	// microphone audio streams to the backend.
	StateActivated

	// StateResponding means the model holds the floor; playback is running
	// and microphone audio is gated.
	StateResponding
)

// String implements fmt.Stringer for logs and the visualizer.
func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateActivated:
		return "activated"
	case StateResponding:
		return "responding"
	default:
		return "unknown"
	}
}

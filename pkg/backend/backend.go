// Package backend defines the provider-neutral contract for streaming
// speech-to-speech conversation backends. A backend accepts microphone audio
// and an activation prompt, and streams back synthesized speech, turn
// boundaries, interruptions, and tool calls as a single ordered event
// stream.
package backend

import "context"

// EventType discriminates the variants of [Event].
type EventType int

const (
	// EventAudio carries a block of synthesized speech.
	EventAudio EventType = iota

	// EventTurnComplete marks the end of the model's spoken turn.
	EventTurnComplete

	// EventToolCall asks the client to execute a declared tool. The call
	// must be acknowledged via [SessionHandle.Ack] before the backend
	// continues.
	EventToolCall

	// EventInterrupted reports that the user spoke over the model and the
	// remainder of the current turn was discarded server-side. Queued local
	// playback should be discarded too.
	EventInterrupted
)

// String implements fmt.Stringer for log output.
func (t EventType) String() string {
	switch t {
	case EventAudio:
		return "audio"
	case EventTurnComplete:
		return "turn_complete"
	case EventToolCall:
		return "tool_call"
	case EventInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Event is one element of a session's ordered output stream. Exactly the
// fields relevant to Type are populated.
type Event struct {
	Type EventType

	// Audio is 16-bit LE mono PCM at the session's receive sample rate.
	// Set for EventAudio.
	Audio []byte

	// Tool is set for EventToolCall.
	Tool ToolCall
}

// ToolCall is a backend request to run a declared tool.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolDefinition declares a tool the model may call during the session.
type ToolDefinition struct {
	Name        string
	Description string
}

// SessionConfig parameterises a single conversation session.
type SessionConfig struct {
	// Model is the provider-specific model identifier.
	Model string

	// Instructions is the system prompt establishing the persona.
	Instructions string

	// Voice selects the provider voice preset; empty means provider
	// default.
	Voice string

	// Tools are declared to the model at session setup.
	Tools []ToolDefinition

	// SendSampleRate is the rate of audio pushed via SendAudio, in Hz.
	SendSampleRate int
}

// SessionHandle is a live conversation. Close releases the underlying
// connection; after Close, Events is closed and Err reports the terminal
// error, if any.
type SessionHandle interface {
	// SendAudio streams one block of microphone PCM to the model.
	SendAudio(ctx context.Context, pcm []byte) error

	// SendActivation injects a text turn on the user's behalf, prompting
	// the model to speak first.
	SendActivation(ctx context.Context, text string) error

	// Ack reports a tool call's outcome back to the model.
	Ack(ctx context.Context, call ToolCall, result map[string]any) error

	// Events returns the session's ordered output stream. The channel is
	// closed when the session ends for any reason.
	Events() <-chan Event

	// Err returns the error that terminated the session, or nil after a
	// clean Close. Valid once Events is closed.
	Err() error

	// Close shuts the session down. Safe to call multiple times.
	Close() error
}

// Provider opens conversation sessions against one remote backend.
type Provider interface {
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)
}

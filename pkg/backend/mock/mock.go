// Package mock provides test doubles for the backend package interfaces.
//
// Use Provider to verify Connect calls and feed controlled sessions. Use
// Session to drive the event stream and inspect which methods the session
// loop invoked.
//
// Example:
//
//	sess := &mock.Session{EventsCh: make(chan backend.Event, 8)}
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.Connect(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/LasseHartmann/Gemipi/pkg/backend"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Ctx is the context passed to Connect.
	Ctx context.Context
	// Cfg is the SessionConfig passed to Connect.
	Cfg backend.SessionConfig
}

// Provider is a mock implementation of backend.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by Connect. If nil, Connect
	// returns a new default Session with a buffered event channel.
	Session backend.SessionHandle

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall
}

// Connect records the call and returns Session, ConnectErr.
func (p *Provider) Connect(ctx context.Context, cfg backend.SessionConfig) (backend.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return &Session{EventsCh: make(chan backend.Event, 64)}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = nil
}

// Ensure Provider implements backend.Provider at compile time.
var _ backend.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// PCM is a copy of the audio bytes that were passed to SendAudio.
	PCM []byte
}

// AckCall records a single invocation of Session.Ack.
type AckCall struct {
	Call   backend.ToolCall
	Result map[string]any
}

// Session is a mock implementation of backend.SessionHandle. Callers should
// pre-populate EventsCh, then close it to signal end-of-session.
type Session struct {
	mu sync.Mutex

	// EventsCh is the channel returned by Events(). Callers own this
	// channel.
	EventsCh chan backend.Event

	// --- Configurable errors ---

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// SendActivationErr, if non-nil, is returned by every SendActivation
	// call.
	SendActivationErr error

	// AckErr, if non-nil, is returned by every Ack call.
	AckErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// ErrVal is returned by Err.
	ErrVal error

	// --- Call records ---

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// SendActivationCalls records the text of every SendActivation call.
	SendActivationCalls []string

	// AckCalls records every call to Ack in order.
	AckCalls []AckCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(_ context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{PCM: cp})
	return s.SendAudioErr
}

// SendActivation records the call and returns SendActivationErr.
func (s *Session) SendActivation(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendActivationCalls = append(s.SendActivationCalls, text)
	return s.SendActivationErr
}

// Ack records the call and returns AckErr.
func (s *Session) Ack(_ context.Context, call backend.ToolCall, result map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AckCalls = append(s.AckCalls, AckCall{Call: call, Result: result})
	return s.AckErr
}

// Events returns EventsCh.
func (s *Session) Events() <-chan backend.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.EventsCh
}

// Err returns ErrVal.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrVal
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// Acks returns a copy of all recorded Ack invocations. Thread-safe.
func (s *Session) Acks() []AckCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AckCall, len(s.AckCalls))
	copy(out, s.AckCalls)
	return out
}

// SentAudio returns a copy of all recorded SendAudio invocations.
// Thread-safe.
func (s *Session) SentAudio() []SendAudioCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SendAudioCall, len(s.SendAudioCalls))
	copy(out, s.SendAudioCalls)
	return out
}

// Activations returns a copy of all recorded SendActivation texts.
// Thread-safe.
func (s *Session) Activations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.SendActivationCalls))
	copy(out, s.SendActivationCalls)
	return out
}

// Closes returns the number of Close invocations. Thread-safe.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.SendActivationCalls = nil
	s.AckCalls = nil
	s.CloseCallCount = 0
}

// Ensure Session implements backend.SessionHandle at compile time.
var _ backend.SessionHandle = (*Session)(nil)

// Package assistant implements the turn-taking session loop at the heart of
// Gemipi: wake gating, the conversation state machine, audio relay in both
// directions, and session teardown.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/LasseHartmann/Gemipi/internal/config"
	"github.com/LasseHartmann/Gemipi/internal/observe"
	"github.com/LasseHartmann/Gemipi/internal/resilience"
	"github.com/LasseHartmann/Gemipi/pkg/audio"
	"github.com/LasseHartmann/Gemipi/pkg/backend"
	"github.com/LasseHartmann/Gemipi/pkg/visualizer"
	"github.com/LasseHartmann/Gemipi/pkg/wakeword"
)

// endSessionTool is the tool the model calls to end the conversation. It is
// declared on every session.
const endSessionTool = "end_session"

// AudioPort is the device surface the assistant drives. Implemented by
// *audio.Port; tests substitute a fake.
type AudioPort interface {
	Start() error
	Stop() error
	Play(pcm []byte, srcRate int, synthesized bool) error
}

// Resetter is per-session DSP state (effects chain, echo canceller) cleared
// between conversations.
type Resetter interface {
	Reset()
}

// GuardCounter exposes the echo canceller's numerical-guard count for
// metrics.
type GuardCounter interface {
	GuardActivations() uint64
}

// Session-terminating sentinels. Both mean the session is over and the
// engine should return to wake listening; neither is a failure.
var (
	errSessionEnded   = errors.New("assistant: session ended by model")
	errSessionTimeout = errors.New("assistant: session inactivity timeout")
)

// Config holds the assistant's behavioural parameters.
type Config struct {
	// Personality supplies the system prompt and activation greeting.
	Personality config.Personality

	// Model and Voice are passed through to the backend. An empty Voice
	// falls back to the personality's preferred voice.
	Model string
	Voice string

	// SendSampleRate is the microphone rate in Hz; ReceiveSampleRate is the
	// rate of backend speech.
	SendSampleRate    int
	ReceiveSampleRate int

	// WakeEnabled gates sessions on the wake-word detector. When false the
	// assistant runs a single session immediately and Run returns when it
	// ends.
	WakeEnabled bool

	// InactivityTimeout ends a session after this long without backend
	// activity. Zero disables the watchdog.
	InactivityTimeout time.Duration

	// BackendName labels backend error metrics.
	BackendName string
}

// Assistant owns the engine's turn-taking loop. Create with New, drive with
// Run.
type Assistant struct {
	cfg      Config
	port     AudioPort
	bus      *audio.Bus
	provider backend.Provider

	detector  wakeword.Detector
	resetters []Resetter
	guard     GuardCounter
	notifier  visualizer.Notifier
	metrics   *observe.Metrics
	logger    *slog.Logger

	state        atomic.Int32
	lastActivity atomic.Int64 // unix nanos of the last session activity

	// dropsSeen and guardSeen track cumulative counters between metric
	// flushes. Only touched from the session loop goroutines, never
	// concurrently.
	dropsSeen uint64
	guardSeen uint64
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithDetector sets the wake-word detector. Required when Config.WakeEnabled
// is true.
func WithDetector(d wakeword.Detector) Option {
	return func(a *Assistant) { a.detector = d }
}

// WithResetters registers per-session DSP state to clear between
// conversations.
func WithResetters(rs ...Resetter) Option {
	return func(a *Assistant) { a.resetters = append(a.resetters, rs...) }
}

// WithEchoGuard registers the echo canceller's guard counter for metrics.
func WithEchoGuard(g GuardCounter) Option {
	return func(a *Assistant) { a.guard = g }
}

// WithNotifier sets the state-display notifier.
func WithNotifier(n visualizer.Notifier) Option {
	return func(a *Assistant) { a.notifier = n }
}

// WithMetrics overrides the metrics instance, mainly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

// New creates an Assistant. port delivers capture frames to bus; provider
// opens backend sessions.
func New(cfg Config, port AudioPort, bus *audio.Bus, provider backend.Provider, opts ...Option) *Assistant {
	a := &Assistant{
		cfg:      cfg,
		port:     port,
		bus:      bus,
		provider: provider,
		notifier: visualizer.New(visualizer.VariantNone, nil),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// Run starts the audio devices and drives the engine until ctx is cancelled
// or, in single-session mode, until the session ends. Session-level failures
// do not stop the engine when wake gating is on; it logs them and returns to
// listening.
func (a *Assistant) Run(ctx context.Context) error {
	if err := a.port.Start(); err != nil {
		return fmt.Errorf("assistant: start audio: %w", err)
	}
	defer a.port.Stop()

	if !a.cfg.WakeEnabled {
		err := a.runSession(ctx)
		if isSessionEnd(err) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	if a.detector == nil {
		return errors.New("assistant: wake gating enabled but no detector configured")
	}

	var backoff resilience.Backoff
	for {
		if err := a.waitForWake(ctx); err != nil {
			return nil // context cancelled while listening
		}

		err := a.runSession(ctx)
		switch {
		case isSessionEnd(err) || err == nil:
			backoff.Reset()
		case errors.Is(err, context.Canceled):
			return nil
		default:
			a.logger.Error("session failed", "error", err)
			a.metrics.RecordBackendError(ctx, a.cfg.BackendName)
			// Throttle reconnects while the backend stays unreachable.
			if err := backoff.Sleep(ctx); err != nil {
				return nil
			}
		}

		a.resetSessionState()
	}
}

// isSessionEnd reports whether err is a normal session termination.
func isSessionEnd(err error) bool {
	return errors.Is(err, errSessionEnded) || errors.Is(err, errSessionTimeout)
}

// waitForWake consumes capture frames until the detector fires or ctx is
// cancelled.
func (a *Assistant) waitForWake(ctx context.Context) error {
	a.transition(ctx, StateListening)
	for {
		frames := a.bus.PullBatch(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.flushFrameMetrics(ctx, len(frames))
		for _, f := range frames {
			if label, ok := a.detector.Process(f.Data); ok {
				a.logger.Info("wake detected", "label", label)
				return nil
			}
		}
	}
}

// runSession opens a backend session and relays audio both ways until the
// model ends it, the watchdog fires, a loop fails, or ctx is cancelled.
func (a *Assistant) runSession(ctx context.Context) error {
	sessionID := uuid.NewString()
	logger := a.logger.With("session_id", sessionID)
	start := time.Now()

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handle, err := a.provider.Connect(sctx, backend.SessionConfig{
		Model:        a.cfg.Model,
		Instructions: a.cfg.Personality.Instructions,
		Voice:        a.voice(),
		Tools: []backend.ToolDefinition{
			{Name: endSessionTool, Description: "Call when the user says goodbye or asks to stop. Ends the conversation."},
		},
		SendSampleRate: a.cfg.SendSampleRate,
	})
	if err != nil {
		return fmt.Errorf("assistant: connect: %w", err)
	}
	defer handle.Close()

	a.metrics.ActiveSessions.Add(ctx, 1)
	defer func() {
		a.metrics.ActiveSessions.Add(ctx, -1)
		a.metrics.SessionDuration.Record(ctx, time.Since(start).Seconds())
		if a.guard != nil {
			if g := a.guard.GuardActivations(); g > a.guardSeen {
				a.metrics.AECGuardActivations.Add(ctx, int64(g-a.guardSeen))
				a.guardSeen = g
			}
		}
	}()

	logger.Info("session started", "personality", a.cfg.Personality.Name)
	a.touch()

	// The persona speaks first: hold the mic gate closed until its greeting
	// turn completes.
	if a.cfg.Personality.ActivationPrompt != "" {
		a.transition(ctx, StateResponding)
		if err := handle.SendActivation(sctx, a.cfg.Personality.ActivationPrompt); err != nil {
			return fmt.Errorf("assistant: activation: %w", err)
		}
	} else {
		a.transition(ctx, StateActivated)
	}

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error { return a.sendLoop(gctx, handle) })
	g.Go(func() error { return a.receiveLoop(gctx, handle, logger) })
	g.Go(func() error { return a.watchdog(gctx) })

	err = g.Wait()
	logger.Info("session finished", "duration", time.Since(start).Round(time.Millisecond), "reason", err)
	return err
}

// voice resolves the backend voice: explicit config wins, then the
// personality's preference.
func (a *Assistant) voice() string {
	if a.cfg.Voice != "" {
		return a.cfg.Voice
	}
	return a.cfg.Personality.Voice
}

// sendLoop relays capture frames to the backend. Frames arriving while the
// model speaks are consumed and discarded so stale audio does not burst in
// when the gate reopens.
func (a *Assistant) sendLoop(ctx context.Context, handle backend.SessionHandle) error {
	for {
		frames := a.bus.PullBatch(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.flushFrameMetrics(ctx, len(frames))
		for _, f := range frames {
			if a.currentState() == StateResponding {
				continue
			}
			if err := handle.SendAudio(ctx, f.Data); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("assistant: send audio: %w", err)
			}
			a.touch()
		}
	}
}

// receiveLoop consumes the backend event stream: plays synthesized speech,
// drives the state machine, and acknowledges tool calls. An end_session tool
// call is acknowledged immediately but the session stays open until the turn
// completes, so a farewell the model speaks after the call still plays.
func (a *Assistant) receiveLoop(ctx context.Context, handle backend.SessionHandle, logger *slog.Logger) error {
	endRequested := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-handle.Events():
			if !ok {
				if err := handle.Err(); err != nil {
					return fmt.Errorf("assistant: backend: %w", err)
				}
				return errSessionEnded
			}
			switch ev.Type {
			case backend.EventAudio:
				a.transition(ctx, StateResponding)
				if err := a.port.Play(ev.Audio, a.cfg.ReceiveSampleRate, true); err != nil {
					logger.Warn("playback failed", "error", err)
				}

			case backend.EventTurnComplete:
				a.touch()
				if endRequested {
					return errSessionEnded
				}
				a.transition(ctx, StateActivated)

			case backend.EventInterrupted:
				// Barge-in: the user spoke over the model and the server
				// dropped the rest of the turn. Reopen the mic gate.
				logger.Debug("turn interrupted by user")
				a.transition(ctx, StateActivated)

			case backend.EventToolCall:
				status := "ok"
				if err := handle.Ack(ctx, ev.Tool, map[string]any{"output": "ok"}); err != nil {
					status = "error"
					logger.Warn("tool ack failed", "tool", ev.Tool.Name, "error", err)
				}
				a.metrics.RecordToolCall(ctx, ev.Tool.Name, status)

				if ev.Tool.Name == endSessionTool {
					logger.Info("model requested session end")
					endRequested = true
				} else {
					logger.Warn("unsupported tool call", "tool", ev.Tool.Name)
				}
			}
		}
	}
}

// watchdog ends the session after InactivityTimeout of silence. Inactivity
// only accrues while activated; a model holding the floor is never cut off.
func (a *Assistant) watchdog(ctx context.Context) error {
	if a.cfg.InactivityTimeout <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if a.currentState() != StateActivated {
				continue
			}
			last := time.Unix(0, a.lastActivity.Load())
			if time.Since(last) > a.cfg.InactivityTimeout {
				return errSessionTimeout
			}
		}
	}
}

// resetSessionState clears DSP and detector state so nothing leaks into the
// next conversation.
func (a *Assistant) resetSessionState() {
	for _, r := range a.resetters {
		r.Reset()
	}
	if a.detector != nil {
		a.detector.Reset()
	}
}

func (a *Assistant) currentState() State {
	return State(a.state.Load())
}

// transition swaps the state, notifying the visualizer and metrics only on
// actual change.
func (a *Assistant) transition(ctx context.Context, to State) {
	from := State(a.state.Swap(int32(to)))
	if from == to {
		return
	}
	a.notifier.Notify(to.String())
	a.metrics.RecordStateTransition(ctx, from.String(), to.String())
	a.logger.Debug("state transition", "from", from.String(), "to", to.String())
}

// touch records session activity (forwarded user audio, turn completion)
// for the inactivity watchdog.
func (a *Assistant) touch() {
	a.lastActivity.Store(time.Now().UnixNano())
}

// flushFrameMetrics records pulled frames and any new bus drops.
func (a *Assistant) flushFrameMetrics(ctx context.Context, pulled int) {
	if pulled > 0 {
		a.metrics.FramesCaptured.Add(ctx, int64(pulled))
	}
	if d := a.bus.Dropped(); d > a.dropsSeen {
		a.metrics.FramesDropped.Add(ctx, int64(d-a.dropsSeen))
		a.dropsSeen = d
	}
}

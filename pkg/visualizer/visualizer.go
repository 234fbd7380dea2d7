// Package visualizer decouples the engine from state-display concerns. The
// engine reports turn-taking state changes through a Notifier; what happens
// with them (LEDs, a TUI, nothing) is the implementation's business.
package visualizer

import (
	"fmt"
	"log/slog"
)

// Notifier receives turn-taking state changes. Implementations must not
// block; notifications happen on the session loop.
type Notifier interface {
	Notify(state string)
}

// Variant names a built-in Notifier implementation.
type Variant string

const (
	// VariantDefault logs state changes at info level.
	VariantDefault Variant = "default"

	// VariantAlternate logs state changes with an uppercase banner, useful
	// when the log stream doubles as the only display.
	VariantAlternate Variant = "alternate"

	// VariantNone discards all notifications.
	VariantNone Variant = "none"
)

// New returns the Notifier for the given variant. Unknown variants fall back
// to VariantNone.
func New(v Variant, logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	switch v {
	case VariantDefault:
		return &logNotifier{logger: logger}
	case VariantAlternate:
		return &bannerNotifier{logger: logger}
	default:
		return noopNotifier{}
	}
}

type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) Notify(state string) {
	n.logger.Info("state changed", "state", state)
}

type bannerNotifier struct {
	logger *slog.Logger
}

func (n *bannerNotifier) Notify(state string) {
	n.logger.Info(fmt.Sprintf("=== %s ===", state))
}

type noopNotifier struct{}

func (noopNotifier) Notify(string) {}

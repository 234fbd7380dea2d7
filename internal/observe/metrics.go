// Package observe provides application-wide observability primitives for
// Gemipi: OpenTelemetry metrics and structured-logging setup.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Gemipi metrics.
const meterName = "github.com/LasseHartmann/Gemipi"

// Metrics holds all OpenTelemetry metric instruments for the engine.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Counters ---

	// FramesCaptured counts microphone frames delivered to the session
	// loop.
	FramesCaptured metric.Int64Counter

	// FramesDropped counts capture frames discarded because the hand-off
	// buffer was full.
	FramesDropped metric.Int64Counter

	// StateTransitions counts turn-taking state changes. Use with
	// attributes: attribute.String("from", ...), attribute.String("to", ...)
	StateTransitions metric.Int64Counter

	// ToolCalls counts tool invocations from the backend. Use with
	// attributes: attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// BackendErrors counts backend failures. Use with attribute:
	//   attribute.String("backend", ...)
	BackendErrors metric.Int64Counter

	// AECGuardActivations counts echo-canceller numerical-guard resets.
	AECGuardActivations metric.Int64Counter

	// --- Histograms ---

	// SessionDuration tracks the wall-clock length of conversation
	// sessions.
	SessionDuration metric.Float64Histogram

	// --- Gauges ---

	// ActiveSessions tracks the number of live conversation sessions
	// (0 or 1 in single-assistant deployments).
	ActiveSessions metric.Int64UpDownCounter
}

// sessionBuckets defines histogram bucket boundaries (in seconds) sized for
// voice conversations.
var sessionBuckets = []float64{
	1, 5, 15, 30, 60, 120, 300, 600, 1800,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.FramesCaptured, err = m.Int64Counter("gemipi.audio.frames_captured",
		metric.WithDescription("Total microphone frames delivered to the session loop."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("gemipi.audio.frames_dropped",
		metric.WithDescription("Total capture frames discarded due to buffer overflow."),
	); err != nil {
		return nil, err
	}
	if met.StateTransitions, err = m.Int64Counter("gemipi.state.transitions",
		metric.WithDescription("Total turn-taking state transitions by from and to state."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("gemipi.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.BackendErrors, err = m.Int64Counter("gemipi.backend.errors",
		metric.WithDescription("Total backend failures by backend name."),
	); err != nil {
		return nil, err
	}
	if met.AECGuardActivations, err = m.Int64Counter("gemipi.aec.guard_activations",
		metric.WithDescription("Total echo-canceller numerical-guard resets."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.SessionDuration, err = m.Float64Histogram("gemipi.session.duration",
		metric.WithDescription("Wall-clock length of conversation sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("gemipi.active_sessions",
		metric.WithDescription("Number of live conversation sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordStateTransition records one turn-taking state change with the
// standard attribute set.
func (m *Metrics) RecordStateTransition(ctx context.Context, from, to string) {
	m.StateTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}

// RecordToolCall records a tool call counter increment with the standard
// attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordBackendError records a backend error counter increment.
func (m *Metrics) RecordBackendError(ctx context.Context, backendName string) {
	m.BackendErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("backend", backendName)),
	)
}

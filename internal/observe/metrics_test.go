package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestFrameCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FramesCaptured.Add(ctx, 10)
	m.FramesDropped.Add(ctx, 2)

	rm := collect(t, reader)

	captured := findMetric(rm, "gemipi.audio.frames_captured")
	if captured == nil {
		t.Fatal("frames_captured not found")
	}
	sum, ok := captured.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		t.Fatalf("frames_captured has unexpected data: %+v", captured.Data)
	}
	if got := sum.DataPoints[0].Value; got != 10 {
		t.Errorf("frames_captured = %d, want 10", got)
	}

	dropped := findMetric(rm, "gemipi.audio.frames_dropped")
	if dropped == nil {
		t.Fatal("frames_dropped not found")
	}
}

func TestRecordStateTransition_AttributeSets(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStateTransition(ctx, "listening", "activated")
	m.RecordStateTransition(ctx, "listening", "activated")
	m.RecordStateTransition(ctx, "activated", "responding")

	rm := collect(t, reader)
	met := findMetric(rm, "gemipi.state.transitions")
	if met == nil {
		t.Fatal("state.transitions not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("state.transitions is not a sum: %+v", met.Data)
	}
	// Two distinct attribute sets.
	if len(sum.DataPoints) != 2 {
		t.Fatalf("data points = %d, want 2", len(sum.DataPoints))
	}
	for _, dp := range sum.DataPoints {
		to, _ := dp.Attributes.Value(attribute.Key("to"))
		switch to.AsString() {
		case "activated":
			if dp.Value != 2 {
				t.Errorf("listening→activated count = %d, want 2", dp.Value)
			}
		case "responding":
			if dp.Value != 1 {
				t.Errorf("activated→responding count = %d, want 1", dp.Value)
			}
		default:
			t.Errorf("unexpected attribute set: %v", dp.Attributes)
		}
	}
}

func TestSessionDurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SessionDuration.Record(ctx, 12.5)
	m.SessionDuration.Record(ctx, 90)

	rm := collect(t, reader)
	met := findMetric(rm, "gemipi.session.duration")
	if met == nil {
		t.Fatal("session.duration not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 {
		t.Fatalf("session.duration has unexpected data: %+v", met.Data)
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}

func TestRecordToolCallAndBackendError(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolCall(ctx, "end_session", "ok")
	m.RecordBackendError(ctx, "gemini")

	rm := collect(t, reader)
	if findMetric(rm, "gemipi.tool.calls") == nil {
		t.Error("tool.calls not found")
	}
	if findMetric(rm, "gemipi.backend.errors") == nil {
		t.Error("backend.errors not found")
	}
}

func TestActiveSessionsUpDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)
	m.ActiveSessions.Add(ctx, 1)

	rm := collect(t, reader)
	met := findMetric(rm, "gemipi.active_sessions")
	if met == nil {
		t.Fatal("active_sessions not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		t.Fatalf("active_sessions has unexpected data: %+v", met.Data)
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("active_sessions = %d, want 1", got)
	}
}

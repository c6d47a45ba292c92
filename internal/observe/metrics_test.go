package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	t.Parallel()

	mp := sdkmetric.NewMeterProvider()
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	if m.TranslateDuration == nil || m.SynthesisDuration == nil ||
		m.PlaybackDuration == nil || m.JobDuration == nil ||
		m.Utterances == nil || m.JobErrors == nil || m.DroppedFrames == nil ||
		m.ActiveSessions == nil || m.InflightJobs == nil ||
		m.HTTPRequestDuration == nil {
		t.Error("NewMetrics left an instrument nil")
	}
}

func TestMetricsRecordThroughReader(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.RecordUtterance(ctx, "dispatched")
	m.RecordUtterance(ctx, "duplicate")
	m.RecordJobError(ctx, "translate")
	m.ActiveSessions.Add(ctx, 1)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	found := map[string]bool{}
	for _, scope := range rm.ScopeMetrics {
		for _, metr := range scope.Metrics {
			found[metr.Name] = true
		}
	}
	for _, want := range []string{"voxlate.utterances", "voxlate.job.errors", "voxlate.active_sessions"} {
		if !found[want] {
			t.Errorf("metric %q was not collected", want)
		}
	}
}

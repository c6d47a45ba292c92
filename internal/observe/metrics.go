// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing, and HTTP middleware that ties them
// together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus via [InitProvider], so the standard /metrics endpoint keeps
// working. A package-level default [Metrics] instance is provided for
// convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all voxlate metrics.
const meterName = "github.com/Illakiya-ilios/voxlate"

// Metrics holds every OpenTelemetry instrument the pipeline records into.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per utterance stage ---

	// TranslateDuration tracks translation latency per utterance.
	TranslateDuration metric.Float64Histogram

	// SynthesisDuration tracks speech synthesis latency per utterance.
	SynthesisDuration metric.Float64Histogram

	// PlaybackDuration tracks playback time per utterance.
	PlaybackDuration metric.Float64Histogram

	// JobDuration tracks end-to-end translate+synthesize+play latency.
	JobDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts final transcripts by outcome. Attributes:
	//   attribute.String("outcome", "dispatched"|"duplicate"|"blank")
	Utterances metric.Int64Counter

	// JobErrors counts failed translation jobs. Attributes:
	//   attribute.String("stage", "translate"|"synthesize"|"play")
	JobErrors metric.Int64Counter

	// DroppedFrames counts capture frames discarded because the queue was
	// full.
	DroppedFrames metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks live capture+recognition sessions (0 or 1).
	ActiveSessions metric.Int64UpDownCounter

	// InflightJobs tracks translation jobs currently running.
	InflightJobs metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// speech pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] using the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranslateDuration, err = m.Float64Histogram("voxlate.translate.duration",
		metric.WithDescription("Latency of text translation per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("voxlate.synthesis.duration",
		metric.WithDescription("Latency of speech synthesis per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("voxlate.playback.duration",
		metric.WithDescription("Playback time per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.JobDuration, err = m.Float64Histogram("voxlate.job.duration",
		metric.WithDescription("End-to-end translate, synthesize and play latency per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Utterances, err = m.Int64Counter("voxlate.utterances",
		metric.WithDescription("Final transcripts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.JobErrors, err = m.Int64Counter("voxlate.job.errors",
		metric.WithDescription("Failed translation jobs by stage."),
	); err != nil {
		return nil, err
	}
	if met.DroppedFrames, err = m.Int64Counter("voxlate.capture.dropped_frames",
		metric.WithDescription("Capture frames discarded because the frame queue was full."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("voxlate.active_sessions",
		metric.WithDescription("Live capture and recognition sessions."),
	); err != nil {
		return nil, err
	}
	if met.InflightJobs, err = m.Int64UpDownCounter("voxlate.inflight_jobs",
		metric.WithDescription("Translation jobs currently running."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voxlate.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], creating it on first
// call from the global meter provider. Panics if instrument creation fails,
// which cannot happen with the global provider.
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

// RecordUtterance increments the utterance counter with the given outcome
// ("dispatched", "duplicate", "blank").
func (m *Metrics) RecordUtterance(ctx context.Context, outcome string) {
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordJobError increments the job error counter for the failed stage.
func (m *Metrics) RecordJobError(ctx context.Context, stage string) {
	m.JobErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordStage writes elapsed seconds into the given stage histogram.
func RecordStage(ctx context.Context, h metric.Float64Histogram, start time.Time) {
	h.Record(ctx, time.Since(start).Seconds())
}

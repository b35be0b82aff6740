package voice

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// meterName is the instrumentation scope for voice metrics.
const meterName = "github.com/QuocLam98/aiknvm-client/internal/voice"

// Metrics holds the OpenTelemetry instruments of the voice manager. A nil
// *Metrics records nothing.
type Metrics struct {
	// SynthesisRequests counts synthesis calls. Attribute: status.
	SynthesisRequests metric.Int64Counter

	// SynthesisDuration tracks synthesis latency in seconds.
	SynthesisDuration metric.Float64Histogram

	// CacheHits counts voices served from the message cache.
	CacheHits metric.Int64Counter

	// PlaybackAttempts counts start attempts. Attributes: stage, result.
	PlaybackAttempts metric.Int64Counter
}

func tracer() trace.Tracer { return otel.Tracer(meterName) }

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

var synthesisBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16}

// NewMetrics creates the instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SynthesisRequests, err = m.Int64Counter("aiknvm.voice.synthesis.requests",
		metric.WithDescription("Voice synthesis calls by outcome."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("aiknvm.voice.synthesis.duration",
		metric.WithDescription("Latency of voice synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(synthesisBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CacheHits, err = m.Int64Counter("aiknvm.voice.cache.hits",
		metric.WithDescription("Voices served from the message cache."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackAttempts, err = m.Int64Counter("aiknvm.voice.playback.attempts",
		metric.WithDescription("Playback start attempts by stage and result."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns instruments bound to the global meter provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err == nil {
			defaultMetrics = m
		}
	})
	return defaultMetrics
}

func (m *Metrics) synthesis(ctx context.Context, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SynthesisRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.SynthesisDuration.Record(ctx, d.Seconds())
}

func (m *Metrics) cacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.CacheHits.Add(ctx, 1)
}

func (m *Metrics) playback(ctx context.Context, stage string, err error) {
	if m == nil {
		return
	}
	m.PlaybackAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("result", result(err)),
	))
}

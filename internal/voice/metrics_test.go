package voice

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/QuocLam98/aiknvm-client/internal/audio"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumWhere(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s is %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if key == "" {
			total += dp.Value
			continue
		}
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	met, err := NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}

	b := audio.NewMockBackend()
	m := New(b, nil, nil, Options{Metrics: met, TempDir: t.TempDir()})
	ctx := context.Background()

	synth := func(context.Context, string, string) (string, error) { return "http://voice/a.mp3", nil }
	failing := func(context.Context, string, string) (string, error) { return "", errors.New("down") }

	_, _ = m.GetOrCreateVoice(ctx, "m1", "hi", synth)
	_, _ = m.GetOrCreateVoice(ctx, "m1", "hi", synth)
	_, _ = m.GetOrCreateVoice(ctx, "m2", "hi", failing)
	m.PlayVoice(ctx, "http://voice/a.mp3")

	got := collect(t, reader)

	if n := sumWhere(t, got["aiknvm.voice.cache.hits"], "", ""); n != 1 {
		t.Errorf("cache hits = %d, want 1", n)
	}
	if n := sumWhere(t, got["aiknvm.voice.synthesis.requests"], "status", "ok"); n != 1 {
		t.Errorf("ok synthesis = %d, want 1", n)
	}
	if n := sumWhere(t, got["aiknvm.voice.synthesis.requests"], "status", "error"); n != 1 {
		t.Errorf("failed synthesis = %d, want 1", n)
	}
	if n := sumWhere(t, got["aiknvm.voice.playback.attempts"], "stage", stageDirect); n != 1 {
		t.Errorf("direct attempts = %d, want 1", n)
	}
	if _, ok := got["aiknvm.voice.synthesis.duration"]; !ok {
		t.Error("synthesis duration not recorded")
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.cacheHit(ctx)
	m.synthesis(ctx, 0, nil)
	m.playback(ctx, stageDirect, ErrStalled)
}

func TestResultLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrStalled, "stalled"},
		{ErrSuperseded, "superseded"},
		{ErrInterrupted, "interrupted"},
		{context.Canceled, "canceled"},
		{&FetchError{URL: "u", StatusCode: 404}, "fetch_error"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		if got := result(tt.err); got != tt.want {
			t.Errorf("result(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

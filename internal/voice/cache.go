package voice

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GetOrCreateVoice returns the audio URL for messageID, calling synth only
// if no URL is cached yet. Concurrent calls for the same uncached message
// share one synth call; the shared call is detached from any single
// caller's cancellation and each caller stops waiting when its own ctx is
// done. Synth errors are returned unchanged and nothing is cached.
func (m *Manager) GetOrCreateVoice(ctx context.Context, messageID, plainText string, synth Synthesizer) (string, error) {
	if messageID == "" {
		return "", ErrEmptyMessageID
	}
	if url, ok := m.cached(messageID); ok {
		m.metrics.cacheHit(ctx)
		return url, nil
	}
	if synth == nil {
		return "", ErrNoSynthesizer
	}

	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(messageID, func() (any, error) {
		return m.synthesize(shared, messageID, plainText, synth)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// synthesize runs one synthesis for messageID and caches its URL.
func (m *Manager) synthesize(ctx context.Context, messageID, plainText string, synth Synthesizer) (string, error) {
	if url, ok := m.cached(messageID); ok {
		return url, nil
	}

	m.beginLoading()
	defer m.endLoading()

	ctx, span := tracer().Start(ctx, "voice.synthesize",
		trace.WithAttributes(attribute.String("message.id", messageID)))
	start := time.Now()
	url, err := synth(ctx, plainText, messageID)
	m.metrics.synthesis(ctx, time.Since(start), err)
	endSpan(span, err)
	if err != nil {
		m.logger.Debug("Voice synthesis failed", "message", messageID, "err", err)
		return "", err
	}

	m.mu.Lock()
	if existing, ok := m.cache[messageID]; ok {
		url = existing
	} else {
		m.cache[messageID] = url
	}
	m.mu.Unlock()

	m.logger.Debug("Voice cached", "message", messageID, "url", url)
	return url, nil
}

// CachedVoice returns the cached audio URL for messageID, if any.
func (m *Manager) CachedVoice(messageID string) (string, bool) {
	return m.cached(messageID)
}

func (m *Manager) cached(messageID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	url, ok := m.cache[messageID]
	return url, ok
}

func (m *Manager) beginLoading() {
	if m.loading.Add(1) == 1 {
		m.notify()
	}
}

func (m *Manager) endLoading() {
	if m.loading.Add(-1) == 0 {
		m.notify()
	}
}

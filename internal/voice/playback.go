package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/QuocLam98/aiknvm-client/internal/audio"
)

const (
	stageDirect   = "direct"
	stageFallback = "fallback"
)

// session is one active playback. handle is set once Open returns and only
// while the session is still active.
type session struct {
	token     uint64
	handle    audio.Handle
	objectURL string
	signals   chan signal
	done      chan struct{}
	doneOnce  sync.Once
}

type signal struct {
	ev  audio.Event
	err error
}

func (s *session) close() {
	s.doneOnce.Do(func() { close(s.done) })
}

// PrimePlayback asks the backend to start bringing up the output device.
// It never blocks and never fails.
func (m *Manager) PrimePlayback() {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Debug("Playback priming panicked", "panic", r)
		}
	}()
	if err := m.backend.Prime(); err != nil {
		m.logger.Debug("Playback priming failed", "err", err)
	}
}

// StopVoice stops and releases the active playback, if any. Events and
// start waits of earlier attempts become inert. It is safe to call at any
// time.
func (m *Manager) StopVoice() {
	m.reset()
}

// reset tears down the active session and returns the new epoch.
func (m *Manager) reset() uint64 {
	m.mu.Lock()
	m.epoch++
	epoch := m.epoch
	prev := m.active
	m.active = nil
	changed := m.storePlayingLocked(false)
	m.mu.Unlock()

	if prev != nil {
		m.teardown(prev)
	}
	if changed {
		m.notify()
	}
	return epoch
}

// release tears down the active session if epoch is still current.
func (m *Manager) release(epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	prev := m.active
	m.active = nil
	changed := m.storePlayingLocked(false)
	m.mu.Unlock()

	if prev != nil {
		m.teardown(prev)
	}
	if changed {
		m.notify()
	}
}

// PlayVoice replaces any current playback with url. It first streams url
// directly and, if that does not start, downloads it and plays the local
// copy. It reports whether playback started.
func (m *Manager) PlayVoice(ctx context.Context, url string) bool {
	epoch := m.reset()
	if url == "" {
		m.logger.Debug("No voice URL to play")
		return false
	}

	ctx, span := tracer().Start(ctx, "voice.play")
	defer span.End()

	err := m.attempt(ctx, epoch, url, "", m.opts.GuardDelay, m.opts.StartTimeout)
	m.metrics.playback(ctx, stageDirect, err)
	span.AddEvent("direct", trace.WithAttributes(attribute.String("result", result(err))))
	if err == nil {
		return true
	}
	if terminal(err) {
		m.logger.Debug("Voice playback abandoned", "url", url, "err", err)
		m.release(epoch)
		return false
	}

	m.logger.Debug("Direct voice playback failed, trying download", "url", url, "err", err)
	m.release(epoch)

	objectURL, err := m.fetchBlob(ctx, url)
	if err != nil {
		m.metrics.playback(ctx, stageFallback, err)
		m.logger.Error("Voice download failed", "url", url, "err", err)
		m.release(epoch)
		return false
	}

	err = m.attempt(ctx, epoch, objectURL, objectURL, m.opts.FallbackGuardDelay, m.opts.FallbackStartTimeout)
	m.metrics.playback(ctx, stageFallback, err)
	span.AddEvent("fallback", trace.WithAttributes(attribute.String("result", result(err))))
	if err != nil {
		if terminal(err) {
			m.logger.Debug("Voice playback abandoned", "url", url, "err", err)
		} else {
			m.logger.Error("Voice playback failed", "url", url, "err", err)
		}
		m.release(epoch)
		return false
	}
	return true
}

// attempt opens src as the active session and waits for it to start.
// objectURL, if set, is owned by the session and removed on teardown.
func (m *Manager) attempt(ctx context.Context, epoch uint64, src, objectURL string, guard, hard time.Duration) error {
	s := &session{
		objectURL: objectURL,
		signals:   make(chan signal, 8),
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.teardown(s)
		return ErrSuperseded
	}
	m.nextTok++
	s.token = m.nextTok
	m.active = s
	m.mu.Unlock()

	h, err := m.backend.Open(src, func(ev audio.Event, err error) {
		m.onEvent(s, ev, err)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlaybackError, err)
	}

	m.mu.Lock()
	if m.active != s {
		m.mu.Unlock()
		m.teardown(&session{handle: h, done: make(chan struct{})})
		return ErrSuperseded
	}
	s.handle = h
	m.mu.Unlock()

	h.Play()
	return m.awaitStart(ctx, s, guard, hard)
}

// onEvent applies a handle event if it belongs to the active session.
func (m *Manager) onEvent(s *session, ev audio.Event, err error) {
	m.mu.Lock()
	if m.active == nil || m.active.token != s.token {
		m.mu.Unlock()
		m.logger.Debug("Ignoring stale playback event", "event", ev)
		return
	}
	changed := m.storePlayingLocked(ev == audio.EventPlay)
	m.mu.Unlock()

	if ev == audio.EventEnd && err != nil {
		m.logger.Warn("Voice playback ended early", "err", err)
	}
	if changed {
		m.notify()
	}
	select {
	case s.signals <- signal{ev: ev, err: err}:
	default:
	}
}

// awaitStart waits until s starts, fails or is superseded. After guard an
// already audible handle counts as started; after hard a silent one counts
// as stalled.
func (m *Manager) awaitStart(ctx context.Context, s *session, guard, hard time.Duration) error {
	guardTimer := time.NewTimer(guard)
	defer guardTimer.Stop()
	hardTimer := time.NewTimer(hard)
	defer hardTimer.Stop()

	for {
		select {
		case sig := <-s.signals:
			switch sig.ev {
			case audio.EventPlay, audio.EventEnd:
				return nil
			case audio.EventPlayError:
				return fmt.Errorf("%w: %v", ErrPlaybackError, sig.err)
			case audio.EventStop, audio.EventPause:
				return ErrInterrupted
			}
		case <-guardTimer.C:
			if s.handle.Playing() {
				m.markPlaying(s)
				return nil
			}
		case <-hardTimer.C:
			if s.handle.Playing() {
				m.markPlaying(s)
				return nil
			}
			return ErrStalled
		case <-s.done:
			return ErrSuperseded
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// markPlaying sets the playing flag for a handle that became audible
// without reporting it.
func (m *Manager) markPlaying(s *session) {
	m.mu.Lock()
	if m.active != s {
		m.mu.Unlock()
		return
	}
	changed := m.storePlayingLocked(true)
	m.mu.Unlock()
	if changed {
		m.notify()
	}
}

// teardown releases every resource of s. Each step is isolated so one
// failure does not skip the others.
func (m *Manager) teardown(s *session) {
	s.close()
	if s.handle != nil {
		m.bestEffort("stop", s.handle.Stop)
		m.bestEffort("unload", s.handle.Unload)
	}
	if s.objectURL != "" {
		m.bestEffort("revoke", func() error { return revokeObjectURL(s.objectURL) })
	}
}

func (m *Manager) bestEffort(step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Debug("Playback teardown panicked", "step", step, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		m.logger.Debug("Playback teardown failed", "step", step, "err", err)
	}
}

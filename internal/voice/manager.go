// Package voice manages spoken playback of bot replies: a per-message cache
// of synthesized audio URLs, a single active playback session with a direct
// stream attempt and a downloaded blob fallback, output device priming and
// the persisted enable/disable preference.
package voice

import (
	"context"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/QuocLam98/aiknvm-client/internal/audio"
	"github.com/QuocLam98/aiknvm-client/internal/registry"
)

// Synthesizer turns message text into a playable audio URL.
type Synthesizer func(ctx context.Context, plainText, messageID string) (string, error)

// Preferences persists the voice playback toggle.
type Preferences interface {
	EnableVoicePlayback() bool
	SetEnableVoicePlayback(enabled bool) error
}

// Flags is a snapshot of the observable playback state.
type Flags struct {
	Playing             bool
	LoadingVoice        bool
	EnableVoicePlayback bool
}

// Options tunes the manager. Zero durations use the defaults.
type Options struct {
	// GuardDelay is the short wait after which an already audible direct
	// stream counts as started.
	GuardDelay time.Duration

	// StartTimeout bounds how long the direct stream may take to start.
	StartTimeout time.Duration

	// FallbackGuardDelay and FallbackStartTimeout apply to the blob fallback.
	FallbackGuardDelay   time.Duration
	FallbackStartTimeout time.Duration

	// TempDir holds downloaded fallback audio. Empty uses os.TempDir.
	TempDir string

	HTTPClient *http.Client
	Logger     *log.Logger
	Metrics    *Metrics

	// OnChange is called after any flag changes. It must not block.
	OnChange func(Flags)
}

// DefaultOptions returns the default start timings.
func DefaultOptions() Options {
	return Options{
		GuardDelay:           50 * time.Millisecond,
		StartTimeout:         1200 * time.Millisecond,
		FallbackGuardDelay:   30 * time.Millisecond,
		FallbackStartTimeout: 1200 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.GuardDelay <= 0 {
		o.GuardDelay = d.GuardDelay
	}
	if o.StartTimeout <= 0 {
		o.StartTimeout = d.StartTimeout
	}
	if o.FallbackGuardDelay <= 0 {
		o.FallbackGuardDelay = d.FallbackGuardDelay
	}
	if o.FallbackStartTimeout <= 0 {
		o.FallbackStartTimeout = d.FallbackStartTimeout
	}
	if o.TempDir == "" {
		o.TempDir = os.TempDir()
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Manager is the voice playback manager. It is safe for concurrent use.
type Manager struct {
	// Components
	backend audio.Backend
	bots    *registry.Registry
	prefs   Preferences
	opts    Options
	logger  *log.Logger
	metrics *Metrics

	// Cache, session and epoch
	mu      sync.Mutex
	cache   map[string]string
	epoch   uint64
	nextTok uint64
	active  *session
	changed chan struct{}

	group    singleflight.Group
	toggleMu sync.Mutex

	// Flags
	loading atomic.Int32
	playing atomic.Bool
	enabled atomic.Bool
}

// New creates a manager playing through backend. bots and prefs may be nil;
// without prefs the toggle is kept in memory only.
func New(backend audio.Backend, bots *registry.Registry, prefs Preferences, opts Options) *Manager {
	opts = opts.withDefaults()
	m := &Manager{
		backend: backend,
		bots:    bots,
		prefs:   prefs,
		opts:    opts,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		cache:   map[string]string{},
		changed: make(chan struct{}),
	}
	m.enabled.Store(prefs == nil || prefs.EnableVoicePlayback())
	return m
}

// IsVoiceBot reports whether replies from botID may be spoken.
func (m *Manager) IsVoiceBot(botID string) bool {
	return m.bots.IsVoiceBot(botID)
}

// Flags returns the current playback flags.
func (m *Manager) Flags() Flags {
	return Flags{
		Playing:             m.playing.Load(),
		LoadingVoice:        m.loading.Load() > 0,
		EnableVoicePlayback: m.enabled.Load(),
	}
}

// IsPlaying reports whether audio is audibly playing.
func (m *Manager) IsPlaying() bool { return m.playing.Load() }

// IsLoadingVoice reports whether any synthesis is in flight.
func (m *Manager) IsLoadingVoice() bool { return m.loading.Load() > 0 }

// EnableVoicePlayback reports whether voice playback is enabled.
func (m *Manager) EnableVoicePlayback() bool { return m.enabled.Load() }

// ToggleVoicePlayback flips the preference and persists it. The new value
// is returned even when persisting fails.
func (m *Manager) ToggleVoicePlayback() (bool, error) {
	m.toggleMu.Lock()
	defer m.toggleMu.Unlock()

	v := !m.enabled.Load()
	m.enabled.Store(v)
	m.notify()

	if m.prefs == nil {
		return v, nil
	}
	if err := m.prefs.SetEnableVoicePlayback(v); err != nil {
		m.logger.Warn("Unable to persist voice preference", "enabled", v, "err", err)
		return v, err
	}
	return v, nil
}

// SyncPreference reloads the toggle from the preference store, for example
// after the store changed on disk.
func (m *Manager) SyncPreference() {
	if m.prefs == nil {
		return
	}
	m.toggleMu.Lock()
	v := m.prefs.EnableVoicePlayback()
	old := m.enabled.Swap(v)
	m.toggleMu.Unlock()
	if old != v {
		m.logger.Debug("Voice preference changed", "enabled", v)
		m.notify()
	}
}

// Speak synthesizes and plays one message if playback is enabled and botID
// is voice-eligible. It reports whether playback started.
func (m *Manager) Speak(ctx context.Context, botID, messageID, plainText string, synth Synthesizer) (bool, error) {
	if !m.enabled.Load() || !m.IsVoiceBot(botID) {
		return false, nil
	}
	m.PrimePlayback()
	url, err := m.GetOrCreateVoice(ctx, messageID, plainText, synth)
	if err != nil {
		return false, err
	}
	return m.PlayVoice(ctx, url), nil
}

// WaitIdle blocks until nothing is playing or ctx is done.
func (m *Manager) WaitIdle(ctx context.Context) error {
	for {
		m.mu.Lock()
		ch := m.changed
		playing := m.playing.Load()
		m.mu.Unlock()
		if !playing {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// notify wakes waiters and reports the flags to OnChange. It must be called
// without m.mu held.
func (m *Manager) notify() {
	m.mu.Lock()
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()

	if m.opts.OnChange != nil {
		m.opts.OnChange(m.Flags())
	}
}

// storePlayingLocked sets the playing flag and reports whether it changed.
func (m *Manager) storePlayingLocked(v bool) bool {
	return m.playing.Swap(v) != v
}

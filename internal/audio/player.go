//go:build !nocgo
// +build !nocgo

package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// OtoBackend plays decoded PCM through oto/v3. The oto context is created
// once per process and reused by every handle.
type OtoBackend struct {
	cfg    Config
	logger *log.Logger

	once  sync.Once
	ready chan struct{}
	ctx   *oto.Context
	err   error
}

// NewOtoBackend creates a backend. The output device is opened lazily, on
// Prime or on the first playback.
func NewOtoBackend(cfg Config) (*OtoBackend, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Decoder == nil {
		cfg.Decoder = FFmpegDecoder{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &OtoBackend{cfg: cfg, logger: logger, ready: make(chan struct{})}, nil
}

// start begins context creation exactly once.
func (b *OtoBackend) start() {
	b.once.Do(func() {
		go func() {
			defer close(b.ready)
			started := time.Now()
			ctx, readyChan, err := oto.NewContext(&oto.NewContextOptions{
				SampleRate:   b.cfg.SampleRate,
				ChannelCount: b.cfg.Channels,
				Format:       oto.FormatSignedInt16LE,
				BufferSize:   b.cfg.BufferSize,
			})
			if err != nil {
				b.err = fmt.Errorf("failed to create audio context: %w", err)
				return
			}
			// Wait for context to be ready
			<-readyChan
			b.ctx = ctx
			b.logger.Debug("Audio context ready", "sampleRate", b.cfg.SampleRate, "took", time.Since(started))
		}()
	})
}

// context waits for the oto context.
func (b *OtoBackend) context(ctx context.Context) (*oto.Context, error) {
	b.start()
	select {
	case <-b.ready:
		return b.ctx, b.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Prime implements Backend.
func (b *OtoBackend) Prime() error {
	b.start()
	select {
	case <-b.ready:
		return b.err
	default:
		return nil
	}
}

// Open implements Backend.
func (b *OtoBackend) Open(src string, l Listener) (Handle, error) {
	if src == "" {
		return nil, errors.New("empty audio source")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &otoHandle{backend: b, src: src, listener: l, ctx: ctx, cancel: cancel}, nil
}

// otoHandle decodes one source and feeds it to an oto player.
type otoHandle struct {
	backend  *OtoBackend
	src      string
	listener Listener

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	player   *oto.Player
	closer   func() error
	started  bool
	stopped  bool
	unloaded bool

	playing  atomic.Bool
	stopOnce sync.Once
}

// Play implements Handle.
func (h *otoHandle) Play() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started || h.stopped {
		return
	}
	h.started = true
	go h.run()
}

func (h *otoHandle) run() {
	octx, err := h.backend.context(h.ctx)
	if err != nil {
		h.fail(err)
		return
	}

	f := Format{SampleRate: h.backend.cfg.SampleRate, Channels: h.backend.cfg.Channels}
	stream, err := h.backend.cfg.Decoder.Decode(h.ctx, h.src, f)
	if err != nil {
		h.fail(err)
		return
	}

	// Wait for the first decoded samples so that a broken source is
	// reported as a play error rather than as instant completion.
	br := bufio.NewReaderSize(stream, 32<<10)
	if _, err := br.Peek(2 * f.Channels); err != nil {
		_ = stream.Close()
		h.fail(fmt.Errorf("no audio decoded from %s: %w", h.src, err))
		return
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		_ = stream.Close()
		return
	}
	p := octx.NewPlayer(br)
	h.player = p
	h.closer = stream.Close
	p.Play()
	h.playing.Store(true)
	h.mu.Unlock()

	h.emit(EventPlay, nil)
	h.monitor(p)
}

// monitor waits for natural completion of p.
func (h *otoHandle) monitor(p *oto.Player) {
	ticker := time.NewTicker(h.backend.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
		}

		h.mu.Lock()
		if h.stopped {
			h.mu.Unlock()
			return
		}
		if p.IsPlaying() {
			h.mu.Unlock()
			continue
		}
		h.playing.Store(false)
		err := p.Err()
		h.mu.Unlock()

		h.emit(EventEnd, err)
		return
	}
}

func (h *otoHandle) fail(err error) {
	h.playing.Store(false)
	h.mu.Lock()
	stopped := h.stopped
	h.mu.Unlock()
	if stopped {
		return
	}
	h.emit(EventPlayError, err)
}

func (h *otoHandle) emit(ev Event, err error) {
	if h.listener != nil {
		h.listener(ev, err)
	}
}

// Playing implements Handle.
func (h *otoHandle) Playing() bool {
	return h.playing.Load()
}

// Stop implements Handle.
func (h *otoHandle) Stop() error {
	h.mu.Lock()
	h.stopped = true
	if h.player != nil {
		h.player.Pause()
	}
	h.playing.Store(false)
	started := h.started
	h.mu.Unlock()

	if started {
		h.stopOnce.Do(func() { h.emit(EventStop, nil) })
	}
	return nil
}

// Unload implements Handle.
func (h *otoHandle) Unload() error {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return nil
	}
	h.unloaded = true
	h.stopped = true
	h.playing.Store(false)

	var errs []error
	if h.player != nil {
		h.player.Pause()
		if err := h.player.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close player: %w", err))
		}
		h.player = nil
	}
	if h.closer != nil {
		if err := h.closer(); err != nil {
			errs = append(errs, fmt.Errorf("close decoder: %w", err))
		}
		h.closer = nil
	}
	return errors.Join(errs...)
}

package audio

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// MockMode selects how a mock handle reacts to Play.
type MockMode int

const (
	// MockStart emits EventPlay after the configured delay.
	MockStart MockMode = iota
	// MockFail emits EventPlayError after the configured delay.
	MockFail
	// MockStall never starts and never reports anything.
	MockStall
	// MockSilentStart becomes audible after the delay without emitting
	// EventPlay.
	MockSilentStart
)

// ErrMockPlay is the error carried by EventPlayError from MockFail handles.
var ErrMockPlay = errors.New("simulated playback error")

// MockBackend implements Backend for testing. It produces no sound.
type MockBackend struct {
	mu        sync.Mutex
	modes     map[string]MockMode
	defMode   MockMode
	delay     time.Duration
	openErr   map[string]error
	stopPanic bool
	primeErr  error
	primes    int
	handles   []*MockHandle
}

// NewMockBackend creates a mock backend whose handles start immediately.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		modes:   map[string]MockMode{},
		openErr: map[string]error{},
	}
}

// SetMode sets the behavior for handles opened on src.
func (b *MockBackend) SetMode(src string, m MockMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modes[src] = m
}

// SetDefaultMode sets the behavior for sources without an explicit mode.
func (b *MockBackend) SetDefaultMode(m MockMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.defMode = m
}

// SetDelay sets how long handles take to react to Play.
func (b *MockBackend) SetDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

// SetOpenError makes Open fail for src.
func (b *MockBackend) SetOpenError(src string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErr[src] = err
}

// SetStopPanic makes Stop on new handles panic.
func (b *MockBackend) SetStopPanic(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopPanic = v
}

// SetPrimeError makes Prime return err.
func (b *MockBackend) SetPrimeError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.primeErr = err
}

// Prime implements Backend.
func (b *MockBackend) Prime() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.primes++
	return b.primeErr
}

// Primes returns the number of Prime calls.
func (b *MockBackend) Primes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.primes
}

// Open implements Backend.
func (b *MockBackend) Open(src string, l Listener) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.openErr[src]; err != nil {
		return nil, err
	}
	mode, ok := b.modes[src]
	if !ok {
		mode = b.defMode
	}
	h := &MockHandle{
		src:       src,
		listener:  l,
		mode:      mode,
		delay:     b.delay,
		stopPanic: b.stopPanic,
		done:      make(chan struct{}),
	}
	b.handles = append(b.handles, h)
	return h, nil
}

// Handles returns every handle opened so far, in order.
func (b *MockBackend) Handles() []*MockHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*MockHandle(nil), b.handles...)
}

// HandlesFor returns the handles whose source has the given prefix.
func (b *MockBackend) HandlesFor(prefix string) []*MockHandle {
	var out []*MockHandle
	for _, h := range b.Handles() {
		if strings.HasPrefix(h.src, prefix) {
			out = append(out, h)
		}
	}
	return out
}

// PlayingCount returns the number of handles currently audible.
func (b *MockBackend) PlayingCount() int {
	n := 0
	for _, h := range b.Handles() {
		if h.Playing() {
			n++
		}
	}
	return n
}

// MockHandle implements Handle for testing.
type MockHandle struct {
	src       string
	listener  Listener
	mode      MockMode
	delay     time.Duration
	stopPanic bool

	mu        sync.Mutex
	playing   bool
	played    bool
	stopped   bool
	unloaded  bool
	playCalls int
	done      chan struct{}
}

// Src returns the source the handle was opened on.
func (h *MockHandle) Src() string { return h.src }

// Play implements Handle.
func (h *MockHandle) Play() {
	h.mu.Lock()
	h.playCalls++
	first := h.playCalls == 1
	h.mu.Unlock()
	if !first {
		return
	}

	go func() {
		if h.delay > 0 {
			select {
			case <-time.After(h.delay):
			case <-h.done:
				return
			}
		}

		h.mu.Lock()
		if h.stopped || h.unloaded {
			h.mu.Unlock()
			return
		}
		switch h.mode {
		case MockStart, MockSilentStart:
			h.playing = true
			h.played = true
		}
		h.mu.Unlock()

		switch h.mode {
		case MockStart:
			h.emit(EventPlay, nil)
		case MockFail:
			h.emit(EventPlayError, ErrMockPlay)
		}
	}()
}

// Finish simulates natural completion.
func (h *MockHandle) Finish() {
	h.mu.Lock()
	if !h.playing {
		h.mu.Unlock()
		return
	}
	h.playing = false
	h.mu.Unlock()
	h.emit(EventEnd, nil)
}

// Pause simulates an external pause.
func (h *MockHandle) Pause() {
	h.mu.Lock()
	if !h.playing {
		h.mu.Unlock()
		return
	}
	h.playing = false
	h.mu.Unlock()
	h.emit(EventPause, nil)
}

// Emit sends an arbitrary event to the listener.
func (h *MockHandle) Emit(ev Event, err error) {
	h.emit(ev, err)
}

func (h *MockHandle) emit(ev Event, err error) {
	if h.listener != nil {
		h.listener(ev, err)
	}
}

// Playing implements Handle.
func (h *MockHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

// Stop implements Handle.
func (h *MockHandle) Stop() error {
	h.mu.Lock()
	wasPlaying := h.playing
	h.playing = false
	h.stopped = true
	h.mu.Unlock()

	if h.stopPanic {
		panic("simulated stop panic")
	}
	if wasPlaying {
		h.emit(EventStop, nil)
	}
	return nil
}

// Unload implements Handle.
func (h *MockHandle) Unload() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return nil
	}
	h.unloaded = true
	h.playing = false
	close(h.done)
	return nil
}

// Stopped reports whether Stop was called.
func (h *MockHandle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Unloaded reports whether Unload was called.
func (h *MockHandle) Unloaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unloaded
}

// Played reports whether the handle ever became audible.
func (h *MockHandle) Played() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.played
}

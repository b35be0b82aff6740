package voice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/QuocLam98/aiknvm-client/internal/audio"
	"github.com/QuocLam98/aiknvm-client/internal/registry"
)

// audioServer serves a fake mp3 body and counts requests.
type audioServer struct {
	*httptest.Server
	hits        atomic.Int32
	accept      atomic.Value
	status      int
	contentType string
}

func newAudioServer(t *testing.T, status int, contentType string) *audioServer {
	t.Helper()
	s := &audioServer{status: status, contentType: contentType}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.accept.Store(r.Header.Get("Accept"))
		if s.contentType != "" {
			w.Header().Set("Content-Type", s.contentType)
		}
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte("ID3-fake-audio"))
	}))
	t.Cleanup(s.Close)
	return s
}

func tempFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestPlayVoiceDirect(t *testing.T) {
	srv := newAudioServer(t, http.StatusOK, "audio/mpeg")
	m, b := newTestManager(t, Options{})
	url := srv.URL + "/a.mp3"

	if !m.PlayVoice(context.Background(), url) {
		t.Fatal("PlayVoice() = false, want true")
	}
	if !m.IsPlaying() {
		t.Error("Playing should be true after start")
	}
	if hs := b.Handles(); len(hs) != 1 || hs[0].Src() != url {
		t.Errorf("expected one direct handle on %s", url)
	}
	if srv.hits.Load() != 0 {
		t.Error("direct success must not download")
	}
}

func TestPlayVoiceSilentStart(t *testing.T) {
	m, b := newTestManager(t, Options{})
	b.SetDefaultMode(audio.MockSilentStart)

	if !m.PlayVoice(context.Background(), "http://voice/a.mp3") {
		t.Fatal("an audible handle at the guard check should count as started")
	}
	if len(b.Handles()) != 1 {
		t.Error("fallback should not run")
	}
	if !m.IsPlaying() {
		t.Error("Playing should be true")
	}
}

func TestPlayVoiceFallback(t *testing.T) {
	tests := []struct {
		name        string
		mode        audio.MockMode
		contentType string
	}{
		{name: "direct play error", mode: audio.MockFail, contentType: "audio/mpeg"},
		{name: "direct stall", mode: audio.MockStall, contentType: "audio/mpeg"},
		{name: "non audio content type", mode: audio.MockFail, contentType: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newAudioServer(t, http.StatusOK, tt.contentType)
			dir := t.TempDir()
			m, b := newTestManager(t, Options{TempDir: dir, StartTimeout: 100 * time.Millisecond})
			url := srv.URL + "/voice/a.mp3"
			b.SetMode(url, tt.mode)

			if !m.PlayVoice(context.Background(), url) {
				t.Fatal("PlayVoice() = false, want fallback success")
			}
			if srv.hits.Load() != 1 {
				t.Errorf("download hits = %d, want 1", srv.hits.Load())
			}
			if got, _ := srv.accept.Load().(string); got != "audio/*" {
				t.Errorf("Accept = %q, want audio/*", got)
			}

			hs := b.Handles()
			if len(hs) != 2 {
				t.Fatalf("handles = %d, want direct and fallback", len(hs))
			}
			if !hs[0].Unloaded() {
				t.Error("direct handle should be unloaded before the fallback")
			}
			if !strings.HasPrefix(hs[1].Src(), dir) || !strings.HasSuffix(hs[1].Src(), ".mp3") {
				t.Errorf("fallback source = %q, want temp mp3 in %s", hs[1].Src(), dir)
			}
			if !m.IsPlaying() {
				t.Error("Playing should be true")
			}
			if files := tempFiles(t, dir); len(files) != 1 {
				t.Errorf("temp files = %v, want one", files)
			}

			m.StopVoice()
			if files := tempFiles(t, dir); len(files) != 0 {
				t.Errorf("temp file not revoked on stop: %v", files)
			}
			if m.IsPlaying() {
				t.Error("Playing should be false after stop")
			}
		})
	}
}

func TestPlayVoiceFallbackFetchFails(t *testing.T) {
	srv := newAudioServer(t, http.StatusNotFound, "text/plain")
	dir := t.TempDir()
	m, b := newTestManager(t, Options{TempDir: dir})
	url := srv.URL + "/missing.mp3"
	b.SetMode(url, audio.MockFail)

	if m.PlayVoice(context.Background(), url) {
		t.Fatal("PlayVoice() = true, want false")
	}
	if m.IsPlaying() {
		t.Error("Playing should be false")
	}
	if len(b.Handles()) != 1 {
		t.Error("no fallback handle should be opened")
	}
	if files := tempFiles(t, dir); len(files) != 0 {
		t.Errorf("unexpected temp files %v", files)
	}
	m.StopVoice()
}

func TestFetchBlobError(t *testing.T) {
	srv := newAudioServer(t, http.StatusBadGateway, "")
	m, _ := newTestManager(t, Options{})

	_, err := m.fetchBlob(context.Background(), srv.URL+"/a.mp3")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fe.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", fe.StatusCode)
	}

	_, err = m.fetchBlob(context.Background(), "http://127.0.0.1:1/a.mp3")
	if !errors.As(err, &fe) || fe.Err == nil {
		t.Errorf("transport error = %v, want *FetchError with cause", err)
	}
}

func TestPlayVoiceBothFail(t *testing.T) {
	srv := newAudioServer(t, http.StatusOK, "audio/mpeg")
	dir := t.TempDir()
	m, b := newTestManager(t, Options{TempDir: dir})
	b.SetDefaultMode(audio.MockFail)

	if m.PlayVoice(context.Background(), srv.URL+"/a.mp3") {
		t.Fatal("PlayVoice() = true, want false")
	}
	if m.IsPlaying() {
		t.Error("Playing should be false")
	}
	for _, h := range b.Handles() {
		if !h.Unloaded() {
			t.Errorf("handle %s not unloaded", h.Src())
		}
	}
	if files := tempFiles(t, dir); len(files) != 0 {
		t.Errorf("temp file not revoked after failure: %v", files)
	}
}

func TestPlayVoiceOpenError(t *testing.T) {
	srv := newAudioServer(t, http.StatusOK, "audio/mpeg")
	m, b := newTestManager(t, Options{})
	url := srv.URL + "/a.mp3"
	b.SetOpenError(url, errors.New("no device"))

	if !m.PlayVoice(context.Background(), url) {
		t.Fatal("open failure should fall back to the download")
	}
}

func TestPlayVoiceEmptyURL(t *testing.T) {
	m, b := newTestManager(t, Options{})
	if m.PlayVoice(context.Background(), "") {
		t.Error("empty url should not play")
	}
	if len(b.Handles()) != 0 {
		t.Error("no handle should be opened")
	}
}

func TestStopVoiceSupersedesPendingPlay(t *testing.T) {
	srv := newAudioServer(t, http.StatusOK, "audio/mpeg")
	m, b := newTestManager(t, Options{StartTimeout: 5 * time.Second})
	b.SetDefaultMode(audio.MockStall)

	result := make(chan bool, 1)
	go func() { result <- m.PlayVoice(context.Background(), srv.URL+"/a.mp3") }()

	waitFor(t, "direct handle", func() bool { return len(b.Handles()) == 1 })
	m.StopVoice()

	select {
	case ok := <-result:
		if ok {
			t.Error("superseded PlayVoice should return false")
		}
	case <-time.After(time.Second):
		t.Fatal("PlayVoice did not return after StopVoice")
	}
	if srv.hits.Load() != 0 {
		t.Error("superseded attempt must not fall back")
	}
	if !b.Handles()[0].Unloaded() {
		t.Error("handle should be unloaded")
	}
}

func TestPlayVoiceReplacesPrevious(t *testing.T) {
	m, b := newTestManager(t, Options{})

	if !m.PlayVoice(context.Background(), "http://voice/a.mp3") {
		t.Fatal("first PlayVoice failed")
	}
	if !m.PlayVoice(context.Background(), "http://voice/b.mp3") {
		t.Fatal("second PlayVoice failed")
	}

	first := b.HandlesFor("http://voice/a.mp3")[0]
	if !first.Stopped() || !first.Unloaded() {
		t.Error("previous handle should be stopped and unloaded")
	}
	if b.PlayingCount() != 1 {
		t.Errorf("PlayingCount() = %d, want 1", b.PlayingCount())
	}

	// Late events from the replaced handle are ignored.
	first.Emit(audio.EventStop, nil)
	first.Emit(audio.EventPlayError, errors.New("late"))
	if !m.IsPlaying() {
		t.Error("stale events must not change Playing")
	}
}

func TestPlayingFollowsHandleEvents(t *testing.T) {
	m, b := newTestManager(t, Options{})
	if !m.PlayVoice(context.Background(), "http://voice/a.mp3") {
		t.Fatal("PlayVoice failed")
	}
	h := b.Handles()[0]

	h.Pause()
	if m.IsPlaying() {
		t.Error("pause should clear Playing")
	}
	h.Emit(audio.EventPlay, nil)
	if !m.IsPlaying() {
		t.Error("play should set Playing")
	}

	done := make(chan error, 1)
	go func() { done <- m.WaitIdle(context.Background()) }()
	h.Emit(audio.EventEnd, nil)
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIdle did not return after the end event")
	}
	if m.IsPlaying() {
		t.Error("end should clear Playing")
	}
}

func TestWaitIdleContext(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	if !m.PlayVoice(context.Background(), "http://voice/a.mp3") {
		t.Fatal("PlayVoice failed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.WaitIdle(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitIdle() = %v, want deadline exceeded", err)
	}
}

func TestStopVoice(t *testing.T) {
	m, b := newTestManager(t, Options{})

	// Nothing active.
	m.StopVoice()
	m.StopVoice()

	b.SetStopPanic(true)
	if !m.PlayVoice(context.Background(), "http://voice/a.mp3") {
		t.Fatal("PlayVoice failed")
	}
	m.StopVoice()
	m.StopVoice()

	h := b.Handles()[0]
	if !h.Unloaded() {
		t.Error("unload must run even when stop panics")
	}
	if m.IsPlaying() {
		t.Error("Playing should be false")
	}
}

func TestPlayVoiceContextCanceled(t *testing.T) {
	srv := newAudioServer(t, http.StatusOK, "audio/mpeg")
	m, b := newTestManager(t, Options{StartTimeout: 5 * time.Second})
	b.SetDefaultMode(audio.MockStall)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if m.PlayVoice(ctx, srv.URL+"/a.mp3") {
		t.Error("canceled PlayVoice should return false")
	}
	if srv.hits.Load() != 0 {
		t.Error("canceled attempt must not fall back")
	}
	if !b.Handles()[0].Unloaded() {
		t.Error("handle should be released")
	}
}

func TestPrimePlayback(t *testing.T) {
	m, b := newTestManager(t, Options{})
	m.PrimePlayback()
	b.SetPrimeError(errors.New("device busy"))
	m.PrimePlayback()
	if b.Primes() != 2 {
		t.Errorf("Primes() = %d, want 2", b.Primes())
	}
}

type memPrefs struct {
	enabled bool
	saves   []bool
	err     error
}

func (p *memPrefs) EnableVoicePlayback() bool { return p.enabled }

func (p *memPrefs) SetEnableVoicePlayback(v bool) error {
	p.saves = append(p.saves, v)
	if p.err != nil {
		return p.err
	}
	p.enabled = v
	return nil
}

func TestToggleVoicePlayback(t *testing.T) {
	p := &memPrefs{enabled: true}
	m := New(audio.NewMockBackend(), nil, p, Options{})

	if !m.EnableVoicePlayback() {
		t.Fatal("should load enabled preference")
	}
	v, err := m.ToggleVoicePlayback()
	if err != nil || v {
		t.Fatalf("toggle = %v, %v; want false, nil", v, err)
	}
	v, err = m.ToggleVoicePlayback()
	if err != nil || !v {
		t.Fatalf("toggle = %v, %v; want true, nil", v, err)
	}
	if len(p.saves) != 2 || p.saves[0] || !p.saves[1] {
		t.Errorf("persisted %v, want [false true]", p.saves)
	}

	p.err = errors.New("read-only")
	v, err = m.ToggleVoicePlayback()
	if err == nil {
		t.Error("expected persistence error")
	}
	if v || m.EnableVoicePlayback() {
		t.Error("in-memory flag should flip even when persisting fails")
	}
}

func TestSyncPreference(t *testing.T) {
	p := &memPrefs{enabled: false}
	m := New(audio.NewMockBackend(), nil, p, Options{})
	if m.EnableVoicePlayback() {
		t.Fatal("should load disabled preference")
	}
	p.enabled = true
	m.SyncPreference()
	if !m.EnableVoicePlayback() {
		t.Error("SyncPreference should pick up the stored value")
	}
}

func TestSpeak(t *testing.T) {
	bots := registry.New([]string{"voice-bot"})
	p := &memPrefs{enabled: true}
	b := audio.NewMockBackend()
	m := New(b, bots, p, Options{TempDir: t.TempDir()})

	synth := func(_ context.Context, _, id string) (string, error) {
		return "http://voice/" + id + ".mp3", nil
	}

	ok, err := m.Speak(context.Background(), "text-bot", "m1", "hi", synth)
	if err != nil || ok {
		t.Errorf("non-voice bot: Speak() = %v, %v", ok, err)
	}

	ok, err = m.Speak(context.Background(), "voice-bot", "m1", "hi", synth)
	if err != nil || !ok {
		t.Fatalf("voice bot: Speak() = %v, %v", ok, err)
	}
	if b.Primes() != 1 {
		t.Errorf("Speak should prime playback, Primes() = %d", b.Primes())
	}

	if _, err := m.ToggleVoicePlayback(); err != nil {
		t.Fatal(err)
	}
	ok, _ = m.Speak(context.Background(), "voice-bot", "m2", "hi", synth)
	if ok {
		t.Error("disabled playback should not speak")
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		src, contentType, want string
	}{
		{"http://x/voice/a.mp3", "", ".mp3"},
		{"http://x/voice/a.wav?sig=1", "audio/mpeg", ".wav"},
		{"http://x/tts", "", ""},
	}
	for _, tt := range tests {
		if got := extension(tt.src, tt.contentType); got != tt.want {
			t.Errorf("extension(%q, %q) = %q, want %q", tt.src, tt.contentType, got, tt.want)
		}
	}
}

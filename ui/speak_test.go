package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/QuocLam98/aiknvm-client/internal/voice"
)

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

// TestSpeakKeys tests the keyboard bindings of the status line.
func TestSpeakKeys(t *testing.T) {
	testCases := []struct {
		key      string
		stops    int
		toggles  int
		quits    int
		wantQuit bool
	}{
		{key: "s", stops: 1},
		{key: "S", stops: 1},
		{key: "t", toggles: 1},
		{key: "q", quits: 1, wantQuit: true},
		{key: "ctrl+c", quits: 1, wantQuit: true},
		{key: "esc", quits: 1, wantQuit: true},
		{key: "x"},
	}

	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			var stops, toggles, quits int
			m := NewSpeakModel(Controls{
				Stop:   func() { stops++ },
				Toggle: func() (bool, error) { toggles++; return false, nil },
				Quit:   func() { quits++ },
			})

			_, cmd := m.Update(keyMsg(tc.key))
			if stops != tc.stops || toggles != tc.toggles || quits != tc.quits {
				t.Errorf("stops=%d toggles=%d quits=%d, want %d %d %d",
					stops, toggles, quits, tc.stops, tc.toggles, tc.quits)
			}
			if tc.wantQuit {
				if cmd == nil {
					t.Fatal("expected quit command")
				}
				if _, ok := cmd().(tea.QuitMsg); !ok {
					t.Error("expected tea.QuitMsg")
				}
			}
		})
	}
}

func TestSpeakToggleNote(t *testing.T) {
	m := NewSpeakModel(Controls{Toggle: func() (bool, error) { return false, nil }})
	next, _ := m.Update(keyMsg("t"))
	if view := ansi.Strip(next.View()); !strings.Contains(view, "Voice off") {
		t.Errorf("View() = %q, want toggle note", view)
	}

	m = NewSpeakModel(Controls{Toggle: func() (bool, error) { return true, errors.New("read-only") }})
	next, _ = m.Update(keyMsg("t"))
	if view := ansi.Strip(next.View()); !strings.Contains(view, "read-only") {
		t.Errorf("View() = %q, want persistence error", view)
	}
}

func TestSpeakMessages(t *testing.T) {
	var model tea.Model = NewSpeakModel(Controls{})

	model, cmd := model.Update(MessageMsg{Bot: "english", Text: "hello", Rendered: "hello\n"})
	if cmd == nil {
		t.Error("rendered message should be printed")
	}
	model, _ = model.Update(FlagsMsg(voice.Flags{Playing: true, EnableVoicePlayback: true}))

	view := ansi.Strip(model.View())
	if !strings.Contains(view, "▶ Playing") || !strings.Contains(view, "english: hello") {
		t.Errorf("View() = %q", view)
	}

	model, _ = model.Update(ErrorMsg{Err: errors.New("no audio")})
	if view := ansi.Strip(model.View()); !strings.Contains(view, "no audio") {
		t.Errorf("View() = %q, want error", view)
	}

	model, cmd = model.Update(DoneMsg{})
	if cmd == nil {
		t.Fatal("DoneMsg should quit")
	}
	if model.View() != "" {
		t.Error("View() should be empty after quitting")
	}
}

func TestSpeakCopyWithoutURL(t *testing.T) {
	m := NewSpeakModel(Controls{})
	next, cmd := m.Update(keyMsg("c"))
	if cmd != nil {
		t.Error("copy without a URL should do nothing")
	}
	if strings.Contains(ansi.Strip(next.View()), "Copied") {
		t.Error("nothing should be copied")
	}
}

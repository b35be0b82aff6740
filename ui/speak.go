// Package ui provides the interactive status line shown while messages are
// spoken.
package ui

import (
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/QuocLam98/aiknvm-client/internal/voice"
)

// FlagsMsg carries a playback flag change.
type FlagsMsg voice.Flags

// MessageMsg announces the next message. Rendered is printed above the
// status line.
type MessageMsg struct {
	Bot      string
	Text     string
	Rendered string
}

// URLMsg carries the audio URL of the current message.
type URLMsg string

// ErrorMsg reports a failure for the current message.
type ErrorMsg struct{ Err error }

// DoneMsg ends the program once every message was handled.
type DoneMsg struct{}

// Controls are the actions bound to keys.
type Controls struct {
	Stop   func()
	Toggle func() (bool, error)
	Quit   func()
}

// SpeakModel is the bubbletea model of the speak status line.
type SpeakModel struct {
	status   *VoiceStatus
	spinner  spinner.Model
	controls Controls
	lastURL  string
	note     string
	width    int
	quitting bool
}

// NewSpeakModel creates the model.
func NewSpeakModel(c Controls) SpeakModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = loadingStyle
	return SpeakModel{
		status:   NewVoiceStatus(),
		spinner:  sp,
		controls: c,
	}
}

// NewSpeakProgram creates a program for the model.
func NewSpeakProgram(c Controls, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(NewSpeakModel(c), opts...)
}

// Init implements tea.Model.
func (m SpeakModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m SpeakModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case FlagsMsg:
		m.status.Update(voice.Flags(msg))

	case MessageMsg:
		m.status.SetMessage(msg.Bot, msg.Text)
		m.lastURL = ""
		m.note = ""
		if msg.Rendered != "" {
			return m, tea.Println(msg.Rendered)
		}

	case URLMsg:
		m.lastURL = string(msg)

	case ErrorMsg:
		m.status.SetError(msg.Err)

	case DoneMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m SpeakModel) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "s", "S":
		if m.controls.Stop != nil {
			m.controls.Stop()
		}

	case "t", "T":
		if m.controls.Toggle == nil {
			return m, nil
		}
		enabled, err := m.controls.Toggle()
		switch {
		case err != nil:
			m.status.SetError(err)
		case enabled:
			m.note = "Voice on"
		default:
			m.note = "Voice off"
		}

	case "c":
		if m.lastURL == "" {
			return m, nil
		}
		// Copy using OSC 52
		termenv.Copy(m.lastURL)
		// Copy using native system clipboard
		if err := clipboard.WriteAll(m.lastURL); err != nil {
			log.Debug("Could not write clipboard", "err", err)
		}
		m.note = "Copied voice URL"

	case "q", "ctrl+c", "esc":
		if m.controls.Quit != nil {
			m.controls.Quit()
		}
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m SpeakModel) View() string {
	if m.quitting {
		return ""
	}

	var line string
	if m.status.flags.LoadingVoice {
		line = m.spinner.View() + " "
	}
	line += m.status.CompactStatus(m.width)
	if m.note != "" {
		line += subtleStyle.Render(" · " + m.note)
	}
	return line + "\n" + subtleStyle.Render("s stop • t toggle voice • c copy url • q quit")
}

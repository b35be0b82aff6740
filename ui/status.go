package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/QuocLam98/aiknvm-client/internal/voice"
)

var (
	playingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	loadingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AAFF"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})
)

// VoiceStatus renders the voice playback state for the status line.
type VoiceStatus struct {
	flags   voice.Flags
	bot     string
	message string
	err     string
}

// NewVoiceStatus creates an idle status with playback enabled.
func NewVoiceStatus() *VoiceStatus {
	return &VoiceStatus{flags: voice.Flags{EnableVoicePlayback: true}}
}

// Update replaces the playback flags. A new synthesis clears the last error.
func (s *VoiceStatus) Update(f voice.Flags) {
	if f.LoadingVoice || f.Playing {
		s.err = ""
	}
	s.flags = f
}

// SetMessage sets the message being spoken.
func (s *VoiceStatus) SetMessage(bot, message string) {
	s.bot = bot
	s.message = strings.Join(strings.Fields(message), " ")
}

// SetError shows err until the next synthesis or playback.
func (s *VoiceStatus) SetError(err error) {
	if err == nil {
		s.err = ""
		return
	}
	s.err = err.Error()
}

// IsActive reports whether a voice is loading or playing.
func (s *VoiceStatus) IsActive() bool {
	return s.flags.LoadingVoice || s.flags.Playing
}

// CompactStatus returns the status line, truncated to width cells. Width 0
// disables truncation.
func (s *VoiceStatus) CompactStatus(width int) string {
	var head string
	switch {
	case s.err != "":
		head = errorStyle.Render("✗ " + s.err)
	case s.flags.LoadingVoice:
		head = loadingStyle.Render("⟳ Synthesizing")
	case s.flags.Playing:
		head = playingStyle.Render("▶ Playing")
	case !s.flags.EnableVoicePlayback:
		head = mutedStyle.Render("■ Voice off")
	default:
		head = mutedStyle.Render("■ Idle")
	}

	line := head
	if s.message != "" {
		detail := s.message
		if s.bot != "" {
			detail = s.bot + ": " + detail
		}
		line += subtleStyle.Render(" · " + detail)
	}
	if width > 0 {
		line = truncate.StringWithTail(line, uint(width), "…") //nolint:gosec
	}
	return line
}

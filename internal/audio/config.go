package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Config contains configuration for the oto backend.
type Config struct {
	SampleRate int           // 44100 or 48000 Hz only
	Channels   int           // 1 = mono, 2 = stereo
	BufferSize time.Duration // device buffer

	// PollInterval is how often a playing handle checks for completion.
	PollInterval time.Duration

	// Decoder defaults to FFmpegDecoder.
	Decoder Decoder

	Logger *log.Logger
}

// DefaultConfig returns the default backend configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:   44100,
		Channels:     1, // mono for speech
		BufferSize:   50 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
	}
}

// validateConfig validates the backend configuration.
func validateConfig(config Config) error {
	// OTO only supports specific sample rates reliably
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}

	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}

	if config.BufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}

	if config.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}

	return nil
}

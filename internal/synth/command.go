package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const maxCommandText = 5000

// CommandConfig configures an engine that runs a local text-to-speech tool.
type CommandConfig struct {
	// Binary overrides the tool looked up on PATH.
	Binary string

	// Dir receives the synthesized audio files.
	Dir string

	// Timeout bounds one synthesis run. Defaults to 30s.
	Timeout time.Duration

	Logger *log.Logger
}

// GTTSConfig configures the gtts-cli engine.
type GTTSConfig struct {
	CommandConfig

	// Language defaults to "en".
	Language string
	Slow     bool

	// RequestsPerMinute limits calls to Google. Defaults to 50.
	RequestsPerMinute int
}

// PiperConfig configures the offline piper engine.
type PiperConfig struct {
	CommandConfig

	// ModelPath is the .onnx voice model (required).
	ModelPath string

	// Speaker selects a speaker of multi-speaker models.
	Speaker string
}

// Command synthesizes speech by running a local tool that writes an audio
// file; the file path is returned as the audio URL.
type Command struct {
	name    string
	binary  string
	ext     string
	dir     string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *log.Logger

	// args builds the tool arguments writing to out.
	args func(text, out string) []string
	// stdin feeds text on standard input when set.
	stdin bool
}

func newCommand(name, binary, ext string, cfg CommandConfig) (*Command, error) {
	if cfg.Binary != "" {
		binary = cfg.Binary
	}
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(os.TempDir(), "aiknvm-voice")
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create voice directory: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Command{
		name:    name,
		binary:  binary,
		ext:     ext,
		dir:     cfg.Dir,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}, nil
}

// NewGTTS creates an engine backed by gtts-cli (Google Translate TTS).
func NewGTTS(cfg GTTSConfig) (*Command, error) {
	c, err := newCommand("gtts", "gtts-cli", ".mp3", cfg.CommandConfig)
	if err != nil {
		return nil, err
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 50
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	c.args = func(text, out string) []string {
		args := []string{text, "-l", cfg.Language}
		if cfg.Slow {
			args = append(args, "--slow")
		}
		return append(args, "-o", out)
	}
	return c, nil
}

// NewPiper creates an engine backed by the piper offline synthesizer.
func NewPiper(cfg PiperConfig) (*Command, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("piper model path is required")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("piper model not found: %w", err)
	}
	c, err := newCommand("piper", "piper", ".wav", cfg.CommandConfig)
	if err != nil {
		return nil, err
	}
	c.stdin = true
	c.args = func(_, out string) []string {
		args := []string{"--model", cfg.ModelPath, "--output_file", out}
		if cfg.Speaker != "" {
			args = append(args, "--speaker", cfg.Speaker)
		}
		return args
	}
	return c, nil
}

// Synthesize implements Engine.
func (c *Command) Synthesize(ctx context.Context, plainText, messageID string) (string, error) {
	if strings.TrimSpace(plainText) == "" {
		return "", errors.New("text cannot be empty")
	}
	if len(plainText) > maxCommandText {
		return "", fmt.Errorf("text too long: %d characters (max %d)", len(plainText), maxCommandText)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait cancelled: %w", err)
		}
	}

	f, err := os.CreateTemp(c.dir, ".speech-*"+c.ext)
	if err != nil {
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}
	tmp := f.Name()
	_ = f.Close()

	if err := c.run(ctx, plainText, tmp); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if info, err := os.Stat(tmp); err != nil || info.Size() == 0 {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%s produced no audio output", c.binary)
	}

	path := filepath.Join(c.dir, fileName(messageID)+c.ext)
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to store audio file: %w", err)
	}
	c.logger.Debug("Speech stored", "engine", c.name, "message", messageID, "path", path)
	return path, nil
}

func (c *Command) run(ctx context.Context, text, out string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, c.args(text, out)...)
	// Ask politely before the context kills the tool.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 100 * time.Millisecond
	if c.stdin {
		cmd.Stdin = strings.NewReader(text)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s synthesis timeout: %w", c.name, ctx.Err())
		}
		return fmt.Errorf("%s failed: %w, stderr: %s", c.binary, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Name implements Engine.
func (c *Command) Name() string { return c.name }

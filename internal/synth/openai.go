package synth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI speech engine.
type OpenAIConfig struct {
	APIKey string

	// BaseURL overrides the API endpoint (e.g. a compatible proxy).
	BaseURL string

	// Model defaults to tts-1, Voice to alloy.
	Model string
	Voice string

	// Dir receives the synthesized audio files.
	Dir string

	Logger *log.Logger
}

// OpenAI synthesizes speech with the OpenAI audio API and stores the result
// as an mp3 file; the file path is returned as the audio URL.
type OpenAI struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
	dir    string
	logger *log.Logger
}

// NewOpenAI creates the engine.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(os.TempDir(), "aiknvm-voice")
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create voice directory: %w", err)
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceAlloy)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(oc),
		model:  openai.SpeechModel(cfg.Model),
		voice:  openai.SpeechVoice(cfg.Voice),
		dir:    cfg.Dir,
		logger: cfg.Logger,
	}, nil
}

// Synthesize implements Engine.
func (o *OpenAI) Synthesize(ctx context.Context, plainText, messageID string) (string, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.model,
		Input:          plainText,
		Voice:          o.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return "", fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close() //nolint:errcheck

	path := filepath.Join(o.dir, fileName(messageID)+".mp3")
	f, err := os.CreateTemp(o.dir, ".speech-*")
	if err != nil {
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}
	tmp := f.Name()
	n, err := io.Copy(f, resp)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	if n == 0 {
		_ = os.Remove(tmp)
		return "", errors.New("openai speech: empty audio")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to store audio file: %w", err)
	}

	o.logger.Debug("OpenAI speech stored", "message", messageID, "bytes", n, "path", path)
	return path, nil
}

// Name implements Engine.
func (o *OpenAI) Name() string { return "openai" }

// fileName maps a message id to a safe file name.
func fileName(messageID string) string {
	sum := sha256.Sum256([]byte(messageID))
	return hex.EncodeToString(sum[:12])
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/QuocLam98/aiknvm-client/internal/audio"
	"github.com/QuocLam98/aiknvm-client/internal/backend"
	"github.com/QuocLam98/aiknvm-client/internal/markdown"
	"github.com/QuocLam98/aiknvm-client/internal/prefs"
	"github.com/QuocLam98/aiknvm-client/internal/registry"
	"github.com/QuocLam98/aiknvm-client/internal/synth"
	"github.com/QuocLam98/aiknvm-client/internal/voice"
)

// stringList reads a list setting given either as a YAML list or as a
// comma separated string.
func stringList(key string) []string {
	switch v := viper.Get(key).(type) {
	case nil:
		return nil
	case string:
		return registry.ParseList(v)
	default:
		return viper.GetStringSlice(key)
	}
}

func openPrefs() (*prefs.Store, error) {
	path := viper.GetString("prefs.path")
	if path == "" {
		p, err := prefs.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	} else {
		path = expandPath(path)
	}
	return prefs.Open(path)
}

func newRegistry() (*registry.Registry, error) {
	envCfg, err := registry.ConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("error parsing voice bot env: %w", err)
	}
	fileCfg := registry.Config{
		Bots:       stringList("voice.bots"),
		BotEnglish: viper.GetString("voice.bot_english"),
		BotLook:    viper.GetString("voice.bot_look"),
	}
	return registry.Merge(envCfg, fileCfg), nil
}

func newClient() (*backend.Client, error) {
	return backend.New(backend.Config{
		ServerURL:          viper.GetString("server.url"),
		DefaultBot:         viper.GetString("server.default_bot"),
		SynthesisPath:      viper.GetString("voice.synthesis_path"),
		Timeout:            viper.GetDuration("server.timeout"),
		SynthesisPerMinute: viper.GetInt("voice.synthesis_per_minute"),
		Logger:             log.Default(),
	})
}

func voiceDir() string {
	if d := viper.GetString("voice.dir"); d != "" {
		return expandPath(d)
	}
	dir, err := gap.NewScope(gap.User, "aiknvm").CacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "aiknvm-voice")
	}
	return filepath.Join(dir, "voice")
}

// newSynth builds the engine chain named by voice.engine.
func newSynth() (*synth.Chain, error) {
	names := registry.ParseList(viper.GetString("voice.engine"))
	if len(names) == 0 {
		return nil, synth.ErrNoEngines
	}

	engines := make([]synth.Engine, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(name) {
		case "backend":
			c, err := newClient()
			if err != nil {
				return nil, err
			}
			engines = append(engines, c)
		case "openai":
			key := viper.GetString("openai.api_key")
			if key == "" {
				key = os.Getenv("OPENAI_API_KEY")
			}
			o, err := synth.NewOpenAI(synth.OpenAIConfig{
				APIKey:  key,
				BaseURL: viper.GetString("openai.base_url"),
				Model:   viper.GetString("openai.model"),
				Voice:   viper.GetString("openai.voice"),
				Dir:     voiceDir(),
				Logger:  log.Default(),
			})
			if err != nil {
				return nil, err
			}
			engines = append(engines, o)
		case "gtts":
			g, err := synth.NewGTTS(synth.GTTSConfig{
				CommandConfig:     commandConfig("gtts"),
				Language:          viper.GetString("gtts.language"),
				Slow:              viper.GetBool("gtts.slow"),
				RequestsPerMinute: viper.GetInt("gtts.requests_per_minute"),
			})
			if err != nil {
				return nil, err
			}
			engines = append(engines, g)
		case "piper":
			p, err := synth.NewPiper(synth.PiperConfig{
				CommandConfig: commandConfig("piper"),
				ModelPath:     expandPath(viper.GetString("piper.model")),
				Speaker:       viper.GetString("piper.speaker"),
			})
			if err != nil {
				return nil, err
			}
			engines = append(engines, p)
		default:
			return nil, fmt.Errorf("unknown synthesis engine %q", name)
		}
	}
	return synth.NewChain(log.Default(), engines...), nil
}

func commandConfig(key string) synth.CommandConfig {
	return synth.CommandConfig{
		Binary:  viper.GetString(key + ".binary"),
		Dir:     voiceDir(),
		Timeout: viper.GetDuration(key + ".timeout"),
		Logger:  log.Default(),
	}
}

func newAudioBackend() (*audio.OtoBackend, error) {
	cfg := audio.DefaultConfig()
	cfg.SampleRate = viper.GetInt("audio.sample_rate")
	cfg.Channels = viper.GetInt("audio.channels")
	cfg.Decoder = audio.FFmpegDecoder{Binary: viper.GetString("audio.ffmpeg")}
	cfg.Logger = log.Default()

	b, err := audio.NewOtoBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to set up audio: %w", err)
	}
	return b, nil
}

func newManager(store *prefs.Store, bots *registry.Registry, onChange func(voice.Flags)) (*voice.Manager, error) {
	b, err := newAudioBackend()
	if err != nil {
		return nil, err
	}
	return voice.New(b, bots, store, voice.Options{
		GuardDelay:           viper.GetDuration("voice.guard_delay"),
		StartTimeout:         viper.GetDuration("voice.start_timeout"),
		FallbackGuardDelay:   viper.GetDuration("voice.fallback_guard_delay"),
		FallbackStartTimeout: viper.GetDuration("voice.fallback_start_timeout"),
		Logger:               log.Default(),
		Metrics:              voice.DefaultMetrics(),
		OnChange:             onChange,
	}), nil
}

func newRenderer() (*markdown.Renderer, error) {
	return markdown.NewRenderer(style, int(width)) //nolint:gosec
}

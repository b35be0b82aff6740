package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# style name or JSON path (default "auto")
style: "auto"
# word-wrap at width
width: 80

# chat backend
server:
  url: ""
  # bot id hidden from the bot list
  default_bot: ""
  timeout: "30s"

# spoken replies
voice:
  # comma separated bot ids whose replies are spoken
  bots: ""
  # single bot overrides, merged into bots
  bot_english: ""
  bot_look: ""
  # synthesis engines tried in order: backend, openai, gtts, piper
  engine: "backend"
  # where local engines store audio (default: user cache dir)
  # dir: "~/.cache/aiknvm/voice"
  synthesis_path: "/text-to-speech"
  synthesis_per_minute: 30
  # start timings of the direct stream and the download fallback
  guard_delay: "50ms"
  start_timeout: "1200ms"
  fallback_guard_delay: "30ms"
  fallback_start_timeout: "1200ms"

audio:
  # 44100 or 48000
  sample_rate: 44100
  channels: 1
  ffmpeg: "ffmpeg"

openai:
  # api_key: "sk-..."
  # base_url: "https://api.openai.com/v1"
  model: "tts-1"
  voice: "alloy"

gtts:
  language: "en"
  slow: false
  requests_per_minute: 50
  timeout: "30s"
  # binary: "gtts-cli"

piper:
  # model: "~/.local/share/piper/en_US-lessac-medium.onnx"
  # speaker: ""
  timeout: "30s"
  # binary: "piper"

# metrics:
#   addr: "127.0.0.1:9464"

# preferences and login token (default: user data dir)
# prefs:
#   path: "~/.local/share/aiknvm/preferences.yml"

# sentry:
#   dsn: ""
#   environment: "production"

# log:
#   file: "~/.cache/aiknvm/aiknvm.log"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the aiknvm config file",
	Long:    paragraph(fmt.Sprintf("\n%s the aiknvm config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("aiknvm config\naiknvm config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("aiknvm", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}

// Package main provides the entry point for the aiknvm CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/QuocLam98/aiknvm-client/internal/markdown"
	"github.com/QuocLam98/aiknvm-client/internal/observe"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile  string
	style       string
	width       uint
	debug       bool
	metricsAddr string

	telemetry *observe.Provider

	rootCmd = &cobra.Command{
		Use:   "aiknvm",
		Short: "Chat with bots on the CLI, out loud!",
		Long: paragraph(
			fmt.Sprintf("\nBrowse chat bots and history, and %s bot replies on the CLI.", keyword("speak")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if telemetry == nil {
				return nil
			}
			return telemetry.Shutdown(context.WithoutCancel(cmd.Context()))
		},
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if !markdown.ValidStyle(style) {
		style = expandPath(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	// grab config values from Viper
	width = viper.GetUint("width")
	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}
	if !markdown.ValidStyle(style) {
		style = expandPath(style)
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	// We want to use a special no-TTY style, when stdout is not a terminal
	// and there was no specific style passed by arg
	if !isTerminal && !cmd.Flags().Changed("style") {
		style = "notty"
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") { //nolint:nestif
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}

			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}

	if addr := viper.GetString("metrics.addr"); addr != "" && telemetry == nil {
		p, err := observe.InitProvider(cmd.Context(), observe.ProviderConfig{ServiceVersion: Version})
		if err != nil {
			return fmt.Errorf("unable to set up metrics: %w", err)
		}
		telemetry = p
		go func() {
			if err := p.Serve(cmd.Context(), addr, log.Default()); err != nil {
				log.Error("Metrics server failed", "addr", addr, "err", err)
			}
		}()
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	flush := setupSentry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd, err := rootCmd.ExecuteContextC(ctx)
	stop()
	if err != nil && cmd != nil {
		reportError(cmd.CommandPath(), err)
	}
	flush()
	_ = closer()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
	rootCmd.PersistentFlags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to disable)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug output")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().String("server", "", "chat backend URL")

	// Config bindings
	_ = viper.BindPFlag("style", rootCmd.PersistentFlags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.PersistentFlags().Lookup("width"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("metrics.addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
	_ = viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))

	setDefaults()

	rootCmd.AddCommand(botsCmd, historyCmd, loginCmd, logoutCmd, speakCmd, voiceCmd, configCmd, manCmd)
}

func setDefaults() {
	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)

	viper.SetDefault("server.url", "")
	viper.SetDefault("server.default_bot", "")
	viper.SetDefault("server.timeout", "30s")

	viper.SetDefault("voice.bots", "")
	viper.SetDefault("voice.bot_english", "")
	viper.SetDefault("voice.bot_look", "")
	viper.SetDefault("voice.engine", "backend")
	viper.SetDefault("voice.synthesis_path", "/text-to-speech")
	viper.SetDefault("voice.synthesis_per_minute", 30)
	viper.SetDefault("voice.guard_delay", "50ms")
	viper.SetDefault("voice.start_timeout", "1200ms")
	viper.SetDefault("voice.fallback_guard_delay", "30ms")
	viper.SetDefault("voice.fallback_start_timeout", "1200ms")

	viper.SetDefault("audio.sample_rate", 44100)
	viper.SetDefault("audio.channels", 1)
	viper.SetDefault("audio.ffmpeg", "ffmpeg")

	viper.SetDefault("openai.model", "tts-1")
	viper.SetDefault("openai.voice", "alloy")

	viper.SetDefault("gtts.language", "en")
	viper.SetDefault("gtts.requests_per_minute", 50)
	viper.SetDefault("gtts.timeout", "30s")
	viper.SetDefault("piper.timeout", "30s")

	viper.SetDefault("speak.bot", "")
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "aiknvm")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "aiknvm")}, dirs...)
	}

	if c := os.Getenv("AIKNVM_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("aiknvm")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("aiknvm")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "aiknvm.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}

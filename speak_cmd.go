package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/QuocLam98/aiknvm-client/internal/markdown"
	"github.com/QuocLam98/aiknvm-client/internal/voice"
	"github.com/QuocLam98/aiknvm-client/ui"
)

var (
	speakBot      string
	speakID       string
	speakStream   bool
	speakPrintURL bool
	speakNoTUI    bool

	speakCmd = &cobra.Command{
		Use:   "speak [TEXT|-]",
		Short: "Render bot replies and speak them aloud",
		Long: paragraph(fmt.Sprintf("\nRender a bot reply and %s it if the bot is a voice bot and voice playback is on. "+
			"With --stream, replies are read from stdin as JSON lines of {\"id\",\"bot\",\"content\"}.", keyword("speak"))),
		Example: paragraph("aiknvm speak --bot english \"Hello **there**\"\n" +
			"echo '{\"id\":\"m1\",\"bot\":\"english\",\"content\":\"Hi\"}' | aiknvm speak --stream"),
		Args: cobra.ArbitraryArgs,
		RunE: runSpeak,
	}
)

func init() {
	speakCmd.Flags().StringVar(&speakBot, "bot", "", "bot id of the reply")
	speakCmd.Flags().StringVar(&speakID, "id", "", "message id (default: random)")
	speakCmd.Flags().BoolVar(&speakStream, "stream", false, "read JSON line messages from stdin")
	speakCmd.Flags().BoolVar(&speakPrintURL, "print-url", false, "print the voice URL of each message (non-interactive only)")
	speakCmd.Flags().BoolVar(&speakNoTUI, "no-tui", false, "do not show the interactive status line")
	_ = viper.BindPFlag("speak.bot", speakCmd.Flags().Lookup("bot"))
}

// message is one bot reply to speak.
type message struct {
	ID      string `json:"id"`
	Bot     string `json:"bot"`
	Content string `json:"content"`
}

func (m message) withDefaults(bot string) message {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Bot == "" {
		m.Bot = bot
	}
	return m
}

// maxMessageSize bounds one JSON line of --stream input.
const maxMessageSize = 4 << 20

// readMessages calls fn for each JSON message line on r. Blank lines are
// skipped.
func readMessages(r io.Reader, fn func(message) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var m message
		if err := sonic.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("invalid message on line %d: %w", line, err)
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("unable to read messages after line %d: %w", line, err)
	}
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// singleMessage builds the message given on the command line or stdin.
func singleMessage(stdin io.Reader, args []string) (message, error) {
	text := strings.Join(args, " ")
	if text == "-" || len(args) == 0 {
		if len(args) == 0 {
			pipe, err := stdinIsPipe()
			if err != nil {
				return message{}, err
			}
			if !pipe {
				return message{}, errors.New("nothing to speak: pass TEXT, - or --stream")
			}
		}
		b, err := io.ReadAll(stdin)
		if err != nil {
			return message{}, fmt.Errorf("unable to read from reader: %w", err)
		}
		text = string(b)
	}
	return message{ID: speakID, Content: text}, nil
}

// flagRelay forwards the latest playback flags to the status line without
// blocking the caller.
type flagRelay struct {
	mu     sync.Mutex
	latest voice.Flags
	kick   chan struct{}
}

func newFlagRelay() *flagRelay {
	return &flagRelay{kick: make(chan struct{}, 1)}
}

func (r *flagRelay) push(f voice.Flags) {
	r.mu.Lock()
	r.latest = f
	r.mu.Unlock()
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *flagRelay) run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.kick:
			r.mu.Lock()
			f := r.latest
			r.mu.Unlock()
			send(ui.FlagsMsg(f))
		}
	}
}

// speaker renders and speaks messages one after another.
type speaker struct {
	mgr      *voice.Manager
	synth    voice.Synthesizer
	renderer *markdown.Renderer
	out      io.Writer
	printURL bool
	links    bool
	send     func(tea.Msg)
}

func (s *speaker) emit(msg tea.Msg) {
	if s.send != nil {
		s.send(msg)
	}
}

func (s *speaker) speak(ctx context.Context, msg message) error {
	rendered, err := s.renderer.Render(msg.Content)
	if err != nil {
		return err
	}
	plain := markdown.PlainText(msg.Content)

	if s.send != nil {
		s.emit(ui.MessageMsg{Bot: msg.Bot, Text: plain, Rendered: strings.TrimRight(rendered, "\n")})
	} else if _, err := fmt.Fprint(s.out, rendered); err != nil {
		return fmt.Errorf("unable to write to writer: %w", err)
	}

	if plain == "" {
		return nil
	}
	played, err := s.mgr.Speak(ctx, msg.Bot, msg.ID, plain, s.synth)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("Voice synthesis failed", "message", msg.ID, "err", err)
		s.emit(ui.ErrorMsg{Err: err})
		return nil
	}

	if url, ok := s.mgr.CachedVoice(msg.ID); ok {
		s.emit(ui.URLMsg(url))
		if s.printURL && s.send == nil {
			if s.links {
				url = termenv.Hyperlink(url, url)
			}
			fmt.Fprintln(s.out, url)
		}
	}

	if !played {
		if s.mgr.EnableVoicePlayback() && s.mgr.IsVoiceBot(msg.Bot) {
			s.emit(ui.ErrorMsg{Err: errors.New("voice playback failed")})
		}
		return ctx.Err()
	}
	return s.mgr.WaitIdle(ctx)
}

func runSpeak(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	bot := viper.GetString("speak.bot")
	var single message
	if !speakStream {
		m, err := singleMessage(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		single = m.withDefaults(bot)
	}

	store, err := openPrefs()
	if err != nil {
		return err
	}
	bots, err := newRegistry()
	if err != nil {
		return err
	}
	chain, err := newSynth()
	if err != nil {
		return err
	}
	renderer, err := newRenderer()
	if err != nil {
		return err
	}

	stdoutTTY := term.IsTerminal(int(os.Stdout.Fd()))
	useTUI := !speakNoTUI && stdoutTTY
	relay := newFlagRelay()

	var onChange func(voice.Flags)
	if useTUI {
		onChange = relay.push
	}
	mgr, err := newManager(store, bots, onChange)
	if err != nil {
		return err
	}
	defer mgr.StopVoice()

	sp := &speaker{
		mgr:      mgr,
		synth:    chain.Synthesize,
		renderer: renderer,
		out:      cmd.OutOrStdout(),
		printURL: speakPrintURL,
		links:    stdoutTTY,
	}

	run := func() error {
		if !speakStream {
			return sp.speak(ctx, single)
		}
		return readMessages(cmd.InOrStdin(), func(m message) error {
			return sp.speak(ctx, m.withDefaults(bot))
		})
	}

	var program *tea.Program
	if useTUI {
		opts := []tea.ProgramOption{tea.WithContext(ctx)}
		if speakStream || !term.IsTerminal(int(os.Stdin.Fd())) {
			opts = append(opts, tea.WithInputTTY())
		}
		program = ui.NewSpeakProgram(ui.Controls{
			Stop:   mgr.StopVoice,
			Toggle: mgr.ToggleVoicePlayback,
			Quit:   cancel,
		}, opts...)
		sp.send = program.Send
		relay.push(mgr.Flags())
		go relay.run(ctx, program.Send)
	}

	go func() {
		err := store.Watch(ctx, func() {
			mgr.SyncPreference()
			if !mgr.EnableVoicePlayback() {
				mgr.StopVoice()
			}
		})
		if err != nil {
			log.Debug("Not watching preferences", "err", err)
		}
	}()

	if program == nil {
		if err := run(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	errc := make(chan error, 1)
	go func() {
		err := run()
		program.Send(ui.DoneMsg{})
		errc <- err
	}()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancel()
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	cancel()
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

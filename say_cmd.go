package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/ttspeaker/tts"
	"github.com/dgnsrekt/ttspeaker/ui"
)

var (
	sayQueue     bool
	sayClipboard bool
	sayFile      string
	sayStatus    bool
	sayMarkdown  bool
	sayCache     string

	sayCmd = &cobra.Command{
		Use:   "say [TEXT...]",
		Short: "Speak text",
		Long: paragraph(fmt.Sprintf(`
Speak the given %s, a file, piped stdin or the clipboard. Without any
input on a terminal, every line typed is spoken; %s, %s, %s, %s and
%s control playback.`,
			keyword("text"), keyword(":pause"), keyword(":resume"), keyword(":skip"), keyword(":stop"), keyword(":voice ID"))),
		Example: `  ttspeaker say "Hello there"
  cat notes.md | ttspeaker say --markdown
  ttspeaker say -f README.md --status
  ttspeaker say --queue`,
		Args: cobra.ArbitraryArgs,
		RunE: runSay,
	}
)

// sayInput is where the text to speak comes from.
type sayInput struct {
	text        string
	interactive bool
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

func isMarkdownFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".mdown", ".mkdn", ".mkd", ".markdown":
		return true
	}
	return false
}

func readSayInput(cmd *cobra.Command, args []string) (sayInput, error) {
	switch {
	case sayClipboard:
		text, err := clipboard.ReadAll()
		if err != nil {
			return sayInput{}, fmt.Errorf("unable to read clipboard: %w", err)
		}
		return sayInput{text: text}, nil

	case sayFile != "":
		b, err := os.ReadFile(sayFile)
		if err != nil {
			return sayInput{}, fmt.Errorf("unable to read file: %w", err)
		}
		if isMarkdownFile(sayFile) && !cmd.Flags().Changed("markdown") {
			viper.Set("text.markdown", true)
		}
		return sayInput{text: string(b)}, nil

	case len(args) == 1 && args[0] == "-":
		return readStdin()

	case len(args) > 0:
		return sayInput{text: strings.Join(args, " ")}, nil
	}

	if yes, err := stdinIsPipe(); err != nil {
		return sayInput{}, err
	} else if yes {
		return readStdin()
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		return sayInput{interactive: true}, nil
	}
	return sayInput{}, errors.New("nothing to speak: pass text, --file, --clipboard or pipe it in")
}

func readStdin() (sayInput, error) {
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return sayInput{}, fmt.Errorf("unable to read from stdin: %w", err)
	}
	return sayInput{text: string(b)}, nil
}

func runSay(cmd *cobra.Command, args []string) error {
	in, err := readSayInput(cmd, args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := newSpeakerApp(cfg, logger, appOptions{mute: mute})
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("engine") {
		// Route every phrase to the selected engine, keeping the preset's
		// other settings.
		voice, err := app.speaker.ResolveVoice()
		if err != nil {
			app.close()
			return err
		}
		voice.Engine = ""
		app.speaker.SetVoiceOverride(voice)
	}

	var status *ui.StatusDisplay
	if sayStatus && term.IsTerminal(int(os.Stderr.Fd())) {
		status = ui.NewStatusDisplay()
		app.speaker.Attach(status)
		redraw := rate.Sometimes{Interval: 100 * time.Millisecond}
		app.loop.OnUpdate(func(time.Duration) {
			status.Update(app.speaker.Status())
			redraw.Do(func() { drawStatus(status) })
		})
	}

	if used := viper.ConfigFileUsed(); used != "" {
		tts.WatchConfig(viper.GetViper(), func(c tts.Config, err error) {
			if err != nil {
				logger.Warn("ignoring invalid configuration", "path", used, "err", err)
				return
			}
			app.loop.Post(func() { app.apply(c) })
		})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		app.serveMetrics(ctx, metricsAddr)
	}

	loopCtx, cancelLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- app.run(loopCtx) }()

	if in.interactive {
		err = sayInteractive(ctx, app, os.Stdin)
	} else if sayQueue {
		err = app.speaker.SpeakQueuedAsync(ctx, in.text)
	} else {
		err = app.speaker.SpeakAsync(ctx, in.text)
	}

	cancelLoop()
	if lerr := <-loopDone; lerr != nil {
		logger.Error("main loop stopped", "err", lerr)
	}
	app.close()
	if status != nil {
		fmt.Fprint(os.Stderr, "\r\x1b[K")
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func drawStatus(status *ui.StatusDisplay) {
	width := 80
	if w, _, err := term.GetSize(int(os.Stderr.Fd())); err == nil && w > 0 {
		width = w
	}
	fmt.Fprintf(os.Stderr, "\r\x1b[K%s", status.CompactStatus(width-1))
}

// sayInteractive speaks every line read from r until EOF, then waits for
// the queue to drain.
func sayInteractive(ctx context.Context, app *speakerApp, r io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line := <-lines:
			handleLine(app, line)

		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("unable to read input: %w", err)
			}
			return waitDrained(ctx, app)
		}
	}
}

func handleLine(app *speakerApp, line string) {
	line = strings.TrimSpace(line)
	cmd, arg, _ := strings.Cut(line, " ")

	switch cmd {
	case "":
	case ":pause":
		app.loop.Post(app.speaker.Pause)
	case ":resume":
		app.loop.Post(app.speaker.Resume)
	case ":stop":
		app.loop.Post(app.speaker.Stop)
	case ":skip":
		app.loop.Post(func() { app.speaker.StopSpeaking() })
	case ":voice":
		id := strings.TrimSpace(arg)
		app.loop.Post(func() {
			if _, ok := app.cfg.Presets().Voice(id); !ok {
				logger.Warn(unknownVoiceError(id, app.cfg.Presets().IDs()).Error())
				return
			}
			app.speaker.SetVoicePreset(id)
		})
	default:
		app.loop.Post(func() {
			speak := app.speaker.Speak
			if sayQueue {
				speak = app.speaker.SpeakQueued
			}
			if _, err := speak(line); err != nil {
				logger.Warn("unable to speak", "err", err)
			}
		})
	}
}

// waitDrained queues a marker behind everything spoken so far and waits
// for it to retire.
func waitDrained(ctx context.Context, app *speakerApp) error {
	drained := make(chan struct{})
	var once sync.Once
	events := tts.NewEvents()
	events.On(tts.EventComplete, func(tts.Event) {
		once.Do(func() { close(drained) })
	})

	app.loop.Post(func() {
		if _, err := app.speaker.EnqueueMarker(events); err != nil {
			logger.Warn("unable to wait for the queue", "err", err)
			once.Do(func() { close(drained) })
		}
	})

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func init() {
	flags := sayCmd.Flags()
	flags.BoolVarP(&sayQueue, "queue", "q", false, "queue behind playing speech instead of interrupting it")
	flags.BoolVarP(&sayClipboard, "clipboard", "c", false, "speak the clipboard contents")
	flags.StringVarP(&sayFile, "file", "f", "", "speak the contents of a file")
	flags.BoolVarP(&sayStatus, "status", "s", false, "show a status line on stderr")
	flags.BoolVarP(&sayMarkdown, "markdown", "m", false, "strip markdown before speaking")
	flags.StringVar(&sayCache, "cache", "", "clip cache location (none, memory or disk)")

	_ = viper.BindPFlag("text.markdown", flags.Lookup("markdown"))
	_ = viper.BindPFlag("cache.location", flags.Lookup("cache"))
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/ttspeaker/ui"
)

var (
	readStyle  string
	readWidth  int
	readPaused bool

	readCmd = &cobra.Command{
		Use:   "read FILE",
		Short: "Read a markdown file aloud in a pager",
		Long: paragraph(fmt.Sprintf(`
Open a markdown file in a pager and read it aloud, scrolling along with the
speech. Press %s for the key bindings.`, keyword("?"))),
		Args: cobra.ExactArgs(1),
		// The pager owns the terminal, so log to the file only.
		Annotations: map[string]string{consoleAnnotation: "off"},
		RunE:        runRead,
	}
)

// loopController hands reader actions to the speaker's main loop.
type loopController struct {
	app *speakerApp
}

func (c loopController) Read(text string) {
	c.app.loop.Post(func() {
		if _, err := c.app.speaker.Speak(text); err != nil {
			logger.Warn("unable to read document", "err", err)
		}
	})
}

func (c loopController) TogglePause() {
	c.app.loop.Post(func() {
		if c.app.speaker.IsPaused() {
			c.app.speaker.Resume()
		} else {
			c.app.speaker.Pause()
		}
	})
}

func (c loopController) Skip() {
	c.app.loop.Post(func() { c.app.speaker.StopSpeaking() })
}

func (c loopController) Stop() {
	c.app.loop.Post(c.app.speaker.Stop)
}

func runRead(cmd *cobra.Command, args []string) error {
	path := args[0]
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read file: %w", err)
	}
	if !viper.IsSet("text.markdown") {
		viper.Set("text.markdown", true)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := newSpeakerApp(cfg, logger, appOptions{mute: mute})
	if err != nil {
		return err
	}

	status := ui.NewStatusDisplay()
	app.speaker.Attach(status)
	app.loop.OnUpdate(func(time.Duration) {
		status.Update(app.speaker.Status())
	})

	loopCtx, cancelLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- app.run(loopCtx) }()
	if metricsAddr != "" {
		app.serveMetrics(loopCtx, metricsAddr)
	}

	reader := ui.NewReader(ui.ReaderConfig{
		Path:     path,
		Body:     string(b),
		Style:    readStyle,
		MaxWidth: readWidth,
		Autoplay: !readPaused,
	}, loopController{app: app}, status, logger)

	_, err = tea.NewProgram(reader, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()

	cancelLoop()
	if lerr := <-loopDone; lerr != nil {
		logger.Error("main loop stopped", "err", lerr)
	}
	app.close()
	_ = reader.Close()

	if err != nil {
		return fmt.Errorf("unable to run pager: %w", err)
	}
	return nil
}

func init() {
	flags := readCmd.Flags()
	flags.StringVarP(&readStyle, "style", "s", "auto", "glamour style name (auto, dark, light, notty, ...)")
	flags.IntVarP(&readWidth, "width", "w", 100, "word wrap limit, 0 for the window width")
	flags.BoolVarP(&readPaused, "paused", "p", false, "open without starting to read")
}

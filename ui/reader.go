package ui

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/fsnotify/fsnotify"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/ttspeaker/pkg/logging"
)

const (
	statusBarHeight      = 1
	statusMessageTimeout = time.Second * 3
	statusTickInterval   = time.Millisecond * 100
	ellipsis             = "…"
)

var (
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoView = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(lipgloss.Color("#04B575")).
			Bold(true).
			Render(" ttspeaker ")

	statusBarScrollPosStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg).
				Render

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"}).
			Render
)

// Controller is the playback surface a Reader drives. Calls come from the
// UI goroutine; implementations hand them to the speaker's main loop.
type Controller interface {
	Read(text string)
	TogglePause()
	Skip()
	Stop()
}

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	Path     string // File being read, watched for changes when set
	Body     string // Markdown source
	Style    string // Glamour style name, "auto" to detect
	MaxWidth int    // Word wrap limit, 0 for the window width
	Autoplay bool   // Start reading once the document is rendered
}

type (
	contentRenderedMsg      string
	fileChangedMsg          string
	statusTickMsg           struct{}
	statusMessageTimeoutMsg int
)

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// Reader is a pager that reads its document aloud and scrolls along with
// the speech.
type Reader struct {
	cfg    ReaderConfig
	ctl    Controller
	status *StatusDisplay
	log    *logging.Logger

	body     string
	viewport viewport.Model
	width    int
	height   int

	// Rendered content without escape sequences, for locating phrases.
	lines    []string
	started  bool
	follow   bool
	lastText string
	showHelp bool

	message    string
	messageSeq int

	watcher *fsnotify.Watcher
}

// NewReader creates a reader. status must be attached to the speaker that
// ctl drives.
func NewReader(cfg ReaderConfig, ctl Controller, status *StatusDisplay, log *logging.Logger) *Reader {
	if log == nil {
		log = logging.Nop()
	}
	vp := viewport.New(0, 0)
	// Space pauses and f toggles follow mode.
	vp.KeyMap.PageDown.SetKeys("pgdown")

	m := &Reader{
		cfg:      cfg,
		ctl:      ctl,
		status:   status,
		log:      log.Category("ui"),
		body:     cfg.Body,
		viewport: vp,
		follow:   true,
	}
	if cfg.Path != "" {
		m.initWatcher()
	}
	return m
}

// Close releases the file watcher.
func (m *Reader) Close() error {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Close()
}

// Init implements tea.Model.
func (m *Reader) Init() tea.Cmd {
	cmds := []tea.Cmd{tickStatus()}
	if m.watcher != nil {
		cmds = append(cmds, m.watchFile)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Reader) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			if m.showHelp {
				m.toggleHelp()
				return m, nil
			}
			m.ctl.Stop()
			return m, tea.Quit
		case "q", "ctrl+c":
			m.ctl.Stop()
			return m, tea.Quit

		case " ":
			m.ctl.TogglePause()
		case "enter", "r":
			m.ctl.Read(m.body)
			cmds = append(cmds, m.flash("Reading from the top"))
		case "n":
			m.ctl.Skip()
		case "s":
			m.ctl.Stop()
			cmds = append(cmds, m.flash("Stopped"))

		case "f":
			m.follow = !m.follow
			if m.follow {
				cmds = append(cmds, m.flash("Following speech"))
			} else {
				cmds = append(cmds, m.flash("Not following speech"))
			}

		case "c":
			text := m.status.Text()
			if text == "" {
				text = m.body
			}
			// Copy using OSC 52
			termenv.Copy(text)
			// Copy using native system clipboard
			_ = clipboard.WriteAll(text)
			cmds = append(cmds, m.flash("Copied"))

		case "home", "g":
			m.viewport.GotoTop()
		case "end", "G":
			m.viewport.GotoBottom()

		case "?":
			m.toggleHelp()
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.setSize()
		return m, m.render()

	case contentRenderedMsg:
		m.viewport.SetContent(string(msg))
		m.lines = strings.Split(xansi.Strip(string(msg)), "\n")
		if m.cfg.Autoplay && !m.started {
			m.started = true
			m.ctl.Read(m.body)
		}

	case fileChangedMsg:
		m.body = string(msg)
		cmds = append(cmds, m.render(), m.watchFile, m.flash("Reloaded"))

	case statusTickMsg:
		m.followSpeech()
		cmds = append(cmds, tickStatus())

	case statusMessageTimeoutMsg:
		if int(msg) == m.messageSeq {
			m.message = ""
		}

	case errMsg:
		m.log.Error("reader error", "err", msg.err)
		cmds = append(cmds, m.flash(msg.Error()))
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m *Reader) View() string {
	var b strings.Builder
	fmt.Fprint(&b, m.viewport.View()+"\n")
	m.statusBarView(&b)
	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.helpView())
	}
	return b.String()
}

func (m *Reader) setSize() {
	m.viewport.Width = m.width
	m.viewport.Height = m.height - statusBarHeight
	if m.showHelp {
		m.viewport.Height -= statusBarHeight + strings.Count(m.helpView(), "\n")
	}
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
}

func (m *Reader) toggleHelp() {
	m.showHelp = !m.showHelp
	m.setSize()
	if m.viewport.PastBottom() {
		m.viewport.GotoBottom()
	}
}

// flash shows msg in the status bar for a few seconds.
func (m *Reader) flash(msg string) tea.Cmd {
	m.messageSeq++
	m.message = msg
	seq := m.messageSeq
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg(seq)
	})
}

// followSpeech scrolls to the phrase being spoken when it changes.
func (m *Reader) followSpeech() {
	text := m.status.Text()
	if text == "" || text == m.lastText {
		return
	}
	m.lastText = text
	if !m.follow {
		return
	}
	if line := findPhraseLine(m.lines, text); line >= 0 {
		m.viewport.SetYOffset(max(0, line-m.viewport.Height/3))
	}
}

// findPhraseLine returns the first line holding the start of phrase, or
// -1. Rendering rewraps text, so it tries ever shorter leading word runs.
func findPhraseLine(lines []string, phrase string) int {
	words := strings.Fields(phrase)
	for n := min(len(words), 4); n > 0; n-- {
		needle := strings.ToLower(strings.Join(words[:n], " "))
		if n == 1 && len(needle) < 3 {
			break
		}
		for i, l := range lines {
			if strings.Contains(strings.ToLower(l), needle) {
				return i
			}
		}
	}
	return -1
}

func (m *Reader) wrapWidth() int {
	w := m.width
	if m.cfg.MaxWidth > 0 && m.cfg.MaxWidth < w {
		w = m.cfg.MaxWidth
	}
	return w
}

func (m *Reader) statusBarView(b *strings.Builder) {
	percent := math.Max(0, math.Min(1, m.viewport.ScrollPercent()))
	scrollPercent := statusBarScrollPosStyle(fmt.Sprintf(" %3.f%% ", percent*100))
	helpNote := statusBarHelpStyle(" ? Help ")

	room := max(0, m.width-
		ansi.PrintableRuneWidth(logoView)-
		ansi.PrintableRuneWidth(scrollPercent)-
		ansi.PrintableRuneWidth(helpNote),
	)

	showMessage := m.message != ""
	var note string
	switch {
	case showMessage:
		note = m.message
	default:
		note = filepath.Base(m.cfg.Path)
		if status := m.status.CompactStatus(room); status != "" {
			note = strings.TrimSpace(note + " " + xansi.Strip(status))
		}
	}
	note = truncate.StringWithTail(" "+note+" ", uint(room), ellipsis) //nolint:gosec
	padding := strings.Repeat(" ", max(0, room-ansi.PrintableRuneWidth(note)))
	if showMessage {
		note = statusBarMessageStyle(note + padding)
	} else {
		note = statusBarNoteStyle(note + padding)
	}

	fmt.Fprintf(b, "%s%s%s%s", logoView, note, scrollPercent, helpNote)
}

func (m *Reader) helpView() string {
	s := "\n"
	s += "space    pause/resume        k/↑      up\n"
	s += "enter/r  read from the top   j/↓      down\n"
	s += "n        skip phrase         b/pgup   page up\n"
	s += "s        stop                pgdn     page down\n"
	s += "f        follow speech       g/home   go to top\n"
	s += "c        copy phrase         G/end    go to bottom\n"
	s += "q        quit"

	s = indent(s, 2)

	// Fill up empty cells with spaces for background coloring
	if m.width > 0 {
		lines := strings.Split(s, "\n")
		for i := range lines {
			n := max(m.width-runewidth.StringWidth(lines[i]), 0)
			lines[i] += strings.Repeat(" ", n)
		}
		s = strings.Join(lines, "\n")
	}
	return helpViewStyle(s)
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for j, v := range l {
		fmt.Fprintf(&b, "%s%s", i, v)
		if j+1 < len(l) {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// COMMANDS

func tickStatus() tea.Cmd {
	return tea.Tick(statusTickInterval, func(time.Time) tea.Msg {
		return statusTickMsg{}
	})
}

func (m *Reader) render() tea.Cmd {
	body, style, width := m.body, m.cfg.Style, m.wrapWidth()
	return func() tea.Msg {
		out, err := RenderMarkdown(body, style, width)
		if err != nil {
			return errMsg{err}
		}
		return contentRenderedMsg(out)
	}
}

// RenderMarkdown renders markdown for the terminal. style is a glamour
// standard style name or "auto".
func RenderMarkdown(body, style string, width int) (string, error) {
	options := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		options = append(options, glamour.WithAutoStyle())
	} else {
		options = append(options, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}
	out, err := r.Render(body)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return out, nil
}

func (m *Reader) initWatcher() {
	var err error
	m.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		m.log.Error("error creating fsnotify watcher", "err", err)
		return
	}
	dir := filepath.Dir(m.cfg.Path)
	if err := m.watcher.Add(dir); err != nil {
		m.log.Error("error adding dir to fsnotify watcher", "err", err)
		_ = m.watcher.Close()
		m.watcher = nil
		return
	}
	m.log.Debug("fsnotify watching dir", "dir", dir)
}

// watchFile blocks until the document changes on disk and returns its new
// contents.
func (m *Reader) watchFile() tea.Msg {
	path, _ := filepath.Abs(m.cfg.Path)
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if name, _ := filepath.Abs(event.Name); name != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			m.log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			b, err := os.ReadFile(path)
			if err != nil {
				return errMsg{err}
			}
			return fileChangedMsg(b)

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			m.log.Debug("fsnotify error", "err", err)
		}
	}
}

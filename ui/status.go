// Package ui renders speaker progress for terminals.
package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/ttspeaker/tts"
)

// StatusDisplay follows a speaker through its events and status snapshots
// and renders them as a status line. Attach it to the speaker and call
// Update once per tick; rendering is safe from any goroutine.
type StatusDisplay struct {
	mu sync.Mutex

	state    tts.StateType
	text     string
	elapsed  time.Duration
	progress float64
	queued   int

	done     int
	total    int
	failures int

	errorMessage string
}

// NewStatusDisplay creates an idle display.
func NewStatusDisplay() *StatusDisplay {
	return &StatusDisplay{state: tts.StateIdle}
}

// OnSpeakerEvent implements tts.Listener. It counts phrases and keeps the
// last failure.
func (s *StatusDisplay) OnSpeakerEvent(ev tts.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case tts.EventQueueBegin:
		s.done, s.total, s.failures = 0, 0, 0
		s.errorMessage = ""

	case tts.EventBegin:
		if !isMarker(ev) {
			s.total++
		}

	case tts.EventComplete:
		if isMarker(ev) {
			return
		}
		s.done++
		if ev.Err != nil && !tts.IsCancellation(ev.Err) {
			s.failures++
			s.errorMessage = ev.Err.Error()
		}

	case tts.EventQueueComplete:
		s.state = tts.StateIdle
		s.text = ""
		s.progress = 0
	}
}

func isMarker(ev tts.Event) bool {
	return ev.Request == nil || ev.Request.IsMarker()
}

// Update copies a status snapshot.
func (s *StatusDisplay) Update(st tts.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st.CurrentState
	s.text = st.SpeakingText
	s.elapsed = st.Elapsed
	s.progress = st.Progress()
	s.queued = st.QueueLength
}

// State returns the last seen controller state.
func (s *StatusDisplay) State() tts.StateType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Text returns the text being spoken, if any.
func (s *StatusDisplay) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// IsActive reports whether anything is loading or speaking.
func (s *StatusDisplay) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != tts.StateIdle || s.queued > 0
}

// Counts returns finished and total phrases since the queue last began,
// and how many of them failed.
func (s *StatusDisplay) Counts() (done, total, failures int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done, s.total, s.failures
}

// CompactStatus returns a one-line status, empty when idle without errors.
func (s *StatusDisplay) CompactStatus(width int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == tts.StateIdle && s.queued == 0 {
		if s.errorMessage == "" {
			return ""
		}
		return lipgloss.NewStyle().Foreground(stateColor(s.state, true)).
			Render(truncate.StringWithTail("✗ "+s.errorMessage, uint(max(width, 10)), "…"))
	}

	status := lipgloss.NewStyle().Foreground(stateColor(s.state, false)).
		Render(stateIcon(s.state))

	counter := fmt.Sprintf(" %d/%d", min(s.done+1, s.total), s.total)
	if s.state == tts.StateSpeaking || s.state == tts.StatePaused {
		counter += " " + formatDuration(s.elapsed)
	}
	status += lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render(counter)

	if s.failures > 0 {
		status += lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).
			Render(fmt.Sprintf(" %d failed", s.failures))
	}

	if s.text != "" {
		room := width - lipgloss.Width(status) - 1
		if room > 3 {
			status += " " + truncate.StringWithTail(s.text, uint(room), "…")
		}
	}
	return status
}

// DetailedStatus returns a multi-line status for wider displays.
func (s *StatusDisplay) DetailedStatus(width int) string {
	s.mu.Lock()
	state, text, elapsed := s.state, s.text, s.elapsed
	done, total, queued := s.done, s.total, s.queued
	errMsg := s.errorMessage
	s.mu.Unlock()

	if state == tts.StateIdle && queued == 0 && errMsg == "" {
		return ""
	}

	lines := []string{lipgloss.NewStyle().Bold(true).Render("Speaker")}
	lines = append(lines, lipgloss.NewStyle().Foreground(stateColor(state, false)).
		Render(fmt.Sprintf("State: %s %s", stateIcon(state), state)))

	if total > 0 {
		lines = append(lines, fmt.Sprintf("Phrase: %d of %d, %d queued", min(done+1, total), total, queued))
	}
	if text != "" {
		lines = append(lines, "Text: "+truncate.StringWithTail(text, uint(max(width-6, 4)), "…"))
	}
	if state == tts.StateSpeaking || state == tts.StatePaused {
		lines = append(lines, "Elapsed: "+formatDuration(elapsed))
		if width > 20 {
			lines = append(lines, s.ProgressBar(width-4))
		}
	}
	if errMsg != "" {
		errorLine := truncate.StringWithTail(errMsg, uint(max(width-9, 4)), "...")
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Render("Error: "+errorLine))
	}
	return strings.Join(lines, "\n")
}

// ProgressBar renders the current clip's progress.
func (s *StatusDisplay) ProgressBar(width int) string {
	if width < 10 {
		return ""
	}
	s.mu.Lock()
	progress, state := s.progress, s.state
	s.mu.Unlock()

	filledWidth := int(progress * float64(width))
	if filledWidth > width {
		filledWidth = width
	}
	filled := strings.Repeat("█", filledWidth)
	empty := strings.Repeat("░", width-filledWidth)

	return lipgloss.NewStyle().Foreground(stateColor(state, false)).Render(filled) +
		lipgloss.NewStyle().Foreground(lipgloss.Color("#333333")).Render(empty)
}

func stateColor(state tts.StateType, failed bool) lipgloss.Color {
	if failed {
		return lipgloss.Color("#FF0000")
	}
	switch state {
	case tts.StateSpeaking:
		return lipgloss.Color("#00FF00")
	case tts.StatePaused:
		return lipgloss.Color("#FFFF00")
	case tts.StateWaitingForLoad:
		return lipgloss.Color("#00AAFF")
	default:
		return lipgloss.Color("#666666")
	}
}

func stateIcon(state tts.StateType) string {
	switch state {
	case tts.StateSpeaking:
		return "▶"
	case tts.StatePaused:
		return "⏸"
	case tts.StateWaitingForLoad:
		return "⟳"
	default:
		return "○"
	}
}

// formatDuration formats a duration as m:ss.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

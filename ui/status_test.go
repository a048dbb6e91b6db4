package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/ttspeaker/tts"
)

func phraseEvent(kind tts.EventKind, text string, err error) tts.Event {
	return tts.Event{Kind: kind, Request: &tts.SpeakRequest{Text: text}, Text: text, Err: err}
}

func TestStatusDisplayIdle(t *testing.T) {
	display := NewStatusDisplay()

	if display.IsActive() {
		t.Error("Display should not be active initially")
	}
	if status := display.CompactStatus(80); status != "" {
		t.Errorf("Initial compact status should be empty, got %q", status)
	}
	if status := display.DetailedStatus(80); status != "" {
		t.Errorf("Initial detailed status should be empty, got %q", status)
	}
}

func TestStatusDisplaySpeaking(t *testing.T) {
	display := NewStatusDisplay()
	display.OnSpeakerEvent(tts.Event{Kind: tts.EventQueueBegin})
	for _, text := range []string{"one", "two", "three"} {
		display.OnSpeakerEvent(phraseEvent(tts.EventBegin, text, nil))
	}
	display.OnSpeakerEvent(phraseEvent(tts.EventComplete, "one", nil))

	display.Update(tts.Status{
		CurrentState:   tts.StateSpeaking,
		QueueLength:    1,
		SpeakingText:   "two",
		Elapsed:        65 * time.Second,
		ElapsedSamples: 50,
		TotalSamples:   100,
	})

	if !display.IsActive() {
		t.Error("Display should be active while speaking")
	}

	status := display.CompactStatus(80)
	for _, want := range []string{"▶", "2/3", "1:05", "two"} {
		if !strings.Contains(status, want) {
			t.Errorf("compact status %q should contain %q", status, want)
		}
	}

	detailed := display.DetailedStatus(80)
	for _, want := range []string{"Speaker", "speaking", "Phrase: 2 of 3, 1 queued", "Text: two", "Elapsed: 1:05", "█"} {
		if !strings.Contains(detailed, want) {
			t.Errorf("detailed status %q should contain %q", detailed, want)
		}
	}
}

func TestStatusDisplayCounts(t *testing.T) {
	display := NewStatusDisplay()
	display.OnSpeakerEvent(tts.Event{Kind: tts.EventQueueBegin})
	display.OnSpeakerEvent(phraseEvent(tts.EventBegin, "a", nil))
	display.OnSpeakerEvent(phraseEvent(tts.EventBegin, "b", nil))
	display.OnSpeakerEvent(phraseEvent(tts.EventBegin, "c", nil))
	display.OnSpeakerEvent(tts.Event{Kind: tts.EventBegin})

	display.OnSpeakerEvent(phraseEvent(tts.EventComplete, "a", nil))
	display.OnSpeakerEvent(phraseEvent(tts.EventComplete, "b", tts.ErrStopped))
	display.OnSpeakerEvent(phraseEvent(tts.EventComplete, "c", errors.New("engine exploded")))

	done, total, failures := display.Counts()
	if done != 3 || total != 3 || failures != 1 {
		t.Errorf("Counts() = %d, %d, %d, want 3, 3, 1", done, total, failures)
	}

	display.OnSpeakerEvent(tts.Event{Kind: tts.EventQueueComplete})
	if display.IsActive() {
		t.Error("Display should be idle after the queue completes")
	}

	status := display.CompactStatus(80)
	if !strings.Contains(status, "engine exploded") {
		t.Errorf("idle status should keep the last failure, got %q", status)
	}

	// A new queue clears the previous run.
	display.OnSpeakerEvent(tts.Event{Kind: tts.EventQueueBegin})
	if _, _, failures := display.Counts(); failures != 0 {
		t.Errorf("failures = %d after a new queue began", failures)
	}
	if status := display.CompactStatus(80); status != "" {
		t.Errorf("compact status = %q, want empty", status)
	}
}

func TestStatusDisplayTruncatesText(t *testing.T) {
	display := NewStatusDisplay()
	display.OnSpeakerEvent(phraseEvent(tts.EventBegin, "x", nil))
	display.Update(tts.Status{
		CurrentState: tts.StateWaitingForLoad,
		SpeakingText: strings.Repeat("long text ", 20),
	})

	status := display.CompactStatus(30)
	if !strings.Contains(status, "⟳") {
		t.Errorf("loading status %q should contain the load icon", status)
	}
	if !strings.Contains(status, "…") {
		t.Errorf("status %q should be truncated", status)
	}
}

func TestProgressBar(t *testing.T) {
	display := NewStatusDisplay()
	display.Update(tts.Status{
		CurrentState:   tts.StatePaused,
		ElapsedSamples: 25,
		TotalSamples:   100,
	})

	if bar := display.ProgressBar(5); bar != "" {
		t.Errorf("narrow bar = %q, want empty", bar)
	}

	bar := display.ProgressBar(20)
	if got := strings.Count(bar, "█"); got != 5 {
		t.Errorf("filled cells = %d, want 5", got)
	}
	if got := strings.Count(bar, "░"); got != 15 {
		t.Errorf("empty cells = %d, want 15", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{9 * time.Second, "0:09"},
		{61 * time.Second, "1:01"},
		{10*time.Minute + 30*time.Second, "10:30"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

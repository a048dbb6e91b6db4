package tts

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsCancellation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"cancelled", ErrCancelled, true},
		{"stopped", ErrStopped, true},
		{"load stopped", ErrLoadStopped, true},
		{"unloaded", ErrClipUnloaded, true},
		{"interrupted", ErrInterrupted, true},
		{"shutdown", ErrShutdown, true},
		{"wrapped", fmt.Errorf("request 3: %w", ErrStopped), true},
		{"load failed", ErrLoadFailed, false},
		{"playback", ErrPlayback, false},
		{"destroyed", ErrClipDestroyed, false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCancellation(tt.err); got != tt.want {
				t.Errorf("IsCancellation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSpeakerError(t *testing.T) {
	tests := []struct {
		name string
		err  *SpeakerError
		want string
	}{
		{"full", NewSpeakerError(ErrPlayback, "player", "play").WithClip("abc"), "player: play: audio playback failed (clip abc)"},
		{"component only", &SpeakerError{Err: ErrNotInitialized, Component: "speaker"}, "speaker: speaker is not initialized"},
		{"no cause", &SpeakerError{Component: "x"}, "unknown speaker error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	wrapped := fmt.Errorf("init: %w", NewSpeakerError(ErrMissingComponent, "speaker", "create"))
	if !errors.Is(wrapped, ErrMissingComponent) {
		t.Error("SpeakerError does not unwrap")
	}
}

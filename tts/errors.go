package tts

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors for the speaker.
var (
	// Speak call errors, returned synchronously and nothing is queued.
	ErrVoiceResolution = errors.New("no usable voice settings")
	ErrEmptyPhrase     = errors.New("no speakable text after processing")
	ErrNotInitialized  = errors.New("speaker is not initialized")

	// ErrMissingComponent is returned by NewSpeaker when a required
	// collaborator is nil.
	ErrMissingComponent = errors.New("missing required component")

	// ErrCancelled marks an intentional stop or unload, as opposed to a
	// genuine failure. Listeners receive it through the abort and cancel
	// events rather than the failure event.
	ErrCancelled = errors.New("cancelled")

	// Reasons that wrap ErrCancelled.
	ErrStopped      = fmt.Errorf("%w: playback stopped manually", ErrCancelled)
	ErrLoadStopped  = fmt.Errorf("%w: loading stopped manually", ErrCancelled)
	ErrClipUnloaded = fmt.Errorf("%w: clip unloaded", ErrCancelled)
	ErrInterrupted  = fmt.Errorf("%w: replaced by a new speak request", ErrCancelled)

	// ErrShutdown is returned by speak calls after Shutdown and aborts
	// whatever is still queued when it runs.
	ErrShutdown = fmt.Errorf("%w: speaker has been shut down", ErrCancelled)

	// Load and playback failures.
	ErrLoadFailed    = errors.New("clip load failed")
	ErrClipMissing   = errors.New("clip missing")
	ErrNoStream      = errors.New("clip has no audio stream")
	ErrClipDestroyed = errors.New("clip stream destroyed during playback")
	ErrPlayback      = errors.New("audio playback failed")
)

// IsCancellation reports whether err means "intentionally stopped". A nil
// error also counts, matching the abort path for requests removed without a
// reason.
func IsCancellation(err error) bool {
	return err == nil || errors.Is(err, ErrCancelled)
}

// SpeakerError provides detailed error information.
type SpeakerError struct {
	Err       error  // The underlying error
	Component string // Component that generated the error
	Action    string // Action being performed when error occurred
	ClipID    string // Clip involved, if any
}

// Error implements the error interface.
func (e *SpeakerError) Error() string {
	if e.Err == nil {
		return "unknown speaker error"
	}
	var b strings.Builder
	if e.Component != "" {
		b.WriteString(e.Component)
		b.WriteString(": ")
	}
	if e.Action != "" {
		b.WriteString(e.Action)
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	if e.ClipID != "" {
		b.WriteString(" (clip ")
		b.WriteString(e.ClipID)
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *SpeakerError) Unwrap() error {
	return e.Err
}

// NewSpeakerError creates a new error with context.
func NewSpeakerError(err error, component, action string) *SpeakerError {
	return &SpeakerError{
		Err:       err,
		Component: component,
		Action:    action,
	}
}

// WithClip records the clip involved.
func (e *SpeakerError) WithClip(clipID string) *SpeakerError {
	e.ClipID = clipID
	return e
}

// Package engines provides text-to-speech engine implementations.
package engines

import (
	"context"
	"io"

	"github.com/dgnsrekt/ttspeaker/tts"
)

// Voice describes a voice an engine offers.
type Voice struct {
	ID       string // Voice identifier
	Name     string // Human-readable name
	Language string // Language code (e.g., "en-US")
	Gender   string // Voice gender
}

// Format is the PCM16 layout an engine produces.
type Format struct {
	SampleRate int
	Channels   int
}

// Synthesizer turns text into PCM16 audio.
type Synthesizer interface {
	// Name identifies the engine in logs and voice settings.
	Name() string
	// Format reports the layout written by Synthesize.
	Format() Format
	// Voices lists the voices the engine offers.
	Voices() []Voice
	// Synthesize writes the audio for text to w, as it is produced. It
	// returns early with ctx.Err() when ctx ends.
	Synthesize(ctx context.Context, text string, voice tts.VoiceSettings, w io.Writer) error
}

package engines

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dgnsrekt/ttspeaker/pkg/logging"
	"github.com/dgnsrekt/ttspeaker/tts"
)

// FallbackSynthesizer wraps a primary engine with automatic fallback to a
// secondary engine when the primary fails consistently.
type FallbackSynthesizer struct {
	primary       Synthesizer
	fallback      Synthesizer
	maxFailures   int
	failures      int
	usingFallback bool
	mu            sync.Mutex
	log           *logging.Logger
}

// NewFallback creates a synthesizer that switches to fallback after
// maxFailures consecutive primary failures. Both engines must produce the
// same format.
func NewFallback(primary, fallback Synthesizer, maxFailures int, log *logging.Logger) (*FallbackSynthesizer, error) {
	if primary.Format() != fallback.Format() {
		return nil, fmt.Errorf("fallback format %+v does not match primary %+v", fallback.Format(), primary.Format())
	}
	if maxFailures < 1 {
		maxFailures = 1
	}
	if log == nil {
		log = logging.Nop()
	}
	return &FallbackSynthesizer{
		primary:     primary,
		fallback:    fallback,
		maxFailures: maxFailures,
		log:         log.Category("engine"),
	}, nil
}

// Name returns the active engine's name.
func (f *FallbackSynthesizer) Name() string {
	return f.active().Name()
}

// Format implements Synthesizer.
func (f *FallbackSynthesizer) Format() Format {
	return f.primary.Format()
}

// Voices returns the active engine's voices.
func (f *FallbackSynthesizer) Voices() []Voice {
	return f.active().Voices()
}

// UsingFallback reports whether the primary has been given up on.
func (f *FallbackSynthesizer) UsingFallback() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usingFallback
}

func (f *FallbackSynthesizer) active() Synthesizer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usingFallback {
		return f.fallback
	}
	return f.primary
}

// Synthesize uses the primary until it has failed maxFailures times in a
// row, then the fallback. A failure that already wrote audio is returned
// as is.
func (f *FallbackSynthesizer) Synthesize(ctx context.Context, text string, voice tts.VoiceSettings, w io.Writer) error {
	if f.UsingFallback() {
		return f.fallback.Synthesize(ctx, text, voice, w)
	}

	cw := &countingWriter{w: w}
	err := f.primary.Synthesize(ctx, text, voice, cw)
	if err == nil {
		f.mu.Lock()
		if f.failures > 0 {
			f.log.Info("primary engine recovered", "failures", f.failures)
			f.failures = 0
		}
		f.mu.Unlock()
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	f.mu.Lock()
	f.failures++
	failures := f.failures
	switchOver := failures >= f.maxFailures
	if switchOver {
		f.usingFallback = true
	}
	f.mu.Unlock()

	f.log.Warn("primary engine failed", "attempt", failures, "max", f.maxFailures, "err", err)
	if !switchOver || cw.n > 0 {
		return err
	}

	f.log.Warn("switching to fallback engine", "engine", f.fallback.Name())
	if ferr := f.fallback.Synthesize(ctx, text, voice, w); ferr != nil {
		return fmt.Errorf("both engines failed: %w", ferr)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

// Package mock provides a deterministic tone engine for tests and demos.
package mock

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/ttspeaker/tts"
	"github.com/dgnsrekt/ttspeaker/tts/engines"
)

// ErrSimulated is returned when the engine is told to fail.
var ErrSimulated = errors.New("simulated synthesis failure")

const chunkFrames = 2048

// Config controls the generated audio.
type Config struct {
	SampleRate     int
	Frequency      float64       // Tone pitch in Hz at voice pitch 0
	WordsPerMinute int           // Speaking rate at voice speed 1
	Delay          time.Duration // Time before the first chunk
	FailureRate    float64       // Chance in [0,1] that a call fails
}

// DefaultConfig returns the default mock configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:     22050,
		Frequency:      440,
		WordsPerMinute: 150,
	}
}

// Engine writes a sine tone whose length follows the word count.
type Engine struct {
	config Config

	mu      sync.Mutex
	failErr error
	rng     *rand.Rand

	calls atomic.Int64
}

// New creates a mock engine.
func New(config Config) *Engine {
	if config.SampleRate <= 0 {
		config.SampleRate = DefaultConfig().SampleRate
	}
	if config.WordsPerMinute <= 0 {
		config.WordsPerMinute = DefaultConfig().WordsPerMinute
	}
	if config.Frequency <= 0 {
		config.Frequency = DefaultConfig().Frequency
	}
	return &Engine{
		config: config,
		rng:    rand.New(rand.NewSource(1)),
	}
}

// Name implements engines.Synthesizer.
func (e *Engine) Name() string { return "mock" }

// Format implements engines.Synthesizer.
func (e *Engine) Format() engines.Format {
	return engines.Format{SampleRate: e.config.SampleRate, Channels: 1}
}

// Voices implements engines.Synthesizer.
func (e *Engine) Voices() []engines.Voice {
	return []engines.Voice{
		{ID: "tone", Name: "Sine Tone", Language: "en-US", Gender: "neutral"},
		{ID: "low", Name: "Low Tone", Language: "en-US", Gender: "male"},
		{ID: "high", Name: "High Tone", Language: "en-GB", Gender: "female"},
	}
}

// SetFailure makes every call fail with err until ClearFailure.
func (e *Engine) SetFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failErr = err
}

// ClearFailure resets the engine to normal operation.
func (e *Engine) ClearFailure() {
	e.SetFailure(nil)
}

// Calls returns the number of Synthesize calls.
func (e *Engine) Calls() int {
	return int(e.calls.Load())
}

// Synthesize implements engines.Synthesizer.
func (e *Engine) Synthesize(ctx context.Context, text string, voice tts.VoiceSettings, w io.Writer) error {
	e.calls.Add(1)

	if err := e.failure(); err != nil {
		return err
	}

	if e.config.Delay > 0 {
		timer := time.NewTimer(e.config.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	frames := int(e.EstimateDuration(text, voice.Speed).Seconds() * float64(e.config.SampleRate))
	freq := e.frequency(voice)
	amp := 0.3 * volumeOrOne(voice.Volume)
	if amp > 1 {
		amp = 1
	}

	buf := make([]byte, chunkFrames*2)
	for start := 0; start < frames; start += chunkFrames {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := chunkFrames
		if frames-start < n {
			n = frames - start
		}
		for i := 0; i < n; i++ {
			t := float64(start+i) / float64(e.config.SampleRate)
			v := int16(amp * math.MaxInt16 * math.Sin(2*math.Pi*freq*t))
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
		}
		if _, err := w.Write(buf[:n*2]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) failure() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failErr != nil {
		return e.failErr
	}
	if e.config.FailureRate > 0 && e.rng.Float64() < e.config.FailureRate {
		return ErrSimulated
	}
	return nil
}

func (e *Engine) frequency(voice tts.VoiceSettings) float64 {
	freq := e.config.Frequency
	switch voice.Voice {
	case "low":
		freq /= 2
	case "high":
		freq *= 2
	}
	// Pitch is in semitones.
	return freq * math.Pow(2, voice.Pitch/12)
}

// EstimateDuration estimates speaking time for text at speed.
func (e *Engine) EstimateDuration(text string, speed float64) time.Duration {
	words := len(strings.Fields(text))
	if words < 1 {
		words = 1
	}
	if speed <= 0 {
		speed = 1
	}
	seconds := float64(words) * 60.0 / float64(e.config.WordsPerMinute) / speed
	return time.Duration(seconds * float64(time.Second))
}

func volumeOrOne(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}

// Package piper runs the Piper TTS binary as a subprocess per request and
// streams its raw PCM output.
package piper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dgnsrekt/ttspeaker/pkg/logging"
	"github.com/dgnsrekt/ttspeaker/tts"
	"github.com/dgnsrekt/ttspeaker/tts/engines"
)

// SampleRate is the output rate of the standard Piper voices.
const SampleRate = 22050

// ErrBinaryNotFound is returned when no piper executable can be located.
var ErrBinaryNotFound = errors.New("piper binary not found")

// Error represents Piper-specific errors.
type Error struct {
	Type    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("piper %s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("piper %s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Config contains Piper engine settings.
type Config struct {
	Binary          string
	Model           string // Model name or path to an .onnx file
	DataDir         string // Directory holding <model>.onnx files
	SpeakerID       int
	LengthScale     float64
	NoiseScale      float64
	NoiseW          float64
	SentenceSilence time.Duration
	SampleRate      int
}

// ConfigFrom maps the speaker configuration onto engine settings.
func ConfigFrom(c tts.PiperConfig, sampleRate int) Config {
	return Config{
		Binary:          c.Binary,
		Model:           c.Model,
		DataDir:         c.DataDir,
		SpeakerID:       c.SpeakerID,
		LengthScale:     c.LengthScale,
		NoiseScale:      c.NoiseScale,
		NoiseW:          c.NoiseW,
		SentenceSilence: c.SentenceSilence,
		SampleRate:      sampleRate,
	}
}

// Engine runs a fresh piper process for each request.
type Engine struct {
	config Config
	binary string
	log    *logging.Logger
}

// New creates a Piper engine after locating the binary.
func New(config Config, log *logging.Logger) (*Engine, error) {
	if log == nil {
		log = logging.Nop()
	}
	binary := findBinary(config.Binary)
	if binary == "" {
		return nil, &Error{Type: "setup", Message: config.Binary, Cause: ErrBinaryNotFound}
	}
	if config.SampleRate <= 0 {
		config.SampleRate = SampleRate
	}
	if config.LengthScale <= 0 {
		config.LengthScale = 1
	}
	return &Engine{
		config: config,
		binary: binary,
		log:    log.Category("piper"),
	}, nil
}

// Name implements engines.Synthesizer.
func (e *Engine) Name() string { return "piper" }

// Format implements engines.Synthesizer.
func (e *Engine) Format() engines.Format {
	return engines.Format{SampleRate: e.config.SampleRate, Channels: 1}
}

// Voices lists the models found in the data directory.
func (e *Engine) Voices() []engines.Voice {
	var voices []engines.Voice
	matches, _ := filepath.Glob(filepath.Join(e.config.DataDir, "*.onnx"))
	for _, m := range matches {
		id := strings.TrimSuffix(filepath.Base(m), ".onnx")
		voices = append(voices, engines.Voice{ID: id, Name: id, Language: languageOf(id)})
	}
	if len(voices) == 0 && e.config.Model != "" {
		id := strings.TrimSuffix(filepath.Base(e.config.Model), ".onnx")
		voices = append(voices, engines.Voice{ID: id, Name: id, Language: languageOf(id)})
	}
	return voices
}

// languageOf reads the language from names like en_US-lessac-medium.
func languageOf(id string) string {
	lang, _, _ := strings.Cut(id, "-")
	return strings.ReplaceAll(lang, "_", "-")
}

// ModelPath resolves a model name to a file. Names without a directory or
// extension are looked up in the data directory.
func (e *Engine) ModelPath(model string) string {
	if model == "" {
		model = e.config.Model
	}
	if strings.ContainsRune(model, filepath.Separator) || strings.HasSuffix(model, ".onnx") {
		return model
	}
	return filepath.Join(e.config.DataDir, model+".onnx")
}

// Args builds the piper command line for voice.
func (e *Engine) Args(voice tts.VoiceSettings) []string {
	lengthScale := e.config.LengthScale
	if voice.Speed > 0 {
		lengthScale /= voice.Speed
	}
	args := []string{
		"--model", e.ModelPath(voice.Voice),
		"--output-raw",
		"--length_scale", strconv.FormatFloat(lengthScale, 'f', 3, 64),
	}
	if e.config.NoiseScale > 0 {
		args = append(args, "--noise_scale", strconv.FormatFloat(e.config.NoiseScale, 'f', 3, 64))
	}
	if e.config.NoiseW > 0 {
		args = append(args, "--noise_w", strconv.FormatFloat(e.config.NoiseW, 'f', 3, 64))
	}
	if e.config.SentenceSilence > 0 {
		args = append(args, "--sentence_silence", strconv.FormatFloat(e.config.SentenceSilence.Seconds(), 'f', 3, 64))
	}
	speaker := e.config.SpeakerID
	if s, ok := voice.Extra["speaker"]; ok {
		if n, err := strconv.Atoi(s); err == nil {
			speaker = n
		}
	}
	if speaker > 0 {
		args = append(args, "--speaker", strconv.Itoa(speaker))
	}
	return args
}

// Synthesize implements engines.Synthesizer. Stdin is set before the
// process starts and stdout streams straight into w.
func (e *Engine) Synthesize(ctx context.Context, text string, voice tts.VoiceSettings, w io.Writer) error {
	args := e.Args(voice)
	e.log.Debug("running piper", "binary", e.binary, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Stdin = strings.NewReader(text + "\n")
	cw := &countingWriter{w: w}
	cmd.Stdout = cw
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "process failed"
		}
		return &Error{Type: "synthesis", Message: msg, Cause: err}
	}
	if cw.n == 0 {
		return &Error{Type: "synthesis", Message: "no audio generated"}
	}
	e.log.Debug("piper finished", "bytes", cw.n)
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

// findBinary tries the configured name, then common install locations.
func findBinary(configured string) string {
	locations := []string{}
	if configured != "" {
		locations = append(locations, configured)
	}
	locations = append(locations,
		"piper",
		"/usr/local/bin/piper",
		"/usr/bin/piper",
		"/opt/piper/piper",
	)
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".local", "bin", "piper"),
			filepath.Join(home, "bin", "piper"),
		)
	}

	for _, loc := range locations {
		if path, err := exec.LookPath(loc); err == nil {
			return path
		}
	}
	return ""
}

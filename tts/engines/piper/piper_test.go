package piper

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/ttspeaker/tts"
)

// fakePiper writes a shell script that behaves like piper.
func fakePiper(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "piper")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestArgs(t *testing.T) {
	e := &Engine{config: Config{
		DataDir:         "/voices",
		Model:           "en_US-lessac-medium",
		LengthScale:     1,
		NoiseScale:      0.667,
		SentenceSilence: 200 * time.Millisecond,
		SpeakerID:       2,
	}}

	tests := []struct {
		name     string
		voice    tts.VoiceSettings
		contains []string
	}{
		{
			name:     "defaults",
			voice:    tts.VoiceSettings{},
			contains: []string{"--model /voices/en_US-lessac-medium.onnx", "--output-raw", "--length_scale 1.000", "--noise_scale 0.667", "--sentence_silence 0.200", "--speaker 2"},
		},
		{
			name:     "speed shortens length scale",
			voice:    tts.VoiceSettings{Speed: 2},
			contains: []string{"--length_scale 0.500"},
		},
		{
			name:     "voice path used as is",
			voice:    tts.VoiceSettings{Voice: "/models/x.onnx"},
			contains: []string{"--model /models/x.onnx"},
		},
		{
			name:     "extra speaker overrides config",
			voice:    tts.VoiceSettings{Extra: map[string]string{"speaker": "5"}},
			contains: []string{"--speaker 5"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(e.Args(tt.voice), " ")
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Args() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestLanguageOf(t *testing.T) {
	if got := languageOf("en_US-lessac-medium"); got != "en-US" {
		t.Errorf("languageOf() = %q, want en-US", got)
	}
}

func TestSynthesizeStreamsStdout(t *testing.T) {
	bin := fakePiper(t, `cat`)
	e, err := New(Config{Binary: bin}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var buf bytes.Buffer
	if err := e.Synthesize(context.Background(), "hello", tts.VoiceSettings{}, &buf); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got := buf.String(); got != "hello\n" {
		t.Errorf("stdout = %q, want %q", got, "hello\n")
	}
}

func TestSynthesizeReportsStderr(t *testing.T) {
	bin := fakePiper(t, `echo "model missing" >&2; exit 3`)
	e, err := New(Config{Binary: bin}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var buf bytes.Buffer
	err = e.Synthesize(context.Background(), "hello", tts.VoiceSettings{}, &buf)
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("Synthesize() error = %v, want *Error", err)
	}
	if !strings.Contains(perr.Message, "model missing") {
		t.Errorf("Message = %q", perr.Message)
	}
}

func TestSynthesizeNoOutput(t *testing.T) {
	bin := fakePiper(t, `cat >/dev/null`)
	e, err := New(Config{Binary: bin}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	var buf bytes.Buffer
	if err := e.Synthesize(context.Background(), "hello", tts.VoiceSettings{}, &buf); err == nil {
		t.Error("Synthesize() with no output succeeded")
	}
}

func TestSynthesizeCancelled(t *testing.T) {
	bin := fakePiper(t, `sleep 10`)
	e, err := New(Config{Binary: bin}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	if err := e.Synthesize(ctx, "hello", tts.VoiceSettings{}, &buf); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Synthesize() error = %v, want deadline exceeded", err)
	}
}

func TestNewMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	_, err := New(Config{Binary: "definitely-not-piper"}, nil)
	if err == nil {
		// Common system paths may still hold a real piper.
		t.Skip("piper installed on this machine")
	}
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Errorf("New() error = %v, want ErrBinaryNotFound", err)
	}
}

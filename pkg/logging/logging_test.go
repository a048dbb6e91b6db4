package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	sink := NewMemorySink()
	logger := New(WithSink(sink), WithLevel(InfoLevel))

	logger.Debug("hidden")
	logger.Info("shown")
	logger.Warn("warned")

	got := sink.Messages()
	if len(got) != 2 || got[0] != "shown" || got[1] != "warned" {
		t.Errorf("Expected [shown warned], got %v", got)
	}

	logger.SetLevel(DebugLevel)
	logger.Debug("now visible")
	if n := len(sink.Entries()); n != 3 {
		t.Errorf("Expected 3 entries after lowering level, got %d", n)
	}
}

func TestLoggerCategoryLevels(t *testing.T) {
	sink := NewMemorySink()
	logger := New(
		WithSink(sink),
		WithLevel(WarnLevel),
		WithCategoryLevel("speaker", DebugLevel),
	)

	speaker := logger.Category("speaker")
	loader := logger.Category("loader")

	speaker.Debug("speaker debug")
	loader.Info("loader info")
	loader.Error("loader error")

	entries := sink.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Category != "speaker" || entries[1].Category != "loader" {
		t.Errorf("Unexpected categories: %q, %q", entries[0].Category, entries[1].Category)
	}

	logger.SetCategoryLevel("loader", DebugLevel)
	if !loader.Enabled(DebugLevel) {
		t.Error("Expected loader debug to be enabled after SetCategoryLevel")
	}
}

func TestLoggerCorrelationAndFields(t *testing.T) {
	sink := NewMemorySink()
	logger := New(WithSink(sink), WithLevel(DebugLevel))

	child := logger.Category("queue").WithCorrelationID("req-1").With("clip", "abc")
	child.Info("enqueued", "size", 2)

	entries := sink.Entries()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.CorrelationID != "req-1" {
		t.Errorf("Expected correlation id req-1, got %q", e.CorrelationID)
	}

	kv := e.KeyVals()
	want := []interface{}{"category", "queue", "correlation_id", "req-1", "clip", "abc", "size", 2}
	if len(kv) != len(want) {
		t.Fatalf("Expected %d keyvals, got %d: %v", len(want), len(kv), kv)
	}
	for i := range want {
		if kv[i] != want[i] {
			t.Errorf("keyval %d: expected %v, got %v", i, want[i], kv[i])
		}
	}

	// The parent must not inherit fields from the child.
	logger.Info("plain")
	if f := sink.Entries()[1].Fields; len(f) != 0 {
		t.Errorf("Expected parent to have no fields, got %v", f)
	}
}

func TestLoggerGeneratesCorrelationID(t *testing.T) {
	logger := Nop().WithCorrelationID("")
	if logger.CorrelationID() == "" {
		t.Error("Expected a generated correlation id")
	}
	if a, b := NewCorrelationID(), NewCorrelationID(); a == b {
		t.Error("Expected distinct correlation ids")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := Nop()
	if logger.Enabled(ErrorLevel) {
		t.Error("Nop logger should not be enabled")
	}
	logger.Error("nothing happens")
}

func TestLogf(t *testing.T) {
	sink := NewMemorySink()
	logger := New(WithSink(sink))
	logger.Logf(InfoLevel, "queued %d phrases", 3)

	if got := sink.Messages(); len(got) != 1 || got[0] != "queued 3 phrases" {
		t.Errorf("Unexpected messages: %v", got)
	}
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithSink(NewConsoleSink(&buf, DebugLevel)), WithLevel(DebugLevel))
	logger.Category("speaker").Info("speaking", "text", "hello")

	out := buf.String()
	for _, want := range []string{"speaking", "category", "speaker", "hello"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected console output to contain %q, got %q", want, out)
		}
	}
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "speaker.log")
	sink, err := NewFileSink(path, DebugLevel)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}

	logger := New(WithSink(sink), WithLevel(DebugLevel))
	logger.WithCorrelationID("abc").Warn("load failed", "err", "boom")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "load failed") || !strings.Contains(string(data), "correlation_id=abc") {
		t.Errorf("Unexpected file contents: %q", data)
	}

	// Writes after close are dropped.
	sink.Write(Entry{Message: "late"})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"info", InfoLevel, false},
		{"warn", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Expected unchanged string, got %q", got)
	}
	if got := Truncate("a much longer sentence", 10); len(got) > 10 || !strings.HasSuffix(got, "...") {
		t.Errorf("Expected truncated string with tail, got %q", got)
	}
}

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Sink receives log entries. Implementations must be safe for concurrent
// use.
type Sink interface {
	Write(e Entry)
	Close() error
}

// ConsoleSink writes human readable entries using a charm logger.
type ConsoleSink struct {
	logger *log.Logger
}

// NewConsoleSink creates a sink writing to w (stderr when nil).
func NewConsoleSink(w io.Writer, level Level) *ConsoleSink {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleSink{
		logger: log.NewWithOptions(w, log.Options{
			Level:           level,
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
		}),
	}
}

// Write implements Sink.
func (s *ConsoleSink) Write(e Entry) {
	s.logger.Log(e.Level, e.Message, e.KeyVals()...)
}

// Close implements Sink.
func (s *ConsoleSink) Close() error { return nil }

// FileSink appends logfmt entries to a file.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	logger *log.Logger
}

// NewFileSink opens (or creates) path for appending.
func NewFileSink(path string, level Level) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &FileSink{
		file: file,
		logger: log.NewWithOptions(file, log.Options{
			Level:           level,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Formatter:       log.LogfmtFormatter,
		}),
	}, nil
}

// Write implements Sink.
func (s *FileSink) Write(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return
	}
	s.logger.Log(e.Level, e.Message, e.KeyVals()...)
}

// Close implements Sink.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// MemorySink keeps entries in memory. Useful in tests.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemorySink creates an empty memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write implements Sink.
func (s *MemorySink) Write(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// Close implements Sink.
func (s *MemorySink) Close() error { return nil }

// Entries returns a copy of the recorded entries.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Messages returns the recorded messages in order.
func (s *MemorySink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Message)
	}
	return out
}

// Reset drops every recorded entry.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

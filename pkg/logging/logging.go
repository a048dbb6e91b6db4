package logging

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/muesli/reflow/truncate"
)

// Level is a log severity. It aliases the charm log level so callers can
// pass log.DebugLevel and friends directly.
type Level = log.Level

// Log levels.
const (
	DebugLevel = log.DebugLevel
	InfoLevel  = log.InfoLevel
	WarnLevel  = log.WarnLevel
	ErrorLevel = log.ErrorLevel
)

// Entry is a single log record delivered to every sink.
type Entry struct {
	Time          time.Time
	Level         Level
	Category      string
	CorrelationID string
	Message       string
	Fields        []interface{}
}

// KeyVals returns the entry fields prefixed with its category and
// correlation id, ready for a key/value logger.
func (e Entry) KeyVals() []interface{} {
	kv := make([]interface{}, 0, len(e.Fields)+4)
	if e.Category != "" {
		kv = append(kv, "category", e.Category)
	}
	if e.CorrelationID != "" {
		kv = append(kv, "correlation_id", e.CorrelationID)
	}
	return append(kv, e.Fields...)
}

// core is shared by a logger and every logger derived from it.
type core struct {
	mu             sync.RWMutex
	sinks          []Sink
	level          Level
	categoryLevels map[string]Level
	now            func() time.Time
}

// Logger writes entries to a set of sinks. Derived loggers (Category,
// WithCorrelationID, With) share sinks and level configuration with their
// parent. A Logger is safe for concurrent use.
type Logger struct {
	core          *core
	category      string
	correlationID string
	fields        []interface{}
}

// Option configures a Logger created with New.
type Option func(*core)

// WithSink adds a sink.
func WithSink(s Sink) Option {
	return func(c *core) {
		c.sinks = append(c.sinks, s)
	}
}

// WithLevel sets the default minimum level.
func WithLevel(level Level) Option {
	return func(c *core) {
		c.level = level
	}
}

// WithCategoryLevel overrides the minimum level for one category.
func WithCategoryLevel(category string, level Level) Option {
	return func(c *core) {
		c.categoryLevels[category] = level
	}
}

// New creates a logger. Without sinks it discards everything.
func New(opts ...Option) *Logger {
	c := &core{
		level:          InfoLevel,
		categoryLevels: make(map[string]Level),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return &Logger{core: c}
}

// Nop returns a logger without sinks.
func Nop() *Logger {
	return New()
}

// Category returns a logger tagging entries with the given category.
func (l *Logger) Category(name string) *Logger {
	child := l.clone()
	child.category = name
	return child
}

// WithCorrelationID returns a logger tagging entries with id. An empty id
// generates a fresh one.
func (l *Logger) WithCorrelationID(id string) *Logger {
	if id == "" {
		id = NewCorrelationID()
	}
	child := l.clone()
	child.correlationID = id
	return child
}

// With returns a logger that adds keyvals to every entry.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	child := l.clone()
	child.fields = append(child.fields, keyvals...)
	return child
}

// CategoryName returns the category of the logger.
func (l *Logger) CategoryName() string { return l.category }

// CorrelationID returns the correlation id of the logger, if any.
func (l *Logger) CorrelationID() string { return l.correlationID }

// SetLevel changes the default minimum level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.level = level
}

// SetCategoryLevel changes the minimum level of one category at runtime.
func (l *Logger) SetCategoryLevel(category string, level Level) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.categoryLevels[category] = level
}

// AddSink attaches another sink to the logger and all of its relatives.
func (l *Logger) AddSink(s Sink) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.sinks = append(l.core.sinks, s)
}

// Enabled reports whether an entry at level would be written.
func (l *Logger) Enabled(level Level) bool {
	l.core.mu.RLock()
	defer l.core.mu.RUnlock()
	return l.enabledLocked(level)
}

func (l *Logger) enabledLocked(level Level) bool {
	if len(l.core.sinks) == 0 {
		return false
	}
	threshold := l.core.level
	if lvl, ok := l.core.categoryLevels[l.category]; ok {
		threshold = lvl
	}
	return level >= threshold
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, keyvals ...interface{}) { l.Log(DebugLevel, msg, keyvals...) }

// Info logs at info level.
func (l *Logger) Info(msg string, keyvals ...interface{}) { l.Log(InfoLevel, msg, keyvals...) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, keyvals ...interface{}) { l.Log(WarnLevel, msg, keyvals...) }

// Error logs at error level.
func (l *Logger) Error(msg string, keyvals ...interface{}) { l.Log(ErrorLevel, msg, keyvals...) }

// Logf formats a message and logs it at level.
func (l *Logger) Logf(level Level, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}
	l.Log(level, fmt.Sprintf(format, args...))
}

// Log writes one entry to every sink.
func (l *Logger) Log(level Level, msg string, keyvals ...interface{}) {
	l.core.mu.RLock()
	if !l.enabledLocked(level) {
		l.core.mu.RUnlock()
		return
	}
	sinks := make([]Sink, len(l.core.sinks))
	copy(sinks, l.core.sinks)
	now := l.core.now()
	l.core.mu.RUnlock()

	fields := make([]interface{}, 0, len(l.fields)+len(keyvals))
	fields = append(fields, l.fields...)
	fields = append(fields, keyvals...)

	e := Entry{
		Time:          now,
		Level:         level,
		Category:      l.category,
		CorrelationID: l.correlationID,
		Message:       msg,
		Fields:        fields,
	}
	for _, s := range sinks {
		s.Write(e)
	}
}

// Close closes every sink, returning the first error.
func (l *Logger) Close() error {
	l.core.mu.Lock()
	sinks := l.core.sinks
	l.core.sinks = nil
	l.core.mu.Unlock()

	var first error
	for _, s := range sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (l *Logger) clone() *Logger {
	fields := make([]interface{}, len(l.fields))
	copy(fields, l.fields)
	return &Logger{
		core:          l.core,
		category:      l.category,
		correlationID: l.correlationID,
		fields:        fields,
	}
}

// NewCorrelationID returns a random correlation id.
func NewCorrelationID() string {
	return uuid.NewString()
}

// ParseLevel parses a level name such as "debug" or "warn".
func ParseLevel(s string) (Level, error) {
	return log.ParseLevel(s)
}

// Truncate shortens s to at most width cells for log fields.
func Truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	return truncate.StringWithTail(s, uint(width), "...")
}

package audio

import (
	"errors"
	"strings"
	"sync"

	"github.com/dgnsrekt/ttspeaker/tts"
)

// MockPlayer implements tts.AudioPlayer for testing purposes. Time only
// moves when the test calls Advance, so sample accounting is exact.
type MockPlayer struct {
	mu      sync.Mutex
	state   PlayerState
	stream  tts.AudioStream
	samples int
	errs    []string

	// Test configuration
	InitErr error
	PlayErr error

	// Test callbacks
	callbacks MockCallbacks

	// Metrics for testing
	playCount   int
	pauseCount  int
	resumeCount int
	stopCount   int
}

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnPlay   func(stream tts.AudioStream, startSample int)
	OnPause  func()
	OnResume func()
	OnStop   func()
}

// NewMockPlayer creates a mock player with optional callbacks.
func NewMockPlayer(callbacks MockCallbacks) *MockPlayer {
	return &MockPlayer{callbacks: callbacks}
}

// Init implements tts.AudioPlayer.
func (m *MockPlayer) Init() error {
	return m.InitErr
}

// Play implements tts.AudioPlayer.
func (m *MockPlayer) Play(stream tts.AudioStream, startSample int) error {
	m.mu.Lock()
	if m.PlayErr != nil {
		m.mu.Unlock()
		return m.PlayErr
	}
	if stream == nil {
		m.mu.Unlock()
		return errors.New("nil stream")
	}
	m.stream = stream
	m.samples = startSample
	m.state = StatePlaying
	m.playCount++
	cb := m.callbacks.OnPlay
	m.mu.Unlock()

	if cb != nil {
		cb(stream, startSample)
	}
	return nil
}

// Pause implements tts.AudioPlayer.
func (m *MockPlayer) Pause() {
	m.mu.Lock()
	m.pauseCount++
	if m.state == StatePlaying {
		m.state = StatePaused
	}
	cb := m.callbacks.OnPause
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Resume implements tts.AudioPlayer.
func (m *MockPlayer) Resume() {
	m.mu.Lock()
	m.resumeCount++
	if m.state == StatePaused {
		m.state = StatePlaying
	}
	cb := m.callbacks.OnResume
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Stop implements tts.AudioPlayer.
func (m *MockPlayer) Stop() {
	m.mu.Lock()
	m.stopCount++
	m.state = StateStopped
	m.stream = nil
	m.samples = 0
	cb := m.callbacks.OnStop
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// IsPlaying implements tts.AudioPlayer.
func (m *MockPlayer) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StatePlaying
}

// ElapsedSamples implements tts.AudioPlayer.
func (m *MockPlayer) ElapsedSamples() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples
}

// ClipStream implements tts.AudioPlayer.
func (m *MockPlayer) ClipStream() tts.AudioStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream
}

// PlaybackErrors implements tts.AudioPlayer.
func (m *MockPlayer) PlaybackErrors() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.errs, "; ")
}

// Advance plays n sample frames. Reaching the end of a complete stream
// stops the mock the way a real device drains.
func (m *MockPlayer) Advance(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePlaying || m.stream == nil {
		return
	}
	m.samples += n
	if m.stream.IsComplete() && m.samples >= m.stream.TotalSamples() {
		m.samples = m.stream.TotalSamples()
		m.state = StateStopped
	}
}

// Finish plays the rest of the stream.
func (m *MockPlayer) Finish() {
	m.mu.Lock()
	var total int
	if m.stream != nil {
		total = m.stream.TotalSamples()
	}
	remaining := total - m.samples
	m.mu.Unlock()
	if remaining < 1 {
		remaining = 1
	}
	m.Advance(remaining)
}

// ForceState changes the state behind the controller's back, as an
// external actor touching the device would.
func (m *MockPlayer) ForceState(state PlayerState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

// DropStream forgets the stream while keeping the state, simulating a
// destroyed clip.
func (m *MockPlayer) DropStream() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stream = nil
}

// AddError records a playback error.
func (m *MockPlayer) AddError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, msg)
}

// State returns the player state.
func (m *MockPlayer) State() PlayerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// MockStats counts calls for assertions.
type MockStats struct {
	Plays, Pauses, Resumes, Stops int
}

// Stats returns call counts.
func (m *MockPlayer) Stats() MockStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MockStats{
		Plays:   m.playCount,
		Pauses:  m.pauseCount,
		Resumes: m.resumeCount,
		Stops:   m.stopCount,
	}
}

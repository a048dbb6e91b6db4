// Package audio provides PCM streams and audio players for the speaker.
package audio

import (
	"errors"
	"io"
	"sync"
	"time"
)

// BytesPerSample is the size of one PCM16 sample.
const BytesPerSample = 2

var (
	// ErrStreamComplete is returned when appending to a finished stream.
	ErrStreamComplete = errors.New("stream is complete")
	// ErrStreamClosed is returned when using a closed stream.
	ErrStreamClosed = errors.New("stream is closed")
)

// Stream is signed 16-bit little endian PCM that may still be growing while
// it plays. It implements tts.AudioStream.
type Stream struct {
	mu         sync.Mutex
	grew       *sync.Cond
	data       []byte
	sampleRate int
	channels   int
	complete   bool
	closed     bool
}

// NewStream creates an empty stream that grows through Append.
func NewStream(sampleRate, channels int) *Stream {
	if channels < 1 {
		channels = 1
	}
	s := &Stream{sampleRate: sampleRate, channels: channels}
	s.grew = sync.NewCond(&s.mu)
	return s
}

// NewStreamFromPCM creates a complete stream holding a copy of pcm.
func NewStreamFromPCM(pcm []byte, sampleRate, channels int) *Stream {
	s := NewStream(sampleRate, channels)
	s.data = make([]byte, len(pcm))
	copy(s.data, pcm)
	s.complete = true
	return s
}

// Append adds PCM bytes to the end of the stream.
func (s *Stream) Append(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrStreamClosed
	case s.complete:
		return ErrStreamComplete
	}
	s.data = append(s.data, pcm...)
	s.grew.Broadcast()
	return nil
}

// Write implements io.Writer so engines can stream PCM straight in.
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.Append(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Complete marks the stream as fully written.
func (s *Stream) Complete() {
	s.mu.Lock()
	s.complete = true
	s.mu.Unlock()
	s.grew.Broadcast()
}

// Close releases the audio data. Readers see io.EOF.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.complete = true
	s.data = nil
	s.mu.Unlock()
	s.grew.Broadcast()
}

// IsClosed reports whether Close was called.
func (s *Stream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SampleRate returns samples per second per channel.
func (s *Stream) SampleRate() int { return s.sampleRate }

// Channels returns the channel count.
func (s *Stream) Channels() int { return s.channels }

// IsComplete reports whether all audio has been written.
func (s *Stream) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete
}

// TotalSamples returns the number of sample frames written so far.
func (s *Stream) TotalSamples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data) / s.frameSize()
}

// Duration returns the playing time of the samples written so far.
func (s *Stream) Duration() time.Duration {
	return SamplesToDuration(s.TotalSamples(), s.sampleRate)
}

// Bytes returns a copy of the PCM written so far.
func (s *Stream) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

func (s *Stream) frameSize() int {
	return s.channels * BytesPerSample
}

// NewReader returns a reader starting at sample frame start. Reads block
// while the stream is incomplete and no new data is available.
func (s *Stream) NewReader(start int) *StreamReader {
	if start < 0 {
		start = 0
	}
	return &StreamReader{s: s, off: start * s.frameSize()}
}

// StreamReader reads PCM from a Stream and counts what it hands out.
type StreamReader struct {
	s   *Stream
	off int
}

// Read implements io.Reader.
func (r *StreamReader) Read(p []byte) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.closed && r.off >= len(s.data) && !s.complete {
		s.grew.Wait()
	}
	if s.closed || r.off >= len(s.data) {
		return 0, io.EOF
	}

	// Hand out whole frames only.
	n := copy(p, s.data[r.off:])
	n -= n % s.frameSize()
	if n == 0 && len(p) > 0 {
		n = copy(p, s.data[r.off:])
	}
	r.off += n
	return n, nil
}

// Offset returns the byte offset of the next read.
func (r *StreamReader) Offset() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.off
}

// SamplesToDuration converts a sample frame count to time.
func SamplesToDuration(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// DurationToSamples converts time to a sample frame count.
func DurationToSamples(d time.Duration, sampleRate int) int {
	return int(d * time.Duration(sampleRate) / time.Second)
}

package audio

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgnsrekt/ttspeaker/tts"
	"github.com/ebitengine/oto/v3"
)

// PlayerState represents the current state of a player.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StatePaused
	StateClosed
)

// String returns the string representation of the state.
func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int     // Device sample rate; streams must match it
	Channels   int     // 1 = mono, 2 = stereo
	Volume     float64 // 0.0 to 1.0
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 22050,
		Channels:   1,
		Volume:     1.0,
	}
}

// oto allows one context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
	otoOpts oto.NewContextOptions
)

func sharedContext(cfg PlayerConfig) (*oto.Context, error) {
	otoOnce.Do(func() {
		otoOpts = oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       oto.FormatSignedInt16LE,
		}
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(&otoOpts)
		if otoErr == nil {
			<-ready
		}
	})
	if otoErr != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", otoErr)
	}
	if otoOpts.SampleRate != cfg.SampleRate || otoOpts.ChannelCount != cfg.Channels {
		return nil, fmt.Errorf("audio device already opened at %d Hz x%d", otoOpts.SampleRate, otoOpts.ChannelCount)
	}
	return otoCtx, nil
}

// Player implements tts.AudioPlayer on top of oto.
type Player struct {
	cfg PlayerConfig

	mu      sync.Mutex
	context *oto.Context
	player  *oto.Player
	stream  *Stream
	reader  *StreamReader
	start   int
	state   PlayerState
	errs    []string
}

// NewPlayer creates a player. The audio device is opened by Init.
func NewPlayer(cfg PlayerConfig) (*Player, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Player{cfg: cfg}, nil
}

func validateConfig(cfg PlayerConfig) error {
	if cfg.SampleRate < 8000 || cfg.SampleRate > 48000 {
		return fmt.Errorf("sample rate must be between 8000 and 48000 Hz, got %d", cfg.SampleRate)
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", cfg.Channels)
	}
	if cfg.Volume < 0 || cfg.Volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", cfg.Volume)
	}
	return nil
}

// Init opens the audio device.
func (p *Player) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.context != nil {
		return nil
	}
	ctx, err := sharedContext(p.cfg)
	if err != nil {
		return err
	}
	p.context = ctx
	return nil
}

// Play starts stream at sample frame startSample, replacing anything
// already playing.
func (p *Player) Play(stream tts.AudioStream, startSample int) error {
	s, ok := stream.(*Stream)
	if !ok || s == nil {
		return fmt.Errorf("unsupported stream type %T", stream)
	}
	if s.SampleRate() != p.cfg.SampleRate || s.Channels() != p.cfg.Channels {
		return fmt.Errorf("stream format %d Hz x%d does not match device %d Hz x%d",
			s.SampleRate(), s.Channels(), p.cfg.SampleRate, p.cfg.Channels)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.context == nil:
		return errors.New("player is not initialized")
	case p.state == StateClosed:
		return errors.New("player is closed")
	}

	p.stopLocked()

	p.reader = s.NewReader(startSample)
	p.player = p.context.NewPlayer(p.reader)
	p.player.SetVolume(p.cfg.Volume)
	p.stream = s
	p.start = startSample
	p.errs = nil
	p.player.Play()
	p.state = StatePlaying
	return nil
}

// Pause holds playback.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil || p.state != StatePlaying {
		return
	}
	p.player.Pause()
	p.state = StatePaused
}

// Resume continues held playback.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil || p.state != StatePaused {
		return
	}
	p.player.Play()
	p.state = StatePlaying
}

// Stop ends playback and releases the oto player.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.player != nil {
		p.player.Pause()
		if err := p.player.Close(); err != nil {
			p.errs = append(p.errs, err.Error())
		}
		p.player = nil
	}
	p.stream = nil
	p.reader = nil
	p.start = 0
	if p.state != StateClosed {
		p.state = StateStopped
	}
}

// IsPlaying reports whether audio is coming out of the device.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.player != nil && p.state == StatePlaying && p.player.IsPlaying()
}

// ElapsedSamples returns the sample frame the listener is hearing: what
// the reader has handed to oto minus what oto still buffers.
func (p *Player) ElapsedSamples() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil || p.reader == nil {
		return 0
	}
	frame := p.cfg.Channels * BytesPerSample
	played := p.reader.Offset() - p.player.BufferedSize()
	if played < 0 {
		played = 0
	}
	return played / frame
}

// ClipStream returns the stream being played, or nil.
func (p *Player) ClipStream() tts.AudioStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil || p.stream.IsClosed() {
		return nil
	}
	return p.stream
}

// PlaybackErrors returns errors reported since the last Play.
func (p *Player) PlaybackErrors() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	errs := p.errs
	if p.player != nil {
		if err := p.player.Err(); err != nil {
			errs = append(errs[:len(errs):len(errs)], err.Error())
		}
	}
	return strings.Join(errs, "; ")
}

// State returns the player state.
func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Close stops playback. The shared device stays open for the process.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.state = StateClosed
	return nil
}

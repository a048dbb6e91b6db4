package tts

import (
	"fmt"
	"time"

	"github.com/dgnsrekt/ttspeaker/pkg/logging"
)

// PlaybackController owns the speaking slot. It takes the queue head once
// its clip is loaded, drives the AudioPlayer and polls for completion from
// Update. It is confined to the main context.
type PlaybackController struct {
	player AudioPlayer
	queue  *RequestQueue
	d      *dispatcher
	log    *logging.Logger

	machine *StateMachine
	current *SpeakRequest
	paused  bool

	elapsed time.Duration
	samples int
	lastErr error

	advancing bool
	again     bool

	// onIdle runs when an advance leaves nothing speaking.
	onIdle func()
	// onStateChange runs after every state transition.
	onStateChange func(StateType)
}

func newPlaybackController(player AudioPlayer, q *RequestQueue, d *dispatcher, log *logging.Logger) *PlaybackController {
	c := &PlaybackController{
		player:  player,
		queue:   q,
		d:       d,
		log:     log,
		machine: NewStateMachine(),
	}
	c.setupStateMachine()
	return c
}

func (c *PlaybackController) setupStateMachine() {
	for _, s := range []StateType{StateIdle, StateWaitingForLoad, StateSpeaking, StatePaused} {
		state := s
		c.machine.OnEnter(state, func() {
			c.log.Debug("controller state", "state", state.String())
			if c.onStateChange != nil {
				c.onStateChange(state)
			}
		})
	}
}

func (c *PlaybackController) transition(to StateType) {
	if !c.machine.Transition(to) {
		c.log.Warn("invalid controller transition", "from", c.machine.Current().String(), "to", to.String())
	}
}

// State returns the controller state.
func (c *PlaybackController) State() StateType { return c.machine.Current() }

// Current returns the request in the speaking slot, or nil.
func (c *PlaybackController) Current() *SpeakRequest { return c.current }

// IsPaused reports the pause flag.
func (c *PlaybackController) IsPaused() bool { return c.paused }

// Elapsed returns the unpaused time since the current clip started.
func (c *PlaybackController) Elapsed() time.Duration { return c.elapsed }

// ElapsedSamples returns the monotonic sample position of the current clip.
func (c *PlaybackController) ElapsedSamples() int { return c.samples }

// Advance moves the queue forward: finalizes heads that can never play,
// waits on a head that is still loading, or starts the loaded head. A call
// made while an advance is running is folded into that advance.
func (c *PlaybackController) Advance() {
	if c.advancing {
		c.again = true
		return
	}
	c.advancing = true
	defer func() { c.advancing = false }()

	for {
		c.again = false
		c.advanceOnce()
		if !c.again {
			break
		}
	}

	if c.current == nil && c.queue.Len() == 0 && c.onIdle != nil {
		c.onIdle()
	}
}

func (c *PlaybackController) advanceOnce() {
	for c.current == nil {
		head, ok := c.queue.Peek()
		if !ok {
			c.transition(StateIdle)
			return
		}

		if head.status == RequestLoading {
			c.transition(StateWaitingForLoad)
			return
		}

		if !head.marker {
			if err := clipReadiness(head.clip); err != nil {
				c.queue.RemoveMatching(func(r *SpeakRequest) bool { return r == head }, err)
				continue
			}
		}

		req, ok := c.queue.DequeueIfLoaded()
		if !ok {
			return
		}
		c.start(req)
	}
}

func (c *PlaybackController) start(req *SpeakRequest) {
	c.current = req
	req.status = RequestSpeaking
	c.elapsed = 0
	c.samples = 0
	if c.paused {
		c.transition(StatePaused)
	} else {
		c.transition(StateSpeaking)
	}

	c.d.emit(req, EventPlaybackStart, nil)
	if c.current != req {
		// A listener stopped it already.
		return
	}

	if req.marker {
		c.retire(EventPlaybackComplete, nil, false)
		return
	}

	if err := c.player.Play(req.clip.Stream(), 0); err != nil {
		c.retire(EventPlaybackCancelled, fmt.Errorf("%w: %v", ErrPlayback, err), true)
		return
	}
	if c.paused {
		c.player.Pause()
	}
	c.d.metrics.observePlaybackStart()
}

// retire empties the speaking slot and fires the outcome. It does not
// advance.
func (c *PlaybackController) retire(outcome EventKind, err error, stopPlayer bool) {
	req := c.current
	if req == nil {
		return
	}
	c.current = nil
	if stopPlayer {
		c.player.Stop()
	}
	if !req.marker {
		c.d.metrics.observePlayback(c.elapsed)
	}
	c.transition(StateIdle)
	c.lastErr = err
	c.d.finish(req, outcome, err)
}

// StopSpeaking retires the speaking request as stopped manually and moves
// on to the next one. It does nothing when the slot is empty.
func (c *PlaybackController) StopSpeaking() bool {
	return c.stopWith(ErrStopped)
}

func (c *PlaybackController) stopWith(reason error) bool {
	if c.current == nil {
		return false
	}
	c.log.Debug("stop speaking", "request", c.current.ID, "reason", reason)
	c.retire(EventPlaybackCancelled, reason, true)
	c.Advance()
	return true
}

// Cancel retires the speaking request with reason if it is req.
func (c *PlaybackController) Cancel(req *SpeakRequest, reason error) bool {
	if req == nil || c.current != req {
		return false
	}
	return c.stopWith(reason)
}

// Pause sets the pause flag and holds the player.
func (c *PlaybackController) Pause() {
	if c.paused {
		return
	}
	c.paused = true
	if c.current != nil {
		if !c.current.marker {
			c.player.Pause()
		}
		c.transition(StatePaused)
	}
}

// Resume clears the pause flag and lets the player continue from where it
// was held.
func (c *PlaybackController) Resume() {
	if !c.paused {
		return
	}
	c.paused = false
	if c.current != nil {
		if !c.current.marker {
			c.player.Resume()
		}
		c.transition(StateSpeaking)
	}
}

// Update is the completion watch. Call it once per tick from the main
// context with the time since the previous tick.
func (c *PlaybackController) Update(dt time.Duration) {
	req := c.current
	if req == nil {
		if c.machine.Current() == StateWaitingForLoad {
			c.Advance()
		}
		return
	}

	clip := req.clip
	if clip == nil || clip.State() == ClipUnloaded {
		c.log.Warn("clip unloaded during playback", "request", req.ID)
		c.stopWith(ErrClipUnloaded)
		return
	}

	if c.paused {
		if c.player.IsPlaying() {
			c.log.Debug("player running while paused, pausing again", "request", req.ID)
			c.player.Pause()
		}
	} else {
		c.elapsed += dt
	}

	if s := c.player.ElapsedSamples(); s > c.samples {
		c.samples = s
	}

	stream := clip.Stream()
	ended := stream != nil && stream.IsComplete() && c.samples >= stream.TotalSamples()
	if !ended && !c.paused && !c.player.IsPlaying() {
		// Paused or stopped behind our back. Either way the clip is done.
		total := 0
		if stream != nil {
			total = stream.TotalSamples()
		}
		c.log.Warn("player stopped before the clip ended", "request", req.ID, "samples", c.samples, "total", total)
		ended = true
	}
	if ended {
		if errs := c.player.PlaybackErrors(); errs != "" {
			c.log.Warn("playback reported errors", "request", req.ID, "errors", errs)
		}
		c.retire(EventPlaybackComplete, nil, true)
		c.Advance()
		return
	}

	if stream == nil || c.player.ClipStream() == nil {
		c.log.Warn("clip stream destroyed during playback", "request", req.ID)
		c.stopWith(ErrClipDestroyed)
	}
}

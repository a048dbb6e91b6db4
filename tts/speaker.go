package tts

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/dgnsrekt/ttspeaker/pkg/logging"
)

// Options configures a Speaker. Loader, Player and Scheduler are required.
type Options struct {
	Loader    ClipLoader
	Player    AudioPlayer
	Scheduler Scheduler
	Logger    *logging.Logger
	Metrics   *Metrics

	// Catalog and VoiceID select a preset; CustomVoice is used when no
	// preset resolves.
	Catalog     VoiceCatalog
	VoiceID     string
	CustomVoice *VoiceSettings

	Cache CacheSettings
	Text  TextPipeline
}

// SpeakOptions adjusts one speak call.
type SpeakOptions struct {
	// Queued appends behind pending requests instead of replacing them.
	Queued bool
	// Events receives this call's request events. Nil creates a fresh set.
	Events *Events
	// Voice, when set, is used instead of the preset and custom voices.
	// A runtime override still wins.
	Voice *VoiceSettings
	// Cache, when set, replaces the speaker's cache policy for this call.
	Cache *CacheSettings
}

type attachment struct {
	listener Listener
	remove   func()
}

// Speaker is the public facade: it turns text into queued requests, owns
// the request queue and the playback controller, and reports every
// lifecycle transition through events.
//
// Apart from SpeakAsync and SpeakQueuedAsync, every method must be called
// on the main context, the goroutine that drains the Scheduler.
type Speaker struct {
	loader    ClipLoader
	player    AudioPlayer
	scheduler Scheduler
	log       *logging.Logger
	metrics   *Metrics

	voice voiceSource
	cache CacheSettings
	text  TextPipeline

	events      *Events
	attachments []attachment

	d          *dispatcher
	queue      *RequestQueue
	controller *PlaybackController

	initialized  bool
	shutdown     bool
	active       bool
	removeUnload func()
}

// NewSpeaker creates a speaker. Call Init before speaking.
func NewSpeaker(opts Options) (*Speaker, error) {
	switch {
	case opts.Loader == nil:
		return nil, NewSpeakerError(fmt.Errorf("%w: loader", ErrMissingComponent), "speaker", "create")
	case opts.Player == nil:
		return nil, NewSpeakerError(fmt.Errorf("%w: player", ErrMissingComponent), "speaker", "create")
	case opts.Scheduler == nil:
		return nil, NewSpeakerError(fmt.Errorf("%w: scheduler", ErrMissingComponent), "speaker", "create")
	}

	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	log = log.Category("speaker").WithCorrelationID("")

	s := &Speaker{
		loader:    opts.Loader,
		player:    opts.Player,
		scheduler: opts.Scheduler,
		log:       log,
		metrics:   opts.Metrics,
		voice: voiceSource{
			presetID: opts.VoiceID,
			custom:   opts.CustomVoice,
			catalog:  opts.Catalog,
		},
		cache:  opts.Cache,
		text:   opts.Text,
		events: NewEvents(),
	}

	s.d = &dispatcher{
		global:    s.events,
		log:       log,
		metrics:   opts.Metrics,
		now:       time.Now,
		onRetired: s.releaseClip,
	}
	s.queue = newRequestQueue(s.d)
	s.queue.onFill = s.markActive
	s.queue.onDrain = s.checkDrained
	s.controller = newPlaybackController(opts.Player, s.queue, s.d, log.Category("controller"))
	s.controller.onIdle = s.checkDrained
	s.controller.onStateChange = opts.Metrics.setState

	return s, nil
}

// Init prepares the audio player and subscribes to clip unload
// notifications. Calling it twice is harmless.
func (s *Speaker) Init() error {
	if s.shutdown {
		return ErrShutdown
	}
	if s.initialized {
		return nil
	}
	if err := s.player.Init(); err != nil {
		return NewSpeakerError(err, "player", "init")
	}
	s.removeUnload = s.loader.AddUnloadListener(func(clip *ClipHandle) {
		s.scheduler.Post(func() { s.onClipUnloaded(clip) })
	})
	s.initialized = true
	s.log.Info("speaker initialized", "voice", s.voice.presetID)
	return nil
}

// Shutdown stops everything, fails any later speak call and detaches all
// listeners.
func (s *Speaker) Shutdown() {
	if s.shutdown {
		return
	}
	if s.initialized {
		s.Stop()
	}
	s.queue.close(ErrShutdown)
	if s.removeUnload != nil {
		s.removeUnload()
		s.removeUnload = nil
	}
	for _, a := range s.attachments {
		a.remove()
	}
	s.attachments = nil
	s.initialized = false
	s.shutdown = true
	s.log.Info("speaker shut down")
}

// Events returns the speaker-wide event slots. Callbacks registered here
// run before any request's own callbacks.
func (s *Speaker) Events() *Events { return s.events }

// Attach adds l to the speaker-wide listeners. Attaching the same
// listener twice is a no-op.
func (s *Speaker) Attach(l Listener) {
	for _, a := range s.attachments {
		if sameListener(a.listener, l) {
			return
		}
	}
	s.attachments = append(s.attachments, attachment{
		listener: l,
		remove:   s.events.OnAny(l.OnSpeakerEvent),
	})
}

// Detach removes l. Listeners of non-comparable types, such as
// ListenerFunc, cannot be detached individually.
func (s *Speaker) Detach(l Listener) {
	for i, a := range s.attachments {
		if sameListener(a.listener, l) {
			a.remove()
			s.attachments = append(s.attachments[:i:i], s.attachments[i+1:]...)
			return
		}
	}
}

func sameListener(a, b Listener) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// Speak interrupts: it aborts everything queued, queues text, and stops
// whatever is speaking once the new clip is ready.
func (s *Speaker) Speak(text string) ([]*SpeakRequest, error) {
	return s.SpeakWith(text, SpeakOptions{})
}

// SpeakQueued queues text behind pending requests.
func (s *Speaker) SpeakQueued(text string) ([]*SpeakRequest, error) {
	return s.SpeakWith(text, SpeakOptions{Queued: true})
}

// SpeakWith queues one request per phrase of text. Voice resolution and
// text processing happen first; if either fails nothing is queued and
// nothing already queued is touched.
func (s *Speaker) SpeakWith(text string, opts SpeakOptions) ([]*SpeakRequest, error) {
	if s.shutdown {
		return nil, ErrShutdown
	}
	if !s.initialized {
		return nil, ErrNotInitialized
	}

	voice, err := s.resolveVoice(opts.Voice)
	if err != nil {
		s.log.Warn("voice resolution failed", "err", err)
		return nil, err
	}

	phrases, err := s.GetFinalText(text)
	if err != nil {
		s.log.Warn("nothing to speak", "text", logging.Truncate(text, 40))
		return nil, err
	}

	cache := s.cache
	if opts.Cache != nil {
		cache = *opts.Cache
	}
	events := opts.Events
	if events == nil {
		events = NewEvents()
	}

	if !opts.Queued {
		if n := s.queue.ClearPreservingQueueFlag(ErrInterrupted); n > 0 {
			s.log.Debug("interrupt cleared queue", "aborted", n)
		}
	}

	reqs := make([]*SpeakRequest, 0, len(phrases))
	for i, phrase := range phrases {
		req := newSpeakRequest(phrase, !opts.Queued && i == 0, events)
		reqs = append(reqs, req)
		s.queue.Enqueue(req)
		if req.retired() {
			continue
		}
		s.d.emit(req, EventBegin, nil)
		if req.retired() {
			continue
		}
		s.load(req, voice, cache)
	}
	s.log.Debug("queued", "phrases", len(reqs), "queued", opts.Queued, "voice", voice.ID)

	s.controller.Advance()
	return reqs, nil
}

// EnqueueMarker queues an empty request that plays nothing and completes
// as soon as it reaches the head, so events can be placed between clips.
func (s *Speaker) EnqueueMarker(events *Events) (*SpeakRequest, error) {
	if s.shutdown {
		return nil, ErrShutdown
	}
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	if events == nil {
		events = NewEvents()
	}
	req := newSpeakRequest("", false, events)
	req.marker = true
	req.status = RequestReady
	s.queue.Enqueue(req)
	if !req.retired() {
		s.d.emit(req, EventBegin, nil)
	}
	s.controller.Advance()
	return req, nil
}

// load starts loading req's clip. A listener may retire req from inside
// any event, so its status is checked around each one.
func (s *Speaker) load(req *SpeakRequest, voice VoiceSettings, cache CacheSettings) {
	if req.status != RequestLoading {
		return
	}
	s.d.emit(req, EventLoadBegin, nil)
	if req.status != RequestLoading {
		return
	}
	clipID := ClipID(req.Text, voice)
	handle := s.loader.Load(req.Text, clipID, voice, cache, func(clip *ClipHandle, err error) {
		s.scheduler.Post(func() { s.onLoaded(req, clip, err) })
	})
	if req.clip == nil {
		req.clip = handle
	}
}

func (s *Speaker) onLoaded(req *SpeakRequest, clip *ClipHandle, err error) {
	if req.status != RequestLoading {
		// Retired while loading, or already resolved.
		return
	}
	if clip != nil {
		req.clip = clip
	}
	if err == nil {
		err = clipReadiness(req.clip)
	}
	if err != nil {
		s.log.Debug("load did not produce a playable clip", "request", req.ID, "err", err)
		s.queue.RemoveMatching(func(r *SpeakRequest) bool { return r == req }, err)
		s.controller.Advance()
		return
	}

	req.status = RequestReady
	s.d.emit(req, EventLoadReady, nil)
	if req.status != RequestReady {
		return
	}

	if req.StopPlaybackOnReady && s.controller.Current() != nil {
		s.controller.stopWith(ErrInterrupted)
		return
	}
	s.controller.Advance()
}

func (s *Speaker) onClipUnloaded(clip *ClipHandle) {
	if clip == nil {
		return
	}
	if cur := s.controller.Current(); cur != nil && cur.clip == clip {
		s.controller.Cancel(cur, ErrClipUnloaded)
	}
	if n := s.queue.RemoveMatching(func(r *SpeakRequest) bool { return r.clip == clip }, ErrClipUnloaded); n > 0 {
		s.controller.Advance()
	}
}

// releaseClip hands a retired request's clip back to the loader.
func (s *Speaker) releaseClip(req *SpeakRequest) {
	if req.clip == nil || req.clip.State() == ClipUnloaded {
		return
	}
	s.loader.Unload(req.clip)
}

func (s *Speaker) markActive() {
	if s.active {
		return
	}
	s.active = true
	s.d.emit(nil, EventQueueBegin, nil)
}

func (s *Speaker) checkDrained() {
	if !s.active || s.queue.clearing {
		return
	}
	if s.controller.Current() != nil || s.queue.Len() > 0 {
		return
	}
	s.active = false
	s.d.emit(nil, EventQueueComplete, nil)
}

// Cancel retires one request: a speaking request is stopped, a queued one
// is aborted. It reports false when req is already retired.
func (s *Speaker) Cancel(req *SpeakRequest, reason error) bool {
	if req == nil || req.status == RequestRetired {
		return false
	}
	if reason == nil {
		reason = ErrCancelled
	}
	if s.controller.Cancel(req, reason) {
		return true
	}
	if s.queue.RemoveMatching(func(r *SpeakRequest) bool { return r == req }, reason) > 0 {
		s.controller.Advance()
		return true
	}
	return false
}

// Stop aborts everything queued and stops what is speaking. It does
// nothing when the speaker is idle.
func (s *Speaker) Stop() {
	if !s.IsActive() {
		return
	}
	s.StopLoading()
	s.StopSpeaking()
}

// StopLoading aborts every queued request and returns how many there were.
func (s *Speaker) StopLoading() int {
	n := s.queue.RemoveMatching(func(*SpeakRequest) bool { return true }, ErrLoadStopped)
	if n > 0 {
		s.controller.Advance()
	}
	return n
}

// StopSpeaking stops the speaking request, if any, and moves on.
func (s *Speaker) StopSpeaking() bool {
	return s.controller.StopSpeaking()
}

// Pause holds playback. The flag survives clip changes until Resume.
func (s *Speaker) Pause() { s.controller.Pause() }

// Resume continues playback from where it was paused.
func (s *Speaker) Resume() { s.controller.Resume() }

// IsPaused reports the pause flag.
func (s *Speaker) IsPaused() bool { return s.controller.IsPaused() }

// IsLoading reports whether any request is queued.
func (s *Speaker) IsLoading() bool { return s.queue.Len() > 0 }

// IsSpeaking reports whether the speaking slot is occupied.
func (s *Speaker) IsSpeaking() bool { return s.controller.Current() != nil }

// IsActive reports whether anything is loading or speaking.
func (s *Speaker) IsActive() bool { return s.IsLoading() || s.IsSpeaking() }

// Update drives the playback controller. Call it once per main loop tick.
func (s *Speaker) Update(dt time.Duration) {
	if !s.initialized {
		return
	}
	s.controller.Update(dt)
}

// Status returns a snapshot of the speaker.
func (s *Speaker) Status() Status {
	st := Status{
		CurrentState:   s.controller.State(),
		Initialized:    s.initialized,
		Paused:         s.controller.IsPaused(),
		QueueLength:    s.queue.Len(),
		Elapsed:        s.controller.Elapsed(),
		ElapsedSamples: s.controller.ElapsedSamples(),
		LastError:      s.controller.lastErr,
	}
	if cur := s.controller.Current(); cur != nil {
		st.SpeakingText = cur.Text
		if stream := cur.clip.Stream(); stream != nil {
			st.TotalSamples = stream.TotalSamples()
		}
	}
	return st
}

// Queue returns the request queue for inspection.
func (s *Speaker) Queue() *RequestQueue { return s.queue }

// GetFinalText runs the speaker's text pipeline over raw.
func (s *Speaker) GetFinalText(raw string) ([]string, error) {
	return s.text.Final(raw, s.log)
}

// SetText replaces the text pipeline for later speak calls.
func (s *Speaker) SetText(p TextPipeline) { s.text = p }

// SetCache replaces the cache policy for later speak calls.
func (s *Speaker) SetCache(c CacheSettings) { s.cache = c }

// SetVoicePreset selects a preset id for later speak calls.
func (s *Speaker) SetVoicePreset(id string) { s.voice.presetID = id }

// SetCustomVoice sets the fallback voice used when no preset resolves.
func (s *Speaker) SetCustomVoice(v *VoiceSettings) { s.voice.custom = v }

// SetVoiceOverride makes v win over every other voice source while the
// speaker is initialized.
func (s *Speaker) SetVoiceOverride(v VoiceSettings) { s.voice.override = &v }

// ClearVoiceOverride removes the runtime override.
func (s *Speaker) ClearVoiceOverride() { s.voice.override = nil }

// ResolveVoice returns the voice the next speak call would use.
func (s *Speaker) ResolveVoice() (VoiceSettings, error) {
	return s.resolveVoice(nil)
}

func (s *Speaker) resolveVoice(perCall *VoiceSettings) (VoiceSettings, error) {
	src := s.voice
	if perCall != nil {
		src.presetID = ""
		src.custom = perCall
	}
	return src.resolve(s.initialized)
}

// SpeakAsync interrupts like Speak and waits for every queued phrase to
// retire. It may be called from any goroutine except the main context,
// which it would deadlock. The result joins every request's error; nil
// means all phrases played to the end. If ctx ends first, the requests
// are cancelled and ctx.Err() is returned.
func (s *Speaker) SpeakAsync(ctx context.Context, text string) error {
	return s.speakAndWait(ctx, text, SpeakOptions{})
}

// SpeakQueuedAsync queues like SpeakQueued and waits like SpeakAsync.
func (s *Speaker) SpeakQueuedAsync(ctx context.Context, text string) error {
	return s.speakAndWait(ctx, text, SpeakOptions{Queued: true})
}

type speakResult struct {
	reqs []*SpeakRequest
	err  error
}

func (s *Speaker) speakAndWait(ctx context.Context, text string, opts SpeakOptions) error {
	ch := make(chan speakResult, 1)
	s.scheduler.Post(func() {
		if err := ctx.Err(); err != nil {
			ch <- speakResult{err: err}
			return
		}
		reqs, err := s.SpeakWith(text, opts)
		ch <- speakResult{reqs: reqs, err: err}
	})

	var res speakResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		// Posted tasks run in order, so the speak task has delivered its
		// result by the time this one runs.
		s.scheduler.Post(func() {
			select {
			case r := <-ch:
				s.cancelAll(r.reqs)
			default:
			}
		})
		return ctx.Err()
	}
	if res.err != nil {
		return res.err
	}

	var errs []error
	for _, req := range res.reqs {
		if err := req.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				reqs := res.reqs
				s.scheduler.Post(func() { s.cancelAll(reqs) })
				return ctxErr
			}
			errs = append(errs, fmt.Errorf("%q: %w", logging.Truncate(req.Text, 40), err))
		}
	}
	return errors.Join(errs...)
}

func (s *Speaker) cancelAll(reqs []*SpeakRequest) {
	for _, req := range reqs {
		s.Cancel(req, ErrCancelled)
	}
}

// Package loader turns text into playable clips. It looks clips up in a
// two-tier cache and synthesizes misses on a bounded worker pool.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/ttspeaker/internal/cache"
	"github.com/dgnsrekt/ttspeaker/internal/queue"
	"github.com/dgnsrekt/ttspeaker/pkg/logging"
	"github.com/dgnsrekt/ttspeaker/tts"
	"github.com/dgnsrekt/ttspeaker/tts/audio"
	"github.com/dgnsrekt/ttspeaker/tts/engines"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrUnknownEngine is returned when a voice names an engine the loader does
// not have.
var ErrUnknownEngine = errors.New("unknown engine")

// Config controls synthesis concurrency.
type Config struct {
	Workers   int
	RateLimit float64 // Synthesis calls per second, 0 for unlimited
	Burst     int
	Timeout   time.Duration // Per synthesis call, 0 for none
}

// ConfigFrom maps loader settings from the speaker configuration.
func ConfigFrom(c tts.LoaderConfig) Config {
	return Config{
		Workers:   c.Workers,
		RateLimit: c.RateLimit,
		Burst:     c.Burst,
		Timeout:   c.Timeout,
	}
}

// Stats counts loader activity.
type Stats struct {
	Loads       int64
	MemoryHits  int64
	DiskHits    int64
	Synthesized int64
	Failed      int64
	Cancelled   int64
	InFlight    int
	Pending     int
}

// Loader implements tts.ClipLoader.
type Loader struct {
	engines       map[string]engines.Synthesizer
	defaultEngine string
	cache         *cache.Manager
	limiter       *rate.Limiter
	timeout       time.Duration
	metrics       *tts.Metrics
	log           *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	jobs   *queue.Queue[*job]
	wake   chan struct{}
	done   chan struct{}

	mu        sync.Mutex
	inflight  map[*tts.ClipHandle]*job
	listeners map[int]func(*tts.ClipHandle)
	nextID    int
	closed    bool

	stats struct {
		loads, memoryHits, diskHits, synthesized, failed, cancelled atomic.Int64
	}
}

type job struct {
	handle  *tts.ClipHandle
	ctx     context.Context
	cancel  context.CancelFunc
	onReady func(*tts.ClipHandle, error)
	once    sync.Once
	started time.Time
}

// resolve fires the ready callback at most once.
func (j *job) resolve(err error) {
	j.once.Do(func() {
		if j.onReady != nil {
			j.onReady(j.handle, err)
		}
	})
}

// Option configures a Loader.
type Option func(*Loader)

// WithCache enables clip caching.
func WithCache(m *cache.Manager) Option {
	return func(l *Loader) { l.cache = m }
}

// WithMetrics records load latency.
func WithMetrics(m *tts.Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(l *Loader) { l.log = log.Category("loader") }
}

// WithEngine registers an additional engine under its name.
func WithEngine(s engines.Synthesizer) Option {
	return func(l *Loader) { l.engines[s.Name()] = s }
}

// New creates a loader whose default engine is def.
func New(def engines.Synthesizer, config Config, opts ...Option) *Loader {
	if config.Workers < 1 {
		config.Workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		engines:       map[string]engines.Synthesizer{def.Name(): def},
		defaultEngine: def.Name(),
		timeout:       config.Timeout,
		log:           logging.Nop(),
		ctx:           ctx,
		cancel:        cancel,
		group:         &errgroup.Group{},
		jobs:          queue.New[*job](),
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
		inflight:      make(map[*tts.ClipHandle]*job),
		listeners:     make(map[int]func(*tts.ClipHandle)),
	}
	l.group.SetLimit(config.Workers)
	if config.RateLimit > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.dispatch()
	return l
}

// Engine returns the synthesizer for name, or the default for "".
func (l *Loader) Engine(name string) (engines.Synthesizer, error) {
	if name == "" {
		name = l.defaultEngine
	}
	s, ok := l.engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	return s, nil
}

// Engines returns the registered engines.
func (l *Loader) Engines() []engines.Synthesizer {
	out := make([]engines.Synthesizer, 0, len(l.engines))
	out = append(out, l.engines[l.defaultEngine])
	for name, s := range l.engines {
		if name != l.defaultEngine {
			out = append(out, s)
		}
	}
	return out
}

// Load implements tts.ClipLoader. Every call gets its own handle so that
// unloading one request's clip never affects another.
func (l *Loader) Load(text, clipID string, voice tts.VoiceSettings, settings tts.CacheSettings, onReady func(*tts.ClipHandle, error)) *tts.ClipHandle {
	l.stats.loads.Add(1)
	handle := tts.NewClipHandle(text, clipID, voice, settings)

	ctx, cancel := context.WithCancel(l.ctx)
	j := &job{handle: handle, ctx: ctx, cancel: cancel, onReady: onReady, started: time.Now()}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		cancel()
		handle.MarkFailed(tts.ErrShutdown)
		j.resolve(tts.ErrShutdown)
		return handle
	}
	l.inflight[handle] = j
	l.mu.Unlock()

	if err := l.jobs.Enqueue(j); err != nil {
		l.finish(j, nil, err)
		return handle
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return handle
}

// Unload implements tts.ClipLoader. An in-flight load is cancelled and
// its callback fires with tts.ErrClipUnloaded.
func (l *Loader) Unload(clip *tts.ClipHandle) {
	if clip == nil || !clip.MarkUnloaded() {
		return
	}

	l.mu.Lock()
	j := l.inflight[clip]
	delete(l.inflight, clip)
	listeners := make([]func(*tts.ClipHandle), 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()

	if j != nil {
		j.cancel()
		l.stats.cancelled.Add(1)
		j.resolve(tts.ErrClipUnloaded)
	}
	l.log.Debug("clip unloaded", "clip", logging.Truncate(clip.ClipID, 12), "text", logging.Truncate(clip.Text, 32))

	for _, fn := range listeners {
		fn(clip)
	}
}

// AddUnloadListener implements tts.ClipLoader.
func (l *Loader) AddUnloadListener(fn func(*tts.ClipHandle)) (remove func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

// Preload synthesizes text into the cache without creating a clip.
func (l *Loader) Preload(ctx context.Context, text string, voice tts.VoiceSettings, settings tts.CacheSettings) error {
	if settings.Location == tts.CacheNone {
		return nil
	}
	key := tts.ClipID(text, voice)
	if l.cache != nil && l.cache.Contains(key) {
		return nil
	}
	pcm, _, err := l.synthesize(ctx, text, voice)
	if err != nil {
		return err
	}
	l.store(key, pcm, settings)
	return nil
}

// Stats returns activity counters.
func (l *Loader) Stats() Stats {
	l.mu.Lock()
	inflight := len(l.inflight)
	l.mu.Unlock()
	pending := l.jobs.Size()
	return Stats{
		Loads:       l.stats.loads.Load(),
		MemoryHits:  l.stats.memoryHits.Load(),
		DiskHits:    l.stats.diskHits.Load(),
		Synthesized: l.stats.synthesized.Load(),
		Failed:      l.stats.failed.Load(),
		Cancelled:   l.stats.cancelled.Load(),
		InFlight:    inflight - pending,
		Pending:     pending,
	}
}

// Close cancels every load and waits for the workers to exit.
func (l *Loader) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	for _, j := range l.jobs.Close() {
		l.finish(j, nil, tts.ErrLoadStopped)
	}
	<-l.done
	return l.group.Wait()
}

// dispatch hands queued jobs to the worker pool in FIFO order. group.Go
// blocks while every worker is busy.
func (l *Loader) dispatch() {
	defer close(l.done)
	for {
		j, err := l.jobs.Dequeue()
		switch {
		case errors.Is(err, queue.ErrQueueClosed):
			return
		case errors.Is(err, queue.ErrQueueEmpty):
			select {
			case <-l.wake:
			case <-l.ctx.Done():
				return
			}
			continue
		}
		l.group.Go(func() error {
			l.run(j)
			return nil
		})
	}
}

func (l *Loader) run(j *job) {
	if j.ctx.Err() != nil {
		l.finish(j, nil, tts.ErrLoadStopped)
		return
	}

	h := j.handle
	key := h.ClipID
	if key == "" {
		key = tts.ClipID(h.Text, h.Voice)
	}

	if pcm, level, ok := l.lookup(key, h.Cache); ok {
		s, err := l.Engine(h.Voice.Engine)
		if err != nil {
			l.finish(j, nil, err)
			return
		}
		format := s.Format()
		if level == cache.LevelDisk {
			l.stats.diskHits.Add(1)
		} else {
			l.stats.memoryHits.Add(1)
		}
		l.metrics.ObserveLoad(level.String(), time.Since(j.started))
		l.finish(j, audio.NewStreamFromPCM(pcm, format.SampleRate, format.Channels), nil)
		return
	}

	pcm, format, err := l.synthesize(j.ctx, h.Text, h.Voice)
	if err != nil {
		if j.ctx.Err() != nil {
			err = tts.ErrLoadStopped
		}
		l.finish(j, nil, err)
		return
	}
	l.stats.synthesized.Add(1)
	l.metrics.ObserveLoad("synth", time.Since(j.started))
	l.store(key, pcm, h.Cache)
	l.finish(j, audio.NewStreamFromPCM(pcm, format.SampleRate, format.Channels), nil)
}

func (l *Loader) lookup(key string, settings tts.CacheSettings) ([]byte, cache.Level, bool) {
	if l.cache == nil || settings.Location == tts.CacheNone {
		return nil, cache.LevelMemory, false
	}
	return l.cache.Get(key, settings.Location == tts.CacheDisk)
}

func (l *Loader) store(key string, pcm []byte, settings tts.CacheSettings) {
	if l.cache == nil || settings.Location == tts.CacheNone {
		return
	}
	if err := l.cache.Put(key, pcm, settings.Location == tts.CacheDisk); err != nil {
		l.log.Warn("failed to cache clip", "clip", logging.Truncate(key, 12), "err", err)
	}
}

// synthesize runs the voice's engine, honouring the rate limit and
// per-call timeout.
func (l *Loader) synthesize(ctx context.Context, text string, voice tts.VoiceSettings) ([]byte, engines.Format, error) {
	s, err := l.Engine(voice.Engine)
	if err != nil {
		return nil, engines.Format{}, err
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, engines.Format{}, err
		}
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	format := s.Format()
	stream := audio.NewStream(format.SampleRate, format.Channels)
	start := time.Now()
	if err := s.Synthesize(ctx, text, voice, stream); err != nil {
		stream.Close()
		return nil, format, err
	}
	stream.Complete()
	l.log.Debug("synthesized clip",
		"engine", s.Name(),
		"text", logging.Truncate(text, 32),
		"audio", stream.Duration(),
		"took", time.Since(start))
	return stream.Bytes(), format, nil
}

// finish resolves a job with either a stream or an error.
func (l *Loader) finish(j *job, stream *audio.Stream, err error) {
	l.mu.Lock()
	if l.inflight[j.handle] == j {
		delete(l.inflight, j.handle)
	}
	l.mu.Unlock()
	j.cancel()

	if err != nil {
		if tts.IsCancellation(err) {
			l.metrics.ObserveLoad("cancelled", time.Since(j.started))
		} else {
			l.stats.failed.Add(1)
			l.metrics.ObserveLoad("error", time.Since(j.started))
			l.log.Warn("clip load failed", "text", logging.Truncate(j.handle.Text, 32), "err", err)
			err = fmt.Errorf("%w: %w", tts.ErrLoadFailed, err)
		}
		j.handle.MarkFailed(err)
		j.resolve(err)
		return
	}

	j.handle.MarkLoaded(stream)
	j.resolve(nil)
}

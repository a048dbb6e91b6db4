package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	gap "github.com/muesli/go-app-paths"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgnsrekt/ttspeaker/internal/cache"
	"github.com/dgnsrekt/ttspeaker/pkg/logging"
	"github.com/dgnsrekt/ttspeaker/tts"
	"github.com/dgnsrekt/ttspeaker/tts/audio"
	"github.com/dgnsrekt/ttspeaker/tts/engines"
	"github.com/dgnsrekt/ttspeaker/tts/engines/mock"
	"github.com/dgnsrekt/ttspeaker/tts/engines/piper"
	"github.com/dgnsrekt/ttspeaker/tts/loader"
	"github.com/dgnsrekt/ttspeaker/tts/mainloop"
	"github.com/dgnsrekt/ttspeaker/tts/sentence"
)

// speakerApp is one wired speaker runtime: engines, cache, loader, audio
// output and the main loop that owns the speaker.
type speakerApp struct {
	cfg      tts.Config
	log      *logging.Logger
	registry *prometheus.Registry
	metrics  *tts.Metrics

	cache   *cache.Manager
	loader  *loader.Loader
	player  tts.AudioPlayer
	muted   *audio.MockPlayer
	loop    *mainloop.Loop
	speaker *tts.Speaker
}

type appOptions struct {
	// mute replaces the audio device with a player that only keeps time.
	mute bool
}

func defaultCacheDir() (string, error) {
	dir, err := gap.NewScope(gap.User, "ttspeaker").CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to get cache dir: %w", err)
	}
	return filepath.Join(dir, "clips"), nil
}

func newCacheManager(cfg tts.Config, log *logging.Logger) (*cache.Manager, error) {
	cc := cache.DefaultConfig()
	cc.MemoryEntries = cfg.Cache.MemoryEntries
	cc.MemoryBytes = cfg.Cache.MemoryBytes
	cc.DiskBytes = cfg.Cache.DiskBytes
	cc.MaxAge = cfg.Cache.MaxAge

	if cfg.CacheSettings().Location == tts.CacheDisk {
		cc.DiskPath = cfg.Cache.Dir
		if cc.DiskPath == "" {
			dir, err := defaultCacheDir()
			if err != nil {
				return nil, err
			}
			cc.DiskPath = dir
		}
	}
	m, err := cache.NewManager(cc, log)
	if err != nil {
		return nil, fmt.Errorf("unable to open clip cache: %w", err)
	}
	return m, nil
}

// buildEngines returns the default engine and any extra engines to
// register. A configured piper engine falls back to the tone engine after
// repeated failures, or right away when its binary is missing.
func buildEngines(cfg tts.Config, log *logging.Logger) (engines.Synthesizer, []engines.Synthesizer) {
	tone := mock.New(mock.Config{
		SampleRate:     cfg.SampleRate,
		Frequency:      cfg.Mock.Frequency,
		WordsPerMinute: cfg.Mock.WordsPerMinute,
		Delay:          cfg.Mock.GenerationDelay,
		FailureRate:    cfg.Mock.FailureRate,
	})
	if cfg.Engine != "piper" {
		return tone, nil
	}

	p, err := piper.New(piper.ConfigFrom(cfg.Piper, cfg.SampleRate), log)
	if err != nil {
		log.Warn("piper unavailable, using the tone engine", "err", err)
		return tone, nil
	}
	fb, err := engines.NewFallback(p, tone, 3, log)
	if err != nil {
		log.Warn("fallback engine disabled", "err", err)
		return p, []engines.Synthesizer{tone}
	}
	return fb, []engines.Synthesizer{tone}
}

func textPipeline(cfg tts.TextConfig) tts.TextPipeline {
	var pre []tts.TextProcessor
	if cfg.Markdown {
		pre = append(pre, sentence.NewMarkdownStripper())
	}
	if cfg.SplitSentences {
		pre = append(pre, sentence.NewSplitter(cfg.MaxPhraseLength))
	}
	return tts.TextPipeline{
		Pre:     pre,
		Post:    []tts.TextProcessor{sentence.NewNormalizer()},
		Prepend: cfg.Prepend,
		Append:  cfg.Append,
	}
}

func newSpeakerApp(cfg tts.Config, log *logging.Logger, opts appOptions) (*speakerApp, error) {
	a := &speakerApp{
		cfg:      cfg,
		log:      log,
		registry: prometheus.NewRegistry(),
		loop:     mainloop.New(log),
	}
	a.metrics = tts.NewMetrics(a.registry)

	var err error
	if a.cache, err = newCacheManager(cfg, log); err != nil {
		return nil, err
	}

	def, extra := buildEngines(cfg, log)
	lopts := []loader.Option{
		loader.WithCache(a.cache),
		loader.WithMetrics(a.metrics),
		loader.WithLogger(log),
	}
	for _, e := range extra {
		lopts = append(lopts, loader.WithEngine(e))
	}
	a.loader = loader.New(def, loader.ConfigFrom(cfg.Loader), lopts...)

	if opts.mute {
		a.muted = audio.NewMockPlayer(audio.MockCallbacks{})
		a.player = a.muted
	} else {
		volume := cfg.Volume
		if volume > 1 {
			volume = 1
		}
		p, err := audio.NewPlayer(audio.PlayerConfig{SampleRate: cfg.SampleRate, Channels: 1, Volume: volume})
		if err != nil {
			a.closeBackends()
			return nil, fmt.Errorf("unable to create audio player: %w", err)
		}
		a.player = p
	}

	custom := tts.VoiceSettings{ID: "custom", Engine: def.Name(), Speed: 1, Volume: cfg.Volume}
	a.speaker, err = tts.NewSpeaker(tts.Options{
		Loader:      a.loader,
		Player:      a.player,
		Scheduler:   a.loop,
		Logger:      log,
		Metrics:     a.metrics,
		Catalog:     cfg.Presets(),
		VoiceID:     cfg.Voice,
		CustomVoice: &custom,
		Cache:       cfg.CacheSettings(),
		Text:        textPipeline(cfg.Text),
	})
	if err != nil {
		a.closeBackends()
		return nil, err
	}
	if err := a.speaker.Init(); err != nil {
		a.closeBackends()
		return nil, fmt.Errorf("unable to initialize speaker: %w", err)
	}

	a.loop.OnUpdate(func(dt time.Duration) {
		if a.muted != nil {
			a.muted.Advance(audio.DurationToSamples(dt, cfg.SampleRate))
		}
		a.speaker.Update(dt)
	})
	return a, nil
}

// run drives the main loop until ctx ends.
func (a *speakerApp) run(ctx context.Context) error {
	err := a.loop.Run(ctx, a.cfg.TickInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// apply pushes a reloaded configuration into the running speaker. It must
// run on the main loop.
func (a *speakerApp) apply(cfg tts.Config) {
	a.speaker.SetText(textPipeline(cfg.Text))
	a.speaker.SetCache(cfg.CacheSettings())
	a.speaker.SetVoicePreset(cfg.Voice)
	a.cfg.Text = cfg.Text
	a.cfg.Voice = cfg.Voice
	a.log.Info("configuration reloaded", "voice", cfg.Voice)
}

// serveMetrics exposes the app's collectors until ctx ends.
func (a *speakerApp) serveMetrics(ctx context.Context, addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
}

func (a *speakerApp) closeBackends() {
	if err := a.loader.Close(); err != nil {
		a.log.Warn("loader close", "err", err)
	}
	if err := a.cache.Close(); err != nil {
		a.log.Warn("cache close", "err", err)
	}
}

// close shuts the speaker down on the calling goroutine. The main loop
// must no longer be running.
func (a *speakerApp) close() {
	a.loop.Drain()
	a.speaker.Shutdown()
	a.loop.Drain()
	a.closeBackends()
	if p, ok := a.player.(*audio.Player); ok {
		_ = p.Close()
	}
}

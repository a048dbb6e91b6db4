package loader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/ttspeaker/internal/cache"
	"github.com/dgnsrekt/ttspeaker/pkg/logging"
	"github.com/dgnsrekt/ttspeaker/tts"
	"github.com/dgnsrekt/ttspeaker/tts/engines/mock"
)

type result struct {
	clip *tts.ClipHandle
	err  error
}

// waitReady loads text and blocks until the callback fires.
func waitReady(t *testing.T, l *Loader, text string, voice tts.VoiceSettings, loc tts.CacheLocation) result {
	t.Helper()
	ch := make(chan result, 1)
	l.Load(text, tts.ClipID(text, voice), voice, tts.CacheSettings{Location: loc}, func(c *tts.ClipHandle, err error) {
		ch <- result{c, err}
	})
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("load callback never fired")
		return result{}
	}
}

func newTestLoader(t *testing.T, engine *mock.Engine, opts ...Option) *Loader {
	t.Helper()
	l := New(engine, Config{Workers: 2}, opts...)
	t.Cleanup(func() { l.Close() })
	return l
}

var voice = tts.VoiceSettings{Engine: "mock", Voice: "tone", Speed: 4, Volume: 1}

func TestLoadSynthesizes(t *testing.T) {
	engine := mock.New(mock.Config{SampleRate: 8000, WordsPerMinute: 600})
	l := newTestLoader(t, engine)

	r := waitReady(t, l, "hello world", voice, tts.CacheNone)
	if r.err != nil {
		t.Fatalf("load error = %v", r.err)
	}
	if r.clip.State() != tts.ClipLoaded {
		t.Errorf("State() = %v, want loaded", r.clip.State())
	}
	stream := r.clip.Stream()
	if stream == nil || !stream.IsComplete() || stream.TotalSamples() == 0 {
		t.Fatalf("stream = %+v", stream)
	}
	if stream.SampleRate() != 8000 {
		t.Errorf("SampleRate() = %d, want 8000", stream.SampleRate())
	}
}

func TestLoadUsesCache(t *testing.T) {
	engine := mock.New(mock.Config{SampleRate: 8000, WordsPerMinute: 600})
	m, err := cache.NewManager(cache.Config{MemoryEntries: 8, MemoryBytes: 1 << 20}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	l := newTestLoader(t, engine, WithCache(m))

	first := waitReady(t, l, "cached phrase", voice, tts.CacheMemory)
	second := waitReady(t, l, "cached phrase", voice, tts.CacheMemory)
	if first.err != nil || second.err != nil {
		t.Fatalf("errors = %v, %v", first.err, second.err)
	}
	if engine.Calls() != 1 {
		t.Errorf("engine called %d times, want 1", engine.Calls())
	}
	if first.clip == second.clip {
		t.Error("loads share a handle")
	}
	if s := l.Stats(); s.MemoryHits != 1 || s.Synthesized != 1 {
		t.Errorf("Stats() = %+v", s)
	}

	waitReady(t, l, "cached phrase", voice, tts.CacheNone)
	if engine.Calls() != 2 {
		t.Errorf("CacheNone load did not synthesize, calls = %d", engine.Calls())
	}
}

func TestLoadFailure(t *testing.T) {
	engine := mock.New(mock.DefaultConfig())
	engine.SetFailure(errors.New("engine down"))
	l := newTestLoader(t, engine)

	r := waitReady(t, l, "hi", voice, tts.CacheNone)
	if !errors.Is(r.err, tts.ErrLoadFailed) {
		t.Fatalf("error = %v, want ErrLoadFailed", r.err)
	}
	if r.clip.State() != tts.ClipError {
		t.Errorf("State() = %v, want error", r.clip.State())
	}
	if err := r.clip.LoadError(); !errors.Is(err, tts.ErrLoadFailed) {
		t.Errorf("LoadError() = %v, want ErrLoadFailed", err)
	}
	if tts.IsCancellation(r.err) {
		t.Error("engine failure classified as cancellation")
	}
}

func TestLoadUnknownEngine(t *testing.T) {
	l := newTestLoader(t, mock.New(mock.DefaultConfig()))
	r := waitReady(t, l, "hi", tts.VoiceSettings{Engine: "nope"}, tts.CacheNone)
	if !errors.Is(r.err, ErrUnknownEngine) {
		t.Errorf("error = %v, want ErrUnknownEngine", r.err)
	}
}

func TestUnloadCancelsInFlight(t *testing.T) {
	engine := mock.New(mock.Config{Delay: time.Hour})
	l := newTestLoader(t, engine)

	var mu sync.Mutex
	var notified []*tts.ClipHandle
	remove := l.AddUnloadListener(func(c *tts.ClipHandle) {
		mu.Lock()
		notified = append(notified, c)
		mu.Unlock()
	})
	defer remove()

	ch := make(chan result, 2)
	handle := l.Load("slow", "id", voice, tts.CacheSettings{}, func(c *tts.ClipHandle, err error) {
		ch <- result{c, err}
	})
	l.Unload(handle)

	r := <-ch
	if !errors.Is(r.err, tts.ErrClipUnloaded) {
		t.Errorf("error = %v, want ErrClipUnloaded", r.err)
	}
	if handle.State() != tts.ClipUnloaded {
		t.Errorf("State() = %v, want unloaded", handle.State())
	}

	mu.Lock()
	if len(notified) != 1 || notified[0] != handle {
		t.Errorf("listeners notified with %v", notified)
	}
	mu.Unlock()

	// Unloading twice does not notify again.
	l.Unload(handle)
	mu.Lock()
	if len(notified) != 1 {
		t.Errorf("second unload notified listeners")
	}
	mu.Unlock()

	select {
	case extra := <-ch:
		t.Errorf("callback fired twice: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRemovedListenerNotCalled(t *testing.T) {
	l := newTestLoader(t, mock.New(mock.DefaultConfig()))
	called := false
	remove := l.AddUnloadListener(func(*tts.ClipHandle) { called = true })
	remove()

	r := waitReady(t, l, "hi", voice, tts.CacheNone)
	l.Unload(r.clip)
	if called {
		t.Error("removed listener was called")
	}
}

func TestCloseFailsPendingLoads(t *testing.T) {
	engine := mock.New(mock.Config{Delay: time.Hour})
	l := New(engine, Config{Workers: 1})

	ch := make(chan error, 3)
	for i := 0; i < 3; i++ {
		l.Load("x", "id", voice, tts.CacheSettings{}, func(_ *tts.ClipHandle, err error) { ch <- err })
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := <-ch; !tts.IsCancellation(err) {
			t.Errorf("pending load error = %v, want cancellation", err)
		}
	}

	r := make(chan error, 1)
	l.Load("late", "id", voice, tts.CacheSettings{}, func(_ *tts.ClipHandle, err error) { r <- err })
	if err := <-r; !errors.Is(err, tts.ErrShutdown) {
		t.Errorf("load after close error = %v, want ErrShutdown", err)
	}
}

func TestPreloadWarmsCache(t *testing.T) {
	engine := mock.New(mock.Config{SampleRate: 8000, WordsPerMinute: 600})
	m, _ := cache.NewManager(cache.Config{MemoryBytes: 1 << 20}, logging.Nop())
	defer m.Close()
	l := newTestLoader(t, engine, WithCache(m), WithLogger(logging.Nop()))

	settings := tts.CacheSettings{Location: tts.CacheMemory}
	if err := l.Preload(context.Background(), "warm", voice, settings); err != nil {
		t.Fatalf("Preload() error = %v", err)
	}
	if err := l.Preload(context.Background(), "warm", voice, settings); err != nil {
		t.Fatalf("second Preload() error = %v", err)
	}
	if engine.Calls() != 1 {
		t.Errorf("engine called %d times, want 1", engine.Calls())
	}

	waitReady(t, l, "warm", voice, tts.CacheMemory)
	if engine.Calls() != 1 {
		t.Error("preloaded clip was synthesized again")
	}
}

func TestRateLimitedLoader(t *testing.T) {
	engine := mock.New(mock.Config{SampleRate: 8000, WordsPerMinute: 6000})
	l := New(engine, Config{Workers: 4, RateLimit: 1000, Burst: 1})
	defer l.Close()

	for i := 0; i < 3; i++ {
		if r := waitReady(t, l, "x", voice, tts.CacheNone); r.err != nil {
			t.Fatalf("load %d error = %v", i, r.err)
		}
	}
}

func TestEngines(t *testing.T) {
	def := mock.New(mock.DefaultConfig())
	l := newTestLoader(t, def)

	s, err := l.Engine("")
	if err != nil || s != def {
		t.Errorf("Engine(\"\") = %v, %v", s, err)
	}
	if got := l.Engines(); len(got) != 1 || got[0] != def {
		t.Errorf("Engines() = %v", got)
	}
}

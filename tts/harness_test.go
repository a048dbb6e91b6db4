package tts_test

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/ttspeaker/pkg/logging"
	"github.com/dgnsrekt/ttspeaker/tts"
	"github.com/dgnsrekt/ttspeaker/tts/audio"
	"github.com/dgnsrekt/ttspeaker/tts/mainloop"
)

const (
	testRate    = 1000
	clipSamples = 100
)

// fakeLoader is a scripted tts.ClipLoader. With auto set every load
// succeeds inside Load; otherwise tests resolve loads by text.
type fakeLoader struct {
	mu        sync.Mutex
	auto      bool
	fail      map[string]error
	pending   map[string][]*pendingLoad
	loads     []string
	unloads   []*tts.ClipHandle
	listeners map[int]func(*tts.ClipHandle)
	nextID    int
}

type pendingLoad struct {
	handle  *tts.ClipHandle
	onReady func(*tts.ClipHandle, error)
}

func newFakeLoader(auto bool) *fakeLoader {
	return &fakeLoader{
		auto:      auto,
		fail:      make(map[string]error),
		pending:   make(map[string][]*pendingLoad),
		listeners: make(map[int]func(*tts.ClipHandle)),
	}
}

func (l *fakeLoader) Load(text, clipID string, voice tts.VoiceSettings, cache tts.CacheSettings, onReady func(*tts.ClipHandle, error)) *tts.ClipHandle {
	h := tts.NewClipHandle(text, clipID, voice, cache)
	l.mu.Lock()
	l.loads = append(l.loads, text)
	auto := l.auto
	failErr := l.fail[text]
	if !auto && failErr == nil {
		l.pending[text] = append(l.pending[text], &pendingLoad{handle: h, onReady: onReady})
	}
	l.mu.Unlock()

	switch {
	case failErr != nil:
		h.MarkFailed(failErr)
		onReady(h, failErr)
	case auto:
		h.MarkLoaded(pcmStream(clipSamples))
		onReady(h, nil)
	}
	return h
}

// Resolve completes the oldest pending load of text.
func (l *fakeLoader) Resolve(t *testing.T, text string) *tts.ClipHandle {
	t.Helper()
	p := l.take(t, text)
	p.handle.MarkLoaded(pcmStream(clipSamples))
	p.onReady(p.handle, nil)
	return p.handle
}

// Reject fails the oldest pending load of text.
func (l *fakeLoader) Reject(t *testing.T, text string, err error) {
	t.Helper()
	p := l.take(t, text)
	p.handle.MarkFailed(err)
	p.onReady(p.handle, err)
}

func (l *fakeLoader) take(t *testing.T, text string) *pendingLoad {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.pending[text]
	if len(q) == 0 {
		t.Fatalf("no pending load for %q", text)
	}
	l.pending[text] = q[1:]
	return q[0]
}

func (l *fakeLoader) Unload(clip *tts.ClipHandle) {
	if clip == nil || !clip.MarkUnloaded() {
		return
	}
	l.mu.Lock()
	l.unloads = append(l.unloads, clip)
	fns := make([]func(*tts.ClipHandle), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(clip)
	}
}

func (l *fakeLoader) AddUnloadListener(fn func(*tts.ClipHandle)) func() {
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

func (l *fakeLoader) Loads() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.loads...)
}

func pcmStream(samples int) *audio.Stream {
	return audio.NewStreamFromPCM(make([]byte, samples*audio.BytesPerSample), testRate, 1)
}

// recorder collects events as "kind(text)" strings.
type recorder struct {
	mu     sync.Mutex
	events []tts.Event
}

func (r *recorder) add(ev tts.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Strings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.String()
	}
	return out
}

func (r *recorder) Of(kind tts.EventKind) []tts.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []tts.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) Index(s string) int {
	for i, e := range r.Strings() {
		if e == s {
			return i
		}
	}
	return -1
}

type harness struct {
	t       *testing.T
	speaker *tts.Speaker
	loader  *fakeLoader
	player  *audio.MockPlayer
	loop    *mainloop.Loop
	rec     *recorder
	logs    *logging.MemorySink
}

var testVoice = tts.VoiceSettings{ID: "test", Engine: "mock", Voice: "tone", Speed: 1, Volume: 1}

func newHarness(t *testing.T, auto bool, mutate ...func(*tts.Options)) *harness {
	t.Helper()
	logs := logging.NewMemorySink()
	log := logging.New(logging.WithSink(logs), logging.WithLevel(logging.DebugLevel))

	h := &harness{
		t:      t,
		loader: newFakeLoader(auto),
		player: audio.NewMockPlayer(audio.MockCallbacks{}),
		loop:   mainloop.New(log),
		rec:    &recorder{},
		logs:   logs,
	}
	custom := testVoice
	opts := tts.Options{
		Loader:      h.loader,
		Player:      h.player,
		Scheduler:   h.loop,
		Logger:      log,
		CustomVoice: &custom,
	}
	for _, m := range mutate {
		m(&opts)
	}

	s, err := tts.NewSpeaker(opts)
	if err != nil {
		t.Fatalf("NewSpeaker() error = %v", err)
	}
	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	s.Events().OnAny(h.rec.add)
	h.speaker = s
	t.Cleanup(s.Shutdown)
	return h
}

// tick drains posted work and runs one controller update.
func (h *harness) tick() {
	h.loop.Drain()
	h.speaker.Update(10 * time.Millisecond)
	h.loop.Drain()
}

// finish plays the current clip to its end and ticks.
func (h *harness) finish() {
	h.player.Finish()
	h.tick()
}

func (h *harness) queued(texts ...string) []*tts.SpeakRequest {
	h.t.Helper()
	var all []*tts.SpeakRequest
	for _, text := range texts {
		reqs, err := h.speaker.SpeakQueued(text)
		if err != nil {
			h.t.Fatalf("SpeakQueued(%q) error = %v", text, err)
		}
		all = append(all, reqs...)
	}
	return all
}

func (h *harness) speak(text string) []*tts.SpeakRequest {
	h.t.Helper()
	reqs, err := h.speaker.Speak(text)
	if err != nil {
		h.t.Fatalf("Speak(%q) error = %v", text, err)
	}
	return reqs
}

func assertEvents(t *testing.T, got, want []string) {
	t.Helper()
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("events mismatch\n got: %s\nwant: %s", strings.Join(got, " "), strings.Join(want, " "))
	}
}

func assertDone(t *testing.T, req *tts.SpeakRequest, target error) {
	t.Helper()
	select {
	case <-req.Done():
	default:
		t.Fatalf("request %q not done", req.Text)
	}
	err := req.Err()
	switch {
	case target == nil && err != nil:
		t.Errorf("request %q error = %v, want nil", req.Text, err)
	case target != nil && !errors.Is(err, target):
		t.Errorf("request %q error = %v, want %v", req.Text, err, target)
	}
}

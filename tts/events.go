package tts

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// EventKind names a lifecycle transition.
type EventKind int

const (
	// EventQueueBegin fires when the speaker goes from idle to having work.
	EventQueueBegin EventKind = iota
	// EventBegin fires when a request is created.
	EventBegin
	// EventLoadBegin fires when the loader is asked for the clip.
	EventLoadBegin
	// EventLoadAborted fires when a queued request is removed on purpose.
	EventLoadAborted
	// EventLoadFailed fires when a queued request's clip could not load.
	EventLoadFailed
	// EventLoadReady fires when a queued request's clip has loaded.
	EventLoadReady
	// EventPlaybackStart fires when a request takes the speaking slot.
	EventPlaybackStart
	// EventPlaybackCancelled fires when speaking stops early.
	EventPlaybackCancelled
	// EventPlaybackComplete fires when a clip plays to the end.
	EventPlaybackComplete
	// EventComplete is the last event of every request.
	EventComplete
	// EventQueueComplete fires when the queue and speaking slot both empty.
	EventQueueComplete

	numEventKinds
)

var eventKindNames = [numEventKinds]string{
	"queue-begin",
	"begin",
	"load-begin",
	"load-aborted",
	"load-failed",
	"load-ready",
	"playback-start",
	"playback-cancelled",
	"playback-complete",
	"complete",
	"queue-complete",
}

// String returns the string representation of the kind.
func (k EventKind) String() string {
	if k < 0 || k >= numEventKinds {
		return "unknown"
	}
	return eventKindNames[k]
}

// IsOutcome reports whether the kind is one of the four terminal outcomes
// that precede EventComplete.
func (k EventKind) IsOutcome() bool {
	switch k {
	case EventLoadAborted, EventLoadFailed, EventPlaybackCancelled, EventPlaybackComplete:
		return true
	}
	return false
}

// Event describes one transition. Request and Clip are nil for queue
// events.
type Event struct {
	Kind    EventKind
	Request *SpeakRequest
	Clip    *ClipHandle
	Text    string
	Err     error
	Time    time.Time
}

// String returns a compact description, e.g. "load-ready(hello)".
func (e Event) String() string {
	if e.Request == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", e.Kind, e.Text)
}

// Listener receives every event of a speaker once attached.
type Listener interface {
	OnSpeakerEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

// OnSpeakerEvent implements Listener.
func (f ListenerFunc) OnSpeakerEvent(e Event) { f(e) }

type subscription struct {
	kind    EventKind // numEventKinds means every kind
	fn      func(Event)
	removed atomic.Bool
}

// Events is a set of named event slots. Each slot holds zero or more
// callbacks invoked synchronously in registration order. Registration is
// safe from any goroutine; invocation happens on the main context.
type Events struct {
	mu   sync.Mutex
	subs []*subscription
}

// NewEvents creates an empty event set.
func NewEvents() *Events {
	return &Events{}
}

// On registers fn for one kind.
func (e *Events) On(kind EventKind, fn func(Event)) (remove func()) {
	return e.add(kind, fn)
}

// OnAny registers fn for every kind.
func (e *Events) OnAny(fn func(Event)) (remove func()) {
	return e.add(numEventKinds, fn)
}

// Len returns the number of registered callbacks.
func (e *Events) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

func (e *Events) add(kind EventKind, fn func(Event)) func() {
	sub := &subscription{kind: kind, fn: fn}
	e.mu.Lock()
	e.subs = append(e.subs, sub)
	e.mu.Unlock()

	return func() {
		if !sub.removed.CompareAndSwap(false, true) {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.subs {
			if s == sub {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				break
			}
		}
	}
}

// emit invokes matching callbacks. A panicking callback is reported to
// onPanic and does not stop the others.
func (e *Events) emit(ev Event, onPanic func(Event, interface{})) {
	if e == nil {
		return
	}
	e.mu.Lock()
	subs := make([]*subscription, len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	for _, sub := range subs {
		if sub.removed.Load() {
			continue
		}
		if sub.kind != numEventKinds && sub.kind != ev.Kind {
			continue
		}
		invoke(sub.fn, ev, onPanic)
	}
}

func invoke(fn func(Event), ev Event, onPanic func(Event, interface{})) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(ev, r)
		}
	}()
	fn(ev)
}

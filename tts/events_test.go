package tts

import (
	"strings"
	"testing"
)

func TestEventKindNames(t *testing.T) {
	var names []string
	for k := EventQueueBegin; k < numEventKinds; k++ {
		names = append(names, k.String())
	}
	want := "queue-begin begin load-begin load-aborted load-failed load-ready playback-start playback-cancelled playback-complete complete queue-complete"
	if got := strings.Join(names, " "); got != want {
		t.Errorf("kind names = %s", got)
	}
	if EventKind(-1).String() != "unknown" || numEventKinds.String() != "unknown" {
		t.Error("out of range kinds should be unknown")
	}
}

func TestEventKindIsOutcome(t *testing.T) {
	outcomes := map[EventKind]bool{
		EventLoadAborted:       true,
		EventLoadFailed:        true,
		EventPlaybackCancelled: true,
		EventPlaybackComplete:  true,
	}
	for k := EventQueueBegin; k < numEventKinds; k++ {
		if k.IsOutcome() != outcomes[k] {
			t.Errorf("%s.IsOutcome() = %v", k, k.IsOutcome())
		}
	}
}

func TestEventString(t *testing.T) {
	req := newSpeakRequest("hi there", false, nil)
	if got := (Event{Kind: EventLoadReady, Request: req, Text: req.Text}).String(); got != "load-ready(hi there)" {
		t.Errorf("String() = %q", got)
	}
	if got := (Event{Kind: EventQueueComplete}).String(); got != "queue-complete" {
		t.Errorf("String() = %q", got)
	}
}

func TestEventsDispatch(t *testing.T) {
	e := NewEvents()
	var got []string
	e.On(EventBegin, func(Event) { got = append(got, "begin-1") })
	removeAny := e.OnAny(func(ev Event) { got = append(got, "any-"+ev.Kind.String()) })
	e.On(EventBegin, func(Event) { got = append(got, "begin-2") })

	e.emit(Event{Kind: EventBegin}, nil)
	e.emit(Event{Kind: EventComplete}, nil)

	want := "begin-1 any-begin begin-2 any-complete"
	if strings.Join(got, " ") != want {
		t.Errorf("dispatch order = %v, want %s", got, want)
	}

	removeAny()
	removeAny()
	if e.Len() != 2 {
		t.Errorf("Len() = %d after remove, want 2", e.Len())
	}
}

func TestEventsRemoveDuringDispatch(t *testing.T) {
	e := NewEvents()
	var calls int
	var removeSecond func()
	e.OnAny(func(Event) { removeSecond() })
	removeSecond = e.OnAny(func(Event) { calls++ })

	e.emit(Event{Kind: EventBegin}, nil)
	if calls != 0 {
		t.Errorf("removed callback ran %d times", calls)
	}
}

func TestEventsPanicRecovery(t *testing.T) {
	e := NewEvents()
	var ran bool
	e.OnAny(func(Event) { panic("boom") })
	e.OnAny(func(Event) { ran = true })

	var recovered []interface{}
	e.emit(Event{Kind: EventBegin}, func(_ Event, r interface{}) { recovered = append(recovered, r) })

	if !ran {
		t.Error("later callback skipped after a panic")
	}
	if len(recovered) != 1 || recovered[0] != "boom" {
		t.Errorf("recovered = %v", recovered)
	}
}

func TestNilEventsEmit(t *testing.T) {
	var e *Events
	e.emit(Event{Kind: EventBegin}, nil)
}

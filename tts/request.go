package tts

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

var requestIDs atomic.Uint64

// RequestStatus is where a request sits in its lifecycle.
type RequestStatus int

const (
	// RequestLoading is queued with its clip still loading.
	RequestLoading RequestStatus = iota
	// RequestReady is queued with its clip loaded.
	RequestReady
	// RequestSpeaking occupies the speaking slot.
	RequestSpeaking
	// RequestRetired has completed, failed, been aborted or cancelled.
	RequestRetired
)

// String returns the string representation of the status.
func (s RequestStatus) String() string {
	switch s {
	case RequestLoading:
		return "loading"
	case RequestReady:
		return "ready"
	case RequestSpeaking:
		return "speaking"
	case RequestRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// SpeakRequest is one phrase waiting in, or leaving, the request queue.
// Fields other than the completion future are owned by the main context.
type SpeakRequest struct {
	ID      uint64
	Text    string
	Created time.Time

	// StopPlaybackOnReady is set for interrupting speak calls: once this
	// request's clip is ready, whatever is speaking is stopped.
	StopPlaybackOnReady bool

	clip   *ClipHandle
	events *Events
	status RequestStatus
	marker bool

	done     chan struct{}
	doneOnce sync.Once
	err      error
}

func newSpeakRequest(text string, stopOnReady bool, events *Events) *SpeakRequest {
	return &SpeakRequest{
		ID:                  requestIDs.Add(1),
		Text:                text,
		Created:             time.Now(),
		StopPlaybackOnReady: stopOnReady,
		events:              events,
		status:              RequestLoading,
		done:                make(chan struct{}),
	}
}

// Clip returns the clip handle, nil until the loader hands one out.
func (r *SpeakRequest) Clip() *ClipHandle { return r.clip }

// Status returns the lifecycle status. Main context only.
func (r *SpeakRequest) Status() RequestStatus { return r.status }

// IsMarker reports whether the request carries no audio and exists only to
// fire events between clips.
func (r *SpeakRequest) IsMarker() bool { return r.marker }

// Done is closed once the request reaches a terminal outcome.
func (r *SpeakRequest) Done() <-chan struct{} { return r.done }

// Err returns the terminal error after Done is closed. A nil error means
// the clip played to the end.
func (r *SpeakRequest) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the request completes or ctx ends.
func (r *SpeakRequest) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// complete fulfils the completion future. Later calls are ignored.
func (r *SpeakRequest) complete(err error) bool {
	fired := false
	r.doneOnce.Do(func() {
		r.err = err
		r.status = RequestRetired
		close(r.done)
		fired = true
	})
	return fired
}

func (r *SpeakRequest) retired() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

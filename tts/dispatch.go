package tts

import (
	"fmt"
	"time"

	"github.com/dgnsrekt/ttspeaker/pkg/logging"
)

// dispatcher fans an event out to the speaker-wide listeners and then to
// the request's own listeners. It runs on the main context only.
type dispatcher struct {
	global  *Events
	log     *logging.Logger
	metrics *Metrics
	now     func() time.Time

	// onRetired runs after a request's completion future resolves.
	onRetired func(req *SpeakRequest)
}

func (d *dispatcher) emit(req *SpeakRequest, kind EventKind, err error) {
	ev := Event{Kind: kind, Request: req, Err: err, Time: d.now()}
	if req != nil {
		ev.Text = req.Text
		ev.Clip = req.clip
	}

	if d.log.Enabled(logging.DebugLevel) {
		kv := []interface{}{"event", kind.String()}
		if req != nil {
			kv = append(kv, "request", req.ID, "text", logging.Truncate(req.Text, 40))
		}
		if err != nil {
			kv = append(kv, "err", err)
		}
		d.log.Debug("dispatch", kv...)
	}

	d.global.emit(ev, d.recovered)
	if req != nil {
		req.events.emit(ev, d.recovered)
	}
}

// finish fires the terminal outcome, then EventComplete, then resolves the
// completion future. It reports false when the request already retired.
func (d *dispatcher) finish(req *SpeakRequest, outcome EventKind, err error) bool {
	if req == nil || req.status == RequestRetired {
		return false
	}
	req.status = RequestRetired

	if outcome != EventPlaybackComplete && err == nil {
		err = ErrCancelled
	}
	if outcome == EventPlaybackComplete {
		d.emit(req, outcome, nil)
	} else {
		d.emit(req, outcome, err)
	}
	d.emit(req, EventComplete, err)
	req.complete(err)

	d.metrics.observeOutcome(outcome, req.Created, d.now())
	if d.onRetired != nil {
		d.onRetired(req)
	}
	return true
}

func (d *dispatcher) recovered(ev Event, r interface{}) {
	d.log.Error("listener panicked", "event", ev.Kind.String(), "panic", fmt.Sprint(r))
}

package tts

import (
	"github.com/dgnsrekt/ttspeaker/internal/queue"
)

// RequestQueue is the ordered list of pending speak requests. Entries are
// mutated on the main context; the backing queue is mutex-guarded so
// inspection from other goroutines (status snapshots, metrics) is safe.
type RequestQueue struct {
	items *queue.Queue[*SpeakRequest]
	d     *dispatcher

	clearing bool
	onFill   func()
	onDrain  func()
}

func newRequestQueue(d *dispatcher) *RequestQueue {
	return &RequestQueue{
		items: queue.New[*SpeakRequest](),
		d:     d,
	}
}

// Len returns the number of queued requests.
func (q *RequestQueue) Len() int {
	return q.items.Size()
}

// Items returns a snapshot in queue order.
func (q *RequestQueue) Items() []*SpeakRequest {
	return q.items.Items()
}

// Enqueue appends a request. It never fails while the speaker is running.
func (q *RequestQueue) Enqueue(req *SpeakRequest) {
	if err := q.items.Enqueue(req); err != nil {
		q.d.log.Warn("enqueue after shutdown", "request", req.ID)
		q.d.finish(req, EventLoadAborted, ErrShutdown)
		return
	}
	q.d.metrics.setQueueDepth(q.items.Size())
	if q.onFill != nil {
		q.onFill()
	}
}

// Peek returns the head without removing it.
func (q *RequestQueue) Peek() (*SpeakRequest, bool) {
	req, err := q.items.Peek()
	if err != nil {
		return nil, false
	}
	return req, true
}

// DequeueIfLoaded removes the head only when its clip is ready to play.
func (q *RequestQueue) DequeueIfLoaded() (*SpeakRequest, bool) {
	req, found, err := q.items.DequeueIf(func(r *SpeakRequest) bool {
		return r.status == RequestReady
	})
	if err != nil || !found {
		return nil, false
	}
	q.d.metrics.setQueueDepth(q.items.Size())
	return req, true
}

// Contains reports whether req is still queued.
func (q *RequestQueue) Contains(req *SpeakRequest) bool {
	return q.items.Any(func(r *SpeakRequest) bool { return r == req })
}

// ClearPreservingQueueFlag aborts every queued request without letting the
// queue report itself complete in between, so an interrupting speak call
// replaces the queue in one step from the listeners' point of view.
func (q *RequestQueue) ClearPreservingQueueFlag(err error) int {
	q.clearing = true
	defer func() { q.clearing = false }()

	removed := q.items.Clear()
	q.d.metrics.setQueueDepth(0)
	for _, req := range removed {
		q.retire(req, err)
	}
	return len(removed)
}

// RemoveMatching removes every queued request for which match is true.
// Each removal is aborted when err is nil or a cancellation, failed
// otherwise.
func (q *RequestQueue) RemoveMatching(match func(*SpeakRequest) bool, err error) int {
	removed := q.items.RemoveMatching(match)
	if len(removed) == 0 {
		return 0
	}
	q.d.metrics.setQueueDepth(q.items.Size())
	for _, req := range removed {
		q.retire(req, err)
	}
	if !q.clearing && q.onDrain != nil {
		q.onDrain()
	}
	return len(removed)
}

func (q *RequestQueue) retire(req *SpeakRequest, err error) {
	kind := EventLoadAborted
	if !IsCancellation(err) {
		kind = EventLoadFailed
	}
	q.d.finish(req, kind, err)
}

// close aborts what is left and refuses further requests.
func (q *RequestQueue) close(err error) {
	q.clearing = true
	defer func() { q.clearing = false }()
	for _, req := range q.items.Close() {
		q.retire(req, err)
	}
	q.d.metrics.setQueueDepth(0)
}

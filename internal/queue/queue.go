// Package queue provides a thread-safe ordered queue used by the speaker to
// hold pending requests.
package queue

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueEmpty is returned when peeking or dequeueing an empty queue.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrQueueClosed is returned when operations are attempted on a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// Queue is a FIFO queue guarded by a mutex. Readers on other goroutines may
// inspect the head while the owner mutates the queue.
type Queue[T any] struct {
	mu     sync.RWMutex
	items  []T
	closed bool
	stats  Stats
}

// Stats tracks queue activity.
type Stats struct {
	TotalEnqueued int64
	TotalDequeued int64
	TotalRemoved  int64
	CurrentSize   int
	PeakSize      int
	LastEnqueue   time.Time
	LastDequeue   time.Time
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Enqueue appends item to the tail.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, item)
	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = time.Now()
	q.updateSizeLocked()
	return nil
}

// Peek returns the head without removing it.
func (q *Queue[T]) Peek() (T, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var zero T
	if q.closed {
		return zero, ErrQueueClosed
	}
	if len(q.items) == 0 {
		return zero, ErrQueueEmpty
	}
	return q.items[0], nil
}

// Dequeue removes and returns the head.
func (q *Queue[T]) Dequeue() (T, error) {
	item, found, err := q.DequeueIf(func(T) bool { return true })
	if err != nil {
		return item, err
	}
	if !found {
		return item, ErrQueueEmpty
	}
	return item, nil
}

// DequeueIf removes the head only when ok accepts it. found reports whether
// an item was removed; a rejected or missing head leaves the queue untouched.
func (q *Queue[T]) DequeueIf(ok func(T) bool) (item T, found bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return item, false, ErrQueueClosed
	}
	if len(q.items) == 0 || !ok(q.items[0]) {
		return item, false, nil
	}

	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]

	q.stats.TotalDequeued++
	q.stats.LastDequeue = time.Now()
	q.updateSizeLocked()
	return item, true, nil
}

// RemoveMatching removes every item for which match returns true and
// returns them in queue order. Relative order of the remaining items is
// preserved.
func (q *Queue[T]) RemoveMatching(match func(T) bool) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	var removed []T
	kept := q.items[:0]
	for _, item := range q.items {
		if match(item) {
			removed = append(removed, item)
			continue
		}
		kept = append(kept, item)
	}
	// Clear the tail so removed items can be collected.
	var zero T
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = zero
	}
	q.items = kept

	q.stats.TotalRemoved += int64(len(removed))
	q.updateSizeLocked()
	return removed
}

// Clear removes and returns every item.
func (q *Queue[T]) Clear() []T {
	return q.RemoveMatching(func(T) bool { return true })
}

// Items returns a snapshot of the queue contents in order.
func (q *Queue[T]) Items() []T {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}

// Any reports whether any item satisfies match.
func (q *Queue[T]) Any(match func(T) bool) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, item := range q.items {
		if match(item) {
			return true
		}
	}
	return false
}

// Size returns the number of queued items.
func (q *Queue[T]) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// GetStats returns a copy of the queue statistics.
func (q *Queue[T]) GetStats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.stats
}

// Close marks the queue closed and returns the items it still held.
func (q *Queue[T]) Close() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	rest := q.items
	q.items = nil
	q.updateSizeLocked()
	return rest
}

func (q *Queue[T]) updateSizeLocked() {
	q.stats.CurrentSize = len(q.items)
	if q.stats.CurrentSize > q.stats.PeakSize {
		q.stats.PeakSize = q.stats.CurrentSize
	}
}

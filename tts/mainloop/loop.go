// Package mainloop provides the main scheduling context for a speaker: a
// single goroutine that owns all speaker state, fed by a thread-safe task
// handoff and driven by a ticker.
package mainloop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgnsrekt/ttspeaker/pkg/logging"
)

// Updater is called once per tick after posted tasks have run.
type Updater func(dt time.Duration)

// Loop is the main context. Post may be called from any goroutine; Tick
// and Run must be driven by exactly one goroutine.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}

	updaters []Updater
	log      *logging.Logger

	now  func() time.Time
	last time.Time
}

// New creates a loop. A nil logger discards.
func New(log *logging.Logger) *Loop {
	if log == nil {
		log = logging.Nop()
	}
	return &Loop{
		wake: make(chan struct{}, 1),
		log:  log.Category("mainloop"),
		now:  time.Now,
	}
}

// Post schedules fn on the main context. It never runs fn inline and never
// waits on the main context.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// OnUpdate registers an updater. Call it before the loop starts.
func (l *Loop) OnUpdate(u Updater) {
	l.updaters = append(l.updaters, u)
}

// Pending returns the number of tasks waiting for the next tick.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Drain runs posted tasks in FIFO order until none are left, including
// tasks posted by the tasks themselves. It returns how many ran.
func (l *Loop) Drain() int {
	ran := 0
	for {
		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return ran
		}
		for _, fn := range batch {
			l.run(fn)
			ran++
		}
	}
}

// Tick drains posted tasks and then runs every updater with dt.
func (l *Loop) Tick(dt time.Duration) {
	l.Drain()
	for _, u := range l.updaters {
		l.run(func() { u(dt) })
	}
	// Updaters may post follow-up work; run it in the same tick.
	l.Drain()
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("main loop task panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// Run ticks every interval until ctx ends. Posted tasks also wake the loop
// between ticks so load completions are handled promptly.
func (l *Loop) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.last = l.now()
	for {
		select {
		case <-ctx.Done():
			l.Drain()
			return ctx.Err()

		case <-l.wake:
			l.Drain()

		case <-ticker.C:
			now := l.now()
			dt := now.Sub(l.last)
			l.last = now
			l.Tick(dt)
		}
	}
}

// Package loop provides the single-goroutine event loop that owns all
// connection state.
//
// Socket callbacks, timer firings and commands are closures posted to the
// loop and run to completion one at a time. Worker goroutines may block on
// I/O but never touch loop-owned state; they post their results instead.
package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
)

// DefaultQueueSize is the default capacity of the posted-function queue.
const DefaultQueueSize = 1024

// Loop executes posted functions sequentially.
type Loop struct {
	clock   quartz.Clock
	queue   chan func()
	done    chan struct{}
	once    sync.Once
	pending atomic.Int64
}

// New creates a loop driven by clock. queueSize of zero or less selects
// DefaultQueueSize.
func New(clock quartz.Clock, queueSize int) *Loop {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Loop{
		clock: clock,
		queue: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
}

// Clock returns the clock timers are created on.
func (l *Loop) Clock() quartz.Clock {
	return l.clock
}

// Post enqueues fn for execution on the loop. It is safe to call from any
// goroutine and blocks while the queue is full. Returns false once the loop
// has been closed; fn is then never run.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case <-l.done:
		return false
	case l.queue <- fn:
		return true
	}
}

// Run executes posted functions until ctx is done, then closes the loop.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.done:
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}

// RunPending executes queued functions on the calling goroutine until the
// queue is empty and returns how many ran. Functions posted while draining
// are run too. Intended for callers that step the loop themselves.
func (l *Loop) RunPending() int {
	n := 0
	for {
		select {
		case fn := <-l.queue:
			fn()
			n++
		default:
			return n
		}
	}
}

// Close stops accepting work. Queued functions are dropped. Idempotent.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
}

// Done is closed when the loop stops accepting work.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Pending returns the number of armed timers.
func (l *Loop) Pending() int {
	return int(l.pending.Load())
}

// Timer is a one-shot or periodic timer whose callback runs on the loop.
// Timer methods must be called on the loop.
type Timer struct {
	loop    *Loop
	fn      func()
	period  time.Duration
	clock   *quartz.Timer
	seq     uint64
	stopped bool
}

// AfterFunc arms a one-shot timer that runs fn on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{loop: l, fn: fn}
	l.pending.Add(1)
	t.arm(d)
	return t
}

// Every arms a periodic timer that runs fn on the loop every d.
// The first firing happens after one full period.
func (l *Loop) Every(d time.Duration, fn func()) *Timer {
	t := &Timer{loop: l, fn: fn, period: d}
	l.pending.Add(1)
	t.arm(d)
	return t
}

func (t *Timer) arm(d time.Duration) {
	t.seq++
	seq := t.seq
	t.clock = t.loop.clock.AfterFunc(d, func() {
		t.loop.Post(func() { t.fire(seq) })
	})
}

// fire runs on the loop. A firing queued before Stop or Reset carries a
// stale seq and is dropped here, which keeps Stop exact.
func (t *Timer) fire(seq uint64) {
	if t.stopped || seq != t.seq {
		return
	}
	if t.period > 0 {
		t.arm(t.period)
	} else {
		t.stopped = true
		t.loop.pending.Add(-1)
	}
	t.fn()
}

// Stop disarms the timer. The callback does not run after Stop returns,
// even if its firing is already queued. Stop is idempotent and safe on a
// nil Timer. Returns true if the timer was armed.
func (t *Timer) Stop() bool {
	if t == nil || t.stopped {
		return false
	}
	t.stopped = true
	t.loop.pending.Add(-1)
	if t.clock != nil {
		t.clock.Stop()
	}
	return true
}

// Reset rearms the timer to fire after d, as if newly created.
func (t *Timer) Reset(d time.Duration) {
	if t == nil {
		return
	}
	if t.stopped {
		t.stopped = false
		t.loop.pending.Add(1)
	} else if t.clock != nil {
		t.clock.Stop()
	}
	t.arm(d)
}

// Active reports whether the timer is armed.
func (t *Timer) Active() bool {
	return t != nil && !t.stopped
}

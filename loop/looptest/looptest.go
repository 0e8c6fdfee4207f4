// Package looptest steps a loop.Loop against a mock clock.
package looptest

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"

	"github.com/pithecene-io/tlink/loop"
)

// waitTimeout bounds how long a mock clock advance waits for timer callbacks.
const waitTimeout = 10 * time.Second

// New returns a mock clock and a loop driven by it.
func New(tb testing.TB) (*quartz.Mock, *loop.Loop) {
	tb.Helper()
	clock := quartz.NewMock(tb)
	l := loop.New(clock, 0)
	tb.Cleanup(l.Close)
	return clock, l
}

// Advance moves clock forward by d one timer event at a time, draining the
// loop after each event so rearmed timers are seen by the next step.
func Advance(tb testing.TB, clock *quartz.Mock, l *loop.Loop, d time.Duration) {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	l.RunPending()
	for d > 0 {
		next, ok := clock.Peek()
		if !ok || next > d {
			clock.Advance(d).MustWait(ctx)
			l.RunPending()
			return
		}
		_, w := clock.AdvanceNext()
		w.MustWait(ctx)
		d -= next
		l.RunPending()
	}
}

// Poll drains the loop until cond holds or the deadline passes. Used when
// worker goroutines post results asynchronously.
func Poll(tb testing.TB, l *loop.Loop, cond func() bool) {
	tb.Helper()
	deadline := time.Now().Add(waitTimeout)
	for {
		l.RunPending()
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			tb.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

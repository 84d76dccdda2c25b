package turntimer_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/robalobadob/codebreak/internal/turntimer"
)

func newTimer(t *testing.T) (*turntimer.Timer, *clockwork.FakeClock, chan turntimer.Event) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	events := make(chan turntimer.Event, 16)
	tm := turntimer.New(fc, func(e turntimer.Event) { events <- e })
	return tm, fc, events
}

func waitEvent(t *testing.T, events <-chan turntimer.Event) turntimer.Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for timer event")
	}
	return turntimer.Event{}
}

func expectQuiet(t *testing.T, events <-chan turntimer.Event) {
	t.Helper()
	select {
	case e := <-events:
		t.Fatalf("unexpected timer event %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func blockUntilWaiters(t *testing.T, fc *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("waiting for %d clock waiters: %v", n, err)
	}
}

func TestTimer_CountsDownToZeroThenExpires(t *testing.T) {
	tm, fc, events := newTimer(t)

	gen := tm.Start(3)
	blockUntilWaiters(t, fc, 1)

	for want := 2; want >= 0; want-- {
		fc.Advance(time.Second)
		e := waitEvent(t, events)
		if e.Expired || e.Left != want || e.Gen != gen {
			t.Fatalf("tick = %+v want Left=%d Gen=%d", e, want, gen)
		}
	}

	e := waitEvent(t, events)
	if !e.Expired || e.Gen != gen {
		t.Fatalf("expected expiry for gen %d, got %+v", gen, e)
	}
	tm.Cancel()

	fc.Advance(5 * time.Second)
	expectQuiet(t, events)
}

func TestTimer_CancelIsIdempotentAndSilences(t *testing.T) {
	tm, fc, events := newTimer(t)

	tm.Start(2)
	blockUntilWaiters(t, fc, 1)

	tm.Cancel()
	tm.Cancel()

	fc.Advance(10 * time.Second)
	expectQuiet(t, events)
}

func TestTimer_RestartReplacesCountdown(t *testing.T) {
	tm, fc, events := newTimer(t)

	first := tm.Start(5)
	blockUntilWaiters(t, fc, 1)
	second := tm.Start(1)
	if second == first {
		t.Fatalf("expected a new generation, got %d twice", first)
	}
	blockUntilWaiters(t, fc, 1)

	fc.Advance(time.Second)
	e := waitEvent(t, events)
	if e.Gen != second || e.Left != 0 {
		t.Fatalf("tick = %+v want gen %d left 0", e, second)
	}
	e = waitEvent(t, events)
	if !e.Expired || e.Gen != second {
		t.Fatalf("expiry = %+v want gen %d", e, second)
	}
	expectQuiet(t, events)
}

func TestTimer_StartAfterCancelCountsFromFull(t *testing.T) {
	tm, fc, events := newTimer(t)

	tm.Start(30)
	blockUntilWaiters(t, fc, 1)
	fc.Advance(time.Second)
	if e := waitEvent(t, events); e.Left != 29 {
		t.Fatalf("tick = %+v want Left=29", e)
	}
	tm.Cancel()

	gen := tm.Start(30)
	blockUntilWaiters(t, fc, 1)
	fc.Advance(time.Second)
	if e := waitEvent(t, events); e.Gen != gen || e.Left != 29 {
		t.Fatalf("tick = %+v want Gen=%d Left=29", e, gen)
	}
	tm.Cancel()
}

// internal/turntimer/timer.go
//
// Per-turn countdown.
// Responsibilities:
//   - Count down once per second from the turn duration.
//   - Report every tick, including the one that reaches zero.
//   - Fire a single expiry after the zero tick unless cancelled first.
//
// Notes:
//   - At most one countdown runs per Timer; Start replaces any running one.
//   - Every countdown has a generation number carried on its events. A
//     consumer that cancels a countdown drops events from older generations,
//     which makes a stale expiry a no-op even if it was already in flight.
//   - Time comes from a clockwork.Clock so tests can drive it with a fake.

package turntimer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Event is emitted by a running countdown.
type Event struct {
	Gen     uint64 // countdown generation that produced the event
	Left    int    // seconds remaining after this tick
	Expired bool   // true on the final event of a countdown
}

// Timer is a restartable one-turn countdown.
type Timer struct {
	clock  clockwork.Clock
	notify func(Event)

	mu      sync.Mutex
	gen     uint64
	stop    chan struct{}
	running bool
}

// New returns an idle Timer. notify is called from the countdown goroutine
// and must not call back into the Timer.
func New(clock clockwork.Clock, notify func(Event)) *Timer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Timer{clock: clock, notify: notify}
}

// Start cancels any running countdown and starts a new one of the given
// length. It returns the generation of the new countdown.
func (t *Timer) Start(seconds int) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	t.gen++
	t.running = true
	t.stop = make(chan struct{})

	// The ticker is created before returning so a fake clock sees the waiter
	// as soon as Start completes.
	ticker := t.clock.NewTicker(time.Second)
	go t.run(t.gen, seconds, ticker, t.stop)
	return t.gen
}

// Cancel stops the running countdown, if any. Safe to call repeatedly.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *Timer) cancelLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.running = false
}

// run drives one countdown until it expires or its stop channel closes.
func (t *Timer) run(gen uint64, left int, ticker clockwork.Ticker, stop <-chan struct{}) {
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
		}

		t.mu.Lock()
		if t.gen != gen || !t.running {
			t.mu.Unlock()
			return
		}
		left--
		if left < 0 {
			left = 0
		}
		expired := left == 0
		if expired {
			t.running = false
			t.stop = nil
		}
		t.mu.Unlock()

		t.notify(Event{Gen: gen, Left: left})
		if expired {
			t.notify(Event{Gen: gen, Expired: true})
			return
		}
	}
}

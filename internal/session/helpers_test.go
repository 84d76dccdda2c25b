package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/robalobadob/codebreak/internal/protocol"
)

// fakeView records every notification.
type fakeView struct {
	mu          sync.Mutex
	states      []State
	history     []Record
	ticks       []int
	ended       []Outcome
	rematchReqs int
	disconnects int
}

func (v *fakeView) OnStateChanged(s State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.states = append(v.states, s)
}

func (v *fakeView) OnHistoryAppended(r Record) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.history = append(v.history, r)
}

func (v *fakeView) OnTimerTick(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ticks = append(v.ticks, n)
}

func (v *fakeView) OnGameEnded(o Outcome) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ended = append(v.ended, o)
}

func (v *fakeView) OnRematchRequested() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rematchReqs++
}

func (v *fakeView) OnDisconnected() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disconnects++
}

func (v *fakeView) Ticks() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]int(nil), v.ticks...)
}

func (v *fakeView) Ended() []Outcome {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Outcome(nil), v.ended...)
}

func (v *fakeView) Counts() (rematchReqs, disconnects int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rematchReqs, v.disconnects
}

// stubLink records sent messages and can be made to fail.
type stubLink struct {
	mu   sync.Mutex
	sent []protocol.Message
	err  error
}

func (l *stubLink) Send(m protocol.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.sent = append(l.sent, m)
	return nil
}

func (l *stubLink) Sent() []protocol.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]protocol.Message(nil), l.sent...)
}

func (l *stubLink) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

var errLinkDown = errors.New("link down")

// start runs c until the test ends.
func start(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})
}

func newController(t *testing.T, role Role, link Link, turn int, opts ...Option) (*Controller, *fakeView, *clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	view := &fakeView{}
	opts = append([]Option{WithClock(fc), WithLogger(zerolog.Nop())}, opts...)
	c := New(Config{Role: role, TurnDuration: turn}, link, view, opts...)
	start(t, c)
	return c, view, fc
}

// flush waits until every event queued before it has been applied.
func flush(t *testing.T, c *Controller) {
	t.Helper()
	if err := c.call("flush", func() error { return nil }); err != nil && !errors.Is(err, ErrDisconnected) {
		t.Fatalf("flush: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	waitFor(t, want.String(), func() bool { return c.Snapshot().State == want })
}

func blockUntilTimer(t *testing.T, fc *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("timer never started: %v", err)
	}
}

func kinds(msgs []protocol.Message) []protocol.Kind {
	out := make([]protocol.Kind, len(msgs))
	for i, m := range msgs {
		out[i] = m.Kind
	}
	return out
}

func equalKinds(a, b []protocol.Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

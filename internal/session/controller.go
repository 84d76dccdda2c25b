// internal/session/controller.go
//
// Session controller for one match between two peers.
// Responsibilities:
//   - Own the session state exclusively (role, secret, turn, history, outcome).
//   - Serialize every input (user intents, inbound messages, timer events,
//     transport open/close) through a single event loop.
//   - Drive the turn timer and the rematch handshake.
//
// State machine:
//
//	Connecting → AwaitingSecrets → LocalTurn ⇄ RemoteTurn → Ended
//	Ended → RematchPending → AwaitingSecrets
//	any → Disconnected (terminal)
//
// Notes:
//   - Intents return validation and state errors synchronously; they wait
//     for the loop to apply them, so Run must be running.
//   - Inbound messages that do not fit the current state are logged and
//     dropped; the remote peer is not trusted.

package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/codebreak/internal/protocol"
	"github.com/robalobadob/codebreak/internal/rematch"
	"github.com/robalobadob/codebreak/internal/turntimer"
)

// DefaultTurnDuration is used when Config.TurnDuration is not positive.
const DefaultTurnDuration = 30

const queueSize = 64

// Config fixes the parameters of a session at construction.
type Config struct {
	Role         Role
	TurnDuration int // seconds; authoritative on the host, replaced on the joiner by game_start
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock sets the clock driving the turn timer.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithRecorder sets where finished matches are recorded.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithLogger sets the base logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// match holds everything a rematch clears.
type match struct {
	secret          string
	localCommitted  bool
	remoteCommitted bool
	turnOwner       Side
	awaitingReply   bool
	pendingGuess    string
	history         []Record
	outcome         *Outcome
	id              string
	startedAt       time.Time
}

type event struct {
	name  string
	fn    func() error
	reply chan error
}

// Controller runs one session.
type Controller struct {
	cfg      Config
	link     Link
	view     Presenter
	log      zerolog.Logger
	clock    clockwork.Clock
	recorder Recorder

	timer    *turntimer.Timer
	rematch  *rematch.Coordinator
	dispatch *protocol.Dispatcher

	events   chan event
	done     chan struct{}
	doneOnce sync.Once
	saves    sync.WaitGroup // in-flight recorder writes

	snapMu sync.RWMutex
	snap   Snapshot

	// Owned by the event loop.
	state        State
	turnDuration int
	timerGen     uint64
	secondsLeft  int
	m            match
}

// New builds a Controller in the Connecting state. Call Run to start its
// event loop, and Opened once the transport is open.
func New(cfg Config, link Link, view Presenter, opts ...Option) *Controller {
	if view == nil {
		view = nopPresenter{}
	}
	if cfg.TurnDuration <= 0 {
		cfg.TurnDuration = DefaultTurnDuration
	}
	c := &Controller{
		cfg:          cfg,
		link:         link,
		view:         view,
		log:          log.Logger,
		clock:        clockwork.NewRealClock(),
		events:       make(chan event, queueSize),
		done:         make(chan struct{}),
		state:        Connecting,
		turnDuration: cfg.TurnDuration,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "session").Str("role", cfg.Role.String()).Logger()

	c.timer = turntimer.New(c.clock, c.onTimerEvent)
	c.rematch = rematch.New(c.onRematchAgreed)

	c.dispatch = protocol.NewDispatcher()
	c.dispatch.Handle(protocol.KindSecretCommitted, c.onSecretCommitted)
	c.dispatch.Handle(protocol.KindGameStart, c.onGameStart)
	c.dispatch.Handle(protocol.KindGuess, c.onGuess)
	c.dispatch.Handle(protocol.KindFeedback, c.onFeedback)
	c.dispatch.Handle(protocol.KindWin, c.onWin)
	c.dispatch.Handle(protocol.KindTurnSkipped, c.onTurnSkipped)
	c.dispatch.Handle(protocol.KindRematchRequested, c.onRematchRequested)
	c.dispatch.Handle(protocol.KindRematchAccepted, c.onRematchAccepted)

	c.publish()
	return c
}

// Role returns the fixed role of this side.
func (c *Controller) Role() Role { return c.cfg.Role }

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Run processes events until ctx is cancelled or the session disconnects.
// It returns nil after a disconnect and ctx.Err() on cancellation.
func (c *Controller) Run(ctx context.Context) error {
	defer c.finish()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			err := ev.fn()
			c.publish()
			if ev.reply != nil {
				ev.reply <- err
			}
			if c.state == Disconnected {
				return nil
			}
		}
	}
}

// finish stops the timer and waits for pending result writes, so the
// recorder can be closed once Done fires.
func (c *Controller) finish() {
	c.timer.Cancel()
	c.saves.Wait()
	c.doneOnce.Do(func() { close(c.done) })
}

// post enqueues fn without waiting for it to run.
func (c *Controller) post(name string, fn func() error) {
	select {
	case c.events <- event{name: name, fn: fn}:
	case <-c.done:
	}
}

// call enqueues fn and waits for its result.
func (c *Controller) call(name string, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.events <- event{name: name, fn: fn, reply: reply}:
	case <-c.done:
		return ErrDisconnected
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrDisconnected
		}
	}
}

// Snapshot returns a copy of the state as of the last processed event.
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	s := c.snap
	s.History = append([]Record(nil), c.snap.History...)
	if c.snap.Outcome != nil {
		o := *c.snap.Outcome
		s.Outcome = &o
	}
	return s
}

func (c *Controller) publish() {
	s := Snapshot{
		State:           c.state,
		Role:            c.cfg.Role,
		LocalCommitted:  c.m.localCommitted,
		RemoteCommitted: c.m.remoteCommitted,
		TurnDuration:    c.turnDuration,
		TurnOwner:       c.m.turnOwner,
		AwaitingReply:   c.m.awaitingReply,
		SecondsLeft:     c.secondsLeft,
		History:         append([]Record(nil), c.m.history...),
		RematchLocal:    c.rematch.LocalRequested(),
		RematchRemote:   c.rematch.RemoteRequested(),
	}
	if c.m.outcome != nil {
		o := *c.m.outcome
		s.Outcome = &o
	}
	c.snapMu.Lock()
	c.snap = s
	c.snapMu.Unlock()
}

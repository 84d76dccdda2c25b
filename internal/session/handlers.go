package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/codebreak/internal/game"
	"github.com/robalobadob/codebreak/internal/protocol"
	"github.com/robalobadob/codebreak/internal/store"
	"github.com/robalobadob/codebreak/internal/turntimer"
)

const recordTimeout = 5 * time.Second

// ------------------------------ inbound ------------------------------------

func (c *Controller) handleMessage(m protocol.Message) {
	if c.state == Disconnected {
		return
	}
	if err := m.Validate(); err != nil {
		if errors.Is(err, protocol.ErrUnknownKind) {
			c.log.Debug().Str("kind", string(m.Kind)).Msg("ignoring unknown message kind")
			return
		}
		c.violation(m, err.Error())
		return
	}
	c.log.Debug().Stringer("msg", m).Msg("received")
	if !c.dispatch.Dispatch(m) {
		c.log.Debug().Str("kind", string(m.Kind)).Msg("no handler")
	}
}

func (c *Controller) violation(m protocol.Message, reason string) {
	c.log.Warn().
		Stringer("msg", m).
		Str("state", c.state.String()).
		Str("reason", reason).
		Msg("protocol violation, message dropped")
}

func (c *Controller) onSecretCommitted(m protocol.Message) {
	if c.state != AwaitingSecrets || c.m.remoteCommitted {
		c.violation(m, "unexpected secret commitment")
		return
	}
	c.m.remoteCommitted = true
	c.log.Info().Msg("opponent committed secret")
	c.changed()
	c.maybeStart()
}

func (c *Controller) onGameStart(m protocol.Message) {
	if c.cfg.Role != Joiner || c.state != AwaitingSecrets || !c.m.localCommitted || !c.m.remoteCommitted {
		c.violation(m, "game start before both secrets")
		return
	}
	c.turnDuration = m.TurnDuration
	c.beginPlay(Remote)
}

// onGuess evaluates the opponent's guess against the local secret.
func (c *Controller) onGuess(m protocol.Message) {
	if c.state != RemoteTurn || c.m.awaitingReply {
		c.violation(m, "guess out of turn")
		return
	}
	sc := game.Evaluate(c.m.secret, m.Code)
	if sc.Solved() {
		if c.send(protocol.Win(m.Code)) != nil {
			return
		}
		c.appendRecord(Record{Kind: GuessRecord, Side: Remote, Code: m.Code, Score: sc, Winning: true})
		c.end(Remote)
		return
	}
	if c.send(protocol.Feedback(m.Code, sc)) != nil {
		return
	}
	c.appendRecord(Record{Kind: GuessRecord, Side: Remote, Code: m.Code, Score: sc})
	c.giveTurn(Local)
}

// onFeedback records the opponent's answer to the local guess. The turn
// stays with the opponent, who guesses next.
func (c *Controller) onFeedback(m protocol.Message) {
	if !c.expectingReply(m) {
		return
	}
	c.m.awaitingReply = false
	c.m.pendingGuess = ""
	c.appendRecord(Record{Kind: GuessRecord, Side: Local, Code: m.Code, Score: m.Score()})
}

func (c *Controller) onWin(m protocol.Message) {
	if !c.expectingReply(m) {
		return
	}
	c.m.awaitingReply = false
	c.m.pendingGuess = ""
	c.appendRecord(Record{
		Kind:    GuessRecord,
		Side:    Local,
		Code:    m.Code,
		Score:   game.Score{Bulls: game.Length},
		Winning: true,
	})
	c.end(Local)
}

func (c *Controller) expectingReply(m protocol.Message) bool {
	if c.state != RemoteTurn || !c.m.awaitingReply {
		c.violation(m, "no guess awaiting a reply")
		return false
	}
	if m.Code != c.m.pendingGuess {
		c.violation(m, fmt.Sprintf("reply for %s, pending guess is %s", m.Code, c.m.pendingGuess))
		return false
	}
	return true
}

func (c *Controller) onTurnSkipped(m protocol.Message) {
	if c.state != RemoteTurn || c.m.awaitingReply {
		c.violation(m, "skip out of turn")
		return
	}
	c.appendRecord(Record{Kind: TimeoutRecord, Side: Remote})
	c.giveTurn(Local)
}

func (c *Controller) onRematchRequested(m protocol.Message) {
	if c.state != Ended && c.state != RematchPending {
		c.violation(m, "rematch before game end")
		return
	}
	if c.rematch.RemoteRequested() {
		c.violation(m, "duplicate rematch request")
		return
	}
	c.view.OnRematchRequested()
	c.setState(RematchPending)
	c.rematch.OnRemoteRequest()
}

// onRematchAccepted resets when the opponent saw both requests first. When
// both sides accepted at once, the second acceptance arrives after the
// local reset and is ignored.
func (c *Controller) onRematchAccepted(m protocol.Message) {
	if c.state != Ended && c.state != RematchPending {
		c.log.Debug().Str("state", c.state.String()).Msg("ignoring rematch acceptance after reset")
		return
	}
	if !c.rematch.LocalRequested() {
		c.violation(m, "rematch accepted without local request")
		return
	}
	c.resetForRematch()
}

// onRematchAgreed runs once both flags are set on this side.
func (c *Controller) onRematchAgreed() {
	if c.send(protocol.RematchAccepted()) != nil {
		return
	}
	c.resetForRematch()
}

// ------------------------------ timer --------------------------------------

// onTimerEvent runs on the timer goroutine; it only enqueues.
func (c *Controller) onTimerEvent(e turntimer.Event) {
	c.post("timer", func() error {
		c.handleTimer(e)
		return nil
	})
}

func (c *Controller) handleTimer(e turntimer.Event) {
	if e.Gen != c.timerGen || c.state != LocalTurn {
		c.log.Debug().Uint64("gen", e.Gen).Msg("stale timer event dropped")
		return
	}
	if !e.Expired {
		c.secondsLeft = e.Left
		c.view.OnTimerTick(e.Left)
		return
	}

	c.timerGen = 0
	c.secondsLeft = 0
	c.log.Info().Msg("turn timed out")
	if c.send(protocol.TurnSkipped()) != nil {
		return
	}
	c.appendRecord(Record{Kind: TimeoutRecord, Side: Local})
	c.giveTurn(Remote)
}

func (c *Controller) startTimer() {
	c.secondsLeft = c.turnDuration
	c.timerGen = c.timer.Start(c.turnDuration)
	c.view.OnTimerTick(c.secondsLeft)
}

// stopTimer cancels the countdown; events already in flight are dropped by
// handleTimer because the generation no longer matches.
func (c *Controller) stopTimer() {
	c.timer.Cancel()
	c.timerGen = 0
	c.secondsLeft = 0
}

// ---------------------------- transitions ----------------------------------

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.log.Debug().Str("from", c.state.String()).Str("to", s.String()).Msg("state")
	c.state = s
	c.view.OnStateChanged(s)
}

// changed notifies the presenter of a change that did not move the state,
// such as the opponent committing a secret.
func (c *Controller) changed() { c.view.OnStateChanged(c.state) }

func (c *Controller) appendRecord(r Record) {
	c.m.history = append(c.m.history, r)
	c.view.OnHistoryAppended(r)
}

// maybeStart starts play on the host once both secrets are in.
func (c *Controller) maybeStart() {
	if c.cfg.Role != Host || c.state != AwaitingSecrets || !c.m.localCommitted || !c.m.remoteCommitted {
		return
	}
	if c.send(protocol.GameStart(c.turnDuration)) != nil {
		return
	}
	c.beginPlay(Local)
}

func (c *Controller) beginPlay(first Side) {
	c.m.id = uuid.NewString()
	c.m.startedAt = c.clock.Now()
	c.log.Info().
		Str("match_id", c.m.id).
		Int("turn_duration", c.turnDuration).
		Str("first", first.String()).
		Msg("game started")
	c.giveTurn(first)
}

// giveTurn hands the turn to side. The countdown only runs on the local turn.
func (c *Controller) giveTurn(side Side) {
	c.m.turnOwner = side
	if side == Local {
		c.setState(LocalTurn)
		c.startTimer()
		return
	}
	c.stopTimer()
	c.setState(RemoteTurn)
}

func (c *Controller) end(winner Side) {
	c.stopTimer()
	c.m.turnOwner = None
	c.m.awaitingReply = false
	out := Outcome{Winner: winner}
	c.m.outcome = &out
	c.log.Info().Str("match_id", c.m.id).Str("winner", winner.String()).Msg("game ended")
	c.setState(Ended)
	c.view.OnGameEnded(out)
	c.recordResult(out)
}

// resetForRematch clears the match but keeps role, turn duration and the
// connection.
func (c *Controller) resetForRematch() {
	c.stopTimer()
	c.rematch.Reset()
	c.m = match{}
	c.log.Info().Msg("rematch agreed, session reset")
	c.setState(AwaitingSecrets)
}

func (c *Controller) disconnect(err error) {
	if c.state == Disconnected {
		return
	}
	c.stopTimer()
	c.m.turnOwner = None
	c.m.awaitingReply = false
	c.log.Info().Err(err).Str("state", c.state.String()).Msg("transport closed")
	c.setState(Disconnected)
	c.view.OnDisconnected()
}

// send writes one message; a failure ends the session.
func (c *Controller) send(m protocol.Message) error {
	if err := c.link.Send(m); err != nil {
		c.log.Error().Err(err).Str("kind", string(m.Kind)).Msg("send failed")
		c.disconnect(err)
		return fmt.Errorf("send %s: %w", m.Kind, ErrDisconnected)
	}
	c.log.Debug().Stringer("msg", m).Msg("sent")
	return nil
}

// recordResult hands the finished match to the recorder without blocking
// the event loop. Run does not return until the write is done.
func (c *Controller) recordResult(out Outcome) {
	if c.recorder == nil {
		return
	}
	res := store.Result{
		MatchID:   c.m.id,
		Role:      c.cfg.Role.String(),
		Winner:    store.WinnerRemote,
		StartedAt: c.m.startedAt,
		EndedAt:   c.clock.Now(),
	}
	if out.Winner == Local {
		res.Winner = store.WinnerLocal
	}
	for _, r := range c.m.history {
		if r.Kind == TimeoutRecord {
			res.Timeouts++
		} else {
			res.Guesses++
		}
	}

	rec, logger := c.recorder, c.log
	c.saves.Add(1)
	go func() {
		defer c.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := rec.Save(ctx, res); err != nil {
			logger.Warn().Err(err).Str("match_id", res.MatchID).Msg("record result")
		}
	}()
}

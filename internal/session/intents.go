package session

import (
	"fmt"

	"github.com/robalobadob/codebreak/internal/game"
	"github.com/robalobadob/codebreak/internal/protocol"
	"github.com/robalobadob/codebreak/internal/transport"
)

// ---------------------------- user intents ---------------------------------

// CommitSecret locks in the local secret. It succeeds once per game; later
// calls return ErrAlreadyCommitted and change nothing.
func (c *Controller) CommitSecret(code string) error {
	if err := game.Validate(code); err != nil {
		return err
	}
	return c.call("commit_secret", func() error {
		if c.m.localCommitted {
			return ErrAlreadyCommitted
		}
		if c.state != AwaitingSecrets {
			return fmt.Errorf("commit secret while %s: %w", c.state, ErrWrongState)
		}
		c.m.secret = code
		c.m.localCommitted = true
		if err := c.send(protocol.SecretCommitted()); err != nil {
			return err
		}
		c.log.Info().Msg("secret committed")
		c.changed()
		c.maybeStart()
		return nil
	})
}

// SetTurnDuration changes the turn length before a game starts. Host only.
func (c *Controller) SetTurnDuration(seconds int) error {
	if seconds <= 0 {
		return ErrInvalidDuration
	}
	return c.call("set_turn_duration", func() error {
		if c.cfg.Role != Host {
			return ErrNotHost
		}
		if c.state != Connecting && c.state != AwaitingSecrets {
			return fmt.Errorf("set turn duration while %s: %w", c.state, ErrWrongState)
		}
		c.turnDuration = seconds
		c.log.Debug().Int("turn_duration", seconds).Msg("turn duration set")
		return nil
	})
}

// SubmitGuess sends a guess at the opponent's secret. Only valid on the
// local turn; the countdown stops and the turn passes to the opponent.
func (c *Controller) SubmitGuess(code string) error {
	if err := game.Validate(code); err != nil {
		return err
	}
	return c.call("submit_guess", func() error {
		if c.state != LocalTurn {
			return fmt.Errorf("guess while %s: %w", c.state, ErrWrongState)
		}
		c.stopTimer()
		if err := c.send(protocol.Guess(code)); err != nil {
			return err
		}
		c.m.awaitingReply = true
		c.m.pendingGuess = code
		c.giveTurn(Remote)
		return nil
	})
}

// RequestRematch asks to play again after a game has ended.
func (c *Controller) RequestRematch() error {
	return c.call("request_rematch", func() error {
		if c.state != Ended && c.state != RematchPending {
			return fmt.Errorf("rematch while %s: %w", c.state, ErrWrongState)
		}
		if c.rematch.LocalRequested() {
			return ErrAlreadyRequested
		}
		if err := c.send(protocol.RematchRequested()); err != nil {
			return err
		}
		c.setState(RematchPending)
		c.rematch.RequestLocal()
		return nil
	})
}

// -------------------------- transport callbacks ----------------------------

// Attach routes conn's callbacks into c and starts conn. conn is normally
// also the Link c was built with.
func Attach(c *Controller, conn transport.Conn) {
	conn.OnMessage(c.Receive)
	conn.OnOpen(c.Opened)
	conn.OnClose(c.Closed)
	conn.Start()
}

// Opened reports that the transport is ready.
func (c *Controller) Opened() {
	c.post("opened", func() error {
		if c.state != Connecting {
			return nil
		}
		c.log.Info().Msg("peer connected")
		c.setState(AwaitingSecrets)
		return nil
	})
}

// Receive queues one inbound message.
func (c *Controller) Receive(m protocol.Message) {
	c.post("receive", func() error {
		c.handleMessage(m)
		return nil
	})
}

// Closed reports that the transport is gone. The session ends for good.
func (c *Controller) Closed(err error) {
	c.post("closed", func() error {
		c.disconnect(err)
		return nil
	})
}

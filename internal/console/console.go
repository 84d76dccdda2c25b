// internal/console/console.go
//
// Line-oriented terminal front end for one session.
// Responsibilities:
//   - Render session notifications (state, history, countdown, outcome).
//   - Read commands from an input stream and turn them into intents.
//
// Commands:
//   NNNN          commit a secret (before the game) or guess (on your turn)
//   time N        host only, before the game: set the turn length in seconds
//   rematch       ask for, or accept, another game
//   history       list guesses, most recent first
//   status        show the current state
//   help          list commands
//   quit          leave
//
// Notes:
//   - Presenter methods run on the session loop; Run runs on the caller's
//     goroutine. Both write through the same mutex.

package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/codebreak/internal/config"
	"github.com/robalobadob/codebreak/internal/game"
	"github.com/robalobadob/codebreak/internal/session"
)

// LowTime is the countdown value below which every tick is shown.
const LowTime = 10

// Controller is the part of *session.Controller the console drives.
type Controller interface {
	Snapshot() session.Snapshot
	Done() <-chan struct{}
	CommitSecret(code string) error
	SubmitGuess(code string) error
	SetTurnDuration(seconds int) error
	RequestRematch() error
}

// Console renders a session to out. It implements session.Presenter.
type Console struct {
	mu   sync.Mutex
	out  io.Writer
	last session.State
}

// New returns a Console writing to out.
func New(out io.Writer) *Console {
	return &Console{out: out, last: session.Connecting}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// ----------------------------- presenter -----------------------------------

func (c *Console) OnStateChanged(s session.State) {
	c.mu.Lock()
	if s == c.last {
		c.mu.Unlock()
		return
	}
	c.last = s
	c.mu.Unlock()

	switch s {
	case session.AwaitingSecrets:
		c.printf("Connected. Enter your %d-digit secret.\n", game.Length)
	case session.LocalTurn:
		c.printf("Your turn. Guess the opponent's code.\n")
	case session.RemoteTurn:
		c.printf("Opponent's turn.\n")
	case session.RematchPending:
		c.printf("Rematch pending.\n")
	}
}

func (c *Console) OnHistoryAppended(r session.Record) {
	c.printf("%s\n", FormatRecord(r))
}

func (c *Console) OnTimerTick(left int) {
	switch {
	case left == 0:
		c.printf("  time's up\n")
	case left < LowTime:
		c.printf("  %ds left!\n", left)
	case left%10 == 0:
		c.printf("  %ds left\n", left)
	}
}

func (c *Console) OnGameEnded(o session.Outcome) {
	if o.Winner == session.Local {
		c.printf("You cracked it. You win!\n")
	} else {
		c.printf("Your code was cracked. You lose.\n")
	}
	c.printf("Type 'rematch' to play again or 'quit' to leave.\n")
}

func (c *Console) OnRematchRequested() {
	c.printf("Opponent wants a rematch. Type 'rematch' to accept.\n")
}

func (c *Console) OnDisconnected() {
	c.printf("Connection closed. Game over.\n")
}

// FormatRecord renders one history entry.
func FormatRecord(r session.Record) string {
	who := "you "
	if r.Side == session.Remote {
		who = "them"
	}
	if r.Kind == session.TimeoutRecord {
		return fmt.Sprintf("%s  ----  timed out", who)
	}
	line := fmt.Sprintf("%s  %s  %dB %dC", who, r.Code, r.Score.Bulls, r.Score.Cows)
	if r.Winning {
		line += "  solved"
	}
	return line
}

// ------------------------------- input -------------------------------------

// ErrQuit is returned by Run when the user leaves.
var ErrQuit = errors.New("quit")

// Run reads commands from in until the user quits, in ends, the session
// finishes, or ctx is cancelled. Quitting and end of input return nil.
func (c *Console) Run(ctx context.Context, in io.Reader, ctl Controller) error {
	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-stop:
				return
			}
		}
		if err := sc.Err(); err != nil {
			log.Warn().Err(err).Msg("console input")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ctl.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := c.Handle(line, ctl); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				c.printf("error: %v\n", err)
			}
		}
	}
}

// Handle executes one command line.
func (c *Console) Handle(line string, ctl Controller) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return ErrQuit
	case "help", "?":
		c.printf("commands: <%d digits> | time N | rematch | history | status | quit\n", game.Length)
		return nil
	case "status":
		c.printf("%s\n", FormatStatus(ctl.Snapshot()))
		return nil
	case "history":
		c.printHistory(ctl.Snapshot().History)
		return nil
	case "rematch":
		return ctl.RequestRematch()
	case "time":
		if len(fields) != 2 {
			return fmt.Errorf("usage: time N")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("time: %w", err)
		}
		if err := config.ValidateTurnSeconds(n); err != nil {
			return err
		}
		if err := ctl.SetTurnDuration(n); err != nil {
			return err
		}
		c.printf("Turn length set to %ds.\n", n)
		return nil
	}

	code := fields[0]
	switch s := ctl.Snapshot(); s.State {
	case session.AwaitingSecrets:
		if err := ctl.CommitSecret(code); err != nil {
			return err
		}
		c.printf("Secret locked in. Waiting for the opponent.\n")
		return nil
	case session.LocalTurn:
		return ctl.SubmitGuess(code)
	default:
		return fmt.Errorf("nothing to do with %q while %s", code, s.State)
	}
}

func (c *Console) printHistory(h []session.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(h) == 0 {
		fmt.Fprintln(c.out, "no guesses yet")
		return
	}
	for i := len(h) - 1; i >= 0; i-- {
		fmt.Fprintln(c.out, FormatRecord(h[i]))
	}
}

// FormatStatus renders a one-line summary of s.
func FormatStatus(s session.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, %s, turn %ds", s.Role, s.State, s.TurnDuration)
	switch s.State {
	case session.AwaitingSecrets:
		fmt.Fprintf(&b, ", secrets: you=%t them=%t", s.LocalCommitted, s.RemoteCommitted)
	case session.LocalTurn:
		fmt.Fprintf(&b, ", %ds left", s.SecondsLeft)
	case session.RemoteTurn:
		if s.AwaitingReply {
			b.WriteString(", waiting for feedback")
		}
	case session.Ended, session.RematchPending:
		if s.Outcome != nil {
			fmt.Fprintf(&b, ", winner %s", s.Outcome.Winner)
		}
		if s.RematchLocal || s.RematchRemote {
			fmt.Fprintf(&b, ", rematch: you=%t them=%t", s.RematchLocal, s.RematchRemote)
		}
	}
	return b.String()
}

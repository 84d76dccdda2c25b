// internal/session/types.go
//
// Core type definitions for a match session.
// Defines:
//   - Role, Side, State enums.
//   - Record: one history entry (guess or timeout).
//   - Outcome: terminal result of a game.
//   - Snapshot: read-only copy of session state for presentation and tests.

package session

import (
	"errors"

	"github.com/robalobadob/codebreak/internal/game"
)

// Role is fixed when the transport connects.
// The Host moves first and decides the turn duration.
type Role int

const (
	Host Role = iota
	Joiner
)

func (r Role) String() string {
	if r == Host {
		return "host"
	}
	return "joiner"
}

// Side names one of the two players relative to this process.
type Side int

const (
	None Side = iota
	Local
	Remote
)

func (s Side) String() string {
	switch s {
	case Local:
		return "local"
	case Remote:
		return "remote"
	}
	return "none"
}

// Other returns the opposite side.
func (s Side) Other() Side {
	switch s {
	case Local:
		return Remote
	case Remote:
		return Local
	}
	return None
}

// State of the session state machine.
type State int

const (
	Connecting State = iota
	AwaitingSecrets
	LocalTurn
	RemoteTurn
	Ended
	RematchPending
	Disconnected
)

var stateNames = [...]string{
	Connecting:      "connecting",
	AwaitingSecrets: "awaiting_secrets",
	LocalTurn:       "local_turn",
	RemoteTurn:      "remote_turn",
	Ended:           "ended",
	RematchPending:  "rematch_pending",
	Disconnected:    "disconnected",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// RecordKind distinguishes guesses from forfeited turns.
type RecordKind int

const (
	GuessRecord RecordKind = iota
	TimeoutRecord
)

// Record is one immutable history entry.
// For a GuessRecord, Side is the guesser; for a TimeoutRecord, Side is
// whoever ran out of time.
type Record struct {
	Kind    RecordKind
	Side    Side
	Code    string
	Score   game.Score
	Winning bool
}

// Outcome is set once, when the game ends.
type Outcome struct {
	Winner Side
}

// Snapshot is a copy of session state; mutating it has no effect on the
// session.
type Snapshot struct {
	State           State
	Role            Role
	LocalCommitted  bool
	RemoteCommitted bool
	TurnDuration    int
	TurnOwner       Side
	AwaitingReply   bool
	SecondsLeft     int
	History         []Record
	Outcome         *Outcome
	RematchLocal    bool
	RematchRemote   bool
}

// Errors returned by intents.
var (
	ErrWrongState       = errors.New("not allowed in current state")
	ErrAlreadyCommitted = errors.New("secret already committed")
	ErrNotHost          = errors.New("only the host may do that")
	ErrInvalidDuration  = errors.New("turn duration must be positive")
	ErrAlreadyRequested = errors.New("rematch already requested")
	ErrDisconnected     = errors.New("session disconnected")
)

// internal/protocol/message.go
//
// Message schema exchanged between the two peers of a match.
// Every message carries exactly the fields the receiver needs to apply
// one deterministic transition; secrets themselves never travel.

package protocol

import (
	"errors"
	"fmt"

	"github.com/robalobadob/codebreak/internal/game"
)

// Kind is the wire discriminator of a message.
type Kind string

const (
	KindSecretCommitted  Kind = "secret_committed"
	KindGameStart        Kind = "game_start"
	KindGuess            Kind = "guess"
	KindFeedback         Kind = "feedback"
	KindWin              Kind = "win"
	KindTurnSkipped      Kind = "turn_skipped"
	KindRematchRequested Kind = "rematch_requested"
	KindRematchAccepted  Kind = "rematch_accepted"
)

// Kinds lists every kind this version understands.
var Kinds = []Kind{
	KindSecretCommitted,
	KindGameStart,
	KindGuess,
	KindFeedback,
	KindWin,
	KindTurnSkipped,
	KindRematchRequested,
	KindRematchAccepted,
}

// Known reports whether k is one of Kinds.
func (k Kind) Known() bool {
	for _, x := range Kinds {
		if x == k {
			return true
		}
	}
	return false
}

// ErrInvalidMessage marks a message whose fields break the schema.
var ErrInvalidMessage = errors.New("invalid message")

// Message is the decoded form of every protocol message. Only the fields
// relevant to Kind are meaningful.
type Message struct {
	Kind         Kind
	TurnDuration int    // game_start
	Code         string // guess, feedback, win
	Bulls        int    // feedback
	Cows         int    // feedback
}

func SecretCommitted() Message { return Message{Kind: KindSecretCommitted} }

func GameStart(turnDuration int) Message {
	return Message{Kind: KindGameStart, TurnDuration: turnDuration}
}

func Guess(code string) Message { return Message{Kind: KindGuess, Code: code} }

func Feedback(code string, sc game.Score) Message {
	return Message{Kind: KindFeedback, Code: code, Bulls: sc.Bulls, Cows: sc.Cows}
}

func Win(code string) Message { return Message{Kind: KindWin, Code: code} }

func TurnSkipped() Message { return Message{Kind: KindTurnSkipped} }

func RematchRequested() Message { return Message{Kind: KindRematchRequested} }

func RematchAccepted() Message { return Message{Kind: KindRematchAccepted} }

// Score returns the bulls/cows carried by a feedback message.
func (m Message) Score() game.Score { return game.Score{Bulls: m.Bulls, Cows: m.Cows} }

// Validate checks the fields a receiver relies on. Messages from the remote
// peer are not trusted, so every inbound message goes through here.
func (m Message) Validate() error {
	if !m.Kind.Known() {
		return fmt.Errorf("kind %q: %w", m.Kind, ErrUnknownKind)
	}
	switch m.Kind {
	case KindGameStart:
		if m.TurnDuration <= 0 {
			return fmt.Errorf("%s: turn duration %d: %w", m.Kind, m.TurnDuration, ErrInvalidMessage)
		}
	case KindGuess, KindWin:
		if err := game.Validate(m.Code); err != nil {
			return fmt.Errorf("%s: %v: %w", m.Kind, err, ErrInvalidMessage)
		}
	case KindFeedback:
		if err := game.Validate(m.Code); err != nil {
			return fmt.Errorf("%s: %v: %w", m.Kind, err, ErrInvalidMessage)
		}
		if m.Bulls < 0 || m.Cows < 0 || m.Bulls+m.Cows > game.Length || m.Bulls == game.Length {
			return fmt.Errorf("%s: score %d/%d: %w", m.Kind, m.Bulls, m.Cows, ErrInvalidMessage)
		}
	}
	return nil
}

func (m Message) String() string {
	switch m.Kind {
	case KindGameStart:
		return fmt.Sprintf("%s{turn_duration:%d}", m.Kind, m.TurnDuration)
	case KindGuess, KindWin:
		return fmt.Sprintf("%s{code:%s}", m.Kind, m.Code)
	case KindFeedback:
		return fmt.Sprintf("%s{code:%s bulls:%d cows:%d}", m.Kind, m.Code, m.Bulls, m.Cows)
	}
	return string(m.Kind)
}

// internal/store/store.go
//
// Ledger of finished matches.
// A session offers its result here when it reaches the Ended state. The
// ledger is write-mostly history for the /results endpoint; a live session
// is never rebuilt from it.

package store

import (
	"context"
	"errors"
	"time"
)

// Winner values as seen from the side that recorded the result.
const (
	WinnerLocal  = "local"
	WinnerRemote = "remote"
)

// ErrDuplicate is returned when a match ID has already been saved.
var ErrDuplicate = errors.New("result already recorded")

// Result is one finished match from one side's point of view.
type Result struct {
	MatchID   string    `json:"matchId"`
	Role      string    `json:"role"`   // "host" | "joiner"
	Winner    string    `json:"winner"` // "local" | "remote"
	Guesses   int       `json:"guesses"`
	Timeouts  int       `json:"timeouts"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

// Tally aggregates every recorded result.
type Tally struct {
	Played int `json:"played"`
	Won    int `json:"won"`
	Lost   int `json:"lost"`
}

// Store defines the persistence interface for match results.
// Implementations may be backed by memory or SQLite (this package).
type Store interface {
	// Save records a finished match. Saving the same MatchID twice
	// returns ErrDuplicate.
	Save(ctx context.Context, r Result) error

	// Recent returns up to limit results, newest first.
	Recent(ctx context.Context, limit int) ([]Result, error)

	// Tally counts wins and losses over all results.
	Tally(ctx context.Context) (Tally, error)
}

const defaultLimit = 20

func normLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

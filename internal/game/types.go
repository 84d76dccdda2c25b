// internal/game/types.go
//
// Core type definitions for the Bulls and Cows feedback engine.
// Defines:
//   - Length: number of digits in every secret and guess.
//   - Score: result of comparing a guess against a secret (bulls/cows).
//   - Validation errors returned for malformed codes.

package game

import "errors"

// Length is the number of digits in a secret or a guess.
const Length = 4

// Validation errors. Callers match them with errors.Is.
var (
	ErrInvalidLength = errors.New("code must be exactly 4 digits")
	ErrNotDigits     = errors.New("code must contain digits only")
)

// Score is the evaluation of one guess against one secret.
//   - Bulls: digits correct in both value and position.
//   - Cows:  digits present in both codes but at different positions,
//     each digit instance counted at most once on either side.
type Score struct {
	Bulls int `json:"bulls"`
	Cows  int `json:"cows"`
}

// Solved reports whether every digit is a bull.
func (s Score) Solved() bool { return s.Bulls == Length }

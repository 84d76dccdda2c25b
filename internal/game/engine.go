// internal/game/engine.go
//
// Feedback engine for a single guess.
// Responsibilities:
//   - Validate codes (exactly 4 ASCII digits).
//   - Score a guess against a secret using the two-pass frequency algorithm.
//
// Notes:
//   - The engine is pure: no state, no side effects, safe for concurrent use.
//   - Deciding who won is the session's job; Score only reports counts.

package game

import "fmt"

// Validate checks that c is exactly Length ASCII digits.
// The returned error wraps ErrInvalidLength or ErrNotDigits.
func Validate(c string) error {
	if len(c) != Length {
		return fmt.Errorf("%q: %w", c, ErrInvalidLength)
	}
	if !isDigits(c) {
		return fmt.Errorf("%q: %w", c, ErrNotDigits)
	}
	return nil
}

// Evaluate scores guess against secret.
//
// Pass 1:
//   - Count positions where the digits match (bulls).
//   - Build digit histograms of the remaining, non-bull positions on both sides.
//
// Pass 2:
//   - Cows is the sum over digits of min(secretFreq[d], guessFreq[d]).
//
// Counting by frequency keeps repeated digits from being used twice:
// Evaluate("1123", "1211") is {Bulls: 1, Cows: 2}.
//
// Both inputs must already have passed Validate; other input yields an
// unspecified score.
func Evaluate(secret, guess string) Score {
	n := min(len(secret), len(guess))

	var sc Score
	var secretFreq, guessFreq [10]int

	for i := 0; i < n; i++ {
		if secret[i] == guess[i] {
			sc.Bulls++
			continue
		}
		if d, ok := digit(secret[i]); ok {
			secretFreq[d]++
		}
		if d, ok := digit(guess[i]); ok {
			guessFreq[d]++
		}
	}

	for d := 0; d < 10; d++ {
		sc.Cows += min(secretFreq[d], guessFreq[d])
	}
	return sc
}

// digit maps an ASCII digit byte to 0..9.
func digit(b byte) (int, bool) {
	if b < '0' || b > '9' {
		return 0, false
	}
	return int(b - '0'), true
}

// isDigits checks that a string consists only of ASCII 0–9.
func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if _, ok := digit(s[i]); !ok {
			return false
		}
	}
	return true
}

package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const joinSubject = "joiner"

// ErrBadToken is returned when a join token is missing or invalid.
var ErrBadToken = errors.New("invalid join token")

// SignJoinToken creates an HS256 token a joiner presents to the host.
func SignJoinToken(secret string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   joinSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return t.SignedString([]byte(secret))
}

// VerifyJoinToken checks signature, expiry and subject.
func VerifyJoinToken(secret, token string) error {
	if token == "" {
		return ErrBadToken
	}
	claims := &jwt.RegisteredClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !t.Valid {
		return fmt.Errorf("%w: %v", ErrBadToken, err)
	}
	if claims.Subject != joinSubject {
		return fmt.Errorf("%w: subject %q", ErrBadToken, claims.Subject)
	}
	return nil
}

// BearerToken extracts a token from the Authorization header or the
// "token" query parameter.
func BearerToken(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return r.URL.Query().Get("token")
}

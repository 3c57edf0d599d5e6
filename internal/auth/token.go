// Package auth mints the time-bounded credentials members present to the
// external routed-media service. Tokens are stateless: issued fresh per
// request, never cached, no revocation list.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ledum/huddle/internal/domain"
)

const defaultValidFor = 6 * time.Hour

// Claims authorize one identity to join one room.
type Claims struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
	jwt.RegisteredClaims
}

// Issuer signs credentials with a process-wide HMAC secret.
type Issuer struct {
	secret   []byte
	validFor time.Duration
}

func NewIssuer(secret string, validFor time.Duration) *Issuer {
	if validFor <= 0 {
		validFor = defaultValidFor
	}
	return &Issuer{secret: []byte(secret), validFor: validFor}
}

// Issue produces a signed credential for (room, user). It fails with
// domain.ErrUnavailable when no signing secret is configured; the caller
// surfaces a generic message, never key material.
func (i *Issuer) Issue(room domain.RoomID, user domain.UserID) (string, error) {
	if len(i.secret) == 0 {
		return "", fmt.Errorf("%w: credential signing not configured", domain.ErrUnavailable)
	}
	now := time.Now()
	claims := Claims{
		Identity: string(user),
		Room:     string(room),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(user),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validFor)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify parses and validates a credential minted by Issue.
func (i *Issuer) Verify(token string) (*Claims, error) {
	if len(i.secret) == 0 {
		return nil, fmt.Errorf("%w: credential signing not configured", domain.ErrUnavailable)
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

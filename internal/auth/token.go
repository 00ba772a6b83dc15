// ABOUTME: Bearer token inspection for the assistant client
// ABOUTME: Reads JWT claims without verification; the signing secret lives server-side

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrNoCredentials = errors.New("no credentials stored")
)

// Claims holds the token fields the client cares about.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// InspectToken decodes a JWT without verifying its signature and extracts the
// claims. Verification is the backend's job; the client only needs the subject
// and expiry to resolve identity and refuse obviously stale tokens.
func InspectToken(tokenString string) (*Claims, error) {
	parser := jwt.NewParser()

	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}

	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: exp", ErrInvalidToken)
	}
	if exp != nil {
		claims.ExpiresAt = exp.Time
	}

	return claims, nil
}

// Expired reports whether the claims carry an expiry in the past.
// Tokens without an exp claim are treated as unexpired.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return now.After(c.ExpiresAt)
}

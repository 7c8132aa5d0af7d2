package tokenstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned by Claims.ExpiresAt when the token carries no exp claim
var ErrNoExpiry = errors.New("tokenstore: token has no expiry")

// Claims is the readable part of an access token. The signature is never checked here:
// the API server is the only verifier, the client only inspects its own session.
type Claims struct {
	Role  string `json:"role,omitempty"`
	OrgID string `json:"orgId,omitempty"`
	jwt.RegisteredClaims
}

// ParseClaims decodes token without verifying its signature
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("tokenstore: parse claims: %w", err)
	}
	return claims, nil
}

// Expiry returns the exp claim
func (c *Claims) Expiry() (time.Time, error) {
	if c.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return c.ExpiresAt.Time, nil
}

// ExpiresWithin reports whether the token expires before now+window.
// Tokens without exp never expire.
func (c *Claims) ExpiresWithin(now time.Time, window time.Duration) bool {
	exp, err := c.Expiry()
	if err != nil {
		return false
	}
	return !now.Add(window).Before(exp)
}

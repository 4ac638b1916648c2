// Package tokens inspects access tokens for display purposes. Nothing here
// verifies a signature; the result must never drive an authorization
// decision.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoExpiry = errors.New("token carries no expiry")

// ExpiresAt returns the exp claim of a JWT access token without verifying it.
func ExpiresAt(accessToken string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// Remaining is ExpiresAt relative to now, clamped at zero.
func Remaining(accessToken string, now time.Time) (time.Duration, error) {
	exp, err := ExpiresAt(accessToken)
	if err != nil {
		return 0, err
	}
	if d := exp.Sub(now); d > 0 {
		return d, nil
	}
	return 0, nil
}

// Package common defines shared constants and sentinel errors used across
// client and server layers of FinMate. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Account state errors.
	ErrorEmailNotVerified     = errors.New("email not verified")
	ErrorEmailAlreadyVerified = errors.New("email already verified")

	// Second factor errors.
	ErrorTwoFactorRequired    = errors.New("two-factor code required")
	ErrorTwoFactorCodeInvalid = errors.New("invalid two-factor code")
	ErrorTwoFactorNotPending  = errors.New("two-factor setup not started")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// Package client is the credential transport of the FinMate client.
//
// # Overview
//
// The package provides:
//  1. The Client interface: one method per identity-mutating backend call
//     (SignUp, SignIn, SignOut, Refresh, RequestPasswordReset,
//     ConsumePasswordReset, VerifyEmail).
//  2. HTTPClient, the REST/JSON implementation. It holds no credentials and
//     never retries; renewal and state live in the gateway and services.
//  3. Shared request helpers (PrepareRequest, DecodeBody, DecodeError,
//     MapTransportError) reused by the authenticated request gateway.
//
// # Error Handling
//
// Failures are returned as *APIError (for non-2xx responses) or wrapped
// transport errors, and always unwrap to a sentinel callers can match with
// errors.Is: ErrInvalidCredentials, ErrEmailNotVerified,
// ErrTwoFactorCodeInvalid, ErrRefreshTokenInvalid, ErrUnauthorized,
// ErrValidationFailed, ErrRecoveryTokenInvalid, ErrUnavailable, ErrTimeout.
//
// A two-factor challenge is not an error: SignIn returns a SignInResult with
// TwoFactorRequired set and the server continuation marker.
package client

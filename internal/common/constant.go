// Package common contains shared constants, sentinel errors and small helpers
// used across FinMate client and server layers.
package common

const (
	// AuthorizationHeaderName carries the bearer credential on outbound requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the access token in AuthorizationHeaderName.
	BearerPrefix = "Bearer "

	// RequestIDHeaderName tags every outbound request for log correlation.
	RequestIDHeaderName = "X-Request-ID"

	// APIPrefix is the root of every backend route.
	APIPrefix = "/api"
)

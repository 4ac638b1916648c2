package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrEmailNotVerified     = errors.New("email not verified")
	ErrTwoFactorCodeInvalid = errors.New("invalid two-factor code")
	ErrRefreshTokenInvalid  = errors.New("refresh token invalid")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrValidationFailed     = errors.New("validation failed")
	ErrRecoveryTokenInvalid = errors.New("recovery token invalid or expired")
	ErrCodeInvalid          = errors.New("invalid code")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrNotFound             = errors.New("not found")
	ErrUnavailable          = errors.New("server unavailable")
	ErrTimeout              = errors.New("request timed out")
	ErrUnexpectedStatus     = errors.New("unexpected response status")
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// codeErrors maps machine-readable "code" values in error bodies.
var codeErrors = map[string]error{
	"invalid_credentials": ErrInvalidCredentials,
	"email_not_verified":  ErrEmailNotVerified,
	"invalid_2fa_code":    ErrTwoFactorCodeInvalid,
	"token_not_valid":     ErrRefreshTokenInvalid,
	"invalid_refresh":     ErrRefreshTokenInvalid,
	"invalid_token":       ErrRecoveryTokenInvalid,
	"invalid_code":        ErrCodeInvalid,
	"invalid_password":    ErrInvalidPassword,
	"validation_error":    ErrValidationFailed,
	"not_found":           ErrNotFound,
}

// StatusErrors overrides the sentinel chosen for a status code when the
// response body carries no recognised "code".
type StatusErrors map[int]error

// APIError is a non-2xx backend response. It unwraps to one of the
// sentinel errors above.
type APIError struct {
	Status  int
	Code    string
	Message string
	// Fields holds field-level validation messages, keyed by field name.
	Fields map[string][]string
	Err    error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "; %s: %s", name, strings.Join(e.Fields[name], ", "))
		}
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.Err }

// DecodeError reads a non-2xx response and returns an *APIError. The body
// is consumed but not closed.
func DecodeError(resp *http.Response, byStatus StatusErrors) error {
	apiErr := &APIError{Status: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body map[string]any
	if len(raw) > 0 && json.Unmarshal(raw, &body) == nil {
		apiErr.Code = stringField(body, "code")
		apiErr.Message = firstNonEmpty(
			stringField(body, "error"),
			stringField(body, "message"),
			stringField(body, "detail"),
		)
		apiErr.Fields = fieldErrors(body)
	}

	if err, ok := codeErrors[apiErr.Code]; ok {
		apiErr.Err = err
		return apiErr
	}
	if err, ok := byStatus[resp.StatusCode]; ok {
		apiErr.Err = err
		return apiErr
	}
	apiErr.Err = statusError(resp.StatusCode)
	return apiErr
}

func statusError(status int) error {
	switch {
	case status == http.StatusBadRequest:
		return ErrValidationFailed
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return ErrTimeout
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable:
		return ErrUnavailable
	default:
		return ErrUnexpectedStatus
	}
}

// MapTransportError classifies an error returned by the HTTP round trip.
// Caller cancellation is passed through unchanged.
func MapTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func stringField(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return s
}

// fieldErrors picks {"field": ["msg", ...]} and {"field": "msg"} entries,
// the shape the backend uses for serializer validation errors.
func fieldErrors(body map[string]any) map[string][]string {
	var fields map[string][]string
	for key, value := range body {
		switch key {
		case "code", "error", "message", "detail":
			continue
		}
		var msgs []string
		switch v := value.(type) {
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					msgs = append(msgs, s)
				}
			}
		case string:
			msgs = []string{v}
		}
		if len(msgs) == 0 {
			continue
		}
		if fields == nil {
			fields = make(map[string][]string)
		}
		fields[key] = msgs
	}
	return fields
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

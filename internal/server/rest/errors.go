package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/anayy09/FinMate/internal/common"
	"github.com/anayy09/FinMate/internal/server/users"
)

// Machine-readable codes carried in error bodies.
const (
	codeInvalidCredentials = "invalid_credentials"
	codeEmailNotVerified   = "email_not_verified"
	codeInvalid2FACode     = "invalid_2fa_code"
	codeTokenNotValid      = "token_not_valid"
	codeInvalidToken       = "invalid_token"
	codeInvalidCode        = "invalid_code"
	codeInvalidPassword    = "invalid_password"
	codeNotFound           = "not_found"
)

type errorResponse struct {
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeTokenError is the shape the client gateway keys its refresh on.
func writeTokenError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{Detail: msg, Code: codeTokenNotValid})
}

// mapError writes the response for errors no handler translated itself.
func mapError(w http.ResponseWriter, err error) {
	var verr *users.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, verr.Fields)
	case errors.Is(err, common.ErrorValidation):
		writeError(w, http.StatusBadRequest, "", err.Error())
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	case errors.Is(err, common.ErrorUnauthorized):
		writeError(w, http.StatusUnauthorized, codeInvalidCredentials, "invalid credentials")
	case errors.Is(err, common.ErrorEmailNotVerified):
		writeError(w, http.StatusForbidden, codeEmailNotVerified, "email not verified")
	case errors.Is(err, common.ErrorTwoFactorCodeInvalid):
		writeError(w, http.StatusUnauthorized, codeInvalid2FACode, "invalid two-factor code")
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		writeTokenError(w, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "", "internal error")
	}
}

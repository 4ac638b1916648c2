package rest

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/anayy09/FinMate/internal/common"
	"github.com/anayy09/FinMate/internal/server/users"
	"github.com/go-chi/chi/v5"
)

const maxBodySize = 1 << 20

type messageResponse struct {
	Message string `json:"message"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid request body")
		return false
	}
	return true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := s.users.Register(r.Context(), req.Name, req.Email, []byte(req.Password))
	if err != nil {
		mapError(w, err)
		return
	}

	msg := "Registration successful. Check your email to verify your account."
	if u.EmailVerified {
		msg = "Registration successful."
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: msg})
}

type loginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	OTPCode      string `json:"otp_code"`
	Continuation string `json:"continuation"`
}

type loginResponse struct {
	Access            string         `json:"access,omitempty"`
	Refresh           string         `json:"refresh,omitempty"`
	SessionID         string         `json:"session_id,omitempty"`
	User              *users.Profile `json:"user,omitempty"`
	TwoFactorRequired bool           `json:"two_factor_required,omitempty"`
	Continuation      string         `json:"continuation,omitempty"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.users.Login(r.Context(), users.LoginRequest{
		Email:        req.Email,
		Password:     []byte(req.Password),
		OTPCode:      req.OTPCode,
		Continuation: req.Continuation,
		IPAddress:    clientIP(r),
		DeviceInfo:   r.UserAgent(),
	})
	if err != nil {
		s.logger.Debug(r.Context(), "login rejected", "error", err)
		mapError(w, err)
		return
	}

	if res.TwoFactorRequired {
		writeJSON(w, http.StatusOK, loginResponse{TwoFactorRequired: true, Continuation: res.Continuation})
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Access:    res.AccessToken,
		Refresh:   res.RefreshToken,
		SessionID: res.SessionID,
		User:      res.User.Profile(),
	})
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	access, err := s.users.Refresh(r.Context(), req.Refresh)
	if err != nil {
		writeTokenError(w, "Token is invalid or expired")
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Access: access})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.users.Logout(r.Context(), req.Refresh); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out."})
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	err := s.users.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, messageResponse{Message: "Email verified."})
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusBadRequest, codeInvalidToken, "invalid verification link")
	case errors.Is(err, common.ErrorEmailAlreadyVerified):
		writeError(w, http.StatusBadRequest, "", "email already verified")
	default:
		mapError(w, err)
	}
}

type emailRequest struct {
	Email string `json:"email"`
}

func (s *Server) passwordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.users.RequestPasswordReset(r.Context(), req.Email); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset link sent."})
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (s *Server) passwordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := s.users.ResetPassword(r.Context(), chi.URLParam(r, "token"), []byte(req.Password))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, messageResponse{Message: "Password has been reset."})
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusBadRequest, codeInvalidToken, "invalid or expired reset link")
	default:
		mapError(w, err)
	}
}

type twoFactorSetupResponse struct {
	Secret string `json:"secret"`
	QRCode string `json:"qr_code"`
}

func (s *Server) setupTwoFactor(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	secret, uri, err := s.users.SetupTwoFactor(r.Context(), claims.UserID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, twoFactorSetupResponse{Secret: secret, QRCode: uri})
}

type verifyTwoFactorRequest struct {
	Token string `json:"token"`
}

func (s *Server) verifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req verifyTwoFactorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	claims := claimsFrom(r.Context())

	err := s.users.VerifyTwoFactor(r.Context(), claims.UserID, req.Token)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, messageResponse{Message: "Two-factor authentication enabled."})
	case errors.Is(err, common.ErrorTwoFactorCodeInvalid):
		writeError(w, http.StatusBadRequest, codeInvalidCode, "invalid code")
	case errors.Is(err, common.ErrorTwoFactorNotPending):
		writeError(w, http.StatusBadRequest, "", err.Error())
	default:
		mapError(w, err)
	}
}

func (s *Server) disableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	claims := claimsFrom(r.Context())

	err := s.users.DisableTwoFactor(r.Context(), claims.UserID, []byte(req.Password))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, messageResponse{Message: "Two-factor authentication disabled."})
	case errors.Is(err, common.ErrorUnauthorized):
		writeError(w, http.StatusBadRequest, codeInvalidPassword, "invalid password")
	default:
		mapError(w, err)
	}
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	u, err := s.users.Profile(r.Context(), claims.UserID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Profile())
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var patch users.ProfilePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	claims := claimsFrom(r.Context())

	u, err := s.users.UpdateProfile(r.Context(), claims.UserID, patch)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Profile())
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	list, err := s.users.ListSessions(r.Context(), claims.UserID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type logoutDeviceRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) logoutDevice(w http.ResponseWriter, r *http.Request) {
	var req logoutDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	claims := claimsFrom(r.Context())

	if err := s.users.RevokeSession(r.Context(), claims.UserID, req.SessionID); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Device logged out."})
}

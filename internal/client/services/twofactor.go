package services

import (
	"context"
	"net/http"
	"sync"

	"github.com/anayy09/FinMate/internal/client/client"
	"github.com/anayy09/FinMate/internal/client/models"
	"github.com/anayy09/FinMate/internal/common"
	"github.com/anayy09/FinMate/internal/logging"
)

// Second-factor endpoint paths.
const (
	PathSetupTwoFactor   = common.APIPrefix + "/auth/setup-2fa/"
	PathVerifyTwoFactor  = common.APIPrefix + "/auth/verify-2fa/"
	PathDisableTwoFactor = common.APIPrefix + "/auth/disable-2fa/"
)

// TwoFactorService enables and disables the one-time-code factor of the
// signed-in account. It never issues or consumes tokens; it only flips the
// two-factor flag on the identity snapshot.
type TwoFactorService struct {
	session *SessionController
	gw      Gateway
	logger  logging.Logger

	mu      sync.Mutex
	pending *models.TwoFactorSetup
}

// NewTwoFactorService builds the service. A pending enrollment is dropped
// whenever the session leaves StateAuthenticated.
func NewTwoFactorService(session *SessionController, gw Gateway, logger logging.Logger) *TwoFactorService {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &TwoFactorService{session: session, gw: gw, logger: logger.With("module", "twofactor")}
	session.Subscribe(func(state State, _ *models.Identity) {
		if state != StateAuthenticated {
			s.discard()
		}
	})
	return s
}

// BeginEnrollment requests a shared secret and provisioning payload. The
// enabled flag does not change until ConfirmEnrollment succeeds.
func (s *TwoFactorService) BeginEnrollment(ctx context.Context) (*models.TwoFactorSetup, error) {
	if err := s.session.RequireAuthenticated(); err != nil {
		return nil, err
	}

	var setup models.TwoFactorSetup
	if err := s.gw.DoJSON(ctx, http.MethodPost, PathSetupTwoFactor, nil, &setup, nil); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.pending = &setup
	s.mu.Unlock()

	out := setup
	return &out, nil
}

type verifyTwoFactorRequest struct {
	Token string `json:"token"`
}

// ConfirmEnrollment submits a trial code for the secret from
// BeginEnrollment. On client.ErrCodeInvalid the enrollment stays pending.
func (s *TwoFactorService) ConfirmEnrollment(ctx context.Context, code string) error {
	if err := s.session.RequireAuthenticated(); err != nil {
		return err
	}
	if !s.Pending() {
		return ErrNoPendingEnrollment
	}

	err := s.gw.DoJSON(ctx, http.MethodPost, PathVerifyTwoFactor, verifyTwoFactorRequest{Token: code}, nil,
		client.StatusErrors{http.StatusBadRequest: client.ErrCodeInvalid})
	if err != nil {
		return err
	}

	s.discard()
	if _, err := s.session.UpdateIdentity(ctx, func(i *models.Identity) { i.TwoFactorEnabled = true }); err != nil {
		return err
	}
	s.logger.Info(ctx, "two-factor authentication enabled")
	return nil
}

type disableTwoFactorRequest struct {
	Password string `json:"password"`
}

// Disable turns the factor off. The current password is required even
// though the session is valid.
func (s *TwoFactorService) Disable(ctx context.Context, password []byte) error {
	if err := s.session.RequireAuthenticated(); err != nil {
		return err
	}

	err := s.gw.DoJSON(ctx, http.MethodPost, PathDisableTwoFactor, disableTwoFactorRequest{Password: string(password)}, nil,
		client.StatusErrors{
			http.StatusBadRequest: client.ErrInvalidPassword,
			http.StatusForbidden:  client.ErrInvalidPassword,
		})
	if err != nil {
		return err
	}

	if _, err := s.session.UpdateIdentity(ctx, func(i *models.Identity) { i.TwoFactorEnabled = false }); err != nil {
		return err
	}
	s.logger.Info(ctx, "two-factor authentication disabled")
	return nil
}

// Pending reports whether an enrollment awaits confirmation.
func (s *TwoFactorService) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *TwoFactorService) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

package services

import (
	"context"
	"net/http"

	"github.com/anayy09/FinMate/internal/client/client"
	"github.com/anayy09/FinMate/internal/client/models"
)

// AccountService groups the account flows that sit beside the session:
// registration, email verification, password reset and profile edits.
type AccountService struct {
	client  client.Client
	session *SessionController
	gw      Gateway
}

func NewAccountService(c client.Client, session *SessionController, gw Gateway) *AccountService {
	return &AccountService{client: c, session: session, gw: gw}
}

// SignUp registers a new account and returns the server's confirmation
// message. Field problems come back as *client.APIError with Fields set.
func (s *AccountService) SignUp(ctx context.Context, name, email string, password []byte) (string, error) {
	return s.client.SignUp(ctx, name, email, password)
}

func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	return s.client.VerifyEmail(ctx, token)
}

func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	return s.client.RequestPasswordReset(ctx, email)
}

func (s *AccountService) ResetPassword(ctx context.Context, token string, password []byte) error {
	return s.client.ConsumePasswordReset(ctx, token, password)
}

// UpdateProfile patches the profile on the server and then re-fetches it so
// the cached snapshot is replaced wholesale.
func (s *AccountService) UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.Identity, error) {
	if err := s.session.RequireAuthenticated(); err != nil {
		return nil, err
	}
	if err := s.gw.DoJSON(ctx, http.MethodPatch, client.PathProfile, patch, nil, nil); err != nil {
		return nil, err
	}
	return s.session.RefreshProfile(ctx)
}

package client

import (
	"context"
	"net/http"

	"github.com/anayy09/FinMate/internal/client/models"
)

// Client issues the identity calls against the backend. Implementations are
// stateless with respect to credentials: they never read or write the
// credential store and never retry.
type Client interface {
	SignUp(ctx context.Context, name, email string, password []byte) (string, error)
	SignIn(ctx context.Context, req SignInRequest) (*models.SignInResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	SignOut(ctx context.Context, accessToken, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConsumePasswordReset(ctx context.Context, token string, password []byte) error
	VerifyEmail(ctx context.Context, token string) error
}

// SignInRequest is one leg of a sign-in. The first leg carries Email and
// Password (and optionally Code). A second leg after a two-factor challenge
// carries Code plus either the original Email/Password or Continuation.
type SignInRequest struct {
	Email        string
	Password     []byte
	Code         string
	Continuation string
}

// Doer is the networking primitive the client delegates HTTP to.
// *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

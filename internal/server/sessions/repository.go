package sessions

import (
	"context"
)

// Repository stores sessions and refresh tokens. Deleting a session deletes
// its refresh tokens. Misses return common.ErrorNotFound.
type Repository interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, userID int64) ([]*Session, error)
	DeleteSession(ctx context.Context, userID int64, id string) error
	DeleteUserSessions(ctx context.Context, userID int64) error

	CreateRefreshToken(ctx context.Context, t *RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/anayy09/FinMate/internal/common"
	"github.com/anayy09/FinMate/internal/dbx"
	"github.com/anayy09/FinMate/internal/server/sessions"
)

// SessionRepository implements sessions.Repository. Removing a session
// removes the refresh tokens bound to it in the same transaction.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) CreateSession(ctx context.Context, s *sessions.Session) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, ip_address, device_info, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		s.ID, s.UserID, s.IPAddress, s.DeviceInfo, toUnix(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorAlreadyExists
	}
	return nil
}

func (r *SessionRepository) GetSession(ctx context.Context, id string) (*sessions.Session, error) {
	var s sessions.Session
	var createdAt int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, ip_address, device_info, created_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.IPAddress, &s.DeviceInfo, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.CreatedAt = fromUnix(createdAt)
	return &s, nil
}

// ListSessions returns the user's sessions, oldest first.
func (r *SessionRepository) ListSessions(ctx context.Context, userID int64) ([]*sessions.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, ip_address, device_info, created_at
		FROM sessions WHERE user_id = ?
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]*sessions.Session, 0)
	for rows.Next() {
		var s sessions.Session
		var createdAt int64
		if err := rows.Scan(&s.ID, &s.UserID, &s.IPAddress, &s.DeviceInfo, &createdAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		s.CreatedAt = fromUnix(createdAt)
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SessionRepository) DeleteSession(ctx context.Context, userID int64, id string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? AND user_id = ?`, id, userID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n, err := rowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return common.ErrorNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (r *SessionRepository) DeleteUserSessions(ctx context.Context, userID int64) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (r *SessionRepository) CreateRefreshToken(ctx context.Context, t *sessions.RefreshToken) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, t.SessionID).Scan(&one)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO refresh_tokens (token, user_id, session_id, expires_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (token) DO UPDATE SET
				user_id = excluded.user_id,
				session_id = excluded.session_id,
				expires_at = excluded.expires_at`,
			t.Token, t.UserID, t.SessionID, toUnix(t.ExpiresAt)); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (r *SessionRepository) GetRefreshToken(ctx context.Context, token string) (*sessions.RefreshToken, error) {
	var t sessions.RefreshToken
	var expiresAt int64
	err := r.db.QueryRowContext(ctx, `
		SELECT token, user_id, session_id, expires_at
		FROM refresh_tokens WHERE token = ?`, token,
	).Scan(&t.Token, &t.UserID, &t.SessionID, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.ExpiresAt = fromUnix(expiresAt)
	return &t, nil
}

func (r *SessionRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

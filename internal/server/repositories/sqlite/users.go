package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/anayy09/FinMate/internal/common"
	"github.com/anayy09/FinMate/internal/dbx"
	"github.com/anayy09/FinMate/internal/server/users"
)

const userColumns = `id, email, name, password_hash, email_verified,
	verification_token, reset_token, reset_expires_at,
	two_factor_enabled, totp_secret, pending_totp_secret,
	phone, bio, location, occupation, preferred_currency, is_premium,
	created_at, last_login`

// UserRepository implements users.Repository. Email lookups ignore case.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *users.User) (*users.User, error) {
	created := *user
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM users WHERE email = ? COLLATE NOCASE`, created.Email).Scan(&exists)
		switch {
		case err == nil:
			return common.ErrorAlreadyExists
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("db error: %w", err)
		}

		return tx.QueryRowContext(ctx, `
			INSERT INTO users (email, name, password_hash, email_verified,
				verification_token, reset_token, reset_expires_at,
				two_factor_enabled, totp_secret, pending_totp_secret,
				phone, bio, location, occupation, preferred_currency, is_premium,
				created_at, last_login)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`,
			userArgs(&created)...,
		).Scan(&created.ID)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*users.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
}

func (r *UserRepository) GetByVerificationToken(ctx context.Context, token string) (*users.User, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE verification_token = ?`, token)
}

func (r *UserRepository) GetByResetToken(ctx context.Context, token string) (*users.User, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE reset_token = ?`, token)
}

func (r *UserRepository) Update(ctx context.Context, user *users.User) error {
	args := append(userArgs(user), user.ID)
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET email = ?, name = ?, password_hash = ?, email_verified = ?,
			verification_token = ?, reset_token = ?, reset_expires_at = ?,
			two_factor_enabled = ?, totp_secret = ?, pending_totp_secret = ?,
			phone = ?, bio = ?, location = ?, occupation = ?, preferred_currency = ?, is_premium = ?,
			created_at = ?, last_login = ?
		WHERE id = ?`, args...)
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

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*users.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// userArgs lists the writable columns in table order, id excluded.
func userArgs(u *users.User) []any {
	var lastLogin sql.NullInt64
	if u.LastLogin != nil {
		lastLogin = sql.NullInt64{Int64: u.LastLogin.UnixNano(), Valid: true}
	}
	return []any{
		u.Email, u.Name, u.PasswordHash, boolInt(u.EmailVerified),
		u.VerificationToken, u.ResetToken, toUnix(u.ResetExpiresAt),
		boolInt(u.TwoFactorEnabled), u.TOTPSecret, u.PendingTOTPSecret,
		u.Phone, u.Bio, u.Location, u.Occupation, u.PreferredCurrency, boolInt(u.IsPremium),
		toUnix(u.CreatedAt), lastLogin,
	}
}

func scanUser(row *sql.Row) (*users.User, error) {
	var u users.User
	var resetAt, createdAt int64
	var lastLogin sql.NullInt64
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.EmailVerified,
		&u.VerificationToken, &u.ResetToken, &resetAt,
		&u.TwoFactorEnabled, &u.TOTPSecret, &u.PendingTOTPSecret,
		&u.Phone, &u.Bio, &u.Location, &u.Occupation, &u.PreferredCurrency, &u.IsPremium,
		&createdAt, &lastLogin,
	)
	if err != nil {
		return nil, err
	}
	u.ResetExpiresAt = fromUnix(resetAt)
	u.CreatedAt = fromUnix(createdAt)
	if lastLogin.Valid {
		t := fromUnix(lastLogin.Int64)
		u.LastLogin = &t
	}
	return &u, nil
}

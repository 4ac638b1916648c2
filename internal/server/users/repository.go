package users

import (
	"context"
)

// Repository stores users. Lookups miss with common.ErrorNotFound; Create
// fails with common.ErrorAlreadyExists on a duplicate email.
type Repository interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByVerificationToken(ctx context.Context, token string) (*User, error)
	GetByResetToken(ctx context.Context, token string) (*User, error)
	Update(ctx context.Context, user *User) error
}

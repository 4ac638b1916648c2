package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/anayy09/FinMate/internal/common"
)

// MemoryRepository is a Repository kept in process memory. Values are
// copied in and out so callers never share a *User with the store.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[int64]*User)}
}

func (r *MemoryRepository) Create(_ context.Context, user *User) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if strings.EqualFold(u.Email, user.Email) {
			return nil, common.ErrorAlreadyExists
		}
	}

	r.nextID++
	stored := user.clone()
	stored.ID = r.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.byID[stored.ID] = stored
	return stored.clone(), nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u.clone(), nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*User, error) {
	return r.find(func(u *User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *MemoryRepository) GetByVerificationToken(_ context.Context, token string) (*User, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}
	return r.find(func(u *User) bool { return u.VerificationToken == token })
}

func (r *MemoryRepository) GetByResetToken(_ context.Context, token string) (*User, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}
	return r.find(func(u *User) bool { return u.ResetToken == token })
}

func (r *MemoryRepository) Update(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[user.ID]; !ok {
		return common.ErrorNotFound
	}
	r.byID[user.ID] = user.clone()
	return nil
}

func (r *MemoryRepository) find(match func(*User) bool) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if match(u) {
			return u.clone(), nil
		}
	}
	return nil, common.ErrorNotFound
}

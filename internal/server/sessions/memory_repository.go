package sessions

import (
	"context"
	"sort"
	"sync"

	"github.com/anayy09/FinMate/internal/common"
)

type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]Session
	tokens   map[string]RefreshToken
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]Session),
		tokens:   make(map[string]RefreshToken),
	}
}

func (r *MemoryRepository) CreateSession(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return common.ErrorAlreadyExists
	}
	r.sessions[s.ID] = *s
	return nil
}

func (r *MemoryRepository) GetSession(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &s, nil
}

// ListSessions returns the user's sessions, oldest first.
func (r *MemoryRepository) ListSessions(_ context.Context, userID int64) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0)
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) DeleteSession(_ context.Context, userID int64, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.UserID != userID {
		return common.ErrorNotFound
	}
	r.deleteSessionLocked(id)
	return nil
}

func (r *MemoryRepository) DeleteUserSessions(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		if s.UserID == userID {
			r.deleteSessionLocked(id)
		}
	}
	return nil
}

func (r *MemoryRepository) CreateRefreshToken(_ context.Context, t *RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[t.SessionID]; !ok {
		return common.ErrorNotFound
	}
	r.tokens[t.Token] = *t
	return nil
}

func (r *MemoryRepository) GetRefreshToken(_ context.Context, token string) (*RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *MemoryRepository) DeleteRefreshToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token]; !ok {
		return common.ErrorNotFound
	}
	delete(r.tokens, token)
	return nil
}

func (r *MemoryRepository) deleteSessionLocked(id string) {
	delete(r.sessions, id)
	for tok, t := range r.tokens {
		if t.SessionID == id {
			delete(r.tokens, tok)
		}
	}
}

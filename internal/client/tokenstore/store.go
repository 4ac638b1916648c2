package tokenstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/anayy09/FinMate/internal/client/models"
)

// Store is the authoritative credential store. It serialises all access to
// the Backend so Get always sees a complete snapshot. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	backend Backend
}

// New wraps backend in a Store.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Get returns the current token pair and identity snapshot. It returns an
// error matching ErrAbsent when any slot is missing or unparseable.
func (s *Store) Get(ctx context.Context) (*models.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return decode(slots)
}

// Set replaces all three slots in one write.
func (s *Store) Set(ctx context.Context, creds *models.Credentials) error {
	values, err := encode(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Save(ctx, values); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// SetAccessOnly replaces the access token of the session that owns
// refreshToken, leaving the refresh token and identity untouched. It fails
// with ErrAbsent when no complete pair is stored and with ErrReplaced when
// the stored pair carries a different refresh token, so a renewal finishing
// after a sign-out or a new sign-in never touches the current session.
func (s *Store) SetAccessOnly(ctx context.Context, refreshToken, accessToken string) error {
	value, err := encodeToken(accessToken)
	if err != nil {
		return fmt.Errorf("encode access token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	creds, err := decode(slots)
	if err != nil {
		return err
	}
	if creds.Tokens.RefreshToken != refreshToken {
		return ErrReplaced
	}
	if err := s.backend.Save(ctx, map[string][]byte{SlotAccess: value}); err != nil {
		return fmt.Errorf("save access token: %w", err)
	}
	return nil
}

// SetIdentity replaces the identity snapshot of the stored session.
// The token pair is left untouched; ErrAbsent is returned if there is none.
func (s *Store) SetIdentity(ctx context.Context, identity *models.Identity) error {
	value, err := encodeIdentity(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if _, err := decode(slots); err != nil {
		return err
	}
	if err := s.backend.Save(ctx, map[string][]byte{SlotIdentity: value}); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// Clear removes all slots. It is idempotent.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Remove(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// ClearIfPresent removes the session that owns refreshToken and reports
// whether it did. A complete pair with a different refresh token belongs to
// a newer session and is left alone; an empty refreshToken therefore never
// matches one. Corrupt partial state is always wiped.
func (s *Store) ClearIfPresent(ctx context.Context, refreshToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.backend.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load credentials: %w", err)
	}
	if len(slots) == 0 {
		return false, nil
	}
	if creds, err := decode(slots); err == nil && creds.Tokens.RefreshToken != refreshToken {
		return false, nil
	}
	if err := s.backend.Remove(ctx); err != nil {
		return false, fmt.Errorf("clear credentials: %w", err)
	}
	return true, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

package tokenstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/anayy09/FinMate/internal/client/models"
)

var (
	// ErrAbsent means there are no usable credentials.
	ErrAbsent = errors.New("no stored credentials")

	// ErrCorrupt tags persisted state that exists but cannot be decoded.
	ErrCorrupt = errors.New("corrupt stored credentials")

	// ErrReplaced reports that the stored pair no longer carries the
	// refresh token the caller started from.
	ErrReplaced = errors.New("stored session was replaced")
)

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrAbsent, ErrCorrupt, fmt.Sprintf(format, args...))
}

func encodeToken(token string) ([]byte, error) {
	if err := checkToken(token); err != nil {
		return nil, err
	}
	return []byte(token), nil
}

func decodeToken(slot string, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", corrupt("%s slot is not valid utf-8", slot)
	}
	token := string(raw)
	if err := checkToken(token); err != nil {
		return "", corrupt("%s slot: %v", slot, err)
	}
	return token, nil
}

func checkToken(token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if strings.IndexFunc(token, unicode.IsSpace) >= 0 {
		return errors.New("token contains whitespace")
	}
	return nil
}

func encodeIdentity(identity *models.Identity) ([]byte, error) {
	if identity == nil {
		return nil, errors.New("identity is required")
	}
	if identity.Email == "" {
		return nil, errors.New("identity email is required")
	}
	return json.Marshal(identity)
}

func decodeIdentity(raw []byte) (*models.Identity, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var identity models.Identity
	if err := dec.Decode(&identity); err != nil {
		return nil, corrupt("identity slot: %v", err)
	}
	if dec.More() {
		return nil, corrupt("identity slot: trailing data")
	}
	if identity.Email == "" {
		return nil, corrupt("identity slot: missing email")
	}
	return &identity, nil
}

// decode turns raw slots into Credentials, failing closed on any gap.
func decode(slots map[string][]byte) (*models.Credentials, error) {
	if len(slots) == 0 {
		return nil, ErrAbsent
	}
	for _, s := range allSlots {
		if _, ok := slots[s]; !ok {
			return nil, fmt.Errorf("%w: %s slot missing", ErrAbsent, s)
		}
	}
	access, err := decodeToken(SlotAccess, slots[SlotAccess])
	if err != nil {
		return nil, err
	}
	refresh, err := decodeToken(SlotRefresh, slots[SlotRefresh])
	if err != nil {
		return nil, err
	}
	identity, err := decodeIdentity(slots[SlotIdentity])
	if err != nil {
		return nil, err
	}
	return &models.Credentials{
		Tokens:   models.TokenPair{AccessToken: access, RefreshToken: refresh},
		Identity: identity,
	}, nil
}

func encode(creds *models.Credentials) (map[string][]byte, error) {
	if creds == nil {
		return nil, errors.New("credentials are required")
	}
	access, err := encodeToken(creds.Tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	refresh, err := encodeToken(creds.Tokens.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	identity, err := encodeIdentity(creds.Identity)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{
		SlotAccess:   access,
		SlotRefresh:  refresh,
		SlotIdentity: identity,
	}, nil
}

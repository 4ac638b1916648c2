// Package models defines client-side data models used by the FinMate client:
// the identity snapshot, token pair, session records and second-factor payloads.
package models

import "time"

// Identity is the cached profile of the signed-in user. It is replaced
// wholesale on every successful profile fetch.
type Identity struct {
	ID                int64      `json:"id"`
	Email             string     `json:"email"`
	Name              string     `json:"name"`
	EmailVerified     bool       `json:"email_verified"`
	TwoFactorEnabled  bool       `json:"two_factor_enabled"`
	Phone             string     `json:"phone,omitempty"`
	Bio               string     `json:"bio,omitempty"`
	Location          string     `json:"location,omitempty"`
	Occupation        string     `json:"occupation,omitempty"`
	PreferredCurrency string     `json:"preferred_currency,omitempty"`
	IsPremium         bool       `json:"is_premium"`
	CreatedAt         time.Time  `json:"created_at"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
}

// Clone returns a deep copy so callers can never mutate the stored snapshot.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	if i.LastLogin != nil {
		t := *i.LastLogin
		c.LastLogin = &t
	}
	return &c
}

// ProfilePatch is a partial profile update. Nil fields are left untouched
// by the server.
type ProfilePatch struct {
	Name              *string `json:"name,omitempty"`
	Phone             *string `json:"phone,omitempty"`
	Bio               *string `json:"bio,omitempty"`
	Location          *string `json:"location,omitempty"`
	Occupation        *string `json:"occupation,omitempty"`
	PreferredCurrency *string `json:"preferred_currency,omitempty"`
}

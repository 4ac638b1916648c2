// Package sessions keeps the development backend's login sessions and the
// refresh tokens bound to them.
package sessions

import "time"

// Session is one successful login.
type Session struct {
	ID         string    `json:"session_id"`
	UserID     int64     `json:"-"`
	IPAddress  string    `json:"ip_address"`
	DeviceInfo string    `json:"device_info"`
	CreatedAt  time.Time `json:"created_at"`
}

// RefreshToken is an opaque refresh token bound to a session.
type RefreshToken struct {
	Token     string
	UserID    int64
	SessionID string
	ExpiresAt time.Time
}

package models

import "time"

// SessionRecord is one server-side session of the account. The client is
// not told which record is its own.
type SessionRecord struct {
	ID         string    `json:"session_id"`
	DeviceInfo string    `json:"device_info"`
	IPAddress  string    `json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
}

// TwoFactorSetup is the provisioning material returned when enrollment starts.
type TwoFactorSetup struct {
	Secret string `json:"secret"`
	// QRCode is the scannable provisioning payload (otpauth URI or encoded image).
	QRCode string `json:"qr_code"`
}

package users

import "time"

type User struct {
	ID                int64
	Email             string
	Name              string
	PasswordHash      []byte
	EmailVerified     bool
	VerificationToken string
	ResetToken        string
	ResetExpiresAt    time.Time
	TwoFactorEnabled  bool
	TOTPSecret        string
	PendingTOTPSecret string
	Phone             string
	Bio               string
	Location          string
	Occupation        string
	PreferredCurrency string
	IsPremium         bool
	CreatedAt         time.Time
	LastLogin         *time.Time
}

// Profile is the public view of a user.
type Profile struct {
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

func (u *User) Profile() *Profile {
	return &Profile{
		ID:                u.ID,
		Email:             u.Email,
		Name:              u.Name,
		EmailVerified:     u.EmailVerified,
		TwoFactorEnabled:  u.TwoFactorEnabled,
		Phone:             u.Phone,
		Bio:               u.Bio,
		Location:          u.Location,
		Occupation:        u.Occupation,
		PreferredCurrency: u.PreferredCurrency,
		IsPremium:         u.IsPremium,
		CreatedAt:         u.CreatedAt,
		LastLogin:         u.LastLogin,
	}
}

// ProfilePatch is a partial profile update; nil fields are left alone.
type ProfilePatch struct {
	Name              *string `json:"name"`
	Phone             *string `json:"phone"`
	Bio               *string `json:"bio"`
	Location          *string `json:"location"`
	Occupation        *string `json:"occupation"`
	PreferredCurrency *string `json:"preferred_currency"`
}

func (u *User) clone() *User {
	c := *u
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

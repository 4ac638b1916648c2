package models

// TokenPair holds the short-lived access token and the long-lived refresh
// token. A pair is either complete or absent.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Complete reports whether both tokens are present.
func (p *TokenPair) Complete() bool {
	return p != nil && p.AccessToken != "" && p.RefreshToken != ""
}

// Credentials is the persisted authentication state: a complete token pair
// together with the identity it belongs to.
type Credentials struct {
	Tokens   TokenPair
	Identity *Identity
}

// SignInResult is the outcome of a sign-in leg. Exactly one of the two
// shapes is populated: either Credentials, or TwoFactorRequired with the
// server continuation marker.
type SignInResult struct {
	Credentials       *Credentials
	SessionID         string
	TwoFactorRequired bool
	Continuation      string
}

package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anayy09/FinMate/internal/common"
	"github.com/anayy09/FinMate/internal/server/auth"
	"github.com/anayy09/FinMate/internal/server/config"
	fmail "github.com/anayy09/FinMate/internal/server/mail"
	"github.com/anayy09/FinMate/internal/server/sessions"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength     = 8
	continuationValidity  = 5 * time.Minute
	maxTwoFactorAttempts  = 5
	refreshTokenByteCount = 32
)

// Mailer delivers verification and reset links.
type Mailer interface {
	Send(ctx context.Context, msg fmail.Message) error
}

// ValidationError carries field-level messages. It matches
// common.ErrorValidation.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return common.ErrorValidation }

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// LoginRequest is one sign-in leg. The second leg may carry Continuation
// instead of Email and Password.
type LoginRequest struct {
	Email        string
	Password     []byte
	OTPCode      string
	Continuation string
	IPAddress    string
	DeviceInfo   string
}

// LoginResult is either a full login or a second-factor challenge.
type LoginResult struct {
	AccessToken       string
	RefreshToken      string
	SessionID         string
	User              *User
	TwoFactorRequired bool
	Continuation      string
}

type continuation struct {
	userID    int64
	expiresAt time.Time
	attempts  int
}

type Service struct {
	repo                         Repository
	sessions                     sessions.Repository
	mailer                       Mailer
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	resetTokenValidityDuration   time.Duration
	issuer                       string
	autoVerify                   bool
	now                          func() time.Time

	mu            sync.Mutex
	continuations map[string]*continuation
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, sessionRepo sessions.Repository, mailer Mailer, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		repo:                         repo,
		sessions:                     sessionRepo,
		mailer:                       mailer,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		resetTokenValidityDuration:   cfg.ResetTokenValidityDuration,
		issuer:                       cfg.Issuer,
		autoVerify:                   cfg.AutoVerifyEmail,
		now:                          time.Now,
		continuations:                make(map[string]*continuation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validatePassword(v *ValidationError, password []byte) {
	if len(password) < minPasswordLength {
		v.add("password", fmt.Sprintf("Ensure this field has at least %d characters.", minPasswordLength))
	}
}

// Register creates an unverified account and mails the verification token.
func (s *Service) Register(ctx context.Context, name, email string, password []byte) (*User, error) {
	v := &ValidationError{}
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		v.add("email", "Enter a valid email address.")
	}
	if strings.TrimSpace(name) == "" {
		v.add("name", "This field may not be blank.")
	}
	validatePassword(v, password)
	if err := v.orNil(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, &User{
		Email:             email,
		Name:              strings.TrimSpace(name),
		PasswordHash:      hash,
		EmailVerified:     s.autoVerify,
		VerificationToken: uuid.NewString(),
		CreatedAt:         s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			v.add("email", "user with this email already exists.")
			return nil, v
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	if !user.EmailVerified {
		if err := s.mailer.Send(ctx, fmail.Message{Kind: fmail.KindVerification, To: user.Email, Token: user.VerificationToken}); err != nil {
			return nil, fmt.Errorf("send verification: %w", err)
		}
	}
	return user, nil
}

// VerifyEmail marks the account owning token as verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.repo.GetByVerificationToken(ctx, token)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return common.ErrorEmailAlreadyVerified
	}
	user.EmailVerified = true
	return s.repo.Update(ctx, user)
}

// Login runs one sign-in leg. Wrong email or password is
// common.ErrorUnauthorized. With two-factor enabled and no code, the result
// carries a continuation instead of tokens; a wrong code is
// common.ErrorTwoFactorCodeInvalid and leaves the continuation usable until
// it expires or runs out of attempts. A code submitted with a spent
// continuation is common.ErrorUnauthorized whether or not the password is
// resent.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	var (
		user *User
		err  error
	)
	if req.Continuation != "" && len(req.Password) == 0 {
		user, err = s.userForContinuation(ctx, req.Continuation)
	} else {
		user, err = s.checkPassword(ctx, req.Email, req.Password)
		// A code sent against a continuation counts toward its attempts
		// even when the password is resent.
		if err == nil && req.Continuation != "" && req.OTPCode != "" && !s.continuationValid(req.Continuation, user.ID) {
			err = common.ErrorUnauthorized
		}
	}
	if err != nil {
		return nil, err
	}

	if !user.EmailVerified {
		return nil, common.ErrorEmailNotVerified
	}

	if user.TwoFactorEnabled {
		if req.OTPCode == "" {
			cont := req.Continuation
			if cont == "" || !s.continuationValid(cont, user.ID) {
				if cont, err = s.newContinuation(user.ID); err != nil {
					return nil, err
				}
			}
			return &LoginResult{TwoFactorRequired: true, Continuation: cont}, nil
		}
		if !auth.VerifyTOTP(user.TOTPSecret, req.OTPCode, s.now()) {
			s.countFailedAttempt(req.Continuation)
			return nil, common.ErrorTwoFactorCodeInvalid
		}
		s.dropContinuation(req.Continuation)
	}

	now := s.now().UTC()
	session := &sessions.Session{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		IPAddress:  req.IPAddress,
		DeviceInfo: req.DeviceInfo,
		CreatedAt:  now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	access, refresh, err := s.issueTokens(ctx, user.ID, session.ID)
	if err != nil {
		return nil, err
	}

	user.LastLogin = &now
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	return &LoginResult{AccessToken: access, RefreshToken: refresh, SessionID: session.ID, User: user}, nil
}

func (s *Service) checkPassword(ctx context.Context, email string, password []byte) (*User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, password) != nil {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

func (s *Service) issueTokens(ctx context.Context, userID int64, sessionID string) (string, string, error) {
	access, err := auth.GenerateToken(userID, sessionID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", "", common.ErrorInternal
	}

	refresh, err := common.RandomToken(refreshTokenByteCount)
	if err != nil {
		return "", "", common.ErrorInternal
	}
	err = s.sessions.CreateRefreshToken(ctx, &sessions.RefreshToken{
		Token:     refresh,
		UserID:    userID,
		SessionID: sessionID,
		ExpiresAt: s.now().Add(s.refreshTokenValidityDuration),
	})
	if err != nil {
		return "", "", fmt.Errorf("store refresh token: %w", err)
	}
	return access, refresh, nil
}

func (s *Service) newContinuation(userID int64) (string, error) {
	token, err := common.RandomToken(16)
	if err != nil {
		return "", common.ErrorInternal
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.continuations[token] = &continuation{userID: userID, expiresAt: s.now().Add(continuationValidity)}
	return token, nil
}

func (s *Service) continuationValid(token string, userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.continuations[token]
	return ok && c.userID == userID && s.now().Before(c.expiresAt)
}

func (s *Service) userForContinuation(ctx context.Context, token string) (*User, error) {
	s.mu.Lock()
	c, ok := s.continuations[token]
	if ok && !s.now().Before(c.expiresAt) {
		delete(s.continuations, token)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, common.ErrorUnauthorized
	}

	user, err := s.repo.GetByID(ctx, c.userID)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

func (s *Service) countFailedAttempt(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.continuations[token]; ok {
		c.attempts++
		if c.attempts >= maxTwoFactorAttempts {
			delete(s.continuations, token)
		}
	}
}

func (s *Service) dropContinuation(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.continuations, token)
}

// Refresh mints a new access token for the session the refresh token
// belongs to. The refresh token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	rt, err := s.sessions.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", common.ErrInvalidToken
	}
	if !s.now().Before(rt.ExpiresAt) {
		_ = s.sessions.DeleteRefreshToken(ctx, refreshToken)
		return "", common.ErrRefreshTokenExpired
	}
	if _, err := s.sessions.GetSession(ctx, rt.SessionID); err != nil {
		return "", common.ErrInvalidToken
	}

	access, err := auth.GenerateToken(rt.UserID, rt.SessionID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	return access, nil
}

// Logout ends the session the refresh token belongs to.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	rt, err := s.sessions.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return common.ErrInvalidToken
	}
	return s.sessions.DeleteSession(ctx, rt.UserID, rt.SessionID)
}

// Authenticate checks an access token and that its session is still alive.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error) {
	claims, err := auth.ParseToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.GetSession(ctx, claims.SessionID); err != nil {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// RequestPasswordReset mails a reset token. Unknown emails are
// common.ErrorNotFound.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}

	token, err := common.RandomToken(16)
	if err != nil {
		return common.ErrorInternal
	}
	user.ResetToken = token
	user.ResetExpiresAt = s.now().Add(s.resetTokenValidityDuration)
	if err := s.repo.Update(ctx, user); err != nil {
		return err
	}
	return s.mailer.Send(ctx, fmail.Message{Kind: fmail.KindPasswordReset, To: user.Email, Token: token})
}

// ResetPassword consumes a reset token and signs the account out everywhere.
func (s *Service) ResetPassword(ctx context.Context, token string, password []byte) error {
	user, err := s.repo.GetByResetToken(ctx, token)
	if err != nil {
		return err
	}
	if !s.now().Before(user.ResetExpiresAt) {
		user.ResetToken = ""
		_ = s.repo.Update(ctx, user)
		return common.ErrorNotFound
	}

	v := &ValidationError{}
	validatePassword(v, password)
	if err := v.orNil(); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.ResetToken = ""
	if err := s.repo.Update(ctx, user); err != nil {
		return err
	}
	return s.sessions.DeleteUserSessions(ctx, user.ID)
}

func (s *Service) Profile(ctx context.Context, userID int64) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

func currencyCode(v string) bool {
	if len(v) != 3 {
		return false
	}
	for _, r := range v {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// UpdateProfile applies the non-nil fields of patch.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, patch ProfilePatch) (*User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	v := &ValidationError{}
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			v.add("name", "This field may not be blank.")
		}
		user.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.PreferredCurrency != nil {
		if !currencyCode(*patch.PreferredCurrency) {
			v.add("preferred_currency", "Enter a three-letter ISO currency code.")
		}
		user.PreferredCurrency = *patch.PreferredCurrency
	}
	if patch.Phone != nil {
		user.Phone = *patch.Phone
	}
	if patch.Bio != nil {
		user.Bio = *patch.Bio
	}
	if patch.Location != nil {
		user.Location = *patch.Location
	}
	if patch.Occupation != nil {
		user.Occupation = *patch.Occupation
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetupTwoFactor issues a new pending secret and its provisioning URI.
func (s *Service) SetupTwoFactor(ctx context.Context, userID int64) (secret, uri string, err error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if user.TwoFactorEnabled {
		v := &ValidationError{}
		v.add("two_factor", "Two-factor authentication is already enabled.")
		return "", "", v
	}

	user.PendingTOTPSecret = auth.GenerateTOTPSecret()
	if err := s.repo.Update(ctx, user); err != nil {
		return "", "", err
	}
	return user.PendingTOTPSecret, auth.ProvisioningURI(s.issuer, user.Email, user.PendingTOTPSecret), nil
}

// VerifyTwoFactor enables the pending secret if code matches it.
func (s *Service) VerifyTwoFactor(ctx context.Context, userID int64, code string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.PendingTOTPSecret == "" {
		return common.ErrorTwoFactorNotPending
	}
	if !auth.VerifyTOTP(user.PendingTOTPSecret, code, s.now()) {
		return common.ErrorTwoFactorCodeInvalid
	}

	user.TOTPSecret = user.PendingTOTPSecret
	user.PendingTOTPSecret = ""
	user.TwoFactorEnabled = true
	return s.repo.Update(ctx, user)
}

// DisableTwoFactor turns the factor off after re-checking the password.
// A wrong password is common.ErrorUnauthorized.
func (s *Service) DisableTwoFactor(ctx context.Context, userID int64, password []byte) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, password) != nil {
		return common.ErrorUnauthorized
	}

	user.TwoFactorEnabled = false
	user.TOTPSecret = ""
	user.PendingTOTPSecret = ""
	return s.repo.Update(ctx, user)
}

func (s *Service) ListSessions(ctx context.Context, userID int64) ([]*sessions.Session, error) {
	return s.sessions.ListSessions(ctx, userID)
}

// RevokeSession ends one of the user's sessions. Unknown ids are
// common.ErrorNotFound.
func (s *Service) RevokeSession(ctx context.Context, userID int64, sessionID string) error {
	return s.sessions.DeleteSession(ctx, userID, sessionID)
}

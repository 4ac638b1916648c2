package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anayy09/FinMate/internal/common"
	"github.com/anayy09/FinMate/internal/server/auth"
	"github.com/anayy09/FinMate/internal/server/config"
	"github.com/anayy09/FinMate/internal/server/mail"
	"github.com/anayy09/FinMate/internal/server/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	svc      *Service
	repo     *MemoryRepository
	sessions *sessions.MemoryRepository
	outbox   *mail.Outbox
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:     NewMemoryRepository(),
		sessions: sessions.NewMemoryRepository(),
		outbox:   mail.NewOutbox(),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	cfg := &config.Config{}
	cfg.LoadDefaults()
	env.svc = NewService(env.repo, env.sessions, env.outbox, cfg, WithClock(func() time.Time { return env.now }))
	return env
}

func (e *testEnv) registerVerified(t *testing.T, email string) *User {
	t.Helper()
	ctx := context.Background()
	u, err := e.svc.Register(ctx, "Ann", email, []byte("correct horse"))
	require.NoError(t, err)
	msg, ok := e.outbox.Last(mail.KindVerification, email)
	require.True(t, ok)
	require.NoError(t, e.svc.VerifyEmail(ctx, msg.Token))
	return u
}

func (e *testEnv) enableTwoFactor(t *testing.T, userID int64) string {
	t.Helper()
	ctx := context.Background()
	secret, uri, err := e.svc.SetupTwoFactor(ctx, userID)
	require.NoError(t, err)
	assert.Contains(t, uri, "otpauth://totp/")
	code, err := auth.TOTPCode(secret, e.now)
	require.NoError(t, err)
	require.NoError(t, e.svc.VerifyTwoFactor(ctx, userID, code))
	return secret
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Register(context.Background(), "", "not-an-email", []byte("short"))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "password")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "ann@example.com")

	_, err := env.svc.Register(context.Background(), "Other", "ANN@example.com", []byte("long enough"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")
}

func TestVerifyEmail_Twice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.svc.Register(ctx, "Ann", "ann@example.com", []byte("correct horse"))
	require.NoError(t, err)
	msg, _ := env.outbox.Last(mail.KindVerification, "ann@example.com")

	require.NoError(t, env.svc.VerifyEmail(ctx, msg.Token))
	assert.ErrorIs(t, env.svc.VerifyEmail(ctx, msg.Token), common.ErrorEmailAlreadyVerified)
	assert.ErrorIs(t, env.svc.VerifyEmail(ctx, "nope"), common.ErrorNotFound)
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.svc.Register(ctx, "Ann", "ann@example.com", []byte("correct horse"))
	require.NoError(t, err)

	_, err = env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: []byte("correct horse")})
	assert.ErrorIs(t, err, common.ErrorEmailNotVerified)

	_, err = env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: []byte("wrong")})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = env.svc.Login(ctx, LoginRequest{Email: "bob@example.com", Password: []byte("correct horse")})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestLogin_IssuesSessionAndTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerVerified(t, "ann@example.com")

	res, err := env.svc.Login(ctx, LoginRequest{
		Email: "ann@example.com", Password: []byte("correct horse"),
		IPAddress: "10.0.0.1", DeviceInfo: "laptop",
	})
	require.NoError(t, err)
	require.False(t, res.TwoFactorRequired)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	require.NotNil(t, res.User.LastLogin)

	claims, err := env.svc.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, res.SessionID, claims.SessionID)

	list, err := env.svc.ListSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "laptop", list[0].DeviceInfo)
	assert.Equal(t, "10.0.0.1", list[0].IPAddress)
}

func TestLogin_TwoFactorContinuation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerVerified(t, "ann@example.com")
	secret := env.enableTwoFactor(t, u.ID)

	first, err := env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: []byte("correct horse")})
	require.NoError(t, err)
	require.True(t, first.TwoFactorRequired)
	require.NotEmpty(t, first.Continuation)
	assert.Empty(t, first.AccessToken)

	stale, _ := auth.TOTPCode(secret, env.now.Add(-time.Hour))
	_, err = env.svc.Login(ctx, LoginRequest{Continuation: first.Continuation, OTPCode: stale})
	assert.ErrorIs(t, err, common.ErrorTwoFactorCodeInvalid)

	code, err := auth.TOTPCode(secret, env.now)
	require.NoError(t, err)
	res, err := env.svc.Login(ctx, LoginRequest{Continuation: first.Continuation, OTPCode: code})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)

	// consumed
	_, err = env.svc.Login(ctx, LoginRequest{Continuation: first.Continuation, OTPCode: code})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestLogin_ContinuationExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerVerified(t, "ann@example.com")
	secret := env.enableTwoFactor(t, u.ID)

	first, err := env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: []byte("correct horse")})
	require.NoError(t, err)

	env.now = env.now.Add(continuationValidity + time.Second)
	code, _ := auth.TOTPCode(secret, env.now)
	_, err = env.svc.Login(ctx, LoginRequest{Continuation: first.Continuation, OTPCode: code})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestLogin_ResentPasswordDoesNotResetContinuation(t *testing.T) {
	tests := []struct {
		name  string
		spend func(t *testing.T, env *testEnv, secret string, req LoginRequest)
	}{
		{
			name: "attempts exhausted",
			spend: func(t *testing.T, env *testEnv, secret string, req LoginRequest) {
				stale, _ := auth.TOTPCode(secret, env.now.Add(-time.Hour))
				req.OTPCode = stale
				for i := 0; i < maxTwoFactorAttempts; i++ {
					_, err := env.svc.Login(context.Background(), req)
					require.ErrorIs(t, err, common.ErrorTwoFactorCodeInvalid, "attempt %d", i+1)
				}
			},
		},
		{
			name: "expired",
			spend: func(t *testing.T, env *testEnv, _ string, _ LoginRequest) {
				env.now = env.now.Add(continuationValidity + time.Second)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			u := env.registerVerified(t, "ann@example.com")
			secret := env.enableTwoFactor(t, u.ID)

			first, err := env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: []byte("correct horse")})
			require.NoError(t, err)
			require.True(t, first.TwoFactorRequired)

			req := LoginRequest{Email: "ann@example.com", Password: []byte("correct horse"), Continuation: first.Continuation}
			tt.spend(t, env, secret, req)

			req.OTPCode, err = auth.TOTPCode(secret, env.now)
			require.NoError(t, err)
			res, err := env.svc.Login(ctx, req)
			assert.ErrorIs(t, err, common.ErrorUnauthorized)
			assert.Nil(t, res)
		})
	}
}

func TestLogin_PasswordAndCodeInOneLeg(t *testing.T) {
	env := newTestEnv(t)
	u := env.registerVerified(t, "ann@example.com")
	secret := env.enableTwoFactor(t, u.ID)

	code, _ := auth.TOTPCode(secret, env.now)
	res, err := env.svc.Login(context.Background(), LoginRequest{
		Email: "ann@example.com", Password: []byte("correct horse"), OTPCode: code,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RefreshToken)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerVerified(t, "ann@example.com")
	res, err := env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: []byte("correct horse")})
	require.NoError(t, err)

	access, err := env.svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.AccessToken, access)

	_, err = env.svc.Refresh(ctx, "unknown")
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	env.now = env.now.Add(48 * time.Hour)
	_, err = env.svc.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
}

func TestLogout_EndsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerVerified(t, "ann@example.com")
	res, err := env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: []byte("correct horse")})
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, res.RefreshToken))

	_, err = env.svc.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	_, err = env.svc.Authenticate(ctx, res.AccessToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	assert.ErrorIs(t, env.svc.Logout(ctx, res.RefreshToken), common.ErrInvalidToken)
}

func TestRevokeSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerVerified(t, "ann@example.com")

	a, err := env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: []byte("correct horse"), DeviceInfo: "a"})
	require.NoError(t, err)
	b, err := env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: []byte("correct horse"), DeviceInfo: "b"})
	require.NoError(t, err)

	require.NoError(t, env.svc.RevokeSession(ctx, u.ID, b.SessionID))
	assert.ErrorIs(t, env.svc.RevokeSession(ctx, u.ID, b.SessionID), common.ErrorNotFound)

	_, err = env.svc.Refresh(ctx, b.RefreshToken)
	assert.Error(t, err)
	_, err = env.svc.Refresh(ctx, a.RefreshToken)
	assert.NoError(t, err)
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerVerified(t, "ann@example.com")
	res, err := env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: []byte("correct horse")})
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.RequestPasswordReset(ctx, "bob@example.com"), common.ErrorNotFound)
	require.NoError(t, env.svc.RequestPasswordReset(ctx, "ann@example.com"))
	msg, ok := env.outbox.Last(mail.KindPasswordReset, "ann@example.com")
	require.True(t, ok)

	var verr *ValidationError
	require.ErrorAs(t, env.svc.ResetPassword(ctx, msg.Token, []byte("x")), &verr)

	require.NoError(t, env.svc.ResetPassword(ctx, msg.Token, []byte("battery staple")))
	assert.ErrorIs(t, env.svc.ResetPassword(ctx, msg.Token, []byte("battery staple")), common.ErrorNotFound)

	_, err = env.svc.Refresh(ctx, res.RefreshToken)
	assert.Error(t, err, "reset must sign out every session")

	_, err = env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: []byte("battery staple")})
	assert.NoError(t, err)
}

func TestPasswordReset_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerVerified(t, "ann@example.com")
	require.NoError(t, env.svc.RequestPasswordReset(ctx, "ann@example.com"))
	msg, _ := env.outbox.Last(mail.KindPasswordReset, "ann@example.com")

	env.now = env.now.Add(2 * time.Hour)
	assert.ErrorIs(t, env.svc.ResetPassword(ctx, msg.Token, []byte("battery staple")), common.ErrorNotFound)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerVerified(t, "ann@example.com")

	name, cur := "Ann Lee", "EUR"
	got, err := env.svc.UpdateProfile(ctx, u.ID, ProfilePatch{Name: &name, PreferredCurrency: &cur})
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", got.Name)
	assert.Equal(t, "EUR", got.PreferredCurrency)

	bad := "euro"
	_, err = env.svc.UpdateProfile(ctx, u.ID, ProfilePatch{PreferredCurrency: &bad})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "preferred_currency")

	stored, err := env.svc.Profile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "EUR", stored.PreferredCurrency)
}

func TestTwoFactorEnrollmentAndDisable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerVerified(t, "ann@example.com")

	assert.ErrorIs(t, env.svc.VerifyTwoFactor(ctx, u.ID, "123456"), common.ErrorTwoFactorNotPending)

	secret, _, err := env.svc.SetupTwoFactor(ctx, u.ID)
	require.NoError(t, err)
	code, _ := auth.TOTPCode(secret, env.now.Add(-time.Hour))
	assert.ErrorIs(t, env.svc.VerifyTwoFactor(ctx, u.ID, code), common.ErrorTwoFactorCodeInvalid)

	code, _ = auth.TOTPCode(secret, env.now)
	require.NoError(t, env.svc.VerifyTwoFactor(ctx, u.ID, code))

	_, _, err = env.svc.SetupTwoFactor(ctx, u.ID)
	assert.ErrorIs(t, err, common.ErrorValidation)

	assert.ErrorIs(t, env.svc.DisableTwoFactor(ctx, u.ID, []byte("wrong")), common.ErrorUnauthorized)
	require.NoError(t, env.svc.DisableTwoFactor(ctx, u.ID, []byte("correct horse")))

	stored, err := env.svc.Profile(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Empty(t, stored.TOTPSecret)
}

func TestRegister_AutoVerify(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.AutoVerifyEmail = true
	outbox := mail.NewOutbox()
	svc := NewService(NewMemoryRepository(), sessions.NewMemoryRepository(), outbox, cfg)

	u, err := svc.Register(context.Background(), "Ann", "ann@example.com", []byte("correct horse"))
	require.NoError(t, err)
	assert.True(t, u.EmailVerified)
	_, sent := outbox.Last(mail.KindVerification, "ann@example.com")
	assert.False(t, sent)
}

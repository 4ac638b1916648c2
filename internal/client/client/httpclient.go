package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anayy09/FinMate/internal/client/models"
	"github.com/anayy09/FinMate/internal/common"
	"github.com/anayy09/FinMate/internal/logging"
	"github.com/google/uuid"
)

// Identity endpoint paths, relative to the server URL.
const (
	PathSignUp               = common.APIPrefix + "/auth/signup/"
	PathSignIn               = common.APIPrefix + "/auth/login/"
	PathSignOut              = common.APIPrefix + "/auth/logout/"
	PathRefresh              = common.APIPrefix + "/auth/token/refresh/"
	PathPasswordResetRequest = common.APIPrefix + "/auth/password-reset-request/"
	PathPasswordReset        = common.APIPrefix + "/auth/password-reset/"
	PathVerifyEmail          = common.APIPrefix + "/auth/verify-email/"
	PathProfile              = common.APIPrefix + "/user/profile/"
)

const defaultUserAgent = "finmate-client"

var errIncompleteTokens = errors.New("sign-in response is missing a token")

// HTTPClient is the REST implementation of Client.
type HTTPClient struct {
	baseURL   string
	http      Doer
	userAgent string
	logger    logging.Logger
}

var _ Client = (*HTTPClient)(nil)

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithDoer replaces the default *http.Client.
func WithDoer(d Doer) Option {
	return func(c *HTTPClient) { c.http = d }
}

// WithUserAgent sets the device descriptor sent with every request; it is
// what the server shows in the session list.
func WithUserAgent(ua string) Option {
	return func(c *HTTPClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *HTTPClient) { c.logger = l }
}

// NewHTTPClient builds a client for the server at baseURL, e.g.
// "http://127.0.0.1:8000".
func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}

	c := &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: defaultUserAgent,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("module", "credential_transport")
	return c, nil
}

// BaseURL returns the server URL without a trailing slash.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// UserAgent returns the device descriptor sent with requests.
func (c *HTTPClient) UserAgent() string { return c.userAgent }

// Doer returns the underlying networking primitive.
func (c *HTTPClient) Doer() Doer { return c.http }

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// SignUp registers an account. The server answers with a confirmation
// message; field problems come back as ErrValidationFailed with Fields set.
func (c *HTTPClient) SignUp(ctx context.Context, name, email string, password []byte) (string, error) {
	var resp messageResponse
	err := c.call(ctx, http.MethodPost, PathSignUp, "",
		signUpRequest{Name: name, Email: email, Password: string(password)}, &resp, nil)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

type loginRequest struct {
	Email        string `json:"email,omitempty"`
	Password     string `json:"password,omitempty"`
	OTPCode      string `json:"otp_code,omitempty"`
	Continuation string `json:"continuation,omitempty"`
}

type loginResponse struct {
	Access            string           `json:"access"`
	Refresh           string           `json:"refresh"`
	SessionID         string           `json:"session_id"`
	User              *models.Identity `json:"user"`
	TwoFactorRequired bool             `json:"two_factor_required"`
	Continuation      string           `json:"continuation"`
}

// SignIn submits one sign-in leg. It returns either credentials or a
// two-factor challenge; failures unwrap to ErrInvalidCredentials,
// ErrEmailNotVerified or ErrTwoFactorCodeInvalid.
func (c *HTTPClient) SignIn(ctx context.Context, req SignInRequest) (*models.SignInResult, error) {
	unauthorized := ErrInvalidCredentials
	if req.Continuation != "" {
		unauthorized = ErrTwoFactorCodeInvalid
	}

	var resp loginResponse
	err := c.call(ctx, http.MethodPost, PathSignIn, "", loginRequest{
		Email:        req.Email,
		Password:     string(req.Password),
		OTPCode:      req.Code,
		Continuation: req.Continuation,
	}, &resp, StatusErrors{
		http.StatusUnauthorized: unauthorized,
		http.StatusForbidden:    ErrEmailNotVerified,
	})
	if err != nil {
		return nil, err
	}

	if resp.TwoFactorRequired {
		return &models.SignInResult{TwoFactorRequired: true, Continuation: resp.Continuation}, nil
	}
	if resp.Access == "" || resp.Refresh == "" {
		return nil, errIncompleteTokens
	}

	identity := resp.User
	if identity == nil {
		// Older servers return tokens only.
		identity, err = c.fetchProfile(ctx, resp.Access)
		if err != nil {
			return nil, fmt.Errorf("fetch profile after sign-in: %w", err)
		}
	}

	return &models.SignInResult{
		Credentials: &models.Credentials{
			Tokens:   models.TokenPair{AccessToken: resp.Access, RefreshToken: resp.Refresh},
			Identity: identity,
		},
		SessionID: resp.SessionID,
	}, nil
}

func (c *HTTPClient) fetchProfile(ctx context.Context, accessToken string) (*models.Identity, error) {
	var identity models.Identity
	if err := c.call(ctx, http.MethodGet, PathProfile, accessToken, nil, &identity, nil); err != nil {
		return nil, err
	}
	return &identity, nil
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// Refresh mints a new access token. Every failure the server reports is
// ErrRefreshTokenInvalid; transport failures keep their own classification.
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var resp refreshResponse
	err := c.call(ctx, http.MethodPost, PathRefresh, "", refreshRequest{Refresh: refreshToken}, &resp, StatusErrors{
		http.StatusBadRequest:   ErrRefreshTokenInvalid,
		http.StatusUnauthorized: ErrRefreshTokenInvalid,
		http.StatusForbidden:    ErrRefreshTokenInvalid,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			apiErr.Err = ErrRefreshTokenInvalid
		}
		return "", err
	}
	if resp.Access == "" {
		return "", fmt.Errorf("%w: empty access token", ErrRefreshTokenInvalid)
	}
	return resp.Access, nil
}

// SignOut asks the server to revoke refreshToken. It is best effort; the
// caller clears local state regardless of the result.
func (c *HTTPClient) SignOut(ctx context.Context, accessToken, refreshToken string) error {
	return c.call(ctx, http.MethodPost, PathSignOut, accessToken, refreshRequest{Refresh: refreshToken}, nil, nil)
}

type emailRequest struct {
	Email string `json:"email"`
}

func (c *HTTPClient) RequestPasswordReset(ctx context.Context, email string) error {
	return c.call(ctx, http.MethodPost, PathPasswordResetRequest, "", emailRequest{Email: email}, nil, nil)
}

type passwordRequest struct {
	Password string `json:"password"`
}

// ConsumePasswordReset sets a new password using the token from a reset link.
func (c *HTTPClient) ConsumePasswordReset(ctx context.Context, token string, password []byte) error {
	if token == "" {
		return ErrRecoveryTokenInvalid
	}
	return c.call(ctx, http.MethodPost, PathPasswordReset+url.PathEscape(token)+"/", "",
		passwordRequest{Password: string(password)}, nil, StatusErrors{
			http.StatusBadRequest: ErrRecoveryTokenInvalid,
			http.StatusNotFound:   ErrRecoveryTokenInvalid,
			http.StatusGone:       ErrRecoveryTokenInvalid,
		})
}

// VerifyEmail confirms the address using the token from a verification link.
func (c *HTTPClient) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrRecoveryTokenInvalid
	}
	return c.call(ctx, http.MethodGet, PathVerifyEmail+url.PathEscape(token)+"/", "", nil, nil, StatusErrors{
		http.StatusNotFound: ErrRecoveryTokenInvalid,
		http.StatusGone:     ErrRecoveryTokenInvalid,
	})
}

// call performs one JSON round trip. in and out may be nil.
func (c *HTTPClient) call(ctx context.Context, method, path, accessToken string, in, out any, byStatus StatusErrors) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := PrepareRequest(ctx, method, c.baseURL+path, body, c.userAgent)
	if err != nil {
		return err
	}
	if accessToken != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug(ctx, "identity call failed", "path", path, "error", err)
		return MapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DecodeError(resp, byStatus)
	}
	return DecodeBody(resp, out)
}

// PrepareRequest builds an outbound request with the JSON, request-id and
// device headers every backend call carries.
func PrepareRequest(ctx context.Context, method, target string, body []byte, userAgent string) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.RequestIDHeaderName, uuid.NewString())
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return req, nil
}

// DecodeBody unmarshals a successful JSON response into out. A nil out or an
// empty body is not an error.
func DecodeBody(resp *http.Response, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return MapTransportError(err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

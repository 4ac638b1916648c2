// Package gateway wraps every non-identity backend call: it attaches the
// current access token, renews it once on an authorization failure and
// ends the session when renewal is impossible.
//
// Renewal is single-flight. Concurrent requests that fail with 401 share one
// outstanding refresh call and then replay with whatever token it produced.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anayy09/FinMate/internal/client/client"
	"github.com/anayy09/FinMate/internal/client/models"
	"github.com/anayy09/FinMate/internal/client/tokenstore"
	"github.com/anayy09/FinMate/internal/common"
	"github.com/anayy09/FinMate/internal/logging"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshTimeout bounds a refresh call that never resolves.
const DefaultRefreshTimeout = 15 * time.Second

// TokenStore is the slice of the credential store the gateway needs.
type TokenStore interface {
	Get(ctx context.Context) (*models.Credentials, error)
	SetAccessOnly(ctx context.Context, refreshToken, accessToken string) error
	ClearIfPresent(ctx context.Context, refreshToken string) (bool, error)
}

// Refresher mints a new access token from a refresh token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// SessionEndedFunc is notified once per session that the gateway ends.
// reason is the failure that made the session unrecoverable.
type SessionEndedFunc func(ctx context.Context, reason error)

// Request is a replayable backend call. Path is relative to the server URL
// and may carry a query string.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
}

type listener struct {
	id int
	fn SessionEndedFunc
}

// Gateway is safe for concurrent use.
type Gateway struct {
	baseURL        string
	userAgent      string
	http           client.Doer
	store          TokenStore
	refresher      Refresher
	refreshTimeout time.Duration
	logger         logging.Logger

	flight singleflight.Group

	// endMu makes "clear the store and notify" a single step.
	endMu sync.Mutex

	listenersMu sync.Mutex
	listeners   []listener
	nextID      int
}

// Option configures a Gateway.
type Option func(*Gateway)

func WithDoer(d client.Doer) Option {
	return func(g *Gateway) { g.http = d }
}

func WithUserAgent(ua string) Option {
	return func(g *Gateway) { g.userAgent = ua }
}

// WithRefreshTimeout bounds each refresh call. On expiry the refresh counts
// as failed with client.ErrRefreshTokenInvalid.
func WithRefreshTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.refreshTimeout = d
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New builds a Gateway for the server at baseURL.
func New(baseURL string, store TokenStore, refresher Refresher, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{Timeout: 30 * time.Second},
		store:          store,
		refresher:      refresher,
		refreshTimeout: DefaultRefreshTimeout,
		logger:         logging.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("module", "gateway")
	return g
}

// OnSessionEnded registers fn and returns a function that unregisters it.
func (g *Gateway) OnSessionEnded(fn SessionEndedFunc) (cancel func()) {
	g.listenersMu.Lock()
	defer g.listenersMu.Unlock()

	g.nextID++
	id := g.nextID
	g.listeners = append(g.listeners, listener{id: id, fn: fn})

	return func() {
		g.listenersMu.Lock()
		defer g.listenersMu.Unlock()
		for i, l := range g.listeners {
			if l.id == id {
				g.listeners = append(g.listeners[:i], g.listeners[i+1:]...)
				return
			}
		}
	}
}

// Do sends req with the current access token. A 401 triggers at most one
// renewal and one replay; the caller sees only the final response. A session
// stored by a sign-in while the renewal ran is used for the replay instead.
// When the session cannot be recovered, the store is cleared, listeners are
// notified
// and the original 401 is returned as an error unwrapping to
// client.ErrUnauthorized. Any other response is returned as is; the caller
// closes its body.
func (g *Gateway) Do(ctx context.Context, req Request) (*http.Response, error) {
	ctx = logging.WithAttrs(ctx, "method", req.Method, "path", req.Path)
	sent := g.currentAccessToken(ctx)

	resp, err := g.send(ctx, req, sent)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	origErr := g.drainUnauthorized(resp)

	token, refresh, err := g.renew(ctx, sent)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.endSession(ctx, refresh, err)
		// A sign-in may have stored a newer session while the refresh ran.
		creds, gerr := g.store.Get(ctx)
		if gerr != nil || creds.Tokens.RefreshToken == refresh || creds.Tokens.AccessToken == sent {
			return nil, origErr
		}
		token, refresh = creds.Tokens.AccessToken, creds.Tokens.RefreshToken
	}

	resp, err = g.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// A second 401 right after renewal is never retried.
		replayErr := g.drainUnauthorized(resp)
		g.endSession(ctx, refresh, replayErr)
		return nil, replayErr
	}
	return resp, nil
}

// DoJSON is Do for JSON endpoints. in and out may be nil; byStatus refines
// error mapping as in client.DecodeError.
func (g *Gateway) DoJSON(ctx context.Context, method, path string, in, out any, byStatus client.StatusErrors) error {
	req := Request{Method: method, Path: path}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		req.Body = body
	}

	resp, err := g.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return client.DecodeError(resp, byStatus)
	}
	return client.DecodeBody(resp, out)
}

func (g *Gateway) currentAccessToken(ctx context.Context) string {
	creds, err := g.store.Get(ctx)
	if err != nil {
		return ""
	}
	return creds.Tokens.AccessToken
}

func (g *Gateway) send(ctx context.Context, req Request, accessToken string) (*http.Response, error) {
	httpReq, err := client.PrepareRequest(ctx, req.Method, g.baseURL+req.Path, req.Body, g.userAgent)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if accessToken != "" {
		httpReq.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+accessToken)
	}

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, client.MapTransportError(err)
	}
	return resp, nil
}

func (g *Gateway) drainUnauthorized(resp *http.Response) error {
	defer resp.Body.Close()
	err := client.DecodeError(resp, nil)
	_, _ = io.Copy(io.Discard, resp.Body)

	// Whatever code the body carries, a 401 here is about the access token.
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		apiErr.Err = client.ErrUnauthorized
		return apiErr
	}
	return fmt.Errorf("%w: %w", client.ErrUnauthorized, err)
}

// renew returns an access token newer than sent, refreshing if nobody has
// done so yet, together with the refresh token of the session it belongs
// to. Waiting honours ctx; the refresh itself does not.
func (g *Gateway) renew(ctx context.Context, sent string) (access, refresh string, err error) {
	creds, err := g.store.Get(ctx)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", client.ErrRefreshTokenInvalid, err)
	}
	refresh = creds.Tokens.RefreshToken
	if creds.Tokens.AccessToken != sent {
		return creds.Tokens.AccessToken, refresh, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := g.flight.DoChan(refresh, func() (any, error) {
		return g.refresh(flightCtx, sent, refresh)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", refresh, res.Err
		}
		return res.Val.(string), refresh, nil
	case <-ctx.Done():
		return "", refresh, ctx.Err()
	}
}

// refresh runs inside the single flight for refreshToken. It rechecks the
// store first so a caller that lost the race to an already finished flight
// does not trigger a second network call. Every store write is conditional
// on refreshToken still being the stored one.
func (g *Gateway) refresh(ctx context.Context, sent, refreshToken string) (string, error) {
	creds, err := g.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", client.ErrRefreshTokenInvalid, err)
	}
	if creds.Tokens.RefreshToken != refreshToken {
		return "", fmt.Errorf("%w: %w", client.ErrRefreshTokenInvalid, tokenstore.ErrReplaced)
	}
	if creds.Tokens.AccessToken != sent {
		return creds.Tokens.AccessToken, nil
	}

	rctx, cancel := context.WithTimeout(ctx, g.refreshTimeout)
	defer cancel()

	g.logger.Debug(ctx, "refreshing access token")
	access, err := g.refresher.Refresh(rctx, refreshToken)
	if err != nil {
		if !errors.Is(err, client.ErrRefreshTokenInvalid) {
			err = fmt.Errorf("%w: %w", client.ErrRefreshTokenInvalid, err)
		}
		g.logger.Warn(ctx, "access token refresh failed", "error", err)
		// Every waiter may already have given up.
		g.endSession(ctx, refreshToken, err)
		return "", err
	}

	if err := g.store.SetAccessOnly(ctx, refreshToken, access); err != nil {
		// Signed out or signed in again while the refresh was in flight.
		g.logger.Info(ctx, "discarding access token of a replaced session", "error", err)
		return "", fmt.Errorf("%w: %w", client.ErrRefreshTokenInvalid, err)
	}
	g.logger.Info(ctx, "access token refreshed")
	return access, nil
}

// endSession clears the session that owns refreshToken and notifies
// listeners, once per stored session no matter how many requests escalate
// concurrently. A session stored since refreshToken was read is kept and
// nobody is notified.
func (g *Gateway) endSession(ctx context.Context, refreshToken string, reason error) {
	g.endMu.Lock()
	cleared, err := g.store.ClearIfPresent(context.WithoutCancel(ctx), refreshToken)
	g.endMu.Unlock()

	if err != nil {
		g.logger.Error(ctx, "failed to clear credentials", "error", err)
		return
	}
	if !cleared {
		return
	}
	g.logger.Info(ctx, "session ended", "reason", reason)

	g.listenersMu.Lock()
	ls := make([]listener, len(g.listeners))
	copy(ls, g.listeners)
	g.listenersMu.Unlock()

	for _, l := range ls {
		l.fn(ctx, reason)
	}
}

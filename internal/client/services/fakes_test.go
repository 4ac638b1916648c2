package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/anayy09/FinMate/internal/client/client"
	"github.com/anayy09/FinMate/internal/client/gateway"
	"github.com/anayy09/FinMate/internal/client/models"
	"github.com/anayy09/FinMate/internal/client/tokenstore"
	"github.com/stretchr/testify/require"
)

// ---- fake identity client ----

type fakeClient struct {
	mu sync.Mutex

	SignInFn    func(req client.SignInRequest) (*models.SignInResult, error)
	SignInCalls []client.SignInRequest

	SignOutErr      error
	SignOutCalls    int
	SignOutRefresh  []string
	SignOutCtxAlive []bool

	SignUpMsg  string
	SignUpErr  error
	LastSignUp []string

	VerifyErr    error
	ResetReqErr  error
	ResetErr     error
	LastToken    string
	LastEmail    string
	LastPassword []byte
}

func (f *fakeClient) SignUp(_ context.Context, name, email string, password []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastSignUp = []string{name, email, string(password)}
	return f.SignUpMsg, f.SignUpErr
}

func (f *fakeClient) SignIn(_ context.Context, req client.SignInRequest) (*models.SignInResult, error) {
	f.mu.Lock()
	req.Password = append([]byte(nil), req.Password...)
	f.SignInCalls = append(f.SignInCalls, req)
	fn := f.SignInFn
	f.mu.Unlock()
	return fn(req)
}

func (f *fakeClient) Refresh(context.Context, string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeClient) SignOut(ctx context.Context, _, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SignOutCalls++
	f.SignOutRefresh = append(f.SignOutRefresh, refreshToken)
	f.SignOutCtxAlive = append(f.SignOutCtxAlive, ctx.Err() == nil)
	return f.SignOutErr
}

func (f *fakeClient) RequestPasswordReset(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastEmail = email
	return f.ResetReqErr
}

func (f *fakeClient) ConsumePasswordReset(_ context.Context, token string, password []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastToken = token
	f.LastPassword = append([]byte(nil), password...)
	return f.ResetErr
}

func (f *fakeClient) VerifyEmail(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastToken = token
	return f.VerifyErr
}

func (f *fakeClient) signInCalls() []client.SignInRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.SignInRequest(nil), f.SignInCalls...)
}

// ---- fake gateway ----

// route answers one method+path. in is the request value as passed to
// DoJSON; the returned value, if any, is JSON-copied into out.
type route func(in any) (any, error)

type fakeGateway struct {
	mu        sync.Mutex
	routes    map[string]route
	calls     []string
	bodies    []any
	listeners []gateway.SessionEndedFunc
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{routes: map[string]route{}}
}

func (g *fakeGateway) handle(method, path string, r route) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes[method+" "+path] = r
}

func (g *fakeGateway) DoJSON(_ context.Context, method, path string, in, out any, _ client.StatusErrors) error {
	key := method + " " + path
	g.mu.Lock()
	g.calls = append(g.calls, key)
	g.bodies = append(g.bodies, in)
	r, ok := g.routes[key]
	g.mu.Unlock()
	if !ok {
		return client.ErrNotFound
	}

	res, err := r(in)
	if err != nil {
		return err
	}
	if out == nil || res == nil {
		return nil
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (g *fakeGateway) OnSessionEnded(fn gateway.SessionEndedFunc) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
	return func() {}
}

// end simulates the gateway's unrecoverable path.
func (g *fakeGateway) end(ctx context.Context, st *tokenstore.Store, reason error) {
	refresh := ""
	if creds, err := st.Get(ctx); err == nil {
		refresh = creds.Tokens.RefreshToken
	}
	cleared, _ := st.ClearIfPresent(ctx, refresh)
	if !cleared {
		return
	}
	g.mu.Lock()
	ls := append([]gateway.SessionEndedFunc(nil), g.listeners...)
	g.mu.Unlock()
	for _, fn := range ls {
		fn(ctx, reason)
	}
}

func (g *fakeGateway) callCount(method, path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == method+" "+path {
			n++
		}
	}
	return n
}

// ---- helpers ----

var ann = &models.Identity{ID: 1, Email: "a@b.com", Name: "Ann", EmailVerified: true}

func fullSignIn(access, refresh string, identity *models.Identity) *models.SignInResult {
	return &models.SignInResult{
		Credentials: &models.Credentials{
			Tokens:   models.TokenPair{AccessToken: access, RefreshToken: refresh},
			Identity: identity.Clone(),
		},
		SessionID: "sess-1",
	}
}

type harness struct {
	client *fakeClient
	gw     *fakeGateway
	store  *tokenstore.Store
	ctrl   *SessionController

	mu     sync.Mutex
	states []State
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		client: &fakeClient{},
		gw:     newFakeGateway(),
		store:  tokenstore.New(tokenstore.NewMemoryBackend()),
	}
	h.ctrl = NewSessionController(h.client, h.gw, h.store)
	h.ctrl.Subscribe(func(s State, _ *models.Identity) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.states = append(h.states, s)
	})
	return h
}

func (h *harness) seen() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]State(nil), h.states...)
}

// signedIn puts the harness in StateAuthenticated via a plain sign-in.
func (h *harness) signedIn(t *testing.T) {
	t.Helper()
	h.client.SignInFn = func(client.SignInRequest) (*models.SignInResult, error) {
		return fullSignIn("acc-1", "ref-1", ann), nil
	}
	_, err := h.ctrl.SignIn(context.Background(), "a@b.com", []byte("x"))
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, h.ctrl.State())
}

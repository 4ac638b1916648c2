// Package services contains the application services of the FinMate client.
// This file defines the session controller: the state machine that owns
// sign-in (including the two-factor branch), sign-out, profile refresh and
// the single "who is signed in" answer every other component consults.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/anayy09/FinMate/internal/client/client"
	"github.com/anayy09/FinMate/internal/client/gateway"
	"github.com/anayy09/FinMate/internal/client/models"
	"github.com/anayy09/FinMate/internal/client/tokenstore"
	"github.com/anayy09/FinMate/internal/common"
	"github.com/anayy09/FinMate/internal/logging"
	"github.com/google/uuid"
)

var (
	ErrNotAuthenticated    = errors.New("not signed in")
	ErrNoPendingTwoFactor  = errors.New("no pending two-factor sign-in")
	ErrNoPendingEnrollment = errors.New("no pending two-factor enrollment")
)

// State is the session state.
type State int

const (
	StateUnknown State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// CredentialStore is what the controller needs from the token store.
type CredentialStore interface {
	Get(ctx context.Context) (*models.Credentials, error)
	Set(ctx context.Context, creds *models.Credentials) error
	SetIdentity(ctx context.Context, identity *models.Identity) error
	Clear(ctx context.Context) error
}

// Gateway performs authenticated backend calls.
type Gateway interface {
	DoJSON(ctx context.Context, method, path string, in, out any, byStatus client.StatusErrors) error
	OnSessionEnded(fn gateway.SessionEndedFunc) (cancel func())
}

// Listener observes state changes. identity is a private copy, nil unless
// state is StateAuthenticated. Listeners run outside the controller lock
// and may read the controller, but must not start a transition
// synchronously.
type Listener func(state State, identity *models.Identity)

// SignInOutcome is the result of the first sign-in leg. When
// TwoFactorRequired is set, Ticket names the pending sign-in to pass to
// CompleteTwoFactor or CancelTwoFactor.
type SignInOutcome struct {
	Identity          *models.Identity
	TwoFactorRequired bool
	Ticket            string
}

// pendingTicket is the in-memory state of a sign-in awaiting its second
// factor. It is never persisted.
type pendingTicket struct {
	id           string
	email        string
	password     []byte
	continuation string
}

func (p *pendingTicket) destroy() {
	if p != nil {
		common.Wipe(p.password)
	}
}

type subscriber struct {
	id int
	fn Listener
}

// SessionController is safe for concurrent use.
type SessionController struct {
	client client.Client
	gw     Gateway
	store  CredentialStore
	logger logging.Logger

	mu       sync.Mutex
	state    State
	identity *models.Identity
	pending  *pendingTicket
	version  uint64

	// identityMu serialises identity rewrites so store and memory agree.
	identityMu sync.Mutex

	subsMu sync.Mutex
	subs   []subscriber
	nextID int

	notifyMu  sync.Mutex
	delivered uint64
}

// SessionOption configures a SessionController.
type SessionOption func(*SessionController)

func WithSessionLogger(l logging.Logger) SessionOption {
	return func(c *SessionController) { c.logger = l }
}

// NewSessionController wires the controller to the identity client, the
// gateway and the credential store. It starts in StateUnknown; call Start.
func NewSessionController(c client.Client, gw Gateway, store CredentialStore, opts ...SessionOption) *SessionController {
	sc := &SessionController{
		client: c,
		gw:     gw,
		store:  store,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	sc.logger = sc.logger.With("module", "session")

	gw.OnSessionEnded(func(ctx context.Context, reason error) {
		sc.logger.Info(ctx, "session ended by backend", "reason", reason)
		sc.becomeAnonymous()
	})
	return sc
}

// Start resolves the initial state. With a stored token pair it fetches the
// profile through the gateway and overwrites the cached snapshot. Absent or
// corrupt stored state yields StateAnonymous with a nil error.
func (c *SessionController) Start(ctx context.Context) (State, error) {
	if _, err := c.store.Get(ctx); err != nil {
		if !errors.Is(err, tokenstore.ErrAbsent) {
			c.becomeAnonymous()
			return StateAnonymous, err
		}
		if errors.Is(err, tokenstore.ErrCorrupt) {
			c.logger.Warn(ctx, "discarding corrupt stored credentials", "error", err)
		}
		// Partial state is wiped too.
		if err := c.store.Clear(ctx); err != nil {
			c.logger.Error(ctx, "failed to clear credentials", "error", err)
		}
		c.becomeAnonymous()
		return StateAnonymous, nil
	}

	identity, err := c.fetchProfile(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return c.State(), ctx.Err()
		}
		c.becomeAnonymous()
		if errors.Is(err, client.ErrUnauthorized) || errors.Is(err, tokenstore.ErrAbsent) {
			return StateAnonymous, nil
		}
		return StateAnonymous, err
	}
	c.becomeAuthenticated(identity)
	return StateAuthenticated, nil
}

// SignIn submits email and password. On full success the credentials are
// stored and the state becomes StateAuthenticated. When the account has a
// second factor, nothing is stored and the outcome carries a ticket for
// CompleteTwoFactor; any earlier ticket is discarded. Failures leave the
// state unchanged.
func (c *SessionController) SignIn(ctx context.Context, email string, password []byte) (*SignInOutcome, error) {
	res, err := c.client.SignIn(ctx, client.SignInRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	if res.TwoFactorRequired {
		ticket := &pendingTicket{
			id:           uuid.NewString(),
			email:        email,
			password:     append([]byte(nil), password...),
			continuation: res.Continuation,
		}
		c.mu.Lock()
		c.pending.destroy()
		c.pending = ticket
		c.mu.Unlock()

		c.logger.Info(ctx, "second factor required", "email", email)
		return &SignInOutcome{TwoFactorRequired: true, Ticket: ticket.id}, nil
	}

	c.dropPending()
	if err := c.establish(ctx, res.Credentials); err != nil {
		return nil, err
	}
	return &SignInOutcome{Identity: res.Credentials.Identity.Clone()}, nil
}

// CompleteTwoFactor submits the one-time code for the pending sign-in named
// by ticket. A rejected code keeps the ticket usable until CancelTwoFactor.
func (c *SessionController) CompleteTwoFactor(ctx context.Context, ticket, code string) (*models.Identity, error) {
	c.mu.Lock()
	p := c.pending
	if p == nil || p.id != ticket {
		c.mu.Unlock()
		return nil, ErrNoPendingTwoFactor
	}
	req := client.SignInRequest{
		Email:        p.email,
		Password:     append([]byte(nil), p.password...),
		Code:         code,
		Continuation: p.continuation,
	}
	c.mu.Unlock()
	defer common.Wipe(req.Password)

	res, err := c.client.SignIn(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.TwoFactorRequired {
		c.mu.Lock()
		if c.pending == p && res.Continuation != "" {
			p.continuation = res.Continuation
		}
		c.mu.Unlock()
		return nil, client.ErrTwoFactorCodeInvalid
	}

	c.mu.Lock()
	stillPending := c.pending == p
	if stillPending {
		c.pending = nil
	}
	c.mu.Unlock()

	if !stillPending {
		// Cancelled while the code was in flight; do not keep the session.
		c.revokeQuietly(ctx, res.Credentials)
		return nil, ErrNoPendingTwoFactor
	}
	p.destroy()

	if err := c.establish(ctx, res.Credentials); err != nil {
		return nil, err
	}
	return res.Credentials.Identity.Clone(), nil
}

// CancelTwoFactor discards the pending sign-in named by ticket. Unknown
// tickets are ignored.
func (c *SessionController) CancelTwoFactor(ticket string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && c.pending.id == ticket {
		c.pending.destroy()
		c.pending = nil
	}
}

// PendingTwoFactor returns the ticket of the pending sign-in, if any.
func (c *SessionController) PendingTwoFactor() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return "", false
	}
	return c.pending.id, true
}

// SignOut revokes the refresh token on the server, best effort, then clears
// the store and moves to StateAnonymous whatever the server said. The
// network call is not cancelled with ctx. Only a local clear failure is
// returned.
func (c *SessionController) SignOut(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	c.dropPending()

	if creds, err := c.store.Get(ctx); err == nil {
		if err := c.client.SignOut(ctx, creds.Tokens.AccessToken, creds.Tokens.RefreshToken); err != nil {
			c.logger.Warn(ctx, "server sign-out failed", "error", err)
		}
	}

	clearErr := c.store.Clear(ctx)
	if clearErr != nil {
		c.logger.Error(ctx, "failed to clear credentials", "error", clearErr)
	}
	c.becomeAnonymous()
	return clearErr
}

// RefreshProfile re-fetches the identity and replaces the snapshot wholesale.
// The token pair is not touched.
func (c *SessionController) RefreshProfile(ctx context.Context) (*models.Identity, error) {
	if err := c.RequireAuthenticated(); err != nil {
		return nil, err
	}

	c.identityMu.Lock()
	defer c.identityMu.Unlock()

	identity, err := c.fetchProfile(ctx)
	if err != nil {
		if errors.Is(err, tokenstore.ErrAbsent) {
			c.becomeAnonymous()
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}
	c.replaceIdentity(identity)
	return identity.Clone(), nil
}

// UpdateIdentity applies fn to a copy of the current snapshot and writes
// the result to the store and memory as one step.
func (c *SessionController) UpdateIdentity(ctx context.Context, fn func(*models.Identity)) (*models.Identity, error) {
	c.identityMu.Lock()
	defer c.identityMu.Unlock()

	next := c.Identity()
	if next == nil {
		return nil, ErrNotAuthenticated
	}
	fn(next)

	if err := c.store.SetIdentity(ctx, next); err != nil {
		if errors.Is(err, tokenstore.ErrAbsent) {
			c.becomeAnonymous()
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("store identity: %w", err)
	}
	c.replaceIdentity(next)
	return next.Clone(), nil
}

// State returns the current state.
func (c *SessionController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns a copy of the current snapshot, or nil when not
// authenticated.
func (c *SessionController) Identity() *models.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity.Clone()
}

// RequireAuthenticated returns ErrNotAuthenticated unless the state is
// StateAuthenticated.
func (c *SessionController) RequireAuthenticated() error {
	if c.State() != StateAuthenticated {
		return ErrNotAuthenticated
	}
	return nil
}

// Subscribe registers fn for state changes and returns a function that
// unregisters it. Listeners are called in registration order.
func (c *SessionController) Subscribe(fn Listener) (cancel func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber{id: id, fn: fn})

	return func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

func (c *SessionController) fetchProfile(ctx context.Context) (*models.Identity, error) {
	var identity models.Identity
	if err := c.gw.DoJSON(ctx, http.MethodGet, client.PathProfile, nil, &identity, nil); err != nil {
		return nil, err
	}
	if err := c.store.SetIdentity(ctx, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (c *SessionController) establish(ctx context.Context, creds *models.Credentials) error {
	if err := c.store.Set(ctx, creds); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	c.logger.Info(ctx, "signed in", "email", creds.Identity.Email)
	c.becomeAuthenticated(creds.Identity)
	return nil
}

func (c *SessionController) revokeQuietly(ctx context.Context, creds *models.Credentials) {
	if creds == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := c.client.SignOut(ctx, creds.Tokens.AccessToken, creds.Tokens.RefreshToken); err != nil {
		c.logger.Warn(ctx, "failed to revoke abandoned session", "error", err)
	}
}

func (c *SessionController) dropPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.destroy()
	c.pending = nil
}

func (c *SessionController) becomeAuthenticated(identity *models.Identity) {
	c.mu.Lock()
	c.state = StateAuthenticated
	c.identity = identity.Clone()
	v := c.bump()
	c.mu.Unlock()

	c.notify(v)
}

// becomeAnonymous is idempotent: repeated calls notify once.
func (c *SessionController) becomeAnonymous() {
	c.mu.Lock()
	if c.state == StateAnonymous {
		c.mu.Unlock()
		return
	}
	c.state = StateAnonymous
	c.identity = nil
	c.pending.destroy()
	c.pending = nil
	v := c.bump()
	c.mu.Unlock()

	c.notify(v)
}

func (c *SessionController) replaceIdentity(identity *models.Identity) {
	c.mu.Lock()
	if c.state != StateAuthenticated {
		c.mu.Unlock()
		return
	}
	c.identity = identity.Clone()
	v := c.bump()
	c.mu.Unlock()

	c.notify(v)
}

// bump must be called with mu held.
func (c *SessionController) bump() uint64 {
	c.version++
	return c.version
}

// notify delivers the state as of version v. A notification overtaken by a
// newer one is dropped so listeners never see an older state last.
func (c *SessionController) notify(v uint64) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	if v <= c.delivered {
		return
	}
	c.mu.Lock()
	state, identity := c.state, c.identity.Clone()
	v = c.version
	c.mu.Unlock()
	c.delivered = v

	c.subsMu.Lock()
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.subsMu.Unlock()

	for _, s := range subs {
		s.fn(state, identity.Clone())
	}
}

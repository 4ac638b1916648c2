package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/anayy09/FinMate/internal/client/client"
	"github.com/anayy09/FinMate/internal/client/config"
	"github.com/anayy09/FinMate/internal/client/gateway"
	"github.com/anayy09/FinMate/internal/client/models"
	"github.com/anayy09/FinMate/internal/client/services"
	"github.com/anayy09/FinMate/internal/client/tokenstore"
	"github.com/anayy09/FinMate/internal/logging"
)

type App struct {
	config *config.Config
	logger logging.Logger

	store     *tokenstore.Store
	gw        *gateway.Gateway
	session   *services.SessionController
	twoFactor *services.TwoFactorService
	devices   *services.DeviceService
	account   *services.AccountService

	doer        client.Doer
	in          io.Reader
	reader      *bufio.Reader
	out         io.Writer
	interactive bool

	mu     sync.Mutex
	status string
	ticket string

	unsubscribe []func()
	closeOnce   sync.Once
	closeErr    error
}

// Option configures an App.
type Option func(*App)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
	}
}

// WithDoer replaces the HTTP client used for every backend call.
func WithDoer(d client.Doer) Option {
	return func(a *App) { a.doer = d }
}

// NewApp opens the credential store and builds the client stack.
func NewApp(ctx context.Context, c *config.Config, opts ...Option) (*App, error) {
	a := &App{config: c, in: os.Stdin, out: os.Stdout, status: services.StateUnknown.String()}
	for _, opt := range opts {
		opt(a)
	}
	a.reader = bufio.NewReader(a.in)
	a.interactive = stdinIsTerminal(a.in)

	logger, err := logging.New(c.LogFormat, c.LogLevel, os.Stderr)
	if err != nil {
		return nil, err
	}
	a.logger = logger

	if a.doer == nil {
		a.doer = &http.Client{Timeout: c.RequestTimeout}
	}

	hc, err := client.NewHTTPClient(c.ServerURL,
		client.WithDoer(a.doer),
		client.WithUserAgent(c.DeviceName),
		client.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	store, err := tokenstore.Open(ctx, c.StoreDriver, c.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	a.store = store

	a.gw = gateway.New(c.ServerURL, store, hc,
		gateway.WithDoer(a.doer),
		gateway.WithUserAgent(c.DeviceName),
		gateway.WithRefreshTimeout(c.RefreshTimeout),
		gateway.WithLogger(logger),
	)
	a.session = services.NewSessionController(hc, a.gw, store, services.WithSessionLogger(logger))
	a.twoFactor = services.NewTwoFactorService(a.session, a.gw, logger)
	a.devices = services.NewDeviceService(a.session, a.gw, c.DeviceName)
	a.account = services.NewAccountService(hc, a.session, a.gw)

	a.unsubscribe = append(a.unsubscribe,
		a.session.Subscribe(a.onStateChange),
		a.gw.OnSessionEnded(func(context.Context, error) {
			fmt.Fprintln(a.out, "Your session has ended. Please log in again.")
		}),
	)

	return a, nil
}

func (a *App) onStateChange(state services.State, identity *models.Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if state == services.StateAuthenticated && identity != nil {
		a.status = identity.Email
		return
	}
	a.status = state.String()
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ticket != "" {
		return "(" + a.status + ", code pending)"
	}
	return "(" + a.status + ")"
}

func (a *App) isLoggedIn() bool {
	return a.session.State() == services.StateAuthenticated
}

// Run restores any saved session and runs the REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	fmt.Fprintln(a.out, "Welcome to FinMate CLI (type 'help' for commands)")
	state, err := a.session.Start(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "Could not restore session:", err)
	} else if state == services.StateAuthenticated {
		fmt.Fprintln(a.out, "Signed in as", a.session.Identity().Email)
	}

	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}

// Close releases the credential store.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		for _, fn := range a.unsubscribe {
			fn()
		}
		a.closeErr = a.store.Close()
	})
	return a.closeErr
}

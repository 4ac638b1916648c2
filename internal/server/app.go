// Package server wires the development backend together: logging, the
// user and session stores, the mailer and the REST endpoint, with graceful
// shutdown on SIGINT, SIGTERM and SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/anayy09/FinMate/internal/logging"
	"github.com/anayy09/FinMate/internal/server/config"
	"github.com/anayy09/FinMate/internal/server/mail"
	"github.com/anayy09/FinMate/internal/server/repositories/sqlite"
	"github.com/anayy09/FinMate/internal/server/rest"
	"github.com/anayy09/FinMate/internal/server/sessions"
	"github.com/anayy09/FinMate/internal/server/users"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	userService *users.Service
	db          *sql.DB
}

// NewApp keeps users and sessions in SQLite when c.DatabaseDSN is set and in
// memory otherwise.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{config: c, logger: logger}

	var (
		userRepo    users.Repository
		sessionRepo sessions.Repository
	)
	if c.DatabaseDSN != "" {
		db, err := sqlite.Open(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("database init error: %w", err)
		}
		app.db = db
		userRepo = sqlite.NewUserRepository(db)
		sessionRepo = sqlite.NewSessionRepository(db)
	} else {
		userRepo = users.NewMemoryRepository()
		sessionRepo = sessions.NewMemoryRepository()
	}

	app.userService = users.NewService(userRepo, sessionRepo, mail.NewLogMailer(logger), c)
	return app, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "received signal", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
		signal.Stop(sigs)
	}()
}

func (app *App) startRESTServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := rest.NewServer(app.config.EndpointAddr, app.logger, app.userService)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until the endpoint stops, either on a signal, on ctx being
// done or on a listen error.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...",
		"auto_verify_email", app.config.AutoVerifyEmail,
		"persistent", app.db != nil,
		"access_token_ttl", app.config.AccessTokenValidityDuration.String(),
	)

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startRESTServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "failed to close database", "error", err)
		}
	}
	app.logger.Info(ctx, "Stopped")
}

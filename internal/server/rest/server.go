// Package rest serves the development backend's JSON API over chi.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/anayy09/FinMate/internal/logging"
	"github.com/anayy09/FinMate/internal/server/users"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	address string
	users   *users.Service
	logger  logging.Logger
}

func NewServer(address string, l logging.Logger, us *users.Service) *Server {
	return &Server{
		address: address,
		users:   us,
		logger:  l.With("module", "rest_server"),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup/", s.signUp)
		r.Post("/login/", s.login)
		r.Post("/token/refresh/", s.refresh)
		r.Post("/logout/", s.logout)
		r.Get("/verify-email/{token}/", s.verifyEmail)
		r.Post("/password-reset-request/", s.passwordResetRequest)
		r.Post("/password-reset/{token}/", s.passwordReset)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/setup-2fa/", s.setupTwoFactor)
			r.Post("/verify-2fa/", s.verifyTwoFactor)
			r.Post("/disable-2fa/", s.disableTwoFactor)
		})
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/profile/", s.profile)
		r.Patch("/profile/", s.updateProfile)
		r.Get("/sessions/", s.listSessions)
		r.Post("/logout-device/", s.logoutDevice)
	})

	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting REST server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

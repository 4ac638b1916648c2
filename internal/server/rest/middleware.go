package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/anayy09/FinMate/internal/common"
	"github.com/anayy09/FinMate/internal/logging"
	"github.com/anayy09/FinMate/internal/server/auth"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const claimsKey ctxKey = "claims"

func claimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}

// authMiddleware admits requests carrying a valid bearer token whose
// session is still alive.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, common.BearerPrefix)
		if !ok || token == "" {
			writeTokenError(w, "Authentication credentials were not provided.")
			return
		}

		claims, err := s.users.Authenticate(r.Context(), token)
		if err != nil {
			writeTokenError(w, "Given token not valid for any token type")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ctx := logging.WithAttrs(r.Context(), "request_id", middleware.GetReqID(r.Context()))
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		s.logger.Debug(ctx, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

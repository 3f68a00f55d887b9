package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vansh-rautela/sage-health-assistant/internal/metrics"
	"github.com/vansh-rautela/sage-health-assistant/internal/supabase"
)

type userKey struct{}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		slog.Info("HTTP request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// authMiddleware rejects requests without a valid Supabase access token and
// stores the token's user ID in the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		userID, err := s.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			slog.Info("Rejected access token", "error", err)
			respondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok
}

// canAccessUser reports whether the caller may act on userID's data. Without
// token verification every caller may.
func (s *Server) canAccessUser(r *http.Request, userID string) bool {
	if s.tokens == nil {
		return true
	}
	id, ok := userFromContext(r.Context())
	return ok && id == userID
}

// authorizeSession writes an error response and returns false unless the
// caller owns sessionID. Without token verification every caller does.
func (s *Server) authorizeSession(w http.ResponseWriter, r *http.Request, sessionID string) bool {
	if s.tokens == nil {
		return true
	}

	session, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, supabase.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Session not found.")
			return false
		}
		slog.Error("Loading session owner failed", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to verify session.")
		return false
	}
	if !s.canAccessUser(r, session.UserID) {
		respondError(w, http.StatusForbidden, "Not allowed to access this session.")
		return false
	}
	return true
}

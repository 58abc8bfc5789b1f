package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"library-management-api/internal/models"
	"library-management-api/internal/session"
	"library-management-api/internal/store"
)

type contextKey string

const sessionKey contextKey = "session"

// UserLoader resolves the user a token refers to.
type UserLoader interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// Authenticate requires a valid bearer token and stores the caller's session
// in the request context. The user record is reloaded on every request so
// role changes and deletions take effect immediately.
func Authenticate(auth session.Authenticator, users UserLoader, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := session.BearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "No token, authorization denied")
				return
			}

			sess, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Token is not valid")
				return
			}

			if sess.User == nil {
				user, err := users.GetUser(r.Context(), sess.UserID)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						writeError(w, http.StatusUnauthorized, "Token is not valid")
						return
					}
					logger.Error("load session user", "user_id", sess.UserID, "error", err)
					writeError(w, http.StatusInternalServerError, "Server error")
					return
				}
				sess.User = user
			}
			sess.Role = sess.User.Role
			sess.Email = sess.User.Email

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// RequireRole allows the request only if the caller holds one of roles.
// With no roles any authenticated user passes.
func RequireRole(roles ...models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if sess == nil || sess.User == nil {
				writeError(w, http.StatusUnauthorized, "No token, authorization denied")
				return
			}
			if !models.Authorize(sess.User.Role, roles...) {
				writeError(w, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the caller's session or nil.
func SessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

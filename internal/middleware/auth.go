package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// CookieName is the session cookie consulted when no bearer token is sent.
const CookieName = "auth_token"

// TokenVerifier turns a session token into a user ID.
type TokenVerifier interface {
	AuthenticateJWT(token string) (uuid.UUID, error)
}

type contextKey string

const userContextKey contextKey = "user"

// RequireUser authenticates the request and stores the user ID in its context.
// Failures are handed to fail and the chain stops.
func RequireUser(verifier TokenVerifier, fail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := verifier.AuthenticateJWT(Token(r))
			if err != nil {
				fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

// Token returns the bearer token, or the session cookie value when there is none.
func Token(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// WithUser attaches an authenticated user ID to ctx.
func WithUser(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

// UserID returns the authenticated user, or uuid.Nil.
func UserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userContextKey).(uuid.UUID)
	return id
}

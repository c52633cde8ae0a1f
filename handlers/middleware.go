package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/CrowderSoup/launchpad/launch"
	"github.com/CrowderSoup/launchpad/services"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionFrom returns the session the auth middleware attached to ctx.
func SessionFrom(ctx context.Context) launch.Session {
	s, ok := ctx.Value(sessionContextKey).(launch.Session)
	if !ok {
		return launch.Session{Status: launch.AuthUnauthenticated}
	}
	return s
}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s launch.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

type AuthMiddleware struct {
	authService *services.AuthService
}

func NewAuthMiddleware(authService *services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// bearerToken reads the token from the Authorization header, or from the
// token query parameter since browsers cannot set headers on a websocket.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		token := r.URL.Query().Get("token")
		return token, token != ""
	}

	authParts := strings.Split(authHeader, " ")
	if len(authParts) != 2 || authParts[0] != "Bearer" {
		return "", false
	}
	return authParts[1], true
}

// Auth rejects requests without a valid JWT and attaches the signed-in
// session otherwise.
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, launch.ErrUnauthenticated, "missing or malformed authorization")
			return
		}

		session := m.authService.Session(token)
		if !session.Authenticated() {
			writeError(w, launch.ErrUnauthenticated, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

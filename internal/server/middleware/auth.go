package middleware

import (
	"errors"
	"net/http"
	"strings"

	"secret-vault/backend/internal/security"
	"secret-vault/backend/internal/server/httpx"
)

const bearerPrefix = "bearer "

// SessionVerifier validates session tokens.
type SessionVerifier interface {
	VerifySession(token string) (*security.Claims, error)
}

// RequireSession rejects requests without a valid Bearer session token with 401 and places
// the token subject in the request context.
func RequireSession(tokens SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "No token, authorization denied")
				return
			}
			claims, err := tokens.VerifySession(token)
			if err != nil {
				msg := "Token is not valid"
				if errors.Is(err, security.ErrTokenExpired) {
					msg = "Token has expired"
				}
				httpx.WriteError(w, http.StatusUnauthorized, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

package middleware

import (
	"log/slog"
	"net/http"

	"github.com/brinebarrel/storefront-api/internal/auth"
	apphttp "github.com/brinebarrel/storefront-api/pkg/http"
)

// CSRFProtection validates CSRF tokens on state-changing requests made with
// a session cookie. Tokens are minted per user at login and submitted back
// in the X-CSRF-Token header. Must run after auth.RequireSession.
func CSRFProtection(csrfManager *auth.CSRFTokenManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			claims := auth.GetUserFromContext(r)
			if claims == nil {
				apphttp.WriteUnauthorized(w, "authentication required")
				return
			}

			// The token must arrive in the header, not the cookie: browsers
			// attach cookies to cross-site requests, so accepting the cookie
			// value here would defeat the double-submit check.
			csrfToken := r.Header.Get("X-CSRF-Token")
			if csrfToken == "" || !csrfManager.ValidateToken(csrfToken, claims.UserID) {
				logger.Warn("csrf token rejected",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("user_id", claims.UserID))
				apphttp.WriteForbidden(w, "invalid csrf token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}

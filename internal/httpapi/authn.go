package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"cloudos.jermis.io/internal/audit"
	"cloudos.jermis.io/internal/identity"
	"cloudos.jermis.io/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/api/v1/health",
	"/api/v1/auth/azure/url",
	"/api/v1/auth/azure/callback",
	"/api/v1/auth/login",
	"/metrics",
	"/readyz",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// withAuth resolves the bearer token into a principal before any handler runs.
// Token checks fail closed: an unexpected store error is a 500, never a pass.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		// Unknown routes resolve to the catch-all pattern; let them 404
		// instead of demanding credentials for a path that does not exist.
		if _, pattern := a.mux.Handler(r); pattern == "/" {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			obs.CountAuthFailure("missing_token")
			writeError(w, r, http.StatusUnauthorized, "Access token required")
			return
		}

		principal, err := a.identity.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, identity.ErrInvalidToken):
				obs.CountAuthFailure("invalid_token")
				writeError(w, r, http.StatusUnauthorized, "Invalid token")
			case errors.Is(err, identity.ErrSessionExpired):
				obs.CountAuthFailure("session_expired")
				writeError(w, r, http.StatusUnauthorized, "Invalid or expired token")
			case errors.Is(err, identity.ErrAccountNotActive):
				obs.CountAuthFailure("account_not_active")
				writeError(w, r, http.StatusUnauthorized, "Account is not active")
			default:
				obs.CountAuthFailure("internal")
				obs.Error("authentication failed", map[string]any{
					"path":  r.URL.Path,
					"error": err.Error(),
				})
				writeError(w, r, http.StatusInternalServerError, "Authentication failed")
			}
			return
		}

		if a.recorder != nil {
			a.recorder.RecordAccess(principal.ID, audit.RequestMeta{
				Method:    r.Method,
				Path:      r.URL.Path,
				Query:     r.URL.RawQuery,
				UserAgent: r.UserAgent(),
				IP:        clientIP(r),
			})
		}

		ctx := identity.ContextWithPrincipal(r.Context(), principal)
		ctx = identity.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(header, bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

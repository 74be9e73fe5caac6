package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"cloudos.jermis.io/internal/identity"
	"cloudos.jermis.io/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleAzureURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.azure == nil {
		writeError(w, r, http.StatusNotImplemented, "SSO is not configured")
		return
	}
	authURL, state := a.azure.AuthCodeURL()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"authUrl": authURL,
		"state":   state,
	})
}

// handleAzureCallback finishes the code flow. The browser arrives here from
// the provider, so both outcomes are redirects back to the frontend rather
// than JSON bodies.
func (a *API) handleAzureCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.azure == nil {
		writeError(w, r, http.StatusNotImplemented, "SSO is not configured")
		return
	}

	code := r.URL.Query().Get("code")
	accessToken, err := a.azure.Exchange(r.Context(), code)
	if err != nil {
		a.redirectAuthError(w, r, err)
		return
	}
	profile, err := a.azure.Profile(r.Context(), accessToken)
	if err != nil {
		a.redirectAuthError(w, r, err)
		return
	}
	result, err := a.identity.LoginFromAzure(r.Context(), profile)
	if err != nil {
		a.redirectAuthError(w, r, err)
		return
	}

	userJSON, err := json.Marshal(map[string]any{
		"id":        result.User.ID,
		"email":     result.User.Email,
		"firstName": result.User.FirstName,
		"lastName":  result.User.LastName,
		"role":      result.User.Role,
	})
	if err != nil {
		a.redirectAuthError(w, r, err)
		return
	}

	q := url.Values{}
	q.Set("token", result.Token)
	q.Set("user", string(userJSON))
	http.Redirect(w, r, a.frontendURL+"/auth/callback?"+q.Encode(), http.StatusFound)
}

func (a *API) redirectAuthError(w http.ResponseWriter, r *http.Request, err error) {
	obs.Error("sso callback failed", map[string]any{"error": err.Error()})
	q := url.Values{}
	q.Set("message", "Authentication failed")
	http.Redirect(w, r, a.frontendURL+"/auth/error?"+q.Encode(), http.StatusFound)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Validation failed")
		return
	}
	email := strings.TrimSpace(req.Email)

	// Keyed by address plus the claimed email so one host cannot burn
	// another user's budget. Runs before validation so malformed spam
	// consumes the budget too.
	if !a.limitSensitive(w, r, strings.ToLower(email)) {
		return
	}

	if email == "" || !strings.Contains(email, "@") || len(req.Password) < 6 {
		writeError(w, r, http.StatusBadRequest, "Validation failed")
		return
	}

	result, err := a.identity.Login(r.Context(), email, req.Password)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"user":      result.User,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requirePrincipal(w, r); !ok {
		return
	}
	token, _ := identity.TokenFromContext(r.Context())
	if err := a.identity.Logout(r.Context(), token); err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	user, err := a.identity.Profile(r.Context(), p.ID)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// handleVerify is the cheap liveness check frontends poll; authentication has
// already happened in the middleware by the time we get here.
func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"valid":       true,
		"user":        p,
		"permissions": identity.Permissions(p.Role),
	})
}

package httpapi

import (
	"net/http"
	"strings"

	"cloudos.jermis.io/internal/identity"
)

type deactivateRequest struct {
	UserID string `json:"userId"`
}

// handleDeactivate suspends an account and revokes every live session it has,
// so the lockout is immediate rather than waiting for token expiry.
func (a *API) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	var req deactivateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Validation failed")
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "Validation failed")
		return
	}
	if err := a.identity.Deactivate(r.Context(), userID); err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User deactivated",
	})
}

// handleActivity lists a user's recent audit trail. Anyone can read their own;
// reading someone else's requires the admin role.
func (a *API) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		userID = p.ID
	}
	if _, ok := a.requireOwnershipOrAdmin(w, r, userID); !ok {
		return
	}
	activities, err := a.dashboard.RecentActivity(r.Context(), userID)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    activities,
	})
}

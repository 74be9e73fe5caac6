package httpapi

import (
	"net/http"

	"cloudos.jermis.io/internal/identity"
)

// requireRoles checks the principal against an allow-list. A missing principal
// is a 401; a present one with the wrong role is a 403 that names both sides.
func (a *API) requireRoles(w http.ResponseWriter, r *http.Request, allowed ...identity.Role) (identity.Principal, bool) {
	p, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Authentication required")
		return identity.Principal{}, false
	}
	for _, role := range allowed {
		if p.Role == role {
			return p, true
		}
	}
	writeJSON(w, http.StatusForbidden, map[string]any{
		"success":  false,
		"error":    "Insufficient permissions",
		"required": allowed,
		"current":  p.Role,
	})
	return identity.Principal{}, false
}

// Convenience aliases over requireRoles for the recurring guard sets.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	return a.requireRoles(w, r, identity.RoleAdmin)
}

func (a *API) requireAdminOrSupport(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	return a.requireRoles(w, r, identity.RoleAdmin, identity.RoleSupport)
}

func (a *API) requireAccounting(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	return a.requireRoles(w, r, identity.RoleAdmin, identity.RoleAccounting)
}

func (a *API) requireWarehouse(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	return a.requireRoles(w, r, identity.RoleAdmin, identity.RoleWarehouse)
}

// requireCapability gates a feature area on the static role table.
func (a *API) requireCapability(w http.ResponseWriter, r *http.Request, cap string) (identity.Principal, bool) {
	p, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Authentication required")
		return identity.Principal{}, false
	}
	if !identity.HasCapability(p.Role, cap) {
		writeError(w, r, http.StatusForbidden, "Access denied")
		return identity.Principal{}, false
	}
	return p, true
}

// requireOwnershipOrAdmin allows admins through unconditionally and everyone
// else only for their own resource.
func (a *API) requireOwnershipOrAdmin(w http.ResponseWriter, r *http.Request, ownerID string) (identity.Principal, bool) {
	p, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Authentication required")
		return identity.Principal{}, false
	}
	if p.Role == identity.RoleAdmin || p.ID == ownerID {
		return p, true
	}
	writeError(w, r, http.StatusForbidden, "Access denied")
	return identity.Principal{}, false
}

func (a *API) requirePrincipal(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	p, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Authentication required")
		return identity.Principal{}, false
	}
	return p, true
}

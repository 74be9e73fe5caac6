package httpapi

import (
	"net/http"
	"strconv"

	"cloudos.jermis.io/internal/dashboard"
	"cloudos.jermis.io/internal/identity"
	"cloudos.jermis.io/internal/obs"
)

// handleDashboard returns the full aggregate or a 500; partial dashboards are
// never served.
func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.requireCapability(w, r, identity.CapDashboard)
	if !ok {
		return
	}
	overview, err := a.dashboard.Overview(r.Context(), p)
	if err != nil {
		obs.Error("dashboard aggregate failed", map[string]any{
			"user_id": p.ID,
			"error":   err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    overview,
	})
}

func (a *API) handleNews(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.handleNewsList(w, r)
	case http.MethodPost:
		a.handleNewsCreate(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleNewsList(w http.ResponseWriter, r *http.Request) {
	p, ok := a.requireCapability(w, r, identity.CapDashboard)
	if !ok {
		return
	}
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	news, err := a.dashboard.News(r.Context(), p.Role, page, limit)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    news,
	})
}

type newsCreateRequest struct {
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	Excerpt       string          `json:"excerpt"`
	Priority      string          `json:"priority"`
	TargetRoles   []identity.Role `json:"targetRoles"`
	FeaturedImage string          `json:"featuredImage"`
	PublishNow    bool            `json:"publishNow"`
}

func (a *API) handleNewsCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := a.requireAdminOrSupport(w, r)
	if !ok {
		return
	}
	var req newsCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Validation failed")
		return
	}
	article, err := a.dashboard.CreateNews(r.Context(), p.ID, dashboard.NewsDraftInput{
		Title:         req.Title,
		Content:       req.Content,
		Excerpt:       req.Excerpt,
		Priority:      req.Priority,
		TargetRoles:   req.TargetRoles,
		FeaturedImage: req.FeaturedImage,
		PublishNow:    req.PublishNow,
	})
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    article,
	})
}

func (a *API) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	events, err := a.dashboard.UpcomingEvents(r.Context(), p.ID)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    events,
	})
}

func (a *API) handleTeamStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requirePrincipal(w, r); !ok {
		return
	}
	members, err := a.dashboard.TeamStatus(r.Context())
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    members,
	})
}

// handleApprovals is the explicit approval-queue view for the roles that work
// those queues; other roles get the guard's 403 rather than empty counts.
func (a *API) handleApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireAccounting(w, r); !ok {
		return
	}
	approvals, err := a.dashboard.Approvals(r.Context())
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    approvals,
	})
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireWarehouse(w, r); !ok {
		return
	}
	items, err := a.dashboard.LowStock(r.Context())
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    items,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

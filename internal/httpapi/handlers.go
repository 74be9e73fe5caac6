package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloudos.jermis.io/internal/audit"
	"cloudos.jermis.io/internal/azure"
	"cloudos.jermis.io/internal/dashboard"
	"cloudos.jermis.io/internal/identity"
	"cloudos.jermis.io/internal/obs"
)

// ReadyProbe reports whether the backing database answers.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer. All collaborators are passed in explicitly.
type API struct {
	mux         *http.ServeMux
	identity    *identity.Service
	dashboard   *dashboard.Service
	azure       *azure.Client
	recorder    *audit.Recorder
	limiter     *SensitiveLimiter
	readyProbe  ReadyProbe
	frontendURL string
	version     string
}

// Config carries the API's collaborators and settings.
type Config struct {
	Identity    *identity.Service
	Dashboard   *dashboard.Service
	Azure       *azure.Client
	Recorder    *audit.Recorder
	Limiter     *SensitiveLimiter
	ReadyProbe  ReadyProbe
	FrontendURL string
	Version     string
}

func New(cfg Config) (*API, error) {
	if cfg.Identity == nil || cfg.Dashboard == nil {
		return nil, fmt.Errorf("%w: identity and dashboard services are required", identity.ErrInvalidInput)
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewSensitiveLimiter()
	}
	a := &API{
		mux:         http.NewServeMux(),
		identity:    cfg.Identity,
		dashboard:   cfg.Dashboard,
		azure:       cfg.Azure,
		recorder:    cfg.Recorder,
		limiter:     limiter,
		readyProbe:  cfg.ReadyProbe,
		frontendURL: cfg.FrontendURL,
		version:     cfg.Version,
	}

	a.mux.HandleFunc("/api/v1/health", a.Health)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/v1/auth/azure/url", a.handleAzureURL)
	a.mux.HandleFunc("/api/v1/auth/azure/callback", a.handleAzureCallback)
	a.mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/api/v1/auth/profile", a.handleProfile)
	a.mux.HandleFunc("/api/v1/auth/verify", a.handleVerify)

	a.mux.HandleFunc("/api/v1/dashboard", a.handleDashboard)
	a.mux.HandleFunc("/api/v1/dashboard/news", a.handleNews)
	a.mux.HandleFunc("/api/v1/dashboard/calendar", a.handleCalendar)
	a.mux.HandleFunc("/api/v1/dashboard/team-status", a.handleTeamStatus)
	a.mux.HandleFunc("/api/v1/dashboard/approvals", a.handleApprovals)
	a.mux.HandleFunc("/api/v1/dashboard/low-stock", a.handleLowStock)

	a.mux.HandleFunc("/api/v1/users/deactivate", a.handleDeactivate)
	a.mux.HandleFunc("/api/v1/users/activity", a.handleActivity)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Route not found")
	})

	return a, nil
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = obs.Instrument(h)
	h = Logging(h)
	h = SecurityHeaders(h)
	h = CORS(h, a.frontendURL)
	h = MaxBodyBytes(h, 1<<20)
	h = RequestID(h)
	return h
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  "ok",
		"service": "jermis-api",
		"version": a.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"status":  "not_ready",
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	body := map[string]any{
		"success": false,
		"error":   msg,
	}
	if id := requestIDFrom(r); id != "" {
		body["requestId"] = id
	}
	writeJSON(w, code, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
}

// handleServiceError maps domain sentinels onto the wire contract. Anything
// unrecognized is a 500 with a generic message; internals never leak.
func (a *API) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, trimSentinel(err, identity.ErrInvalidInput))
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, identity.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Not found")
	case errors.Is(err, identity.ErrConflict):
		writeError(w, r, http.StatusConflict, "Already exists")
	default:
		obs.Error("request failed", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

// trimSentinel strips the wrapping sentinel prefix so the client sees only
// the human part of a validation error.
func trimSentinel(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}

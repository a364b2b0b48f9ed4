package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"kanisa.org/internal/audit"
	"kanisa.org/internal/authz"
	"kanisa.org/internal/obs"
	"kanisa.org/internal/session"
)

// ReadyProbe reports whether downstream dependencies are reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options wires the API's collaborators.
type Options struct {
	ReadyProbe ReadyProbe
	Sessions   *session.Service
	Gate       *authz.Gate
	Roles      *authz.RoleService
	Tenants    authz.TenantStore
	Registry   *authz.Registry
	Recorder   *audit.Recorder
	AuditLog   audit.QueryStore
	Version    string
	RateBurst  int
	RatePerSec int
}

// API is the HTTP layer. Every /v1 route except the auth endpoints passes
// through token validation and the authorization gate.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	sessions   *session.Service
	gate       *authz.Gate
	roles      *authz.RoleService
	tenants    authz.TenantStore
	registry   *authz.Registry
	recorder   *audit.Recorder
	auditLog   audit.QueryStore
	version    string
	rateBurst  int
	ratePerSec int
}

func New(opts Options) (*API, error) {
	if opts.Sessions == nil || opts.Gate == nil || opts.Roles == nil || opts.Tenants == nil {
		return nil, errors.New("httpapi: sessions, gate, roles and tenants are required")
	}
	if opts.Recorder == nil {
		return nil, errors.New("httpapi: audit recorder is required")
	}
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: opts.ReadyProbe,
		sessions:   opts.Sessions,
		gate:       opts.Gate,
		roles:      opts.Roles,
		tenants:    opts.Tenants,
		registry:   opts.Registry,
		recorder:   opts.Recorder,
		auditLog:   opts.AuditLog,
		version:    opts.Version,
		rateBurst:  opts.RateBurst,
		ratePerSec: opts.RatePerSec,
	}

	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /v1/auth/login", a.Login)
	a.mux.HandleFunc("POST /v1/auth/refresh", a.RefreshSession)
	a.mux.HandleFunc("POST /v1/auth/logout", a.Logout)
	a.mux.HandleFunc("GET /v1/session/capabilities", a.Capabilities)

	a.mux.HandleFunc("POST /v1/organizations", a.CreateOrganization)
	a.mux.HandleFunc("GET /v1/organizations", a.ListOrganizations)
	a.mux.HandleFunc("DELETE /v1/organizations/{id}", a.DeleteOrganization)
	a.mux.HandleFunc("POST /v1/organizations/{id}/users", a.CreateUser)
	a.mux.HandleFunc("POST /v1/organizations/{id}/roles", a.CreateRole)
	a.mux.HandleFunc("PUT /v1/roles/{id}/permissions", a.ReplaceRolePermissions)
	a.mux.HandleFunc("GET /v1/audit", a.QueryAudit)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a, nil
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = withMeta(h)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	if a.rateBurst > 0 && a.ratePerSec > 0 {
		h = RateLimit(h, a.rateBurst, a.ratePerSec)
	}
	h = Logging(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"service": "kanisa-api",
		"version": a.version,
	}
	if a.registry != nil {
		body["permissions"] = len(a.registry.Permissions())
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

// authorize runs the gate for the current request. Denials all collapse into
// the same 403 body; the internal reason goes to the audit trail only.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, target *authz.Target) (*session.Claims, bool) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	decision, err := a.gate.Authorize(r.Context(), claims.Actor(), r.Method, r.URL.Path, target)
	if err != nil {
		obs.LogEntry(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "authorize_failed",
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "authorization error")
		return nil, false
	}
	if !decision.Allowed {
		respondError(w, http.StatusForbidden, "forbidden")
		return nil, false
	}
	return claims, true
}

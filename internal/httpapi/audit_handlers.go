package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kanisa.org/internal/audit"
)

// QueryAudit reads the trail back out. Tenant actors are pinned to their own
// organization no matter what filter they submit; only HQ-scoped actors may
// query across tenants.
func (a *API) QueryAudit(w http.ResponseWriter, r *http.Request) {
	claims, ok := a.authorize(w, r, nil)
	if !ok {
		return
	}
	if a.auditLog == nil {
		respondError(w, http.StatusServiceUnavailable, "audit query unavailable")
		return
	}

	filter, err := auditFilterFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if claims.OrganizationID != "" {
		orgID := claims.OrganizationID
		filter.OrganizationID = &orgID
	}

	entries, err := a.auditLog.QueryAudit(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	exported := map[string]any{"count": len(entries)}
	if filter.Module != "" {
		exported["module"] = filter.Module
	}
	if filter.OrganizationID != nil {
		exported["organization_id"] = *filter.OrganizationID
	}
	if err := a.recordChange(r, claims, audit.ActionExport, "audit", "", nil, exported); err != nil {
		respondError(w, http.StatusInternalServerError, "audit write failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func auditFilterFromQuery(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		Module: strings.TrimSpace(q.Get("module")),
		Action: audit.Action(strings.TrimSpace(q.Get("action"))),
	}
	if raw := strings.TrimSpace(q.Get("organization_id")); raw != "" {
		filter.OrganizationID = &raw
	}
	var err error
	if filter.Since, err = parseQueryTime(q.Get("since")); err != nil {
		return audit.Filter{}, err
	}
	if filter.Until, err = parseQueryTime(q.Get("until")); err != nil {
		return audit.Filter{}, err
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return audit.Filter{}, fmt.Errorf("invalid query parameter: limit")
		}
		filter.Limit = limit
	}
	return filter, nil
}

func parseQueryTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid query parameter: since/until")
	}
	return t, nil
}

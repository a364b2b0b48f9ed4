package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"kanisa.org/internal/audit"
	"kanisa.org/internal/authz"
	"kanisa.org/internal/session"
)

type createOrganizationRequest struct {
	Name         string  `json:"name"`
	Denomination string  `json:"denomination"`
	Address      string  `json:"address"`
	Region       string  `json:"region"`
	District     string  `json:"district"`
	AccountID    string  `json:"account_id"`
	Password     string  `json:"password"`
	OrgTypeID    *string `json:"org_type_id"`
}

type createUserRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	RoleID   *string `json:"role_id"`
	Status   string  `json:"status"`
	PhotoURL string  `json:"photo_url"`
}

func (a *API) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	claims, ok := a.authorize(w, r, nil)
	if !ok {
		return
	}
	var req createOrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.AccountID = strings.TrimSpace(req.AccountID)
	if req.Name == "" || req.AccountID == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "name, account_id and password are required")
		return
	}
	hash, err := session.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "password hashing failed")
		return
	}

	org := authz.Organization{
		Name:         req.Name,
		Denomination: strings.TrimSpace(req.Denomination),
		Address:      strings.TrimSpace(req.Address),
		Region:       strings.TrimSpace(req.Region),
		District:     strings.TrimSpace(req.District),
		Status:       "active",
		AccountID:    req.AccountID,
		PasswordHash: hash,
		OrgTypeID:    req.OrgTypeID,
	}
	if claims.HeadquartersID != "" {
		hqID := claims.HeadquartersID
		org.HeadquartersID = &hqID
	}
	created, err := a.tenants.CreateOrganization(r.Context(), org)
	if err != nil {
		switch {
		case errors.Is(err, authz.ErrConflict):
			respondError(w, http.StatusConflict, "account_id already in use")
		case errors.Is(err, authz.ErrNotFound):
			respondError(w, http.StatusBadRequest, "unknown headquarters or organization type")
		default:
			respondError(w, http.StatusInternalServerError, "organization creation failed")
		}
		return
	}

	if err := a.recordChange(r, claims, audit.ActionCreate, "organization", created.ID, nil, map[string]any{
		"name":       created.Name,
		"account_id": created.AccountID,
		"status":     created.Status,
	}); err != nil {
		respondError(w, http.StatusInternalServerError, "audit write failed")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	claims, ok := a.authorize(w, r, nil)
	if !ok {
		return
	}
	var scope *string
	if claims.HeadquartersID != "" && claims.OrganizationID == "" {
		hqID := claims.HeadquartersID
		scope = &hqID
	} else if claims.OrganizationID != "" {
		// Tenant actors only ever see their own organization.
		org, err := a.tenants.GetOrganization(r.Context(), claims.OrganizationID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "organization lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"organizations": []authz.Organization{org}})
		return
	}
	orgs, err := a.tenants.ListOrganizations(r.Context(), scope)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "organization listing failed")
		return
	}
	if orgs == nil {
		orgs = []authz.Organization{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

// DeleteOrganization tears down a tenant. The schema cascades the removal to
// departments, users, tenant-scoped roles and all business records; the
// audit trail is intentionally untouched.
func (a *API) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("id")
	claims, ok := a.authorize(w, r, &authz.Target{OrganizationID: orgID})
	if !ok {
		return
	}
	org, err := a.tenants.GetOrganization(r.Context(), orgID)
	if err != nil {
		if errors.Is(err, authz.ErrNotFound) {
			respondError(w, http.StatusNotFound, "organization not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "organization lookup failed")
		return
	}
	if err := a.tenants.DeleteOrganization(r.Context(), orgID); err != nil {
		if errors.Is(err, authz.ErrNotFound) {
			respondError(w, http.StatusNotFound, "organization not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "organization deletion failed")
		return
	}

	if err := a.recordChange(r, claims, audit.ActionDelete, "organization", org.ID, map[string]any{
		"name":       org.Name,
		"account_id": org.AccountID,
		"status":     org.Status,
	}, nil); err != nil {
		respondError(w, http.StatusInternalServerError, "audit write failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (a *API) CreateUser(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("id")
	claims, ok := a.authorize(w, r, &authz.Target{OrganizationID: orgID})
	if !ok {
		return
	}
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	// Status has no default: an account is never active unless the caller
	// said so.
	status := strings.TrimSpace(req.Status)
	if status == "" {
		respondError(w, http.StatusBadRequest, "status must be set explicitly")
		return
	}
	hash, err := session.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "password hashing failed")
		return
	}

	created, err := a.tenants.CreateUser(r.Context(), authz.User{
		OrganizationID: &orgID,
		RoleID:         req.RoleID,
		Email:          req.Email,
		PasswordHash:   hash,
		Status:         status,
		PhotoURL:       strings.TrimSpace(req.PhotoURL),
	})
	if err != nil {
		switch {
		case errors.Is(err, authz.ErrConflict):
			respondError(w, http.StatusConflict, "email already in use")
		case errors.Is(err, authz.ErrNotFound):
			respondError(w, http.StatusBadRequest, "unknown organization or role")
		default:
			respondError(w, http.StatusInternalServerError, "user creation failed")
		}
		return
	}

	if err := a.recordChange(r, claims, audit.ActionCreate, "user", created.ID, nil, map[string]any{
		"email":           created.Email,
		"organization_id": orgID,
		"role_id":         req.RoleID,
		"status":          created.Status,
	}); err != nil {
		respondError(w, http.StatusInternalServerError, "audit write failed")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// recordChange writes the single audit entry for a successful change, with
// before/after values. Denied requests are recorded by the gate instead. The
// returned error is non-nil only when the recorder runs in strict mode.
func (a *API) recordChange(r *http.Request, claims *session.Claims, action audit.Action, module, recordID string, oldValues, newValues map[string]any) error {
	userID := claims.Subject
	entry := audit.Entry{
		UserID:    &userID,
		Action:    action,
		Module:    module,
		RecordID:  &recordID,
		OldValues: oldValues,
		NewValues: newValues,
	}
	if claims.OrganizationID != "" {
		orgID := claims.OrganizationID
		entry.OrganizationID = &orgID
	}
	return a.recorder.Record(r.Context(), entry)
}

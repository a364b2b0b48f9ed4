package httpapi

import (
	"errors"
	"net/http"

	"kanisa.org/internal/audit"
	"kanisa.org/internal/authz"
)

type createRoleRequest struct {
	Name         string  `json:"name"`
	DepartmentID *string `json:"department_id"`
}

type replacePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids"`
}

func (a *API) CreateRole(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("id")
	claims, ok := a.authorize(w, r, &authz.Target{OrganizationID: orgID})
	if !ok {
		return
	}
	var req createRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	role, err := a.roles.CreateRole(r.Context(), req.Name, &orgID, req.DepartmentID)
	if err != nil {
		switch {
		case errors.Is(err, authz.ErrNameConflict):
			respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, authz.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, authz.ErrNotFound):
			respondError(w, http.StatusBadRequest, "unknown organization or department")
		default:
			respondError(w, http.StatusInternalServerError, "role creation failed")
		}
		return
	}

	if err := a.recordChange(r, claims, audit.ActionCreate, "role", role.ID, nil, map[string]any{
		"name":            role.Name,
		"organization_id": orgID,
	}); err != nil {
		respondError(w, http.StatusInternalServerError, "audit write failed")
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

// ReplaceRolePermissions swaps the role's bindings for the submitted set.
// A revoke takes effect on the next authorization check; nothing is cached.
func (a *API) ReplaceRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID := r.PathValue("id")
	role, err := a.roles.GetRole(r.Context(), roleID)
	if err != nil {
		if errors.Is(err, authz.ErrNotFound) {
			// The gate still runs so the attempt lands in the audit trail.
			if _, ok := a.authorize(w, r, nil); !ok {
				return
			}
			respondError(w, http.StatusNotFound, "role not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "role lookup failed")
		return
	}

	var target *authz.Target
	if role.OrganizationID != nil {
		target = &authz.Target{OrganizationID: *role.OrganizationID}
	}
	claims, ok := a.authorize(w, r, target)
	if !ok {
		return
	}

	var req replacePermissionsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	before, err := a.roles.EffectivePermissions(r.Context(), role.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "permission lookup failed")
		return
	}
	if err := a.roles.ReplacePermissions(r.Context(), role.ID, req.PermissionIDs); err != nil {
		switch {
		case errors.Is(err, authz.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, authz.ErrNotFound):
			respondError(w, http.StatusBadRequest, "unknown permission id")
		default:
			respondError(w, http.StatusInternalServerError, "permission update failed")
		}
		return
	}
	after, err := a.roles.EffectivePermissions(r.Context(), role.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "permission lookup failed")
		return
	}

	if err := a.recordChange(r, claims, audit.ActionUpdate, "role", role.ID, map[string]any{
		"permissions": permissionNames(before),
	}, map[string]any{
		"permissions": permissionNames(after),
	}); err != nil {
		respondError(w, http.StatusInternalServerError, "audit write failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"role_id":     role.ID,
		"permissions": after,
	})
}

func permissionNames(perms []authz.Permission) []string {
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	return names
}

package httpapi

import (
	"errors"
	"net/http"

	"kanisa.org/internal/audit"
	"kanisa.org/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	pair, user, err := a.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	userID := user.ID
	_ = a.recorder.Record(r.Context(), audit.Entry{
		UserID:         &userID,
		OrganizationID: user.OrganizationID,
		Action:         audit.ActionLogin,
		Module:         "session",
		RecordID:       &userID,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"tokens": pair,
		"user": map[string]any{
			"id":              user.ID,
			"email":           user.Email,
			"role_id":         user.RoleID,
			"organization_id": user.OrganizationID,
			"headquarters_id": user.HeadquartersID,
		},
	})
}

func (a *API) RefreshSession(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	pair, err := a.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrRefreshInvalid) {
			respondError(w, http.StatusUnauthorized, "refresh token invalid")
			return
		}
		respondError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": pair})
}

// Logout revokes every refresh token held by the subject. Repeating it is
// harmless, so a client retrying after a network error sees the same 200.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := a.sessions.Logout(r.Context(), claims.Subject); err != nil {
		respondError(w, http.StatusInternalServerError, "logout failed")
		return
	}

	userID := claims.Subject
	entry := audit.Entry{
		UserID:   &userID,
		Action:   audit.ActionLogout,
		Module:   "session",
		RecordID: &userID,
	}
	if claims.OrganizationID != "" {
		orgID := claims.OrganizationID
		entry.OrganizationID = &orgID
	}
	_ = a.recorder.Record(r.Context(), entry)

	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

// Capabilities returns the caller's effective permission set. Clients fetch
// it once per session to drive route guarding.
func (a *API) Capabilities(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if claims.RoleID == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"role_id":     nil,
			"permissions": []any{},
		})
		return
	}
	perms, err := a.roles.EffectivePermissions(r.Context(), claims.RoleID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "capability lookup failed")
		return
	}
	out := make([]map[string]any, 0, len(perms))
	for _, p := range perms {
		out = append(out, map[string]any{
			"name":         p.Name,
			"http_method":  p.Method,
			"path_pattern": p.PathPattern,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"role_id":     claims.RoleID,
		"permissions": out,
	})
}

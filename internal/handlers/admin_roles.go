package handlers

import (
	"net/http"

	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/policy"
	"github.com/diewo77/go-billing/internal/services"
)

// AdminRoleHandler shows roles and edits the grants of the editable ones.
type AdminRoleHandler struct {
	users *services.UserService
	gate  *policy.AuthGate
}

func NewAdminRoleHandler(users *services.UserService, ag *policy.AuthGate) *AdminRoleHandler {
	return &AdminRoleHandler{users: users, gate: ag}
}

// List displays every role with its permissions, grouped by resource.
func (h *AdminRoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.users.Roles(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	perms, err := h.users.Permissions(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles, "permissions": perms})
		return
	}

	byResource := make(map[string][]models.Permission)
	var resources []string
	for _, p := range perms {
		if _, seen := byResource[p.ResourceType]; !seen {
			resources = append(resources, p.ResourceType)
		}
		byResource[p.ResourceType] = append(byResource[p.ResourceType], p)
	}
	granted := make(map[uint]map[string]bool, len(roles))
	for _, role := range roles {
		set := make(map[string]bool, len(role.Permissions))
		for _, p := range role.Permissions {
			set[p.Code()] = true
		}
		granted[role.ID] = set
	}
	render(w, r, "admin/roles.html", map[string]any{
		"Roles":      roles,
		"Resources":  resources,
		"ByResource": byResource,
		"Granted":    granted,
	})
}

// SavePermissions replaces the grants of a role. Roles apply to every
// company, so all cached profiles are dropped.
func (h *AdminRoleHandler) SavePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeServiceError(w, r, services.ErrNotFound)
		return
	}
	var body struct {
		Permissions []string `json:"permissions"`
	}
	if httpx.IsJSONBody(r) {
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
			return
		}
		body.Permissions = r.Form["permissions"]
	}
	role, err := h.users.SetRolePermissions(r.Context(), id, body.Permissions)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.gate.InvalidateAll()

	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, role)
		return
	}
	redirectWithFlash(w, r, "/admin/roles", "saved")
}

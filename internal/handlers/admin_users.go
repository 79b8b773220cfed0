package handlers

import (
	"net/http"
	"strings"

	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/policy"
	"github.com/diewo77/go-billing/internal/services"
)

// AdminUserHandler lets owners and admins invite members and move them
// between roles.
type AdminUserHandler struct {
	users *services.UserService
	gate  *policy.AuthGate
}

func NewAdminUserHandler(users *services.UserService, ag *policy.AuthGate) *AdminUserHandler {
	return &AdminUserHandler{users: users, gate: ag}
}

// List displays the company members with their roles.
func (h *AdminUserHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, http.StatusOK, nil, services.AccountInput{})
}

func (h *AdminUserHandler) list(w http.ResponseWriter, r *http.Request, status int, errs map[string]string, input services.AccountInput) {
	members, err := h.users.List(r.Context(), actorOf(r).CompanyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"users": members, "roles": models.Roles})
		return
	}
	renderStatus(w, r, status, "admin/users.html", map[string]any{
		"Users":  members,
		"Roles":  models.Roles,
		"Self":   actorOf(r).UserID,
		"Errors": errs,
		"Input":  input,
	})
}

// Invite creates a member account with a role.
func (h *AdminUserHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var in services.AccountInput
	if httpx.IsJSONBody(r) {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
	} else {
		in = services.AccountInput{
			Email:    r.FormValue("email"),
			Name:     r.FormValue("name"),
			Password: r.FormValue("password"),
			Role:     strings.TrimSpace(r.FormValue("role")),
		}
	}
	user, err := h.users.Invite(r.Context(), actorOf(r), in)
	if v := services.ViolationsOf(err); v != nil && !wantsJSON(r) {
		in.Password = ""
		h.list(w, r, http.StatusUnprocessableEntity, v, in)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, user)
		return
	}
	redirectWithFlash(w, r, "/admin/users", "saved")
}

// ChangeRole assigns another role to a member. The member's cached
// permissions are dropped so the change applies on the next request.
func (h *AdminUserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeServiceError(w, r, services.ErrNotFound)
		return
	}
	var body struct {
		Role string `json:"role"`
	}
	if httpx.IsJSONBody(r) {
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
	} else {
		body.Role = formString(r, "role")
	}
	user, err := h.users.ChangeRole(r.Context(), actorOf(r), id, body.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.gate.InvalidateUser(user.ID)

	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"user_id": user.ID, "role": user.Role()})
		return
	}
	redirectWithFlash(w, r, "/admin/users", "saved")
}

package handlers

import (
	"net/http"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/middleware"
	"github.com/diewo77/go-billing/internal/services"
)

type ProfileHandler struct {
	users *services.UserService
}

func NewProfileHandler(users *services.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

func (h *ProfileHandler) render(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	u, ok := middleware.MemberFrom(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	if _, set := data["Input"]; !set {
		data["Input"] = services.AccountInput{Email: u.Email, Name: u.Name}
	}
	data["Member"] = u
	renderStatus(w, r, status, "profile.html", data)
}

// Show displays the account form and the password form.
func (h *ProfileHandler) Show(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		u, ok := middleware.MemberFrom(r.Context())
		if !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		httpx.JSON(w, http.StatusOK, u)
		return
	}
	h.render(w, r, http.StatusOK, nil)
}

// Update edits the signed-in user's name and email.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.MemberFrom(r.Context())
	if !ok {
		writeServiceError(w, r, services.ErrNotFound)
		return
	}
	var in services.AccountInput
	if httpx.IsJSONBody(r) {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
	} else {
		in = services.AccountInput{Email: r.FormValue("email"), Name: r.FormValue("name")}
	}
	err := h.users.UpdateProfile(r.Context(), u, in)
	if v := services.ViolationsOf(err); v != nil && !wantsJSON(r) {
		h.render(w, r, http.StatusUnprocessableEntity, map[string]any{"Errors": v, "Input": in})
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, u)
		return
	}
	redirectWithFlash(w, r, "/profile", "saved")
}

// ChangePassword requires the current password and a confirmed new one.
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.MemberFrom(r.Context())
	if !ok {
		writeServiceError(w, r, services.ErrNotFound)
		return
	}
	var body struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
		Confirm string `json:"confirm_password"`
	}
	if httpx.IsJSONBody(r) {
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
	} else {
		body.Current = r.FormValue("current_password")
		body.New = r.FormValue("new_password")
		body.Confirm = r.FormValue("confirm_password")
	}

	actor := actorOf(r)
	if actor.UserID == 0 {
		actor.UserID = u.ID
		actor.IP = middleware.ClientIP(r)
	}
	err := h.users.ChangePassword(r.Context(), actor, body.Current, body.New, body.Confirm)
	if v := services.ViolationsOf(err); v != nil && !wantsJSON(r) {
		h.render(w, r, http.StatusUnprocessableEntity, map[string]any{"PasswordErrors": v})
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	// a fresh cookie replaces the session signed before the change
	auth.CreateSession(w, u.ID)
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	redirectWithFlash(w, r, "/profile", "password_changed")
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/services"
)

type AuthHandler struct {
	users *services.UserService
}

func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// Landing sends visitors to the login page and members to the dashboard.
func (h *AuthHandler) Landing(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeServiceError(w, r, services.ErrNotFound)
		return
	}
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// safeNext only follows local paths.
func safeNext(next string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") && !strings.HasPrefix(next, "/\\") {
		return next
	}
	return "/dashboard"
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		if _, ok := auth.UserIDFromContext(r.Context()); ok {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		render(w, r, "login.html", map[string]any{"Next": r.URL.Query().Get("next")})
		return
	}

	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if httpx.IsJSONBody(r) {
		if err := httpx.DecodeJSON(r, &creds); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
	} else {
		creds.Email = r.FormValue("email")
		creds.Password = r.FormValue("password")
	}

	user, err := h.users.Authenticate(r.Context(), creds.Email, creds.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		if wantsJSON(r) {
			httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
			return
		}
		renderStatus(w, r, http.StatusUnauthorized, "login.html", map[string]any{
			"Error": "invalid_credentials",
			"Email": creds.Email,
			"Next":  r.FormValue("next"),
		})
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	auth.CreateSession(w, user.ID)
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"id": user.ID, "email": user.Email})
		return
	}
	http.Redirect(w, r, safeNext(r.FormValue("next")), http.StatusSeeOther)
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		render(w, r, "signup.html", map[string]any{"Input": services.AccountInput{}})
		return
	}

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
		}
	}
	in.Role = ""

	user, err := h.users.Register(r.Context(), in)
	if v := services.ViolationsOf(err); v != nil && !wantsJSON(r) {
		renderStatus(w, r, http.StatusUnprocessableEntity, "signup.html", map[string]any{
			"Errors": v,
			"Input":  in,
		})
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	auth.CreateSession(w, user.ID)
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, map[string]any{"id": user.ID, "email": user.Email})
		return
	}
	redirectWithFlash(w, r, "/company/setup", "welcome")
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

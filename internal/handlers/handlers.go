// Package handlers serves the HTML pages and JSON endpoints. Handlers answer
// JSON when the client asks for it and HTML otherwise.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/diewo77/go-billing/gate"
	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/middleware"
	"github.com/diewo77/go-billing/internal/pdf"
	"github.com/diewo77/go-billing/internal/policy"
	"github.com/diewo77/go-billing/internal/services"
	"github.com/diewo77/go-billing/validation"
	"github.com/diewo77/go-billing/view"
)

const dateLayout = "2006-01-02"

// errorStatus maps domain errors to a status and an error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, services.ErrNotFound), errors.Is(err, pdf.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, gate.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, services.ErrForbidden), errors.Is(err, gate.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, services.ErrDuplicateNumber):
		return http.StatusConflict, "duplicate_number"
	case errors.Is(err, services.ErrAlreadyConfigured):
		return http.StatusConflict, "already_configured"
	case errors.Is(err, services.ErrNoCompany):
		return http.StatusConflict, "no_company"
	case errors.Is(err, pdf.ErrConversion):
		return http.StatusBadGateway, "pdf_generation_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeServiceError answers err as JSON or as the HTML error page.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	if httpx.WantsJSON(r) || httpx.IsJSONBody(r) {
		var details any
		if v := services.ViolationsOf(err); v != nil {
			details = v
		}
		httpx.JSONError(w, status, code, details)
		return
	}
	view.Error(w, r, status, code)
}

// wantsJSON covers JSON bodies as well as Accept headers.
func wantsJSON(r *http.Request) bool {
	return httpx.WantsJSON(r) || httpx.IsJSONBody(r)
}

func render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	renderStatus(w, r, http.StatusOK, name, data)
}

func renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if err := view.RenderStatus(w, r, status, name, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("render")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// actorOf returns the company member set by the member middleware.
func actorOf(r *http.Request) services.Actor {
	a, _ := policy.ActorFromContext(r.Context())
	return a
}

func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func queryPage(r *http.Request) int {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	return page
}

func formString(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

func parseDecimal(field, raw string, v validation.Violations) *decimal.Decimal {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		v.Add(field, "invalid_number")
		return nil
	}
	return &d
}

func formInt(r *http.Request, key string, v validation.Violations) *int {
	raw := formString(r, key)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		v.Add(key, "invalid_number")
		return nil
	}
	return &n
}

// redirectWithFlash finishes an HTML form post.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, to, code string) {
	if code != "" {
		middleware.Flash(w, code)
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

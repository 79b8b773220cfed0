package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/gate"
	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/middleware"
	"github.com/diewo77/go-billing/internal/policy"
	"github.com/diewo77/go-billing/internal/services"
	"github.com/diewo77/go-billing/validation"
)

type CompanyHandler struct {
	companies *services.CompanyService
	gate      *policy.AuthGate
}

func NewCompanyHandler(companies *services.CompanyService, ag *policy.AuthGate) *CompanyHandler {
	return &CompanyHandler{companies: companies, gate: ag}
}

// companyForm keeps the numeric fields as typed.
type companyForm struct {
	services.CompanyInput
	TaxRate      string
	DiscountRate string
	PaymentTerms string
}

func companyFormFrom(in services.CompanyInput) companyForm {
	return companyForm{
		CompanyInput: in,
		TaxRate:      in.DefaultTaxRate.String(),
		DiscountRate: in.DefaultDiscountRate.String(),
		PaymentTerms: strconv.Itoa(in.DefaultPaymentTerms),
	}
}

func (h *CompanyHandler) decode(w http.ResponseWriter, r *http.Request) (services.CompanyInput, companyForm, validation.Violations, bool) {
	v := validation.Violations{}
	if httpx.IsJSONBody(r) {
		var in services.CompanyInput
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return in, companyForm{}, v, false
		}
		return in, companyFormFrom(in), v, true
	}
	if err := r.ParseForm(); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return services.CompanyInput{}, companyForm{}, v, false
	}
	f := companyForm{
		CompanyInput: services.CompanyInput{
			Name:               formString(r, "name"),
			RegistrationNumber: formString(r, "registration_number"),
			TaxNumber:          formString(r, "tax_number"),
			Email:              formString(r, "email"),
			Phone:              formString(r, "phone"),
			Website:            formString(r, "website"),
			AddressLine1:       formString(r, "address_line1"),
			AddressLine2:       formString(r, "address_line2"),
			City:               formString(r, "city"),
			State:              formString(r, "state"),
			PostalCode:         formString(r, "postal_code"),
			Country:            formString(r, "country"),
			LogoURL:            formString(r, "logo_url"),
			PrimaryColor:       formString(r, "primary_color"),
			SecondaryColor:     formString(r, "secondary_color"),
			AccentColor:        formString(r, "accent_color"),
			FontFamily:         formString(r, "font_family"),
			InvoicePrefix:      formString(r, "invoice_prefix"),
			QuotePrefix:        formString(r, "quote_prefix"),
			ReceiptPrefix:      formString(r, "receipt_prefix"),
			Currency:           formString(r, "currency"),
		},
		TaxRate:      formString(r, "default_tax_rate"),
		DiscountRate: formString(r, "default_discount_rate"),
		PaymentTerms: formString(r, "default_payment_terms"),
	}
	in := f.CompanyInput
	in.DefaultTaxRate = orZero(parseDecimal("default_tax_rate", f.TaxRate, v))
	in.DefaultDiscountRate = orZero(parseDecimal("default_discount_rate", f.DiscountRate, v))
	if terms := formInt(r, "default_payment_terms", v); terms != nil {
		in.DefaultPaymentTerms = *terms
	}
	return in, f, v, true
}

// Setup creates the company of a freshly registered user.
func (h *CompanyHandler) Setup(w http.ResponseWriter, r *http.Request) {
	if _, ok := policy.ActorFromContext(r.Context()); ok {
		if wantsJSON(r) {
			httpx.JSONError(w, http.StatusConflict, "already_configured", nil)
			return
		}
		redirectWithFlash(w, r, "/dashboard", "already_configured")
		return
	}
	if r.Method == http.MethodGet {
		render(w, r, "company/form.html", map[string]any{
			"Setup": true,
			"Form":  companyForm{PaymentTerms: "30", TaxRate: "0", DiscountRate: "0"},
		})
		return
	}

	in, form, v, ok := h.decode(w, r)
	if !ok {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	var err error
	if v.Empty() {
		_, err = h.companies.Setup(r.Context(), userID, middleware.ClientIP(r), in)
		if errors.Is(err, services.ErrAlreadyConfigured) && !wantsJSON(r) {
			redirectWithFlash(w, r, "/dashboard", "already_configured")
			return
		}
	}
	if h.formFailed(w, r, form, true, v, err) {
		return
	}
	// the role changed from none to owner
	h.gate.InvalidateUser(userID)
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, map[string]any{"status": "ok"})
		return
	}
	redirectWithFlash(w, r, "/dashboard", "saved")
}

// Edit shows the company settings form.
func (h *CompanyHandler) Edit(w http.ResponseWriter, r *http.Request) {
	c, err := h.companies.Get(r.Context(), actorOf(r).CompanyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, c)
		return
	}
	render(w, r, "company/form.html", map[string]any{
		"Form":      companyFormFrom(services.CompanyInputFrom(c)),
		"CanUpdate": h.gate.CanProfile(r.Context(), gate.ActionUpdate, policy.ResourceCompany),
	})
}

// Update saves the company settings. New prefixes apply to documents
// created afterwards.
func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	c, err := h.companies.Get(r.Context(), actor.CompanyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	in, form, v, ok := h.decode(w, r)
	if !ok {
		return
	}
	if v.Empty() {
		err = h.companies.Update(r.Context(), actor, c, in)
	}
	if h.formFailed(w, r, form, false, v, err) {
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, c)
		return
	}
	redirectWithFlash(w, r, "/settings", "saved")
}

func (h *CompanyHandler) formFailed(w http.ResponseWriter, r *http.Request, form companyForm, setup bool, v validation.Violations, err error) bool {
	v.Merge(services.ViolationsOf(err))
	if v.Empty() && err != nil {
		writeServiceError(w, r, err)
		return true
	}
	if v.Empty() {
		return false
	}
	if wantsJSON(r) {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", v)
		return true
	}
	renderStatus(w, r, http.StatusUnprocessableEntity, "company/form.html", map[string]any{
		"Setup":     setup,
		"Form":      form,
		"Errors":    v,
		"CanUpdate": true,
	})
	return true
}

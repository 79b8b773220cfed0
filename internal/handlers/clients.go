package handlers

import (
	"net/http"
	"strconv"

	"github.com/diewo77/go-billing/gate"
	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/policy"
	"github.com/diewo77/go-billing/internal/services"
	"github.com/diewo77/go-billing/validation"
	"github.com/diewo77/go-billing/view"
)

type ClientHandler struct {
	clients *services.ClientService
	gate    *policy.AuthGate
}

func NewClientHandler(clients *services.ClientService, ag *policy.AuthGate) *ClientHandler {
	return &ClientHandler{clients: clients, gate: ag}
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	query := r.URL.Query().Get("q")
	page := queryPage(r)

	clients, total, err := h.clients.List(r.Context(), actor.CompanyID, services.ClientFilter{Query: query, Page: page})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"clients": clients, "total": total, "page": page})
		return
	}
	render(w, r, "clients/index.html", map[string]any{
		"Clients": clients,
		"Query":   query,
		"Page":    view.NewPage(r, page, services.PageSize, total),
	})
}

func (h *ClientHandler) New(w http.ResponseWriter, r *http.Request) {
	render(w, r, "clients/form.html", map[string]any{"Client": clientForm{}})
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, form, v, ok := h.decode(w, r)
	if !ok {
		return
	}
	var err error
	var c *models.Client
	if v.Empty() {
		c, err = h.clients.Create(r.Context(), actorOf(r), in)
	}
	if h.formFailed(w, r, form, 0, v, err) {
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, c)
		return
	}
	redirectWithFlash(w, r, "/clients/"+strconv.FormatUint(uint64(c.ID), 10), "saved")
}

// load fetches a company client and applies the record policy.
func (h *ClientHandler) load(w http.ResponseWriter, r *http.Request, action gate.Action) (*models.Client, bool) {
	id, ok := pathID(r)
	if !ok {
		writeServiceError(w, r, services.ErrNotFound)
		return nil, false
	}
	c, err := h.clients.Get(r.Context(), actorOf(r).CompanyID, id)
	if err == nil {
		err = h.gate.Authorize(r.Context(), action, policy.ResourceClient, c)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	return c, true
}

func (h *ClientHandler) View(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r, gate.ActionView)
	if !ok {
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, c)
		return
	}
	render(w, r, "clients/view.html", map[string]any{
		"Client":    c,
		"CanEdit":   h.gate.Can(r.Context(), gate.ActionUpdate, policy.ResourceClient, c),
		"CanDelete": h.gate.Can(r.Context(), gate.ActionDelete, policy.ResourceClient, c),
	})
}

func (h *ClientHandler) Edit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r, gate.ActionUpdate)
	if !ok {
		return
	}
	render(w, r, "clients/form.html", map[string]any{
		"ID":     c.ID,
		"IsEdit": true,
		"Client": clientFormFrom(c),
	})
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r, gate.ActionUpdate)
	if !ok {
		return
	}
	in, form, v, ok := h.decode(w, r)
	if !ok {
		return
	}
	var err error
	if v.Empty() {
		err = h.clients.Update(r.Context(), actorOf(r), c, in)
	}
	if h.formFailed(w, r, form, c.ID, v, err) {
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, c)
		return
	}
	redirectWithFlash(w, r, "/clients/"+strconv.FormatUint(uint64(c.ID), 10), "saved")
}

func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r, gate.ActionDelete)
	if !ok {
		return
	}
	if err := h.clients.Delete(r.Context(), actorOf(r), c); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	redirectWithFlash(w, r, "/clients", "deleted")
}

// decode reads a JSON body or the HTML form. Parse errors of the form are
// returned as violations.
func (h *ClientHandler) decode(w http.ResponseWriter, r *http.Request) (services.ClientInput, clientForm, validation.Violations, bool) {
	v := validation.Violations{}
	if httpx.IsJSONBody(r) {
		var in services.ClientInput
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return in, clientForm{}, v, false
		}
		return in, clientForm{}, v, true
	}
	if err := r.ParseForm(); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return services.ClientInput{}, clientForm{}, v, false
	}
	form := clientFormFromRequest(r)
	return form.input(v), form, v, true
}

// formFailed renders the form again on violations and reports whether the
// request is finished.
func (h *ClientHandler) formFailed(w http.ResponseWriter, r *http.Request, form clientForm, id uint, v validation.Violations, err error) bool {
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
	renderStatus(w, r, http.StatusUnprocessableEntity, "clients/form.html", map[string]any{
		"ID":     id,
		"IsEdit": id != 0,
		"Client": form,
		"Errors": v,
	})
	return true
}

// clientForm keeps the raw form strings so a rejected form is shown as typed.
type clientForm struct {
	Name, Email, Phone, CompanyName                 string
	AddressLine1, AddressLine2, City, State         string
	PostalCode, Country, TaxNumber, Notes, Currency string
	TaxRate                                         string
}

func clientFormFromRequest(r *http.Request) clientForm {
	return clientForm{
		Name: formString(r, "name"), Email: formString(r, "email"), Phone: formString(r, "phone"),
		CompanyName: formString(r, "company_name"), AddressLine1: formString(r, "address_line1"),
		AddressLine2: formString(r, "address_line2"), City: formString(r, "city"), State: formString(r, "state"),
		PostalCode: formString(r, "postal_code"), Country: formString(r, "country"),
		TaxNumber: formString(r, "tax_number"), Notes: r.FormValue("notes"),
		Currency: formString(r, "currency"), TaxRate: formString(r, "tax_rate"),
	}
}

func clientFormFrom(c *models.Client) clientForm {
	f := clientForm{
		Name: c.Name, Email: c.Email, Phone: c.Phone, CompanyName: c.CompanyName,
		AddressLine1: c.AddressLine1, AddressLine2: c.AddressLine2, City: c.City, State: c.State,
		PostalCode: c.PostalCode, Country: c.Country, TaxNumber: c.TaxNumber, Notes: c.Notes,
		Currency: c.Currency,
	}
	if c.TaxRate.Valid {
		f.TaxRate = c.TaxRate.Decimal.String()
	}
	return f
}

func (f clientForm) input(v validation.Violations) services.ClientInput {
	return services.ClientInput{
		Name: f.Name, Email: f.Email, Phone: f.Phone, CompanyName: f.CompanyName,
		AddressLine1: f.AddressLine1, AddressLine2: f.AddressLine2, City: f.City, State: f.State,
		PostalCode: f.PostalCode, Country: f.Country, TaxNumber: f.TaxNumber, Notes: f.Notes,
		Currency: f.Currency, TaxRate: parseDecimal("tax_rate", f.TaxRate, v),
	}
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/diewo77/go-billing/gate"
	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/policy"
	"github.com/diewo77/go-billing/internal/services"
	"github.com/diewo77/go-billing/validation"
	"github.com/diewo77/go-billing/view"
)

// DocumentHandler serves one document kind. The three kinds share pages and
// differ only in their kind specific fields.
type DocumentHandler struct {
	kind      models.Kind
	docs      *services.DocumentService
	clients   *services.ClientService
	companies *services.CompanyService
	snapshots *services.SnapshotService
	gate      *policy.AuthGate
}

func NewDocumentHandler(kind models.Kind, docs *services.DocumentService, clients *services.ClientService,
	companies *services.CompanyService, snapshots *services.SnapshotService, ag *policy.AuthGate) *DocumentHandler {
	return &DocumentHandler{kind: kind, docs: docs, clients: clients, companies: companies, snapshots: snapshots, gate: ag}
}

func (h *DocumentHandler) Kind() models.Kind { return h.kind }

func (h *DocumentHandler) base() string { return "/" + h.kind.Plural() }

func (h *DocumentHandler) url(id uint) string { return fmt.Sprintf("%s/%d", h.base(), id) }

// docRow pairs a document with its computed totals for list and view pages.
type docRow struct {
	Record models.Record
	Doc    *models.Document
	Totals services.Totals
}

func rowOf(rec models.Record) docRow {
	return docRow{Record: rec, Doc: rec.Doc(), Totals: services.TotalsOf(rec)}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	q := r.URL.Query()
	f := services.DocumentFilter{
		Query:     q.Get("q"),
		Page:      queryPage(r),
		CreatedBy: policy.OwnDocumentsOnly(actor),
	}
	if st := models.Status(q.Get("status")); st != "" {
		for _, s := range h.kind.Statuses() {
			if s == st {
				f.Status = st
			}
		}
	}

	recs, total, err := h.docs.List(r.Context(), actor.CompanyID, h.kind, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rows := make([]docRow, len(recs))
	for i, rec := range recs {
		rows[i] = rowOf(rec)
	}
	if wantsJSON(r) {
		type item struct {
			Document models.Record   `json:"document"`
			Totals   services.Totals `json:"totals"`
		}
		out := make([]item, len(rows))
		for i, row := range rows {
			out[i] = item{Document: row.Record, Totals: row.Totals}
		}
		httpx.JSON(w, http.StatusOK, map[string]any{h.kind.Plural(): out, "total": total, "page": f.Page})
		return
	}
	render(w, r, "documents/index.html", map[string]any{
		"Kind":     h.kind,
		"Base":     h.base(),
		"Rows":     rows,
		"Query":    f.Query,
		"Status":   string(f.Status),
		"Statuses": h.kind.Statuses(),
		"Page":     view.NewPage(r, f.Page, services.PageSize, total),
	})
}

// load fetches a document of the actor's company and applies the record
// policy. Documents of other companies are not found.
func (h *DocumentHandler) load(w http.ResponseWriter, r *http.Request, action gate.Action) (models.Record, bool) {
	id, ok := pathID(r)
	if !ok {
		writeServiceError(w, r, services.ErrNotFound)
		return nil, false
	}
	rec, err := h.docs.Get(r.Context(), actorOf(r).CompanyID, h.kind, id)
	if err == nil {
		err = h.gate.Authorize(r.Context(), action, string(h.kind), rec)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	return rec, true
}

// nextStatuses lists the statuses reachable from the current one.
func nextStatuses(rec models.Record) []models.Status {
	var out []models.Status
	from := rec.Doc().Status
	for _, s := range rec.Kind().Statuses() {
		if rec.Kind().CanTransition(from, s) {
			out = append(out, s)
		}
	}
	return out
}

func (h *DocumentHandler) View(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.load(w, r, gate.ActionView)
	if !ok {
		return
	}
	row := rowOf(rec)
	data := map[string]any{
		"Kind":      h.kind,
		"Base":      h.base(),
		"Row":       row,
		"Next":      nextStatuses(rec),
		"CanEdit":   h.gate.Can(r.Context(), gate.ActionUpdate, string(h.kind), rec),
		"CanDelete": h.gate.Can(r.Context(), gate.ActionDelete, string(h.kind), rec),
		"CanStatus": h.gate.Can(r.Context(), gate.ActionUpdate, string(h.kind), rec),
		"CanPDF":    h.gate.Can(r.Context(), gate.ActionGenerate, policy.ResourcePDF, rec),
	}
	if inv, ok := rec.(*models.Invoice); ok {
		paid, err := h.docs.Paid(r.Context(), inv)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		data["Paid"] = paid
		data["Balance"] = decimal.Max(row.Totals.Total.Sub(paid), decimal.Zero)
	}
	if wantsJSON(r) {
		out := map[string]any{"document": rec, "totals": row.Totals}
		if paid, ok := data["Paid"]; ok {
			out["amount_paid"] = paid
			out["balance"] = data["Balance"]
		}
		httpx.JSON(w, http.StatusOK, out)
		return
	}
	render(w, r, "documents/view.html", data)
}

func (h *DocumentHandler) New(w http.ResponseWriter, r *http.Request) {
	form := docForm{Items: []itemForm{{Quantity: "1"}}}
	if id := r.URL.Query().Get("client_id"); id != "" {
		form.ClientID = id
	}
	h.renderForm(w, r, http.StatusOK, form, 0, nil)
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, form, v, ok := h.decode(w, r)
	if !ok {
		return
	}
	var rec models.Record
	var err error
	if v.Empty() {
		rec, err = h.docs.Create(r.Context(), actorOf(r), h.kind, in)
	}
	if h.formFailed(w, r, form, 0, v, err) {
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, map[string]any{"document": rec, "totals": services.TotalsOf(rec)})
		return
	}
	redirectWithFlash(w, r, h.url(rec.Doc().ID), "saved")
}

func (h *DocumentHandler) Edit(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.load(w, r, gate.ActionUpdate)
	if !ok {
		return
	}
	h.renderForm(w, r, http.StatusOK, docFormFrom(rec), rec.Doc().ID, nil)
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.load(w, r, gate.ActionUpdate)
	if !ok {
		return
	}
	in, form, v, ok := h.decode(w, r)
	if !ok {
		return
	}
	var err error
	if v.Empty() {
		err = h.docs.Update(r.Context(), actorOf(r), rec, in)
	}
	if h.formFailed(w, r, form, rec.Doc().ID, v, err) {
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"document": rec, "totals": services.TotalsOf(rec)})
		return
	}
	redirectWithFlash(w, r, h.url(rec.Doc().ID), "saved")
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.load(w, r, gate.ActionDelete)
	if !ok {
		return
	}
	if err := h.docs.Delete(r.Context(), actorOf(r), rec); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	redirectWithFlash(w, r, h.base(), "deleted")
}

// Status applies a workflow transition.
func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.load(w, r, gate.ActionUpdate)
	if !ok {
		return
	}
	var body struct {
		Status models.Status `json:"status"`
	}
	if httpx.IsJSONBody(r) {
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
	} else {
		body.Status = models.Status(formString(r, "status"))
	}
	if err := h.docs.ChangeStatus(r.Context(), actorOf(r), rec, body.Status); err != nil {
		if errors.Is(err, services.ErrInvalidTransition) && !wantsJSON(r) {
			redirectWithFlash(w, r, h.url(rec.Doc().ID), "invalid_transition")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"id": rec.Doc().ID, "status": rec.Doc().Status})
		return
	}
	redirectWithFlash(w, r, h.url(rec.Doc().ID), "saved")
}

// Lock freezes the document without rendering a PDF.
func (h *DocumentHandler) Lock(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.load(w, r, gate.ActionView)
	if !ok {
		return
	}
	if err := h.gate.Authorize(r.Context(), gate.ActionGenerate, policy.ResourcePDF, rec); err != nil {
		writeServiceError(w, r, err)
		return
	}
	actor := actorOf(r)
	company, err := h.companies.Get(r.Context(), actor.CompanyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if _, err := h.snapshots.Lock(r.Context(), actor, company, rec); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"id": rec.Doc().ID, "locked_at": rec.Doc().LockedAt})
		return
	}
	redirectWithFlash(w, r, h.url(rec.Doc().ID), "saved")
}

func (h *DocumentHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, form docForm, id uint, errs validation.Violations) {
	actor := actorOf(r)
	clients, err := h.clients.All(r.Context(), actor.CompanyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	data := map[string]any{
		"Kind":    h.kind,
		"Base":    h.base(),
		"ID":      id,
		"IsEdit":  id != 0,
		"Form":    form,
		"Clients": clients,
		"Errors":  errs,
	}
	if h.kind == models.KindReceipt {
		invoices, err := h.docs.PayableInvoices(r.Context(), actor.CompanyID, 0)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		data["Invoices"] = invoices
		data["PaymentMethods"] = models.PaymentMethods
	}
	renderStatus(w, r, status, "documents/form.html", data)
}

func (h *DocumentHandler) decode(w http.ResponseWriter, r *http.Request) (services.DocumentInput, docForm, validation.Violations, bool) {
	v := validation.Violations{}
	if httpx.IsJSONBody(r) {
		var in services.DocumentInput
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return in, docForm{}, v, false
		}
		return in, docForm{}, v, true
	}
	if err := r.ParseForm(); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return services.DocumentInput{}, docForm{}, v, false
	}
	form := docFormFromRequest(r)
	return form.input(v), form, v, true
}

func (h *DocumentHandler) formFailed(w http.ResponseWriter, r *http.Request, form docForm, id uint, v validation.Violations, err error) bool {
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
	h.renderForm(w, r, http.StatusUnprocessableEntity, form, id, v)
	return true
}

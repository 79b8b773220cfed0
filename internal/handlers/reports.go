package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/policy"
	"github.com/diewo77/go-billing/internal/services"
	"github.com/diewo77/go-billing/view"
)

type ReportHandler struct {
	docs  *services.DocumentService
	audit *services.AuditService
}

func NewReportHandler(docs *services.DocumentService, audit *services.AuditService) *ReportHandler {
	return &ReportHandler{docs: docs, audit: audit}
}

// Invoices exports the invoices as a spreadsheet. The status and q filters
// of the invoice list apply.
func (h *ReportHandler) Invoices(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	q := r.URL.Query()
	invoices, err := h.docs.Export(r.Context(), actor.CompanyID, models.KindInvoice, services.DocumentFilter{
		Status:    models.Status(q.Get("status")),
		Query:     q.Get("q"),
		CreatedBy: policy.OwnDocumentsOnly(actor),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	f, err := services.InvoiceWorkbook(invoices)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	if err := f.Write(w); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("write invoice report")
		return
	}
	zerolog.Ctx(r.Context()).Info().Int("rows", len(invoices)).Msg("invoice report exported")
}

// Audit lists the company's audit entries.
func (h *ReportHandler) Audit(w http.ResponseWriter, r *http.Request) {
	page := queryPage(r)
	entries, total, err := h.audit.List(r.Context(), actorOf(r).CompanyID, page)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries, "total": total, "page": page})
		return
	}
	render(w, r, "audit/index.html", map[string]any{
		"Entries": entries,
		"Page":    view.NewPage(r, page, services.AuditPageSize, total),
	})
}

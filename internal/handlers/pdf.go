package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/diewo77/go-billing/gate"
	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/pdf"
	"github.com/diewo77/go-billing/internal/policy"
	"github.com/diewo77/go-billing/internal/services"
)

type PDFHandler struct {
	pdfs      *pdf.Service
	docs      *services.DocumentService
	companies *services.CompanyService
	gate      *policy.AuthGate
}

func NewPDFHandler(pdfs *pdf.Service, docs *services.DocumentService, companies *services.CompanyService, ag *policy.AuthGate) *PDFHandler {
	return &PDFHandler{pdfs: pdfs, docs: docs, companies: companies, gate: ag}
}

// Generate locks the document, renders its PDF and hands out a download
// token. Browsers are redirected straight to the download.
func (h *PDFHandler) Generate(w http.ResponseWriter, r *http.Request) {
	kind, ok := models.ParseKind(r.PathValue("type"))
	if !ok {
		writeServiceError(w, r, services.ErrNotFound)
		return
	}
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeServiceError(w, r, services.ErrNotFound)
		return
	}
	actor := actorOf(r)
	rec, err := h.docs.Get(r.Context(), actor.CompanyID, kind, uint(id))
	if err == nil {
		err = h.gate.Authorize(r.Context(), gate.ActionGenerate, policy.ResourcePDF, rec)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	company, err := h.companies.Get(r.Context(), actor.CompanyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	entry, err := h.pdfs.Generate(r.Context(), actor, company, rec)
	if errors.Is(err, pdf.ErrConversion) && !wantsJSON(r) {
		redirectWithFlash(w, r, fmt.Sprintf("/%s/%d", kind.Plural(), id), "pdf_generation_failed")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	url := "/download/" + entry.DownloadToken + "/"
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"download_url": url,
			"token":        entry.DownloadToken,
			"expires_at":   entry.ExpiresAt,
		})
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// Download serves a stored PDF. Unknown, expired and foreign tokens all
// answer 404.
func (h *PDFHandler) Download(w http.ResponseWriter, r *http.Request) {
	dl, err := h.pdfs.Open(r.Context(), r.PathValue("token"), actorOf(r).CompanyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Content)))
	w.Header().Set("Cache-Control", "private, no-store")
	_, _ = w.Write(dl.Content)
}

package handlers

import (
	"net/http"

	"github.com/diewo77/go-billing/gate"
	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/policy"
	"github.com/diewo77/go-billing/internal/services"
)

type DashboardHandler struct {
	stats   *services.StatsService
	docs    *services.DocumentService
	clients *services.ClientService
	gate    *policy.AuthGate
}

func NewDashboardHandler(stats *services.StatsService, docs *services.DocumentService, clients *services.ClientService, ag *policy.AuthGate) *DashboardHandler {
	return &DashboardHandler{stats: stats, docs: docs, clients: clients, gate: ag}
}

// recentBlock is one "latest documents" panel.
type recentBlock struct {
	Kind models.Kind
	Rows []docRow
}

// Show renders the company figures and the latest documents of each kind the
// user may list.
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	st, err := h.stats.Compute(r.Context(), actor.CompanyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var blocks []recentBlock
	for _, kind := range models.Kinds {
		if !h.gate.CanProfile(r.Context(), gate.ActionList, string(kind)) {
			continue
		}
		recs, err := h.docs.Recent(r.Context(), actor.CompanyID, kind, policy.OwnDocumentsOnly(actor), services.RecentCount)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		b := recentBlock{Kind: kind}
		for _, rec := range recs {
			b.Rows = append(b.Rows, rowOf(rec))
		}
		blocks = append(blocks, b)
	}
	render(w, r, "dashboard.html", map[string]any{
		"Stats":  st,
		"Recent": blocks,
	})
}

// Stats is the JSON form of the dashboard figures.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.Compute(r.Context(), actorOf(r).CompanyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

type apiClient struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

// Clients lists the company clients for pickers.
func (h *DashboardHandler) Clients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.All(r.Context(), actorOf(r).CompanyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]apiClient, len(clients))
	for i, c := range clients {
		out[i] = apiClient{ID: c.ID, Name: c.Name, Email: c.Email, Company: c.CompanyName}
	}
	httpx.JSON(w, http.StatusOK, out)
}

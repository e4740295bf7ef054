package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/ecoconnect/internal/impact"
	"github.com/erazemk/ecoconnect/internal/model"
	"github.com/erazemk/ecoconnect/internal/store"
)

// StatsHandler handles platform impact statistics.
type StatsHandler struct {
	DB *sql.DB
}

type statsResponse struct {
	impact.Stats
	ActiveUsers int                `json:"active_users"`
	Equivalents impact.Equivalents `json:"equivalents"`
}

// Stats handles GET /api/stats.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListAllItems(r.Context(), h.DB)
	if err != nil {
		writeError(w, r, err)
		return
	}
	users, err := store.CountUsers(r.Context(), h.DB)
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats := impact.ComputeStats(items)
	jsonResponse(w, http.StatusOK, statsResponse{
		Stats:       stats,
		ActiveUsers: users,
		Equivalents: impact.EquivalentsFor(stats.TotalCO2),
	})
}

// Estimate handles GET /api/impact/estimate.
func (h *StatsHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category, condition := q.Get("category"), q.Get("condition")
	if !model.ValidCategory(category) {
		jsonError(w, http.StatusBadRequest, "invalid category")
		return
	}
	if !model.ValidCondition(condition) {
		jsonError(w, http.StatusBadRequest, "invalid condition")
		return
	}
	jsonResponse(w, http.StatusOK, impact.Breakdown(category, condition, q.Get("title")))
}

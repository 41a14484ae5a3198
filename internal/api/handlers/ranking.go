package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/pkg/logger"
)

// RankingHandler serves the Tier-3 enhanced records
type RankingHandler struct {
	pipeline Pipeline
	logger   *logger.Logger
}

// NewRankingHandler creates a new ranking handler
func NewRankingHandler(p Pipeline, log *logger.Logger) *RankingHandler {
	return &RankingHandler{
		pipeline: p,
		logger:   log,
	}
}

// GetRecords returns ranked records, scored first
// GET /api/records?limit=N
func (h *RankingHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	limit, ok := intQuery(r, "limit", 0)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	records, err := h.pipeline.Records(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list records")
		respondError(w, http.StatusInternalServerError, "Failed to list records")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"records": records,
	})
}

// GetRecord returns the full breakdown of one symbol
// GET /api/records/{symbol}
func (h *RankingHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	rec, err := h.pipeline.Record(r.Context(), symbol)
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No record for "+symbol)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to get record")
		respondError(w, http.StatusInternalServerError, "Failed to get record")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// ExportCSV streams the ranked records as CSV
// GET /api/records/export.csv?top=N
func (h *RankingHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	top, ok := intQuery(r, "top", 0)
	if !ok {
		respondError(w, http.StatusBadRequest, "top must be a positive integer")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "dip_candidates.csv"))
	if _, err := h.pipeline.Export(r.Context(), w, top); err != nil {
		h.logger.WithError(err).Error("Failed to export records")
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/pkg/logger"
)

// ListHandler serves the Tier-1 and Tier-2 snapshots
type ListHandler struct {
	pipeline   Pipeline
	defaultTop int
	logger     *logger.Logger
}

// NewListHandler creates a new list handler
func NewListHandler(p Pipeline, defaultTop int, log *logger.Logger) *ListHandler {
	return &ListHandler{
		pipeline:   p,
		defaultTop: defaultTop,
		logger:     log,
	}
}

// GetMasterList returns the latest master list
// GET /api/lists/master
func (h *ListHandler) GetMasterList(w http.ResponseWriter, r *http.Request) {
	v, err := h.pipeline.MasterList(r.Context())
	if errors.Is(err, contracts.ErrNoMasterList) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load master list")
		respondError(w, http.StatusInternalServerError, "Failed to load master list")
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// GetScreeningList returns the latest top-N screening list
// GET /api/lists/screening?top=N
func (h *ListHandler) GetScreeningList(w http.ResponseWriter, r *http.Request) {
	top, ok := intQuery(r, "top", h.defaultTop)
	if !ok {
		respondError(w, http.StatusBadRequest, "top must be a positive integer")
		return
	}

	v, err := h.pipeline.ScreeningList(r.Context(), top)
	if errors.Is(err, contracts.ErrNoScreeningList) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load screening list")
		respondError(w, http.StatusInternalServerError, "Failed to load screening list")
		return
	}
	respondJSON(w, http.StatusOK, v)
}

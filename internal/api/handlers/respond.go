package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/wonny/dipscreener/internal/brain"
	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/scoringparams"
)

// Pipeline is the part of brain.Orchestrator the API drives
type Pipeline interface {
	BuildMasterList(ctx context.Context, req brain.BuildRequest) (*contracts.MasterListVersion, contracts.Outcome, error)
	Screen(ctx context.Context, top int, force bool) (*contracts.ScreeningListVersion, contracts.Outcome, error)
	DeepAnalyze(ctx context.Context, top int, params *scoringparams.Params) (*contracts.RunSummary, contracts.Outcome, error)
	Status(ctx context.Context, top int) (*brain.StatusReport, error)
	Records(ctx context.Context, limit int) ([]contracts.EnhancedRecord, error)
	Record(ctx context.Context, symbol string) (*contracts.EnhancedRecord, error)
	MasterList(ctx context.Context) (*contracts.MasterListVersion, error)
	ScreeningList(ctx context.Context, top int) (*contracts.ScreeningListVersion, error)
	Export(ctx context.Context, w io.Writer, top int) (int, error)
}

var _ Pipeline = (*brain.Orchestrator)(nil)

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// intQuery reads a positive integer query parameter, falling back to def
func intQuery(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/dipscreener/internal/brain"
	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/pkg/logger"
)

// Trigger is one stage run started over HTTP
type Trigger struct {
	ID         uuid.UUID   `json:"id"`
	Stage      string      `json:"stage"`
	Top        int         `json:"top,omitempty"`
	Force      bool        `json:"force,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Outcome    string      `json:"outcome,omitempty"`
	Error      string      `json:"error,omitempty"`
	Result     interface{} `json:"result,omitempty"`
}

// PipelineHandler serves status and starts tier runs in the background.
// One trigger runs at a time; the others are refused with 409.
// ⭐ SSOT: pipeline API handlers live here only
type PipelineHandler struct {
	pipeline   Pipeline
	base       context.Context
	defaultTop int
	logger     *logger.Logger

	mu       sync.Mutex
	running  *Trigger
	triggers map[uuid.UUID]*Trigger
	wg       sync.WaitGroup
}

// NewPipelineHandler creates a new pipeline handler. Triggered runs inherit
// base, so cancelling it interrupts them.
func NewPipelineHandler(base context.Context, p Pipeline, defaultTop int, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{
		pipeline:   p,
		base:       base,
		defaultTop: defaultTop,
		logger:     log,
		triggers:   make(map[uuid.UUID]*Trigger),
	}
}

// GetStatus returns tier freshness and the next action
// GET /api/status?top=N
func (h *PipelineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	top, ok := intQuery(r, "top", h.defaultTop)
	if !ok {
		respondError(w, http.StatusBadRequest, "top must be a positive integer")
		return
	}

	report, err := h.pipeline.Status(r.Context(), top)
	if err != nil {
		h.logger.WithError(err).Error("Failed to build status")
		respondError(w, http.StatusInternalServerError, "Failed to build status")
		return
	}

	h.mu.Lock()
	var running *Trigger
	if h.running != nil {
		t := *h.running
		running = &t
	}
	h.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  report,
		"running": running,
	})
}

// TriggerStage starts a tier run
// POST /api/triggers/{stage}?top=N&force=true
// stage: master-list | screen | deep-analyze
func (h *PipelineHandler) TriggerStage(w http.ResponseWriter, r *http.Request) {
	stage := mux.Vars(r)["stage"]
	top, ok := intQuery(r, "top", h.defaultTop)
	if !ok {
		respondError(w, http.StatusBadRequest, "top must be a positive integer")
		return
	}
	force := r.URL.Query().Get("force") == "true"

	var run func(ctx context.Context) (interface{}, contracts.Outcome, error)
	switch stage {
	case "master-list":
		run = func(ctx context.Context) (interface{}, contracts.Outcome, error) {
			v, outcome, err := h.pipeline.BuildMasterList(ctx, brain.BuildRequest{Force: force})
			if v == nil {
				return nil, outcome, err
			}
			return map[string]interface{}{"version_id": v.VersionID, "entries": v.Count()}, outcome, err
		}
	case "screen":
		run = func(ctx context.Context) (interface{}, contracts.Outcome, error) {
			v, outcome, err := h.pipeline.Screen(ctx, top, force)
			if v == nil {
				return nil, outcome, err
			}
			return map[string]interface{}{"version_id": v.VersionID, "entries": len(v.Entries)}, outcome, err
		}
	case "deep-analyze":
		run = func(ctx context.Context) (interface{}, contracts.Outcome, error) {
			return h.pipeline.DeepAnalyze(ctx, top, nil)
		}
	default:
		respondError(w, http.StatusBadRequest, "Invalid stage (valid: master-list, screen, deep-analyze)")
		return
	}

	t, err := h.start(stage, top, force, run)
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, t)
}

// GetTrigger returns one trigger
// GET /api/triggers/{id}
func (h *PipelineHandler) GetTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid trigger id")
		return
	}

	h.mu.Lock()
	t, ok := h.triggers[id]
	var out Trigger
	if ok {
		out = *t
	}
	h.mu.Unlock()

	if !ok {
		respondError(w, http.StatusNotFound, "Trigger not found")
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// Wait blocks until every triggered run has returned
func (h *PipelineHandler) Wait() {
	h.wg.Wait()
}

func (h *PipelineHandler) start(stage string, top int, force bool, run func(ctx context.Context) (interface{}, contracts.Outcome, error)) (Trigger, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running != nil {
		return Trigger{}, fmt.Errorf("%s is already running (trigger %s)", h.running.Stage, h.running.ID)
	}

	t := &Trigger{ID: uuid.New(), Stage: stage, Top: top, Force: force, StartedAt: time.Now()}
	h.running = t
	h.triggers[t.ID] = t

	h.logger.WithFields(map[string]interface{}{
		"trigger": t.ID.String(),
		"stage":   stage,
		"top":     top,
		"force":   force,
	}).Info("Stage triggered")

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		result, outcome, err := run(h.base)
		h.finish(t, result, outcome, err)
	}()

	return *t, nil
}

func (h *PipelineHandler) finish(t *Trigger, result interface{}, outcome contracts.Outcome, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	t.FinishedAt = &now
	t.Outcome = outcome.String()
	t.Result = result
	if err != nil {
		t.Error = err.Error()
		if !errors.Is(err, context.Canceled) {
			h.logger.WithError(err).WithField("stage", t.Stage).Error("Triggered stage failed")
		}
	}
	h.running = nil
}

package contracts

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle of one deep-analysis run
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunInterrupted RunStatus = "interrupted"
	RunCompleted   RunStatus = "completed"
)

// SymbolState is the persisted per-symbol state machine:
// pending → fetching → fetched → {scored | excluded | failed}
type SymbolState string

const (
	StatePending  SymbolState = "pending"
	StateFetching SymbolState = "fetching"
	StateFetched  SymbolState = "fetched"
	StateScored   SymbolState = "scored"
	StateExcluded SymbolState = "excluded"
	StateFailed   SymbolState = "failed"
)

// Terminal reports whether the symbol needs no further work in its run
func (s SymbolState) Terminal() bool {
	return s == StateScored || s == StateExcluded || s == StateFailed
}

// AnalysisRun pins one Tier-3 run to its inputs
type AnalysisRun struct {
	RunID              uuid.UUID   `json:"run_id"`
	ScreeningVersionID uuid.UUID   `json:"screening_version_id"`
	ParamsHash         string      `json:"params_hash"`
	Status             RunStatus   `json:"status"`
	StartedAt          time.Time   `json:"started_at"`
	FinishedAt         *time.Time  `json:"finished_at,omitempty"`
	Summary            *RunSummary `json:"summary,omitempty"`
}

// SymbolProgress is one row of a run's state table
type SymbolProgress struct {
	Symbol     string      `json:"symbol"`
	State      SymbolState `json:"state"`
	Reason     string      `json:"reason,omitempty"`
	DataIssues []string    `json:"data_issues,omitempty"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// RunSummary enumerates what happened to every symbol of a run
type RunSummary struct {
	RunID               uuid.UUID `json:"run_id"`
	Total               int       `json:"total"`
	Scored              int       `json:"scored"`
	ExcludedGate        int       `json:"excluded_gate"`
	ExcludedBlackout    int       `json:"excluded_blackout"`
	ExcludedUnsupported int       `json:"excluded_unsupported"`
	Failed              int       `json:"failed"`
	Pending             int       `json:"pending"`
	DataIssues          int       `json:"data_issues"`
	Calls               int64     `json:"calls"`
	Resumed             bool      `json:"resumed"`
	Interrupted         bool      `json:"interrupted"`
}

// Outcome classifies the summary for exit codes
func (s RunSummary) Outcome() Outcome {
	attempted := s.Total - s.Pending
	switch {
	case s.Interrupted:
		return OutcomePartial
	case attempted > 0 && s.Failed == attempted:
		return OutcomeFailed
	case s.Failed > 0 || s.DataIssues > 0:
		return OutcomePartial
	default:
		return OutcomeSuccess
	}
}

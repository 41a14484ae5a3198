package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/dipscreener/internal/contracts"
)

var (
	_ contracts.CacheStore           = (*Store)(nil)
	_ contracts.MasterListRepository = (*Store)(nil)
	_ contracts.AnalysisRepository   = (*Store)(nil)
	_ contracts.ScreeningRepository  = (*Screening)(nil)
)

// SaveParameters stores a parameter bundle once per hash
func (s *Store) SaveParameters(_ context.Context, hash, _, _ string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.params[hash]; !ok {
		s.params[hash] = append([]byte(nil), body...)
	}
	return nil
}

// Parameters returns a stored bundle body
func (s *Store) Parameters(hash string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.params[hash]
	return body, ok
}

// CreateRun stores a run with every symbol pending
func (s *Store) CreateRun(_ context.Context, run *contracts.AnalysisRun, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.params[run.ParamsHash]; !ok {
		return fmt.Errorf("scoring parameters %s: %w", run.ParamsHash, contracts.ErrNotFound)
	}

	s.runs = append(s.runs, *run)
	progress := make(map[string]contracts.SymbolProgress, len(symbols))
	for _, sym := range symbols {
		progress[sym] = contracts.SymbolProgress{
			Symbol:    sym,
			State:     contracts.StatePending,
			UpdatedAt: run.StartedAt,
		}
	}
	s.progress[run.RunID] = progress
	return nil
}

// FindResumableRun returns the newest unfinished run over the same inputs
func (s *Store) FindResumableRun(_ context.Context, screeningVersionID uuid.UUID, paramsHash string) (*contracts.AnalysisRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.runs) - 1; i >= 0; i-- {
		r := s.runs[i]
		if r.Status != contracts.RunCompleted && r.ScreeningVersionID == screeningVersionID && r.ParamsHash == paramsHash {
			return &r, nil
		}
	}
	return nil, contracts.ErrNotFound
}

// LatestRun returns the most recently started run
func (s *Store) LatestRun(_ context.Context) (*contracts.AnalysisRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.runs) == 0 {
		return nil, contracts.ErrNotFound
	}
	r := s.runs[len(s.runs)-1]
	return &r, nil
}

// ListProgress returns every symbol state of a run
func (s *Store) ListProgress(_ context.Context, runID uuid.UUID) ([]contracts.SymbolProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	progress, ok := s.progress[runID]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	out := make([]contracts.SymbolProgress, 0, len(progress))
	for _, p := range progress {
		p.DataIssues = append([]string(nil), p.DataIssues...)
		out = append(out, p)
	}
	return out, nil
}

// UpdateState moves one symbol of a run
func (s *Store) UpdateState(_ context.Context, runID uuid.UUID, p contracts.SymbolProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateStateLocked(runID, p)
}

func (s *Store) updateStateLocked(runID uuid.UUID, p contracts.SymbolProgress) error {
	progress, ok := s.progress[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, contracts.ErrNotFound)
	}
	if _, ok := progress[p.Symbol]; !ok {
		return fmt.Errorf("symbol %s in run %s: %w", p.Symbol, runID, contracts.ErrNotFound)
	}
	p.DataIssues = append([]string(nil), p.DataIssues...)
	progress[p.Symbol] = p
	return nil
}

// SaveRecord replaces the symbol's current record and moves its state in
// one step
func (s *Store) SaveRecord(_ context.Context, runID uuid.UUID, rec *contracts.EnhancedRecord, p contracts.SymbolProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.updateStateLocked(runID, p); err != nil {
		return err
	}
	s.records[rec.Ticker] = copyRecord(rec)
	return nil
}

// FinishRun closes a run with its summary
func (s *Store) FinishRun(_ context.Context, runID uuid.UUID, status contracts.RunStatus, summary contracts.RunSummary, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.runs {
		if s.runs[i].RunID == runID {
			s.runs[i].Status = status
			s.runs[i].Summary = &summary
			s.runs[i].FinishedAt = &at
			return nil
		}
	}
	return fmt.Errorf("run %s: %w", runID, contracts.ErrNotFound)
}

// ListRecords returns current records in ranking order; limit <= 0 means all
func (s *Store) ListRecords(_ context.Context, limit int) ([]contracts.EnhancedRecord, error) {
	s.mu.Lock()
	out := make([]contracts.EnhancedRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, copyRecord(&rec))
	}
	s.mu.Unlock()

	contracts.SortRecords(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetRecord returns the current record of one symbol
func (s *Store) GetRecord(_ context.Context, symbol string) (*contracts.EnhancedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[symbol]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	out := copyRecord(&rec)
	return &out, nil
}

func copyRecord(rec *contracts.EnhancedRecord) contracts.EnhancedRecord {
	out := *rec
	out.DataIssues = append([]string(nil), rec.DataIssues...)
	out.Layers.FailedChecks = append([]string(nil), rec.Layers.FailedChecks...)
	out.Layers.Triggers = append([]string(nil), rec.Layers.Triggers...)
	if rec.Layers.Components != nil {
		out.Layers.Components = make(map[string]float64, len(rec.Layers.Components))
		for k, v := range rec.Layers.Components {
			out.Layers.Components[k] = v
		}
	}
	if rec.Result.Score != nil {
		score := *rec.Result.Score
		out.Result.Score = &score
	}
	return out
}

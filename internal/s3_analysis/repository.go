package s3_analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/dipscreener/internal/contracts"
)

// Repository implements contracts.AnalysisRepository on PostgreSQL
// ⭐ SSOT: dip.analysis_runs, dip.analysis_run_symbols and dip.enhanced_records are written here only
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new analysis repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveParameters stores a parameter bundle; an existing hash is left untouched
func (r *Repository) SaveParameters(ctx context.Context, hash, name, version string, body []byte) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO dip.scoring_parameters (params_hash, name, version, body)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (params_hash) DO NOTHING
	`, hash, name, version, body)
	if err != nil {
		return fmt.Errorf("insert scoring parameters: %w", err)
	}
	return nil
}

// CreateRun inserts a run and one pending row per symbol in one transaction
func (r *Repository) CreateRun(ctx context.Context, run *contracts.AnalysisRun, symbols []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO dip.analysis_runs (run_id, screening_version_id, params_hash, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, run.RunID, run.ScreeningVersionID, run.ParamsHash, string(run.Status), run.StartedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	rows := make([][]interface{}, len(symbols))
	for i, s := range symbols {
		rows[i] = []interface{}{run.RunID, s, string(contracts.StatePending), run.StartedAt}
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"dip", "analysis_run_symbols"},
		[]string{"run_id", "symbol", "state", "updated_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy run symbols: %w", err)
	}

	return tx.Commit(ctx)
}

const runColumns = `run_id, screening_version_id, params_hash, status, started_at, finished_at, summary`

func scanRun(row pgx.Row) (*contracts.AnalysisRun, error) {
	var (
		run         contracts.AnalysisRun
		status      string
		summaryJSON []byte
	)
	err := row.Scan(&run.RunID, &run.ScreeningVersionID, &run.ParamsHash, &status, &run.StartedAt, &run.FinishedAt, &summaryJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	run.Status = contracts.RunStatus(status)
	if len(summaryJSON) > 0 {
		var s contracts.RunSummary
		if err := json.Unmarshal(summaryJSON, &s); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
		run.Summary = &s
	}
	return &run, nil
}

// FindResumableRun returns the newest unfinished run over the same inputs
func (r *Repository) FindResumableRun(ctx context.Context, screeningVersionID uuid.UUID, paramsHash string) (*contracts.AnalysisRun, error) {
	return scanRun(r.pool.QueryRow(ctx, `
		SELECT `+runColumns+`
		FROM dip.analysis_runs
		WHERE screening_version_id = $1 AND params_hash = $2 AND status <> $3
		ORDER BY started_at DESC
		LIMIT 1
	`, screeningVersionID, paramsHash, string(contracts.RunCompleted)))
}

// LatestRun returns the most recently started run
func (r *Repository) LatestRun(ctx context.Context) (*contracts.AnalysisRun, error) {
	return scanRun(r.pool.QueryRow(ctx, `
		SELECT `+runColumns+`
		FROM dip.analysis_runs
		ORDER BY started_at DESC
		LIMIT 1
	`))
}

// ListProgress returns every symbol state of a run
func (r *Repository) ListProgress(ctx context.Context, runID uuid.UUID) ([]contracts.SymbolProgress, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT symbol, state, reason, data_issues, updated_at
		FROM dip.analysis_run_symbols
		WHERE run_id = $1
		ORDER BY symbol
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run symbols: %w", err)
	}
	defer rows.Close()

	var out []contracts.SymbolProgress
	for rows.Next() {
		var (
			p     contracts.SymbolProgress
			state string
		)
		if err := rows.Scan(&p.Symbol, &state, &p.Reason, &p.DataIssues, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run symbol: %w", err)
		}
		p.State = contracts.SymbolState(state)
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateState moves one symbol of a run
func (r *Repository) UpdateState(ctx context.Context, runID uuid.UUID, p contracts.SymbolProgress) error {
	return updateState(ctx, r.pool, runID, p)
}

// execer is satisfied by both the pool and a transaction
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func updateState(ctx context.Context, db execer, runID uuid.UUID, p contracts.SymbolProgress) error {
	issues := p.DataIssues
	if issues == nil {
		issues = []string{}
	}
	tag, err := db.Exec(ctx, `
		UPDATE dip.analysis_run_symbols
		SET state = $3, reason = $4, data_issues = $5, updated_at = $6
		WHERE run_id = $1 AND symbol = $2
	`, runID, p.Symbol, string(p.State), p.Reason, issues, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update symbol state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("symbol %s in run %s: %w", p.Symbol, runID, contracts.ErrNotFound)
	}
	return nil
}

// SaveRecord upserts the symbol's current record and its terminal state in
// one transaction
func (r *Repository) SaveRecord(ctx context.Context, runID uuid.UUID, rec *contracts.EnhancedRecord, p contracts.SymbolProgress) error {
	layersJSON, err := json.Marshal(rec.Layers)
	if err != nil {
		return fmt.Errorf("marshal layers: %w", err)
	}
	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	contextJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	issues := rec.DataIssues
	if issues == nil {
		issues = []string{}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO dip.enhanced_records (
			symbol, exchange, currency, run_id, params_hash, status, composite_score, reason,
			grade, recommendation, layer_scores, metrics, market_context, data_issues, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (symbol) DO UPDATE SET
			exchange = EXCLUDED.exchange,
			currency = EXCLUDED.currency,
			run_id = EXCLUDED.run_id,
			params_hash = EXCLUDED.params_hash,
			status = EXCLUDED.status,
			composite_score = EXCLUDED.composite_score,
			reason = EXCLUDED.reason,
			grade = EXCLUDED.grade,
			recommendation = EXCLUDED.recommendation,
			layer_scores = EXCLUDED.layer_scores,
			metrics = EXCLUDED.metrics,
			market_context = EXCLUDED.market_context,
			data_issues = EXCLUDED.data_issues,
			computed_at = EXCLUDED.computed_at
	`,
		rec.Ticker, rec.Exchange, rec.Currency, runID, rec.ParamsHash,
		string(rec.Result.Status), rec.Result.Score, string(rec.Result.Reason),
		rec.Grade, string(rec.Recommendation), layersJSON, metricsJSON, contextJSON,
		issues, rec.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert enhanced record: %w", err)
	}

	if err := updateState(ctx, tx, runID, p); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FinishRun closes a run with its summary
func (r *Repository) FinishRun(ctx context.Context, runID uuid.UUID, status contracts.RunStatus, summary contracts.RunSummary, at time.Time) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE dip.analysis_runs
		SET status = $2, summary = $3, finished_at = $4
		WHERE run_id = $1
	`, runID, string(status), summaryJSON, at)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

const recordColumns = `symbol, exchange, currency, run_id, params_hash, status, composite_score, reason,
	grade, recommendation, layer_scores, metrics, market_context, data_issues, computed_at`

func scanRecord(row pgx.Row) (*contracts.EnhancedRecord, error) {
	var (
		rec                                 contracts.EnhancedRecord
		status, reason, recommendation      string
		layersJSON, metricsJSON, contextRaw []byte
	)
	err := row.Scan(
		&rec.Ticker, &rec.Exchange, &rec.Currency, &rec.RunID, &rec.ParamsHash,
		&status, &rec.Result.Score, &reason, &rec.Grade, &recommendation,
		&layersJSON, &metricsJSON, &contextRaw, &rec.DataIssues, &rec.ComputedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Result.Status = contracts.ResultStatus(status)
	rec.Result.Reason = contracts.ExclusionReason(reason)
	rec.Recommendation = contracts.Recommendation(recommendation)
	if err := json.Unmarshal(layersJSON, &rec.Layers); err != nil {
		return nil, fmt.Errorf("unmarshal layers: %w", err)
	}
	if err := json.Unmarshal(metricsJSON, &rec.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	if err := json.Unmarshal(contextRaw, &rec.Context); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	return &rec, nil
}

// ListRecords returns current records ranked: scored by score desc then
// symbol, excluded after them. limit <= 0 returns all.
func (r *Repository) ListRecords(ctx context.Context, limit int) ([]contracts.EnhancedRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM dip.enhanced_records
		ORDER BY composite_score DESC NULLS LAST, symbol
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []contracts.EnhancedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GetRecord returns the current record of one symbol
func (r *Repository) GetRecord(ctx context.Context, symbol string) (*contracts.EnhancedRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM dip.enhanced_records
		WHERE symbol = $1
	`, symbol))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}
	return rec, nil
}

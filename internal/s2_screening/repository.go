package s2_screening

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/dipscreener/internal/contracts"
)

// Repository implements contracts.ScreeningRepository on PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new screening repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveVersion writes the version and its entries in one transaction. The
// master version is checked inside the same transaction.
func (r *Repository) SaveVersion(ctx context.Context, v *contracts.ScreeningListVersion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM dip.master_list_versions WHERE version_id = $1 FOR SHARE)
	`, v.MasterVersionID).Scan(&exists); err != nil {
		return fmt.Errorf("check master version: %w", err)
	}
	if !exists {
		return fmt.Errorf("master version %s: %w", v.MasterVersionID, contracts.ErrNotFound)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO dip.screening_list_versions (version_id, size, master_version_id, generated_at)
		VALUES ($1, $2, $3, $4)
	`, v.VersionID, v.Size, v.MasterVersionID, v.GeneratedAt)
	if err != nil {
		return fmt.Errorf("insert screening version: %w", err)
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO dip.screening_list_entries
			(version_id, rank, symbol, exchange, currency, screening_score, basic_quality_score, percent_below_high)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, e := range v.Entries {
		batch.Queue(query,
			v.VersionID, e.Rank, e.Ticker, e.Exchange, e.Currency,
			e.ScreeningScore, e.BasicQualityScore, e.PercentBelowHigh,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range v.Entries {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert screening entry: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// LatestVersion returns the newest list of the given size
func (r *Repository) LatestVersion(ctx context.Context, size int) (*contracts.ScreeningListVersion, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT version_id FROM dip.screening_list_versions
		WHERE size = $1
		ORDER BY generated_at DESC
		LIMIT 1
	`, size).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest screening version: %w", err)
	}
	return r.GetVersion(ctx, id)
}

// GetVersion loads one version with entries in rank order
func (r *Repository) GetVersion(ctx context.Context, id uuid.UUID) (*contracts.ScreeningListVersion, error) {
	v := &contracts.ScreeningListVersion{VersionID: id}
	err := r.pool.QueryRow(ctx, `
		SELECT size, master_version_id, generated_at
		FROM dip.screening_list_versions
		WHERE version_id = $1
	`, id).Scan(&v.Size, &v.MasterVersionID, &v.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query screening version: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT rank, symbol, exchange, currency, screening_score, basic_quality_score, percent_below_high
		FROM dip.screening_list_entries
		WHERE version_id = $1
		ORDER BY rank
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query screening entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e contracts.ScreeningListEntry
		if err := rows.Scan(
			&e.Rank, &e.Ticker, &e.Exchange, &e.Currency,
			&e.ScreeningScore, &e.BasicQualityScore, &e.PercentBelowHigh,
		); err != nil {
			return nil, fmt.Errorf("scan screening entry: %w", err)
		}
		v.Entries = append(v.Entries, e)
	}

	return v, rows.Err()
}

// ListLatest returns the newest version header of every size, without entries
func (r *Repository) ListLatest(ctx context.Context) ([]contracts.ScreeningListVersion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (size) version_id, size, master_version_id, generated_at
		FROM dip.screening_list_versions
		ORDER BY size, generated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query screening versions: %w", err)
	}
	defer rows.Close()

	var out []contracts.ScreeningListVersion
	for rows.Next() {
		var v contracts.ScreeningListVersion
		if err := rows.Scan(&v.VersionID, &v.Size, &v.MasterVersionID, &v.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan screening version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

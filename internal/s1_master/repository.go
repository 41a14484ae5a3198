package s1_master

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/dipscreener/internal/contracts"
)

// Repository implements contracts.MasterListRepository on PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new master list repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveVersion writes the version header and all entries in one transaction
func (r *Repository) SaveVersion(ctx context.Context, v *contracts.MasterListVersion) error {
	criteriaJSON, err := json.Marshal(v.Criteria)
	if err != nil {
		return fmt.Errorf("marshal criteria: %w", err)
	}
	excludedJSON, err := json.Marshal(v.Excluded)
	if err != nil {
		return fmt.Errorf("marshal excluded: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO dip.master_list_versions (version_id, built_at, universe_size, criteria, excluded)
		VALUES ($1, $2, $3, $4, $5)
	`, v.VersionID, v.BuiltAt, v.UniverseSize, criteriaJSON, excludedJSON)
	if err != nil {
		return fmt.Errorf("insert master version: %w", err)
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO dip.master_list_entries
			(version_id, symbol, exchange, currency, name, sector, market_cap,
			 average_volume, exchange_tier, basic_quality_score, built_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	for _, e := range v.Entries {
		batch.Queue(query,
			v.VersionID, e.Ticker, e.Exchange, e.Currency, e.Name, e.Sector, e.MarketCap,
			e.AverageVolume, string(e.ExchangeTier), e.BasicQualityScore, e.BuiltAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range v.Entries {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert master entry: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// LatestVersion returns the most recently built version
func (r *Repository) LatestVersion(ctx context.Context) (*contracts.MasterListVersion, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT version_id FROM dip.master_list_versions
		ORDER BY built_at DESC
		LIMIT 1
	`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest master version: %w", err)
	}
	return r.GetVersion(ctx, id)
}

// GetVersion loads one version with its entries ordered by score
func (r *Repository) GetVersion(ctx context.Context, id uuid.UUID) (*contracts.MasterListVersion, error) {
	v := &contracts.MasterListVersion{VersionID: id}

	var criteriaJSON, excludedJSON []byte
	err := r.pool.QueryRow(ctx, `
		SELECT built_at, universe_size, criteria, excluded
		FROM dip.master_list_versions
		WHERE version_id = $1
	`, id).Scan(&v.BuiltAt, &v.UniverseSize, &criteriaJSON, &excludedJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query master version: %w", err)
	}

	if err := json.Unmarshal(criteriaJSON, &v.Criteria); err != nil {
		return nil, fmt.Errorf("unmarshal criteria: %w", err)
	}
	if err := json.Unmarshal(excludedJSON, &v.Excluded); err != nil {
		return nil, fmt.Errorf("unmarshal excluded: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT symbol, exchange, currency, name, sector, market_cap,
		       average_volume, exchange_tier, basic_quality_score, built_at
		FROM dip.master_list_entries
		WHERE version_id = $1
		ORDER BY basic_quality_score DESC, symbol
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query master entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e    contracts.MasterListEntry
			tier string
		)
		if err := rows.Scan(
			&e.Ticker, &e.Exchange, &e.Currency, &e.Name, &e.Sector, &e.MarketCap,
			&e.AverageVolume, &tier, &e.BasicQualityScore, &e.BuiltAt,
		); err != nil {
			return nil, fmt.Errorf("scan master entry: %w", err)
		}
		e.ExchangeTier = contracts.ExchangeTier(tier)
		v.Entries = append(v.Entries, e)
	}

	return v, rows.Err()
}

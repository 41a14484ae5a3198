package s0_fetch

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/dipscreener/internal/contracts"
)

// Repository implements contracts.CacheStore on PostgreSQL
// ⭐ SSOT: dip.cache_entries and dip.unsupported_symbols are written here only
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new cache repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Latest returns the most recently fetched entry for (symbol, kind)
func (r *Repository) Latest(ctx context.Context, symbol string, kind contracts.DataKind) (*contracts.CacheEntry, error) {
	query := `
		SELECT symbol, kind, logical_date, payload, fetched_at, ttl_seconds
		FROM dip.cache_entries
		WHERE symbol = $1 AND kind = $2
		ORDER BY fetched_at DESC
		LIMIT 1
	`

	var (
		e          contracts.CacheEntry
		kindStr    string
		payload    []byte
		ttlSeconds int64
	)
	err := r.pool.QueryRow(ctx, query, symbol, string(kind)).Scan(
		&e.Symbol, &kindStr, &e.LogicalDate, &payload, &e.FetchedAt, &ttlSeconds,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	e.Kind = contracts.DataKind(kindStr)
	e.Payload = payload
	e.TTL = time.Duration(ttlSeconds) * time.Second
	return &e, nil
}

// Put stores an entry, replacing a same-day entry for (symbol, kind)
func (r *Repository) Put(ctx context.Context, e contracts.CacheEntry) error {
	query := `
		INSERT INTO dip.cache_entries (symbol, kind, logical_date, payload, fetched_at, ttl_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, kind, logical_date) DO UPDATE SET
			payload = EXCLUDED.payload,
			fetched_at = EXCLUDED.fetched_at,
			ttl_seconds = EXCLUDED.ttl_seconds
	`

	_, err := r.pool.Exec(ctx, query,
		e.Symbol, string(e.Kind), e.LogicalDate, []byte(e.Payload), e.FetchedAt, int64(e.TTL/time.Second),
	)
	return err
}

// MarkUnsupported records a permanent provider refusal
func (r *Repository) MarkUnsupported(ctx context.Context, u contracts.UnsupportedSymbol) error {
	query := `
		INSERT INTO dip.unsupported_symbols (symbol, reason, marked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE SET
			reason = EXCLUDED.reason,
			marked_at = EXCLUDED.marked_at
	`

	_, err := r.pool.Exec(ctx, query, u.Symbol, u.Reason, u.MarkedAt)
	return err
}

// IsUnsupported reports whether the symbol is marked
func (r *Repository) IsUnsupported(ctx context.Context, symbol string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM dip.unsupported_symbols WHERE symbol = $1)`, symbol,
	).Scan(&exists)
	return exists, err
}

// ListUnsupported returns every marked symbol, newest first
func (r *Repository) ListUnsupported(ctx context.Context) ([]contracts.UnsupportedSymbol, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT symbol, reason, marked_at
		FROM dip.unsupported_symbols
		ORDER BY marked_at DESC, symbol
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contracts.UnsupportedSymbol
	for rows.Next() {
		var u contracts.UnsupportedSymbol
		if err := rows.Scan(&u.Symbol, &u.Reason, &u.MarkedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Stats summarizes the cache
func (r *Repository) Stats(ctx context.Context) (*contracts.CacheStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM dip.cache_entries),
			(SELECT COUNT(DISTINCT symbol) FROM dip.cache_entries),
			(SELECT COUNT(*) FROM dip.unsupported_symbols),
			(SELECT MAX(fetched_at) FROM dip.cache_entries)
	`

	var s contracts.CacheStats
	if err := r.pool.QueryRow(ctx, query).Scan(&s.Entries, &s.Symbols, &s.Unsupported, &s.NewestFetch); err != nil {
		return nil, err
	}
	return &s, nil
}

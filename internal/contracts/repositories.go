package contracts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ⭐ SSOT: repository interfaces are defined here only

// CacheEntry is one stored fact keyed by (symbol, kind, logical date)
type CacheEntry struct {
	Symbol      string          `json:"symbol"`
	Kind        DataKind        `json:"kind"`
	LogicalDate time.Time       `json:"logical_date"`
	Payload     json.RawMessage `json:"payload"`
	FetchedAt   time.Time       `json:"fetched_at"`
	TTL         time.Duration   `json:"ttl"`
}

// IsStale reports whether the entry is older than ttl at now
func (e *CacheEntry) IsStale(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) > ttl
}

// UnsupportedSymbol is a permanent provider refusal
type UnsupportedSymbol struct {
	Symbol   string    `json:"symbol"`
	Reason   string    `json:"reason"`
	MarkedAt time.Time `json:"marked_at"`
}

// CacheStats summarizes the cache store
type CacheStats struct {
	Entries     int        `json:"entries"`
	Symbols     int        `json:"symbols"`
	Unsupported int        `json:"unsupported"`
	NewestFetch *time.Time `json:"newest_fetch,omitempty"`
}

// CacheStore persists cache entries and the unsupported set
type CacheStore interface {
	Latest(ctx context.Context, symbol string, kind DataKind) (*CacheEntry, error)
	Put(ctx context.Context, entry CacheEntry) error
	MarkUnsupported(ctx context.Context, u UnsupportedSymbol) error
	IsUnsupported(ctx context.Context, symbol string) (bool, error)
	ListUnsupported(ctx context.Context) ([]UnsupportedSymbol, error)
	Stats(ctx context.Context) (*CacheStats, error)
}

// MasterListRepository persists Tier-1 versions
type MasterListRepository interface {
	SaveVersion(ctx context.Context, v *MasterListVersion) error
	LatestVersion(ctx context.Context) (*MasterListVersion, error)
	GetVersion(ctx context.Context, id uuid.UUID) (*MasterListVersion, error)
}

// ScreeningRepository persists Tier-2 versions. SaveVersion must reject a
// version whose master version does not exist.
type ScreeningRepository interface {
	SaveVersion(ctx context.Context, v *ScreeningListVersion) error
	LatestVersion(ctx context.Context, size int) (*ScreeningListVersion, error)
	GetVersion(ctx context.Context, id uuid.UUID) (*ScreeningListVersion, error)
	ListLatest(ctx context.Context) ([]ScreeningListVersion, error)
}

// AnalysisRepository persists scoring parameters, runs, per-symbol state
// and the current enhanced record of each symbol
type AnalysisRepository interface {
	SaveParameters(ctx context.Context, hash, name, version string, body []byte) error
	CreateRun(ctx context.Context, run *AnalysisRun, symbols []string) error
	FindResumableRun(ctx context.Context, screeningVersionID uuid.UUID, paramsHash string) (*AnalysisRun, error)
	LatestRun(ctx context.Context) (*AnalysisRun, error)
	ListProgress(ctx context.Context, runID uuid.UUID) ([]SymbolProgress, error)
	UpdateState(ctx context.Context, runID uuid.UUID, p SymbolProgress) error
	SaveRecord(ctx context.Context, runID uuid.UUID, rec *EnhancedRecord, p SymbolProgress) error
	FinishRun(ctx context.Context, runID uuid.UUID, status RunStatus, summary RunSummary, at time.Time) error
	ListRecords(ctx context.Context, limit int) ([]EnhancedRecord, error)
	GetRecord(ctx context.Context, symbol string) (*EnhancedRecord, error)
}

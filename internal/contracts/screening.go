package contracts

import (
	"time"

	"github.com/google/uuid"
)

// ScreeningListEntry is one ranked Tier-2 candidate
type ScreeningListEntry struct {
	Symbol
	Rank              int      `json:"rank"` // 1-based, contiguous
	ScreeningScore    float64  `json:"screening_score"`
	BasicQualityScore float64  `json:"basic_quality_score"`
	PercentBelowHigh  *float64 `json:"percent_below_high,omitempty"`
}

// ScreeningListVersion is an immutable top-N snapshot pinned to the master
// list version it was generated from
// ⭐ SSOT: Tier 2 → Tier 3 hand-off
type ScreeningListVersion struct {
	VersionID       uuid.UUID            `json:"version_id"`
	Size            int                  `json:"size"`
	MasterVersionID uuid.UUID            `json:"source_master_list_version"`
	GeneratedAt     time.Time            `json:"generated_at"`
	Entries         []ScreeningListEntry `json:"entries"`
}

// Tickers returns the entry tickers in rank order
func (v *ScreeningListVersion) Tickers() []string {
	out := make([]string, len(v.Entries))
	for i, e := range v.Entries {
		out[i] = e.Ticker
	}
	return out
}

// Age returns how old the version is at now
func (v *ScreeningListVersion) Age(now time.Time) time.Duration {
	return now.Sub(v.GeneratedAt)
}

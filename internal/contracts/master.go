package contracts

import (
	"time"

	"github.com/google/uuid"
)

// ExchangeTier separates preferred listings from merely allowed ones
type ExchangeTier string

const (
	TierPreferred ExchangeTier = "preferred"
	TierStandard  ExchangeTier = "standard"
)

// MasterListEntry is one member of the investable base set.
// Entries are replaced wholesale on rebuild, never edited.
type MasterListEntry struct {
	Symbol
	Name              string       `json:"name"`
	Sector            string       `json:"sector"`
	MarketCap         float64      `json:"market_cap"`
	AverageVolume     float64      `json:"average_volume"`
	ExchangeTier      ExchangeTier `json:"exchange_tier"`
	BasicQualityScore float64      `json:"basic_quality_score"`
	BuiltAt           time.Time    `json:"built_at"`
}

// MasterListCriteria records the filter values a version was built with
type MasterListCriteria struct {
	MinMarketCap       float64  `json:"min_market_cap"`
	MinAverageVolume   float64  `json:"min_average_volume"`
	AllowedExchanges   []string `json:"allowed_exchanges"`
	PreferredExchanges []string `json:"preferred_exchanges"`
	TargetSize         int      `json:"target_size"`
}

// MasterListVersion is an immutable Tier-1 snapshot
// ⭐ SSOT: Tier 1 → Tier 2 hand-off
type MasterListVersion struct {
	VersionID    uuid.UUID          `json:"version_id"`
	BuiltAt      time.Time          `json:"built_at"`
	UniverseSize int                `json:"universe_size"`
	Criteria     MasterListCriteria `json:"criteria"`
	Excluded     map[string]int     `json:"excluded"` // reason → count
	Entries      []MasterListEntry  `json:"entries"`
}

// Count returns the number of entries
func (v *MasterListVersion) Count() int {
	return len(v.Entries)
}

// Age returns how old the version is at now
func (v *MasterListVersion) Age(now time.Time) time.Duration {
	return now.Sub(v.BuiltAt)
}

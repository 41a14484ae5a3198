package contracts

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Metrics is the full per-symbol bundle the composite scorer consumes.
// Pointer fields are nil when the provider had no value.
type Metrics struct {
	Name      string  `json:"name"`
	Sector    string  `json:"sector"`
	MarketCap float64 `json:"market_cap"`
	Price     float64 `json:"price"`

	// technical
	High52W          *float64 `json:"high_52w,omitempty"`
	PercentBelowHigh *float64 `json:"percent_below_high,omitempty"`
	RSI14            *float64 `json:"rsi_14,omitempty"`
	SMA50            *float64 `json:"sma_50,omitempty"`
	SMA200           *float64 `json:"sma_200,omitempty"`
	VolumeRatio      *float64 `json:"volume_ratio,omitempty"`
	MACDBullishCross bool     `json:"macd_bullish_cross"`
	ReversalPattern  string   `json:"reversal_pattern,omitempty"`

	// events
	EarningsSurprisePct     *float64 `json:"earnings_surprise_pct,omitempty"`
	EarningsReportedDaysAgo *int     `json:"earnings_reported_days_ago,omitempty"`
	DaysToEarnings          *int     `json:"days_to_earnings,omitempty"`

	// fundamental
	PE           *float64 `json:"pe,omitempty"`
	ROE          *float64 `json:"roe,omitempty"`
	ProfitMargin *float64 `json:"profit_margin,omitempty"`
	DebtToEBITDA *float64 `json:"debt_to_ebitda,omitempty"`
	FreeCashFlow *float64 `json:"free_cash_flow,omitempty"`
	FCFGrowth    *float64 `json:"fcf_growth,omitempty"`

	// risk
	Beta       *float64 `json:"beta,omitempty"`
	ShortFloat *float64 `json:"short_float,omitempty"`
}

// MarketContext is the sector and market backdrop a symbol is scored against
type MarketContext struct {
	SectorPE              float64  `json:"sector_pe"`
	SectorFCFGrowthMedian float64  `json:"sector_fcf_growth_median"`
	SectorPeers           int      `json:"sector_peers"`
	SectorUptrend         *bool    `json:"sector_uptrend,omitempty"`
	VolatilityIndex       *float64 `json:"volatility_index,omitempty"`
}

// LayerScores holds each layer's contribution plus an explainable breakdown
type LayerScores struct {
	QualityGate    float64            `json:"quality_gate"`
	DipSignal      float64            `json:"dip_signal"`
	ReversalSpark  float64            `json:"reversal_spark"`
	RiskAdjustment float64            `json:"risk_adjustment"`
	Components     map[string]float64 `json:"components,omitempty"`
	FailedChecks   []string           `json:"failed_checks,omitempty"`
	Triggers       []string           `json:"triggers,omitempty"`
}

// ResultStatus tags a scoring result
type ResultStatus string

const (
	StatusScored   ResultStatus = "scored"
	StatusExcluded ResultStatus = "excluded"
)

// ExclusionReason explains why a symbol carries no score
type ExclusionReason string

const (
	ReasonQualityGate      ExclusionReason = "quality_gate"
	ReasonEarningsBlackout ExclusionReason = "earnings_blackout"
	ReasonUnsupported      ExclusionReason = "unsupported"
)

// Result is Scored(value) or Excluded(reason), never a sentinel number
type Result struct {
	Status ResultStatus    `json:"status"`
	Score  *float64        `json:"score,omitempty"`
	Reason ExclusionReason `json:"reason,omitempty"`
}

// Scored builds a scored result
func Scored(value float64) Result {
	return Result{Status: StatusScored, Score: &value}
}

// Excluded builds an excluded result
func Excluded(reason ExclusionReason) Result {
	return Result{Status: StatusExcluded, Reason: reason}
}

// Value returns the score and whether the result is scored
func (r Result) Value() (float64, bool) {
	if r.Status != StatusScored || r.Score == nil {
		return 0, false
	}
	return *r.Score, true
}

// IsScored reports whether the result carries a score
func (r Result) IsScored() bool {
	_, ok := r.Value()
	return ok
}

// Recommendation is the action label derived from the composite score
type Recommendation string

const (
	RecStrongBuy Recommendation = "STRONG_BUY"
	RecBuy       Recommendation = "BUY"
	RecWatch     Recommendation = "WATCH"
	RecWeak      Recommendation = "WEAK"
	RecAvoid     Recommendation = "AVOID"
)

// EnhancedRecord is the current Tier-3 result for one symbol
type EnhancedRecord struct {
	Symbol
	Metrics        Metrics        `json:"metrics"`
	Context        MarketContext  `json:"context"`
	Layers         LayerScores    `json:"layers"`
	Result         Result         `json:"result"`
	Grade          string         `json:"grade,omitempty"`
	Recommendation Recommendation `json:"recommendation,omitempty"`
	DataIssues     []string       `json:"data_issues,omitempty"`
	ParamsHash     string         `json:"params_hash"`
	RunID          uuid.UUID      `json:"run_id"`
	ComputedAt     time.Time      `json:"computed_at"`
}

// HasDataIssues reports whether any input was missing or failed to fetch
func (r *EnhancedRecord) HasDataIssues() bool {
	return len(r.DataIssues) > 0
}

// SortRecords orders scored records by score desc then ticker, followed by
// excluded records by ticker. The order is total and deterministic.
func SortRecords(records []EnhancedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		si, iok := records[i].Result.Value()
		sj, jok := records[j].Result.Value()
		if iok != jok {
			return iok
		}
		if iok && si != sj {
			return si > sj
		}
		return records[i].Ticker < records[j].Ticker
	})
}

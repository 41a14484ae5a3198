package scoringparams

import "time"

// Params is the named, versioned bundle of every weight, threshold and band
// the funnel uses. Its content hash is its version identity.
type Params struct {
	Meta            Meta        `yaml:"meta" json:"meta"`
	Weights         Weights     `yaml:"weights" json:"weights"`
	Quality         Quality     `yaml:"quality" json:"quality"`
	Dip             Dip         `yaml:"dip" json:"dip"`
	Reversal        Reversal    `yaml:"reversal" json:"reversal"`
	Risk            Risk        `yaml:"risk" json:"risk"`
	Grades          []Threshold `yaml:"grades" json:"grades"`
	FloorGrade      string      `yaml:"floor_grade" json:"floor_grade"`
	Recommendations []Threshold `yaml:"recommendations" json:"recommendations"`
	FloorRec        string      `yaml:"floor_recommendation" json:"floor_recommendation"`
	MasterList      MasterList  `yaml:"master_list" json:"master_list"`
	Screening       Screening   `yaml:"screening" json:"screening"`
	Cache           CacheTTLs   `yaml:"cache_ttl" json:"cache_ttl"`
	RateLimit       RateLimit   `yaml:"rate_limit" json:"rate_limit"`
	Retry           Retry       `yaml:"retry" json:"retry"`
}

// Meta identifies the bundle
type Meta struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Weights are independent point caps per layer. The raw total is not
// normalized unless Normalize is set, in which case the three positive
// layers are rescaled to sum to 100 - RiskRange.
type Weights struct {
	QualityGate   float64 `yaml:"quality_gate" json:"quality_gate"`
	DipSignal     float64 `yaml:"dip_signal" json:"dip_signal"`
	ReversalSpark float64 `yaml:"reversal_spark" json:"reversal_spark"`
	RiskRange     float64 `yaml:"risk_range" json:"risk_range"`
	Normalize     bool    `yaml:"normalize" json:"normalize"`
}

// Quality configures layer 1
type Quality struct {
	Caps              QualityCaps `yaml:"caps" json:"caps"`
	PEMultiplier      float64     `yaml:"pe_multiplier" json:"pe_multiplier"`
	DebtEBITDAMax     float64     `yaml:"debt_ebitda_max" json:"debt_ebitda_max"`
	ROEMin            float64     `yaml:"roe_min" json:"roe_min"`
	MarginMin         float64     `yaml:"margin_min" json:"margin_min"`
	GateFailThreshold int         `yaml:"gate_fail_threshold" json:"gate_fail_threshold"`
	MarginalCredit    float64     `yaml:"marginal_credit" json:"marginal_credit"`
	UnknownCredit     float64     `yaml:"unknown_credit" json:"unknown_credit"`
	DefaultSectorPE   float64     `yaml:"default_sector_pe" json:"default_sector_pe"`
	DefaultSectorFCF  float64     `yaml:"default_sector_fcf_growth" json:"default_sector_fcf_growth"`
	MinSectorPeers    int         `yaml:"min_sector_peers" json:"min_sector_peers"`
}

// QualityCaps are relative shares of the quality layer
type QualityCaps struct {
	CashFlow      float64 `yaml:"cash_flow" json:"cash_flow"`
	Valuation     float64 `yaml:"valuation" json:"valuation"`
	Leverage      float64 `yaml:"leverage" json:"leverage"`
	Profitability float64 `yaml:"profitability" json:"profitability"`
	Margin        float64 `yaml:"margin" json:"margin"`
}

// Sum returns the total of all caps
func (c QualityCaps) Sum() float64 {
	return c.CashFlow + c.Valuation + c.Leverage + c.Profitability + c.Margin
}

// Band gives full credit inside [Low, High] and degrades linearly to zero
// at OuterLow and OuterHigh
type Band struct {
	Low       float64 `yaml:"low" json:"low"`
	High      float64 `yaml:"high" json:"high"`
	OuterLow  float64 `yaml:"outer_low" json:"outer_low"`
	OuterHigh float64 `yaml:"outer_high" json:"outer_high"`
}

// Dip configures layer 2
type Dip struct {
	Caps          DipCaps `yaml:"caps" json:"caps"`
	DropBand      Band    `yaml:"drop_band" json:"drop_band"`
	RSIBand       Band    `yaml:"rsi_band" json:"rsi_band"`
	VolumeBand    Band    `yaml:"volume_band" json:"volume_band"`
	RSIPeriod     int     `yaml:"rsi_period" json:"rsi_period"`
	VolumeAvgDays int     `yaml:"volume_avg_days" json:"volume_avg_days"`
	SMAMedium     int     `yaml:"sma_medium" json:"sma_medium"`
	SMALong       int     `yaml:"sma_long" json:"sma_long"`
}

// DipCaps are relative shares of the dip layer
type DipCaps struct {
	Drop   float64 `yaml:"drop" json:"drop"`
	RSI    float64 `yaml:"rsi" json:"rsi"`
	Volume float64 `yaml:"volume" json:"volume"`
	MA     float64 `yaml:"ma" json:"ma"`
}

// Sum returns the total of all caps
func (c DipCaps) Sum() float64 {
	return c.Drop + c.RSI + c.Volume + c.MA
}

// Reversal configures layer 3
type Reversal struct {
	MACDCrossPoints        float64 `yaml:"macd_cross_points" json:"macd_cross_points"`
	CandlePoints           float64 `yaml:"candle_points" json:"candle_points"`
	EarningsSurprisePoints float64 `yaml:"earnings_surprise_points" json:"earnings_surprise_points"`
	MACDLookbackBars       int     `yaml:"macd_lookback_bars" json:"macd_lookback_bars"`
	CandleLookbackBars     int     `yaml:"candle_lookback_bars" json:"candle_lookback_bars"`
	EarningsRecencyDays    int     `yaml:"earnings_recency_days" json:"earnings_recency_days"`
}

// Risk configures layer 4
type Risk struct {
	SectorMultiplier    float64           `yaml:"sector_multiplier" json:"sector_multiplier"`
	ShortFloatThreshold float64           `yaml:"short_float_threshold" json:"short_float_threshold"`
	ShortFloatPenalty   float64           `yaml:"short_float_penalty" json:"short_float_penalty"`
	BetaThreshold       float64           `yaml:"beta_threshold" json:"beta_threshold"`
	VolatilityThreshold float64           `yaml:"volatility_threshold" json:"volatility_threshold"`
	HighBetaPenalty     float64           `yaml:"high_beta_penalty" json:"high_beta_penalty"`
	BlackoutDays        int               `yaml:"blackout_days" json:"blackout_days"`
	VolatilitySymbol    string            `yaml:"volatility_symbol" json:"volatility_symbol"`
	SectorETFs          map[string]string `yaml:"sector_etfs" json:"sector_etfs"`
}

// Threshold maps a minimum composite score to a label.
// Lists are ascending by Min.
type Threshold struct {
	Label string  `yaml:"label" json:"label"`
	Min   float64 `yaml:"min" json:"min"`
}

// MasterList configures Tier 1
type MasterList struct {
	TTL                time.Duration `yaml:"ttl" json:"ttl"`
	MinMarketCap       float64       `yaml:"min_market_cap" json:"min_market_cap"`
	MinAverageVolume   float64       `yaml:"min_average_volume" json:"min_average_volume"`
	AllowedExchanges   []string      `yaml:"allowed_exchanges" json:"allowed_exchanges"`
	PreferredExchanges []string      `yaml:"preferred_exchanges" json:"preferred_exchanges"`
	PreferredBonus     float64       `yaml:"preferred_bonus" json:"preferred_bonus"`
	StandardBonus      float64       `yaml:"standard_bonus" json:"standard_bonus"`
	TargetSize         int           `yaml:"target_size" json:"target_size"`
}

// Screening configures Tier 2
type Screening struct {
	TTL                time.Duration `yaml:"ttl" json:"ttl"`
	DipHeuristicWeight float64       `yaml:"dip_heuristic_weight" json:"dip_heuristic_weight"`
}

// CacheTTLs are per-kind freshness windows of the fetch cache
type CacheTTLs struct {
	Universe     time.Duration `yaml:"universe" json:"universe"`
	Profile      time.Duration `yaml:"profile" json:"profile"`
	Quote        time.Duration `yaml:"quote" json:"quote"`
	Fundamentals time.Duration `yaml:"fundamentals" json:"fundamentals"`
	Candles      time.Duration `yaml:"candles" json:"candles"`
	Earnings     time.Duration `yaml:"earnings" json:"earnings"`
	Calendar     time.Duration `yaml:"calendar" json:"calendar"`
}

// RateLimit bounds collaborator calls
type RateLimit struct {
	MinInterval       time.Duration `yaml:"min_interval" json:"min_interval"`
	MaxCallsPerMinute int           `yaml:"max_calls_per_minute" json:"max_calls_per_minute"`
}

// Retry bounds transient-failure retries
type Retry struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
}

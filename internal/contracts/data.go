package contracts

import (
	"encoding/json"
	"time"
)

// Payload shapes stored in the cache. Collaborator adapters normalize their
// transport format into these; pointers mark fields the provider may omit.

// ListedSecurity is one row of a KindUniverse payload
type ListedSecurity struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Exchange    string `json:"exchange"`
	Currency    string `json:"currency"`
}

// Profile is the KindProfile payload
type Profile struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Exchange  string  `json:"exchange"`
	Currency  string  `json:"currency"`
	Sector    string  `json:"sector"`
	MarketCap float64 `json:"market_cap"` // in currency units, not millions
}

// Quote is the KindQuote payload
type Quote struct {
	Price     float64  `json:"price"`
	PrevClose float64  `json:"prev_close"`
	Volume    *float64 `json:"volume,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Fundamentals is the KindFundamentals payload
type Fundamentals struct {
	PE           *float64 `json:"pe,omitempty"`
	ROE          *float64 `json:"roe,omitempty"`           // fraction, 0.15 = 15%
	ProfitMargin *float64 `json:"profit_margin,omitempty"` // fraction
	DebtToEBITDA *float64 `json:"debt_to_ebitda,omitempty"`
	FreeCashFlow *float64 `json:"free_cash_flow,omitempty"`
	FCFGrowth    *float64 `json:"fcf_growth,omitempty"` // fraction per year
	Beta         *float64 `json:"beta,omitempty"`
	ShortFloat   *float64 `json:"short_float,omitempty"` // fraction of float sold short
	High52W      *float64 `json:"high_52w,omitempty"`
	Low52W       *float64 `json:"low_52w,omitempty"`
	AvgVolume10D *float64 `json:"avg_volume_10d,omitempty"` // shares
	AvgVolume3M  *float64 `json:"avg_volume_3m,omitempty"`  // shares
}

// Candle is one daily bar
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// CandleSeries is the KindCandles payload, oldest bar first
type CandleSeries struct {
	Candles []Candle `json:"candles"`
}

// EarningsSurprise is one reported quarter
type EarningsSurprise struct {
	Period          time.Time `json:"period"`
	Actual          *float64  `json:"actual,omitempty"`
	Estimate        *float64  `json:"estimate,omitempty"`
	SurprisePercent *float64  `json:"surprise_percent,omitempty"`
}

// EarningsHistory is the KindEarnings payload, newest first
type EarningsHistory struct {
	Surprises []EarningsSurprise `json:"surprises"`
}

// EarningsCalendar is the KindCalendar payload
type EarningsCalendar struct {
	NextEarningsDate *time.Time `json:"next_earnings_date,omitempty"`
}

// Decode unmarshals a cached payload. A null payload (kind known to be
// unavailable for the symbol) leaves v untouched and reports false.
func Decode(payload json.RawMessage, v interface{}) (bool, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return false, &DataQualityError{Field: "payload", Err: err}
	}
	return true, nil
}

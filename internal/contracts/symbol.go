package contracts

import (
	"context"
	"encoding/json"
	"strings"
)

// Symbol is the immutable identity of a listed security
type Symbol struct {
	Ticker   string `json:"ticker"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
}

// NormalizeTicker upper-cases and trims a ticker
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// DataKind names one family of externally sourced facts
type DataKind string

const (
	KindUniverse     DataKind = "universe"     // exchange listing; symbol = exchange code
	KindProfile      DataKind = "profile"      // name, exchange, sector, market cap
	KindQuote        DataKind = "quote"        // latest price and volume
	KindFundamentals DataKind = "fundamentals" // valuation, profitability, leverage, 52w range
	KindCandles      DataKind = "candles"      // daily OHLCV history
	KindEarnings     DataKind = "earnings"     // reported surprises
	KindCalendar     DataKind = "calendar"     // next scheduled earnings date
)

// BundleKinds are the kinds fetched per deep-analysis candidate
var BundleKinds = []DataKind{
	KindProfile,
	KindQuote,
	KindFundamentals,
	KindCandles,
	KindEarnings,
	KindCalendar,
}

// IsCore reports whether the symbol is unusable without this kind.
// Permanent failures on a core kind mark the whole symbol unsupported.
func (k DataKind) IsCore() bool {
	switch k {
	case KindProfile, KindQuote, KindCandles:
		return true
	}
	return false
}

// Collaborator is the market-data provider boundary. Every call is metered
// by the fetch layer; implementations only translate transport.
// ⭐ SSOT: the only interface through which external market data enters
type Collaborator interface {
	GetSnapshot(ctx context.Context, symbol string, kind DataKind) (json.RawMessage, error)
}

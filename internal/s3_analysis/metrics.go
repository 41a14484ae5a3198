package s3_analysis

import (
	"encoding/json"
	"time"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/scoringparams"
)

// tradingYear is the number of daily bars in a 52-week window
const tradingYear = 252

// Bundle is every cached kind of one symbol. A nil pointer means the kind
// was missing, null or failed to fetch; Issues says which.
type Bundle struct {
	Symbol       string
	Profile      *contracts.Profile
	Quote        *contracts.Quote
	Fundamentals *contracts.Fundamentals
	Candles      *contracts.CandleSeries
	Earnings     *contracts.EarningsHistory
	Calendar     *contracts.EarningsCalendar
	Issues       []string
}

// decodeInto fills the matching Bundle field from a cached payload.
// Returns false for null payloads and unreadable ones.
func (b *Bundle) decodeInto(kind contracts.DataKind, payload json.RawMessage) (bool, error) {
	var (
		ok  bool
		err error
	)
	switch kind {
	case contracts.KindProfile:
		var v contracts.Profile
		if ok, err = contracts.Decode(payload, &v); ok {
			b.Profile = &v
		}
	case contracts.KindQuote:
		var v contracts.Quote
		if ok, err = contracts.Decode(payload, &v); ok {
			b.Quote = &v
		}
	case contracts.KindFundamentals:
		var v contracts.Fundamentals
		if ok, err = contracts.Decode(payload, &v); ok {
			b.Fundamentals = &v
		}
	case contracts.KindCandles:
		var v contracts.CandleSeries
		if ok, err = contracts.Decode(payload, &v); ok {
			b.Candles = &v
		}
	case contracts.KindEarnings:
		var v contracts.EarningsHistory
		if ok, err = contracts.Decode(payload, &v); ok {
			b.Earnings = &v
		}
	case contracts.KindCalendar:
		var v contracts.EarningsCalendar
		if ok, err = contracts.Decode(payload, &v); ok {
			b.Calendar = &v
		}
	}
	return ok, err
}

func (b *Bundle) addIssue(issue string) {
	for _, existing := range b.Issues {
		if existing == issue {
			return
		}
	}
	b.Issues = append(b.Issues, issue)
}

// BuildMetrics derives the scorer inputs from a bundle as of asOf
// ⭐ SSOT: every technical and event metric is derived here
func BuildMetrics(b *Bundle, p *scoringparams.Params, asOf time.Time) contracts.Metrics {
	var m contracts.Metrics

	if b.Profile != nil {
		m.Name = b.Profile.Name
		m.Sector = b.Profile.Sector
		m.MarketCap = b.Profile.MarketCap
	}

	var candles []contracts.Candle
	if b.Candles != nil {
		candles = b.Candles.Candles
	}
	closeSeries := closes(candles)

	switch {
	case b.Quote != nil && b.Quote.Price > 0:
		m.Price = b.Quote.Price
	case len(closeSeries) > 0:
		m.Price = closeSeries[len(closeSeries)-1]
	}

	if f := b.Fundamentals; f != nil {
		m.PE = f.PE
		m.ROE = f.ROE
		m.ProfitMargin = f.ProfitMargin
		m.DebtToEBITDA = f.DebtToEBITDA
		m.FreeCashFlow = f.FreeCashFlow
		m.FCFGrowth = f.FCFGrowth
		m.Beta = f.Beta
		m.ShortFloat = f.ShortFloat
		m.High52W = f.High52W
	}

	// technical
	if m.High52W == nil {
		m.High52W = HighOf(candles, tradingYear)
	}
	if high := m.High52W; high != nil && *high > 0 && m.Price > 0 {
		drop := (1 - m.Price/(*high)) * 100
		if drop < 0 {
			drop = 0
		}
		m.PercentBelowHigh = &drop
	}

	m.RSI14 = RSI(closeSeries, p.Dip.RSIPeriod)
	m.SMA50 = SMA(closeSeries, p.Dip.SMAMedium)
	m.SMA200 = SMA(closeSeries, p.Dip.SMALong)
	m.VolumeRatio = VolumeRatio(candles, p.Dip.VolumeAvgDays)
	m.MACDBullishCross = MACDBullishCross(closeSeries, p.Reversal.MACDLookbackBars)
	m.ReversalPattern = ReversalPattern(candles, p.Reversal.CandleLookbackBars)

	// events
	day := dateOf(asOf)
	if b.Earnings != nil {
		for _, s := range b.Earnings.Surprises {
			if s.SurprisePercent == nil {
				continue
			}
			surprise := *s.SurprisePercent
			ago := int(day.Sub(dateOf(s.Period)).Hours() / 24)
			m.EarningsSurprisePct = &surprise
			m.EarningsReportedDaysAgo = &ago
			break
		}
	}
	if b.Calendar != nil && b.Calendar.NextEarningsDate != nil {
		days := int(dateOf(*b.Calendar.NextEarningsDate).Sub(day).Hours() / 24)
		m.DaysToEarnings = &days
	}

	return m
}

func dateOf(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

package scoringparams

import (
	"time"

	"github.com/wonny/dipscreener/internal/contracts"
)

// Default returns the documented default parameter bundle
func Default() *Params {
	return &Params{
		Meta: Meta{
			Name:        "buy_the_dip",
			Version:     "1.0.0",
			Description: "four-layer dip scoring: quality gate, dip signal, reversal spark, risk context",
		},
		Weights: Weights{
			QualityGate:   35,
			DipSignal:     45,
			ReversalSpark: 15,
			RiskRange:     10,
		},
		Quality: Quality{
			Caps: QualityCaps{
				CashFlow:      8,
				Profitability: 8,
				Leverage:      7,
				Valuation:     7,
				Margin:        5,
			},
			PEMultiplier:      1.2,
			DebtEBITDAMax:     3.0,
			ROEMin:            0.10,
			MarginMin:         0.05,
			GateFailThreshold: 2,
			MarginalCredit:    0.7,
			UnknownCredit:     0.5,
			DefaultSectorPE:   25,
			DefaultSectorFCF:  0,
			MinSectorPeers:    3,
		},
		Dip: Dip{
			Caps:          DipCaps{Drop: 15, RSI: 12, Volume: 10, MA: 8},
			DropBand:      Band{Low: 15, High: 40, OuterLow: 5, OuterHigh: 60},
			RSIBand:       Band{Low: 25, High: 35, OuterLow: 15, OuterHigh: 50},
			VolumeBand:    Band{Low: 1.5, High: 3.0, OuterLow: 1.0, OuterHigh: 5.0},
			RSIPeriod:     14,
			VolumeAvgDays: 20,
			SMAMedium:     50,
			SMALong:       200,
		},
		Reversal: Reversal{
			MACDCrossPoints:        6,
			CandlePoints:           5,
			EarningsSurprisePoints: 4,
			MACDLookbackBars:       5,
			CandleLookbackBars:     3,
			EarningsRecencyDays:    90,
		},
		Risk: Risk{
			SectorMultiplier:    1.1,
			ShortFloatThreshold: 0.20,
			ShortFloatPenalty:   3,
			BetaThreshold:       1.5,
			VolatilityThreshold: 25,
			HighBetaPenalty:     4,
			BlackoutDays:        3,
			VolatilitySymbol:    "^VIX",
			SectorETFs: map[string]string{
				"Technology":                    "XLK",
				"Semiconductors":                "SMH",
				"Financial Services":            "XLF",
				"Banking":                       "KBE",
				"Health Care":                   "XLV",
				"Pharmaceuticals":               "XLV",
				"Biotechnology":                 "XBI",
				"Energy":                        "XLE",
				"Utilities":                     "XLU",
				"Retail":                        "XRT",
				"Consumer products":             "XLP",
				"Media":                         "XLC",
				"Telecommunication":             "XLC",
				"Real Estate":                   "XLRE",
				"Machinery":                     "XLI",
				"Aerospace & Defense":           "ITA",
				"Chemicals":                     "XLB",
				"Metals & Mining":               "XME",
				"Hotels, Restaurants & Leisure": "PEJ",
			},
		},
		Grades: []Threshold{
			{Label: "D-", Min: 30},
			{Label: "D", Min: 35},
			{Label: "D+", Min: 40},
			{Label: "C-", Min: 45},
			{Label: "C", Min: 50},
			{Label: "C+", Min: 55},
			{Label: "B-", Min: 60},
			{Label: "B", Min: 65},
			{Label: "B+", Min: 70},
			{Label: "A-", Min: 75},
			{Label: "A", Min: 80},
			{Label: "A+", Min: 85},
		},
		FloorGrade: "F",
		Recommendations: []Threshold{
			{Label: string(contracts.RecWeak), Min: 40},
			{Label: string(contracts.RecWatch), Min: 50},
			{Label: string(contracts.RecBuy), Min: 70},
			{Label: string(contracts.RecStrongBuy), Min: 80},
		},
		FloorRec: string(contracts.RecAvoid),
		MasterList: MasterList{
			TTL:                30 * 24 * time.Hour,
			MinMarketCap:       1e8,
			MinAverageVolume:   100_000,
			AllowedExchanges:   []string{"NMS", "NYQ", "NGM"},
			PreferredExchanges: []string{"NMS", "NYQ"},
			PreferredBonus:     1.0,
			StandardBonus:      0.5,
			TargetSize:         2000,
		},
		Screening: Screening{
			TTL:                24 * time.Hour,
			DipHeuristicWeight: 2.0,
		},
		Cache: CacheTTLs{
			Universe:     7 * 24 * time.Hour,
			Profile:      30 * 24 * time.Hour,
			Quote:        24 * time.Hour,
			Fundamentals: 7 * 24 * time.Hour,
			Candles:      24 * time.Hour,
			Earnings:     7 * 24 * time.Hour,
			Calendar:     24 * time.Hour,
		},
		RateLimit: RateLimit{
			MinInterval:       1100 * time.Millisecond,
			MaxCallsPerMinute: 55,
		},
		Retry: Retry{
			MaxAttempts:  3,
			InitialDelay: 2 * time.Second,
			MaxDelay:     30 * time.Second,
		},
	}
}

// TTLFor returns the cache TTL of a data kind
func (p *Params) TTLFor(kind contracts.DataKind) time.Duration {
	switch kind {
	case contracts.KindUniverse:
		return p.Cache.Universe
	case contracts.KindProfile:
		return p.Cache.Profile
	case contracts.KindQuote:
		return p.Cache.Quote
	case contracts.KindFundamentals:
		return p.Cache.Fundamentals
	case contracts.KindCandles:
		return p.Cache.Candles
	case contracts.KindEarnings:
		return p.Cache.Earnings
	case contracts.KindCalendar:
		return p.Cache.Calendar
	}
	return p.Cache.Quote
}

// LayerWeights returns the effective quality, dip and reversal caps after
// optional normalization
func (p *Params) LayerWeights() (quality, dip, reversal float64) {
	quality, dip, reversal = p.Weights.QualityGate, p.Weights.DipSignal, p.Weights.ReversalSpark
	if !p.Weights.Normalize {
		return quality, dip, reversal
	}

	sum := quality + dip + reversal
	if sum <= 0 {
		return quality, dip, reversal
	}
	scale := (100 - p.Weights.RiskRange) / sum
	return quality * scale, dip * scale, reversal * scale
}

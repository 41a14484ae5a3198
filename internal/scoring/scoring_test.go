package scoring

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/scoringparams"
)

func fp(v float64) *float64 { return &v }
func ip(v int) *int         { return &v }
func bp(v bool) *bool       { return &v }

// textbookDip is a comfortable-quality symbol 31% off its high with an
// oversold RSI and a volume spike. Price 69 sits between SMA50 75 and
// SMA200 60, so the moving-average pullback adds its full 8 points; that is
// what lifts the composite from 72 (B+, BUY) to 80 (A, STRONG_BUY).
func textbookDip() contracts.Metrics {
	return contracts.Metrics{
		Name:             "Example Corp",
		Sector:           "Technology",
		Price:            69,
		High52W:          fp(100),
		PercentBelowHigh: fp(31),
		RSI14:            fp(28),
		SMA50:            fp(75),
		SMA200:           fp(60),
		VolumeRatio:      fp(2.1),
		PE:               fp(18),
		ROE:              fp(0.25),
		ProfitMargin:     fp(0.15),
		DebtToEBITDA:     fp(1.0),
		FreeCashFlow:     fp(5e8),
		FCFGrowth:        fp(0.12),
		Beta:             fp(1.1),
		ShortFloat:       fp(0.03),
	}
}

func neutralContext() contracts.MarketContext {
	return contracts.MarketContext{SectorPE: 25, SectorFCFGrowthMedian: 0.05, SectorPeers: 5}
}

func TestScore_TextbookDip(t *testing.T) {
	s := NewScorer(scoringparams.Default())

	eval := s.Score(textbookDip(), neutralContext())

	score, ok := eval.Result.Value()
	require.True(t, ok)
	assert.Equal(t, 80.0, score)
	assert.Equal(t, "A", eval.Grade)
	assert.Equal(t, contracts.RecStrongBuy, eval.Recommendation)

	assert.Equal(t, 35.0, eval.Layers.QualityGate)
	assert.Equal(t, 45.0, eval.Layers.DipSignal)
	assert.Equal(t, 0.0, eval.Layers.ReversalSpark)
	assert.Equal(t, 0.0, eval.Layers.RiskAdjustment)
	assert.Empty(t, eval.Layers.FailedChecks)
	assert.Empty(t, eval.DataIssues)
	assert.Equal(t, 15.0, eval.Layers.Components["dip.percent_below_high"])
	assert.Contains(t, eval.Layers.Triggers, "pullback_above_long_trend")
}

func TestScore_TextbookDipWithoutPullback(t *testing.T) {
	s := NewScorer(scoringparams.Default())

	m := textbookDip()
	m.SMA50 = fp(65)

	eval := s.Score(m, neutralContext())

	score, ok := eval.Result.Value()
	require.True(t, ok)
	assert.InDelta(t, 72.0, score, 0.01)
	assert.Equal(t, "B+", eval.Grade)
	assert.Equal(t, contracts.RecBuy, eval.Recommendation)

	assert.Equal(t, 37.0, eval.Layers.DipSignal)
	assert.Equal(t, 0.0, eval.Layers.Components["dip.moving_average"])
	assert.NotContains(t, eval.Layers.Triggers, "pullback_above_long_trend")
	assert.Empty(t, eval.DataIssues)
}

func TestScore_QualityGateExcludesDespiteExtremeDip(t *testing.T) {
	s := NewScorer(scoringparams.Default())

	m := textbookDip()
	m.FCFGrowth = fp(-0.30)
	m.FreeCashFlow = fp(-2e8)
	m.DebtToEBITDA = fp(6)
	m.MACDBullishCross = true
	m.ReversalPattern = "hammer"

	eval := s.Score(m, neutralContext())

	assert.Equal(t, contracts.Excluded(contracts.ReasonQualityGate), eval.Result)
	assert.False(t, eval.Result.IsScored())
	assert.ElementsMatch(t, []string{CheckCashFlow, CheckLeverage}, eval.Layers.FailedChecks)
	assert.Empty(t, eval.Grade)
	// the breakdown is still reported
	assert.Equal(t, 45.0, eval.Layers.DipSignal)
	assert.Equal(t, 11.0, eval.Layers.ReversalSpark)
}

func TestScore_SingleFailureIsNotExcluded(t *testing.T) {
	s := NewScorer(scoringparams.Default())

	m := textbookDip()
	m.DebtToEBITDA = fp(6)

	eval := s.Score(m, neutralContext())

	score, ok := eval.Result.Value()
	require.True(t, ok)
	assert.Equal(t, 73.0, score) // leverage cap of 7 lost
	assert.Equal(t, []string{CheckLeverage}, eval.Layers.FailedChecks)
}

func TestScore_EarningsBlackout(t *testing.T) {
	s := NewScorer(scoringparams.Default())

	tests := []struct {
		name     string
		days     *int
		excluded bool
	}{
		{"no calendar", nil, false},
		{"today", ip(0), true},
		{"in two days", ip(2), true},
		{"at window edge", ip(3), false},
		{"already reported", ip(-1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := textbookDip()
			m.DaysToEarnings = tt.days

			eval := s.Score(m, neutralContext())
			if tt.excluded {
				assert.Equal(t, contracts.Excluded(contracts.ReasonEarningsBlackout), eval.Result)
			} else {
				assert.True(t, eval.Result.IsScored())
			}
		})
	}
}

func TestScore_GateCheckedBeforeBlackout(t *testing.T) {
	s := NewScorer(scoringparams.Default())

	m := textbookDip()
	m.PE = fp(-4)
	m.ROE = fp(-0.1)
	m.DaysToEarnings = ip(1)

	eval := s.Score(m, neutralContext())
	assert.Equal(t, contracts.ReasonQualityGate, eval.Result.Reason)
}

func TestScore_UnknownInputsGetPartialCredit(t *testing.T) {
	s := NewScorer(scoringparams.Default())

	m := textbookDip()
	m.PE, m.ROE, m.ProfitMargin, m.DebtToEBITDA, m.FreeCashFlow, m.FCFGrowth = nil, nil, nil, nil, nil, nil

	eval := s.Score(m, neutralContext())

	assert.True(t, eval.Result.IsScored())
	assert.Equal(t, 17.5, eval.Layers.QualityGate)
	assert.Empty(t, eval.Layers.FailedChecks)
	assert.Len(t, eval.DataIssues, 5)
	assert.Contains(t, eval.DataIssues, "missing:pe")
}

func TestScore_MarginalValuation(t *testing.T) {
	s := NewScorer(scoringparams.Default())

	m := textbookDip()
	m.PE = fp(28)

	eval := s.Score(m, neutralContext())
	assert.InDelta(t, 4.9, eval.Layers.Components["quality.valuation"], 1e-9)

	// missing sector benchmark falls back to the default sector P/E
	mc := neutralContext()
	mc.SectorPE = 0
	eval = s.Score(m, mc)
	assert.InDelta(t, 4.9, eval.Layers.Components["quality.valuation"], 1e-9)
}

func TestScore_ReversalTriggers(t *testing.T) {
	s := NewScorer(scoringparams.Default())

	m := textbookDip()
	m.MACDBullishCross = true
	m.ReversalPattern = "bullish_engulfing"
	m.EarningsSurprisePct = fp(12)
	m.EarningsReportedDaysAgo = ip(20)

	eval := s.Score(m, neutralContext())

	assert.Equal(t, 15.0, eval.Layers.ReversalSpark)
	assert.Subset(t, eval.Layers.Triggers, []string{TriggerMACDCross, TriggerReversalCandle, TriggerEarningsSurprise})
	score, _ := eval.Result.Value()
	assert.Equal(t, 95.0, score)
	assert.Equal(t, "A+", eval.Grade)

	// a stale surprise does not count
	m.EarningsReportedDaysAgo = ip(200)
	eval = s.Score(m, neutralContext())
	assert.Equal(t, 11.0, eval.Layers.ReversalSpark)
}

func TestScore_RiskAdjustment(t *testing.T) {
	s := NewScorer(scoringparams.Default())

	t.Run("sector uptrend bonus", func(t *testing.T) {
		mc := neutralContext()
		mc.SectorUptrend = bp(true)

		eval := s.Score(textbookDip(), mc)
		assert.InDelta(t, 8.0, eval.Layers.RiskAdjustment, 1e-9)
		score, _ := eval.Result.Value()
		assert.InDelta(t, 88.0, score, 1e-9)
	})

	t.Run("short float and high beta penalties", func(t *testing.T) {
		m := textbookDip()
		m.ShortFloat = fp(0.35)
		m.Beta = fp(2.1)
		mc := neutralContext()
		mc.VolatilityIndex = fp(31)

		eval := s.Score(m, mc)
		assert.Equal(t, -7.0, eval.Layers.RiskAdjustment)
		assert.Contains(t, eval.Layers.Triggers, ModifierShortFloat)
		assert.Contains(t, eval.Layers.Triggers, ModifierHighBeta)
	})

	t.Run("clamped to range", func(t *testing.T) {
		p := scoringparams.Default()
		p.Risk.SectorMultiplier = 1.5
		mc := neutralContext()
		mc.SectorUptrend = bp(true)

		eval := NewScorer(p).Score(textbookDip(), mc)
		assert.Equal(t, 10.0, eval.Layers.RiskAdjustment)
	})
}

func TestScore_CompositeBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	randPtr := func(lo, hi float64) *float64 {
		if rng.Intn(6) == 0 {
			return nil
		}
		return fp(lo + rng.Float64()*(hi-lo))
	}

	for _, normalize := range []bool{false, true} {
		p := scoringparams.Default()
		p.Weights.Normalize = normalize
		p.Risk.SectorMultiplier = 1.3
		s := NewScorer(p)

		for n := 0; n < 2000; n++ {
			m := contracts.Metrics{
				Price:                   rng.Float64() * 500,
				PercentBelowHigh:        randPtr(0, 95),
				RSI14:                   randPtr(0, 100),
				SMA50:                   randPtr(1, 500),
				SMA200:                  randPtr(1, 500),
				VolumeRatio:             randPtr(0, 8),
				MACDBullishCross:        rng.Intn(2) == 0,
				EarningsSurprisePct:     randPtr(-50, 50),
				EarningsReportedDaysAgo: ip(rng.Intn(200)),
				PE:                      randPtr(-20, 80),
				ROE:                     randPtr(-0.5, 0.6),
				ProfitMargin:            randPtr(-0.3, 0.5),
				DebtToEBITDA:            randPtr(-2, 10),
				FreeCashFlow:            randPtr(-1e9, 1e9),
				FCFGrowth:               randPtr(-1, 1),
				Beta:                    randPtr(0, 3),
				ShortFloat:              randPtr(0, 0.5),
			}
			if rng.Intn(2) == 0 {
				m.ReversalPattern = "hammer"
			}
			mc := contracts.MarketContext{
				SectorPE:        20,
				SectorUptrend:   bp(rng.Intn(2) == 0),
				VolatilityIndex: randPtr(10, 45),
			}

			eval := s.Score(m, mc)
			assert.LessOrEqual(t, eval.Layers.QualityGate, 35.0+1e-9)
			assert.LessOrEqual(t, eval.Layers.DipSignal, 45.0+1e-9)
			assert.LessOrEqual(t, eval.Layers.ReversalSpark, 15.0+1e-9)
			assert.LessOrEqual(t, eval.Layers.RiskAdjustment, 10.0)
			assert.GreaterOrEqual(t, eval.Layers.RiskAdjustment, -10.0)

			if score, ok := eval.Result.Value(); ok {
				require.GreaterOrEqual(t, score, 0.0)
				require.LessOrEqual(t, score, 100.0)
			}
		}
	}
}

func TestScore_Deterministic(t *testing.T) {
	s := NewScorer(scoringparams.Default())
	m := textbookDip()
	m.MACDBullishCross = true

	first := s.Score(m, neutralContext())
	for n := 0; n < 10; n++ {
		assert.Equal(t, first, s.Score(m, neutralContext()))
	}
}

func TestBandScore(t *testing.T) {
	band := scoringparams.Band{Low: 15, High: 40, OuterLow: 5, OuterHigh: 60}

	assert.Equal(t, 1.0, BandScore(15, band))
	assert.Equal(t, 1.0, BandScore(40, band))
	assert.Equal(t, 0.5, BandScore(10, band))
	assert.Equal(t, 0.5, BandScore(50, band))
	assert.Equal(t, 0.0, BandScore(5, band))
	assert.Equal(t, 0.0, BandScore(2, band))
	assert.Equal(t, 0.0, BandScore(75, band))

	// strictly decreasing away from the band up to the outer bound
	prev := 1.0
	for v := 40.5; v < 60; v += 0.5 {
		got := BandScore(v, band)
		assert.Less(t, got, prev, "value %v", v)
		prev = got
	}
	prev = 1.0
	for v := 14.5; v > 5; v -= 0.5 {
		got := BandScore(v, band)
		assert.Less(t, got, prev, "value %v", v)
		prev = got
	}
}

func TestGradeAndRecommend(t *testing.T) {
	p := scoringparams.Default()

	tests := []struct {
		score float64
		grade string
		rec   contracts.Recommendation
	}{
		{100, "A+", contracts.RecStrongBuy},
		{85, "A+", contracts.RecStrongBuy},
		{80, "A", contracts.RecStrongBuy},
		{79.99, "A-", contracts.RecBuy},
		{70, "B+", contracts.RecBuy},
		{69.99, "B", contracts.RecWatch},
		{50, "C", contracts.RecWatch},
		{40, "D+", contracts.RecWeak},
		{30, "D-", contracts.RecAvoid},
		{29.99, "F", contracts.RecAvoid},
		{0, "F", contracts.RecAvoid},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.grade, Grade(tt.score, p), "grade for %v", tt.score)
		assert.Equal(t, tt.rec, Recommend(tt.score, p), "recommendation for %v", tt.score)
	}
}

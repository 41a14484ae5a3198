package s3_analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/scoringparams"
)

func series(values ...float64) []float64 { return values }

func TestSMA(t *testing.T) {
	avg := SMA(series(1, 2, 3, 4, 5), 2)
	require.NotNil(t, avg)
	assert.InDelta(t, 4.5, *avg, 1e-9)

	assert.Nil(t, SMA(series(1, 2), 3))
	assert.Nil(t, SMA(series(1, 2), 0))
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"only gains", series(1, 2, 3, 4, 5), 100},
		{"flat", series(5, 5, 5, 5, 5), 50},
		{"balanced", series(10, 11, 10, 11, 10), 50},
		{"mostly losses", series(10, 9, 8, 7, 8), 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi := RSI(tt.values, 4)
			require.NotNil(t, rsi)
			assert.InDelta(t, tt.want, *rsi, 1e-9)
		})
	}

	assert.Nil(t, RSI(series(1, 2, 3), 4), "needs period+1 values")
}

func TestEMA(t *testing.T) {
	ema := EMA(series(10, 20, 20), 3)
	require.Len(t, ema, 3)
	assert.InDelta(t, 10, ema[0], 1e-9, "seeded with the first value")
	assert.InDelta(t, 15, ema[1], 1e-9)
	assert.InDelta(t, 17.5, ema[2], 1e-9)
	assert.Nil(t, EMA(nil, 3))
}

func TestMACDBullishCross(t *testing.T) {
	// a long decline followed by a sharp rally turns MACD up through its signal
	var values []float64
	for i := 0; i < 60; i++ {
		values = append(values, 100-float64(i))
	}
	declining := append([]float64(nil), values...)
	for i := 0; i < 3; i++ {
		values = append(values, values[len(values)-1]+4)
	}

	assert.False(t, MACDBullishCross(declining, 5), "no cross in a steady decline")
	assert.True(t, MACDBullishCross(values, 5))
	assert.False(t, MACDBullishCross(values[:30], 5), "too short")
}

func TestVolumeRatio(t *testing.T) {
	candles := make([]contracts.Candle, 21)
	for i := range candles {
		candles[i].Volume = 1000
	}
	candles[20].Volume = 2100

	ratio := VolumeRatio(candles, 20)
	require.NotNil(t, ratio)
	assert.InDelta(t, 2.1, *ratio, 1e-9, "the latest bar is not part of the average")
	assert.Nil(t, VolumeRatio(candles[:10], 20))
}

func TestInUptrend(t *testing.T) {
	var rising []contracts.Candle
	for i := 0; i < 220; i++ {
		rising = append(rising, contracts.Candle{Close: 50 + float64(i)})
	}
	up := InUptrend(rising, 50, 200)
	require.NotNil(t, up)
	assert.True(t, *up)

	falling := make([]contracts.Candle, len(rising))
	for i := range rising {
		falling[len(rising)-1-i] = rising[i]
	}
	down := InUptrend(falling, 50, 200)
	require.NotNil(t, down)
	assert.False(t, *down)

	assert.Nil(t, InUptrend(rising[:100], 50, 200))
}

func TestCandlePatterns(t *testing.T) {
	hammer := contracts.Candle{Open: 99, Close: 100, High: 100.2, Low: 95}
	assert.True(t, IsHammer(hammer))
	assert.False(t, IsHammer(contracts.Candle{Open: 95, Close: 100, High: 100.5, Low: 94.5}))
	assert.False(t, IsHammer(contracts.Candle{Open: 100, Close: 100, High: 100, Low: 100}))

	down := contracts.Candle{Open: 100, Close: 97, High: 100.5, Low: 96.5}
	engulf := contracts.Candle{Open: 96.8, Close: 101, High: 101.2, Low: 96.6}
	assert.True(t, IsBullishEngulfing(down, engulf))
	assert.False(t, IsBullishEngulfing(engulf, down))

	plain := contracts.Candle{Open: 100, Close: 100.5, High: 101, Low: 99.5}
	assert.Equal(t, PatternBullishEngulfing, ReversalPattern([]contracts.Candle{plain, down, engulf}, 3))
	assert.Equal(t, PatternHammer, ReversalPattern([]contracts.Candle{hammer, plain, plain}, 3))
	assert.Equal(t, "", ReversalPattern([]contracts.Candle{hammer, plain, plain, plain}, 3), "outside the window")
}

func TestBuildMetrics(t *testing.T) {
	p := scoringparams.Default()
	asOf := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	high := 200.0
	pe := 18.0
	surprise := 6.5
	next := time.Date(2026, 3, 12, 21, 0, 0, 0, time.UTC)

	b := &Bundle{
		Profile:      &contracts.Profile{Name: "Acme", Sector: "Technology", MarketCap: 5e10},
		Quote:        &contracts.Quote{Price: 150},
		Fundamentals: &contracts.Fundamentals{PE: &pe, High52W: &high},
		Earnings: &contracts.EarningsHistory{Surprises: []contracts.EarningsSurprise{
			{Period: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)},
			{Period: time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), SurprisePercent: &surprise},
		}},
		Calendar: &contracts.EarningsCalendar{NextEarningsDate: &next},
	}

	m := BuildMetrics(b, p, asOf)
	assert.Equal(t, "Acme", m.Name)
	assert.Equal(t, 150.0, m.Price)
	require.NotNil(t, m.PercentBelowHigh)
	assert.InDelta(t, 25, *m.PercentBelowHigh, 1e-9)
	assert.Equal(t, &pe, m.PE)

	require.NotNil(t, m.EarningsSurprisePct)
	assert.Equal(t, 6.5, *m.EarningsSurprisePct, "the newest quarter with a surprise")
	require.NotNil(t, m.EarningsReportedDaysAgo)
	assert.Equal(t, 41, *m.EarningsReportedDaysAgo)
	require.NotNil(t, m.DaysToEarnings)
	assert.Equal(t, 10, *m.DaysToEarnings)

	assert.Nil(t, m.RSI14, "no candles, no technicals")
	assert.Nil(t, m.SMA50)
	assert.False(t, m.MACDBullishCross)
}

func TestBuildMetrics_HighFromCandles(t *testing.T) {
	p := scoringparams.Default()
	candles := []contracts.Candle{
		{High: 120, Close: 110},
		{High: 125, Close: 120},
		{High: 101, Close: 100},
	}
	m := BuildMetrics(&Bundle{Candles: &contracts.CandleSeries{Candles: candles}}, p, time.Now())

	assert.Equal(t, 100.0, m.Price, "falls back to the last close")
	require.NotNil(t, m.High52W)
	assert.Equal(t, 125.0, *m.High52W)
	require.NotNil(t, m.PercentBelowHigh)
	assert.InDelta(t, 20, *m.PercentBelowHigh, 1e-9)
}

func TestBackdrop(t *testing.T) {
	p := scoringparams.Default()
	bundle := func(sector string, pe, growth float64) *Bundle {
		return &Bundle{
			Profile:      &contracts.Profile{Sector: sector},
			Fundamentals: &contracts.Fundamentals{PE: &pe, FCFGrowth: &growth},
		}
	}

	bd := NewBackdrop([]*Bundle{
		bundle("Technology", 30, 0.10),
		bundle("Technology", 20, 0.02),
		bundle("Technology", 40, 0.06),
		bundle("Technology", -5, 0.20), // losses are not part of the P/E median
		bundle("Energy", 8, 0.01),
		nil,
	}, p)
	bd.SetSectorTrend("Technology", true)
	bd.SetVolatility(27)

	tech := bd.For("Technology")
	assert.Equal(t, 30.0, tech.SectorPE)
	assert.InDelta(t, 0.08, tech.SectorFCFGrowthMedian, 1e-9)
	assert.Equal(t, 4, tech.SectorPeers)
	require.NotNil(t, tech.SectorUptrend)
	assert.True(t, *tech.SectorUptrend)
	require.NotNil(t, tech.VolatilityIndex)
	assert.Equal(t, 27.0, *tech.VolatilityIndex)

	energy := bd.For("Energy")
	assert.Equal(t, p.Quality.DefaultSectorPE, energy.SectorPE, "too few peers")
	assert.Equal(t, p.Quality.DefaultSectorFCF, energy.SectorFCFGrowthMedian)
	assert.Nil(t, energy.SectorUptrend)
}

package fakemarket

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/wonny/dipscreener/internal/contracts"
)

// Stock describes one synthetic listing
type Stock struct {
	Ticker    string
	Name      string
	Sector    string
	Exchange  string
	MarketCap float64
	Volume    float64 // average daily shares
	Price     float64 // last close
	DropPct   float64 // percent below the 52-week high at the last bar

	Fundamentals contracts.Fundamentals

	SurprisePct     *float64
	ReportedDaysAgo int
	DaysToEarnings  *int
}

// bars is the history length served for every synthetic series
const bars = 260

// AddStock registers every kind for s, with a candle series that rallies to
// the high and then falls DropPct into the last bar at now
func (m *Market) AddStock(s Stock, now time.Time) {
	exchange := s.Exchange
	if exchange == "" {
		exchange = "NMS"
	}
	m.Set(s.Ticker, contracts.KindProfile, contracts.Profile{
		Symbol:    s.Ticker,
		Name:      s.Name,
		Exchange:  exchange,
		Currency:  "USD",
		Sector:    s.Sector,
		MarketCap: s.MarketCap,
	})

	series := Series(s.Ticker, s.Price, s.DropPct, s.Volume, now)
	last := series.Candles[len(series.Candles)-1]
	prev := series.Candles[len(series.Candles)-2]
	volume := last.Volume
	m.Set(s.Ticker, contracts.KindQuote, contracts.Quote{
		Price:     last.Close,
		PrevClose: prev.Close,
		Volume:    &volume,
		Timestamp: now.Unix(),
	})
	m.Set(s.Ticker, contracts.KindCandles, series)

	f := s.Fundamentals
	if f.High52W == nil {
		high := highOf(series)
		f.High52W = &high
	}
	if f.AvgVolume10D == nil && s.Volume > 0 {
		v := s.Volume
		f.AvgVolume10D = &v
	}
	m.Set(s.Ticker, contracts.KindFundamentals, f)

	history := contracts.EarningsHistory{}
	if s.SurprisePct != nil {
		history.Surprises = append(history.Surprises, contracts.EarningsSurprise{
			Period:          now.AddDate(0, 0, -s.ReportedDaysAgo),
			SurprisePercent: s.SurprisePct,
		})
	}
	m.Set(s.Ticker, contracts.KindEarnings, history)

	cal := contracts.EarningsCalendar{}
	if s.DaysToEarnings != nil {
		next := now.AddDate(0, 0, *s.DaysToEarnings)
		cal.NextEarningsDate = &next
	}
	m.Set(s.Ticker, contracts.KindCalendar, cal)
}

// Series builds a deterministic daily series ending at now's date
func Series(ticker string, price, dropPct, volume float64, now time.Time) contracts.CandleSeries {
	rng := rand.New(rand.NewSource(seedOf(ticker)))
	if price <= 0 {
		price = 100
	}
	if volume <= 0 {
		volume = 1e6
	}

	high := price / (1 - dropPct/100)
	peak := bars - 45
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	out := contracts.CandleSeries{Candles: make([]contracts.Candle, bars)}
	for i := 0; i < bars; i++ {
		var px float64
		if i <= peak {
			px = high * (0.7 + 0.3*float64(i)/float64(peak))
		} else {
			px = high - (high-price)*float64(i-peak)/float64(bars-1-peak)
		}
		noise := 1 + (rng.Float64()-0.5)*0.004
		if i == peak || i == bars-1 {
			noise = 1
		}
		px *= noise

		open := px * (1 + (rng.Float64()-0.5)*0.01)
		c := contracts.Candle{
			Date:   end.AddDate(0, 0, i-(bars-1)),
			Open:   open,
			High:   math.Max(open, px) * 1.003,
			Low:    math.Min(open, px) * 0.997,
			Close:  px,
			Volume: volume * (0.9 + 0.2*rng.Float64()),
		}
		if i == peak {
			c.High = high
		}
		out.Candles[i] = c
	}
	out.Candles[bars-1].Volume = volume * 1.8
	return out
}

// Seed fills the market with n synthetic listings under the exchange
// listing key, plus the sector ETFs and the volatility index
func (m *Market) Seed(exchange string, n int, seed int64, now time.Time, sectorETFs map[string]string, volatilitySymbol string) {
	rng := rand.New(rand.NewSource(seed))
	sectors := []string{"Technology", "Healthcare", "Financial Services", "Industrials", "Consumer Cyclical", "Energy"}

	listing := make([]contracts.ListedSecurity, 0, n)
	for i := 0; i < n; i++ {
		ticker := fmt.Sprintf("SYN%03d", i+1)
		listing = append(listing, contracts.ListedSecurity{
			Symbol:      ticker,
			Description: "SYNTHETIC " + ticker,
			Type:        "Common Stock",
			Exchange:    "XNAS",
			Currency:    "USD",
		})

		pe := 10 + rng.Float64()*30
		roe := rng.Float64() * 0.3
		margin := rng.Float64() * 0.25
		leverage := rng.Float64() * 4
		fcf := 1e8 + rng.Float64()*1e9
		growth := rng.Float64()*0.2 - 0.05
		beta := 0.6 + rng.Float64()
		short := rng.Float64() * 0.15

		m.AddStock(Stock{
			Ticker:    ticker,
			Name:      "Synthetic " + ticker,
			Sector:    sectors[rng.Intn(len(sectors))],
			MarketCap: math.Pow(10, 8.5+rng.Float64()*3),
			Volume:    math.Pow(10, 5+rng.Float64()*2),
			Price:     20 + rng.Float64()*200,
			DropPct:   rng.Float64() * 40,
			Fundamentals: contracts.Fundamentals{
				PE:           &pe,
				ROE:          &roe,
				ProfitMargin: &margin,
				DebtToEBITDA: &leverage,
				FreeCashFlow: &fcf,
				FCFGrowth:    &growth,
				Beta:         &beta,
				ShortFloat:   &short,
			},
		}, now)
	}
	m.Set(exchange, contracts.KindUniverse, listing)

	for _, etf := range sectorETFs {
		m.Set(etf, contracts.KindCandles, Series(etf, 100, 2, 5e6, now))
	}
	if volatilitySymbol != "" {
		m.Set(volatilitySymbol, contracts.KindQuote, contracts.Quote{Price: 18, PrevClose: 18.4, Timestamp: now.Unix()})
	}
}

func highOf(series contracts.CandleSeries) float64 {
	high := 0.0
	for _, c := range series.Candles {
		high = math.Max(high, c.High)
	}
	return high
}

func seedOf(ticker string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(ticker))
	return int64(h.Sum64() & math.MaxInt64)
}

package s2_screening

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/external/fakemarket"
	"github.com/wonny/dipscreener/internal/memstore"
	"github.com/wonny/dipscreener/internal/s0_fetch"
	"github.com/wonny/dipscreener/internal/scoringparams"
	"github.com/wonny/dipscreener/pkg/logger"
)

var now = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

type fixture struct {
	market   *fakemarket.Market
	store    *memstore.Store
	clock    *s0_fetch.FakeClock
	cache    *s0_fetch.Cache
	screener *Screener
}

func newFixture() *fixture {
	market := fakemarket.New()
	store := memstore.New()
	clock := s0_fetch.NewFakeClock(now)
	params := scoringparams.Default()
	limiter := s0_fetch.NewLimiter(params.RateLimit, clock)
	cache := s0_fetch.NewCache(store, market, limiter, clock, params.Retry, logger.Nop())

	return &fixture{
		market:   market,
		store:    store,
		clock:    clock,
		cache:    cache,
		screener: NewScreener(cache, store, store.Screening(), params, clock, logger.Nop()),
	}
}

func (f *fixture) master(t *testing.T, scores map[string]float64) *contracts.MasterListVersion {
	t.Helper()
	v := &contracts.MasterListVersion{
		VersionID: uuid.New(),
		BuiltAt:   f.clock.Now(),
		Excluded:  map[string]int{},
	}
	for ticker, score := range scores {
		v.Entries = append(v.Entries, contracts.MasterListEntry{
			Symbol:            contracts.Symbol{Ticker: ticker, Exchange: "NMS", Currency: "USD"},
			BasicQualityScore: score,
		})
	}
	require.NoError(t, f.store.SaveVersion(context.Background(), v))
	return v
}

// cacheDip stores a quote and fundamentals putting ticker pct below its high
func (f *fixture) cacheDip(t *testing.T, ticker string, pct float64) {
	t.Helper()
	high := 100.0
	f.market.Set(ticker, contracts.KindQuote, contracts.Quote{Price: high * (1 - pct/100)})
	f.market.Set(ticker, contracts.KindFundamentals, contracts.Fundamentals{High52W: &high})

	ctx := context.Background()
	_, err := f.cache.FetchAndCache(ctx, ticker, contracts.KindQuote, time.Hour)
	require.NoError(t, err)
	_, err = f.cache.FetchAndCache(ctx, ticker, contracts.KindFundamentals, time.Hour)
	require.NoError(t, err)
}

func TestScreener_RequiresMasterList(t *testing.T) {
	f := newFixture()

	_, outcome, err := f.screener.Screen(context.Background(), 10, false)
	assert.ErrorIs(t, err, contracts.ErrNoMasterList)
	assert.Equal(t, contracts.OutcomeFailed, outcome)
	assert.Zero(t, f.market.TotalCalls())
}

func TestScreener_RanksWithCachedDip(t *testing.T) {
	f := newFixture()
	master := f.master(t, map[string]float64{
		"AAA": 6.0,
		"BBB": 5.0,
		"CCC": 5.0,
		"DDD": 4.5,
		"EEE": 7.0,
	})
	f.cacheDip(t, "DDD", 25)  // inside the sweet spot: +2.0
	f.cacheDip(t, "BBB", 10)  // halfway to the outer bound: +1.0
	f.cacheDip(t, "EEE", 2.0) // outside the outer bound: +0
	calls := f.market.TotalCalls()

	version, outcome, err := f.screener.Screen(context.Background(), 4, false)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeSuccess, outcome)
	assert.Equal(t, calls, f.market.TotalCalls(), "screening never calls the provider")
	assert.Equal(t, master.VersionID, version.MasterVersionID)

	require.Len(t, version.Entries, 4)
	got := make([]string, 0, 4)
	for i, e := range version.Entries {
		assert.Equal(t, i+1, e.Rank)
		got = append(got, e.Ticker)
	}
	assert.Equal(t, []string{"EEE", "DDD", "AAA", "BBB"}, got)

	assert.InDelta(t, 6.5, version.Entries[1].ScreeningScore, 1e-9)
	require.NotNil(t, version.Entries[1].PercentBelowHigh)
	assert.InDelta(t, 25, *version.Entries[1].PercentBelowHigh, 1e-9)
	assert.Nil(t, version.Entries[2].PercentBelowHigh)
	assert.InDelta(t, 6.0, version.Entries[3].ScreeningScore, 1e-9)
}

func TestScreener_TieBreaks(t *testing.T) {
	f := newFixture()
	f.master(t, map[string]float64{"ZED": 5, "ABC": 5, "MID": 5.5})
	f.cacheDip(t, "MID", 2) // no heuristic, so scores tie only on basic quality

	version, _, err := f.screener.Screen(context.Background(), 10, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"MID", "ABC", "ZED"}, version.Tickers())
	assert.Len(t, version.Entries, 3, "min(n, |master|) entries")
}

func TestScreener_FreshReuse(t *testing.T) {
	f := newFixture()
	f.master(t, map[string]float64{"AAA": 5, "BBB": 4})
	ctx := context.Background()

	first, _, err := f.screener.Screen(ctx, 2, false)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	again, outcome, err := f.screener.Screen(ctx, 2, false)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeFresh, outcome)
	assert.Equal(t, first.VersionID, again.VersionID)

	other, outcome, err := f.screener.Screen(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeSuccess, outcome, "a different n is a different list")
	assert.NotEqual(t, first.VersionID, other.VersionID)

	forced, outcome, err := f.screener.Screen(ctx, 2, true)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeSuccess, outcome)
	assert.NotEqual(t, first.VersionID, forced.VersionID)

	// a newer master invalidates the list regardless of age
	f.master(t, map[string]float64{"CCC": 9})
	rebuilt, outcome, err := f.screener.Screen(ctx, 2, false)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeSuccess, outcome)
	assert.Equal(t, []string{"CCC"}, rebuilt.Tickers())

	f.clock.Advance(25 * time.Hour)
	_, outcome, err = f.screener.Screen(ctx, 2, false)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeSuccess, outcome, "past the TTL the list is rebuilt")
}

func TestScreener_InvalidTop(t *testing.T) {
	f := newFixture()
	_, outcome, err := f.screener.Screen(context.Background(), 0, false)
	assert.Error(t, err)
	assert.Equal(t, contracts.OutcomeFailed, outcome)
}

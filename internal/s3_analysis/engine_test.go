package s3_analysis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
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

func ptr(v float64) *float64 { return &v }

// healthy passes every quality check
func healthy() contracts.Fundamentals {
	return contracts.Fundamentals{
		PE:           ptr(15),
		ROE:          ptr(0.25),
		ProfitMargin: ptr(0.15),
		DebtToEBITDA: ptr(1.0),
		FreeCashFlow: ptr(5e8),
		FCFGrowth:    ptr(0.1),
		Beta:         ptr(1.1),
		ShortFloat:   ptr(0.02),
	}
}

// tripwire cancels a context once a number of calls went through
type tripwire struct {
	inner  contracts.Collaborator
	mu     sync.Mutex
	calls  int
	after  int
	cancel context.CancelFunc
}

func (t *tripwire) GetSnapshot(ctx context.Context, symbol string, kind contracts.DataKind) (json.RawMessage, error) {
	payload, err := t.inner.GetSnapshot(ctx, symbol, kind)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.cancel != nil && t.calls == t.after {
		t.cancel()
	}
	return payload, err
}

type fixture struct {
	market *fakemarket.Market
	store  *memstore.Store
	clock  *s0_fetch.FakeClock
	cache  *s0_fetch.Cache
	params *scoringparams.Params
	engine *Engine
}

func newFixture(t *testing.T, workers int, collab contracts.Collaborator, market *fakemarket.Market) *fixture {
	t.Helper()
	store := memstore.New()
	clock := s0_fetch.NewFakeClock(now)
	params := scoringparams.Default()
	limiter := s0_fetch.NewLimiter(params.RateLimit, clock)
	cache := s0_fetch.NewCache(store, collab, limiter, clock, params.Retry, logger.Nop())

	return &fixture{
		market: market,
		store:  store,
		clock:  clock,
		cache:  cache,
		params: params,
		engine: NewEngine(cache, store.Screening(), store, clock, workers, logger.Nop()),
	}
}

func (f *fixture) add(s fakemarket.Stock) {
	if s.Name == "" {
		s.Name = s.Ticker + " Corp"
	}
	if s.Sector == "" {
		s.Sector = "Technology"
	}
	s.MarketCap = 5e10
	s.Volume = 2e6
	if s.Price == 0 {
		s.Price = 80
	}
	if s.DropPct == 0 {
		s.DropPct = 25
	}
	f.market.AddStock(s, now)
}

// list saves a master list and a screening list holding tickers in order
func (f *fixture) list(t *testing.T, tickers ...string) *contracts.ScreeningListVersion {
	t.Helper()
	ctx := context.Background()

	master := &contracts.MasterListVersion{VersionID: uuid.New(), BuiltAt: now, Excluded: map[string]int{}}
	screening := &contracts.ScreeningListVersion{
		VersionID:       uuid.New(),
		Size:            len(tickers),
		MasterVersionID: master.VersionID,
		GeneratedAt:     now,
	}
	for i, ticker := range tickers {
		sym := contracts.Symbol{Ticker: ticker, Exchange: "NMS", Currency: "USD"}
		master.Entries = append(master.Entries, contracts.MasterListEntry{Symbol: sym, BasicQualityScore: 5})
		screening.Entries = append(screening.Entries, contracts.ScreeningListEntry{Symbol: sym, Rank: i + 1, BasicQualityScore: 5})
	}
	require.NoError(t, f.store.SaveVersion(ctx, master))
	require.NoError(t, f.store.Screening().SaveVersion(ctx, screening))
	return screening
}

func TestEngine_ScoresList(t *testing.T) {
	market := fakemarket.New()
	f := newFixture(t, 3, market, market)

	blackout := 1
	f.add(fakemarket.Stock{Ticker: "GOOD1", Fundamentals: healthy()})
	f.add(fakemarket.Stock{Ticker: "GOOD2", DropPct: 18, Fundamentals: healthy()})

	weak := healthy()
	weak.FCFGrowth = ptr(-0.2)
	weak.FreeCashFlow = ptr(-1e8)
	weak.DebtToEBITDA = ptr(6)
	weak.ROE = ptr(0.02)
	f.add(fakemarket.Stock{Ticker: "GATE", Fundamentals: weak})
	f.add(fakemarket.Stock{Ticker: "BLACK", Fundamentals: healthy(), DaysToEarnings: &blackout})

	f.list(t, "GOOD1", "GOOD2", "GATE", "BLACK", "GONE")

	summary, err := f.engine.Analyze(context.Background(), 5, f.params)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 2, summary.Scored)
	assert.Equal(t, 1, summary.ExcludedGate)
	assert.Equal(t, 1, summary.ExcludedBlackout)
	assert.Equal(t, 1, summary.ExcludedUnsupported)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.Pending)
	assert.Zero(t, summary.DataIssues)
	assert.False(t, summary.Resumed)
	assert.False(t, summary.Interrupted)
	assert.Equal(t, contracts.OutcomeSuccess, summary.Outcome())
	assert.Equal(t, int64(market.TotalCalls()), summary.Calls)

	// one refused profile call is all an unsupported symbol costs
	assert.Equal(t, 1, market.SymbolCalls("GONE"))
	assert.Equal(t, 6, market.SymbolCalls("GOOD1"))

	records, err := f.store.ListRecords(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.True(t, records[0].Result.IsScored())
	assert.True(t, records[1].Result.IsScored())
	assert.Equal(t, contracts.ReasonEarningsBlackout, records[2].Result.Reason)
	assert.Equal(t, contracts.ReasonQualityGate, records[3].Result.Reason)

	good, err := f.store.GetRecord(context.Background(), "GOOD1")
	require.NoError(t, err)
	assert.NotEmpty(t, good.Grade)
	assert.NotEmpty(t, good.Recommendation)
	assert.Equal(t, summary.RunID, good.RunID)
	assert.Equal(t, "NMS", good.Exchange)
	require.NotNil(t, good.Metrics.PercentBelowHigh)
	assert.InDelta(t, 25, *good.Metrics.PercentBelowHigh, 1.5)
	assert.Equal(t, 4, good.Context.SectorPeers)

	run, err := f.store.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, contracts.RunCompleted, run.Status)
}

func TestEngine_ResumesAfterCancel(t *testing.T) {
	market := fakemarket.New()
	wire := &tripwire{inner: market}
	f := newFixture(t, 1, wire, market)

	tickers := []string{"AAA", "BBB", "CCC", "DDD"}
	for _, ticker := range tickers {
		f.add(fakemarket.Stock{Ticker: ticker, Fundamentals: healthy()})
	}
	f.list(t, tickers...)

	// cancel right after the second symbol's last kind
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wire.cancel = cancel
	wire.after = 2 * len(contracts.BundleKinds)

	first, err := f.engine.Analyze(ctx, 4, f.params)
	require.NoError(t, err)
	assert.True(t, first.Interrupted)
	assert.Equal(t, 4, first.Pending)
	assert.Equal(t, contracts.OutcomePartial, first.Outcome())

	run, err := f.store.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, contracts.RunInterrupted, run.Status)

	second, err := f.engine.Analyze(context.Background(), 4, f.params)
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.False(t, second.Interrupted)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, 4, second.Scored)
	assert.Zero(t, second.Pending)

	// nothing fetched before the interruption is fetched again
	for _, ticker := range tickers {
		assert.Equal(t, len(contracts.BundleKinds), market.SymbolCalls(ticker), ticker)
	}

	progress, err := f.store.ListProgress(context.Background(), second.RunID)
	require.NoError(t, err)
	for _, p := range progress {
		assert.True(t, p.State.Terminal(), p.Symbol)
	}
}

func TestEngine_CompletedRunStartsFresh(t *testing.T) {
	market := fakemarket.New()
	f := newFixture(t, 2, market, market)
	f.add(fakemarket.Stock{Ticker: "AAA", Fundamentals: healthy()})
	f.list(t, "AAA")

	first, err := f.engine.Analyze(context.Background(), 1, f.params)
	require.NoError(t, err)
	calls := market.TotalCalls()

	second, err := f.engine.Analyze(context.Background(), 1, f.params)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.False(t, second.Resumed)
	assert.Zero(t, second.Calls, "everything is still cached")
	assert.Equal(t, calls, market.TotalCalls())
}

func TestEngine_TransientKindIsDataIssue(t *testing.T) {
	market := fakemarket.New()
	f := newFixture(t, 1, market, market)
	f.add(fakemarket.Stock{Ticker: "AAA", Fundamentals: healthy()})
	f.list(t, "AAA")

	outage := &contracts.TransientFetchError{Symbol: "AAA", Kind: contracts.KindEarnings, Err: errors.New("503")}
	market.Fail("AAA", contracts.KindEarnings, outage, outage, outage)

	summary, err := f.engine.Analyze(context.Background(), 1, f.params)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Scored)
	assert.Equal(t, 1, summary.DataIssues)
	assert.Equal(t, contracts.OutcomePartial, summary.Outcome())

	rec, err := f.store.GetRecord(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Contains(t, rec.DataIssues, "fetch_failed:earnings")
}

func TestEngine_AllFetchesFailed(t *testing.T) {
	market := fakemarket.New()
	f := newFixture(t, 1, market, market)
	f.add(fakemarket.Stock{Ticker: "AAA", Fundamentals: healthy()})
	f.list(t, "AAA")

	for _, kind := range contracts.BundleKinds {
		outage := &contracts.TransientFetchError{Symbol: "AAA", Kind: kind, Err: errors.New("connection refused")}
		market.Fail("AAA", kind, outage, outage, outage)
	}

	summary, err := f.engine.Analyze(context.Background(), 1, f.params)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, contracts.OutcomeFailed, summary.Outcome())

	_, err = f.store.GetRecord(context.Background(), "AAA")
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestEngine_Prerequisites(t *testing.T) {
	market := fakemarket.New()
	f := newFixture(t, 1, market, market)

	_, err := f.engine.Analyze(context.Background(), 5, f.params)
	assert.ErrorIs(t, err, contracts.ErrNoScreeningList)

	f.list(t, "AAA")
	bad := scoringparams.Default()
	bad.Weights.DipSignal = -5
	_, err = f.engine.Analyze(context.Background(), 1, bad)
	require.Error(t, err)
	assert.True(t, contracts.IsConfigurationError(err))

	assert.Zero(t, market.TotalCalls())
}

package brain

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/external/fakemarket"
	"github.com/wonny/dipscreener/internal/memstore"
	"github.com/wonny/dipscreener/internal/s0_fetch"
	"github.com/wonny/dipscreener/internal/s1_master"
	"github.com/wonny/dipscreener/internal/s2_screening"
	"github.com/wonny/dipscreener/internal/s3_analysis"
	"github.com/wonny/dipscreener/internal/scoringparams"
	"github.com/wonny/dipscreener/pkg/logger"
)

var now = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func newOrchestrator(t *testing.T, listed int) (*Orchestrator, *fakemarket.Market, *s0_fetch.FakeClock) {
	t.Helper()

	params := scoringparams.Default()
	market := fakemarket.New()
	market.Seed("US", listed, 7, now, params.Risk.SectorETFs, params.Risk.VolatilitySymbol)

	store := memstore.New()
	clock := s0_fetch.NewFakeClock(now)
	log := logger.Nop()
	limiter := s0_fetch.NewLimiter(params.RateLimit, clock)
	cache := s0_fetch.NewCache(store, market, limiter, clock, params.Retry, log)

	o := NewOrchestrator(
		cache,
		s1_master.NewBuilder(cache, store, params, clock, log),
		s2_screening.NewScreener(cache, store, store.Screening(), params, clock, log),
		s3_analysis.NewEngine(cache, store.Screening(), store, clock, 2, log),
		Stores{Cache: store, Masters: store, Screening: store.Screening(), Analysis: store},
		params,
		clock,
		"US",
		log,
	)
	return o, market, clock
}

func TestOrchestrator_Funnel(t *testing.T) {
	ctx := context.Background()
	o, market, clock := newOrchestrator(t, 12)

	status, err := o.Status(ctx, 5)
	require.NoError(t, err)
	assert.False(t, status.Master.Present)
	assert.Equal(t, "build-master-list", status.NextAction)
	assert.Nil(t, status.LastRun)

	_, _, err = o.Screen(ctx, 5, false)
	assert.ErrorIs(t, err, contracts.ErrNoMasterList)
	_, outcome, err := o.DeepAnalyze(ctx, 5, nil)
	assert.ErrorIs(t, err, contracts.ErrNoScreeningList)
	assert.Equal(t, contracts.OutcomeFailed, outcome)

	// Tier 1
	master, outcome, err := o.BuildMasterList(ctx, BuildRequest{})
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeSuccess, outcome)
	assert.Equal(t, 12, master.Count())

	calls := market.TotalCalls()
	again, outcome, err := o.BuildMasterList(ctx, BuildRequest{})
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeFresh, outcome)
	assert.Equal(t, master.VersionID, again.VersionID)
	assert.Equal(t, calls, market.TotalCalls(), "a fresh tier costs no calls")

	status, err = o.Status(ctx, 5)
	require.NoError(t, err)
	assert.True(t, status.Master.Fresh)
	assert.Equal(t, "screen --top 5", status.NextAction)

	// Tier 2
	list, outcome, err := o.Screen(ctx, 5, false)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeSuccess, outcome)
	assert.Len(t, list.Entries, 5)

	status, err = o.Status(ctx, 5)
	require.NoError(t, err)
	require.Len(t, status.Screening, 1)
	assert.True(t, status.Screening[0].Current)
	assert.Equal(t, 5, status.Screening[0].Entries)
	assert.Equal(t, "deep-analyze --top 5", status.NextAction)

	// Tier 3
	summary, outcome, err := o.DeepAnalyze(ctx, 5, nil)
	require.NoError(t, err)
	assert.NotEqual(t, contracts.OutcomeFailed, outcome)
	assert.Equal(t, 5, summary.Total)
	assert.Zero(t, summary.Pending)
	assert.Equal(t, 5, summary.Scored+summary.ExcludedGate+summary.ExcludedBlackout+summary.ExcludedUnsupported+summary.Failed)

	status, err = o.Status(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, contracts.RunCompleted, status.LastRun.Status)
	assert.Equal(t, "none: every tier is fresh", status.NextAction)
	assert.Positive(t, status.Cache.Entries)
	assert.Empty(t, status.Unsupported)

	records, err := o.Records(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, records, 5-summary.ExcludedUnsupported-summary.Failed)

	var buf bytes.Buffer
	rows, err := o.Export(ctx, &buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 4)

	rec, err := o.Record(ctx, strings.ToLower(records[0].Ticker))
	require.NoError(t, err)
	assert.Equal(t, records[0].Ticker, rec.Ticker)

	// a month later the master list has expired
	clock.Advance(31 * 24 * time.Hour)
	status, err = o.Status(ctx, 5)
	require.NoError(t, err)
	assert.False(t, status.Master.Fresh)
	assert.Equal(t, "build-master-list", status.NextAction)
}

func TestOrchestrator_UniverseFile(t *testing.T) {
	ctx := context.Background()
	o, market, _ := newOrchestrator(t, 6)

	path := filepath.Join(t.TempDir(), "universe.csv")
	require.NoError(t, os.WriteFile(path, []byte("symbol\nSYN001\nSYN002\n"), 0o644))

	master, outcome, err := o.BuildMasterList(ctx, BuildRequest{UniverseFile: path})
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeSuccess, outcome)
	assert.Equal(t, 2, master.UniverseSize)
	assert.Zero(t, market.Calls("US", contracts.KindUniverse), "the listing is not needed")
}

func TestOrchestrator_OfflineWithoutListing(t *testing.T) {
	o, market, _ := newOrchestrator(t, 3)

	_, outcome, err := o.BuildMasterList(context.Background(), BuildRequest{Offline: true})
	require.Error(t, err)
	assert.Equal(t, contracts.OutcomeFailed, outcome)
	assert.Zero(t, market.TotalCalls())
}

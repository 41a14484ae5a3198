// Package s1_master builds the Tier-1 master list: the investable base set
// filtered from the full universe on cheap attributes.
package s1_master

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/s0_fetch"
	"github.com/wonny/dipscreener/internal/scoringparams"
	"github.com/wonny/dipscreener/pkg/logger"
	"github.com/wonny/dipscreener/pkg/metrics"
)

// Exclusion reason codes
const (
	ReasonNoProfile = "no_profile"
	ReasonMarketCap = "market_cap"
	ReasonVolume    = "volume"
	ReasonExchange  = "exchange"
)

// BuildOptions control one Tier-1 build
type BuildOptions struct {
	Force   bool // rebuild even if the latest version is within TTL
	Offline bool // use cached profiles only, make no calls
}

// Builder constructs master list versions
type Builder struct {
	cache   *s0_fetch.Cache
	repo    contracts.MasterListRepository
	params  *scoringparams.Params
	clock   s0_fetch.Clock
	logger  *logger.Logger
	metrics *metrics.Recorder
}

// NewBuilder creates a new master list builder
func NewBuilder(cache *s0_fetch.Cache, repo contracts.MasterListRepository, params *scoringparams.Params, clock s0_fetch.Clock, log *logger.Logger) *Builder {
	return &Builder{
		cache:  cache,
		repo:   repo,
		params: params,
		clock:  clock,
		logger: log.WithStage(string(contracts.StageMaster)),
	}
}

// WithMetrics records the stage duration on m
func (b *Builder) WithMetrics(m *metrics.Recorder) *Builder {
	b.metrics = m
	return b
}

// Fresh returns the latest master list and whether it is within the Tier-1
// TTL. A missing list is not an error.
func (b *Builder) Fresh(ctx context.Context) (*contracts.MasterListVersion, bool, error) {
	latest, err := b.repo.LatestVersion(ctx)
	if errors.Is(err, contracts.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load latest master list: %w", err)
	}
	return latest, latest.Age(b.clock.Now()) < b.params.MasterList.TTL, nil
}

// candidate is the cheap attribute set of one symbol
type candidate struct {
	symbol        contracts.Symbol
	name          string
	sector        string
	marketCap     float64
	averageVolume float64
	exchange      string
}

// Build filters the universe into a new master list version.
// A version younger than the Tier-1 TTL is returned as-is with OutcomeFresh
// unless opts.Force is set.
// ⭐ SSOT: Tier 1 → Tier 2 master list generation
func (b *Builder) Build(ctx context.Context, universe []contracts.Symbol, opts BuildOptions) (*contracts.MasterListVersion, contracts.Outcome, error) {
	now := b.clock.Now()
	cfg := b.params.MasterList

	if !opts.Force {
		latest, fresh, err := b.Fresh(ctx)
		if err != nil {
			return nil, contracts.OutcomeFailed, err
		}
		if fresh {
			b.logger.WithFields(map[string]interface{}{
				"version_id": latest.VersionID.String(),
				"age":        latest.Age(now).Round(time.Minute).String(),
				"entries":    latest.Count(),
			}).Info("Master list is fresh, nothing to do")
			return latest, contracts.OutcomeFresh, nil
		}
	}

	universe = dedupe(universe)
	if len(universe) == 0 {
		return nil, contracts.OutcomeFailed, errors.New("universe is empty")
	}

	b.logger.WithFields(map[string]interface{}{
		"universe": len(universe),
		"offline":  opts.Offline,
		"force":    opts.Force,
	}).Info("Building master list")

	version := &contracts.MasterListVersion{
		VersionID:    uuid.New(),
		BuiltAt:      now,
		UniverseSize: len(universe),
		Criteria: contracts.MasterListCriteria{
			MinMarketCap:       cfg.MinMarketCap,
			MinAverageVolume:   cfg.MinAverageVolume,
			AllowedExchanges:   cfg.AllowedExchanges,
			PreferredExchanges: cfg.PreferredExchanges,
			TargetSize:         cfg.TargetSize,
		},
		Excluded: make(map[string]int),
	}

	fetchErrors := 0
	for i, sym := range universe {
		if err := ctx.Err(); err != nil {
			return nil, contracts.OutcomeFailed, err
		}

		c, err := b.collect(ctx, sym, opts.Offline)
		if err != nil {
			if !contracts.IsTransient(err) {
				return nil, contracts.OutcomeFailed, err
			}
			fetchErrors++
			b.logger.WithError(err).WithField("symbol", sym.Ticker).Warn("Profile fetch failed")
			version.Excluded[ReasonNoProfile]++
			continue
		}
		if c == nil {
			version.Excluded[ReasonNoProfile]++
			continue
		}

		if reason := b.checkExclusion(c); reason != "" {
			version.Excluded[reason]++
			continue
		}

		version.Entries = append(version.Entries, b.entry(c, now))

		if (i+1)%500 == 0 {
			b.logger.WithFields(map[string]interface{}{
				"processed": i + 1,
				"kept":      len(version.Entries),
			}).Info("Master list progress")
		}
	}

	if fetchErrors == len(universe) {
		return nil, contracts.OutcomeFailed, fmt.Errorf("all %d profile fetches failed", fetchErrors)
	}

	sortEntries(version.Entries)
	if cfg.TargetSize > 0 && len(version.Entries) > cfg.TargetSize {
		version.Entries = version.Entries[:cfg.TargetSize]
	}

	if err := b.repo.SaveVersion(ctx, version); err != nil {
		return nil, contracts.OutcomeFailed, fmt.Errorf("save master list: %w", err)
	}

	b.metrics.RecordStageDuration(string(contracts.StageMaster), b.clock.Now().Sub(now).Seconds())
	b.logger.WithFields(map[string]interface{}{
		"version_id":   version.VersionID.String(),
		"universe":     version.UniverseSize,
		"entries":      version.Count(),
		"excluded":     version.Excluded,
		"fetch_errors": fetchErrors,
	}).Info("Master list built")

	if fetchErrors > 0 {
		return version, contracts.OutcomePartial, nil
	}
	return version, contracts.OutcomeSuccess, nil
}

// collect reads the cheap kinds of one symbol. Returns nil when no usable
// profile exists.
func (b *Builder) collect(ctx context.Context, sym contracts.Symbol, offline bool) (*candidate, error) {
	profilePayload, err := b.read(ctx, sym.Ticker, contracts.KindProfile, offline)
	if err != nil || profilePayload == nil {
		return nil, err
	}

	var profile contracts.Profile
	ok, err := contracts.Decode(profilePayload, &profile)
	if err != nil || !ok || profile.Name == "" {
		return nil, nil
	}

	c := &candidate{
		symbol: contracts.Symbol{
			Ticker:   sym.Ticker,
			Exchange: NormalizeExchange(profile.Exchange),
			Currency: profile.Currency,
		},
		name:      profile.Name,
		sector:    profile.Sector,
		marketCap: profile.MarketCap,
	}
	if c.symbol.Exchange == "" {
		c.symbol.Exchange = NormalizeExchange(sym.Exchange)
	}
	if c.symbol.Currency == "" {
		c.symbol.Currency = "USD"
	}

	// fundamentals are only used when some earlier stage cached them
	var fundamentals contracts.Fundamentals
	if payload, err := b.cache.Get(ctx, sym.Ticker, contracts.KindFundamentals, b.params.Cache.Fundamentals, s0_fetch.AllowStale()); err == nil {
		if ok, _ := contracts.Decode(payload, &fundamentals); ok && fundamentals.AvgVolume10D != nil {
			c.averageVolume = *fundamentals.AvgVolume10D
			return c, nil
		}
	}

	quotePayload, err := b.read(ctx, sym.Ticker, contracts.KindQuote, offline)
	if err != nil {
		if errors.Is(err, contracts.ErrUnsupported) {
			return nil, nil
		}
		return nil, err
	}
	var quote contracts.Quote
	if ok, _ := contracts.Decode(quotePayload, &quote); ok && quote.Volume != nil {
		c.averageVolume = *quote.Volume
	}
	return c, nil
}

// read serves a kind from cache (stale allowed when offline) or fetches it.
// An unsupported symbol or an offline miss yields nil, nil.
func (b *Builder) read(ctx context.Context, ticker string, kind contracts.DataKind, offline bool) ([]byte, error) {
	ttl := b.params.TTLFor(kind)

	var (
		payload []byte
		err     error
	)
	if offline {
		payload, err = b.cache.Get(ctx, ticker, kind, ttl, s0_fetch.AllowStale())
		if errors.Is(err, contracts.ErrMiss) {
			return nil, nil
		}
	} else {
		payload, err = b.cache.Ensure(ctx, ticker, kind, ttl)
	}

	if errors.Is(err, contracts.ErrUnsupported) {
		return nil, nil
	}
	return payload, err
}

// checkExclusion returns the first failed hard filter, or ""
func (b *Builder) checkExclusion(c *candidate) string {
	cfg := b.params.MasterList

	if c.marketCap < cfg.MinMarketCap {
		return ReasonMarketCap
	}
	if c.averageVolume < cfg.MinAverageVolume {
		return ReasonVolume
	}
	if !contains(cfg.AllowedExchanges, c.symbol.Exchange) {
		return ReasonExchange
	}
	return ""
}

func (b *Builder) entry(c *candidate, builtAt time.Time) contracts.MasterListEntry {
	cfg := b.params.MasterList

	tier := contracts.TierStandard
	bonus := cfg.StandardBonus
	if contains(cfg.PreferredExchanges, c.symbol.Exchange) {
		tier = contracts.TierPreferred
		bonus = cfg.PreferredBonus
	}

	return contracts.MasterListEntry{
		Symbol:            c.symbol,
		Name:              c.name,
		Sector:            c.sector,
		MarketCap:         c.marketCap,
		AverageVolume:     c.averageVolume,
		ExchangeTier:      tier,
		BasicQualityScore: BasicQualityScore(c.marketCap, c.averageVolume, bonus),
		BuiltAt:           builtAt,
	}
}

// BasicQualityScore is the advisory size-and-liquidity score:
// min(5, log10(mc/1e8)) + min(3, log10(vol/1e5)) + exchange bonus,
// each log term floored at 0
func BasicQualityScore(marketCap, averageVolume, exchangeBonus float64) float64 {
	score := exchangeBonus
	if marketCap > 0 {
		score += math.Max(0, math.Min(5, math.Log10(marketCap/1e8)))
	}
	if averageVolume > 0 {
		score += math.Max(0, math.Min(3, math.Log10(averageVolume/1e5)))
	}
	return math.Round(score*1e4) / 1e4
}

// sortEntries orders by basic quality score desc, then ticker
func sortEntries(entries []contracts.MasterListEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].BasicQualityScore != entries[j].BasicQualityScore {
			return entries[i].BasicQualityScore > entries[j].BasicQualityScore
		}
		return entries[i].Ticker < entries[j].Ticker
	})
}

func dedupe(universe []contracts.Symbol) []contracts.Symbol {
	seen := make(map[string]struct{}, len(universe))
	out := make([]contracts.Symbol, 0, len(universe))
	for _, s := range universe {
		s.Ticker = contracts.NormalizeTicker(s.Ticker)
		if s.Ticker == "" {
			continue
		}
		if _, ok := seen[s.Ticker]; ok {
			continue
		}
		seen[s.Ticker] = struct{}{}
		out = append(out, s)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Package s2_screening ranks the pinned Tier-1 master list into top-N
// candidate lists using cached data only.
package s2_screening

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/s0_fetch"
	"github.com/wonny/dipscreener/internal/scoring"
	"github.com/wonny/dipscreener/internal/scoringparams"
	"github.com/wonny/dipscreener/pkg/logger"
	"github.com/wonny/dipscreener/pkg/metrics"
)

// Screener implements Tier 2
// ⭐ SSOT: screening_score is computed here only
type Screener struct {
	cache     *s0_fetch.Cache
	masters   contracts.MasterListRepository
	screening contracts.ScreeningRepository
	params    *scoringparams.Params
	clock     s0_fetch.Clock
	logger    *logger.Logger
	metrics   *metrics.Recorder
}

// NewScreener creates a new screener
func NewScreener(
	cache *s0_fetch.Cache,
	masters contracts.MasterListRepository,
	screening contracts.ScreeningRepository,
	params *scoringparams.Params,
	clock s0_fetch.Clock,
	log *logger.Logger,
) *Screener {
	return &Screener{
		cache:     cache,
		masters:   masters,
		screening: screening,
		params:    params,
		clock:     clock,
		logger:    log.WithStage(string(contracts.StageScreening)),
	}
}

// WithMetrics records the stage duration on m
func (s *Screener) WithMetrics(m *metrics.Recorder) *Screener {
	s.metrics = m
	return s
}

// Screen builds the top-n list from the latest master list. A list of the
// same size built from the same master version within the Tier-2 TTL is
// reused unless force is set.
func (s *Screener) Screen(ctx context.Context, n int, force bool) (*contracts.ScreeningListVersion, contracts.Outcome, error) {
	if n < 1 {
		return nil, contracts.OutcomeFailed, fmt.Errorf("top must be at least 1, got %d", n)
	}

	master, err := s.masters.LatestVersion(ctx)
	if errors.Is(err, contracts.ErrNotFound) {
		return nil, contracts.OutcomeFailed, contracts.ErrNoMasterList
	}
	if err != nil {
		return nil, contracts.OutcomeFailed, fmt.Errorf("load master list: %w", err)
	}

	now := s.clock.Now()
	if !force {
		prior, err := s.screening.LatestVersion(ctx, n)
		switch {
		case err == nil && prior.MasterVersionID == master.VersionID && prior.Age(now) < s.params.Screening.TTL:
			s.logger.WithFields(map[string]interface{}{
				"version_id": prior.VersionID.String(),
				"size":       n,
				"age":        prior.Age(now).Round(time.Minute).String(),
			}).Info("Screening list is fresh, nothing to do")
			return prior, contracts.OutcomeFresh, nil
		case err != nil && !errors.Is(err, contracts.ErrNotFound):
			return nil, contracts.OutcomeFailed, fmt.Errorf("load screening list: %w", err)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"master_version": master.VersionID.String(),
		"master_size":    master.Count(),
		"top":            n,
	}).Info("Screening master list")

	entries := make([]contracts.ScreeningListEntry, 0, master.Count())
	withDip := 0
	for _, m := range master.Entries {
		if err := ctx.Err(); err != nil {
			return nil, contracts.OutcomeFailed, err
		}

		drop, err := s.percentBelowHigh(ctx, m.Ticker)
		if err != nil {
			return nil, contracts.OutcomeFailed, err
		}

		heuristic := 0.0
		if drop != nil {
			withDip++
			heuristic = s.params.Screening.DipHeuristicWeight * scoring.BandScore(*drop, s.params.Dip.DropBand)
		}

		entries = append(entries, contracts.ScreeningListEntry{
			Symbol:            m.Symbol,
			ScreeningScore:    m.BasicQualityScore + heuristic,
			BasicQualityScore: m.BasicQualityScore,
			PercentBelowHigh:  drop,
		})
	}

	Rank(entries)
	if len(entries) > n {
		entries = entries[:n]
	}

	version := &contracts.ScreeningListVersion{
		VersionID:       uuid.New(),
		Size:            n,
		MasterVersionID: master.VersionID,
		GeneratedAt:     now,
		Entries:         entries,
	}
	if err := s.screening.SaveVersion(ctx, version); err != nil {
		return nil, contracts.OutcomeFailed, fmt.Errorf("save screening list: %w", err)
	}

	s.metrics.RecordStageDuration(string(contracts.StageScreening), s.clock.Now().Sub(now).Seconds())
	s.logger.WithFields(map[string]interface{}{
		"version_id": version.VersionID.String(),
		"size":       n,
		"entries":    len(entries),
		"with_dip":   withDip,
	}).Info("Screening list built")

	return version, contracts.OutcomeSuccess, nil
}

// percentBelowHigh reads cached quote and fundamentals, stale or not.
// Returns nil when either is missing.
func (s *Screener) percentBelowHigh(ctx context.Context, ticker string) (*float64, error) {
	var quote contracts.Quote
	ok, err := s.cached(ctx, ticker, contracts.KindQuote, &quote)
	if err != nil || !ok || quote.Price <= 0 {
		return nil, err
	}

	var fundamentals contracts.Fundamentals
	ok, err = s.cached(ctx, ticker, contracts.KindFundamentals, &fundamentals)
	if err != nil || !ok || fundamentals.High52W == nil || *fundamentals.High52W <= 0 {
		return nil, err
	}

	high := *fundamentals.High52W
	drop := (1 - quote.Price/high) * 100
	if drop < 0 {
		drop = 0
	}
	return &drop, nil
}

func (s *Screener) cached(ctx context.Context, ticker string, kind contracts.DataKind, v interface{}) (bool, error) {
	payload, err := s.cache.Get(ctx, ticker, kind, s.params.TTLFor(kind), s0_fetch.AllowStale())
	if errors.Is(err, contracts.ErrMiss) || errors.Is(err, contracts.ErrUnsupported) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ok, err := contracts.Decode(payload, v)
	if err != nil {
		// a corrupt cache entry only costs this symbol its heuristic
		s.logger.WithError(err).WithField("symbol", ticker).Warn("Unreadable cached payload")
		return false, nil
	}
	return ok, nil
}

// Rank sorts by screening score desc, basic quality desc, symbol asc and
// assigns contiguous 1-based ranks
func Rank(entries []contracts.ScreeningListEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ScreeningScore != b.ScreeningScore {
			return a.ScreeningScore > b.ScreeningScore
		}
		if a.BasicQualityScore != b.BasicQualityScore {
			return a.BasicQualityScore > b.BasicQualityScore
		}
		return a.Ticker < b.Ticker
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// Package brain coordinates the funnel tiers for every entry point: the CLI,
// the scheduler jobs and the HTTP API all drive the pipeline through the
// Orchestrator.
package brain

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/s0_fetch"
	"github.com/wonny/dipscreener/internal/s1_master"
	"github.com/wonny/dipscreener/internal/s2_screening"
	"github.com/wonny/dipscreener/internal/s3_analysis"
	"github.com/wonny/dipscreener/internal/scoringparams"
	"github.com/wonny/dipscreener/pkg/logger"
)

// Orchestrator coordinates the tier stages and their stores
// ⭐ SSOT: pipeline coordination happens here only
type Orchestrator struct {
	// Stage components
	cache    *s0_fetch.Cache
	builder  *s1_master.Builder
	screener *s2_screening.Screener
	engine   *s3_analysis.Engine

	// Repositories
	masters   contracts.MasterListRepository
	screening contracts.ScreeningRepository
	analysis  contracts.AnalysisRepository

	params   *scoringparams.Params
	clock    s0_fetch.Clock
	exchange string // provider listing used as the default universe
	logger   *logger.Logger
}

// Stores groups the durable repositories of every tier
type Stores struct {
	Cache     contracts.CacheStore
	Masters   contracts.MasterListRepository
	Screening contracts.ScreeningRepository
	Analysis  contracts.AnalysisRepository
}

// NewOrchestrator wires the stages over one cache
func NewOrchestrator(
	cache *s0_fetch.Cache,
	builder *s1_master.Builder,
	screener *s2_screening.Screener,
	engine *s3_analysis.Engine,
	stores Stores,
	params *scoringparams.Params,
	clock s0_fetch.Clock,
	exchange string,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		cache:     cache,
		builder:   builder,
		screener:  screener,
		engine:    engine,
		masters:   stores.Masters,
		screening: stores.Screening,
		analysis:  stores.Analysis,
		params:    params,
		clock:     clock,
		exchange:  exchange,
		logger:    log,
	}
}

// Params returns the default parameter bundle
func (o *Orchestrator) Params() *scoringparams.Params {
	return o.params
}

// BuildRequest selects how Tier 1 is rebuilt
type BuildRequest struct {
	Force        bool
	Offline      bool
	UniverseFile string // overrides the provider listing
}

// BuildMasterList runs Tier 1. A fresh master list short-circuits before
// the universe is loaded, so a no-op costs no calls.
func (o *Orchestrator) BuildMasterList(ctx context.Context, req BuildRequest) (*contracts.MasterListVersion, contracts.Outcome, error) {
	if !req.Force {
		latest, fresh, err := o.builder.Fresh(ctx)
		if err != nil {
			return nil, contracts.OutcomeFailed, err
		}
		if fresh {
			o.logger.WithField("version_id", latest.VersionID.String()).Info("Master list is fresh, nothing to do")
			return latest, contracts.OutcomeFresh, nil
		}
	}

	var (
		universe []contracts.Symbol
		err      error
	)
	if req.UniverseFile != "" {
		universe, err = s1_master.ReadUniverseFile(req.UniverseFile)
	} else {
		universe, err = s1_master.LoadUniverse(ctx, o.cache, o.params, o.exchange, req.Offline)
	}
	if err != nil {
		return nil, contracts.OutcomeFailed, fmt.Errorf("load universe: %w", err)
	}

	return o.builder.Build(ctx, universe, s1_master.BuildOptions{Force: true, Offline: req.Offline})
}

// Screen runs Tier 2 over the latest master list
func (o *Orchestrator) Screen(ctx context.Context, top int, force bool) (*contracts.ScreeningListVersion, contracts.Outcome, error) {
	return o.screener.Screen(ctx, top, force)
}

// DeepAnalyze runs Tier 3 over the latest top-N screening list. A nil
// params uses the default bundle.
func (o *Orchestrator) DeepAnalyze(ctx context.Context, top int, params *scoringparams.Params) (*contracts.RunSummary, contracts.Outcome, error) {
	if params == nil {
		params = o.params
	}

	summary, err := o.engine.Analyze(ctx, top, params)
	if err != nil {
		return summary, contracts.OutcomeFailed, err
	}
	return summary, summary.Outcome(), nil
}

// Records returns the current ranked records; limit <= 0 means all
func (o *Orchestrator) Records(ctx context.Context, limit int) ([]contracts.EnhancedRecord, error) {
	return o.analysis.ListRecords(ctx, limit)
}

// Record returns one symbol's current record
func (o *Orchestrator) Record(ctx context.Context, symbol string) (*contracts.EnhancedRecord, error) {
	return o.analysis.GetRecord(ctx, contracts.NormalizeTicker(symbol))
}

// MasterList returns the latest Tier-1 version
func (o *Orchestrator) MasterList(ctx context.Context) (*contracts.MasterListVersion, error) {
	v, err := o.masters.LatestVersion(ctx)
	if errors.Is(err, contracts.ErrNotFound) {
		return nil, contracts.ErrNoMasterList
	}
	return v, err
}

// ScreeningList returns the latest Tier-2 version of size top
func (o *Orchestrator) ScreeningList(ctx context.Context, top int) (*contracts.ScreeningListVersion, error) {
	v, err := o.screening.LatestVersion(ctx, top)
	if errors.Is(err, contracts.ErrNotFound) {
		return nil, contracts.ErrNoScreeningList
	}
	return v, err
}

// Export writes the top ranked records as CSV and returns how many rows
// were written
func (o *Orchestrator) Export(ctx context.Context, w io.Writer, top int) (int, error) {
	records, err := o.analysis.ListRecords(ctx, top)
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}
	if err := s3_analysis.WriteCSV(w, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

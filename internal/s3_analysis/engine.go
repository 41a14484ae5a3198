// Package s3_analysis runs Tier 3: it fetches the full bundle of every
// screened candidate through the cache and scores it with the composite
// scorer. Runs are resumable and survive cancellation.
package s3_analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/s0_fetch"
	"github.com/wonny/dipscreener/internal/scoring"
	"github.com/wonny/dipscreener/internal/scoringparams"
	"github.com/wonny/dipscreener/pkg/logger"
	"github.com/wonny/dipscreener/pkg/metrics"
)

// Engine orchestrates deep analysis runs
// ⭐ SSOT: Tier 3 run lifecycle and per-symbol state transitions
type Engine struct {
	cache     *s0_fetch.Cache
	screening contracts.ScreeningRepository
	repo      contracts.AnalysisRepository
	clock     s0_fetch.Clock
	workers   int
	logger    *logger.Logger
	metrics   *metrics.Recorder
}

// NewEngine creates a new deep analysis engine
func NewEngine(
	cache *s0_fetch.Cache,
	screening contracts.ScreeningRepository,
	repo contracts.AnalysisRepository,
	clock s0_fetch.Clock,
	workers int,
	log *logger.Logger,
) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		cache:     cache,
		screening: screening,
		repo:      repo,
		clock:     clock,
		workers:   workers,
		logger:    log.WithStage(string(contracts.StageAnalysis)),
	}
}

// WithMetrics records per-symbol outcomes and the stage duration on m
func (e *Engine) WithMetrics(m *metrics.Recorder) *Engine {
	e.metrics = m
	return e
}

// run is the working state of one Analyze call
type run struct {
	id      uuid.UUID
	params  *scoringparams.Params
	hash    string
	list    *contracts.ScreeningListVersion
	scorer  *scoring.Scorer
	persist context.Context

	mu     sync.Mutex
	states map[string]contracts.SymbolProgress
}

func (r *run) set(p contracts.SymbolProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[p.Symbol] = p
}

func (r *run) state(symbol string) contracts.SymbolProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[symbol]
}

// Analyze scores the latest top-n screening list with params. An unfinished
// run over the same list and params is resumed. Cancelling ctx stops the
// run after committing every finished symbol; the summary then reports
// Interrupted.
func (e *Engine) Analyze(ctx context.Context, n int, params *scoringparams.Params) (*contracts.RunSummary, error) {
	start := e.clock.Now()

	// configuration and prerequisites are checked before any call
	if err := scoringparams.Validate(params); err != nil {
		return nil, err
	}
	hash, err := scoringparams.Hash(params)
	if err != nil {
		return nil, fmt.Errorf("hash params: %w", err)
	}

	list, err := e.screening.LatestVersion(ctx, n)
	if errors.Is(err, contracts.ErrNotFound) {
		return nil, contracts.ErrNoScreeningList
	}
	if err != nil {
		return nil, fmt.Errorf("load screening list: %w", err)
	}

	r := &run{
		params:  params,
		hash:    hash,
		list:    list,
		scorer:  scoring.NewScorer(params),
		persist: context.WithoutCancel(ctx),
		states:  make(map[string]contracts.SymbolProgress, len(list.Entries)),
	}

	resumed, err := e.openRun(ctx, r)
	if err != nil {
		return nil, err
	}

	pending := make([]string, 0, len(list.Entries))
	for _, ticker := range list.Tickers() {
		if !r.state(ticker).State.Terminal() {
			pending = append(pending, ticker)
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"run_id":         r.id.String(),
		"screening_list": list.VersionID.String(),
		"params_hash":    scoringparams.ShortHash(hash),
		"symbols":        len(list.Entries),
		"pending":        len(pending),
		"resumed":        resumed,
		"workers":        e.workers,
	}).Info("Starting deep analysis")

	callsBefore := e.cache.Calls()

	// Phase A: fetch bundles with the worker pool
	bundles := e.fetchAll(ctx, r, pending)

	// Phase B: score locally, committing per symbol
	if ctx.Err() == nil {
		backdrop := e.backdrop(ctx, r, bundles)
		e.scoreAll(ctx, r, pending, bundles, backdrop)
	}

	summary := e.summarize(r)
	summary.Calls = e.cache.Calls() - callsBefore
	summary.Resumed = resumed
	summary.Interrupted = ctx.Err() != nil

	status := contracts.RunCompleted
	if summary.Interrupted || summary.Pending > 0 {
		status = contracts.RunInterrupted
	}
	if err := e.repo.FinishRun(r.persist, r.id, status, summary, e.clock.Now()); err != nil {
		return &summary, fmt.Errorf("finish run: %w", err)
	}

	e.metrics.RecordStageDuration(string(contracts.StageAnalysis), e.clock.Now().Sub(start).Seconds())
	e.logger.WithFields(map[string]interface{}{
		"run_id":               r.id.String(),
		"status":               status,
		"total":                summary.Total,
		"scored":               summary.Scored,
		"excluded_gate":        summary.ExcludedGate,
		"excluded_blackout":    summary.ExcludedBlackout,
		"excluded_unsupported": summary.ExcludedUnsupported,
		"failed":               summary.Failed,
		"pending":              summary.Pending,
		"data_issues":          summary.DataIssues,
		"calls":                summary.Calls,
	}).Info("Deep analysis finished")

	return &summary, nil
}

// openRun resumes an unfinished run over the same inputs or creates one
func (e *Engine) openRun(ctx context.Context, r *run) (bool, error) {
	body, err := json.Marshal(r.params)
	if err != nil {
		return false, fmt.Errorf("marshal params: %w", err)
	}
	if err := e.repo.SaveParameters(ctx, r.hash, r.params.Meta.Name, r.params.Meta.Version, body); err != nil {
		return false, fmt.Errorf("save params: %w", err)
	}

	existing, err := e.repo.FindResumableRun(ctx, r.list.VersionID, r.hash)
	switch {
	case err == nil:
		r.id = existing.RunID
		progress, err := e.repo.ListProgress(ctx, r.id)
		if err != nil {
			return false, fmt.Errorf("load run progress: %w", err)
		}
		for _, p := range progress {
			r.states[p.Symbol] = p
		}
		return true, nil

	case errors.Is(err, contracts.ErrNotFound):
		now := e.clock.Now()
		created := &contracts.AnalysisRun{
			RunID:              uuid.New(),
			ScreeningVersionID: r.list.VersionID,
			ParamsHash:         r.hash,
			Status:             contracts.RunRunning,
			StartedAt:          now,
		}
		if err := e.repo.CreateRun(ctx, created, r.list.Tickers()); err != nil {
			return false, fmt.Errorf("create run: %w", err)
		}
		r.id = created.RunID
		for _, ticker := range r.list.Tickers() {
			r.states[ticker] = contracts.SymbolProgress{Symbol: ticker, State: contracts.StatePending, UpdatedAt: now}
		}
		return false, nil

	default:
		return false, fmt.Errorf("find resumable run: %w", err)
	}
}

// fetchResult is one worker's output
type fetchResult struct {
	symbol string
	bundle *Bundle
}

// fetchAll runs phase A. Symbols still in flight when ctx is cancelled keep
// their non-terminal state and are picked up by the next run.
func (e *Engine) fetchAll(ctx context.Context, r *run, symbols []string) map[string]*Bundle {
	bundles := make(map[string]*Bundle, len(symbols))
	if len(symbols) == 0 {
		return bundles
	}

	symbolCh := make(chan string, len(symbols))
	resultCh := make(chan fetchResult, len(symbols))
	var wg sync.WaitGroup

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			e.fetchWorker(ctx, workerID, r, symbolCh, resultCh)
		}(i)
	}

	for _, s := range symbols {
		symbolCh <- s
	}
	close(symbolCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for res := range resultCh {
		bundles[res.symbol] = res.bundle
	}
	return bundles
}

func (e *Engine) fetchWorker(ctx context.Context, workerID int, r *run, symbolCh <-chan string, resultCh chan<- fetchResult) {
	for symbol := range symbolCh {
		select {
		case <-ctx.Done():
			return
		default:
		}

		e.transition(r, contracts.SymbolProgress{Symbol: symbol, State: contracts.StateFetching})

		bundle, err := e.fetchBundle(ctx, symbol, r.params)
		switch {
		case err == nil:
			e.transition(r, contracts.SymbolProgress{
				Symbol:     symbol,
				State:      contracts.StateFetched,
				DataIssues: bundle.Issues,
			})
			resultCh <- fetchResult{symbol: symbol, bundle: bundle}

		case ctx.Err() != nil:
			// left in fetching; its cached kinds are reused on resume
			return

		case errors.Is(err, contracts.ErrUnsupported):
			e.finish(r, contracts.SymbolProgress{
				Symbol: symbol,
				State:  contracts.StateExcluded,
				Reason: string(contracts.ReasonUnsupported),
			})

		default:
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"worker": workerID,
				"symbol": symbol,
			}).Error("Symbol fetch failed")
			issues := []string(nil)
			if bundle != nil {
				issues = bundle.Issues
			}
			e.finish(r, contracts.SymbolProgress{
				Symbol:     symbol,
				State:      contracts.StateFailed,
				Reason:     err.Error(),
				DataIssues: issues,
			})
		}
	}
}

// errAllKindsFailed fails a symbol whose every kind failed to fetch
var errAllKindsFailed = errors.New("fetch_failed: no kind could be fetched")

// fetchBundle ensures every bundle kind is cached. Transient failures after
// retries become data issues; an unsupported core kind aborts the symbol.
func (e *Engine) fetchBundle(ctx context.Context, symbol string, p *scoringparams.Params) (*Bundle, error) {
	b := &Bundle{Symbol: symbol}
	failed := 0

	for _, kind := range contracts.BundleKinds {
		payload, err := e.cache.Ensure(ctx, symbol, kind, p.TTLFor(kind))
		switch {
		case err == nil:
			ok, derr := b.decodeInto(kind, payload)
			if derr != nil {
				b.addIssue("malformed:" + string(kind))
			} else if !ok {
				b.addIssue("missing:" + string(kind))
			}

		case ctx.Err() != nil:
			return nil, ctx.Err()

		case errors.Is(err, contracts.ErrUnsupported):
			return nil, err

		case contracts.IsTransient(err):
			failed++
			b.addIssue("fetch_failed:" + string(kind))
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"symbol": symbol,
				"kind":   kind,
			}).Warn("Fetch failed after retries, continuing with partial data")

		default:
			return b, err
		}
	}

	if failed == len(contracts.BundleKinds) {
		return b, errAllKindsFailed
	}
	return b, nil
}

// loadCached rebuilds a bundle from the cache without calls
func (e *Engine) loadCached(ctx context.Context, symbol string, p *scoringparams.Params) *Bundle {
	b := &Bundle{Symbol: symbol}
	for _, kind := range []contracts.DataKind{contracts.KindProfile, contracts.KindFundamentals} {
		payload, err := e.cache.Get(ctx, symbol, kind, p.TTLFor(kind), s0_fetch.AllowStale())
		if err != nil {
			continue
		}
		_, _ = b.decodeInto(kind, payload)
	}
	return b
}

// backdrop computes sector medians over every candidate of the list and
// fetches the context kinds: sector ETF candles and the volatility quote
func (e *Engine) backdrop(ctx context.Context, r *run, bundles map[string]*Bundle) *Backdrop {
	all := make([]*Bundle, 0, len(r.list.Entries))
	sectors := make(map[string]struct{})
	for _, ticker := range r.list.Tickers() {
		b, ok := bundles[ticker]
		if !ok {
			st := r.state(ticker)
			if st.State == contracts.StateFailed || st.Reason == string(contracts.ReasonUnsupported) {
				continue
			}
			b = e.loadCached(ctx, ticker, r.params)
		}
		all = append(all, b)
		if b.Profile != nil && b.Profile.Sector != "" {
			sectors[b.Profile.Sector] = struct{}{}
		}
	}

	bd := NewBackdrop(all, r.params)
	risk := r.params.Risk
	dip := r.params.Dip

	sectorList := make([]string, 0, len(sectors))
	for s := range sectors {
		sectorList = append(sectorList, s)
	}
	sort.Strings(sectorList)

	for _, sector := range sectorList {
		etf, ok := risk.SectorETFs[sector]
		if !ok {
			continue
		}
		payload, err := e.cache.Ensure(ctx, etf, contracts.KindCandles, r.params.TTLFor(contracts.KindCandles))
		if err != nil {
			e.logger.WithError(err).WithField("etf", etf).Warn("Sector ETF unavailable")
			continue
		}
		var series contracts.CandleSeries
		if ok, _ := contracts.Decode(payload, &series); !ok {
			continue
		}
		if up := InUptrend(series.Candles, dip.SMAMedium, dip.SMALong); up != nil {
			bd.SetSectorTrend(sector, *up)
		}
	}

	if risk.VolatilitySymbol != "" {
		payload, err := e.cache.Ensure(ctx, risk.VolatilitySymbol, contracts.KindQuote, r.params.TTLFor(contracts.KindQuote))
		if err != nil {
			e.logger.WithError(err).WithField("symbol", risk.VolatilitySymbol).Warn("Volatility index unavailable")
		} else {
			var q contracts.Quote
			if ok, _ := contracts.Decode(payload, &q); ok && q.Price > 0 {
				bd.SetVolatility(q.Price)
			}
		}
	}

	return bd
}

// scoreAll runs phase B in list order, persisting each record immediately
func (e *Engine) scoreAll(ctx context.Context, r *run, symbols []string, bundles map[string]*Bundle, bd *Backdrop) {
	asOf := e.clock.Now()
	entries := make(map[string]contracts.Symbol, len(r.list.Entries))
	for _, en := range r.list.Entries {
		entries[en.Ticker] = en.Symbol
	}

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return
		}
		b, ok := bundles[symbol]
		if !ok {
			continue
		}

		m := BuildMetrics(b, r.params, asOf)
		mc := bd.For(m.Sector)
		eval := r.scorer.Score(m, mc)

		issues := append(append([]string(nil), b.Issues...), eval.DataIssues...)
		rec := &contracts.EnhancedRecord{
			Symbol:         entries[symbol],
			Metrics:        m,
			Context:        mc,
			Layers:         eval.Layers,
			Result:         eval.Result,
			Grade:          eval.Grade,
			Recommendation: eval.Recommendation,
			DataIssues:     issues,
			ParamsHash:     r.hash,
			RunID:          r.id,
			ComputedAt:     asOf,
		}

		progress := contracts.SymbolProgress{
			Symbol:     symbol,
			State:      contracts.StateScored,
			DataIssues: issues,
			UpdatedAt:  e.clock.Now(),
		}
		if !eval.Result.IsScored() {
			progress.State = contracts.StateExcluded
			progress.Reason = string(eval.Result.Reason)
		}

		if err := e.repo.SaveRecord(r.persist, r.id, rec, progress); err != nil {
			e.logger.WithError(err).WithField("symbol", symbol).Error("Failed to save record")
			continue
		}
		r.set(progress)
		e.metrics.RecordSymbolOutcome(string(progress.State), progress.Reason)

		e.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"state":  progress.State,
			"score":  eval.Result.Score,
			"grade":  eval.Grade,
		}).Debug("Symbol scored")
	}
}

// transition persists a non-terminal state change
func (e *Engine) transition(r *run, p contracts.SymbolProgress) {
	p.UpdatedAt = e.clock.Now()
	if err := e.repo.UpdateState(r.persist, r.id, p); err != nil {
		e.logger.WithError(err).WithField("symbol", p.Symbol).Warn("Failed to persist symbol state")
	}
	r.set(p)
}

// finish persists a terminal state reached without a record
func (e *Engine) finish(r *run, p contracts.SymbolProgress) {
	e.transition(r, p)
	e.metrics.RecordSymbolOutcome(string(p.State), p.Reason)
}

func (e *Engine) summarize(r *run) contracts.RunSummary {
	s := contracts.RunSummary{RunID: r.id, Total: len(r.list.Entries)}
	for _, ticker := range r.list.Tickers() {
		p := r.state(ticker)
		switch p.State {
		case contracts.StateScored:
			s.Scored++
		case contracts.StateExcluded:
			switch contracts.ExclusionReason(p.Reason) {
			case contracts.ReasonQualityGate:
				s.ExcludedGate++
			case contracts.ReasonEarningsBlackout:
				s.ExcludedBlackout++
			default:
				s.ExcludedUnsupported++
			}
		case contracts.StateFailed:
			s.Failed++
		default:
			s.Pending++
			continue
		}
		if len(p.DataIssues) > 0 {
			s.DataIssues++
		}
	}
	return s
}

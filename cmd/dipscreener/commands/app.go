package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wonny/dipscreener/internal/brain"
	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/external/fakemarket"
	"github.com/wonny/dipscreener/internal/external/finnhub"
	"github.com/wonny/dipscreener/internal/memstore"
	"github.com/wonny/dipscreener/internal/s0_fetch"
	"github.com/wonny/dipscreener/internal/s1_master"
	"github.com/wonny/dipscreener/internal/s2_screening"
	"github.com/wonny/dipscreener/internal/s3_analysis"
	"github.com/wonny/dipscreener/internal/scoringparams"
	"github.com/wonny/dipscreener/pkg/config"
	"github.com/wonny/dipscreener/pkg/database"
	"github.com/wonny/dipscreener/pkg/logger"
	"github.com/wonny/dipscreener/pkg/metrics"
	"github.com/wonny/dipscreener/pkg/redis"
)

// fakeSeed keeps the synthetic market identical between invocations
const fakeSeed = 42

// app holds every dependency a command needs. Nothing is global: each
// command builds one and closes it.
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	params       *scoringparams.Params
	registry     *prometheus.Registry // nil when metrics are disabled
	metrics      *metrics.Recorder
	clock        s0_fetch.Clock
	cache        *s0_fetch.Cache
	orchestrator *brain.Orchestrator

	closers []func()
}

// newApp wires config, logger, stores, collaborator, limiter, cache and
// the three tiers
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)
	a := &app{cfg: cfg, log: log}

	// 3. Load scoring parameters
	params, fromFile, err := scoringparams.LoadOrDefault(cfg.Pipeline.ParamsFile)
	if err != nil {
		return nil, fmt.Errorf("load params %s: %w", cfg.Pipeline.ParamsFile, err)
	}
	if !fromFile {
		log.WithField("path", cfg.Pipeline.ParamsFile).Warn("Parameter file not found, using defaults")
	}
	for _, w := range scoringparams.Warn(params) {
		log.WithField("code", w.Code).Warn(w.Message)
	}
	a.params = params

	// 4. Metrics
	if cfg.MetricsEnabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.metrics = metrics.New(a.registry)
	}

	// 5. Stores
	stores, err := a.openStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	// 6. Collaborator
	collab, exchange := a.collaborator()

	// 7. Rate limiter and cache
	clock := s0_fetch.RealClock()
	a.clock = clock
	limiter := s0_fetch.NewLimiter(params.RateLimit, clock).WithMetrics(a.metrics)
	if cfg.Redis.SharedRateLimit {
		rc, err := redis.New(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })

		limiter.WithShared(redis.NewRateLimiter(rc, redis.RateLimitConfig{
			Key:    cfg.Pipeline.Provider,
			Limit:  params.RateLimit.MaxCallsPerMinute,
			Window: time.Minute,
		}))
		log.Info("Using shared rate limit window")
	}
	a.cache = s0_fetch.NewCache(stores.Cache, collab, limiter, clock, params.Retry, log).WithMetrics(a.metrics)

	// 8. Tiers
	builder := s1_master.NewBuilder(a.cache, stores.Masters, params, clock, log).WithMetrics(a.metrics)
	screener := s2_screening.NewScreener(a.cache, stores.Masters, stores.Screening, params, clock, log).WithMetrics(a.metrics)
	engine := s3_analysis.NewEngine(a.cache, stores.Screening, stores.Analysis, clock, cfg.Pipeline.Workers, log).WithMetrics(a.metrics)

	a.orchestrator = brain.NewOrchestrator(a.cache, builder, screener, engine, stores, params, clock, exchange, log)
	return a, nil
}

// openStores connects Postgres (and applies the schema) or creates the
// in-memory store
func (a *app) openStores(ctx context.Context) (brain.Stores, error) {
	if a.cfg.StoreDriver == "memory" {
		a.log.Warn("Using the in-memory store; nothing is kept after this process exits")
		store := memstore.New()
		return brain.Stores{Cache: store, Masters: store, Screening: store.Screening(), Analysis: store}, nil
	}

	db, err := database.New(ctx, a.cfg)
	if err != nil {
		return brain.Stores{}, fmt.Errorf("connect to database: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	if err := db.Migrate(ctx); err != nil {
		return brain.Stores{}, fmt.Errorf("migrate schema: %w", err)
	}
	a.log.Debug("Connected to database")

	return brain.Stores{
		Cache:     s0_fetch.NewRepository(db.Pool),
		Masters:   s1_master.NewRepository(db.Pool),
		Screening: s2_screening.NewRepository(db.Pool),
		Analysis:  s3_analysis.NewRepository(db.Pool),
	}, nil
}

// collaborator returns the market data provider and the listing it serves
func (a *app) collaborator() (contracts.Collaborator, string) {
	exchange := a.cfg.Finnhub.Exchange
	if a.cfg.Pipeline.Provider != "fake" {
		return finnhub.NewClient(a.cfg.Finnhub, a.log), exchange
	}

	market := fakemarket.New()
	market.Seed(exchange, a.cfg.Pipeline.FakeListings, fakeSeed, time.Now(), a.params.Risk.SectorETFs, a.params.Risk.VolatilitySymbol)
	a.log.WithField("listings", a.cfg.Pipeline.FakeListings).Warn("Using the synthetic market provider")
	return market, exchange
}

// top resolves a --top flag against DEFAULT_TOP
func (a *app) top(flag int) int {
	if flag > 0 {
		return flag
	}
	return a.cfg.Pipeline.DefaultTop
}

// Close releases connections in reverse order of creation
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

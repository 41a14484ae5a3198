package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects pipeline metrics using Prometheus.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	collaboratorCalls *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	limiterWait       prometheus.Histogram
	symbolOutcomes    *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	cacheSize         *prometheus.GaugeVec
}

// New creates a recorder registered on reg
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		collaboratorCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dipscreener_collaborator_calls_total",
				Help: "Market data calls by data kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dipscreener_cache_lookups_total",
				Help: "Cache lookups by data kind and result",
			},
			[]string{"kind", "result"},
		),
		limiterWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dipscreener_rate_limiter_wait_seconds",
				Help:    "Time callers spent blocked on the rate limiter",
				Buckets: []float64{0, 0.1, 0.5, 1, 1.5, 2, 5, 10, 30, 60},
			},
		),
		symbolOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dipscreener_symbol_outcomes_total",
				Help: "Deep analysis results by terminal state and reason",
			},
			[]string{"state", "reason"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dipscreener_stage_duration_seconds",
				Help:    "Duration of funnel stages in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
			},
			[]string{"stage"},
		),
		cacheSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dipscreener_cache_size",
				Help: "Cache store size: entries, symbols and unsupported symbols",
			},
			[]string{"measure"},
		),
	}
}

// RecordCall records one collaborator call
func (r *Recorder) RecordCall(kind, outcome string) {
	if r == nil {
		return
	}
	r.collaboratorCalls.WithLabelValues(kind, outcome).Inc()
}

// RecordCacheLookup records a cache hit or miss
func (r *Recorder) RecordCacheLookup(kind string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordLimiterWait records time spent blocked on the rate limiter
func (r *Recorder) RecordLimiterWait(seconds float64) {
	if r == nil {
		return
	}
	r.limiterWait.Observe(seconds)
}

// RecordSymbolOutcome records a terminal per-symbol state
func (r *Recorder) RecordSymbolOutcome(state, reason string) {
	if r == nil {
		return
	}
	r.symbolOutcomes.WithLabelValues(state, reason).Inc()
}

// RecordStageDuration records how long a funnel stage ran
func (r *Recorder) RecordStageDuration(stage string, seconds float64) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordCacheSize publishes the cache store size
func (r *Recorder) RecordCacheSize(entries, symbols, unsupported int) {
	if r == nil {
		return
	}
	r.cacheSize.WithLabelValues("entries").Set(float64(entries))
	r.cacheSize.WithLabelValues("symbols").Set(float64(symbols))
	r.cacheSize.WithLabelValues("unsupported").Set(float64(unsupported))
}

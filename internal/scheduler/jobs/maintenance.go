package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/pkg/logger"
	"github.com/wonny/dipscreener/pkg/metrics"
)

// CacheStats is the part of the fetch cache the report reads
type CacheStats interface {
	Stats(ctx context.Context) (*contracts.CacheStats, error)
}

// CacheReportJob logs the cache size and publishes it as gauges
type CacheReportJob struct {
	cache   CacheStats
	metrics *metrics.Recorder
	logger  *logger.Logger
}

// NewCacheReportJob creates a new cache report job
func NewCacheReportJob(cache CacheStats, m *metrics.Recorder, log *logger.Logger) *CacheReportJob {
	return &CacheReportJob{
		cache:   cache,
		metrics: m,
		logger:  log,
	}
}

// Name returns the job name
func (j *CacheReportJob) Name() string {
	return "cache_report"
}

// Schedule returns the cron schedule (hourly)
func (j *CacheReportJob) Schedule() string {
	return "0 0 * * * *"
}

// Run reads the cache stats
func (j *CacheReportJob) Run(ctx context.Context) error {
	stats, err := j.cache.Stats(ctx)
	if err != nil {
		return fmt.Errorf("cache stats: %w", err)
	}

	j.metrics.RecordCacheSize(stats.Entries, stats.Symbols, stats.Unsupported)
	j.logger.WithFields(map[string]interface{}{
		"entries":     stats.Entries,
		"symbols":     stats.Symbols,
		"unsupported": stats.Unsupported,
	}).Debug("Cache report")
	return nil
}

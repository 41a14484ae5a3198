package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/dipscreener/internal/brain"
	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/scheduler"
	"github.com/wonny/dipscreener/internal/scoringparams"
	"github.com/wonny/dipscreener/pkg/logger"
)

// Pipeline is the part of brain.Orchestrator the jobs drive
type Pipeline interface {
	BuildMasterList(ctx context.Context, req brain.BuildRequest) (*contracts.MasterListVersion, contracts.Outcome, error)
	Screen(ctx context.Context, top int, force bool) (*contracts.ScreeningListVersion, contracts.Outcome, error)
	DeepAnalyze(ctx context.Context, top int, params *scoringparams.Params) (*contracts.RunSummary, contracts.Outcome, error)
}

// classify turns a stage error into a job error. Missing prerequisites and
// bad configuration are not retried.
func classify(err error) error {
	if errors.Is(err, contracts.ErrNoMasterList) ||
		errors.Is(err, contracts.ErrNoScreeningList) ||
		contracts.IsConfigurationError(err) {
		return scheduler.Permanent(err)
	}
	return err
}

// MasterListJob keeps Tier 1 within its TTL. A fresh list is a no-op.
// ⭐ SSOT: master list upkeep schedule lives in this job only
type MasterListJob struct {
	pipeline Pipeline
	schedule string
	logger   *logger.Logger
}

// NewMasterListJob creates a new master list job
func NewMasterListJob(p Pipeline, schedule string, log *logger.Logger) *MasterListJob {
	return &MasterListJob{
		pipeline: p,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *MasterListJob) Name() string {
	return "master_list"
}

// Schedule returns the cron schedule (default: Mondays 06:00)
func (j *MasterListJob) Schedule() string {
	return j.schedule
}

// Run executes the master list build
func (j *MasterListJob) Run(ctx context.Context) error {
	v, outcome, err := j.pipeline.BuildMasterList(ctx, brain.BuildRequest{})
	if err != nil {
		return classify(fmt.Errorf("build master list: %w", err))
	}

	j.logger.WithFields(map[string]interface{}{
		"outcome":    outcome.String(),
		"version_id": v.VersionID.String(),
		"entries":    v.Count(),
	}).Info("Scheduled master list finished")
	return nil
}

// ScreeningJob regenerates the top-N screening list daily
type ScreeningJob struct {
	pipeline Pipeline
	top      int
	schedule string
	logger   *logger.Logger
}

// NewScreeningJob creates a new screening job
func NewScreeningJob(p Pipeline, top int, schedule string, log *logger.Logger) *ScreeningJob {
	return &ScreeningJob{
		pipeline: p,
		top:      top,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *ScreeningJob) Name() string {
	return "screening"
}

// Schedule returns the cron schedule (default: weekdays after the close)
func (j *ScreeningJob) Schedule() string {
	return j.schedule
}

// Run executes the screening
func (j *ScreeningJob) Run(ctx context.Context) error {
	v, outcome, err := j.pipeline.Screen(ctx, j.top, false)
	if err != nil {
		return classify(fmt.Errorf("screen top %d: %w", j.top, err))
	}

	j.logger.WithFields(map[string]interface{}{
		"outcome":    outcome.String(),
		"version_id": v.VersionID.String(),
		"entries":    len(v.Entries),
	}).Info("Scheduled screening finished")
	return nil
}

// AnalysisJob runs (or resumes) deep analysis of the top-N list
type AnalysisJob struct {
	pipeline Pipeline
	top      int
	schedule string
	logger   *logger.Logger
}

// NewAnalysisJob creates a new deep analysis job
func NewAnalysisJob(p Pipeline, top int, schedule string, log *logger.Logger) *AnalysisJob {
	return &AnalysisJob{
		pipeline: p,
		top:      top,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *AnalysisJob) Name() string {
	return "deep_analysis"
}

// Schedule returns the cron schedule (default: weekdays after screening)
func (j *AnalysisJob) Schedule() string {
	return j.schedule
}

// Run executes the deep analysis. A partial run is logged, not retried:
// the next scheduled run resumes it.
func (j *AnalysisJob) Run(ctx context.Context) error {
	summary, outcome, err := j.pipeline.DeepAnalyze(ctx, j.top, nil)
	if err != nil {
		return classify(fmt.Errorf("deep analyze top %d: %w", j.top, err))
	}
	if outcome == contracts.OutcomeFailed {
		return fmt.Errorf("deep analysis failed for all %d symbols", summary.Total)
	}

	j.logger.WithFields(map[string]interface{}{
		"outcome":     outcome.String(),
		"scored":      summary.Scored,
		"excluded":    summary.ExcludedGate + summary.ExcludedBlackout + summary.ExcludedUnsupported,
		"failed":      summary.Failed,
		"data_issues": summary.DataIssues,
		"calls":       summary.Calls,
	}).Info("Scheduled deep analysis finished")
	return nil
}

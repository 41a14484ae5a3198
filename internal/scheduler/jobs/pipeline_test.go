package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/dipscreener/internal/brain"
	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/scheduler"
	"github.com/wonny/dipscreener/internal/scoringparams"
	"github.com/wonny/dipscreener/pkg/logger"
)

type stubPipeline struct {
	buildErr   error
	screenErr  error
	summary    contracts.RunSummary
	screenedAt int
}

func (s *stubPipeline) BuildMasterList(context.Context, brain.BuildRequest) (*contracts.MasterListVersion, contracts.Outcome, error) {
	if s.buildErr != nil {
		return nil, contracts.OutcomeFailed, s.buildErr
	}
	return &contracts.MasterListVersion{VersionID: uuid.New()}, contracts.OutcomeFresh, nil
}

func (s *stubPipeline) Screen(_ context.Context, top int, _ bool) (*contracts.ScreeningListVersion, contracts.Outcome, error) {
	if s.screenErr != nil {
		return nil, contracts.OutcomeFailed, s.screenErr
	}
	s.screenedAt = top
	return &contracts.ScreeningListVersion{VersionID: uuid.New(), Size: top}, contracts.OutcomeSuccess, nil
}

func (s *stubPipeline) DeepAnalyze(context.Context, int, *scoringparams.Params) (*contracts.RunSummary, contracts.Outcome, error) {
	summary := s.summary
	return &summary, summary.Outcome(), nil
}

func isPermanent(t *testing.T, err error) bool {
	t.Helper()
	s := scheduler.New(context.Background(), logger.Nop()).WithRetry(2, 0)
	runs := 0
	require.NoError(t, s.AddJob(&funcJob{run: func(context.Context) error { runs++; return err }}))
	require.NoError(t, s.RunJob("func"))
	s.Wait()
	return runs == 1
}

type funcJob struct {
	run func(context.Context) error
}

func (j *funcJob) Name() string                  { return "func" }
func (j *funcJob) Schedule() string              { return "@daily" }
func (j *funcJob) Run(ctx context.Context) error { return j.run(ctx) }

func TestMasterListJob(t *testing.T) {
	ok := NewMasterListJob(&stubPipeline{}, "0 0 6 * * 1", logger.Nop())
	assert.Equal(t, "master_list", ok.Name())
	assert.NoError(t, ok.Run(context.Background()), "a fresh list is a no-op")

	failing := NewMasterListJob(&stubPipeline{buildErr: errors.New("dial tcp: refused")}, "@weekly", logger.Nop())
	err := failing.Run(context.Background())
	require.Error(t, err)
	assert.False(t, isPermanent(t, err), "collaborator outages are retried")
}

func TestScreeningJob(t *testing.T) {
	p := &stubPipeline{}
	job := NewScreeningJob(p, 40, "0 30 21 * * 1-5", logger.Nop())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 40, p.screenedAt)

	p.screenErr = contracts.ErrNoMasterList
	err := job.Run(context.Background())
	assert.ErrorIs(t, err, contracts.ErrNoMasterList)
	assert.True(t, isPermanent(t, err))
}

func TestAnalysisJob(t *testing.T) {
	partial := NewAnalysisJob(&stubPipeline{summary: contracts.RunSummary{Total: 3, Scored: 2, Failed: 1}}, 3, "@daily", logger.Nop())
	assert.NoError(t, partial.Run(context.Background()), "partial runs resume next time")

	failed := NewAnalysisJob(&stubPipeline{summary: contracts.RunSummary{Total: 3, Failed: 3}}, 3, "@daily", logger.Nop())
	assert.Error(t, failed.Run(context.Background()))
}

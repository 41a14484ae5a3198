package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/dipscreener/pkg/logger"
)

// countingJob fails the first failures runs with err
type countingJob struct {
	name     string
	runs     atomic.Int32
	failures int32
	err      error
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return "0 0 6 * * 1" }

func (j *countingJob) Run(ctx context.Context) error {
	if j.runs.Add(1) <= j.failures {
		return j.err
	}
	return nil
}

func newScheduler(ctx context.Context) *Scheduler {
	return New(ctx, logger.Nop()).WithRetry(3, time.Millisecond)
}

func TestScheduler_RetriesTransientFailures(t *testing.T) {
	s := newScheduler(context.Background())
	job := &countingJob{name: "flaky", failures: 2, err: errors.New("connection reset")}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flaky"))
	s.Wait()

	history, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.True(t, history.Results[0].Success)
	assert.Equal(t, 3, history.Results[0].Attempts)
	assert.Equal(t, int32(3), job.runs.Load())
}

func TestScheduler_PermanentFailureIsNotRetried(t *testing.T) {
	s := newScheduler(context.Background())
	job := &countingJob{name: "broken", failures: 10, err: Permanent(errors.New("no master list"))}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("broken"))
	s.Wait()

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestScheduler_CancelledBaseStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(ctx, logger.Nop()).WithRetry(3, time.Hour)
	job := &countingJob{name: "interrupted", failures: 10, err: errors.New("context canceled")}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("interrupted"))
	s.Wait()
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestScheduler_Jobs(t *testing.T) {
	s := newScheduler(context.Background())
	require.NoError(t, s.AddJob(&countingJob{name: "a"}))
	assert.Error(t, s.AddJob(&countingJob{name: "a"}), "duplicate names are rejected")
	assert.Error(t, s.AddJob(&badSchedule{}))

	assert.ElementsMatch(t, []string{"a"}, s.GetAllJobs())
	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))
	assert.Error(t, s.RunJob("a"))
}

type badSchedule struct{}

func (badSchedule) Name() string                { return "bad" }
func (badSchedule) Schedule() string            { return "every tuesday" }
func (badSchedule) Run(_ context.Context) error { return nil }

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 105; i++ {
		h.AddResult(JobResult{Success: i%5 != 0})
	}
	assert.Len(t, h.Results, 100)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Len(t, h.GetFailedResults(), 20)
	assert.InDelta(t, 0.8, h.GetSuccessRate(), 1e-9)
}

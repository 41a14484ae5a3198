package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/dipscreener/internal/scheduler"
	"github.com/wonny/dipscreener/pkg/logger"
)

type idleJob struct{ name string }

func (j idleJob) Name() string                { return j.name }
func (j idleJob) Schedule() string            { return "0 0 6 * * 1" }
func (j idleJob) Run(_ context.Context) error { return nil }

func newIdleScheduler(t *testing.T, names ...string) *scheduler.Scheduler {
	t.Helper()
	sched := scheduler.New(context.Background(), logger.Nop())
	for _, name := range names {
		require.NoError(t, sched.AddJob(idleJob{name: name}))
	}
	return sched
}

func TestSkipJobs(t *testing.T) {
	sched := newIdleScheduler(t, "master_list", "screening", "cache_report")

	require.NoError(t, skipJobs(sched, []string{"master_list", " cache_report"}))
	assert.ElementsMatch(t, []string{"screening"}, sched.GetAllJobs())
}

func TestSkipJobsUnknownName(t *testing.T) {
	sched := newIdleScheduler(t, "screening")

	err := skipJobs(sched, []string{"screenning"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "screenning")
	assert.ElementsMatch(t, []string{"screening"}, sched.GetAllJobs())
}

func TestSkipJobsNone(t *testing.T) {
	sched := newIdleScheduler(t, "screening")

	require.NoError(t, skipJobs(sched, nil))
	assert.Len(t, sched.GetAllJobs(), 1)
}

package s0_fetch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/scoringparams"
)

var epoch = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

// releaseTimes runs n sequential waits and records when each was released
func releaseTimes(t *testing.T, l *Limiter, clock Clock, n int) []time.Time {
	t.Helper()
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		require.NoError(t, l.Wait(context.Background()))
		out = append(out, clock.Now())
	}
	return out
}

func TestLimiter_MinimumSpacing(t *testing.T) {
	clock := NewFakeClock(epoch)
	l := NewLimiter(scoringparams.RateLimit{MinInterval: 1100 * time.Millisecond, MaxCallsPerMinute: 1000}, clock)

	times := releaseTimes(t, l, clock, 10)

	assert.Equal(t, epoch, times[0], "first call is immediate")
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		assert.GreaterOrEqual(t, gap, 1100*time.Millisecond-time.Microsecond, "gap %d", i)
		assert.Less(t, gap, 1200*time.Millisecond, "gap %d", i)
	}
	assert.Equal(t, int64(10), l.Released())
}

func TestLimiter_RollingWindow(t *testing.T) {
	clock := NewFakeClock(epoch)
	l := NewLimiter(scoringparams.RateLimit{MaxCallsPerMinute: 5}, clock)

	times := releaseTimes(t, l, clock, 12)

	for i := 0; i < 5; i++ {
		assert.Equal(t, epoch, times[i])
	}
	assert.Equal(t, epoch.Add(time.Minute), times[5], "sixth call waits for the oldest to leave the window")
	assert.Equal(t, epoch.Add(2*time.Minute), times[10])

	// any 60s window holds at most 5 releases
	for i := range times {
		in := 0
		for _, other := range times[i:] {
			if other.Sub(times[i]) < time.Minute {
				in++
			}
		}
		assert.LessOrEqual(t, in, 5)
	}
}

func TestLimiter_DefaultBudget(t *testing.T) {
	clock := NewFakeClock(epoch)
	l := NewLimiter(scoringparams.Default().RateLimit, clock)

	times := releaseTimes(t, l, clock, 120)

	for i := range times {
		in := 0
		for _, other := range times[i:] {
			if other.Sub(times[i]) < time.Minute {
				in++
			}
		}
		require.LessOrEqual(t, in, 55, "window starting at call %d", i)
		if i > 0 {
			require.GreaterOrEqual(t, times[i].Sub(times[i-1]), 1100*time.Millisecond-time.Microsecond)
		}
	}
}

func TestLimiter_CancelledWaitChargesNothing(t *testing.T) {
	clock := NewFakeClock(epoch)
	l := NewLimiter(scoringparams.RateLimit{MaxCallsPerMinute: 2}, clock)

	releaseTimes(t, l, clock, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(2), l.Released())
	assert.Equal(t, 2, l.InWindow())
	assert.Equal(t, epoch, clock.Now(), "no time passes on a cancelled wait")
}

func TestLimiter_TryAcquire(t *testing.T) {
	clock := NewFakeClock(epoch)
	l := NewLimiter(scoringparams.RateLimit{MinInterval: time.Second, MaxCallsPerMinute: 10}, clock)
	ctx := context.Background()

	require.NoError(t, l.TryAcquire(ctx))

	err := l.TryAcquire(ctx)
	var exceeded *contracts.RateLimitExceeded
	require.ErrorAs(t, err, &exceeded)
	assert.InDelta(t, float64(time.Second), float64(exceeded.RetryAfter), float64(time.Millisecond))
	assert.Equal(t, int64(1), l.Released(), "refused acquisition is not charged")

	clock.Advance(time.Second)
	assert.NoError(t, l.TryAcquire(ctx))
}

func TestLimiter_ConcurrentCallers(t *testing.T) {
	clock := NewFakeClock(epoch)
	l := NewLimiter(scoringparams.RateLimit{MaxCallsPerMinute: 7}, clock)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		times []time.Time
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if err := l.Wait(context.Background()); err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				times = append(times, clock.Now())
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(20), l.Released())
	assert.Len(t, times, 20)
	assert.LessOrEqual(t, l.InWindow(), 7)
}

type stubShared struct {
	mu      sync.Mutex
	waits   int
	allowed bool
}

func (s *stubShared) Allow(context.Context) (bool, int, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.allowed {
		return false, 0, 3 * time.Second, nil
	}
	return true, 1, 0, nil
}

func (s *stubShared) Wait(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits++
	return nil
}

func TestLimiter_SharedWindow(t *testing.T) {
	clock := NewFakeClock(epoch)
	shared := &stubShared{}
	l := NewLimiter(scoringparams.RateLimit{MaxCallsPerMinute: 10}, clock).WithShared(shared)

	releaseTimes(t, l, clock, 3)
	assert.Equal(t, 3, shared.waits)

	var exceeded *contracts.RateLimitExceeded
	require.ErrorAs(t, l.TryAcquire(context.Background()), &exceeded)
	assert.Equal(t, 3*time.Second, exceeded.RetryAfter)
}

package s0_fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/scoringparams"
	"github.com/wonny/dipscreener/pkg/metrics"
)

// RollingWindow is the span over which MaxCallsPerMinute is counted
const RollingWindow = time.Minute

// SharedWindow is a call budget shared with other processes
// (pkg/redis.RateLimiter implements it)
type SharedWindow interface {
	Allow(ctx context.Context) (bool, int, time.Duration, error)
	Wait(ctx context.Context) error
}

// Limiter enforces a minimum spacing between calls and a maximum number of
// calls in any rolling window. A slot is charged only when a call is
// released; a cancelled wait charges nothing.
// ⭐ SSOT: every collaborator call passes through one Limiter
type Limiter struct {
	mu       sync.Mutex
	clock    Clock
	spacing  *rate.Limiter
	maxCalls int
	window   time.Duration
	released []time.Time // release times inside the window, oldest first
	total    int64

	shared  SharedWindow
	metrics *metrics.Recorder
}

// NewLimiter creates a limiter from the rate limit parameters
func NewLimiter(cfg scoringparams.RateLimit, clock Clock) *Limiter {
	every := rate.Inf
	if cfg.MinInterval > 0 {
		every = rate.Every(cfg.MinInterval)
	}

	return &Limiter{
		clock:    clock,
		spacing:  rate.NewLimiter(every, 1),
		maxCalls: cfg.MaxCallsPerMinute,
		window:   RollingWindow,
	}
}

// WithShared makes the limiter also draw from a cross-process window
func (l *Limiter) WithShared(w SharedWindow) *Limiter {
	l.shared = w
	return l
}

// WithMetrics records wait times on m
func (l *Limiter) WithMetrics(m *metrics.Recorder) *Limiter {
	l.metrics = m
	return l
}

// Wait blocks until a call may be released or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	start := l.clock.Now()

	for {
		delay, err := l.acquire(ctx)
		if err != nil {
			return err
		}
		if delay == 0 {
			break
		}
		if err := l.clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	if l.shared != nil {
		if err := l.shared.Wait(ctx); err != nil {
			return fmt.Errorf("shared rate limit: %w", err)
		}
	}

	l.metrics.RecordLimiterWait(l.clock.Now().Sub(start).Seconds())
	return nil
}

// TryAcquire releases a call only if no waiting is needed. Otherwise it
// returns *contracts.RateLimitExceeded with the time to wait.
func (l *Limiter) TryAcquire(ctx context.Context) error {
	delay, err := l.acquire(ctx)
	if err != nil {
		return err
	}
	if delay > 0 {
		return &contracts.RateLimitExceeded{RetryAfter: delay}
	}

	if l.shared != nil {
		allowed, _, retryAfter, err := l.shared.Allow(ctx)
		if err != nil {
			return fmt.Errorf("shared rate limit: %w", err)
		}
		if !allowed {
			return &contracts.RateLimitExceeded{RetryAfter: retryAfter}
		}
	}
	return nil
}

// acquire charges a slot and returns 0, or returns how long to wait
// without charging anything
func (l *Limiter) acquire(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.prune(now)

	var delay time.Duration
	if l.maxCalls > 0 && len(l.released) >= l.maxCalls {
		delay = l.released[0].Add(l.window).Sub(now)
	}

	r := l.spacing.ReserveN(now, 1)
	if !r.OK() {
		return 0, fmt.Errorf("rate limiter cannot reserve a call")
	}
	if d := r.DelayFrom(now); d > delay {
		delay = d
	}

	if delay > 0 {
		r.CancelAt(now)
		return delay, nil
	}

	l.released = append(l.released, now)
	l.total++
	return 0, nil
}

// prune drops release times that left the window
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.released) && !l.released[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.released = append(l.released[:0], l.released[i:]...)
	}
}

// Released returns how many calls the limiter has let through
func (l *Limiter) Released() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// InWindow returns how many calls are inside the current rolling window
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.clock.Now())
	return len(l.released)
}

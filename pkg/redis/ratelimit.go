package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims the window, then either records the call or reports
// how many milliseconds remain until the oldest call leaves the window.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window_ms)

	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry = tonumber(oldest[2]) + window_ms - now
	if retry < 1 then retry = 1 end
	return {0, 0, retry}
`)

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // Unique identifier of the budget (e.g. "finnhub")
	Limit  int           // Maximum calls inside Window
	Window time.Duration // Rolling window
}

// RateLimiter implements a sliding-window limiter shared by every process
// that points at the same Redis key.
type RateLimiter struct {
	client *Client
	cfg    RateLimitConfig
}

// NewRateLimiter creates a new shared limiter
func NewRateLimiter(client *Client, cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, cfg: cfg}
}

// Allow records a call if the window has room.
// Returns (allowed, remaining, retryAfter, error).
func (r *RateLimiter) Allow(ctx context.Context) (bool, int, time.Duration, error) {
	if !r.client.Enabled() {
		return true, r.cfg.Limit, 0, nil
	}

	now := time.Now().UnixMilli()
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()

	result, err := slidingWindow.Run(ctx, r.client.Redis(),
		[]string{r.client.Key("ratelimit", r.cfg.Key)},
		now,
		r.cfg.Window.Milliseconds(),
		r.cfg.Limit,
		member,
	).Int64Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("rate limit script failed: %w", err)
	}

	return result[0] == 1, int(result[1]), time.Duration(result[2]) * time.Millisecond, nil
}

// Wait blocks until a call is recorded or ctx is cancelled
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		allowed, _, retryAfter, err := r.Allow(ctx)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

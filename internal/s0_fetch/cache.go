// Package s0_fetch is the cache and rate-limited fetch layer. It is the
// single gatekeeper between the funnel and the market data provider.
package s0_fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/scoringparams"
	"github.com/wonny/dipscreener/pkg/httputil"
	"github.com/wonny/dipscreener/pkg/logger"
	"github.com/wonny/dipscreener/pkg/metrics"
)

var nullPayload = json.RawMessage("null")

type readOptions struct {
	allowStale bool
}

// ReadOption tunes a cache read
type ReadOption func(*readOptions)

// AllowStale serves an entry past its TTL instead of reporting a miss
func AllowStale() ReadOption {
	return func(o *readOptions) { o.allowStale = true }
}

// Cache stores external facts keyed by (symbol, kind, logical date) and
// meters every provider call through the limiter.
// ⭐ SSOT: collaborator calls happen only in FetchAndCache
type Cache struct {
	store   contracts.CacheStore
	collab  contracts.Collaborator
	limiter *Limiter
	clock   Clock
	retry   httputil.RetryConfig
	metrics *metrics.Recorder
	logger  *logger.Logger

	calls atomic.Int64
}

// NewCache creates the fetch layer
func NewCache(
	store contracts.CacheStore,
	collab contracts.Collaborator,
	limiter *Limiter,
	clock Clock,
	retry scoringparams.Retry,
	log *logger.Logger,
) *Cache {
	return &Cache{
		store:   store,
		collab:  collab,
		limiter: limiter,
		clock:   clock,
		retry: httputil.RetryConfig{
			MaxAttempts:  retry.MaxAttempts,
			InitialDelay: retry.InitialDelay,
			MaxDelay:     retry.MaxDelay,
		},
		logger: log.WithStage(string(contracts.StageFetch)),
	}
}

// WithMetrics records calls and cache lookups on m
func (c *Cache) WithMetrics(m *metrics.Recorder) *Cache {
	c.metrics = m
	return c
}

// Get returns the cached payload without calling the provider.
// Returns contracts.ErrMiss when absent or stale and contracts.ErrUnsupported
// for marked symbols. A kind the provider cannot serve reads as JSON null.
func (c *Cache) Get(ctx context.Context, symbol string, kind contracts.DataKind, ttl time.Duration, opts ...ReadOption) (json.RawMessage, error) {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}

	unsupported, err := c.store.IsUnsupported(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("check unsupported %s: %w", symbol, err)
	}
	if unsupported {
		return nil, contracts.ErrUnsupported
	}

	entry, err := c.store.Latest(ctx, symbol, kind)
	if errors.Is(err, contracts.ErrNotFound) {
		c.metrics.RecordCacheLookup(string(kind), false)
		return nil, contracts.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read cache %s/%s: %w", symbol, kind, err)
	}

	if !o.allowStale && entry.IsStale(c.clock.Now(), ttl) {
		c.metrics.RecordCacheLookup(string(kind), false)
		return nil, contracts.ErrMiss
	}

	c.metrics.RecordCacheLookup(string(kind), true)
	if len(entry.Payload) == 0 {
		return nullPayload, nil
	}
	return entry.Payload, nil
}

// FetchAndCache calls the provider (waiting on the limiter before every
// attempt), stores the payload under today's logical date and returns it.
// Transient failures are retried with bounded exponential backoff.
func (c *Cache) FetchAndCache(ctx context.Context, symbol string, kind contracts.DataKind, ttl time.Duration) (json.RawMessage, error) {
	unsupported, err := c.store.IsUnsupported(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("check unsupported %s: %w", symbol, err)
	}
	if unsupported {
		return nil, contracts.ErrUnsupported
	}

	maxAttempts := c.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		c.calls.Add(1)
		payload, err := c.collab.GetSnapshot(ctx, symbol, kind)
		if err == nil && !json.Valid(payload) {
			err = &contracts.TransientFetchError{Symbol: symbol, Kind: kind, Err: errors.New("malformed payload")}
		}

		switch {
		case err == nil:
			c.metrics.RecordCall(string(kind), "ok")
			if err := c.put(ctx, symbol, kind, payload, ttl); err != nil {
				return nil, err
			}
			return payload, nil

		case errors.Is(err, contracts.ErrUnsupported):
			c.metrics.RecordCall(string(kind), "unsupported")
			return c.handleUnsupported(ctx, symbol, kind, ttl, err)

		case ctx.Err() != nil:
			return nil, ctx.Err()

		case contracts.IsTransient(err):
			c.metrics.RecordCall(string(kind), "transient")
			lastErr = err
			if attempt == maxAttempts {
				break
			}

			backoff := c.retry.Backoff(attempt)
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"symbol":  symbol,
				"kind":    kind,
				"attempt": attempt,
				"backoff": backoff.String(),
			}).Warn("Transient fetch failure, retrying")

			if err := c.clock.Sleep(ctx, backoff); err != nil {
				return nil, err
			}

		default:
			c.metrics.RecordCall(string(kind), "error")
			var unknown *contracts.UnknownFetchError
			if errors.As(err, &unknown) {
				return nil, err
			}
			return nil, &contracts.UnknownFetchError{Symbol: symbol, Kind: kind, Err: err}
		}
	}

	var inner error = lastErr
	var transient *contracts.TransientFetchError
	if errors.As(lastErr, &transient) {
		inner = transient.Err
	}
	return nil, &contracts.TransientFetchError{Symbol: symbol, Kind: kind, Attempts: maxAttempts, Err: inner}
}

// Ensure serves a fresh cached payload or fetches it
func (c *Cache) Ensure(ctx context.Context, symbol string, kind contracts.DataKind, ttl time.Duration) (json.RawMessage, error) {
	payload, err := c.Get(ctx, symbol, kind, ttl)
	if err == nil {
		return payload, nil
	}
	if !errors.Is(err, contracts.ErrMiss) {
		return nil, err
	}
	return c.FetchAndCache(ctx, symbol, kind, ttl)
}

// MarkUnsupported persists a permanent refusal; later fetches short-circuit
func (c *Cache) MarkUnsupported(ctx context.Context, symbol, reason string) error {
	if err := c.store.MarkUnsupported(ctx, contracts.UnsupportedSymbol{
		Symbol:   symbol,
		Reason:   reason,
		MarkedAt: c.clock.Now(),
	}); err != nil {
		return fmt.Errorf("mark %s unsupported: %w", symbol, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"reason": reason,
	}).Info("Symbol marked unsupported")
	return nil
}

// Calls returns how many provider calls this cache has made
func (c *Cache) Calls() int64 {
	return c.calls.Load()
}

// Stats summarizes the underlying store
func (c *Cache) Stats(ctx context.Context) (*contracts.CacheStats, error) {
	return c.store.Stats(ctx)
}

// Unsupported lists every marked symbol
func (c *Cache) Unsupported(ctx context.Context) ([]contracts.UnsupportedSymbol, error) {
	return c.store.ListUnsupported(ctx)
}

// handleUnsupported marks the symbol when a core kind is refused. An
// optional kind is cached as null so it is not retried within its TTL.
func (c *Cache) handleUnsupported(ctx context.Context, symbol string, kind contracts.DataKind, ttl time.Duration, cause error) (json.RawMessage, error) {
	if kind.IsCore() || kind == contracts.KindUniverse {
		reason := cause.Error()
		var perm *contracts.PermanentUnsupported
		if errors.As(cause, &perm) && perm.Reason != "" {
			reason = fmt.Sprintf("%s: %s", kind, perm.Reason)
		}
		if err := c.MarkUnsupported(ctx, symbol, reason); err != nil {
			return nil, err
		}
		return nil, cause
	}

	if err := c.put(ctx, symbol, kind, nullPayload, ttl); err != nil {
		return nil, err
	}
	return nullPayload, nil
}

func (c *Cache) put(ctx context.Context, symbol string, kind contracts.DataKind, payload json.RawMessage, ttl time.Duration) error {
	now := c.clock.Now()
	entry := contracts.CacheEntry{
		Symbol:      symbol,
		Kind:        kind,
		LogicalDate: LogicalDate(now),
		Payload:     payload,
		FetchedAt:   now,
		TTL:         ttl,
	}
	if err := c.store.Put(ctx, entry); err != nil {
		return fmt.Errorf("store %s/%s: %w", symbol, kind, err)
	}
	return nil
}

// LogicalDate is the UTC calendar day a fetch belongs to
func LogicalDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

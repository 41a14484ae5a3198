package contracts

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors
var (
	ErrMiss            = errors.New("cache miss")
	ErrUnsupported     = errors.New("symbol unsupported by market data provider")
	ErrNotFound        = errors.New("not found")
	ErrNoMasterList    = errors.New("no master list available; run build-master-list first")
	ErrNoScreeningList = errors.New("no screening list available; run screen first")
)

// TransientFetchError covers timeouts, throttling, 5xx and malformed bodies.
// The fetch layer retries it with backoff.
type TransientFetchError struct {
	Symbol   string
	Kind     DataKind
	Attempts int
	Err      error
}

func (e *TransientFetchError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("transient fetch error for %s/%s after %d attempts: %v", e.Symbol, e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("transient fetch error for %s/%s: %v", e.Symbol, e.Kind, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// PermanentUnsupported means the provider cannot serve this symbol (or kind)
type PermanentUnsupported struct {
	Symbol string
	Kind   DataKind
	Reason string
}

func (e *PermanentUnsupported) Error() string {
	return fmt.Sprintf("%s/%s unsupported: %s", e.Symbol, e.Kind, e.Reason)
}

// Is lets errors.Is(err, ErrUnsupported) match
func (e *PermanentUnsupported) Is(target error) bool {
	return target == ErrUnsupported
}

// UnknownFetchError is any provider failure we do not recognize.
// It is surfaced to the caller, never retried.
type UnknownFetchError struct {
	Symbol string
	Kind   DataKind
	Err    error
}

func (e *UnknownFetchError) Error() string {
	return fmt.Sprintf("unknown fetch error for %s/%s: %v", e.Symbol, e.Kind, e.Err)
}

func (e *UnknownFetchError) Unwrap() error { return e.Err }

// RateLimitExceeded is only returned by non-blocking acquisition.
// Blocking callers absorb it by waiting.
type RateLimitExceeded struct {
	RetryAfter time.Duration
}

func (e *RateLimitExceeded) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %v", e.RetryAfter)
}

// DataQualityError marks a required field that is missing or unparseable
type DataQualityError struct {
	Field string
	Err   error
}

func (e *DataQualityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data quality: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("data quality: %s missing", e.Field)
}

func (e *DataQualityError) Unwrap() error { return e.Err }

// ConfigurationError rejects malformed scoring parameters before any call is made
type ConfigurationError struct {
	Source   string
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

// IsTransient reports whether err should be retried
func IsTransient(err error) bool {
	var t *TransientFetchError
	return errors.As(err, &t)
}

// IsConfigurationError reports whether err comes from bad parameters
func IsConfigurationError(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}

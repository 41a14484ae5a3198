package httputil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wonny/dipscreener/pkg/logger"
)

// Client is a resty-backed HTTP client with request logging.
// It never retries on its own: every attempt must pass the caller's rate
// limiter, so retry policy lives with the caller (see RetryConfig).
// ⭐ SSOT: outbound HTTP goes through this client
type Client struct {
	rc        *resty.Client
	logger    *logger.Logger
	redacted  []string
	userAgent string
}

// New creates a new HTTP client for one base URL
func New(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0)

	return &Client{
		rc:        rc,
		logger:    log,
		userAgent: "dipscreener/1.0",
	}
}

// RedactQuery hides the given query parameters (API tokens) from logs
func (c *Client) RedactQuery(params ...string) *Client {
	c.redacted = append(c.redacted, params...)
	return c
}

// StatusError is returned for any non-2xx response
type StatusError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d from %s: %s", e.StatusCode, e.Path, truncate(e.Body, 200))
}

// GetJSON performs a GET request and returns the raw body of a 2xx response
func (c *Client) GetJSON(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	startTime := time.Now()

	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", c.userAgent).
		SetQueryParams(query).
		Get(path)

	duration := time.Since(startTime)
	fields := map[string]interface{}{
		"method":   http.MethodGet,
		"path":     path,
		"query":    c.safeQuery(query),
		"duration": duration,
	}

	if err != nil {
		c.logger.WithFields(fields).WithError(err).Debug("HTTP request failed")
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}

	fields["status_code"] = resp.StatusCode()
	c.logger.WithFields(fields).Debug("HTTP request completed")

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Path: path, Body: resp.String()}
	}

	return resp.Body(), nil
}

func (c *Client) safeQuery(query map[string]string) map[string]string {
	if len(c.redacted) == 0 {
		return query
	}
	out := make(map[string]string, len(query))
	for k, v := range query {
		out[k] = v
	}
	for _, k := range c.redacted {
		if _, ok := out[k]; ok {
			out[k] = "***"
		}
	}
	return out
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig returns the default bounded exponential backoff
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// Backoff returns the delay before retry number attempt (1-based)
func (r RetryConfig) Backoff(attempt int) time.Duration {
	delay := r.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if delay > r.MaxDelay {
		return r.MaxDelay
	}
	return delay
}

// IsRetryableError checks if a status code should be retried
func IsRetryableError(statusCode int) bool {
	// Retry on 5xx server errors and 429 Too Many Requests
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

// IsTimeout reports whether err is a network timeout or deadline
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package httpclient

import (
	"log/slog"
	"net/http"
	"time"
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithMaxRetries sets the main attempt budget (default 3).
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithRateLimitBudget sets how many consecutive 429 responses are tolerated
// before giving up (default 3). This budget is independent of the main
// attempt budget.
func WithRateLimitBudget(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.rateLimitBudget = n
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBackoffCap caps the exponential backoff delay (default 30s).
func WithBackoffCap(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoffCap = d
		}
	}
}

// WithRetryAfterFallback sets the wait applied to a 429 response that lacks
// a Retry-After header (default 5s).
func WithRetryAfterFallback(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryAfterFallback = d
		}
	}
}

// WithLogger sets the logger for retry decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

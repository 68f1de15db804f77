package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/delegatedssl/platform/core/logger"
)

const (
	defaultMaxRetries         = 3
	defaultRateLimitBudget    = 3
	defaultBackoffCap         = 30 * time.Second
	defaultRetryAfterFallback = 5 * time.Second
	defaultRequestTimeout     = 30 * time.Second
)

// Client is an outbound HTTP client with bounded retries.
//
// Two independent budgets govern retries: the main attempt budget covers
// transport errors and 5xx responses with exponential backoff, while a
// separate fixed budget covers 429 responses honoring Retry-After. A 429
// never consumes a main attempt, and any successful non-429 response resets
// the rate-limit budget so a past transient rate limit does not count
// against future calls through the same Client value.
type Client struct {
	httpClient         *http.Client
	maxRetries         int
	rateLimitBudget    int
	backoffCap         time.Duration
	retryAfterFallback time.Duration
	logger             *slog.Logger

	// sleep is a seam for tests; production uses a context-aware wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Client with the given options applied over defaults.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:         &http.Client{Timeout: defaultRequestTimeout},
		maxRetries:         defaultMaxRetries,
		rateLimitBudget:    defaultRateLimitBudget,
		backoffCap:         defaultBackoffCap,
		retryAfterFallback: defaultRetryAfterFallback,
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
		sleep:              sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get issues a GET request through the retry loop.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.Do(ctx, req)
}

// Do executes the request, retrying per the client's budgets. Responses in
// the 400-499 range other than 429 are returned to the caller immediately
// with a nil error; deciding what a 404 means is the caller's business.
// The returned response body is open and must be closed by the caller.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	rateLimitHits := 0
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; {
		resp, err := c.httpClient.Do(c.cloneRequest(ctx, req))

		switch {
		case err != nil:
			// Transport-level failure: consume a main attempt.
			lastErr = err

		case resp.StatusCode == http.StatusTooManyRequests:
			wait := c.retryAfterDelay(resp)
			drainAndClose(resp)

			rateLimitHits++
			if rateLimitHits > c.rateLimitBudget {
				return nil, fmt.Errorf("%w after %d responses with status 429", ErrRateLimitExceeded, rateLimitHits)
			}

			c.logger.DebugContext(ctx, "rate limited, waiting before retry",
				logger.Component("httpclient"),
				slog.String("url", req.URL.String()),
				logger.Duration(wait))

			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			// Rate limiting does not consume a main attempt.
			continue

		case resp.StatusCode >= 500:
			lastErr = &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
			drainAndClose(resp)

		default:
			// Success or a non-retryable 4xx: hand the response back as-is.
			return resp, nil
		}

		attempt++
		if attempt >= c.maxRetries {
			break
		}

		wait := c.backoffDelay(attempt)
		c.logger.DebugContext(ctx, "retrying request",
			logger.Component("httpclient"),
			slog.String("url", req.URL.String()),
			slog.Int("attempt", attempt),
			logger.Duration(wait),
			logger.Error(lastErr))

		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, c.maxRetries, lastErr)
}

// cloneRequest produces a fresh request for each attempt so bodies are
// replayable. Requests without GetBody can only be retried safely when they
// carry no body at all.
func (c *Client) cloneRequest(ctx context.Context, req *http.Request) *http.Request {
	clone := req.Clone(ctx)
	if req.Body != nil && req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			clone.Body = body
		}
	}
	return clone
}

// backoffDelay computes the capped exponential delay after the given number
// of consumed attempts: 1s, 2s, 4s, ... capped at backoffCap.
func (c *Client) backoffDelay(attempts int) time.Duration {
	d := time.Second << (attempts - 1)
	if d > c.backoffCap || d <= 0 {
		return c.backoffCap
	}
	return d
}

// retryAfterDelay reads the Retry-After header in seconds, falling back to
// the configured default when absent or malformed.
func (c *Client) retryAfterDelay(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return c.retryAfterFallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return c.retryAfterFallback
	}
	return time.Duration(secs) * time.Second
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

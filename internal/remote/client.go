// Package remote issues HTTP calls to upstream data providers with
// timeout, retry, and backoff, and reports request telemetry.
package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/codeGROOVE-dev/retry-go"
)

const maxBodyBytes = 10 * 1024 * 1024

// Telemetry receives one report per request attempt. Implementations
// must never panic or block the caller.
type Telemetry interface {
	Record(endpoint, method string, duration time.Duration, statusCode int, success bool, errMsg string, requestBytes, responseBytes int64)
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Policy bounds a single logical fetch.
type Policy struct {
	Retries uint          // extra attempts after the first
	Timeout time.Duration // per-attempt timeout
}

// Client fetches from upstream providers.
type Client struct {
	http      HTTPClient
	telemetry Telemetry
	log       *slog.Logger

	// baseDelay is the first retry delay; attempt n waits baseDelay*2^n.
	// Overridable in tests.
	baseDelay time.Duration
}

// New creates a Client. telemetry may be nil to disable reporting.
func New(httpClient HTTPClient, telemetry Telemetry, log *slog.Logger) *Client {
	return &Client{
		http:      httpClient,
		telemetry: telemetry,
		log:       log,
		baseDelay: time.Second,
	}
}

// Fetch performs a GET against endpoint with the given query parameters
// and headers. Transient failures (5xx, transport errors) are retried
// with exponential backoff until the policy's attempts run out; the
// last error is returned as a *Error.
func (c *Client) Fetch(ctx context.Context, endpoint string, params url.Values, header http.Header, pol Policy) ([]byte, error) {
	var body []byte

	err := retry.Do(
		func() error {
			var attemptErr error
			body, attemptErr = c.attempt(ctx, endpoint, params, header, pol.Timeout)
			return attemptErr
		},
		retry.Attempts(pol.Retries+1),
		retry.Delay(c.baseDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsTransient),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn("retrying upstream request", "endpoint", endpoint, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) attempt(ctx context.Context, endpoint string, params url.Values, header http.Header, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	reqURL := endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, &Error{Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", "ItemShopBot/1.0")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)

	if err != nil {
		// Transport errors (connection reset, timeout) are retryable.
		c.report(endpoint, duration, 0, false, err.Error(), 0)
		return nil, &Error{Endpoint: endpoint, Transient: true, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		c.report(endpoint, duration, resp.StatusCode, false, readErr.Error(), int64(len(body)))
		return nil, &Error{Endpoint: endpoint, StatusCode: resp.StatusCode, Transient: true, Err: fmt.Errorf("read body: %w", readErr)}
	}

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		c.report(endpoint, duration, resp.StatusCode, false, "", int64(len(body)))
		return nil, &Error{Endpoint: endpoint, StatusCode: resp.StatusCode, Transient: true, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		c.report(endpoint, duration, resp.StatusCode, false, "", int64(len(body)))
		return nil, &Error{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	c.report(endpoint, duration, resp.StatusCode, true, "", int64(len(body)))
	return body, nil
}

// report forwards one attempt to the telemetry sink. Telemetry must not
// be able to fail the request path, so panics are swallowed and logged.
func (c *Client) report(endpoint string, duration time.Duration, status int, success bool, errMsg string, respBytes int64) {
	if c.telemetry == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("telemetry report panicked", "endpoint", endpoint, "panic", r)
		}
	}()
	c.telemetry.Record(endpoint, http.MethodGet, duration, status, success, errMsg, 0, respBytes)
}

// Package http provides an HTTP client with retries, timeouts, and logging capabilities.
// Operator notifications go through it so a flaky webhook endpoint does not
// silently drop an alert.
package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	neturl "net/url"
	"time"
)

// ClientOptions configures the HTTP client behavior.
// Loggers never receive request bodies: webhook payloads can embed URLs
// that are themselves credentials.
type ClientOptions struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	MaxBackoff     time.Duration
	RequestLogger  func(method string, attempt int)
	ResponseLogger func(statusCode int, err error)
}

// DefaultOptions returns sensible default client options
func DefaultOptions() ClientOptions {
	return ClientOptions{
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
		MaxBackoff:   5 * time.Second,
	}
}

// Client is a wrapper around http.Client whose transport retries with backoff
type Client struct {
	client  *http.Client
	options ClientOptions
}

// NewClient creates a new HTTP client with the given options
func NewClient(options ClientOptions) *Client {
	defaults := DefaultOptions()
	if options.Timeout <= 0 {
		options.Timeout = defaults.Timeout
	}
	if options.RetryBackoff <= 0 {
		options.RetryBackoff = defaults.RetryBackoff
	}
	if options.MaxBackoff < options.RetryBackoff {
		options.MaxBackoff = options.RetryBackoff
	}
	if options.MaxRetries < 0 {
		options.MaxRetries = 0
	}
	if options.RequestLogger == nil {
		options.RequestLogger = func(string, int) {}
	}
	if options.ResponseLogger == nil {
		options.ResponseLogger = func(int, error) {}
	}

	return &Client{
		client: &http.Client{
			Timeout:   options.Timeout,
			Transport: &retryTransport{base: http.DefaultTransport, options: options},
		},
		options: options,
	}
}

// HTTPClient returns the underlying client for libraries that take an
// *http.Client. Its transport retries transport errors, 429 and 5xx.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// PostJSON marshals payload and POSTs it to url, retrying on transport
// errors, 429 and 5xx responses. It returns the final status code.
func (c *Client) PostJSON(ctx context.Context, url string, payload interface{}) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, StripURL(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, StripURL(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, truncate(respBody, 256))
	}
	return resp.StatusCode, nil
}

// StripURL removes the target URL that *url.Error embeds in its message.
// Webhook URLs are credentials and must not reach logs.
func StripURL(err error) error {
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request failed: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

// retryTransport retries requests whose body can be replayed
type retryTransport struct {
	base    http.RoundTripper
	options ClientOptions
}

// RoundTrip implements http.RoundTripper
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	backoff := t.options.RetryBackoff

	for attempt := 0; ; attempt++ {
		t.options.RequestLogger(req.Method, attempt)
		resp, err := t.base.RoundTrip(req)
		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}
		t.options.ResponseLogger(statusCode, err)

		if attempt >= t.options.MaxRetries || !shouldRetry(statusCode, err) || !replayable(req) {
			return resp, err
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
		}

		if err := t.sleep(req.Context(), &backoff); err != nil {
			return nil, err
		}
		if req, err = rewind(req); err != nil {
			return nil, err
		}
	}
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// rewind returns a copy of req with a fresh body
func rewind(req *http.Request) (*http.Request, error) {
	if req.GetBody == nil {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to replay request body: %w", err)
	}
	next := req.Clone(req.Context())
	next.Body = body
	return next, nil
}

// sleep waits backoff plus up to 50% jitter, then doubles backoff up to MaxBackoff
func (t *retryTransport) sleep(ctx context.Context, backoff *time.Duration) error {
	maxJitter := int64(*backoff) / 2
	if maxJitter <= 0 {
		maxJitter = 1
	}
	n, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
	if err != nil {
		return fmt.Errorf("failed to generate secure random number: %w", err)
	}

	timer := time.NewTimer(*backoff + time.Duration(n.Int64()))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	*backoff *= 2
	if *backoff > t.options.MaxBackoff {
		*backoff = t.options.MaxBackoff
	}
	return nil
}

func shouldRetry(statusCode int, err error) bool {
	if err != nil {
		return true
	}
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

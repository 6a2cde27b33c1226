// Package api is the REST client for the hospital back-end's /api
// endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// Client is a thin HTTP client for the back-end REST API.
// It handles Bearer token authentication, JSON marshaling, and
// automatic retry with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int

	mu             sync.RWMutex
	token          string
	onUnauthorized func(error)
}

// NewClient creates a new API client. The baseURL is the root URL of the
// back-end (e.g., https://ward.example.org); paths are appended as-is.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 3,
	}
}

// SetToken sets the bearer token sent with every request. An empty token
// sends no Authorization header.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// OnUnauthorized registers fn to be called with the AuthError whenever a
// request is answered with 401. It replaces any previous callback.
func (c *Client) OnUnauthorized(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// Patch performs an HTTP PATCH request with a partial JSON body and
// unmarshals the JSON response.
func (c *Client) Patch(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPatch, path, body, result)
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body any,
	result any,
) error {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	backoff := newRateLimitBackoff(c.maxRetries)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		if token := c.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if d, ok := retryAfterHeader(resp); ok {
				backoff.override(d)
			}
			return retry.RetryableError(&StatusError{
				Method:     method,
				Path:       path,
				StatusCode: resp.StatusCode,
				Message:    "rate limited",
			})
		}

		if resp.StatusCode == http.StatusUnauthorized {
			authErr := &AuthError{
				Method:  method,
				Path:    path,
				Message: decodeErrorText(respBody, "session token rejected"),
			}
			c.mu.RLock()
			hook := c.onUnauthorized
			c.mu.RUnlock()
			if hook != nil {
				hook(authErr)
			}
			return authErr
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{
				Method:     method,
				Path:       path,
				StatusCode: resp.StatusCode,
				Message:    decodeErrorText(respBody, strings.TrimSpace(string(respBody))),
			}
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}
		return nil
	})

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, err)
	}
	return err
}

// decodeErrorText extracts the message from a JSON error body, falling
// back to fallback for other bodies.
func decodeErrorText(body []byte, fallback string) string {
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.text() != "" {
		return er.text()
	}
	return fallback
}

// rateLimitBackoff waits 1s, 2s, 4s and so on, capped at 30s, for at most
// maxRetries attempts. A Retry-After header replaces the next delay.
type rateLimitBackoff struct {
	next retry.Backoff

	mu         sync.Mutex
	retryAfter time.Duration
	pinned     bool
}

func newRateLimitBackoff(maxRetries int) *rateLimitBackoff {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &rateLimitBackoff{
		next: retry.WithMaxRetries(uint64(maxRetries),
			retry.WithCappedDuration(30*time.Second, retry.NewExponential(time.Second))),
	}
}

func (b *rateLimitBackoff) override(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retryAfter, b.pinned = d, true
}

// Next implements retry.Backoff.
func (b *rateLimitBackoff) Next() (time.Duration, bool) {
	d, stop := b.next.Next()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pinned {
		d, b.pinned = b.retryAfter, false
	}
	return d, stop
}

// retryAfterHeader reads a Retry-After header given in seconds.
func retryAfterHeader(resp *http.Response) (time.Duration, bool) {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

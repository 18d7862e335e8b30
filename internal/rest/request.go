package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/Guliveer/guildkit/internal/constants"
)

// Request describes a single API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded when non-nil.
	Body any
	// IdempotencyKey is sent unchanged on every retry of this request.
	IdempotencyKey string
}

// Request performs method on path with an optional JSON body and returns the
// raw response body. Non-2xx responses are returned as *APIError.
func (c *Client) Request(ctx context.Context, method, path string, body any) ([]byte, error) {
	return c.Do(ctx, Request{Method: method, Path: path, Body: body})
}

// Do performs req, retrying 429/5xx responses and transport errors with
// jittered exponential backoff.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	if c.breaker.shouldSkip() {
		c.log.Debug("Circuit breaker open, skipping request", "method", req.Method, "path", req.Path)
		return nil, ErrCircuitOpen
	}

	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s %s body: %w", req.Method, req.Path, err)
		}
	}

	requestID := uuid.NewString()
	backoff := c.retryBackoff
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := jitter(backoff)
			var apiErr *APIError
			if errors.As(lastErr, &apiErr) && apiErr.RetryAfter > 0 {
				delay = apiErr.RetryAfter
			}
			c.log.Debug("Retrying request",
				"method", req.Method,
				"path", req.Path,
				"attempt", fmt.Sprintf("%d/%d", attempt, c.maxRetries),
				"backoff", delay,
				"request_id", requestID)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			backoff *= 2
		}

		body, err := c.doOnce(ctx, req, payload, requestID)
		if err == nil {
			c.breaker.recordSuccess()
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
			c.breaker.recordSuccess()
			return nil, err
		}
	}

	c.breaker.recordFailure()
	c.log.Warn("Request failed after all retries",
		"method", req.Method,
		"path", req.Path,
		"attempts", c.maxRetries+1,
		"request_id", requestID,
		"error", lastErr)

	var apiErr *APIError
	if errors.As(lastErr, &apiErr) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%s %s failed after %d attempts: %w", req.Method, req.Path, c.maxRetries+1, lastErr)
}

func (c *Client) doOnce(ctx context.Context, req Request, payload []byte, requestID string) ([]byte, error) {
	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range c.auth.GetAuthHeaders() {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(constants.HeaderRequestID, requestID)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(constants.HeaderIdempotencyKey, req.IdempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", req.Method, req.Path, err)
	}

	if resp.StatusCode >= 400 {
		return nil, newAPIError(resp, req.Method, req.Path, body)
	}

	c.log.Debug("Request completed",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"request_id", requestID)

	return body, nil
}

// jitter spreads d over [d/2, 3d/2).
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rand.Int64N(int64(d)))
}

// Get performs a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.call(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post performs a POST with body and decodes the response into out (may be nil).
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put performs a PUT with body and decodes the response into out (may be nil).
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Patch performs a PATCH with body and decodes the response into out (may be nil).
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.call(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}

// Call performs req and decodes the response into out (may be nil).
func (c *Client) Call(ctx context.Context, req Request, out any) error {
	return c.call(ctx, req, out)
}

func (c *Client) call(ctx context.Context, req Request, out any) error {
	body, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing %s %s response: %w", req.Method, req.Path, err)
	}
	return nil
}

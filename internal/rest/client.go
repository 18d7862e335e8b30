// Package rest is the HTTP collaborator shared by every entity manager. It
// handles authentication headers, JSON encoding, retries with jittered
// exponential backoff on 429/5xx, a circuit breaker, and structured API errors.
package rest

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Guliveer/guildkit/internal/auth"
	"github.com/Guliveer/guildkit/internal/constants"
	"github.com/Guliveer/guildkit/internal/logger"
)

// breakerThreshold is the number of consecutive failed requests that opens
// the circuit breaker.
const breakerThreshold = 10

// circuitBreaker tracks consecutive failures and backs off when the API
// keeps failing.
type circuitBreaker struct {
	mu               sync.Mutex
	consecutiveFails int
	cooldownUntil    time.Time
	now              func() time.Time
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	cb.consecutiveFails = 0
	cb.cooldownUntil = time.Time{}
	cb.mu.Unlock()
}

// recordFailure increments the failure counter and, once the threshold is
// reached, opens the breaker for 30s per extra failure, capped at 5 minutes.
func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	if cb.consecutiveFails >= breakerThreshold {
		backoff := time.Duration(cb.consecutiveFails-breakerThreshold+1) * 30 * time.Second
		if backoff > 5*time.Minute {
			backoff = 5 * time.Minute
		}
		cb.cooldownUntil = cb.now().Add(backoff)
	}
}

func (cb *circuitBreaker) shouldSkip() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.now().Before(cb.cooldownUntil)
}

// Client is the REST API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	auth       auth.Provider
	httpClient *http.Client
	log        *logger.Logger
	breaker    *circuitBreaker

	maxRetries   int
	retryBackoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry count and the first retry delay.
func WithRetries(max int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a REST client authenticated by provider.
func NewClient(provider auth.Provider, opts ...Option) *Client {
	c := &Client{
		baseURL: constants.APIURL,
		auth:    provider,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: constants.DefaultHTTPTimeout,
		},
		log:          logger.Nop(),
		breaker:      &circuitBreaker{now: time.Now},
		maxRetries:   constants.DefaultMaxRetries,
		retryBackoff: constants.DefaultRetryBackoff,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the API base URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

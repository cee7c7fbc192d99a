// Package httpx is the shared outbound HTTP client used by the AI and GitHub
// clients: circuit breaking, retry with backoff on 429/5xx, and traced
// transport.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RetryPolicy configures retries of failed calls.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

// BreakerSettings configures the circuit breaker. Disabled means every call
// goes straight to the transport.
type BreakerSettings struct {
	Enabled         bool
	MaxFailures     int
	ResetTimeout    time.Duration
	HalfOpenMaxReqs int
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client wraps an *http.Client with a breaker and retry policy.
type Client struct {
	name      string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	retry     RetryPolicy
	userAgent string
	logger    *logrus.Logger
	sleepFn   func(time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithSleepFunc replaces the wait between retries, mostly for tests.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(c *Client) {
		c.sleepFn = fn
	}
}

// WithHTTPClient replaces the underlying http client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New builds a client. name labels the breaker and log lines.
func New(name string, timeout time.Duration, retry RetryPolicy, breaker BreakerSettings, userAgent string, opts ...Option) *Client {
	c := &Client{
		name: name,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retry:     retry,
		userAgent: userAgent,
		logger:    logrus.StandardLogger(),
		sleepFn:   time.Sleep,
	}
	if breaker.Enabled {
		c.breaker = newBreaker(name, breaker)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker[*http.Response] {
	maxFailures := s.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	halfOpen := s.HalfOpenMaxReqs
	if halfOpen <= 0 {
		halfOpen = 1
	}
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(halfOpen),
		Interval:    60 * time.Second,
		Timeout:     s.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})
}

// Do sends req, retrying on transport errors, 429 and 5xx. Other responses
// are returned as-is and the caller closes the body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		req.Body.Close()
	}

	var lastErr error
	attempts := 1 + c.retry.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.execute(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if attempt < attempts-1 {
			wait := c.backoff(attempt, resp)
			c.logger.Warnf("%s: attempt %d/%d failed: %v, retrying in %s", c.name, attempt+1, attempts, err, wait)
			c.sleepFn(wait)
		}
	}
	return nil, lastErr
}

// execute performs one attempt through the breaker. A retryable status is
// turned into a *StatusError and the body is consumed.
func (c *Client) execute(req *http.Request) (*http.Response, error) {
	call := func() (*http.Response, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return resp, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		}
		return resp, nil
	}
	if c.breaker == nil {
		return call()
	}
	return c.breaker.Execute(call)
}

// backoff honours Retry-After, otherwise exponential with full jitter.
func (c *Client) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return c.clamp(time.Duration(seconds) * time.Second)
			}
		}
	}
	base := float64(c.retry.MinWait) * math.Pow(2, float64(attempt))
	capped := math.Min(base, float64(c.retry.MaxWait))
	if capped <= 0 {
		return 0
	}
	return c.clamp(time.Duration(rand.Float64() * capped))
}

func (c *Client) clamp(d time.Duration) time.Duration {
	if d < c.retry.MinWait {
		return c.retry.MinWait
	}
	if c.retry.MaxWait > 0 && d > c.retry.MaxWait {
		return c.retry.MaxWait
	}
	return d
}

// DoJSON encodes body (if any), sends the request and decodes a 2xx
// response into out (if non-nil).
func (c *Client) DoJSON(ctx context.Context, method, url string, headers map[string]string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	c.logger.Debugf("%s: %s %s -> %d", c.name, method, req.URL.Path, resp.StatusCode)

	if resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

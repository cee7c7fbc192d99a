package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func newTestClient(retries int, breaker BreakerSettings, slept *[]time.Duration) *Client {
	return New("test", 2*time.Second,
		RetryPolicy{MaxRetries: retries, MinWait: 10 * time.Millisecond, MaxWait: 5 * time.Second},
		breaker, "automations-test/1.0",
		WithLogger(quiet()),
		WithSleepFunc(func(d time.Duration) {
			if slept != nil {
				*slept = append(*slept, d)
			}
		}),
	)
}

func TestDoJSON_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "automations-test/1.0", r.Header.Get("User-Agent"))
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newTestClient(2, BreakerSettings{}, &slept)
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.DoJSON(context.Background(), http.MethodPost, srv.URL, nil, map[string]string{"q": "x"}, &out)

	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Len(t, slept, 2)
}

func TestDoJSON_ResendsBodyOnRetry(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(buf))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(1, BreakerSettings{}, nil)
	err := c.DoJSON(context.Background(), http.MethodPost, srv.URL, nil, map[string]int{"n": 1}, nil)

	require.NoError(t, err)
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.JSONEq(t, `{"n":1}`, bodies[1])
}

func TestDoJSON_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer srv.Close()

	c := newTestClient(3, BreakerSettings{}, nil)
	err := c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.False(t, se.Retryable())
	assert.Contains(t, se.Body, "Not Found")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_RetryAfterHeader(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newTestClient(1, BreakerSettings{}, &slept)
	err := c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second}, slept)
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(2, BreakerSettings{}, nil)
	err := c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Retryable())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_BreakerOpensAndShortCircuits(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(0, BreakerSettings{Enabled: true, MaxFailures: 2, ResetTimeout: time.Minute}, nil)
	for i := 0; i < 2; i++ {
		_ = c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)
	}
	err := c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDo_ContextCancelledStopsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New("test", time.Second, RetryPolicy{MaxRetries: 5, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		BreakerSettings{}, "", WithLogger(quiet()), WithSleepFunc(func(time.Duration) { cancel() }))

	err := c.DoJSON(ctx, http.MethodGet, srv.URL, nil, nil, nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffBounds(t *testing.T) {
	c := newTestClient(3, BreakerSettings{}, nil)
	for attempt := 0; attempt < 10; attempt++ {
		d := c.backoff(attempt, nil)
		assert.GreaterOrEqual(t, d, c.retry.MinWait)
		assert.LessOrEqual(t, d, c.retry.MaxWait)
	}
}

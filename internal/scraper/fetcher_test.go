package scraper

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/ratelimit"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tracker-test", r.Header.Get("User-Agent"))
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	f := NewHTTPFetcher(FetcherConfig{UserAgent: "tracker-test", Timeout: time.Second})
	body, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(body))
}

func TestHTTPFetcher_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewHTTPFetcher(FetcherConfig{})
	body, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Nil(t, body)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPFetcher_CircuitBreakerRefuses(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	f := NewHTTPFetcher(FetcherConfig{Breaker: NewCircuitBreaker(2, time.Hour)})
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), server.URL)
		require.Error(t, err)
	}

	_, err := f.Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

type flakyFetcher struct {
	failures int
	calls    int
}

func (f *flakyFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &FetchError{URL: url, StatusCode: 502, Message: "status code 502"}
	}
	return []byte("page"), nil
}

func TestFetchWithRetry_RecoversWithinAttempts(t *testing.T) {
	f := &flakyFetcher{failures: 2}
	body, err := FetchWithRetry(context.Background(), f, "u", 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "page", string(body))
	assert.Equal(t, 3, f.calls)
}

func TestFetchWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	f := &flakyFetcher{failures: 10}
	_, err := FetchWithRetry(context.Background(), f, "u", 3, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, 3, f.calls)

	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
}

func TestFetchWithRetry_StopsOnCancel(t *testing.T) {
	f := &flakyFetcher{failures: 10}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FetchWithRetry(ctx, f, "u", 3, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.calls)
}

func TestCircuitBreaker_IgnoresNotFoundAndResets(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	cb.RecordFailure(http.StatusNotFound)
	cb.RecordFailure(http.StatusNotFound)
	assert.True(t, cb.CanProceed())

	cb.RecordFailure(http.StatusForbidden)
	cb.RecordSuccess()
	cb.RecordFailure(http.StatusForbidden)
	assert.True(t, cb.CanProceed())

	cb.RecordFailure(http.StatusForbidden)
	assert.False(t, cb.CanProceed())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.CanProceed())
	isOpen, consecutive, total := cb.GetStatus()
	assert.False(t, isOpen)
	assert.Equal(t, 0, consecutive)
	assert.Equal(t, 3, total)
}

func TestHTTPFetcher_BudgetRefusalIsLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.Default()
	logging.SetDefault(logging.New(&buf, logging.LevelDebug))
	defer logging.SetDefault(prev)

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewHTTPFetcher(FetcherConfig{Limiter: ratelimit.NewRateLimiter(0, 1, 1, true)})
	_, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), server.URL+"/second")
	assert.ErrorIs(t, err, ratelimit.ErrBudgetExhausted)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Contains(t, buf.String(), "WARNING: [Fetcher] fetch "+server.URL+"/second: rate limiter")
}

func TestCheckResponse_NonSuccessStatusIsFetchError(t *testing.T) {
	breaker := NewCircuitBreaker(2, time.Hour)

	for _, status := range []int64{http.StatusForbidden, http.StatusTooManyRequests} {
		err := checkResponse("https://somon.tj/adv/1_car/", &network.Response{Status: status}, breaker)
		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, int(status), fetchErr.StatusCode)
	}
	assert.False(t, breaker.CanProceed())

	assert.NoError(t, checkResponse("https://somon.tj/adv/2_car/", &network.Response{Status: http.StatusOK}, nil))
	assert.Error(t, checkResponse("https://somon.tj/adv/3_car/", nil, nil))

	var fetchErr *FetchError
	require.ErrorAs(t, checkResponse("https://somon.tj/adv/4_car/", &network.Response{Status: http.StatusNotFound}, nil), &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

func TestAdmit_SharedByBothFetchers(t *testing.T) {
	limiter := ratelimit.NewRateLimiter(0, 1, 1, true)
	require.NoError(t, admit(context.Background(), "https://somon.tj/a", limiter, nil))
	assert.ErrorIs(t, admit(context.Background(), "https://somon.tj/b", limiter, nil), ratelimit.ErrBudgetExhausted)

	breaker := NewCircuitBreaker(1, time.Hour)
	breaker.RecordFailure(http.StatusForbidden)
	assert.ErrorIs(t, admit(context.Background(), "https://somon.tj/c", nil, breaker), ErrCircuitOpen)
}

package scraper

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/ratelimit"
)

// ErrCircuitOpen is returned while the circuit breaker refuses requests.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Fetcher retrieves the raw body of a page. Implementations are safe for
// concurrent use and make a single attempt per call.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchError describes a failed page fetch.
type FetchError struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// FetcherConfig configures an HTTPFetcher
type FetcherConfig struct {
	Timeout   time.Duration
	UserAgent string
	Limiter   *ratelimit.RateLimiter
	Breaker   *CircuitBreaker
}

// HTTPFetcher fetches pages over one shared session (cookie jar, keep-alive).
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	limiter   *ratelimit.RateLimiter
	breaker   *CircuitBreaker
}

// NewHTTPFetcher creates a fetcher with a cookie-backed client.
func NewHTTPFetcher(config FetcherConfig) *HTTPFetcher {
	jar, err := cookiejar.New(nil)
	if err != nil {
		logging.Warnf("[Fetcher] failed to create cookie jar: %v", err)
		jar = nil
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: config.Timeout,
			Jar:     jar,
		},
		userAgent: config.UserAgent,
		limiter:   config.Limiter,
		breaker:   config.Breaker,
	}
}

// applyBrowserHeaders sets the headers a desktop browser would send
func (f *HTTPFetcher) applyBrowserHeaders(req *http.Request) {
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,tg;q=0.8,en;q=0.7")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// Fetch performs one GET. Any failure is returned as *FetchError and logged.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := admit(ctx, url, f.limiter, f.breaker); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fetchErr := &FetchError{URL: url, Message: "failed to create request", Cause: err}
		logging.Errorf("[Fetcher] %v", fetchErr)
		return nil, fetchErr
	}
	f.applyBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		fetchErr := &FetchError{URL: url, Message: "request failed", Cause: err}
		logging.Errorf("[Fetcher] %v", fetchErr)
		return nil, fetchErr
	}
	defer resp.Body.Close()

	if err := checkStatus(url, resp.StatusCode, f.breaker); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		logging.Errorf("[Fetcher] %v", err)
		return nil, err
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			fetchErr := &FetchError{URL: url, StatusCode: resp.StatusCode, Message: "failed to create gzip reader", Cause: err}
			logging.Errorf("[Fetcher] %v", fetchErr)
			return nil, fetchErr
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		fetchErr := &FetchError{URL: url, StatusCode: resp.StatusCode, Message: "failed to read body", Cause: err}
		logging.Errorf("[Fetcher] %v", fetchErr)
		return nil, fetchErr
	}

	if f.breaker != nil {
		f.breaker.RecordSuccess()
	}
	return body, nil
}

// admit applies the circuit breaker and the rate limiter before a request.
func admit(ctx context.Context, url string, limiter *ratelimit.RateLimiter, breaker *CircuitBreaker) error {
	if breaker != nil && !breaker.CanProceed() {
		_, consecutive, total := breaker.GetStatus()
		err := &FetchError{URL: url, Message: fmt.Sprintf("refused (%d consecutive, %d total blocks)", consecutive, total), Cause: ErrCircuitOpen}
		logging.Warnf("[Fetcher] %v", err)
		return err
	}
	if err := limiter.Wait(ctx); err != nil {
		fetchErr := &FetchError{URL: url, Message: "rate limiter", Cause: err}
		logging.Warnf("[Fetcher] %v", fetchErr)
		return fetchErr
	}
	return nil
}

// checkStatus turns a non-2xx status into a *FetchError and feeds the breaker.
func checkStatus(url string, status int, breaker *CircuitBreaker) error {
	if status < 200 || status > 299 {
		if breaker != nil {
			breaker.RecordFailure(status)
		}
		return &FetchError{URL: url, StatusCode: status, Message: fmt.Sprintf("status code %d", status)}
	}
	return nil
}

// FetchWithRetry calls f up to attempts times with a fixed delay between
// attempts. Returns the last error when every attempt fails.
func FetchWithRetry(ctx context.Context, f Fetcher, url string, attempts int, delay time.Duration) ([]byte, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := f.Fetch(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if attempt == attempts || errors.Is(err, ratelimit.ErrBudgetExhausted) {
			break
		}
		logging.Debugf("[Fetcher] attempt %d/%d for %s failed, retrying in %v", attempt, attempts, url, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

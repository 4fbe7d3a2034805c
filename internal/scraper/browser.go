package scraper

import (
	"context"
	"time"

	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/ratelimit"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders pages in headless Chrome. One browser process is
// shared; each Fetch opens its own tab.
type BrowserFetcher struct {
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	timeout     time.Duration
	limiter     *ratelimit.RateLimiter
	breaker     *CircuitBreaker
}

// NewBrowserFetcher starts a headless browser. Limiter and Breaker from
// config apply to every page load, as for HTTPFetcher.
func NewBrowserFetcher(config FetcherConfig) (*BrowserFetcher, error) {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent(config.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Launch eagerly; a missing Chrome surfaces here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, &FetchError{URL: "about:blank", Message: "failed to start browser", Cause: err}
	}

	return &BrowserFetcher{
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
		timeout:     config.Timeout,
		limiter:     config.Limiter,
		breaker:     config.Breaker,
	}, nil
}

// Fetch navigates a new tab to url and returns the rendered HTML.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := admit(ctx, url, b.limiter, b.breaker); err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(url))
	if err != nil {
		fetchErr := &FetchError{URL: url, Message: "headless browser", Cause: err}
		logging.Errorf("[HeadlessBrowser] %v", fetchErr)
		return nil, fetchErr
	}
	if err := checkResponse(url, resp, b.breaker); err != nil {
		logging.Errorf("[HeadlessBrowser] %v", err)
		return nil, err
	}

	var html string
	err = chromedp.Run(tabCtx,
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		fetchErr := &FetchError{URL: url, StatusCode: int(resp.Status), Message: "headless browser", Cause: err}
		logging.Errorf("[HeadlessBrowser] %v", fetchErr)
		return nil, fetchErr
	}

	if b.breaker != nil {
		b.breaker.RecordSuccess()
	}
	logging.Debugf("[HeadlessBrowser] fetched %s (%d bytes)", url, len(html))
	return []byte(html), nil
}

// checkResponse applies the HTTP status rules to a page load. A nil
// response (no main document) is a failure.
func checkResponse(url string, resp *network.Response, breaker *CircuitBreaker) error {
	if resp == nil {
		return &FetchError{URL: url, Message: "no response for main document"}
	}
	return checkStatus(url, int(resp.Status), breaker)
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() {
	b.cancel()
	b.allocCancel()
}

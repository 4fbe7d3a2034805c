package main

import (
	"fmt"
	"time"

	"car-market-tracker/internal/config"
	"car-market-tracker/internal/crawler"
	"car-market-tracker/internal/database"
	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/ratelimit"
	"car-market-tracker/internal/scraper"
	"car-market-tracker/internal/search"
	"car-market-tracker/internal/snapshot"
	"car-market-tracker/internal/storage"
)

// app holds the components shared by the commands.
type app struct {
	cfg     *config.Config
	store   *storage.TableStore
	exports *snapshot.Service
	limiter *ratelimit.RateLimiter
	fetcher scraper.Fetcher
	mirror  database.Mirror
	search  *search.Client

	closers []func()
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{
		cfg:     cfg,
		store:   storage.NewTableStore(cfg.Storage.DataDir),
		exports: snapshot.NewService(cfg.Storage.ExportDir),
		limiter: ratelimit.NewRateLimiter(
			cfg.RateLimit.RequestsPerSecond,
			cfg.RateLimit.Burst,
			cfg.RateLimit.MaxRequestsPerDay,
			cfg.RateLimit.Enabled,
		),
	}
	logging.Infof("[App] rate limiter: %.2f req/s, burst %d, %d req/day (enabled: %v)",
		cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.MaxRequestsPerDay, cfg.RateLimit.Enabled)

	if cfg.Crawler.UseBrowser {
		browser, err := scraper.NewBrowserFetcher(a.fetcherConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
		a.fetcher = browser
		a.closers = append(a.closers, browser.Close)
	} else {
		a.fetcher = scraper.NewHTTPFetcher(a.fetcherConfig())
	}

	mirror, err := database.Open(cfg.Database)
	if err != nil {
		logging.Errorf("[App] database mirror disabled: %v", err)
	} else if mirror != nil {
		a.mirror = mirror
		a.closers = append(a.closers, func() { mirror.Close() })
		logging.Infof("[App] %s mirror connected", mirror.Name())
	}

	if ms := cfg.Search.Meilisearch; ms.Enabled {
		a.search = search.NewClient(ms.Host, ms.APIKey, ms.Index)
		if err := a.search.InitIndex(); err != nil {
			logging.Warnf("[App] failed to initialize search index: %v", err)
		}
	}

	return a, nil
}

func (a *app) fetcherConfig() scraper.FetcherConfig {
	return scraper.FetcherConfig{
		Timeout:   a.cfg.Crawler.GetTimeout(),
		UserAgent: a.cfg.UserAgent,
		Limiter:   a.limiter,
		Breaker:   scraper.NewCircuitBreaker(5, 10*time.Minute),
	}
}

func (a *app) crawler() (*crawler.Crawler, error) {
	indexer, err := scraper.NewIndexBuilder(a.fetcher, a.cfg.Site.BaseURL, a.cfg.Site.IndexURL, a.cfg.Crawler.IndexConcurrency)
	if err != nil {
		return nil, err
	}

	deps := crawler.Deps{
		Fetcher:  a.fetcher,
		Indexer:  indexer,
		Store:    a.store,
		Exporter: a.exports,
		Now:      nowIn,
	}
	if a.mirror != nil {
		deps.Sinks = append(deps.Sinks, a.mirror)
		deps.Recorder = a.mirror
	}
	if a.search != nil {
		deps.Sinks = append(deps.Sinks, a.search)
	}
	return crawler.New(deps, crawler.OptionsFromConfig(a.cfg.Crawler)), nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

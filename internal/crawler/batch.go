package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/models"
	"car-market-tracker/internal/scraper"
)

// BatchOutcome aggregates the detail results of one outer batch.
type BatchOutcome struct {
	Index      int
	NewRecords []models.Listing
	BadgeSold  []models.Listing

	Parsed               int
	NotACar              int
	ParseFailures        int
	FetchFailures        int
	NormalizationDefects int
}

func (o *BatchOutcome) add(r scraper.DetailResult) {
	switch r.Kind {
	case scraper.ResultRecord:
		o.Parsed++
		if r.Sold {
			o.BadgeSold = append(o.BadgeSold, *r.Listing)
		} else {
			o.NewRecords = append(o.NewRecords, *r.Listing)
		}
	case scraper.ResultNotACar:
		o.NotACar++
		logging.Debugf("[Crawler] %s is not a car listing", r.Link.URL)
	case scraper.ResultFetchFailure:
		o.FetchFailures++
		logging.Errorf("[Crawler] fetch failed for %s: %v", r.Link.URL, r.Err)
	default:
		if r.IsNormalizationDefect() {
			o.NormalizationDefects++
		} else {
			o.ParseFailures++
		}
		logging.Warnf("[Crawler] parse failed for %s: %v", r.Link.URL, r.Err)
	}
}

// CommitFunc persists one outer batch. An error stops processing.
type CommitFunc func(BatchOutcome) error

// ProcessNewLinks fetches and parses links in outer batches, calling commit
// after each one. Within a batch, chunks of links are spread over the worker
// pool and a single aggregator collects the results. A failing link never
// affects the others. When ctx is cancelled the partial batch is still
// committed before the context error is returned.
func (c *Crawler) ProcessNewLinks(ctx context.Context, links []models.ListingLink, runAt time.Time, commit CommitFunc) error {
	batchSize := max(c.opts.OuterBatchSize, 1)
	total := (len(links) + batchSize - 1) / batchSize

	for i, start := 0, 0; start < len(links); i, start = i+1, start+batchSize {
		end := min(start+batchSize, len(links))
		logging.Infof("[Crawler] batch %d/%d: %d links", i+1, total, end-start)

		outcome := c.processBatch(ctx, links[start:end], runAt)
		outcome.Index = i
		if err := commit(outcome); err != nil {
			return fmt.Errorf("commit batch %d: %w", i+1, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Crawler) processBatch(ctx context.Context, links []models.ListingLink, runAt time.Time) BatchOutcome {
	chunkSize := max(c.opts.InnerChunkSize, 1)
	workers := max(c.opts.Workers, 1)

	chunks := make(chan []models.ListingLink)
	results := make(chan scraper.DetailResult, workers*2)

	go func() {
		defer close(chunks)
		for start := 0; start < len(links); start += chunkSize {
			end := min(start+chunkSize, len(links))
			select {
			case chunks <- links[start:end]:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range chunks {
				for _, link := range chunk {
					if ctx.Err() != nil {
						break
					}
					results <- c.processLink(ctx, link, runAt)
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var outcome BatchOutcome
	for r := range results {
		outcome.add(r)
	}
	return outcome
}

// processLink turns one link into a result. Panics are reported as parse failures.
func (c *Crawler) processLink(ctx context.Context, link models.ListingLink, runAt time.Time) (result scraper.DetailResult) {
	defer func() {
		if p := recover(); p != nil {
			result = scraper.DetailResult{
				Link: link,
				Kind: scraper.ResultParseFailure,
				Err:  fmt.Errorf("panic while processing %s: %v", link.URL, p),
			}
		}
	}()

	body, err := scraper.FetchWithRetry(ctx, c.fetcher, link.URL, c.opts.MaxRetries, c.opts.RetryDelay)
	if err != nil {
		return scraper.DetailResult{Link: link, Kind: scraper.ResultFetchFailure, Err: err}
	}
	return scraper.ParseDetail(body, link, runAt)
}

// Package crawler runs one full crawl: index, reconcile, batched detail
// processing with a checkpoint after every batch, export and sink sync.
package crawler

import (
	"context"
	"fmt"
	"time"

	"car-market-tracker/internal/config"
	"car-market-tracker/internal/dataset"
	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/models"
	"car-market-tracker/internal/reconcile"
	"car-market-tracker/internal/scraper"
)

// Store persists the canonical tables. Lock guards them against a second
// writer process for the length of a run.
type Store interface {
	Lock() (release func(), err error)
	Load() (dataset.Tables, error)
	Save(t dataset.Tables) error
	SaveLinks(links []models.ListingLink) error
}

// Indexer discovers every listing link currently on the site.
type Indexer interface {
	BuildIndex(ctx context.Context) ([]models.ListingLink, error)
}

// Exporter writes the dated snapshot pair.
type Exporter interface {
	Export(date time.Time, t dataset.Tables) (*models.SnapshotInfo, error)
}

// Sink receives the final tables of a successful run.
type Sink interface {
	Name() string
	Sync(ctx context.Context, t dataset.Tables) error
}

// RunRecorder stores run summaries.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *models.RunSummary) error
}

// Options tune detail processing.
type Options struct {
	Workers        int
	OuterBatchSize int
	InnerChunkSize int
	MaxRetries     int
	RetryDelay     time.Duration
}

// OptionsFromConfig maps crawler settings to Options.
func OptionsFromConfig(cfg config.CrawlerConfig) Options {
	return Options{
		Workers:        cfg.WorkerCount,
		OuterBatchSize: cfg.OuterBatchSize,
		InnerChunkSize: cfg.InnerChunkSize,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.GetRetryDelay(),
	}
}

// Deps are the collaborators of a Crawler. Sinks and Recorder are optional.
type Deps struct {
	Fetcher  scraper.Fetcher
	Indexer  Indexer
	Store    Store
	Exporter Exporter
	Sinks    []Sink
	Recorder RunRecorder
	// Now defaults to time.Now.
	Now func() time.Time
}

type Crawler struct {
	fetcher  scraper.Fetcher
	indexer  Indexer
	store    Store
	exporter Exporter
	sinks    []Sink
	recorder RunRecorder
	now      func() time.Time
	opts     Options
}

func New(deps Deps, opts Options) *Crawler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Crawler{
		fetcher:  deps.Fetcher,
		indexer:  deps.Indexer,
		store:    deps.Store,
		exporter: deps.Exporter,
		sinks:    deps.Sinks,
		recorder: deps.Recorder,
		now:      now,
		opts:     opts,
	}
}

// Run executes one crawl. The returned summary is never nil; on error it
// carries the failed status and whatever counters were reached.
func (c *Crawler) Run(ctx context.Context) (*models.RunSummary, error) {
	runAt := c.now()
	summary := models.NewRunSummary(runAt)
	logging.Infof("[Crawler] run %s started", summary.RunID)

	err := c.run(ctx, summary, runAt)
	summary.Finish(c.now(), err)

	if c.recorder != nil {
		if rerr := c.recorder.SaveRun(context.WithoutCancel(ctx), summary); rerr != nil {
			logging.Errorf("[Crawler] failed to record run %s: %v", summary.RunID, rerr)
		}
	}

	if err != nil {
		logging.Errorf("[Crawler] run %s failed after %v: %v", summary.RunID, summary.Duration(), err)
		return summary, err
	}
	logging.Infof("[Crawler] run %s finished in %v: links=%d new=%d sold(absence)=%d sold(badge)=%d parsed=%d not_a_car=%d parse_failures=%d fetch_failures=%d defects=%d active=%d sold=%d",
		summary.RunID, summary.Duration(), summary.LinksFound, summary.NewLinks, summary.SoldByAbsence,
		summary.SoldByBadge, summary.Parsed, summary.NotACar, summary.ParseFailures, summary.FetchFailures,
		summary.NormalizationDefects, summary.ActiveTotal, summary.SoldTotal)
	return summary, nil
}

func (c *Crawler) run(ctx context.Context, summary *models.RunSummary, runAt time.Time) error {
	release, err := c.store.Lock()
	if err != nil {
		return err
	}
	defer release()

	tables, err := c.store.Load()
	if err != nil {
		return err
	}

	links, err := c.indexer.BuildIndex(ctx)
	if err != nil {
		return err
	}
	summary.LinksFound = len(links)

	if err := c.store.SaveLinks(links); err != nil {
		return err
	}

	result := reconcile.Reconcile(links, tables.ActiveIDs())
	newLinks := dropKnownSold(result.NewLinks, tables.SoldIDs())
	summary.AlreadySold = len(result.NewLinks) - len(newLinks)
	summary.NewLinks = len(newLinks)
	logging.Infof("[Crawler] %d links: %d unchanged, %d gone, %d new, %d already sold",
		len(links), result.Unchanged, len(result.SoldIDs), len(newLinks), summary.AlreadySold)

	tables, stats := dataset.Merge(tables, dataset.Delta{SoldIDs: result.SoldIDs, RunAt: runAt})
	summary.SoldByAbsence = stats.MovedToSold
	if err := c.store.Save(tables); err != nil {
		return fmt.Errorf("checkpoint sold listings: %w", err)
	}

	err = c.ProcessNewLinks(ctx, newLinks, runAt, func(o BatchOutcome) error {
		var batchStats dataset.MergeStats
		tables, batchStats = dataset.Merge(tables, dataset.Delta{
			NewRecords: o.NewRecords,
			BadgeSold:  o.BadgeSold,
			RunAt:      runAt,
		})
		if err := c.store.Save(tables); err != nil {
			return err
		}

		summary.Parsed += o.Parsed
		summary.NotACar += o.NotACar
		summary.ParseFailures += o.ParseFailures
		summary.FetchFailures += o.FetchFailures
		summary.NormalizationDefects += o.NormalizationDefects
		summary.SoldByBadge += batchStats.AddedSold
		summary.BatchesCommitted++
		logging.Infof("[Crawler] batch %d committed: +%d active, +%d sold by badge, %d failures",
			o.Index+1, batchStats.AddedActive+batchStats.ReplacedActive, batchStats.AddedSold,
			o.ParseFailures+o.FetchFailures+o.NormalizationDefects)
		return nil
	})
	if err != nil {
		return err
	}

	summary.ActiveTotal = len(tables.Active)
	summary.SoldTotal = len(tables.Sold)

	if _, err := c.exporter.Export(runAt, tables); err != nil {
		return err
	}

	for _, sink := range c.sinks {
		if err := sink.Sync(ctx, tables); err != nil {
			logging.Errorf("[Crawler] sink %s failed: %v", sink.Name(), err)
		}
	}
	return nil
}

func dropKnownSold(links []models.ListingLink, sold map[int64]struct{}) []models.ListingLink {
	out := make([]models.ListingLink, 0, len(links))
	for _, l := range links {
		if _, ok := sold[l.PostID]; ok {
			logging.Debugf("[Crawler] post %d relisted after sale, skipping", l.PostID)
			continue
		}
		out = append(out, l)
	}
	return out
}

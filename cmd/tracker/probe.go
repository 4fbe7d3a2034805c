package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"car-market-tracker/internal/models"
	"car-market-tracker/internal/reconcile"
	"car-market-tracker/internal/scraper"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the site still parses",
	Long:  "Fetches the first index page and a sample of detail pages and reports how each one parsed. Nothing is written to the tables.",
	RunE:  runProbe,
}

var (
	probeSample int
	probeJSON   bool
)

// ProbeResult is the outcome of one probe step
type ProbeResult struct {
	URL     string `json:"url"`
	Success bool   `json:"success"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ProbeReport collects every probe step
type ProbeReport struct {
	IndexURL       string        `json:"index_url"`
	Results        []ProbeResult `json:"results"`
	OverallSuccess bool          `json:"overall_success"`
	ExecutedAt     time.Time     `json:"executed_at"`
}

func init() {
	probeCmd.Flags().IntVarP(&probeSample, "sample", "n", 5, "Number of detail pages to fetch")
	probeCmd.Flags().BoolVar(&probeJSON, "json", false, "Print the report as JSON")

	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(appConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	report := &ProbeReport{
		IndexURL:       appConfig.Site.IndexURL(1),
		ExecutedAt:     nowIn(),
		OverallSuccess: true,
	}

	indexer, err := scraper.NewIndexBuilder(a.fetcher, appConfig.Site.BaseURL, appConfig.Site.IndexURL, 1)
	if err != nil {
		return err
	}

	body, err := scraper.FetchWithRetry(ctx, a.fetcher, report.IndexURL, appConfig.Crawler.MaxRetries, appConfig.Crawler.GetRetryDelay())
	if err != nil {
		return fmt.Errorf("index page unavailable: %w", err)
	}
	links, err := indexer.ParseIndexPage(body, report.IndexURL)
	if err != nil {
		return fmt.Errorf("index page unparseable: %w", err)
	}
	report.Results = append(report.Results, ProbeResult{
		URL:     report.IndexURL,
		Success: len(links) > 0,
		Kind:    "index",
		Message: fmt.Sprintf("%d listing links on page 1", len(links)),
	})
	if len(links) == 0 {
		report.OverallSuccess = false
	}

	previous, err := a.store.LoadLinks()
	if err != nil {
		return fmt.Errorf("failed to read links table: %w", err)
	}
	if len(previous) > 0 {
		known, unseen := linkDrift(previous, links)
		report.Results = append(report.Results, ProbeResult{
			URL:     report.IndexURL,
			Success: true,
			Kind:    "links_table",
			Message: fmt.Sprintf("%d of %d page 1 links known from the last run, %d unseen", known, len(links), unseen),
		})
	}

	for _, link := range links[:min(probeSample, len(links))] {
		result := ProbeResult{URL: link.URL}
		raw, err := scraper.FetchWithRetry(ctx, a.fetcher, link.URL, appConfig.Crawler.MaxRetries, appConfig.Crawler.GetRetryDelay())
		if err != nil {
			result.Kind = string(scraper.ResultFetchFailure)
			result.Message = err.Error()
		} else {
			detail := scraper.ParseDetail(raw, link, nowIn())
			result.Kind = string(detail.Kind)
			result.Success = detail.Kind == scraper.ResultRecord || detail.Kind == scraper.ResultNotACar
			if detail.Err != nil {
				result.Message = detail.Err.Error()
			}
			if detail.Listing != nil {
				result.Details = detail.Listing
				result.Message = fmt.Sprintf("%s, %d, %s (sold: %v)", detail.Listing.Name, detail.Listing.Price, detail.Listing.EngineVolume, detail.Sold)
			}
		}
		if !result.Success {
			report.OverallSuccess = false
		}
		report.Results = append(report.Results, result)
	}

	out := cmd.OutOrStdout()
	if probeJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		for _, r := range report.Results {
			status := "OK  "
			if !r.Success {
				status = "FAIL"
			}
			fmt.Fprintf(out, "[%s] %-14s %s\n       %s\n", status, r.Kind, r.URL, r.Message)
		}
	}

	if !report.OverallSuccess {
		return fmt.Errorf("probe found parse problems")
	}
	return nil
}

// linkDrift counts current links already in the previous links table and
// those that are not.
func linkDrift(previous, current []models.ListingLink) (known, unseen int) {
	seen := reconcile.IDSet(previous, func(l models.ListingLink) int64 { return l.PostID })
	for _, link := range current {
		if _, ok := seen[link.PostID]; ok {
			known++
		} else {
			unseen++
		}
	}
	return known, unseen
}

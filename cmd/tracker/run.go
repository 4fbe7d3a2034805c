package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full crawl",
	Long:  "Builds the listing index, moves vanished listings to Sold, fetches new listings in checkpointed batches and exports today's snapshot.",
	RunE:  runCrawl,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	a, err := newApp(appConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.crawler()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := c.Run(ctx)
	if err != nil {
		return fmt.Errorf("crawl %s failed: %w", summary.RunID, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d links, %d new, %d sold (absence), %d sold (badge), %d parsed, %d failures, active=%d sold=%d in %v\n",
		summary.RunID, summary.LinksFound, summary.NewLinks, summary.SoldByAbsence, summary.SoldByBadge,
		summary.Parsed, summary.ParseFailures+summary.FetchFailures+summary.NormalizationDefects,
		summary.ActiveTotal, summary.SoldTotal, summary.Duration())
	return nil
}

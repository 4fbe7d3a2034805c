package main

import (
	"fmt"

	"car-market-tracker/internal/cleanup"
	"car-market-tracker/internal/snapshot"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune-exports",
	Short: "Delete export snapshots older than the retention window",
	Long:  "Deletes dated export pairs older than --retention-days (storage.export_retention_days by default). The Active and Sold tables are never touched.",
	RunE:  runPrune,
}

var (
	pruneRetentionDays int
	pruneMaxDeletions  int
	pruneDryRun        bool
)

func init() {
	pruneCmd.Flags().IntVar(&pruneRetentionDays, "retention-days", 0, "Days of exports to keep (overrides config; 0 uses config)")
	pruneCmd.Flags().IntVar(&pruneMaxDeletions, "max-deletions", cleanup.DefaultCleanupConfig().MaxDeletionCount, "Abort if more snapshots than this would be deleted")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "Only report what would be deleted")

	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, _ []string) error {
	cfg := cleanup.CleanupConfig{
		RetentionDays:    appConfig.Storage.ExportRetentionDays,
		MaxDeletionCount: pruneMaxDeletions,
		DryRun:           pruneDryRun,
	}
	if pruneRetentionDays > 0 {
		cfg.RetentionDays = pruneRetentionDays
	}

	svc := cleanup.NewService(snapshot.NewService(appConfig.Storage.ExportDir))
	result, err := svc.PruneSnapshots(cfg)
	if err != nil {
		return err
	}

	verb := "deleted"
	if result.DryRun {
		verb = "would delete"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d/%d snapshots, %d errors\n", verb, result.DeletedCount, result.TargetCount, result.ErrorCount)
	for _, key := range result.DeletedSnapshots {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", key)
	}
	return nil
}

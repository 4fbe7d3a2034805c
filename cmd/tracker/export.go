package main

import (
	"fmt"

	"car-market-tracker/internal/snapshot"
	"car-market-tracker/internal/storage"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export today's snapshot from the canonical tables",
	Long:  "Re-derives brand, model and engine volume, drops duplicate rows and writes active_YYYY-MM-DD.csv and sold_YYYY-MM-DD.csv. An export on the same day overwrites the previous one.",
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	store := storage.NewTableStore(appConfig.Storage.DataDir)
	tables, err := store.Load()
	if err != nil {
		return err
	}

	exports := snapshot.NewService(appConfig.Storage.ExportDir)
	info, err := exports.Export(nowIn(), tables)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "exported %s: %d active -> %s, %d sold -> %s\n",
		info.DateKey(), info.ActiveCount, info.ActivePath, info.SoldCount, info.SoldPath)
	return nil
}

// Package main provides the car-market-tracker CLI.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"car-market-tracker/internal/config"
	"car-market-tracker/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	appConfig  *config.Config
	logCloser  io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Car market tracker for somon.tj",
	Long:  "Crawls the somon.tj car listings, keeps the Active and Sold tables up to date and serves dated snapshots for the dashboard.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Load .env file if it exists
		_ = godotenv.Load()

		cfg, err := config.Load(resolveConfigPath())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		appConfig = cfg

		closer, err := logging.Setup(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Stderr)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		logCloser = closer
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file (default $CONFIG_PATH or config/tracker.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveConfigPath prefers --config, then CONFIG_PATH from the environment
// or .env.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return getEnv("CONFIG_PATH", "config/tracker.yaml")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// nowIn returns the current time in the configured timezone.
func nowIn() time.Time {
	return time.Now().In(appConfig.Location())
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"car-market-tracker/internal/cleanup"
	"car-market-tracker/internal/handlers"
	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/scheduler"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the snapshot API and run the daily crawl",
	Long:  "Starts the read-only HTTP API over the latest snapshot, the admin endpoints and, when enabled, the daily crawl schedule.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := newApp(appConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.crawler()
	if err != nil {
		return err
	}

	appScheduler := scheduler.NewScheduler(c, appConfig.Scheduler, appConfig.Location())
	if err := appScheduler.Start(); err != nil {
		logging.Warnf("[Server] failed to start scheduler: %v", err)
	}
	defer appScheduler.Stop()

	retention := cleanup.DefaultCleanupConfig()
	retention.RetentionDays = appConfig.Storage.ExportRetentionDays

	routes := handlers.Routes{
		Snapshots:    handlers.NewSnapshotHandler(a.exports, appConfig.Storage.LookbackDays, nowIn),
		Admin:        handlers.NewAdminHandler(appScheduler, cleanup.NewService(a.exports), retention, a.limiter),
		AllowOrigins: appConfig.Server.AllowOrigins,
	}
	if a.search != nil {
		routes.Search = handlers.NewSearchHandler(a.search)
	}

	srv := &http.Server{
		Addr:    ":" + appConfig.Server.Port,
		Handler: handlers.NewRouter(routes),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("[Server] starting on port %s", appConfig.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Infof("[Server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

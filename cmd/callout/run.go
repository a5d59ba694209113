package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calloutapp/callout/internal/poller"
	"github.com/calloutapp/callout/internal/retry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dispatch daemon",
	Long:  "Sync offers with the backend, run countdown timers, and serve metrics; blocks until SIGINT/SIGTERM.",
	RunE:  runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	eng, err := buildEngine(logger, true)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer eng.close()

	logger.Info("config loaded",
		"base_url", eng.cfg.API.BaseURL,
		"sync_interval", eng.cfg.Sync.Interval.String(),
		"early_start_minutes", eng.cfg.Schedule.EarlyStartMinutes,
		"provider_level", eng.cfg.Provider.Level,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Seed availability from the dashboard before the loops start.
	if dash, err := eng.client.FetchDashboard(ctx); err != nil {
		logger.Warn("initial dashboard fetch failed", "error", err)
	} else {
		eng.avail.SetStatus(dash.Status)
	}

	source := retry.NewOfferSource(eng.client, eng.cfg.Sync.MaxRetries, eng.cfg.Sync.RetryDelay, logger)
	syncLoop := poller.New(source, eng.orch, eng.cfg.Sync.Interval, logger)

	if eng.cfg.Metrics.Enabled {
		go func() {
			if err := eng.metrics.Serve(ctx, eng.cfg.Metrics.Addr); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
		logger.Info("metrics listening", "addr", eng.cfg.Metrics.Addr)
	}

	go eng.orch.Timers().Run(ctx)

	if err := syncLoop.Run(ctx); err != nil {
		logger.Error("sync loop error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}

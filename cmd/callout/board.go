package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calloutapp/callout/internal/board"
	"github.com/calloutapp/callout/internal/poller"
	"github.com/calloutapp/callout/internal/retry"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Interactive live offer board",
	Long:  "Watch pending offers with live countdowns; accept or decline from the keyboard.",
	RunE:  runBoard,
}

func init() {
	rootCmd.AddCommand(boardCmd)
}

func runBoard(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	eng, err := buildEngine(logger, true)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if dash, err := eng.client.FetchDashboard(ctx); err != nil {
		logger.Warn("initial dashboard fetch failed", "error", err)
	} else {
		eng.avail.SetStatus(dash.Status)
	}

	// The engine loops run underneath the TUI; the board only reads
	// snapshots and dispatches user actions.
	source := retry.NewOfferSource(eng.client, eng.cfg.Sync.MaxRetries, eng.cfg.Sync.RetryDelay, logger)
	syncLoop := poller.New(source, eng.orch, eng.cfg.Sync.Interval, logger)
	go syncLoop.Run(ctx)
	go eng.orch.Timers().Run(ctx)

	if err := board.Run(ctx, eng.orch, eng.avail); err != nil {
		logger.Error("offer board failed", "error", err)
		os.Exit(1)
	}
	return nil
}

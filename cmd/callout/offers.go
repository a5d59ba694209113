package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var offersCmd = &cobra.Command{
	Use:   "offers",
	Short: "List pending offers",
	RunE:  runOffers,
}

func init() {
	rootCmd.AddCommand(offersCmd)
}

func runOffers(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	eng, err := buildEngine(logger, false)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), eng.cfg.API.Timeout)
	defer cancel()

	offers, err := eng.client.FetchOffers(ctx)
	if err != nil {
		return fmt.Errorf("fetching offers: %w", err)
	}

	if len(offers) == 0 {
		fmt.Println("no pending offers")
		return nil
	}

	now := time.Now()
	for _, offer := range offers {
		remaining := offer.ExpiresAt.Sub(now).Round(time.Second)
		line := fmt.Sprintf("%s  %-24s %-16s $%7.2f  %5.1f km  level %d",
			offer.ID, offer.TaskName, offer.CustomerArea, offer.EstimatedPrice, offer.DistanceKm, offer.Level)
		if remaining > 0 {
			line += fmt.Sprintf("  expires in %s", remaining)
		} else {
			line += "  expired"
		}
		fmt.Println(line)
	}
	return nil
}

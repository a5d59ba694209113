package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent offer resolutions",
	Long:  "List how past offers resolved (accepted, declined, expired, lost), newest first, from the local history database.",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "max resolutions to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	eng, err := buildEngine(logger, true)
	if err != nil {
		return err
	}
	defer eng.close()

	resolutions, err := eng.journal.Recent(historyLimit)
	if err != nil {
		return fmt.Errorf("reading resolution history: %w", err)
	}
	if len(resolutions) == 0 {
		fmt.Println("no resolutions recorded yet")
		return nil
	}

	for _, res := range resolutions {
		line := fmt.Sprintf("%s  %-8s %s", res.ResolvedAt.Format(time.RFC3339), res.Kind, res.OfferID)
		if res.Job != nil {
			line += "  " + res.Job.TaskName
		}
		fmt.Println(line)
	}
	return nil
}

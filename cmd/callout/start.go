package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calloutapp/callout/internal/model"
)

var startCmd = &cobra.Command{
	Use:   "start <job-id>",
	Short: "Start a scheduled job",
	Long:  "Start a scheduled job if it is within the early-start window.",
	Args:  cobra.ExactArgs(1),
	RunE:  runStartJob,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStartJob(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	logger := setupLogger(debug)

	eng, err := buildEngine(logger, false)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), eng.cfg.API.Timeout)
	defer cancel()

	sched, err := eng.client.FetchSchedule(ctx)
	if err != nil {
		return fmt.Errorf("fetching schedule: %w", err)
	}

	var job *model.ScheduledJob
	for i := range sched.Jobs {
		if sched.Jobs[i].ID == jobID {
			job = &sched.Jobs[i]
			break
		}
	}
	if job == nil {
		return fmt.Errorf("no scheduled job with id %s", jobID)
	}

	updated, err := eng.orch.StartJob(ctx, *job)
	if errors.Is(err, model.ErrNotStartable) {
		fmt.Println(err)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("job %s is now %s\n", updated.ID, updated.Status)
	return nil
}

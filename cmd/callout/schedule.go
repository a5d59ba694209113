package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/calloutapp/callout/internal/gate"
	"github.com/calloutapp/callout/internal/model"
	"github.com/calloutapp/callout/internal/shift"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show scheduled jobs and on-call shifts",
	RunE:  runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
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

	now := time.Now()
	g := gate.New(time.Duration(eng.cfg.Schedule.EarlyStartMinutes) * time.Minute)

	fmt.Println("scheduled jobs:")
	if len(sched.Jobs) == 0 {
		fmt.Println("  none")
	}
	for _, job := range sched.Jobs {
		line := fmt.Sprintf("  %s  %-24s %s (%d min)",
			job.ID, job.TaskName, job.ScheduledAt.Local().Format("Mon 15:04"), job.EstimatedDurationMinutes)
		if job.Status == model.JobAccepted {
			if g.CanStart(job.ScheduledAt, now) {
				line += "  startable now"
			} else {
				line += fmt.Sprintf("  startable in %d min", g.MinutesUntilStartable(job.ScheduledAt, now))
			}
		} else {
			line += fmt.Sprintf("  %s", job.Status)
		}
		fmt.Println(line)
	}

	fmt.Println("on-call shifts:")
	if len(sched.Shifts) == 0 {
		fmt.Println("  none")
	}
	for _, s := range sched.Shifts {
		marker := " "
		if current, ok := shift.Current(sched.Shifts, now); ok && current.ID == s.ID {
			marker = "*"
		}
		fmt.Printf("  %s %s  %s to %s\n",
			marker, s.ID, s.StartTime.Local().Format("Mon 15:04"), s.EndTime.Local().Format("Mon 15:04"))
	}
	if _, ok := shift.Current(sched.Shifts, now); !ok {
		if next, ok := shift.Next(sched.Shifts, now); ok {
			fmt.Printf("next shift starts %s\n", next.StartTime.Local().Format("Mon 15:04"))
		}
	}
	return nil
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calloutapp/callout/internal/availability"
	"github.com/calloutapp/callout/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show or change availability",
	RunE:  runStatus,
}

var onlineCmd = &cobra.Command{
	Use:   "online",
	Short: "Toggle the online switch",
	RunE:  runToggleOnline,
}

var oncallCmd = &cobra.Command{
	Use:   "oncall",
	Short: "Toggle the on-call switch (level-4 providers only)",
	RunE:  runToggleOnCall,
}

func init() {
	statusCmd.AddCommand(onlineCmd)
	statusCmd.AddCommand(oncallCmd)
	rootCmd.AddCommand(statusCmd)
}

// terminalConfirmer asks on stdin. Anything but "y"/"yes" declines.
type terminalConfirmer struct{}

func (terminalConfirmer) Confirm(prompt string) (bool, error) {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	eng, err := buildEngine(logger, false)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), eng.cfg.API.Timeout)
	defer cancel()

	dash, err := eng.client.FetchDashboard(ctx)
	if err != nil {
		return fmt.Errorf("fetching dashboard: %w", err)
	}

	printStatus(dash.Status)
	fmt.Printf("pending offers: %d\n", len(dash.PendingOffers))
	if dash.ActiveJob != nil {
		fmt.Printf("active job: %s (%s)\n", dash.ActiveJob.TaskName, dash.ActiveJob.Status)
	}
	fmt.Printf("earnings: $%.2f, performance: %.1f\n",
		float64(dash.EarningsCents)/100, dash.PerformanceScore)
	return nil
}

func runToggleOnline(cmd *cobra.Command, args []string) error {
	return toggle(cmd.Context(), false)
}

func runToggleOnCall(cmd *cobra.Command, args []string) error {
	return toggle(cmd.Context(), true)
}

func toggle(parent context.Context, onCall bool) error {
	logger := setupLogger(debug)

	eng, err := buildEngine(logger, false)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, cancel := context.WithTimeout(parent, eng.cfg.API.Timeout)
	defer cancel()

	// Seed the controller with the server's view so the toggle flips the
	// real current value.
	dash, err := eng.client.FetchDashboard(ctx)
	if err != nil {
		return fmt.Errorf("fetching dashboard: %w", err)
	}
	eng.avail.SetStatus(dash.Status)

	// The controller treats an on-call toggle below level 4 as a contract
	// violation, so gate here at the user boundary.
	if onCall && dash.Status.Level != model.LevelEmergency {
		return fmt.Errorf("on-call is only available to level-4 providers (you are level %d)", dash.Status.Level)
	}

	var status model.ProviderStatus
	if onCall {
		status, err = eng.avail.ToggleOnCall(ctx)
	} else {
		status, err = eng.avail.ToggleOnline(ctx)
	}
	if errors.Is(err, availability.ErrConfirmationDeclined) {
		fmt.Println("cancelled")
		return nil
	}
	if err != nil {
		return err
	}

	printStatus(status)
	return nil
}

func printStatus(status model.ProviderStatus) {
	online := "offline"
	if status.IsOnline {
		online = "online"
	}
	fmt.Printf("status: %s, level %d\n", online, status.Level)
	if status.Level == model.LevelEmergency {
		onCall := "off call"
		if status.IsOnCall {
			onCall = "on call"
		}
		fmt.Printf("on-call: %s\n", onCall)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calloutapp/callout/internal/model"
)

var acceptCmd = &cobra.Command{
	Use:   "accept <offer-id>",
	Short: "Accept a pending offer",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccept,
}

var declineCmd = &cobra.Command{
	Use:   "decline <offer-id>",
	Short: "Decline a pending offer",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecline,
}

func init() {
	rootCmd.AddCommand(acceptCmd)
	rootCmd.AddCommand(declineCmd)
}

func runAccept(cmd *cobra.Command, args []string) error {
	return resolveOffer(cmd.Context(), args[0], true)
}

func runDecline(cmd *cobra.Command, args []string) error {
	return resolveOffer(cmd.Context(), args[0], false)
}

// resolveOffer fetches current offers, seeds the orchestrator, and runs the
// accept or decline through the full state machine so conflicts and busy
// rejections behave exactly as in the daemon.
func resolveOffer(parent context.Context, offerID string, accept bool) error {
	logger := setupLogger(debug)

	eng, err := buildEngine(logger, true)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, cancel := context.WithTimeout(parent, eng.cfg.API.Timeout)
	defer cancel()

	offers, err := eng.client.FetchOffers(ctx)
	if err != nil {
		return fmt.Errorf("fetching offers: %w", err)
	}
	eng.orch.Reconcile(offers)

	var res model.Resolution
	if accept {
		res, err = eng.orch.Accept(ctx, offerID)
	} else {
		res, err = eng.orch.Decline(ctx, offerID)
	}

	switch {
	case errors.Is(err, model.ErrOfferGone):
		fmt.Printf("offer %s is no longer available\n", offerID)
		return nil
	case errors.Is(err, model.ErrUnknownOffer):
		return fmt.Errorf("no pending offer with id %s", offerID)
	case err != nil:
		return fmt.Errorf("request failed, try again: %w", err)
	}

	if res.Kind == model.ResolutionAccepted && res.Job != nil {
		fmt.Printf("accepted: %s (%s), job %s\n", res.Job.TaskName, res.Job.CustomerArea, res.Job.ID)
	} else {
		fmt.Printf("offer %s %s\n", offerID, res.Kind)
	}
	return nil
}

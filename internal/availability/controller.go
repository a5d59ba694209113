// Package availability owns the provider's online/on-call switches.
package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/calloutapp/callout/internal/metrics"
	"github.com/calloutapp/callout/internal/model"
)

// ErrConfirmationDeclined means the provider backed out of the confirmation
// prompt; the toggle was never sent.
var ErrConfirmationDeclined = errors.New("confirmation declined")

// Confirmer asks the provider to confirm a consequential action before it is
// issued. The CLI implements this with a terminal prompt; tests with a fake.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(prompt string) (bool, error)

func (f ConfirmFunc) Confirm(prompt string) (bool, error) { return f(prompt) }

// AutoConfirm approves every prompt. Used with --yes and in the daemon.
var AutoConfirm = ConfirmFunc(func(string) (bool, error) { return true, nil })

// Controller mediates toggle requests against a confirmation step and the
// remote authority. Each switch has its own in-flight guard: a second toggle
// of the same switch while one is in flight is rejected with model.ErrBusy
// and never reaches the network. On remote failure the switch rolls back to
// its pre-toggle value.
type Controller struct {
	mu     sync.Mutex
	api    model.DispatchAPI
	status model.ProviderStatus

	onlineInFlight bool
	onCallInFlight bool

	confirmer Confirmer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewController creates a controller seeded with the provider's current
// status (normally from the dashboard fetch).
func NewController(api model.DispatchAPI, status model.ProviderStatus, confirmer Confirmer, m *metrics.Metrics, logger *slog.Logger) *Controller {
	return &Controller{
		api:       api,
		status:    status,
		confirmer: confirmer,
		metrics:   m,
		logger:    logger,
	}
}

// Status returns the current availability snapshot.
func (c *Controller) Status() model.ProviderStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetStatus replaces the local snapshot with a server-provided one. Ignored
// while either toggle is in flight so a stale dashboard fetch cannot clobber
// an optimistic value mid-toggle.
func (c *Controller) SetStatus(status model.ProviderStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onlineInFlight || c.onCallInFlight {
		return
	}
	c.status = status
}

// ToggleOnline flips the online switch after confirmation. Going offline
// warns about losing offer eligibility.
func (c *Controller) ToggleOnline(ctx context.Context) (model.ProviderStatus, error) {
	c.mu.Lock()
	if c.onlineInFlight {
		current := c.status
		c.mu.Unlock()
		return current, fmt.Errorf("toggle online: %w", model.ErrBusy)
	}
	target := !c.status.IsOnline
	c.mu.Unlock()

	prompt := "Go online and start receiving offers?"
	if !target {
		prompt = "Go offline? You will stop receiving offers."
	}
	ok, err := c.confirmer.Confirm(prompt)
	if err != nil {
		return c.Status(), fmt.Errorf("toggle online: %w", err)
	}
	if !ok {
		return c.Status(), ErrConfirmationDeclined
	}

	return c.submit(ctx, "online", model.StatusPatch{IsOnline: &target}, func(s *model.ProviderStatus, v bool) {
		s.IsOnline = v
	})
}

// ToggleOnCall flips the on-call switch after confirmation. Calling it for a
// provider below level 4 is a contract violation: the caller is expected to
// gate on the provider's level, so this panics rather than returning an
// error.
func (c *Controller) ToggleOnCall(ctx context.Context) (model.ProviderStatus, error) {
	c.mu.Lock()
	if c.status.Level != model.LevelEmergency {
		level := c.status.Level
		c.mu.Unlock()
		panic(fmt.Sprintf("availability: on-call toggle for level-%d provider", level))
	}
	if c.onCallInFlight {
		current := c.status
		c.mu.Unlock()
		return current, fmt.Errorf("toggle on-call: %w", model.ErrBusy)
	}
	target := !c.status.IsOnCall
	c.mu.Unlock()

	prompt := "Go on call? You will start receiving emergency offers."
	if !target {
		prompt = "Leave on-call? You will lose emergency-offer eligibility."
	}
	ok, err := c.confirmer.Confirm(prompt)
	if err != nil {
		return c.Status(), fmt.Errorf("toggle on-call: %w", err)
	}
	if !ok {
		return c.Status(), ErrConfirmationDeclined
	}

	return c.submit(ctx, "oncall", model.StatusPatch{IsOnCall: &target}, func(s *model.ProviderStatus, v bool) {
		s.IsOnCall = v
	})
}

// submit applies the optimistic value, issues the patch, and either adopts
// the server's answer or rolls back.
func (c *Controller) submit(ctx context.Context, switchName string, patch model.StatusPatch, apply func(*model.ProviderStatus, bool)) (model.ProviderStatus, error) {
	var target bool
	switch switchName {
	case "online":
		target = *patch.IsOnline
	case "oncall":
		target = *patch.IsOnCall
	}

	c.mu.Lock()
	// Re-check the guard: the confirmation prompt ran unlocked.
	if (switchName == "online" && c.onlineInFlight) || (switchName == "oncall" && c.onCallInFlight) {
		c.mu.Unlock()
		return c.Status(), fmt.Errorf("toggle %s: %w", switchName, model.ErrBusy)
	}
	previous := c.status
	apply(&c.status, target)
	c.setInFlight(switchName, true)
	c.mu.Unlock()

	updated, err := c.api.UpdateStatus(ctx, patch)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setInFlight(switchName, false)

	if err != nil {
		// Roll back: the optimistic value must never persist unconfirmed.
		c.status = previous
		c.metrics.ToggleFailures.WithLabelValues(switchName).Inc()
		c.logger.Warn("toggle failed, rolled back",
			"switch", switchName,
			"target", target,
			"error", err,
		)
		return c.status, fmt.Errorf("toggle %s: %w", switchName, err)
	}

	c.status = updated
	c.logger.Info("availability updated",
		"online", updated.IsOnline,
		"on_call", updated.IsOnCall,
	)
	return c.status, nil
}

func (c *Controller) setInFlight(switchName string, v bool) {
	switch switchName {
	case "online":
		c.onlineInFlight = v
	case "oncall":
		c.onCallInFlight = v
	}
}

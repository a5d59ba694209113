// Package poller runs the daemon's outer sync loop against the dispatch
// backend.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calloutapp/callout/internal/dispatch"
	"github.com/calloutapp/callout/internal/model"
)

// Poller periodically pulls the offer list from the server and hands it to
// the orchestrator for reconciliation. A failed sync leaves local state
// untouched: pending offers keep counting down on their own timers.
type Poller struct {
	source   model.OfferSource
	orch     *dispatch.Orchestrator
	interval time.Duration
	logger   *slog.Logger
}

// New creates a poller syncing at the given interval.
func New(source model.OfferSource, orch *dispatch.Orchestrator, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		source:   source,
		orch:     orch,
		interval: interval,
		logger:   logger,
	}
}

// Run starts the sync loop. It runs one immediate sync, then ticks on the
// configured interval. It returns nil when ctx is cancelled (graceful shutdown).
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("starting offer sync", "interval", p.interval.String())

	if err := p.SyncOnce(ctx); err != nil {
		p.logger.Error("offer sync failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down offer sync")
			return nil
		case <-time.After(p.interval):
			if err := p.SyncOnce(ctx); err != nil {
				p.logger.Error("offer sync failed", "error", err)
			}
		}
	}
}

// SyncOnce fetches the server's offer list and reconciles local state
// against it.
func (p *Poller) SyncOnce(ctx context.Context) error {
	offers, err := p.source.FetchOffers(ctx)
	if err != nil {
		return fmt.Errorf("syncing offers: %w", err)
	}

	p.orch.Reconcile(offers)

	p.logger.Debug("offers synced",
		"server", len(offers),
		"pending", len(p.orch.Pending()),
	)
	return nil
}

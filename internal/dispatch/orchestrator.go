// Package dispatch coordinates the offer lifecycle: it is the only writer of
// the pending set and the boundary where remote errors become the engine's
// error taxonomy.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/calloutapp/callout/internal/clock"
	"github.com/calloutapp/callout/internal/gate"
	"github.com/calloutapp/callout/internal/metrics"
	"github.com/calloutapp/callout/internal/model"
	"github.com/calloutapp/callout/internal/store"
	"github.com/calloutapp/callout/internal/timer"
)

// Orchestrator owns every transition of an offer out of the pending set.
//
// Per offer the state machine is:
//
//	Pending -> Accepting -> Resolved(accepted | lost)
//	Pending -> Declining -> Resolved(declined | lost)
//	Pending -> Resolved(expired)   (local, no network round-trip)
//
// Accepting/Declining are the in-flight states: a second accept/decline for
// the same offer while one is in flight is rejected locally with
// model.ErrBusy. Accept/decline on an already-resolved offer is a no-op that
// returns the existing resolution.
type Orchestrator struct {
	mu          sync.Mutex
	api         model.DispatchAPI
	offers      *store.OfferStore
	timers      *timer.Manager
	journal     model.ResolutionStore
	clk         clock.Clock
	gate        *gate.Gate
	metrics     *metrics.Metrics
	logger      *slog.Logger
	resolutions map[string]model.Resolution
	inFlight    map[string]bool
	activeJob   *model.Job
}

// New wires the orchestrator and its timer manager together. The timer
// manager reports expiries back here; it never touches the store itself.
func New(api model.DispatchAPI, journal model.ResolutionStore, clk clock.Clock, g *gate.Gate, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		api:         api,
		offers:      store.NewOfferStore(),
		journal:     journal,
		clk:         clk,
		gate:        g,
		metrics:     m,
		logger:      logger,
		resolutions: make(map[string]model.Resolution),
		inFlight:    make(map[string]bool),
	}
	o.timers = timer.NewManager(clk, o.expire, logger)
	return o
}

// Timers exposes the timer manager so the daemon can run its tick loop and
// the board can read countdowns.
func (o *Orchestrator) Timers() *timer.Manager { return o.timers }

// Pending returns a snapshot of the pending set, soonest expiry first.
func (o *Orchestrator) Pending() []model.JobOffer { return o.offers.Snapshot() }

// ActiveJob returns the job materialized by the last accept, if any.
func (o *Orchestrator) ActiveJob() *model.Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeJob
}

// Resolution returns the recorded outcome for an offer, checking memory
// first and the journal second.
func (o *Orchestrator) Resolution(offerID string) (model.Resolution, bool) {
	o.mu.Lock()
	if res, ok := o.resolutions[offerID]; ok {
		o.mu.Unlock()
		return res, true
	}
	o.mu.Unlock()

	res, err := o.journal.Lookup(offerID)
	if err != nil {
		o.logger.Warn("journal lookup failed", "offer_id", offerID, "error", err)
		return model.Resolution{}, false
	}
	if res == nil {
		return model.Resolution{}, false
	}
	return *res, true
}

// AddOffer puts a new offer into the pending set and starts its countdown.
// Offers that already resolved (locally or in the journal) are ignored: the
// server re-sending a resolved offer must not resurrect it.
func (o *Orchestrator) AddOffer(offer model.JobOffer) bool {
	if _, resolved := o.Resolution(offer.ID); resolved {
		return false
	}
	if !o.offers.Add(offer) {
		return false
	}
	o.timers.Track(offer)
	o.metrics.OffersReceived.WithLabelValues(fmt.Sprint(offer.Level)).Inc()
	o.metrics.PendingOffers.Set(float64(o.offers.Len()))
	o.logger.Info("offer received",
		"offer_id", offer.ID,
		"task", offer.TaskName,
		"level", offer.Level,
		"expires_at", offer.ExpiresAt,
	)
	return true
}

// Accept resolves an offer by taking the job. Valid only from Pending; on a
// server conflict the offer is resolved lost and the returned error matches
// model.ErrOfferGone. On a transient failure the offer stays pending and
// only the in-flight flag is cleared.
func (o *Orchestrator) Accept(ctx context.Context, offerID string) (model.Resolution, error) {
	if res, done, err := o.begin(offerID, "accept"); done || err != nil {
		return res, err
	}

	job, err := o.api.AcceptOffer(ctx, offerID)

	o.mu.Lock()
	delete(o.inFlight, offerID)
	o.mu.Unlock()

	if err != nil {
		if model.IsConflict(err) {
			res := o.resolve(offerID, model.ResolutionLost, nil)
			return res, fmt.Errorf("accept offer %s: %w", offerID, model.ErrOfferGone)
		}
		o.metrics.APIErrors.Inc()
		o.expireIfOverdue(offerID)
		return model.Resolution{}, fmt.Errorf("accept offer %s: %w", offerID, err)
	}

	res := o.resolve(offerID, model.ResolutionAccepted, &job)
	o.mu.Lock()
	o.activeJob = &job
	o.mu.Unlock()
	return res, nil
}

// Decline resolves an offer by turning the job down. Symmetric with Accept.
func (o *Orchestrator) Decline(ctx context.Context, offerID string) (model.Resolution, error) {
	if res, done, err := o.begin(offerID, "decline"); done || err != nil {
		return res, err
	}

	err := o.api.DeclineOffer(ctx, offerID)

	o.mu.Lock()
	delete(o.inFlight, offerID)
	o.mu.Unlock()

	if err != nil {
		if model.IsConflict(err) {
			res := o.resolve(offerID, model.ResolutionLost, nil)
			return res, fmt.Errorf("decline offer %s: %w", offerID, model.ErrOfferGone)
		}
		o.metrics.APIErrors.Inc()
		o.expireIfOverdue(offerID)
		return model.Resolution{}, fmt.Errorf("decline offer %s: %w", offerID, err)
	}

	return o.resolve(offerID, model.ResolutionDeclined, nil), nil
}

// begin performs the shared Pending-state checks for accept/decline. done is
// true when the offer already has a resolution (idempotent no-op).
func (o *Orchestrator) begin(offerID, action string) (model.Resolution, bool, error) {
	if res, ok := o.Resolution(offerID); ok {
		// Already resolved: report the existing outcome, not an error.
		return res, true, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[offerID] {
		return model.Resolution{}, false, fmt.Errorf("%s offer %s: %w", action, offerID, model.ErrBusy)
	}
	if _, ok := o.offers.Get(offerID); !ok {
		return model.Resolution{}, false, fmt.Errorf("%s offer %s: %w", action, offerID, model.ErrUnknownOffer)
	}
	o.inFlight[offerID] = true
	return model.Resolution{}, false, nil
}

// expire is the timer manager's expiry handler. Expiry is locally
// authoritative: no network round-trip. If an accept/decline is in flight
// for the offer it has already left Pending, so the expiry is dropped and
// the in-flight outcome decides.
func (o *Orchestrator) expire(offerID string) {
	o.mu.Lock()
	if o.inFlight[offerID] {
		o.mu.Unlock()
		return
	}
	if _, ok := o.resolutions[offerID]; ok {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	if _, ok := o.offers.Get(offerID); !ok {
		return
	}
	res := o.resolve(offerID, model.ResolutionExpired, nil)
	o.logger.Info("offer expired", "offer_id", offerID, "resolved_at", res.ResolvedAt)
}

// expireIfOverdue resolves an offer whose countdown ran out while an
// accept/decline held it in flight. The timer fires once and that firing was
// dropped in favor of the in-flight call, so when the call fails transiently
// the check has to happen here or the offer would linger pending until the
// next sync.
func (o *Orchestrator) expireIfOverdue(offerID string) {
	if cd, ok := o.timers.Remaining(offerID); ok && cd.Expired {
		o.expire(offerID)
	}
}

// Reconcile folds a fresh server offer list into local state: new offers are
// added, and offers still pending locally but absent from the server are
// resolved lost (they were reassigned or expired server-side).
func (o *Orchestrator) Reconcile(serverOffers []model.JobOffer) {
	serverIDs := make(map[string]bool, len(serverOffers))
	for _, offer := range serverOffers {
		serverIDs[offer.ID] = true
		o.AddOffer(offer)
	}

	for _, offer := range o.offers.Snapshot() {
		if serverIDs[offer.ID] {
			continue
		}
		o.mu.Lock()
		busy := o.inFlight[offer.ID]
		o.mu.Unlock()
		if busy {
			// An accept/decline is mid-flight; its outcome wins.
			continue
		}
		o.resolve(offer.ID, model.ResolutionLost, nil)
		o.logger.Info("offer resolved elsewhere", "offer_id", offer.ID)
	}
}

// StartJob progresses a scheduled job beyond accepted, enforcing the
// early-start window at the engine boundary.
func (o *Orchestrator) StartJob(ctx context.Context, job model.ScheduledJob) (model.Job, error) {
	now, err := o.clk.Now()
	if err != nil {
		return model.Job{}, fmt.Errorf("start job %s: %w", job.ID, model.ErrClockUnavailable)
	}
	if job.Status == model.JobAccepted && !o.gate.CanStart(job.ScheduledAt, now) {
		wait := o.gate.MinutesUntilStartable(job.ScheduledAt, now)
		return model.Job{}, fmt.Errorf("start job %s: startable in %d min: %w", job.ID, wait, model.ErrNotStartable)
	}

	updated, err := o.api.UpdateJobStatus(ctx, job.ID, model.JobInProgress)
	if err != nil {
		o.metrics.APIErrors.Inc()
		return model.Job{}, fmt.Errorf("start job %s: %w", job.ID, err)
	}

	o.mu.Lock()
	if o.activeJob != nil && o.activeJob.ID == updated.ID {
		o.activeJob = &updated
	}
	o.mu.Unlock()
	return updated, nil
}

// resolve removes the offer from the pending set, tears down its timer, and
// records the resolution in memory and the journal. First resolution wins.
func (o *Orchestrator) resolve(offerID string, kind model.ResolutionKind, job *model.Job) model.Resolution {
	now, err := o.clk.Now()
	if err != nil {
		now = time.Time{}
	}
	res := model.Resolution{OfferID: offerID, Kind: kind, Job: job, ResolvedAt: now}

	o.mu.Lock()
	if existing, ok := o.resolutions[offerID]; ok {
		o.mu.Unlock()
		return existing
	}
	o.resolutions[offerID] = res
	o.mu.Unlock()

	o.offers.Remove(offerID)
	o.timers.Untrack(offerID)

	if err := o.journal.Record(res); err != nil {
		o.logger.Warn("journal write failed", "offer_id", offerID, "error", err)
	}
	o.metrics.OffersResolved.WithLabelValues(string(kind)).Inc()
	o.metrics.PendingOffers.Set(float64(o.offers.Len()))
	return res
}

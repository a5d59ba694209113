// Package timer derives live countdowns and expiry events for pending offers.
package timer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/calloutapp/callout/internal/clock"
	"github.com/calloutapp/callout/internal/model"
)

// TickInterval is the countdown resolution.
const TickInterval = 1 * time.Second

// Countdown is the remaining time on an offer, as shown to the provider.
type Countdown struct {
	Minutes int
	Seconds int
	Expired bool
}

// ExpiryHandler receives each offer id exactly once, the moment its offer
// expires. The manager never mutates the offer store itself; removal is the
// handler's (the orchestrator's) job.
type ExpiryHandler func(offerID string)

type offerTimer struct {
	expiresAt time.Time
	last      Countdown
	fired     bool
}

// Manager tracks one countdown per pending offer. Timers are independent:
// tracking or untracking one offer never disturbs the others. If the clock
// fails, all countdowns freeze at their last known value until it recovers.
type Manager struct {
	mu       sync.Mutex
	clk      clock.Clock
	timers   map[string]*offerTimer
	onExpiry ExpiryHandler
	logger   *slog.Logger
	frozen   bool // clock currently unavailable
}

// NewManager creates a timer manager. onExpiry may be nil, in which case
// expiries are only reflected in Remaining.
func NewManager(clk clock.Clock, onExpiry ExpiryHandler, logger *slog.Logger) *Manager {
	return &Manager{
		clk:      clk,
		timers:   make(map[string]*offerTimer),
		onExpiry: onExpiry,
		logger:   logger,
	}
}

// Track starts a countdown for the offer. Tracking an already-tracked offer
// is a no-op, so a server re-send cannot reset a fired timer.
func (m *Manager) Track(offer model.JobOffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.timers[offer.ID]; ok {
		return
	}
	t := &offerTimer{expiresAt: offer.ExpiresAt}
	if now, err := m.clk.Now(); err == nil {
		t.last = countdownAt(offer.ExpiresAt, now)
	}
	m.timers[offer.ID] = t
}

// Untrack cancels and deletes the offer's timer synchronously. A subsequent
// tick cannot fire a stale expiry for it.
func (m *Manager) Untrack(offerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.timers, offerID)
}

// Remaining returns the current countdown for an offer, or false if the
// offer is not tracked. In degraded mode this is the last known value.
func (m *Manager) Remaining(offerID string) (Countdown, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.timers[offerID]
	if !ok {
		return Countdown{}, false
	}
	return t.last, true
}

// Tick recomputes every countdown and fires expiry handlers for offers that
// crossed zero since the last tick. Each offer fires at most once, no matter
// how many ticks follow its expiry.
func (m *Manager) Tick() {
	m.mu.Lock()
	now, err := m.clk.Now()
	if err != nil {
		if !m.frozen {
			m.frozen = true
			m.logger.Warn("clock unavailable, countdowns frozen", "error", err)
		}
		m.mu.Unlock()
		return
	}
	if m.frozen {
		m.frozen = false
		m.logger.Info("clock recovered, countdowns resumed")
	}

	var expired []string
	for id, t := range m.timers {
		t.last = countdownAt(t.expiresAt, now)
		if t.last.Expired && !t.fired {
			t.fired = true
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	// Handlers run outside the lock; they call back into the orchestrator,
	// which may Untrack.
	if m.onExpiry != nil {
		for _, id := range expired {
			m.onExpiry(id)
		}
	}
}

// Run ticks the manager every TickInterval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tracked returns the number of live timers.
func (m *Manager) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// countdownAt computes remaining time. now == expiresAt counts as expired:
// the interval is closed on the expiry side.
func countdownAt(expiresAt, now time.Time) Countdown {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return Countdown{Expired: true}
	}
	return Countdown{
		Minutes: int(remaining / time.Minute),
		Seconds: int(remaining % time.Minute / time.Second),
	}
}

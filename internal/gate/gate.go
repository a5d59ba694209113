// Package gate decides whether a scheduled job may be started yet.
package gate

import (
	"time"

	"github.com/calloutapp/callout/internal/model"
)

// DefaultEarlyStart is how long before the scheduled time a provider may
// begin travel/work when no window is configured.
const DefaultEarlyStart = 30 * time.Minute

// Gate applies the early-start window to scheduled jobs.
type Gate struct {
	earlyStart time.Duration
}

// New creates a gate with the given early-start window. A non-positive
// window falls back to DefaultEarlyStart.
func New(earlyStart time.Duration) *Gate {
	if earlyStart <= 0 {
		earlyStart = DefaultEarlyStart
	}
	return &Gate{earlyStart: earlyStart}
}

// CanStart reports whether a job scheduled for scheduledAt may be started at
// now: true iff scheduledAt - now <= earlyStart. Jobs already past the
// accepted status are not gated; callers check status first.
func (g *Gate) CanStart(scheduledAt, now time.Time) bool {
	return scheduledAt.Sub(now) <= g.earlyStart
}

// CanStartJob applies the gate to a scheduled job, skipping it entirely once
// the job has progressed beyond accepted.
func (g *Gate) CanStartJob(job model.ScheduledJob, now time.Time) bool {
	if job.Status != model.JobAccepted {
		return true
	}
	return g.CanStart(job.ScheduledAt, now)
}

// MinutesUntilStartable returns how many whole minutes remain until the job
// becomes startable, rounding up. The result is 0 only when the job is
// already startable, so the user is never told "0 minutes" while blocked.
func (g *Gate) MinutesUntilStartable(scheduledAt, now time.Time) int {
	until := scheduledAt.Add(-g.earlyStart).Sub(now)
	if until <= 0 {
		return 0
	}
	minutes := int(until / time.Minute)
	if until%time.Minute != 0 {
		minutes++
	}
	return minutes
}

// EarlyStart returns the configured window.
func (g *Gate) EarlyStart() time.Duration { return g.earlyStart }

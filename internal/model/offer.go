package model

import (
	"context"
	"time"
)

// LevelEmergency is the highest service level. Only level-4 providers take
// on-call shifts and receive emergency offers.
const LevelEmergency = 4

// JobOffer is a time-bounded proposal of a single job to a single provider.
// Once resolved (accepted, declined, expired, or lost) an offer is immutable
// and leaves the pending set for good.
type JobOffer struct {
	ID             string // offer-scoped, unique
	JobID          string // the job this offer resolves to if accepted
	TaskName       string
	CategoryName   string
	Level          int // service level 1-4, 4 = emergency
	CustomerArea   string
	DistanceKm     float64
	EstimatedPrice float64
	SLADeadline    *time.Time // customer-facing commitment, distinct from ExpiresAt
	ExpiresAt      time.Time
	CreatedAt      time.Time
}

// JobStatus tracks a job's progression after the offer was accepted.
type JobStatus string

const (
	JobAccepted   JobStatus = "accepted"
	JobEnRoute    JobStatus = "en_route"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
)

// Job is an accepted piece of work.
type Job struct {
	ID           string
	TaskName     string
	CategoryName string
	Level        int
	CustomerArea string
	Status       JobStatus
	ScheduledAt  *time.Time // nil for start-now jobs
	Price        float64
}

// ScheduledJob is a job with a fixed start time, gated by the early-start window.
type ScheduledJob struct {
	ID                       string
	TaskName                 string
	CustomerArea             string
	ScheduledAt              time.Time
	EstimatedDurationMinutes int
	Status                   JobStatus
}

// OnCallShift is an interval [StartTime, EndTime) during which a level-4
// provider is expected to be reachable for emergency offers. Shifts for a
// provider do not overlap (upstream guarantee, not enforced here).
type OnCallShift struct {
	ID        string
	StartTime time.Time
	EndTime   time.Time
	IsActive  bool // server-side hint only; membership is always recomputed
}

// ProviderStatus is the provider's current availability.
type ProviderStatus struct {
	IsOnline bool
	IsOnCall bool
	Level    int
}

// StatusPatch is a partial availability update. Nil fields are left unchanged.
type StatusPatch struct {
	IsOnline *bool
	IsOnCall *bool
}

// Dashboard is the provider's home payload.
type Dashboard struct {
	Status           ProviderStatus
	ActiveJob        *Job
	PendingOffers    []JobOffer
	EarningsCents    int64
	PerformanceScore float64
}

// Schedule holds upcoming scheduled jobs and on-call shifts.
type Schedule struct {
	Jobs   []ScheduledJob
	Shifts []OnCallShift
}

// ResolutionKind is the terminal outcome of an offer.
type ResolutionKind string

const (
	ResolutionAccepted ResolutionKind = "accepted"
	ResolutionDeclined ResolutionKind = "declined"
	ResolutionExpired  ResolutionKind = "expired"
	// ResolutionLost means the server resolved the offer first: taken by
	// another provider, expired server-side, or withdrawn.
	ResolutionLost ResolutionKind = "lost"
)

// Resolution records how an offer left the pending set.
type Resolution struct {
	OfferID    string
	Kind       ResolutionKind
	Job        *Job // set only for ResolutionAccepted
	ResolvedAt time.Time
}

// OfferSource fetches the provider's currently pending offers.
type OfferSource interface {
	FetchOffers(ctx context.Context) ([]JobOffer, error)
}

// ScheduleSource fetches the provider's schedule.
type ScheduleSource interface {
	FetchSchedule(ctx context.Context) (Schedule, error)
}

// DispatchAPI is the remote authority for offers, availability, and jobs.
type DispatchAPI interface {
	OfferSource
	ScheduleSource
	FetchDashboard(ctx context.Context) (Dashboard, error)
	AcceptOffer(ctx context.Context, offerID string) (Job, error)
	DeclineOffer(ctx context.Context, offerID string) error
	UpdateStatus(ctx context.Context, patch StatusPatch) (ProviderStatus, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) (Job, error)
}

// ResolutionStore persists offer resolutions across restarts.
type ResolutionStore interface {
	Record(res Resolution) error
	Lookup(offerID string) (*Resolution, error)
	Recent(limit int) ([]Resolution, error)
}

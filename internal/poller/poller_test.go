package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/calloutapp/callout/internal/clock"
	"github.com/calloutapp/callout/internal/dispatch"
	"github.com/calloutapp/callout/internal/gate"
	"github.com/calloutapp/callout/internal/metrics"
	"github.com/calloutapp/callout/internal/model"
)

var base = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubAPI serves a fixed offer list; only the read side matters here.
type stubAPI struct {
	offers []model.JobOffer
	err    error
}

func (s *stubAPI) FetchOffers(context.Context) ([]model.JobOffer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.offers, nil
}

func (s *stubAPI) FetchSchedule(context.Context) (model.Schedule, error) {
	return model.Schedule{}, nil
}
func (s *stubAPI) FetchDashboard(context.Context) (model.Dashboard, error) {
	return model.Dashboard{}, nil
}
func (s *stubAPI) AcceptOffer(context.Context, string) (model.Job, error) {
	return model.Job{}, nil
}
func (s *stubAPI) DeclineOffer(context.Context, string) error { return nil }
func (s *stubAPI) UpdateStatus(context.Context, model.StatusPatch) (model.ProviderStatus, error) {
	return model.ProviderStatus{}, nil
}
func (s *stubAPI) UpdateJobStatus(context.Context, string, model.JobStatus) (model.Job, error) {
	return model.Job{}, nil
}

type nopJournal struct{}

func (nopJournal) Record(model.Resolution) error            { return nil }
func (nopJournal) Lookup(string) (*model.Resolution, error) { return nil, nil }
func (nopJournal) Recent(int) ([]model.Resolution, error)   { return nil, nil }

func newOrchestrator(api model.DispatchAPI) *dispatch.Orchestrator {
	return dispatch.New(api, nopJournal{}, clock.NewManual(base), gate.New(30*time.Minute), metrics.New(), discardLogger())
}

func TestSyncOnce_AddsServerOffers(t *testing.T) {
	api := &stubAPI{offers: []model.JobOffer{
		{ID: "o1", ExpiresAt: base.Add(time.Minute)},
		{ID: "o2", ExpiresAt: base.Add(2 * time.Minute)},
	}}
	orch := newOrchestrator(api)
	p := New(api, orch, time.Second, discardLogger())

	if err := p.SyncOnce(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got := len(orch.Pending()); got != 2 {
		t.Errorf("expected 2 pending offers, got %d", got)
	}
}

func TestSyncOnce_MarksMissingOffersLost(t *testing.T) {
	api := &stubAPI{offers: []model.JobOffer{{ID: "o1", ExpiresAt: base.Add(time.Minute)}}}
	orch := newOrchestrator(api)
	orch.AddOffer(model.JobOffer{ID: "gone", ExpiresAt: base.Add(time.Minute)})

	p := New(api, orch, time.Second, discardLogger())
	if err := p.SyncOnce(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	res, ok := orch.Resolution("gone")
	if !ok || res.Kind != model.ResolutionLost {
		t.Errorf("expected gone to resolve lost, got %+v ok=%v", res, ok)
	}
	pending := orch.Pending()
	if len(pending) != 1 || pending[0].ID != "o1" {
		t.Errorf("expected only o1 pending, got %v", pending)
	}
}

func TestSyncOnce_FetchFailureLeavesStateUntouched(t *testing.T) {
	api := &stubAPI{err: errors.New("dns failure")}
	orch := newOrchestrator(api)
	orch.AddOffer(model.JobOffer{ID: "o1", ExpiresAt: base.Add(time.Minute)})

	p := New(api, orch, time.Second, discardLogger())
	if err := p.SyncOnce(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	if got := len(orch.Pending()); got != 1 {
		t.Errorf("a failed sync must not mutate local state, got %d pending", got)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	api := &stubAPI{}
	orch := newOrchestrator(api)
	p := New(api, orch, 10*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v, want nil on cancellation", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}

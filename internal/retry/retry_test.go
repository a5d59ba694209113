package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/calloutapp/callout/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedSource returns one queued response per call.
type scriptedSource struct {
	calls     int
	responses []error
	offers    []model.JobOffer
}

func (s *scriptedSource) FetchOffers(context.Context) ([]model.JobOffer, error) {
	err := s.responses[s.calls]
	s.calls++
	if err != nil {
		return nil, err
	}
	return s.offers, nil
}

func TestFetchOffers_RetriesTransientThenSucceeds(t *testing.T) {
	inner := &scriptedSource{
		responses: []error{errors.New("connection refused"), nil},
		offers:    []model.JobOffer{{ID: "o1"}},
	}
	src := NewOfferSource(inner, 2, time.Millisecond, discardLogger())

	offers, err := src.FetchOffers(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(offers) != 1 || inner.calls != 2 {
		t.Errorf("expected success on second call, got %d calls, %d offers", inner.calls, len(offers))
	}
}

func TestFetchOffers_GivesUpAfterMaxRetries(t *testing.T) {
	boom := errors.New("connection refused")
	inner := &scriptedSource{responses: []error{boom, boom, boom}}
	src := NewOfferSource(inner, 2, time.Millisecond, discardLogger())

	_, err := src.FetchOffers(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls (1 + 2 retries), got %d", inner.calls)
	}
}

func TestFetchOffers_NoRetryOnClientError(t *testing.T) {
	inner := &scriptedSource{
		responses: []error{&model.HTTPError{StatusCode: 401}},
	}
	src := NewOfferSource(inner, 3, time.Millisecond, discardLogger())

	if _, err := src.FetchOffers(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	if inner.calls != 1 {
		t.Errorf("4xx must not be retried, got %d calls", inner.calls)
	}
}

func TestFetchOffers_NoRetryOnConflict(t *testing.T) {
	inner := &scriptedSource{responses: []error{model.ErrOfferGone}}
	src := NewOfferSource(inner, 3, time.Millisecond, discardLogger())

	_, err := src.FetchOffers(context.Background())
	if !errors.Is(err, model.ErrOfferGone) {
		t.Fatalf("expected conflict to propagate, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("a conflict is final, got %d calls", inner.calls)
	}
}

func TestFetchOffers_RetriesServerErrors(t *testing.T) {
	inner := &scriptedSource{
		responses: []error{&model.HTTPError{StatusCode: 503}, nil},
	}
	src := NewOfferSource(inner, 2, time.Millisecond, discardLogger())

	if _, err := src.FetchOffers(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("5xx should be retried, got %d calls", inner.calls)
	}
}

func TestFetchOffers_HonorsRetryAfter(t *testing.T) {
	inner := &scriptedSource{
		responses: []error{
			&model.HTTPError{StatusCode: 429, RetryAfter: 50 * time.Millisecond},
			nil,
		},
	}
	src := NewOfferSource(inner, 1, time.Millisecond, discardLogger())

	start := time.Now()
	if _, err := src.FetchOffers(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("expected to wait for Retry-After, waited %v", elapsed)
	}
}

func TestFetchOffers_ContextCancelledDuringBackoff(t *testing.T) {
	boom := errors.New("connection refused")
	inner := &scriptedSource{responses: []error{boom, boom}}
	src := NewOfferSource(inner, 1, time.Hour, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := src.FetchOffers(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("no retry should run after cancellation, got %d calls", inner.calls)
	}
}

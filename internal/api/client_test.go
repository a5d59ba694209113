package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/calloutapp/callout/internal/model"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, "tok-123", srv.Client()), srv
}

func TestFetchOffers_DecodesPayload(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/provider/offers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{
			"id": "off-1",
			"jobId": "job-1",
			"taskName": "Burst pipe",
			"categoryName": "Plumbing",
			"level": 4,
			"customerArea": "Kreuzberg",
			"distanceKm": 3.2,
			"estimatedPrice": 180.50,
			"slaDeadline": "2026-03-14T12:00:00Z",
			"expiresAt": "2026-03-14T10:05:00Z",
			"createdAt": "2026-03-14T10:00:00Z"
		}]`))
	})
	defer srv.Close()

	offers, err := client.FetchOffers(context.Background())
	if err != nil {
		t.Fatalf("fetch offers: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("expected 1 offer, got %d", len(offers))
	}

	offer := offers[0]
	if offer.ID != "off-1" || offer.JobID != "job-1" {
		t.Errorf("ids = %s/%s", offer.ID, offer.JobID)
	}
	if offer.Level != 4 || offer.TaskName != "Burst pipe" {
		t.Errorf("unexpected offer %+v", offer)
	}
	wantExpiry := time.Date(2026, 3, 14, 10, 5, 0, 0, time.UTC)
	if !offer.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expiresAt = %v, want %v", offer.ExpiresAt, wantExpiry)
	}
	if offer.SLADeadline == nil {
		t.Error("expected SLA deadline to be parsed")
	}
}

func TestFetchOffers_MalformedExpiryIsAnError(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{
			"id": "off-1",
			"jobId": "job-1",
			"taskName": "Burst pipe",
			"expiresAt": "not-a-timestamp",
			"createdAt": "2026-03-14T10:00:00Z"
		}]`))
	})
	defer srv.Close()

	// A zero-value ExpiresAt would read as an offer that expired long ago,
	// so a bad timestamp must fail the fetch instead of being dropped.
	_, err := client.FetchOffers(context.Background())
	if err == nil {
		t.Fatal("expected an error for a malformed expiresAt")
	}
}

func TestFetchSchedule_MalformedShiftTimeIsAnError(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"onCallShifts": [{
				"id": "shift-1",
				"startTime": "17:00",
				"endTime": "2026-03-15T21:00:00Z"
			}]
		}`))
	})
	defer srv.Close()

	if _, err := client.FetchSchedule(context.Background()); err == nil {
		t.Fatal("expected an error for a malformed shift startTime")
	}
}

func TestAcceptOffer_Success(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/provider/offers/off-1/accept" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"id": "job-1", "taskName": "Burst pipe", "status": "accepted"}`))
	})
	defer srv.Close()

	job, err := client.AcceptOffer(context.Background(), "off-1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if job.ID != "job-1" || job.Status != model.JobAccepted {
		t.Errorf("unexpected job %+v", job)
	}
}

func TestAcceptOffer_ConflictByStatusCode(t *testing.T) {
	for _, code := range []int{http.StatusConflict, http.StatusGone} {
		client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})

		_, err := client.AcceptOffer(context.Background(), "off-1")
		srv.Close()
		if !errors.Is(err, model.ErrOfferGone) {
			t.Errorf("status %d: expected ErrOfferGone, got %v", code, err)
		}
	}
}

func TestAcceptOffer_ConflictByErrorKind(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": {"kind": "offer_no_longer_available", "message": "offer was reassigned"}}`))
	})
	defer srv.Close()

	_, err := client.AcceptOffer(context.Background(), "off-1")
	if !errors.Is(err, model.ErrOfferGone) {
		t.Errorf("expected ErrOfferGone from error kind, got %v", err)
	}
}

func TestAcceptOffer_ServerErrorIsHTTPError(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	_, err := client.AcceptOffer(context.Background(), "off-1")
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", httpErr.StatusCode)
	}
	if errors.Is(err, model.ErrOfferGone) {
		t.Error("a server error must not look like a conflict")
	}
}

func TestFetchOffers_RetryAfterHeader(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "42")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer srv.Close()

	_, err := client.FetchOffers(context.Background())
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.RetryAfter != 42*time.Second {
		t.Errorf("RetryAfter = %v, want 42s", httpErr.RetryAfter)
	}
}

func TestDeclineOffer_EmptySuccess(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/provider/offers/off-1/decline" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	defer srv.Close()

	if err := client.DeclineOffer(context.Background(), "off-1"); err != nil {
		t.Fatalf("decline: %v", err)
	}
}

func TestUpdateStatus_PatchesOnlyProvidedFields(t *testing.T) {
	var body map[string]any
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/provider/status" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"isOnline": true, "isOnCall": false, "level": 4}`))
	})
	defer srv.Close()

	online := true
	status, err := client.UpdateStatus(context.Background(), model.StatusPatch{IsOnline: &online})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if !status.IsOnline || status.Level != 4 {
		t.Errorf("unexpected status %+v", status)
	}
	if _, ok := body["isOnCall"]; ok {
		t.Error("nil patch fields must be omitted from the request body")
	}
	if v, ok := body["isOnline"]; !ok || v != true {
		t.Errorf("expected isOnline=true in body, got %v", body)
	}
}

func TestFetchSchedule_ParsesJobsAndShifts(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"scheduledJobs": [{
				"id": "job-1",
				"taskName": "Boiler service",
				"scheduledAt": "2026-03-15T09:00:00Z",
				"estimatedDurationMinutes": 90,
				"status": "accepted"
			}],
			"onCallShifts": [{
				"id": "shift-1",
				"startTime": "2026-03-15T17:00:00Z",
				"endTime": "2026-03-15T21:00:00Z",
				"isActive": false
			}]
		}`))
	})
	defer srv.Close()

	sched, err := client.FetchSchedule(context.Background())
	if err != nil {
		t.Fatalf("fetch schedule: %v", err)
	}
	if len(sched.Jobs) != 1 || sched.Jobs[0].EstimatedDurationMinutes != 90 {
		t.Errorf("unexpected jobs %+v", sched.Jobs)
	}
	if len(sched.Shifts) != 1 || sched.Shifts[0].ID != "shift-1" {
		t.Errorf("unexpected shifts %+v", sched.Shifts)
	}
	if sched.Jobs[0].Status != model.JobAccepted {
		t.Errorf("status = %s, want accepted", sched.Jobs[0].Status)
	}
}

func TestUpdateJobStatus(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/provider/jobs/job-1/status" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["status"] != "in_progress" {
			t.Errorf("body status = %q", body["status"])
		}
		w.Write([]byte(`{"id": "job-1", "status": "in_progress"}`))
	})
	defer srv.Close()

	job, err := client.UpdateJobStatus(context.Background(), "job-1", model.JobInProgress)
	if err != nil {
		t.Fatalf("update job status: %v", err)
	}
	if job.Status != model.JobInProgress {
		t.Errorf("status = %s, want in_progress", job.Status)
	}
}

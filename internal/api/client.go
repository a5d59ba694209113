// Package api is the HTTP client for the dispatch backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/calloutapp/callout/internal/model"
)

// Ensure Client implements the full remote-authority contract.
var _ model.DispatchAPI = (*Client)(nil)

// Client talks to the provider endpoints of the dispatch backend. It maps
// transport outcomes onto the engine's error taxonomy: HTTP 409/410 (or an
// "offer_no_longer_available" error kind in the body) become
// model.ErrOfferGone, everything else non-2xx becomes a model.HTTPError.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a dispatch API client. token is sent as a bearer token
// on every request.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
	}
}

// Wire payloads. Timestamps are ISO-8601 / RFC 3339.

type offerPayload struct {
	ID             string  `json:"id"`
	JobID          string  `json:"jobId"`
	TaskName       string  `json:"taskName"`
	CategoryName   string  `json:"categoryName"`
	Level          int     `json:"level"`
	CustomerArea   string  `json:"customerArea"`
	DistanceKm     float64 `json:"distanceKm"`
	EstimatedPrice float64 `json:"estimatedPrice"`
	SLADeadline    *string `json:"slaDeadline"`
	ExpiresAt      string  `json:"expiresAt"`
	CreatedAt      string  `json:"createdAt"`
}

type jobPayload struct {
	ID           string  `json:"id"`
	TaskName     string  `json:"taskName"`
	CategoryName string  `json:"categoryName"`
	Level        int     `json:"level"`
	CustomerArea string  `json:"customerArea"`
	Status       string  `json:"status"`
	ScheduledAt  *string `json:"scheduledAt"`
	Price        float64 `json:"price"`
}

type scheduledJobPayload struct {
	ID                       string `json:"id"`
	TaskName                 string `json:"taskName"`
	CustomerArea             string `json:"customerArea"`
	ScheduledAt              string `json:"scheduledAt"`
	EstimatedDurationMinutes int    `json:"estimatedDurationMinutes"`
	Status                   string `json:"status"`
}

type shiftPayload struct {
	ID        string `json:"id"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	IsActive  bool   `json:"isActive"`
}

type statusPayload struct {
	IsOnline bool `json:"isOnline"`
	IsOnCall bool `json:"isOnCall"`
	Level    int  `json:"level"`
}

type dashboardPayload struct {
	Profile          statusPayload  `json:"profile"`
	ActiveJob        *jobPayload    `json:"activeJob"`
	PendingOffers    []offerPayload `json:"pendingOffers"`
	EarningsCents    int64          `json:"earnings"`
	PerformanceScore float64        `json:"performanceScore"`
}

type schedulePayload struct {
	ScheduledJobs []scheduledJobPayload `json:"scheduledJobs"`
	OnCallShifts  []shiftPayload        `json:"onCallShifts"`
}

type errorPayload struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// FetchDashboard retrieves the provider's home payload.
func (c *Client) FetchDashboard(ctx context.Context) (model.Dashboard, error) {
	var payload dashboardPayload
	if err := c.do(ctx, http.MethodGet, "/provider/dashboard", nil, &payload); err != nil {
		return model.Dashboard{}, fmt.Errorf("fetch dashboard: %w", err)
	}

	dash := model.Dashboard{
		Status: model.ProviderStatus{
			IsOnline: payload.Profile.IsOnline,
			IsOnCall: payload.Profile.IsOnCall,
			Level:    payload.Profile.Level,
		},
		EarningsCents:    payload.EarningsCents,
		PerformanceScore: payload.PerformanceScore,
	}
	if payload.ActiveJob != nil {
		job, err := toJob(*payload.ActiveJob)
		if err != nil {
			return model.Dashboard{}, fmt.Errorf("fetch dashboard: %w", err)
		}
		dash.ActiveJob = &job
	}
	for _, op := range payload.PendingOffers {
		offer, err := toOffer(op)
		if err != nil {
			return model.Dashboard{}, fmt.Errorf("fetch dashboard: %w", err)
		}
		dash.PendingOffers = append(dash.PendingOffers, offer)
	}
	return dash, nil
}

// FetchOffers retrieves the currently pending offers.
func (c *Client) FetchOffers(ctx context.Context) ([]model.JobOffer, error) {
	var payload []offerPayload
	if err := c.do(ctx, http.MethodGet, "/provider/offers", nil, &payload); err != nil {
		return nil, fmt.Errorf("fetch offers: %w", err)
	}
	offers := make([]model.JobOffer, 0, len(payload))
	for _, op := range payload {
		offer, err := toOffer(op)
		if err != nil {
			return nil, fmt.Errorf("fetch offers: %w", err)
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// AcceptOffer takes the offer, returning the materialized job. A conflict
// (offer resolved elsewhere) satisfies errors.Is(err, model.ErrOfferGone).
func (c *Client) AcceptOffer(ctx context.Context, offerID string) (model.Job, error) {
	var payload jobPayload
	path := fmt.Sprintf("/provider/offers/%s/accept", offerID)
	if err := c.do(ctx, http.MethodPost, path, nil, &payload); err != nil {
		return model.Job{}, fmt.Errorf("accept offer %s: %w", offerID, err)
	}
	job, err := toJob(payload)
	if err != nil {
		return model.Job{}, fmt.Errorf("accept offer %s: %w", offerID, err)
	}
	return job, nil
}

// DeclineOffer turns the offer down.
func (c *Client) DeclineOffer(ctx context.Context, offerID string) error {
	path := fmt.Sprintf("/provider/offers/%s/decline", offerID)
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("decline offer %s: %w", offerID, err)
	}
	return nil
}

// UpdateStatus patches the availability switches. Nil patch fields are
// omitted from the request body.
func (c *Client) UpdateStatus(ctx context.Context, patch model.StatusPatch) (model.ProviderStatus, error) {
	body := make(map[string]bool, 2)
	if patch.IsOnline != nil {
		body["isOnline"] = *patch.IsOnline
	}
	if patch.IsOnCall != nil {
		body["isOnCall"] = *patch.IsOnCall
	}

	var payload statusPayload
	if err := c.do(ctx, http.MethodPatch, "/provider/status", body, &payload); err != nil {
		return model.ProviderStatus{}, fmt.Errorf("update status: %w", err)
	}
	return model.ProviderStatus{
		IsOnline: payload.IsOnline,
		IsOnCall: payload.IsOnCall,
		Level:    payload.Level,
	}, nil
}

// FetchSchedule retrieves scheduled jobs and on-call shifts.
func (c *Client) FetchSchedule(ctx context.Context) (model.Schedule, error) {
	var payload schedulePayload
	if err := c.do(ctx, http.MethodGet, "/provider/schedule", nil, &payload); err != nil {
		return model.Schedule{}, fmt.Errorf("fetch schedule: %w", err)
	}

	var sched model.Schedule
	for _, jp := range payload.ScheduledJobs {
		job := model.ScheduledJob{
			ID:                       jp.ID,
			TaskName:                 jp.TaskName,
			CustomerArea:             jp.CustomerArea,
			EstimatedDurationMinutes: jp.EstimatedDurationMinutes,
			Status:                   model.JobStatus(jp.Status),
		}
		t, err := parseTime("scheduledAt", jp.ScheduledAt)
		if err != nil {
			return model.Schedule{}, fmt.Errorf("fetch schedule: job %s: %w", jp.ID, err)
		}
		job.ScheduledAt = t
		sched.Jobs = append(sched.Jobs, job)
	}
	for _, sp := range payload.OnCallShifts {
		s := model.OnCallShift{ID: sp.ID, IsActive: sp.IsActive}
		var err error
		if s.StartTime, err = parseTime("startTime", sp.StartTime); err != nil {
			return model.Schedule{}, fmt.Errorf("fetch schedule: shift %s: %w", sp.ID, err)
		}
		if s.EndTime, err = parseTime("endTime", sp.EndTime); err != nil {
			return model.Schedule{}, fmt.Errorf("fetch schedule: shift %s: %w", sp.ID, err)
		}
		sched.Shifts = append(sched.Shifts, s)
	}
	return sched, nil
}

// UpdateJobStatus progresses a job, e.g. accepted -> in_progress.
func (c *Client) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) (model.Job, error) {
	body := map[string]string{"status": string(status)}
	var payload jobPayload
	path := fmt.Sprintf("/provider/jobs/%s/status", jobID)
	if err := c.do(ctx, http.MethodPatch, path, body, &payload); err != nil {
		return model.Job{}, fmt.Errorf("update job %s status: %w", jobID, err)
	}
	job, err := toJob(payload)
	if err != nil {
		return model.Job{}, fmt.Errorf("update job %s status: %w", jobID, err)
	}
	return job, nil
}

// do issues one request and decodes the response into out (skipped when out
// is nil or the body is empty).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFrom(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorFrom maps a non-2xx response onto the error taxonomy.
func (c *Client) errorFrom(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var ep errorPayload
	_ = json.Unmarshal(data, &ep)

	if resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusGone ||
		ep.Error.Kind == "offer_no_longer_available" {
		return model.ErrOfferGone
	}

	httpErr := &model.HTTPError{StatusCode: resp.StatusCode}
	if resp.StatusCode == http.StatusTooManyRequests {
		httpErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	if ep.Error.Message != "" {
		httpErr.Err = fmt.Errorf("%s", ep.Error.Message)
	}
	return httpErr
}

// parseTime rejects malformed timestamps instead of zeroing them: a
// zero-value ExpiresAt would read as an offer that expired long ago.
func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	return t, nil
}

func toOffer(p offerPayload) (model.JobOffer, error) {
	offer := model.JobOffer{
		ID:             p.ID,
		JobID:          p.JobID,
		TaskName:       p.TaskName,
		CategoryName:   p.CategoryName,
		Level:          p.Level,
		CustomerArea:   p.CustomerArea,
		DistanceKm:     p.DistanceKm,
		EstimatedPrice: p.EstimatedPrice,
	}
	var err error
	if offer.ExpiresAt, err = parseTime("expiresAt", p.ExpiresAt); err != nil {
		return model.JobOffer{}, fmt.Errorf("offer %s: %w", p.ID, err)
	}
	if offer.CreatedAt, err = parseTime("createdAt", p.CreatedAt); err != nil {
		return model.JobOffer{}, fmt.Errorf("offer %s: %w", p.ID, err)
	}
	if p.SLADeadline != nil {
		t, err := parseTime("slaDeadline", *p.SLADeadline)
		if err != nil {
			return model.JobOffer{}, fmt.Errorf("offer %s: %w", p.ID, err)
		}
		offer.SLADeadline = &t
	}
	return offer, nil
}

func toJob(p jobPayload) (model.Job, error) {
	job := model.Job{
		ID:           p.ID,
		TaskName:     p.TaskName,
		CategoryName: p.CategoryName,
		Level:        p.Level,
		CustomerArea: p.CustomerArea,
		Status:       model.JobStatus(p.Status),
		Price:        p.Price,
	}
	if p.ScheduledAt != nil {
		t, err := parseTime("scheduledAt", *p.ScheduledAt)
		if err != nil {
			return model.Job{}, fmt.Errorf("job %s: %w", p.ID, err)
		}
		job.ScheduledAt = &t
	}
	return job, nil
}

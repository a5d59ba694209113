// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors. Each Metrics value owns
// its own registry so tests never collide on duplicate registration.
type Metrics struct {
	registry *prometheus.Registry

	OffersReceived *prometheus.CounterVec // by level
	OffersResolved *prometheus.CounterVec // by kind: accepted/declined/expired/lost
	PendingOffers  prometheus.Gauge
	ToggleFailures *prometheus.CounterVec // by switch: online/oncall
	APIErrors      prometheus.Counter
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		OffersReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callout_offers_received_total",
			Help: "Offers that entered the pending set, by service level.",
		}, []string{"level"}),
		OffersResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callout_offers_resolved_total",
			Help: "Offers that left the pending set, by resolution kind.",
		}, []string{"kind"}),
		PendingOffers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "callout_pending_offers",
			Help: "Offers currently pending.",
		}),
		ToggleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callout_toggle_failures_total",
			Help: "Availability toggles rolled back after a remote failure.",
		}, []string{"switch"}),
		APIErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callout_api_errors_total",
			Help: "Remote calls that failed with a transient error.",
		}),
	}
	reg.MustRegister(m.OffersReceived, m.OffersResolved, m.PendingOffers, m.ToggleFailures, m.APIErrors)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

package daemon

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the workflow-level Prometheus collectors registered on the
// daemon's registry. Only SessionsGauge is updated, by the Registry; phase
// controllers report into workflow.Metrics instead.
type Metrics struct {
	Invocations        *prometheus.CounterVec
	ReviewCycleSeconds prometheus.Histogram
	SessionsGauge      prometheus.Gauge
}

// NewMetrics registers a fresh set of collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "planning_agent_invocations_total",
			Help: "Agent CLI invocations, labeled by agent and workflow phase.",
		}, []string{"agent", "phase"}),
		ReviewCycleSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "planning_agent_review_cycle_duration_seconds",
			Help: "Wall-clock duration of one review cycle, from dispatch to aggregated verdict.",
		}),
		SessionsGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "planning_agent_daemon_sessions_gauge",
			Help: "Number of sessions currently tracked by the session daemon registry.",
		}),
	}
}

// RegisterHTTPHandlers exposes /metrics on mux for reg's collectors.
func RegisterHTTPHandlers(mux *http.ServeMux, reg *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

// ServeMetrics starts a small embedded HTTP server exposing /metrics on
// ln, matching the teacher's one-small-server-per-component pattern.
func ServeMetrics(ctx context.Context, ln net.Listener, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	RegisterHTTPHandlers(mux, reg)
	server := &http.Server{Handler: mux}

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	err := server.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

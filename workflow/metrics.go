package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors a Controller reports
// invocation and review-cycle timing into.
type Metrics struct {
	Invocations        *prometheus.CounterVec
	ReviewCycleSeconds prometheus.Histogram
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
	}
}

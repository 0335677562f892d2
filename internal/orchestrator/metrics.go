package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the orchestrator's Prometheus collectors.
type Metrics struct {
	Events         *prometheus.CounterVec
	Renders        *prometheus.CounterVec
	Coalesced      prometheus.Counter
	RenderDuration *prometheus.HistogramVec
}

// Render results recorded in the renders counter.
const (
	resultOK      = "ok"
	resultEmpty   = "empty"
	resultCleared = "cleared"
	resultError   = "error"
)

// NewMetrics registers the orchestrator collectors with reg. A nil reg uses
// a private registry so tests and embedded uses never collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_control_events_total",
			Help: "Accepted control change events by control.",
		}, []string{"control"}),
		Renders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_renders_total",
			Help: "Completed redraws by view and result.",
		}, []string{"view", "result"}),
		Coalesced: factory.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_coalesced_events_total",
			Help: "Events folded into a redraw already in progress.",
		}),
		RenderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dashboard_render_duration_seconds",
			Help:    "Time spent building and drawing one view.",
			Buckets: prometheus.DefBuckets,
		}, []string{"view"}),
	}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenant_access_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tenant_access_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	authDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenant_access_auth_decisions_total",
		Help: "Authentication and authorization outcomes by stage",
	}, []string{"stage", "outcome"})

	lifecycleTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenant_access_lifecycle_transitions_total",
		Help: "Tenant lifecycle actions by result",
	}, []string{"action", "result"})

	evolutionOverrides = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tenant_access_evolution_delete_overrides_total",
		Help: "Evolution records removed through the superadmin override",
	})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// ObserveAuthDecision counts a pipeline stage outcome, e.g. ("principal", "expired").
func ObserveAuthDecision(stage, outcome string) {
	authDecisions.WithLabelValues(stage, outcome).Inc()
}

func ObserveLifecycle(action, result string) {
	lifecycleTransitions.WithLabelValues(action, result).Inc()
}

func ObserveEvolutionOverride() {
	evolutionOverrides.Inc()
}

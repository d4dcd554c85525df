// Package metrics holds the Prometheus instruments of the API server. They live in their own
// registry, exposed through Handler, so tests and embedders never collide with the global one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hrconsole"

var (
	Registry = prometheus.NewRegistry()
	factory  = promauto.With(Registry)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func counter(name, help string, labels ...string) *prometheus.CounterVec {
	return factory.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

var (
	// AuthAttempts: result is success or failure.
	AuthAttempts = counter("auth_attempts_total", "Login attempts by result.", "result")

	// PermissionChecks: result is allowed, denied or error. permission joins guarded ids with "|".
	PermissionChecks = counter("permission_checks_total", "Route permission checks by outcome.", "permission", "result")

	MenuWrites        = counter("menu_writes_total", "Menu mutations by operation and result.", "operation", "result")
	MenuTreeAnomalies = counter("menu_tree_anomalies_total", "Menu records promoted to root while building a tree.", "kind")

	// CatalogCacheLookups: result is hit, miss or error.
	CatalogCacheLookups = counter("catalog_cache_lookups_total", "Role and permission catalogue cache lookups.", "catalog", "result")

	MaintenanceRuns = counter("maintenance_runs_total", "Background maintenance runs by job and result.", "job", "result")

	ActiveSessions = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Sessions neither expired nor revoked.",
	})

	// HealthProbeUp is 1 while a readiness probe reports up.
	HealthProbeUp = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_probe_up",
		Help:      "Readiness probe status, 1 when up.",
	}, []string{"component"})

	APILatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_latency_seconds",
		Help:      "API request latency by route.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})
)

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

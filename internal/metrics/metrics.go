// Package metrics defines the Prometheus metrics exposed by all three
// services on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marcus-qen/agentobservatory/internal/model"
)

// Registry is the private registry every metric below is registered
// against; the muxes in internal/httpapi/routes.go serve it via
// promhttp.HandlerFor.
var Registry = prometheus.NewRegistry()

var (
	// RunsIngestedTotal counts ingested runs by status and write outcome
	// (created vs. replayed-by-idempotency).
	RunsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observatory_runs_ingested_total",
			Help: "Total runs accepted by the ingest service, by status and write outcome.",
		},
		[]string{"status", "outcome"},
	)

	// IngestRejectedTotal counts runs rejected at validation, by error kind.
	IngestRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observatory_ingest_rejected_total",
			Help: "Total runs rejected by the ingest service, by error kind.",
		},
		[]string{"kind"},
	)

	// QueryRequestDurationSeconds is a histogram of query-service request
	// latency by operation.
	QueryRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "observatory_query_request_duration_seconds",
			Help:    "Duration of query service requests in seconds, by operation.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	// ProfilesBuiltTotal counts behavior profiles built by the analytics
	// worker.
	ProfilesBuiltTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observatory_profiles_built_total",
			Help: "Total behavior profiles built, by environment.",
		},
		[]string{"environment"},
	)

	// DriftDetectedTotal counts drift records by type and severity.
	DriftDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observatory_drift_detected_total",
			Help: "Total drift records detected, by drift type and severity.",
		},
		[]string{"drift_type", "severity"},
	)

	// AlertDeliveryTotal counts alert dispatch attempts by sink and status.
	AlertDeliveryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observatory_alert_delivery_total",
			Help: "Total alert sink dispatch attempts, by channel and delivery status.",
		},
		[]string{"channel", "status"},
	)

	// AlertDeliveryDurationSeconds is a histogram of per-sink dispatch
	// latency.
	AlertDeliveryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "observatory_alert_delivery_duration_seconds",
			Help:    "Duration of alert sink dispatch attempts in seconds, by channel.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)

	// ActiveBaselinesGauge is the current count of active baselines, by
	// environment.
	ActiveBaselinesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "observatory_active_baselines",
			Help: "Current number of active baselines, by environment.",
		},
		[]string{"environment"},
	)
)

func init() {
	Registry.MustRegister(
		RunsIngestedTotal,
		IngestRejectedTotal,
		QueryRequestDurationSeconds,
		ProfilesBuiltTotal,
		DriftDetectedTotal,
		AlertDeliveryTotal,
		AlertDeliveryDurationSeconds,
		ActiveBaselinesGauge,
	)
}

// RecordIngest records the outcome of one ingest attempt.
func RecordIngest(status, outcome string) {
	RunsIngestedTotal.WithLabelValues(status, outcome).Inc()
}

// RecordIngestRejected records one validation rejection by error kind.
func RecordIngestRejected(kind string) {
	IngestRejectedTotal.WithLabelValues(kind).Inc()
}

// RecordQueryRequest records one query-service request's duration.
func RecordQueryRequest(operation string, duration time.Duration) {
	QueryRequestDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordProfileBuilt records one completed profile build.
func RecordProfileBuilt(environment string) {
	ProfilesBuiltTotal.WithLabelValues(environment).Inc()
}

// RecordDrift records one persisted drift record.
func RecordDrift(driftType, severity string) {
	DriftDetectedTotal.WithLabelValues(driftType, severity).Inc()
}

// AlertObserver adapts the package-level alert-delivery counters to
// alert.DeliveryObserver, so an Emitter can report into these metrics
// without this package depending on the alert package.
type AlertObserver struct{}

// RecordAlertDelivery implements alert.DeliveryObserver.
func (AlertObserver) RecordAlertDelivery(channel model.AlertChannel, status model.DeliveryStatus, duration time.Duration) {
	AlertDeliveryTotal.WithLabelValues(string(channel), string(status)).Inc()
	AlertDeliveryDurationSeconds.WithLabelValues(string(channel)).Observe(duration.Seconds())
}

// SetActiveBaselines sets the active-baseline gauge for an environment.
func SetActiveBaselines(environment string, count int) {
	ActiveBaselinesGauge.WithLabelValues(environment).Set(float64(count))
}

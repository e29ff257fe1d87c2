package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marcus-qen/agentobservatory/internal/baseline"
	"github.com/marcus-qen/agentobservatory/internal/ingest"
	"github.com/marcus-qen/agentobservatory/internal/metrics"
	"github.com/marcus-qen/agentobservatory/internal/query"
	"github.com/marcus-qen/agentobservatory/internal/store"
)

// NewIngestMux builds the ServeMux for the ingest-service binary: the write
// path plus health and metrics.
func NewIngestMux(service *ingest.Service, runs *store.Store, version string) *http.ServeMux {
	mux := http.NewServeMux()
	ingestH := NewIngestHandlers(service)
	health := NewHealth(runs, "ingest-service", version)

	mux.HandleFunc("POST /v1/runs", ingestH.submitRun)
	mux.HandleFunc("GET /health", health.serve)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return mux
}

// NewQueryMux builds the ServeMux for the query-service binary: the read-only
// run/step/failure/stats surface plus the phase-3 behavior analytics surface.
func NewQueryMux(svc *query.Service, runs *store.Store, baselines *baseline.Manager, version string) *http.ServeMux {
	mux := http.NewServeMux()
	queryH := NewQueryHandlers(svc, runs)
	profileH := NewProfileHandlers(runs)
	baselineH := NewBaselineHandlers(baselines, runs)
	driftH := NewDriftHandlers(runs)
	health := NewHealth(runs, "query-service", version)

	mux.HandleFunc("GET /v1/runs", queryH.listRuns)
	mux.HandleFunc("GET /v1/runs/{run_id}", queryH.getRun)
	mux.HandleFunc("GET /v1/runs/{run_id}/steps", queryH.getSteps)
	mux.HandleFunc("GET /v1/runs/{run_id}/failures", queryH.getFailures)
	mux.HandleFunc("GET /v1/stats", queryH.getStats)

	mux.HandleFunc("GET /v1/phase3/profiles", profileH.list)
	mux.HandleFunc("GET /v1/phase3/profiles/{profile_id}", profileH.get)

	mux.HandleFunc("GET /v1/phase3/baselines", baselineH.list)
	mux.HandleFunc("GET /v1/phase3/baselines/{baseline_id}", baselineH.get)
	mux.HandleFunc("POST /v1/phase3/baselines", baselineH.create)
	mux.HandleFunc("POST /v1/phase3/baselines/{baseline_id}/activate", baselineH.activate)
	mux.HandleFunc("POST /v1/phase3/baselines/{baseline_id}/deactivate", baselineH.deactivate)
	mux.HandleFunc("POST /v1/phase3/baselines/{baseline_id}/approve", baselineH.approve)

	mux.HandleFunc("GET /v1/phase3/drift", driftH.list)
	mux.HandleFunc("GET /v1/phase3/drift/timeline", driftH.timeline)
	mux.HandleFunc("GET /v1/phase3/drift/summary", driftH.summary)
	mux.HandleFunc("GET /v1/phase3/drift/{drift_id}", driftH.get)
	mux.HandleFunc("POST /v1/phase3/drift/{drift_id}/resolve", driftH.resolve)

	mux.HandleFunc("GET /health", health.serve)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return mux
}

// NewWorkerMux builds the minimal ServeMux the analytics-worker exposes: no
// ingest/query surface, only operational health and metrics.
func NewWorkerMux(runs *store.Store, version string) *http.ServeMux {
	mux := http.NewServeMux()
	health := NewHealth(runs, "analytics-worker", version)
	mux.HandleFunc("GET /healthz", health.serve)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	return mux
}

// WithMiddleware applies the shared request middleware stack to mux.
func WithMiddleware(mux *http.ServeMux) http.Handler {
	return timeoutMiddleware(maxBodySizeMiddleware(mux))
}

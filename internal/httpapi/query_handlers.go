package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/marcus-qen/agentobservatory/internal/apierr"
	"github.com/marcus-qen/agentobservatory/internal/model"
	"github.com/marcus-qen/agentobservatory/internal/query"
	"github.com/marcus-qen/agentobservatory/internal/store"
	"github.com/marcus-qen/agentobservatory/internal/telemetry"
)

// QueryHandlers implements the read surface: runs, steps, failures, stats.
type QueryHandlers struct {
	service *query.Service
	runs    *store.Store
}

// NewQueryHandlers constructs QueryHandlers. runs is used directly for the
// nested /steps and /failures views, which the Query Service doesn't need
// to validate beyond the run_id lookup query.Service.GetRun already does.
func NewQueryHandlers(service *query.Service, runs *store.Store) *QueryHandlers {
	return &QueryHandlers{service: service, runs: runs}
}

func parseRunFilters(r *http.Request) (store.RunFilters, error) {
	q := r.URL.Query()
	f := store.RunFilters{
		AgentID:      q.Get("agent_id"),
		AgentVersion: q.Get("agent_version"),
		Status:       model.RunStatus(q.Get("status")),
		Environment:  model.Environment(q.Get("environment")),
	}
	if v := q.Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return store.RunFilters{}, apierr.Validation("start_time", "must be an RFC3339 timestamp")
		}
		f.StartTime = &t
	}
	if v := q.Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return store.RunFilters{}, apierr.Validation("end_time", "must be an RFC3339 timestamp")
		}
		f.EndTime = &t
	}
	return f, nil
}

// parseIntParam parses the named query parameter as an integer. The second
// return value reports whether the parameter was present at all, so callers
// can distinguish an absent parameter from an explicit zero.
func parseIntParam(r *http.Request, name string) (int, bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, apierr.Validation(name, "must be an integer")
	}
	return n, true, nil
}

func (h *QueryHandlers) listRuns(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.StartQuerySpan(r.Context(), "list_runs")
	defer span.End()

	f, err := parseRunFilters(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, _, err := parseIntParam(r, "page")
	if err != nil {
		writeError(w, err)
		return
	}
	pageSize, pageSizeProvided, err := parseIntParam(r, "page_size")
	if err != nil {
		writeError(w, err)
		return
	}

	runs, err := h.service.ListRuns(ctx, f, page, pageSize, pageSizeProvided)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]runDTO, 0, len(runs))
	for _, v := range runs {
		out = append(out, runDTOFromModel(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *QueryHandlers) getRun(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.StartQuerySpan(r.Context(), "get_run")
	defer span.End()

	view, err := h.service.GetRun(ctx, r.PathValue("run_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runDTOFromModel(view))
}

func (h *QueryHandlers) getSteps(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.StartQuerySpan(r.Context(), "get_steps")
	defer span.End()

	runID := r.PathValue("run_id")
	if _, err := h.service.GetRun(ctx, runID); err != nil {
		writeError(w, err)
		return
	}
	steps, err := h.runs.GetSteps(ctx, runID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]stepDTO, 0, len(steps))
	for _, s := range steps {
		out = append(out, stepDTO{
			StepID: s.StepID, Seq: s.Seq, StepType: string(s.StepType), Name: s.Name,
			LatencyMs: s.LatencyMs, StartedAt: s.StartedAt, EndedAt: s.EndedAt,
			Metadata: metadataFromModel(s.Metadata),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *QueryHandlers) getFailures(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.StartQuerySpan(r.Context(), "get_failures")
	defer span.End()

	runID := r.PathValue("run_id")
	if _, err := h.service.GetRun(ctx, runID); err != nil {
		writeError(w, err)
		return
	}
	failures, err := h.runs.GetFailures(ctx, runID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]failureDTO, 0, len(failures))
	for _, f := range failures {
		out = append(out, failureDTO{
			StepID: f.StepID, FailureType: string(f.FailureType), FailureCode: f.FailureCode, Message: f.Message,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *QueryHandlers) getStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.StartQuerySpan(r.Context(), "get_stats")
	defer span.End()

	f, err := parseRunFilters(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := h.service.Stats(ctx, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsDTO{
		TotalRuns: stats.TotalRuns, TotalFailures: stats.TotalFailures, SuccessRate: stats.SuccessRate,
		AvgLatencyMs: stats.AvgLatencyMs, FailureBreakdown: stats.FailureBreakdown, StepTypeBreakdown: stats.StepTypeBreakdown,
	})
}

// Health reports database reachability per spec §6.2's GET /health.
type Health struct {
	store   *store.Store
	service string
	version string
}

// NewHealth constructs a Health handler for one binary.
func NewHealth(store *store.Store, service, version string) *Health {
	return &Health{store: store, service: service, version: version}
}

func (h *Health) serve(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Service: h.service, Version: h.version})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Service: h.service, Version: h.version})
}

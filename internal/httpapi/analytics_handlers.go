package httpapi

import (
	"net/http"
	"time"

	"github.com/marcus-qen/agentobservatory/internal/apierr"
	"github.com/marcus-qen/agentobservatory/internal/baseline"
	"github.com/marcus-qen/agentobservatory/internal/model"
	"github.com/marcus-qen/agentobservatory/internal/store"
)

const (
	analyticsDefaultPageSize = 50
	analyticsMaxPageSize     = 200
)

// normalizeListParams parses and validates the page/page_size query
// parameters shared by the profile/baseline/drift list endpoints. An absent
// page_size defaults to analyticsDefaultPageSize; an explicitly provided
// page_size=0 is a validation error.
func normalizeListParams(r *http.Request) (page, pageSize int, err error) {
	page, _, err = parseIntParam(r, "page")
	if err != nil {
		return 0, 0, err
	}
	var pageSizeProvided bool
	pageSize, pageSizeProvided, err = parseIntParam(r, "page_size")
	if err != nil {
		return 0, 0, err
	}
	if page < 0 {
		return 0, 0, apierr.Validation("page", "page must not be negative")
	}
	if page == 0 {
		page = 1
	}
	if pageSizeProvided && pageSize == 0 {
		return 0, 0, apierr.Validation("page_size", "page_size must not be zero")
	}
	if pageSize < 0 {
		return 0, 0, apierr.Validation("page_size", "page_size must not be negative")
	}
	if pageSize == 0 {
		pageSize = analyticsDefaultPageSize
	}
	if pageSize > analyticsMaxPageSize {
		pageSize = analyticsMaxPageSize
	}
	return page, pageSize, nil
}

// ProfileHandlers implements the read-only GET /v1/phase3/profiles surface.
type ProfileHandlers struct {
	store *store.Store
}

// NewProfileHandlers constructs ProfileHandlers over store.
func NewProfileHandlers(s *store.Store) *ProfileHandlers {
	return &ProfileHandlers{store: s}
}

func (h *ProfileHandlers) list(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := normalizeListParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	profiles, err := h.store.ListProfiles(r.Context(), store.ProfileFilters{
		AgentID: q.Get("agent_id"), AgentVersion: q.Get("agent_version"),
		Environment: model.Environment(q.Get("environment")), Page: page, PageSize: pageSize,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]profileDTO, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, profileDTOFromModel(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProfileHandlers) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetProfile(r.Context(), r.PathValue("profile_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileDTOFromModel(p))
}

// BaselineHandlers implements the baseline read surface and the
// administrative create/activate/deactivate/approve writes spec §6.3
// permits under /v1/phase3/baselines.
type BaselineHandlers struct {
	manager *baseline.Manager
	store   *store.Store
}

// NewBaselineHandlers constructs BaselineHandlers.
func NewBaselineHandlers(manager *baseline.Manager, s *store.Store) *BaselineHandlers {
	return &BaselineHandlers{manager: manager, store: s}
}

func (h *BaselineHandlers) list(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := normalizeListParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	var isActive *bool
	if v := q.Get("is_active"); v != "" {
		active := v == "true"
		isActive = &active
	}
	baselines, err := h.store.ListBaselines(r.Context(), store.BaselineFilters{
		AgentID: q.Get("agent_id"), AgentVersion: q.Get("agent_version"),
		Environment: model.Environment(q.Get("environment")), IsActive: isActive,
		Page: page, PageSize: pageSize,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]baselineDTO, 0, len(baselines))
	for _, b := range baselines {
		out = append(out, baselineDTOFromModel(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *BaselineHandlers) get(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.GetBaseline(r.Context(), r.PathValue("baseline_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, baselineDTOFromModel(b))
}

func (h *BaselineHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req createBaselineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	b, err := h.manager.CreateBaseline(r.Context(), req.ProfileID, model.BaselineType(req.BaselineType), req.Description, req.ApprovedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, baselineDTOFromModel(b))
}

func (h *BaselineHandlers) activate(w http.ResponseWriter, r *http.Request) {
	b, err := h.manager.Activate(r.Context(), r.PathValue("baseline_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, baselineDTOFromModel(b))
}

func (h *BaselineHandlers) deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Deactivate(r.Context(), r.PathValue("baseline_id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BaselineHandlers) approve(w http.ResponseWriter, r *http.Request) {
	var req approveBaselineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	b, err := h.manager.Approve(r.Context(), r.PathValue("baseline_id"), req.ApprovedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, baselineDTOFromModel(b))
}

// DriftHandlers implements the drift read surface and the /resolve write.
type DriftHandlers struct {
	store *store.Store
}

// NewDriftHandlers constructs DriftHandlers over store.
func NewDriftHandlers(s *store.Store) *DriftHandlers {
	return &DriftHandlers{store: s}
}

func (h *DriftHandlers) list(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := normalizeListParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	var resolved *bool
	if v := q.Get("resolved"); v != "" {
		res := v == "true"
		resolved = &res
	}
	drifts, err := h.store.ListDrift(r.Context(), store.DriftFilters{
		AgentID: q.Get("agent_id"), AgentVersion: q.Get("agent_version"),
		Environment: model.Environment(q.Get("environment")), DriftType: model.DriftType(q.Get("drift_type")),
		Severity: model.Severity(q.Get("severity")), Resolved: resolved, Page: page, PageSize: pageSize,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]driftDTO, 0, len(drifts))
	for _, d := range drifts {
		out = append(out, driftDTOFromModel(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DriftHandlers) get(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.GetDrift(r.Context(), r.PathValue("drift_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, driftDTOFromModel(d))
}

func (h *DriftHandlers) resolve(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.ResolveDrift(r.Context(), r.PathValue("drift_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, driftDTOFromModel(d))
}

func (h *DriftHandlers) timeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	agentID := q.Get("agent_id")
	if agentID == "" {
		writeError(w, apierr.Validation("agent_id", "agent_id is required"))
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -7)
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, apierr.Validation("start_date", "must be YYYY-MM-DD"))
			return
		}
		start = t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, apierr.Validation("end_date", "must be YYYY-MM-DD"))
			return
		}
		end = t
	}
	if v := q.Get("days"); v != "" {
		n, _, err := parseIntParam(r, "days")
		if err != nil {
			writeError(w, err)
			return
		}
		start = end.AddDate(0, 0, -n)
	}

	points, err := h.store.Timeline(r.Context(), agentID, q.Get("agent_version"), model.Environment(q.Get("environment")), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]timelinePointDTO, 0, len(points))
	for _, p := range points {
		out = append(out, timelinePointDTO{
			Timestamp: p.Timestamp, Metric: p.Metric, Value: p.Value,
			DriftDetected: p.DriftDetected, DriftID: p.DriftID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DriftHandlers) summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	agentID := q.Get("agent_id")
	if agentID == "" {
		writeError(w, apierr.Validation("agent_id", "agent_id is required"))
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -30)
	if v := q.Get("days"); v != "" {
		n, _, err := parseIntParam(r, "days")
		if err != nil {
			writeError(w, err)
			return
		}
		since = time.Now().UTC().AddDate(0, 0, -n)
	}

	summary, err := h.store.DriftSummary(r.Context(), agentID, model.Environment(q.Get("environment")), since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, driftSummaryDTO{
		TotalDrift: summary.TotalDrift, BySeverity: summary.BySeverity, ByType: summary.ByType,
		UnresolvedCount: summary.UnresolvedCount,
	})
}

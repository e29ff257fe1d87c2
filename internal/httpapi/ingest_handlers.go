package httpapi

import (
	"net/http"

	"github.com/marcus-qen/agentobservatory/internal/ingest"
	"github.com/marcus-qen/agentobservatory/internal/store"
	"github.com/marcus-qen/agentobservatory/internal/telemetry"
)

// IngestHandlers implements the POST /v1/runs write surface.
type IngestHandlers struct {
	service *ingest.Service
}

// NewIngestHandlers constructs IngestHandlers over service.
func NewIngestHandlers(service *ingest.Service) *IngestHandlers {
	return &IngestHandlers{service: service}
}

func (h *IngestHandlers) submitRun(w http.ResponseWriter, r *http.Request) {
	var req runDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	view, err := req.toModel()
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, span := telemetry.StartIngestSpan(r.Context(), view.Run.AgentID, string(view.Run.Environment))
	stored, outcome, err := h.service.SubmitRun(ctx, view)
	if err != nil {
		telemetry.EndIngestSpan(span, "error")
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	writeOutcome := "created"
	if outcome == store.Replayed {
		status = http.StatusOK
		writeOutcome = "replayed"
	}
	telemetry.EndIngestSpan(span, writeOutcome)
	writeJSON(w, status, runDTOFromModel(stored))
}

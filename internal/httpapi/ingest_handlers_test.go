package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marcus-qen/agentobservatory/internal/ingest"
	"github.com/marcus-qen/agentobservatory/internal/model"
	"github.com/marcus-qen/agentobservatory/internal/store"
)

type fakeIngestStore struct {
	outcome store.WriteOutcome
}

func (f *fakeIngestStore) InsertRunTree(ctx context.Context, view model.RunView) (model.RunView, store.WriteOutcome, error) {
	view.Run.CreatedAt = view.Run.StartedAt
	return view, f.outcome, nil
}

func TestSubmitRun_CreatedReturns201(t *testing.T) {
	svc := ingest.New(&fakeIngestStore{outcome: store.Created})
	h := NewIngestHandlers(svc)

	body := `{"run_id":"11111111-1111-1111-1111-111111111111","agent_id":"demo","agent_version":"1.0.0","environment":"production","status":"success","started_at":"2026-01-01T00:00:00Z","ended_at":"2026-01-01T00:00:01Z"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	h.submitRun(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var got runDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.AgentID != "demo" {
		t.Fatalf("agent_id = %q, want demo", got.AgentID)
	}
}

func TestSubmitRun_ReplayedReturns200(t *testing.T) {
	svc := ingest.New(&fakeIngestStore{outcome: store.Replayed})
	h := NewIngestHandlers(svc)

	body := `{"run_id":"11111111-1111-1111-1111-111111111111","agent_id":"demo","agent_version":"1.0.0","environment":"production","status":"success","started_at":"2026-01-01T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	h.submitRun(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestSubmitRun_MalformedBodyReturns400(t *testing.T) {
	svc := ingest.New(&fakeIngestStore{outcome: store.Created})
	h := NewIngestHandlers(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(`{"run_id":`))
	rec := httptest.NewRecorder()

	h.submitRun(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSubmitRun_UnknownFieldReturns400(t *testing.T) {
	svc := ingest.New(&fakeIngestStore{outcome: store.Created})
	h := NewIngestHandlers(svc)

	body := `{"run_id":"r1","agent_id":"demo","agent_version":"1.0.0","environment":"production","status":"success","started_at":"2026-01-01T00:00:00Z","not_a_real_field":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	h.submitRun(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

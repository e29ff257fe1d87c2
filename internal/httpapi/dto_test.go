package httpapi

import (
	"testing"
	"time"

	"github.com/marcus-qen/agentobservatory/internal/model"
)

func TestMetadataDTO_RoundTrip(t *testing.T) {
	s := "tool-call"
	b := true
	n := 3.5
	in := model.Metadata{
		"kind":  model.MetadataValue{Str: &s},
		"retry": model.MetadataValue{Bool: &b},
		"score": model.MetadataValue{Number: &n},
	}
	dto := metadataFromModel(in)
	out, err := dto.toModel("steps.metadata")
	if err != nil {
		t.Fatalf("toModel: %v", err)
	}
	if *out["kind"].Str != "tool-call" || *out["retry"].Bool != true || *out["score"].Number != 3.5 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestMetadataDTO_RejectsUnsupportedType(t *testing.T) {
	dto := metadataDTO{"bad": []int{1, 2}}
	if _, err := dto.toModel("steps.metadata"); err == nil {
		t.Fatal("expected error for unsupported metadata value type")
	}
}

func TestRunDTO_ToModel_StampsGeneratedFields(t *testing.T) {
	stepID := "step-1"
	r := runDTO{
		RunID:        "11111111-1111-1111-1111-111111111111",
		AgentID:      "demo",
		AgentVersion: "1.0.0",
		Environment:  "production",
		Status:       "failed",
		StartedAt:    time.Now().UTC(),
		Failure:      &failureDTO{StepID: &stepID, FailureType: "timeout", FailureCode: "E_TIMEOUT", Message: "took too long"},
		Decisions: []decisionDTO{
			{DecisionID: "d1", DecisionType: "tool_selection", Selected: "api", ReasonCode: "confidence"},
		},
	}

	view, err := r.toModel()
	if err != nil {
		t.Fatalf("toModel: %v", err)
	}
	if view.Failure.FailureID == "" {
		t.Fatal("expected a generated failure_id")
	}
	if len(view.Decisions) != 1 || view.Decisions[0].RecordedAt.IsZero() {
		t.Fatalf("expected RecordedAt to be stamped, got %+v", view.Decisions)
	}
}

func TestRunDTOFromModel_OmitsZeroCreatedAt(t *testing.T) {
	view := model.RunView{Run: model.Run{RunID: "r1", AgentID: "demo"}}
	dto := runDTOFromModel(view)
	if dto.CreatedAt != nil {
		t.Fatalf("expected nil CreatedAt for zero-value Run.CreatedAt, got %v", dto.CreatedAt)
	}
}

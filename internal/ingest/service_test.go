package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/marcus-qen/agentobservatory/internal/apierr"
	"github.com/marcus-qen/agentobservatory/internal/model"
	"github.com/marcus-qen/agentobservatory/internal/store"
)

type fakeStore struct {
	view    model.RunView
	outcome store.WriteOutcome
	err     error
	calls   int
}

func (f *fakeStore) InsertRunTree(ctx context.Context, view model.RunView) (model.RunView, store.WriteOutcome, error) {
	f.calls++
	if f.err != nil {
		return model.RunView{}, 0, f.err
	}
	return view, f.outcome, nil
}

func validRunView() model.RunView {
	now := time.Now().UTC()
	ended := now.Add(time.Second)
	return model.RunView{
		Run: model.Run{
			RunID:        "11111111-1111-1111-1111-111111111111",
			AgentID:      "demo",
			AgentVersion: "1.0.0",
			Environment:  model.EnvironmentProduction,
			Status:       model.RunStatusSuccess,
			StartedAt:    now,
			EndedAt:      &ended,
		},
		Steps: []model.Step{
			{StepID: "s0", RunID: "r1", Seq: 0, StepType: model.StepTypePlan, Name: "plan", LatencyMs: 10, StartedAt: now, EndedAt: ended},
			{StepID: "s1", RunID: "r1", Seq: 1, StepType: model.StepTypeRespond, Name: "respond", LatencyMs: 20, StartedAt: now, EndedAt: ended},
		},
		Decisions: []model.Decision{
			{DecisionID: "d0", RunID: "r1", DecisionType: model.DecisionTypeToolSelection, Selected: "search", ReasonCode: "best_match", RecordedAt: now},
		},
		QualitySignals: []model.QualitySignal{
			{SignalID: "q0", RunID: "r1", SignalType: "grounding", SignalCode: "citation_present", Value: true, RecordedAt: now},
		},
	}
}

func TestSubmitRun_Valid(t *testing.T) {
	fs := &fakeStore{outcome: store.Created}
	svc := New(fs)

	_, outcome, err := svc.SubmitRun(context.Background(), validRunView())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != store.Created {
		t.Errorf("expected Created, got %v", outcome)
	}
	if fs.calls != 1 {
		t.Errorf("expected store called once, got %d", fs.calls)
	}
}

func TestSubmitRun_RejectsNonContiguousSeq(t *testing.T) {
	view := validRunView()
	view.Steps[1].Seq = 5

	fs := &fakeStore{}
	svc := New(fs)
	_, _, err := svc.SubmitRun(context.Background(), view)
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if fs.calls != 0 {
		t.Error("store should not be called on validation failure")
	}
}

func TestSubmitRun_FailureStatusRequiresFailureRecord(t *testing.T) {
	view := validRunView()
	view.Run.Status = model.RunStatusFailure
	view.Failure = nil

	fs := &fakeStore{}
	svc := New(fs)
	_, _, err := svc.SubmitRun(context.Background(), view)
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitRun_RejectsBlockedMetadataKey(t *testing.T) {
	view := validRunView()
	s := "oops"
	view.Steps[0].Metadata = model.Metadata{"prompt": model.MetadataValue{Str: &s}}

	fs := &fakeStore{}
	svc := New(fs)
	_, _, err := svc.SubmitRun(context.Background(), view)
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitRun_RejectsInvalidReasonCodeForType(t *testing.T) {
	view := validRunView()
	view.Decisions[0].ReasonCode = "semantic_search" // valid for retrieval_strategy, not tool_selection

	fs := &fakeStore{}
	svc := New(fs)
	_, _, err := svc.SubmitRun(context.Background(), view)
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitRun_RejectsInvalidConfidence(t *testing.T) {
	view := validRunView()
	bad := 1.5
	view.Decisions[0].Confidence = &bad

	fs := &fakeStore{}
	svc := New(fs)
	_, _, err := svc.SubmitRun(context.Background(), view)
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitRun_IdempotentReplay(t *testing.T) {
	fs := &fakeStore{outcome: store.Replayed}
	svc := New(fs)
	_, outcome, err := svc.SubmitRun(context.Background(), validRunView())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != store.Replayed {
		t.Errorf("expected Replayed, got %v", outcome)
	}
}

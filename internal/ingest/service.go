// Package ingest implements the Ingestion Service: structural and semantic
// validation of a submitted run tree, followed by an idempotent write.
package ingest

import (
	"context"
	"fmt"

	"github.com/marcus-qen/agentobservatory/internal/apierr"
	"github.com/marcus-qen/agentobservatory/internal/model"
	"github.com/marcus-qen/agentobservatory/internal/privacy"
	"github.com/marcus-qen/agentobservatory/internal/store"
	"github.com/marcus-qen/agentobservatory/internal/validate"
)

// Store is the slice of the persistence layer the ingestion service needs.
type Store interface {
	InsertRunTree(ctx context.Context, view model.RunView) (model.RunView, store.WriteOutcome, error)
}

// Service implements the Ingestion Service component.
type Service struct {
	store Store
}

// New constructs a Service over store.
func New(store Store) *Service {
	return &Service{store: store}
}

// SubmitRun validates view end-to-end and writes it, returning the stored
// tree and whether this call created it or replayed an existing write.
func (s *Service) SubmitRun(ctx context.Context, view model.RunView) (model.RunView, store.WriteOutcome, error) {
	if err := validateRunView(view); err != nil {
		return model.RunView{}, 0, err
	}
	return s.store.InsertRunTree(ctx, view)
}

func validateRunView(view model.RunView) error {
	run := view.Run
	if run.RunID == "" {
		return apierr.Validation("run_id", "run_id is required")
	}
	if run.AgentID == "" {
		return apierr.Validation("agent_id", "agent_id is required")
	}
	if run.AgentVersion == "" {
		return apierr.Validation("agent_version", "agent_version is required")
	}
	if !validate.Environment(run.Environment) {
		return apierr.Validation("environment", fmt.Sprintf("unrecognized environment %q", run.Environment))
	}
	if !validate.RunStatus(run.Status) {
		return apierr.Validation("status", fmt.Sprintf("unrecognized status %q", run.Status))
	}
	if run.EndedAt != nil && run.EndedAt.Before(run.StartedAt) {
		return apierr.Validation("ended_at", "ended_at must not precede started_at")
	}

	if err := validateSteps(view.Steps); err != nil {
		return err
	}

	if run.Status == model.RunStatusFailure && view.Failure == nil {
		return apierr.Validation("failure", "status=failure requires a failure record")
	}
	if view.Failure != nil {
		if err := validateFailure(*view.Failure); err != nil {
			return err
		}
	}

	for _, d := range view.Decisions {
		if err := validateDecision(d); err != nil {
			return err
		}
	}
	for _, qs := range view.QualitySignals {
		if err := validateSignal(qs); err != nil {
			return err
		}
	}

	return nil
}

// validateSteps enforces that seq values form a contiguous {0,...,n-1}
// sequence and that each step's metadata passes the privacy filter.
func validateSteps(steps []model.Step) error {
	seen := make(map[int]bool, len(steps))
	for _, st := range steps {
		if !validate.StepType(st.StepType) {
			return apierr.Validation("steps.step_type", fmt.Sprintf("unrecognized step_type %q", st.StepType))
		}
		if st.LatencyMs < 0 {
			return apierr.Validation("steps.latency_ms", "latency_ms must not be negative")
		}
		if st.EndedAt.Before(st.StartedAt) {
			return apierr.Validation("steps.ended_at", "ended_at must not precede started_at")
		}
		if seen[st.Seq] {
			return apierr.Validation("steps.seq", fmt.Sprintf("duplicate seq %d", st.Seq))
		}
		seen[st.Seq] = true
		if err := validateMetadata("steps.metadata", st.Metadata); err != nil {
			return err
		}
	}
	for i := 0; i < len(steps); i++ {
		if !seen[i] {
			return apierr.Validation("steps.seq", "seq values must form a contiguous sequence starting at 0")
		}
	}
	return nil
}

func validateFailure(f model.Failure) error {
	if !validate.FailureType(f.FailureType) {
		return apierr.Validation("failure.failure_type", fmt.Sprintf("unrecognized failure_type %q", f.FailureType))
	}
	if f.FailureCode == "" {
		return apierr.Validation("failure.failure_code", "failure_code is required")
	}
	if reason := privacy.CheckFailureMessage(f.Message); reason != "" {
		return apierr.Validation("failure.message", reason)
	}
	return nil
}

func validateDecision(d model.Decision) error {
	if !validate.DecisionType(d.DecisionType) {
		return apierr.Validation("decisions.decision_type", fmt.Sprintf("unrecognized decision_type %q", d.DecisionType))
	}
	if d.Selected == "" {
		return apierr.Validation("decisions.selected", "selected is required")
	}
	if !validate.ReasonCode(d.DecisionType, d.ReasonCode) {
		return apierr.Validation("decisions.reason_code", fmt.Sprintf("reason_code %q is not valid for decision_type %q", d.ReasonCode, d.DecisionType))
	}
	if d.Confidence != nil && (*d.Confidence < 0 || *d.Confidence > 1) {
		return apierr.Validation("decisions.confidence", "confidence must be between 0 and 1")
	}
	return validateMetadata("decisions.metadata", d.Metadata)
}

func validateSignal(qs model.QualitySignal) error {
	if !validate.SignalType(qs.SignalType) {
		return apierr.Validation("quality_signals.signal_type", fmt.Sprintf("unrecognized signal_type %q", qs.SignalType))
	}
	if !validate.SignalCode(qs.SignalType, qs.SignalCode) {
		return apierr.Validation("quality_signals.signal_code", fmt.Sprintf("signal_code %q is not valid for signal_type %q", qs.SignalCode, qs.SignalType))
	}
	if qs.Weight != nil && (*qs.Weight < 0 || *qs.Weight > 1) {
		return apierr.Validation("quality_signals.weight", "weight must be between 0 and 1")
	}
	return validateMetadata("quality_signals.metadata", qs.Metadata)
}

func validateMetadata(path string, meta model.Metadata) error {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	if reason := privacy.CheckMetadataKeys(keys); reason != "" {
		return apierr.Validation(path, reason)
	}
	for _, v := range meta {
		if v.Str != nil && !privacy.CheckStringValue(*v.Str) {
			return apierr.Validation(path, "string metadata value exceeds the bounded length")
		}
	}
	return nil
}

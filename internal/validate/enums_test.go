package validate

import (
	"testing"

	"github.com/marcus-qen/agentobservatory/internal/model"
)

func TestRunStatus(t *testing.T) {
	if !RunStatus(model.RunStatusFailure) {
		t.Error("failure should be a valid run status")
	}
	if RunStatus("cancelled") {
		t.Error("cancelled is not a recognized run status")
	}
}

func TestReasonCode_ScopedToDecisionType(t *testing.T) {
	if !ReasonCode(model.DecisionTypeToolSelection, "best_match") {
		t.Error("best_match should be permitted for tool_selection")
	}
	if ReasonCode(model.DecisionTypeRetryStrategy, "best_match") {
		t.Error("best_match should not be permitted for retry_strategy")
	}
}

func TestSignalCode_ScopedToSignalType(t *testing.T) {
	if !SignalCode("grounding", "citation_present") {
		t.Error("citation_present should be permitted for grounding")
	}
	if SignalCode("safety", "citation_present") {
		t.Error("citation_present should not be permitted for safety")
	}
	if SignalType("nonexistent") {
		t.Error("nonexistent should not be a recognized signal type")
	}
}

// Package validate holds enum-membership predicates for the fixed vocab of
// environments, statuses, step/failure/decision/signal types, and the
// permitted reason/signal codes nested under each type.
package validate

import "github.com/marcus-qen/agentobservatory/internal/model"

var environments = map[model.Environment]bool{
	model.EnvironmentProduction:  true,
	model.EnvironmentStaging:     true,
	model.EnvironmentDevelopment: true,
}

// Environment reports whether e is a recognized environment value.
func Environment(e model.Environment) bool {
	return environments[e]
}

var runStatuses = map[model.RunStatus]bool{
	model.RunStatusSuccess: true,
	model.RunStatusFailure: true,
	model.RunStatusPartial: true,
}

// RunStatus reports whether s is a recognized run status.
func RunStatus(s model.RunStatus) bool {
	return runStatuses[s]
}

var stepTypes = map[model.StepType]bool{
	model.StepTypePlan:     true,
	model.StepTypeRetrieve: true,
	model.StepTypeTool:     true,
	model.StepTypeRespond:  true,
	model.StepTypeOther:    true,
}

// StepType reports whether t is a recognized step type.
func StepType(t model.StepType) bool {
	return stepTypes[t]
}

var failureTypes = map[model.FailureType]bool{
	model.FailureTypeTool:          true,
	model.FailureTypeModel:         true,
	model.FailureTypeRetrieval:     true,
	model.FailureTypeOrchestration: true,
}

// FailureType reports whether t is a recognized failure type.
func FailureType(t model.FailureType) bool {
	return failureTypes[t]
}

var decisionTypes = map[model.DecisionType]bool{
	model.DecisionTypeToolSelection:     true,
	model.DecisionTypeRetrievalStrategy: true,
	model.DecisionTypeResponseMode:      true,
	model.DecisionTypeRetryStrategy:     true,
	model.DecisionTypeOrchestrationPath: true,
}

// DecisionType reports whether t is one of the fixed decision types.
func DecisionType(t model.DecisionType) bool {
	return decisionTypes[t]
}

// decisionReasonCodes maps each decision type to its permitted reason codes.
// The vocabulary is intentionally small and fixed: reason codes describe
// *why* a selection was made in structured terms, never free text.
var decisionReasonCodes = map[model.DecisionType]map[string]bool{
	model.DecisionTypeToolSelection: {
		"best_match": true, "fallback": true, "policy_required": true,
		"availability": true, "cost": true, "previous_failure": true,
	},
	model.DecisionTypeRetrievalStrategy: {
		"semantic_search": true, "keyword_search": true, "hybrid": true,
		"cache_hit": true, "no_retrieval_needed": true,
	},
	model.DecisionTypeResponseMode: {
		"direct_answer": true, "clarification_needed": true,
		"tool_result_summary": true, "escalation": true,
	},
	model.DecisionTypeRetryStrategy: {
		"transient_error": true, "rate_limited": true,
		"validation_failed": true, "timeout": true, "no_retry": true,
	},
	model.DecisionTypeOrchestrationPath: {
		"single_agent": true, "delegated": true, "parallel_fanout": true,
		"sequential_pipeline": true,
	},
}

// ReasonCode reports whether code is permitted for the given decision type.
func ReasonCode(decisionType model.DecisionType, code string) bool {
	permitted, ok := decisionReasonCodes[decisionType]
	if !ok {
		return false
	}
	return permitted[code]
}

// signalCodes maps each signal type to its permitted signal codes.
var signalCodes = map[string]map[string]bool{
	"grounding": {
		"citation_present": true, "citation_absent": true, "source_verified": true,
	},
	"coherence": {
		"on_topic": true, "off_topic": true, "self_contradiction": true,
	},
	"safety": {
		"refusal_triggered": true, "policy_violation_detected": true, "clean": true,
	},
	"efficiency": {
		"redundant_call": true, "cache_used": true, "minimal_path": true,
	},
}

// SignalType reports whether t is a recognized signal type.
func SignalType(t string) bool {
	_, ok := signalCodes[t]
	return ok
}

// SignalCode reports whether code is permitted for the given signal type.
func SignalCode(signalType, code string) bool {
	permitted, ok := signalCodes[signalType]
	if !ok {
		return false
	}
	return permitted[code]
}

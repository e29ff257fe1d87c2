// Package model holds the persisted entity shapes shared across the
// ingestion, query, and analytics subsystems.
package model

import "time"

// Environment is the deployment environment a run executed in.
type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentStaging     Environment = "staging"
	EnvironmentDevelopment Environment = "development"
)

// RunStatus is the terminal or in-flight status of a run.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailure RunStatus = "failure"
	RunStatusPartial RunStatus = "partial"
)

// StepType classifies the kind of action a step performed.
type StepType string

const (
	StepTypePlan     StepType = "plan"
	StepTypeRetrieve StepType = "retrieve"
	StepTypeTool     StepType = "tool"
	StepTypeRespond  StepType = "respond"
	StepTypeOther    StepType = "other"
)

// FailureType classifies where a failure originated.
type FailureType string

const (
	FailureTypeTool         FailureType = "tool"
	FailureTypeModel        FailureType = "model"
	FailureTypeRetrieval    FailureType = "retrieval"
	FailureTypeOrchestration FailureType = "orchestration"
)

// DecisionType is the fixed set of decisions an agent may record.
type DecisionType string

const (
	DecisionTypeToolSelection      DecisionType = "tool_selection"
	DecisionTypeRetrievalStrategy  DecisionType = "retrieval_strategy"
	DecisionTypeResponseMode       DecisionType = "response_mode"
	DecisionTypeRetryStrategy      DecisionType = "retry_strategy"
	DecisionTypeOrchestrationPath  DecisionType = "orchestration_path"
)

// MetadataValue is a bounded primitive value: string (<=100 chars), bool,
// or float64. Nested objects and arrays are never valid metadata values.
type MetadataValue struct {
	Str    *string
	Bool   *bool
	Number *float64
}

// Metadata is a bounded string-keyed map of primitive values.
type Metadata map[string]MetadataValue

// Run is one attempted execution of an agent.
type Run struct {
	RunID         string
	AgentID       string
	AgentVersion  string
	Environment   Environment
	Status        RunStatus
	StartedAt     time.Time
	EndedAt       *time.Time
	CreatedAt     time.Time
}

// Step is one atomic, ordered action within a run.
type Step struct {
	StepID    string
	RunID     string
	Seq       int
	StepType  StepType
	Name      string
	LatencyMs int64
	StartedAt time.Time
	EndedAt   time.Time
	Metadata  Metadata
}

// Failure is a semantic classification of why a run failed.
type Failure struct {
	FailureID   string
	RunID       string
	StepID      *string
	FailureType FailureType
	FailureCode string
	Message     string
}

// Decision is a structured record of a choice the agent made.
type Decision struct {
	DecisionID   string
	RunID        string
	StepID       *string
	DecisionType DecisionType
	Selected     string
	ReasonCode   string
	Confidence   *float64
	Candidates   []string
	Metadata     Metadata
	RecordedAt   time.Time
}

// QualitySignal is a boolean, typed observation recorded at a step.
type QualitySignal struct {
	SignalID   string
	RunID      string
	StepID     *string
	SignalType string
	SignalCode string
	Value      bool
	Weight     *float64
	Metadata   Metadata
	RecordedAt time.Time
}

// RunView is a run with all of its children attached, the unit returned by
// the ingestion and query services.
type RunView struct {
	Run            Run
	Steps          []Step
	Failure        *Failure
	Decisions      []Decision
	QualitySignals []QualitySignal
}

// LatencyStats holds the fixed set of scalar latency metrics a profile
// tracks, keyed identically in baseline and observed profiles so drift
// comparison can iterate the same field names on both sides.
type LatencyStats struct {
	MeanRunDurationMs float64
	P50RunDurationMs  float64
	P95RunDurationMs  float64
	P99RunDurationMs  float64
}

// AsMap exposes the fixed latency metrics by their metric name,
// used by the drift engine to iterate a uniform metric set.
func (l LatencyStats) AsMap() map[string]float64 {
	return map[string]float64{
		"mean_run_duration_ms": l.MeanRunDurationMs,
		"p50_run_duration_ms":  l.P50RunDurationMs,
		"p95_run_duration_ms":  l.P95RunDurationMs,
		"p99_run_duration_ms":  l.P99RunDurationMs,
	}
}

// BehaviorProfile is a statistical snapshot over a bounded time window.
//
// SignalDistributions stores, per (signal_type, signal_code), the fraction
// of observed signals of that type/code pair whose value was true, not
// the fraction of all signals of that type falling into that code,
// regardless of value. The drift engine relies on this exact definition.
type BehaviorProfile struct {
	ProfileID              string
	AgentID                string
	AgentVersion           string
	Environment            Environment
	WindowStart            time.Time
	WindowEnd              time.Time
	SampleSize             int
	DecisionDistributions  map[DecisionType]map[string]float64
	SignalDistributions    map[string]map[string]float64
	LatencyStats           LatencyStats
	CreatedAt              time.Time
}

// BaselineType identifies how a baseline was produced.
type BaselineType string

const (
	BaselineTypeVersion    BaselineType = "version"
	BaselineTypeTimeWindow BaselineType = "time_window"
	BaselineTypeManual     BaselineType = "manual"
)

// BehaviorBaseline is an immutable, approved profile activated for a given
// (agent_id, agent_version, environment) triple.
type BehaviorBaseline struct {
	BaselineID   string
	ProfileID    string
	AgentID      string
	AgentVersion string
	Environment  Environment
	BaselineType BaselineType
	ApprovedBy   *string
	ApprovedAt   *time.Time
	Description  string
	IsActive     bool
	CreatedAt    time.Time
}

// DriftType classifies which kind of distribution or metric drifted.
type DriftType string

const (
	DriftTypeDecision DriftType = "decision"
	DriftTypeSignal   DriftType = "signal"
	DriftTypeLatency  DriftType = "latency"
)

// TestMethod names the statistical test that produced a drift record.
type TestMethod string

const (
	TestMethodChiSquare       TestMethod = "chi_square"
	TestMethodPercentThreshold TestMethod = "percent_threshold"
)

// Severity is a magnitude-based, non-evaluative classification of a drift.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// BehaviorDrift is a statistically significant deviation from a baseline.
type BehaviorDrift struct {
	DriftID                string
	BaselineID             string
	AgentID                string
	AgentVersion           string
	Environment            Environment
	DriftType              DriftType
	Metric                 string
	BaselineValue          float64
	ObservedValue          float64
	Delta                  float64
	DeltaPercent           float64
	Significance           float64
	TestMethod             TestMethod
	Severity               Severity
	DetectedAt             time.Time
	ObservationWindowStart time.Time
	ObservationWindowEnd   time.Time
	ObservationSampleSize  int
	ResolvedAt             *time.Time
}

// AlertChannel names the sink a dispatched alert went out through.
type AlertChannel string

const (
	AlertChannelLog      AlertChannel = "log"
	AlertChannelDatabase AlertChannel = "database"
	AlertChannelWebhook  AlertChannel = "webhook"
)

// DeliveryStatus is the outcome of an alert dispatch attempt.
type DeliveryStatus string

const (
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusRetry   DeliveryStatus = "retry"
)

// AlertLog records one dispatched alert for one drift, on one channel.
type AlertLog struct {
	AlertID        string
	DriftID        string
	AlertMessage   string
	AlertChannel   AlertChannel
	SentAt         time.Time
	DeliveryStatus DeliveryStatus
}

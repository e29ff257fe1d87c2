package httpapi

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marcus-qen/agentobservatory/internal/model"
)

// The wire shapes below mirror the ingest payload in spec §6.1 exactly;
// the service layer works in terms of internal/model, which carries no
// JSON tags of its own (its fields double as SQL scan targets), so this
// package owns the one conversion boundary between wire and domain shape.

type metadataDTO map[string]any

func (m metadataDTO) toModel(path string) (model.Metadata, error) {
	if m == nil {
		return model.Metadata{}, nil
	}
	out := make(model.Metadata, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			s := val
			out[k] = model.MetadataValue{Str: &s}
		case bool:
			b := val
			out[k] = model.MetadataValue{Bool: &b}
		case float64:
			n := val
			out[k] = model.MetadataValue{Number: &n}
		case nil:
			continue
		default:
			return nil, fmt.Errorf("%s.%s: metadata values must be string, bool, or number", path, k)
		}
	}
	return out, nil
}

func metadataFromModel(m model.Metadata) metadataDTO {
	out := make(metadataDTO, len(m))
	for k, v := range m {
		switch {
		case v.Str != nil:
			out[k] = *v.Str
		case v.Bool != nil:
			out[k] = *v.Bool
		case v.Number != nil:
			out[k] = *v.Number
		}
	}
	return out
}

type stepDTO struct {
	StepID    string      `json:"step_id"`
	Seq       int         `json:"seq"`
	StepType  string      `json:"step_type"`
	Name      string      `json:"name"`
	LatencyMs int64       `json:"latency_ms"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   time.Time   `json:"ended_at"`
	Metadata  metadataDTO `json:"metadata"`
}

type failureDTO struct {
	StepID      *string `json:"step_id"`
	FailureType string  `json:"failure_type"`
	FailureCode string  `json:"failure_code"`
	Message     string  `json:"message"`
}

type decisionDTO struct {
	DecisionID   string      `json:"decision_id"`
	StepID       *string     `json:"step_id,omitempty"`
	DecisionType string      `json:"decision_type"`
	Selected     string      `json:"selected"`
	ReasonCode   string      `json:"reason_code"`
	Confidence   *float64    `json:"confidence,omitempty"`
	Candidates   []string    `json:"candidates,omitempty"`
	Metadata     metadataDTO `json:"metadata"`
}

type signalDTO struct {
	SignalID   string      `json:"signal_id"`
	StepID     *string     `json:"step_id,omitempty"`
	SignalType string      `json:"signal_type"`
	SignalCode string      `json:"signal_code"`
	Value      bool        `json:"value"`
	Weight     *float64    `json:"weight,omitempty"`
	Metadata   metadataDTO `json:"metadata"`
}

type runDTO struct {
	RunID          string        `json:"run_id"`
	AgentID        string        `json:"agent_id"`
	AgentVersion   string        `json:"agent_version"`
	Environment    string        `json:"environment"`
	Status         string        `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        *time.Time    `json:"ended_at"`
	CreatedAt      *time.Time    `json:"created_at,omitempty"`
	Steps          []stepDTO     `json:"steps"`
	Failure        *failureDTO   `json:"failure"`
	Decisions      []decisionDTO `json:"decisions"`
	QualitySignals []signalDTO   `json:"quality_signals"`
}

func (r runDTO) toModel() (model.RunView, error) {
	view := model.RunView{
		Run: model.Run{
			RunID:        r.RunID,
			AgentID:      r.AgentID,
			AgentVersion: r.AgentVersion,
			Environment:  model.Environment(r.Environment),
			Status:       model.RunStatus(r.Status),
			StartedAt:    r.StartedAt,
			EndedAt:      r.EndedAt,
		},
	}

	now := time.Now().UTC()
	for _, s := range r.Steps {
		meta, err := s.Metadata.toModel("steps.metadata")
		if err != nil {
			return model.RunView{}, err
		}
		view.Steps = append(view.Steps, model.Step{
			StepID:    s.StepID,
			RunID:     r.RunID,
			Seq:       s.Seq,
			StepType:  model.StepType(s.StepType),
			Name:      s.Name,
			LatencyMs: s.LatencyMs,
			StartedAt: s.StartedAt,
			EndedAt:   s.EndedAt,
			Metadata:  meta,
		})
	}

	if r.Failure != nil {
		view.Failure = &model.Failure{
			FailureID:   uuid.NewString(),
			RunID:       r.RunID,
			StepID:      r.Failure.StepID,
			FailureType: model.FailureType(r.Failure.FailureType),
			FailureCode: r.Failure.FailureCode,
			Message:     r.Failure.Message,
		}
	}

	for _, d := range r.Decisions {
		meta, err := d.Metadata.toModel("decisions.metadata")
		if err != nil {
			return model.RunView{}, err
		}
		view.Decisions = append(view.Decisions, model.Decision{
			DecisionID:   d.DecisionID,
			RunID:        r.RunID,
			StepID:       d.StepID,
			DecisionType: model.DecisionType(d.DecisionType),
			Selected:     d.Selected,
			ReasonCode:   d.ReasonCode,
			Confidence:   d.Confidence,
			Candidates:   d.Candidates,
			Metadata:     meta,
			RecordedAt:   now,
		})
	}

	for _, qs := range r.QualitySignals {
		meta, err := qs.Metadata.toModel("quality_signals.metadata")
		if err != nil {
			return model.RunView{}, err
		}
		view.QualitySignals = append(view.QualitySignals, model.QualitySignal{
			SignalID:   qs.SignalID,
			RunID:      r.RunID,
			StepID:     qs.StepID,
			SignalType: qs.SignalType,
			SignalCode: qs.SignalCode,
			Value:      qs.Value,
			Weight:     qs.Weight,
			Metadata:   meta,
			RecordedAt: now,
		})
	}

	return view, nil
}

func runDTOFromModel(view model.RunView) runDTO {
	out := runDTO{
		RunID:        view.Run.RunID,
		AgentID:      view.Run.AgentID,
		AgentVersion: view.Run.AgentVersion,
		Environment:  string(view.Run.Environment),
		Status:       string(view.Run.Status),
		StartedAt:    view.Run.StartedAt,
		EndedAt:      view.Run.EndedAt,
	}
	if !view.Run.CreatedAt.IsZero() {
		createdAt := view.Run.CreatedAt
		out.CreatedAt = &createdAt
	}

	for _, s := range view.Steps {
		out.Steps = append(out.Steps, stepDTO{
			StepID: s.StepID, Seq: s.Seq, StepType: string(s.StepType), Name: s.Name,
			LatencyMs: s.LatencyMs, StartedAt: s.StartedAt, EndedAt: s.EndedAt,
			Metadata: metadataFromModel(s.Metadata),
		})
	}
	if view.Failure != nil {
		out.Failure = &failureDTO{
			StepID: view.Failure.StepID, FailureType: string(view.Failure.FailureType),
			FailureCode: view.Failure.FailureCode, Message: view.Failure.Message,
		}
	}
	for _, d := range view.Decisions {
		out.Decisions = append(out.Decisions, decisionDTO{
			DecisionID: d.DecisionID, StepID: d.StepID, DecisionType: string(d.DecisionType),
			Selected: d.Selected, ReasonCode: d.ReasonCode, Confidence: d.Confidence,
			Candidates: d.Candidates, Metadata: metadataFromModel(d.Metadata),
		})
	}
	for _, qs := range view.QualitySignals {
		out.QualitySignals = append(out.QualitySignals, signalDTO{
			SignalID: qs.SignalID, StepID: qs.StepID, SignalType: qs.SignalType,
			SignalCode: qs.SignalCode, Value: qs.Value, Weight: qs.Weight,
			Metadata: metadataFromModel(qs.Metadata),
		})
	}
	return out
}

type statsDTO struct {
	TotalRuns         int            `json:"total_runs"`
	TotalFailures     int            `json:"total_failures"`
	SuccessRate       float64        `json:"success_rate"`
	AvgLatencyMs      float64        `json:"avg_latency_ms"`
	FailureBreakdown  map[string]int `json:"failure_breakdown"`
	StepTypeBreakdown map[string]int `json:"step_type_breakdown"`
}

type profileDTO struct {
	ProfileID             string                                  `json:"profile_id"`
	AgentID               string                                  `json:"agent_id"`
	AgentVersion          string                                  `json:"agent_version"`
	Environment           string                                  `json:"environment"`
	WindowStart           time.Time                               `json:"window_start"`
	WindowEnd             time.Time                                `json:"window_end"`
	SampleSize            int                                     `json:"sample_size"`
	DecisionDistributions map[model.DecisionType]map[string]float64 `json:"decision_distributions"`
	SignalDistributions   map[string]map[string]float64             `json:"signal_distributions"`
	LatencyStats          model.LatencyStats                       `json:"latency_stats"`
	CreatedAt             time.Time                                `json:"created_at"`
}

func profileDTOFromModel(p model.BehaviorProfile) profileDTO {
	return profileDTO{
		ProfileID: p.ProfileID, AgentID: p.AgentID, AgentVersion: p.AgentVersion,
		Environment: string(p.Environment), WindowStart: p.WindowStart, WindowEnd: p.WindowEnd,
		SampleSize: p.SampleSize, DecisionDistributions: p.DecisionDistributions,
		SignalDistributions: p.SignalDistributions, LatencyStats: p.LatencyStats, CreatedAt: p.CreatedAt,
	}
}

type baselineDTO struct {
	BaselineID   string     `json:"baseline_id"`
	ProfileID    string     `json:"profile_id"`
	AgentID      string     `json:"agent_id"`
	AgentVersion string     `json:"agent_version"`
	Environment  string     `json:"environment"`
	BaselineType string     `json:"baseline_type"`
	ApprovedBy   *string    `json:"approved_by"`
	ApprovedAt   *time.Time `json:"approved_at"`
	Description  string     `json:"description"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
}

func baselineDTOFromModel(b model.BehaviorBaseline) baselineDTO {
	return baselineDTO{
		BaselineID: b.BaselineID, ProfileID: b.ProfileID, AgentID: b.AgentID, AgentVersion: b.AgentVersion,
		Environment: string(b.Environment), BaselineType: string(b.BaselineType), ApprovedBy: b.ApprovedBy,
		ApprovedAt: b.ApprovedAt, Description: b.Description, IsActive: b.IsActive, CreatedAt: b.CreatedAt,
	}
}

type createBaselineRequest struct {
	ProfileID    string  `json:"profile_id"`
	BaselineType string  `json:"baseline_type"`
	Description  string  `json:"description"`
	ApprovedBy   *string `json:"approved_by,omitempty"`
}

type approveBaselineRequest struct {
	ApprovedBy string `json:"approved_by"`
}

type driftDTO struct {
	DriftID                string     `json:"drift_id"`
	BaselineID              string     `json:"baseline_id"`
	AgentID                 string     `json:"agent_id"`
	AgentVersion            string     `json:"agent_version"`
	Environment             string     `json:"environment"`
	DriftType               string     `json:"drift_type"`
	Metric                  string     `json:"metric"`
	BaselineValue           float64    `json:"baseline_value"`
	ObservedValue           float64    `json:"observed_value"`
	Delta                   float64    `json:"delta"`
	DeltaPercent            float64    `json:"delta_percent"`
	Significance            float64    `json:"significance"`
	TestMethod              string     `json:"test_method"`
	Severity                string     `json:"severity"`
	DetectedAt              time.Time  `json:"detected_at"`
	ObservationWindowStart  time.Time  `json:"observation_window_start"`
	ObservationWindowEnd    time.Time  `json:"observation_window_end"`
	ObservationSampleSize   int        `json:"observation_sample_size"`
	ResolvedAt              *time.Time `json:"resolved_at"`
}

func driftDTOFromModel(d model.BehaviorDrift) driftDTO {
	return driftDTO{
		DriftID: d.DriftID, BaselineID: d.BaselineID, AgentID: d.AgentID, AgentVersion: d.AgentVersion,
		Environment: string(d.Environment), DriftType: string(d.DriftType), Metric: d.Metric,
		BaselineValue: d.BaselineValue, ObservedValue: d.ObservedValue, Delta: d.Delta,
		DeltaPercent: d.DeltaPercent, Significance: d.Significance, TestMethod: string(d.TestMethod),
		Severity: string(d.Severity), DetectedAt: d.DetectedAt, ObservationWindowStart: d.ObservationWindowStart,
		ObservationWindowEnd: d.ObservationWindowEnd, ObservationSampleSize: d.ObservationSampleSize,
		ResolvedAt: d.ResolvedAt,
	}
}

type timelinePointDTO struct {
	Timestamp     time.Time `json:"timestamp"`
	Metric        string    `json:"metric"`
	Value         float64   `json:"value"`
	DriftDetected bool      `json:"drift_detected"`
	DriftID       *string   `json:"drift_id,omitempty"`
}

type driftSummaryDTO struct {
	TotalDrift      int                    `json:"total_drift"`
	BySeverity      map[model.Severity]int `json:"by_severity"`
	ByType          map[model.DriftType]int `json:"by_type"`
	UnresolvedCount int                    `json:"unresolved_count"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

package drift

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marcus-qen/agentobservatory/internal/model"
	"github.com/marcus-qen/agentobservatory/internal/profile"
	"github.com/marcus-qen/agentobservatory/internal/store"
)

// Store is the slice of the persistence layer the drift engine needs.
type Store interface {
	profile.DataSource
	GetProfile(ctx context.Context, profileID string) (model.BehaviorProfile, error)
	InsertDrift(ctx context.Context, d model.BehaviorDrift) (model.BehaviorDrift, error)
}

// Engine implements the Drift Detection Engine component.
type Engine struct {
	store  Store
	cfg    Config
	logger *zap.Logger
}

// New constructs an Engine over store with the given threshold config.
func New(store Store, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{store: store, cfg: cfg, logger: logger}
}

// Detect builds an observation-window profile and compares it against
// baseline's profile, persisting and returning every statistically
// significant drift record found. Failure computing one metric does not
// prevent the rest from being evaluated (spec §7's partial-success policy).
func (e *Engine) Detect(ctx context.Context, baseline model.BehaviorBaseline, observationStart, observationEnd time.Time) ([]model.BehaviorDrift, error) {
	baselineProfile, err := e.store.GetProfile(ctx, baseline.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("load baseline profile: %w", err)
	}

	observedScope := store.WindowScope{
		AgentID:      baseline.AgentID,
		AgentVersion: baseline.AgentVersion,
		Environment:  baseline.Environment,
		WindowStart:  observationStart,
		WindowEnd:    observationEnd,
	}
	observedProfile, err := profile.Build(ctx, e.store, observedScope, e.cfg.MinimumSampleSizes.DriftDetection)
	if err != nil {
		return nil, err
	}

	var found []candidateDrift
	found = append(found, e.decisionDrift(baselineProfile, observedProfile)...)
	found = append(found, e.signalDrift(baselineProfile, observedProfile)...)
	found = append(found, e.latencyDrift(baselineProfile, observedProfile)...)

	var persisted []model.BehaviorDrift
	for _, c := range found {
		d := model.BehaviorDrift{
			DriftID:                uuid.NewString(),
			BaselineID:             baseline.BaselineID,
			AgentID:                baseline.AgentID,
			AgentVersion:           baseline.AgentVersion,
			Environment:            baseline.Environment,
			DriftType:              c.driftType,
			Metric:                 c.metric,
			BaselineValue:          c.baselineValue,
			ObservedValue:          c.observedValue,
			Delta:                  c.delta,
			DeltaPercent:           c.deltaPercent,
			Significance:           c.significance,
			TestMethod:             c.testMethod,
			Severity:               e.severity(c.deltaPercent),
			ObservationWindowStart: observationStart,
			ObservationWindowEnd:   observationEnd,
			ObservationSampleSize:  observedProfile.SampleSize,
		}
		saved, err := e.store.InsertDrift(ctx, d)
		if err != nil {
			if e.logger != nil {
				e.logger.Error("persist drift record failed, continuing with remaining metrics",
					zap.String("metric", c.metric), zap.Error(err))
			}
			continue
		}
		persisted = append(persisted, saved)
	}

	return persisted, nil
}

type candidateDrift struct {
	driftType     model.DriftType
	metric        string
	baselineValue float64
	observedValue float64
	delta         float64
	deltaPercent  float64
	significance  float64
	testMethod    model.TestMethod
}

// deltaPercent computes (observed-baseline)/baseline*100, defined as 0.0
// when baseline is 0 per spec's documented boundary policy.
func deltaPercent(baselineValue, observedValue float64) float64 {
	if baselineValue == 0 {
		return 0.0
	}
	return (observedValue - baselineValue) / baselineValue * 100
}

func unionKeys(a, b map[string]float64) []string {
	seen := map[string]bool{}
	var keys []string
	for k := range a {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// decisionDrift evaluates every decision_type present on either side.
func (e *Engine) decisionDrift(baselineP, observedP model.BehaviorProfile) []candidateDrift {
	var out []candidateDrift
	types := map[model.DecisionType]bool{}
	for t := range baselineP.DecisionDistributions {
		types[t] = true
	}
	for t := range observedP.DecisionDistributions {
		types[t] = true
	}

	for dtype := range types {
		baselineDist := baselineP.DecisionDistributions[dtype]
		observedDist := observedP.DecisionDistributions[dtype]
		categories := unionKeys(baselineDist, observedDist)

		observedCounts := make([]float64, len(categories))
		expectedCounts := make([]float64, len(categories))
		for i, cat := range categories {
			expectedCounts[i] = baselineDist[cat] * float64(baselineP.SampleSize)
			observedCounts[i] = observedDist[cat] * float64(observedP.SampleSize)
		}
		_, pValue := profile.ChiSquareGoodnessOfFit(observedCounts, expectedCounts)

		if pValue >= e.cfg.DecisionDrift.PValueThreshold {
			continue
		}
		for _, cat := range categories {
			bVal := baselineDist[cat]
			oVal := observedDist[cat]
			dp := deltaPercent(bVal, oVal)
			if absFloat(dp) < e.cfg.DecisionDrift.MinDeltaPercent {
				continue
			}
			out = append(out, candidateDrift{
				driftType:     model.DriftTypeDecision,
				metric:        fmt.Sprintf("%s.%s", dtype, cat),
				baselineValue: bVal,
				observedValue: oVal,
				delta:         oVal - bVal,
				deltaPercent:  dp,
				significance:  pValue,
				testMethod:    model.TestMethodChiSquare,
			})
		}
	}
	return out
}

// signalDrift evaluates every (signal_type, signal_code) pair present on
// either side, using the identical true-fraction definition as the
// profile builder.
func (e *Engine) signalDrift(baselineP, observedP model.BehaviorProfile) []candidateDrift {
	var out []candidateDrift
	types := map[string]bool{}
	for t := range baselineP.SignalDistributions {
		types[t] = true
	}
	for t := range observedP.SignalDistributions {
		types[t] = true
	}

	for stype := range types {
		baselineDist := baselineP.SignalDistributions[stype]
		observedDist := observedP.SignalDistributions[stype]
		codes := unionKeys(baselineDist, observedDist)

		observedCounts := make([]float64, len(codes))
		expectedCounts := make([]float64, len(codes))
		for i, code := range codes {
			expectedCounts[i] = baselineDist[code] * float64(baselineP.SampleSize)
			observedCounts[i] = observedDist[code] * float64(observedP.SampleSize)
		}
		_, pValue := profile.ChiSquareGoodnessOfFit(observedCounts, expectedCounts)

		if pValue >= e.cfg.SignalDrift.PValueThreshold {
			continue
		}
		for _, code := range codes {
			bVal := baselineDist[code]
			oVal := observedDist[code]
			dp := deltaPercent(bVal, oVal)
			if absFloat(dp) < e.cfg.SignalDrift.MinDeltaPercent {
				continue
			}
			out = append(out, candidateDrift{
				driftType:     model.DriftTypeSignal,
				metric:        fmt.Sprintf("%s.%s", stype, code),
				baselineValue: bVal,
				observedValue: oVal,
				delta:         oVal - bVal,
				deltaPercent:  dp,
				significance:  pValue,
				testMethod:    model.TestMethodChiSquare,
			})
		}
	}
	return out
}

// latencyDrift evaluates the fixed set of scalar latency metrics.
func (e *Engine) latencyDrift(baselineP, observedP model.BehaviorProfile) []candidateDrift {
	var out []candidateDrift
	baselineLatency := baselineP.LatencyStats.AsMap()
	observedLatency := observedP.LatencyStats.AsMap()

	// Iterate a fixed, sorted metric order so output is deterministic.
	metrics := []string{"mean_run_duration_ms", "p50_run_duration_ms", "p95_run_duration_ms", "p99_run_duration_ms"}
	for _, metric := range metrics {
		bVal := baselineLatency[metric]
		oVal := observedLatency[metric]
		dp := deltaPercent(bVal, oVal)
		if absFloat(dp) < e.cfg.LatencyDrift.MinDeltaPercent {
			continue
		}
		out = append(out, candidateDrift{
			driftType:     model.DriftTypeLatency,
			metric:        metric,
			baselineValue: bVal,
			observedValue: oVal,
			delta:         oVal - bVal,
			deltaPercent:  dp,
			significance:  1.0,
			testMethod:    model.TestMethodPercentThreshold,
		})
	}
	return out
}

// severity classifies a drift's magnitude, non-evaluatively.
func (e *Engine) severity(deltaPercent float64) model.Severity {
	magnitude := absFloat(deltaPercent)
	switch {
	case magnitude <= e.cfg.SeverityThresholds.Low.MaxDeltaPercent:
		return model.SeverityLow
	case magnitude <= e.cfg.SeverityThresholds.Medium.MaxDeltaPercent:
		return model.SeverityMedium
	default:
		return model.SeverityHigh
	}
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

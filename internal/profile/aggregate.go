package profile

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/marcus-qen/agentobservatory/internal/apierr"
	"github.com/marcus-qen/agentobservatory/internal/model"
	"github.com/marcus-qen/agentobservatory/internal/store"
)

// DataSource is the slice of the persistence layer the profile builder
// needs; *store.Store satisfies it directly.
type DataSource interface {
	CountRunsInWindow(ctx context.Context, scope store.WindowScope) (int, error)
	DecisionCounts(ctx context.Context, scope store.WindowScope) (map[model.DecisionType]map[string]int, error)
	SignalCounts(ctx context.Context, scope store.WindowScope) (trueCounts, totalCounts map[string]map[string]int, err error)
	RunDurationsMs(ctx context.Context, scope store.WindowScope) ([]float64, error)
}

// Build aggregates a bounded historical window into a BehaviorProfile.
//
// Signal distributions are stored as the fraction of signals of a given
// (signal_type, signal_code) pair whose value was true; see DESIGN.md's
// Open Question decisions for why this form (rather than "fraction of
// signals of that type falling into that code regardless of value") was
// chosen, and internal/drift which consumes the identical definition.
func Build(ctx context.Context, ds DataSource, scope store.WindowScope, minSampleSize int) (model.BehaviorProfile, error) {
	sampleSize, err := ds.CountRunsInWindow(ctx, scope)
	if err != nil {
		return model.BehaviorProfile{}, fmt.Errorf("count runs: %w", err)
	}
	if sampleSize < minSampleSize {
		return model.BehaviorProfile{}, apierr.InsufficientData(
			fmt.Sprintf("window has %d runs, need at least %d", sampleSize, minSampleSize))
	}

	decisionCounts, err := ds.DecisionCounts(ctx, scope)
	if err != nil {
		return model.BehaviorProfile{}, fmt.Errorf("decision counts: %w", err)
	}
	decisionDistributions := normalizeDecisionCounts(decisionCounts)

	trueCounts, totalCounts, err := ds.SignalCounts(ctx, scope)
	if err != nil {
		return model.BehaviorProfile{}, fmt.Errorf("signal counts: %w", err)
	}
	signalDistributions := signalTrueFractions(trueCounts, totalCounts)

	durations, err := ds.RunDurationsMs(ctx, scope)
	if err != nil {
		return model.BehaviorProfile{}, fmt.Errorf("run durations: %w", err)
	}
	latencyStats := computeLatencyStats(durations)

	return model.BehaviorProfile{
		ProfileID:             uuid.NewString(),
		AgentID:               scope.AgentID,
		AgentVersion:          scope.AgentVersion,
		Environment:           scope.Environment,
		WindowStart:           scope.WindowStart,
		WindowEnd:             scope.WindowEnd,
		SampleSize:            sampleSize,
		DecisionDistributions: decisionDistributions,
		SignalDistributions:   signalDistributions,
		LatencyStats:          latencyStats,
	}, nil
}

func normalizeDecisionCounts(counts map[model.DecisionType]map[string]int) map[model.DecisionType]map[string]float64 {
	out := map[model.DecisionType]map[string]float64{}
	for dtype, selected := range counts {
		total := 0
		for _, c := range selected {
			total += c
		}
		if total == 0 {
			continue
		}
		dist := make(map[string]float64, len(selected))
		for sel, c := range selected {
			dist[sel] = float64(c) / float64(total)
		}
		out[dtype] = dist
	}
	return out
}

// signalTrueFraction computes the true-value fraction for one
// (signal_type, signal_code) pair: the single definition both the
// profile builder and the drift engine use.
func signalTrueFraction(trueCount, totalCount int) float64 {
	if totalCount == 0 {
		return 0
	}
	return float64(trueCount) / float64(totalCount)
}

func signalTrueFractions(trueCounts, totalCounts map[string]map[string]int) map[string]map[string]float64 {
	out := map[string]map[string]float64{}
	for stype, codes := range totalCounts {
		dist := make(map[string]float64, len(codes))
		for scode, total := range codes {
			dist[scode] = signalTrueFraction(trueCounts[stype][scode], total)
		}
		out[stype] = dist
	}
	return out
}

func computeLatencyStats(durations []float64) model.LatencyStats {
	if len(durations) == 0 {
		return model.LatencyStats{}
	}
	// Percentile sorts in place; Mean doesn't care about order, so compute
	// it first over the pristine slice for clarity (it's order-independent
	// regardless, but this keeps the call sites simple to read).
	mean := Mean(durations)
	p50 := Percentile(append([]float64(nil), durations...), 50)
	p95 := Percentile(append([]float64(nil), durations...), 95)
	p99 := Percentile(append([]float64(nil), durations...), 99)
	return model.LatencyStats{
		MeanRunDurationMs: mean,
		P50RunDurationMs:  p50,
		P95RunDurationMs:  p95,
		P99RunDurationMs:  p99,
	}
}

package profile

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/marcus-qen/agentobservatory/internal/apierr"
	"github.com/marcus-qen/agentobservatory/internal/model"
	"github.com/marcus-qen/agentobservatory/internal/store"
)

type fakeDataSource struct {
	sampleSize     int
	decisionCounts map[model.DecisionType]map[string]int
	trueCounts     map[string]map[string]int
	totalCounts    map[string]map[string]int
	durations      []float64
}

func (f fakeDataSource) CountRunsInWindow(ctx context.Context, scope store.WindowScope) (int, error) {
	return f.sampleSize, nil
}

func (f fakeDataSource) DecisionCounts(ctx context.Context, scope store.WindowScope) (map[model.DecisionType]map[string]int, error) {
	return f.decisionCounts, nil
}

func (f fakeDataSource) SignalCounts(ctx context.Context, scope store.WindowScope) (map[string]map[string]int, map[string]map[string]int, error) {
	return f.trueCounts, f.totalCounts, nil
}

func (f fakeDataSource) RunDurationsMs(ctx context.Context, scope store.WindowScope) ([]float64, error) {
	return f.durations, nil
}

func testScope() store.WindowScope {
	return store.WindowScope{
		AgentID:      "demo",
		AgentVersion: "1.0.0",
		Environment:  model.EnvironmentProduction,
		WindowStart:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:    time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuild_InsufficientData(t *testing.T) {
	ds := fakeDataSource{sampleSize: 10}
	_, err := Build(context.Background(), ds, testScope(), 100)
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindInsufficientData {
		t.Fatalf("expected insufficient_data error, got %v", err)
	}
}

func TestBuild_DecisionDistributionsSumToOne(t *testing.T) {
	ds := fakeDataSource{
		sampleSize: 100,
		decisionCounts: map[model.DecisionType]map[string]int{
			model.DecisionTypeToolSelection: {"api": 65, "cache": 35},
		},
		totalCounts: map[string]map[string]int{},
		trueCounts:  map[string]map[string]int{},
		durations:   []float64{100, 200, 300},
	}
	p, err := Build(context.Background(), ds, testScope(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dist := p.DecisionDistributions[model.DecisionTypeToolSelection]
	sum := dist["api"] + dist["cache"]
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("expected distribution to sum to 1.0, got %v", sum)
	}
	if math.Abs(dist["api"]-0.65) > 1e-9 {
		t.Errorf("expected api=0.65, got %v", dist["api"])
	}
}

func TestBuild_SignalTrueFraction(t *testing.T) {
	ds := fakeDataSource{
		sampleSize:     100,
		decisionCounts: map[model.DecisionType]map[string]int{},
		trueCounts: map[string]map[string]int{
			"grounding": {"citation_present": 30},
		},
		totalCounts: map[string]map[string]int{
			"grounding": {"citation_present": 40},
		},
		durations: []float64{100},
	}
	p, err := Build(context.Background(), ds, testScope(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := p.SignalDistributions["grounding"]["citation_present"]
	if math.Abs(got-0.75) > 1e-9 {
		t.Errorf("expected 0.75, got %v", got)
	}
}

func TestBuild_ExcludesRunsWithoutEndedAtFromLatency(t *testing.T) {
	// Caller (store.RunDurationsMs) is responsible for the exclusion; the
	// builder just must not crash or skew on an already-filtered list.
	ds := fakeDataSource{
		sampleSize:     5,
		decisionCounts: map[model.DecisionType]map[string]int{},
		totalCounts:    map[string]map[string]int{},
		trueCounts:     map[string]map[string]int{},
		durations:      []float64{10, 20, 30},
	}
	p, err := Build(context.Background(), ds, testScope(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.LatencyStats.MeanRunDurationMs != 20 {
		t.Errorf("expected mean 20, got %v", p.LatencyStats.MeanRunDurationMs)
	}
}

func TestBuild_DeterministicAcrossRepeatedCalls(t *testing.T) {
	ds := fakeDataSource{
		sampleSize: 100,
		decisionCounts: map[model.DecisionType]map[string]int{
			model.DecisionTypeToolSelection: {"api": 65, "cache": 35},
		},
		totalCounts: map[string]map[string]int{"grounding": {"citation_present": 40}},
		trueCounts:  map[string]map[string]int{"grounding": {"citation_present": 30}},
		durations:   []float64{10, 20, 30, 40, 50},
	}
	a, err := Build(context.Background(), ds, testScope(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Build(context.Background(), ds, testScope(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.LatencyStats != b.LatencyStats {
		t.Errorf("expected identical latency stats across repeated builds: %+v vs %+v", a.LatencyStats, b.LatencyStats)
	}
	if a.DecisionDistributions[model.DecisionTypeToolSelection]["api"] != b.DecisionDistributions[model.DecisionTypeToolSelection]["api"] {
		t.Error("expected identical decision distributions across repeated builds")
	}
}

package jobs

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/marcus-qen/agentobservatory/internal/drift"
	"github.com/marcus-qen/agentobservatory/internal/model"
	"github.com/marcus-qen/agentobservatory/internal/store"
)

type fakeSchedulerStore struct {
	baselines     []model.BehaviorBaseline
	profiles      map[string]model.BehaviorProfile
	savedProfiles []model.BehaviorProfile
	sampleSize    int
	decisions     map[model.DecisionType]map[string]int
	trueCnt       map[string]map[string]int
	totalCnt      map[string]map[string]int
	durations     []float64
	inserted      []model.BehaviorDrift
}

func (f *fakeSchedulerStore) ListBaselines(ctx context.Context, filters store.BaselineFilters) ([]model.BehaviorBaseline, error) {
	return f.baselines, nil
}

func (f *fakeSchedulerStore) SaveProfile(ctx context.Context, p model.BehaviorProfile) (model.BehaviorProfile, error) {
	f.savedProfiles = append(f.savedProfiles, p)
	return p, nil
}

func (f *fakeSchedulerStore) GetProfile(ctx context.Context, profileID string) (model.BehaviorProfile, error) {
	return f.profiles[profileID], nil
}

func (f *fakeSchedulerStore) InsertDrift(ctx context.Context, d model.BehaviorDrift) (model.BehaviorDrift, error) {
	f.inserted = append(f.inserted, d)
	return d, nil
}

func (f *fakeSchedulerStore) CountRunsInWindow(ctx context.Context, scope store.WindowScope) (int, error) {
	return f.sampleSize, nil
}

func (f *fakeSchedulerStore) DecisionCounts(ctx context.Context, scope store.WindowScope) (map[model.DecisionType]map[string]int, error) {
	return f.decisions, nil
}

func (f *fakeSchedulerStore) SignalCounts(ctx context.Context, scope store.WindowScope) (map[string]map[string]int, map[string]map[string]int, error) {
	return f.trueCnt, f.totalCnt, nil
}

func (f *fakeSchedulerStore) RunDurationsMs(ctx context.Context, scope store.WindowScope) ([]float64, error) {
	return f.durations, nil
}

func TestRunProfileBuild_SkipsBelowMinimumSampleSize(t *testing.T) {
	s := &fakeSchedulerStore{
		baselines:  []model.BehaviorBaseline{{BaselineID: "b1", AgentID: "demo", AgentVersion: "1.0.0", Environment: model.EnvironmentProduction}},
		sampleSize: 1,
	}
	cfg := drift.DefaultConfig()
	sched := New(s, drift.New(s, cfg, zap.NewNop()), nil, cfg, zap.NewNop())

	sched.runProfileBuild(context.Background())

	if len(s.savedProfiles) != 0 {
		t.Fatalf("expected no profile saved below minimum sample size, got %d", len(s.savedProfiles))
	}
}

func TestRunProfileBuild_SavesProfileAboveThreshold(t *testing.T) {
	s := &fakeSchedulerStore{
		baselines:  []model.BehaviorBaseline{{BaselineID: "b1", AgentID: "demo", AgentVersion: "1.0.0", Environment: model.EnvironmentProduction}},
		sampleSize: 200,
		decisions: map[model.DecisionType]map[string]int{
			model.DecisionTypeToolSelection: {"api": 130, "cache": 70},
		},
		durations: []float64{100, 200, 300},
	}
	cfg := drift.DefaultConfig()
	sched := New(s, drift.New(s, cfg, zap.NewNop()), nil, cfg, zap.NewNop())

	sched.runProfileBuild(context.Background())

	if len(s.savedProfiles) != 1 {
		t.Fatalf("expected one profile saved, got %d", len(s.savedProfiles))
	}
	if s.savedProfiles[0].SampleSize != 200 {
		t.Fatalf("sample size = %d, want 200", s.savedProfiles[0].SampleSize)
	}
}

func TestRunDriftDetect_InsertsDriftForSignificantChange(t *testing.T) {
	baselineProfile := model.BehaviorProfile{
		ProfileID: "p-baseline", AgentID: "demo", AgentVersion: "1.0.0", Environment: model.EnvironmentProduction,
		SampleSize: 100,
		DecisionDistributions: map[model.DecisionType]map[string]float64{
			model.DecisionTypeToolSelection: {"api": 0.65, "cache": 0.35},
		},
	}
	s := &fakeSchedulerStore{
		baselines: []model.BehaviorBaseline{{BaselineID: "b1", ProfileID: "p-baseline", AgentID: "demo", AgentVersion: "1.0.0", Environment: model.EnvironmentProduction}},
		profiles:  map[string]model.BehaviorProfile{"p-baseline": baselineProfile},
		sampleSize: 100,
		decisions: map[model.DecisionType]map[string]int{
			model.DecisionTypeToolSelection: {"api": 82, "cache": 18},
		},
	}
	cfg := drift.DefaultConfig()
	sched := New(s, drift.New(s, cfg, zap.NewNop()), nil, cfg, zap.NewNop())

	sched.runDriftDetect(context.Background())

	if len(s.inserted) == 0 {
		t.Fatal("expected at least one drift record inserted")
	}
}

func TestObservationWindow_IsPositive(t *testing.T) {
	if observationWindow <= 0 {
		t.Fatal("observationWindow must be positive")
	}
	if observationWindow > 7*24*time.Hour {
		t.Fatal("observationWindow unexpectedly large")
	}
}

// Package jobs runs the analytics-worker's periodic profile-build and
// drift-detection sweeps.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/marcus-qen/agentobservatory/internal/alert"
	"github.com/marcus-qen/agentobservatory/internal/drift"
	"github.com/marcus-qen/agentobservatory/internal/metrics"
	"github.com/marcus-qen/agentobservatory/internal/model"
	"github.com/marcus-qen/agentobservatory/internal/profile"
	"github.com/marcus-qen/agentobservatory/internal/store"
	"github.com/marcus-qen/agentobservatory/internal/telemetry"
)

// observationWindow is the rolling window each sweep aggregates. It matches
// four runs of the default six-hour schedule, giving drift detection a full
// day of traffic to compare against the baseline.
const observationWindow = 24 * time.Hour

// Store is the slice of the persistence layer the scheduler needs: baseline
// discovery plus whatever profile.Build and drift.Engine already require.
type Store interface {
	profile.DataSource
	drift.Store
	ListBaselines(ctx context.Context, f store.BaselineFilters) ([]model.BehaviorBaseline, error)
	SaveProfile(ctx context.Context, p model.BehaviorProfile) (model.BehaviorProfile, error)
}

// Scheduler wraps a robfig/cron/v3 scheduler running the profile-build and
// drift-detect sweeps on independent cadences.
type Scheduler struct {
	store   Store
	engine  *drift.Engine
	emitter *alert.Emitter
	cfg     drift.Config
	logger  *zap.Logger
	cron    *cron.Cron
}

// New constructs a Scheduler. emitter dispatches one alert per drift record
// runDriftDetect persists; pass nil to skip alerting entirely.
func New(s Store, engine *drift.Engine, emitter *alert.Emitter, cfg drift.Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{store: s, engine: engine, emitter: emitter, cfg: cfg, logger: logger, cron: cron.New()}
}

// Start registers both sweeps per cfg's cron schedules and begins running
// them in the background. Call Stop to drain in-flight runs on shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.ProfileBuildSchedule, func() { s.runProfileBuild(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.DriftDetectSchedule, func() { s.runDriftDetect(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop blocks until any in-flight sweep finishes.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// runProfileBuild aggregates the trailing observationWindow for every
// (agent_id, agent_version, environment) triple that has an active
// baseline, since those are the triples drift detection will need fresh
// profiles for. A failure on one triple logs and continues.
func (s *Scheduler) runProfileBuild(ctx context.Context) {
	active := true
	baselines, err := s.store.ListBaselines(ctx, store.BaselineFilters{IsActive: &active, Page: 1, PageSize: 1000})
	if err != nil {
		s.logger.Error("list active baselines for profile build", zap.Error(err))
		return
	}

	end := time.Now().UTC()
	start := end.Add(-observationWindow)
	for _, b := range baselines {
		spanCtx, span := telemetry.StartProfileBuildSpan(ctx, b.AgentID, b.AgentVersion, string(b.Environment))
		scope := store.WindowScope{
			AgentID: b.AgentID, AgentVersion: b.AgentVersion, Environment: b.Environment,
			WindowStart: start, WindowEnd: end,
		}
		p, err := profile.Build(spanCtx, s.store, scope, s.cfg.MinimumSampleSizes.Profile)
		if err != nil {
			s.logger.Info("skipped profile build", zap.String("agent_id", b.AgentID), zap.Error(err))
			span.End()
			continue
		}
		if _, err := s.store.SaveProfile(spanCtx, p); err != nil {
			s.logger.Error("save profile", zap.String("agent_id", b.AgentID), zap.Error(err))
			span.End()
			continue
		}
		metrics.RecordProfileBuilt(string(b.Environment))
		span.End()
	}
}

// runDriftDetect runs detect_drift for every active baseline over the same
// trailing window runProfileBuild just refreshed.
func (s *Scheduler) runDriftDetect(ctx context.Context) {
	active := true
	baselines, err := s.store.ListBaselines(ctx, store.BaselineFilters{IsActive: &active, Page: 1, PageSize: 1000})
	if err != nil {
		s.logger.Error("list active baselines for drift detect", zap.Error(err))
		return
	}

	end := time.Now().UTC()
	start := end.Add(-observationWindow)
	for _, b := range baselines {
		spanCtx, span := telemetry.StartDriftDetectSpan(ctx, b.BaselineID)
		found, err := s.engine.Detect(spanCtx, b, start, end)
		if err != nil {
			s.logger.Info("skipped drift detect", zap.String("agent_id", b.AgentID), zap.Error(err))
			telemetry.EndDriftDetectSpan(span, 0)
			continue
		}
		for _, d := range found {
			metrics.RecordDrift(string(d.DriftType), string(d.Severity))
			if s.emitter != nil {
				s.emitter.Emit(spanCtx, d)
			}
		}
		telemetry.EndDriftDetectSpan(span, len(found))
	}
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marcus-qen/agentobservatory/internal/apierr"
	"github.com/marcus-qen/agentobservatory/internal/model"
)

// WindowScope identifies the (agent, version, environment, window) a
// profile or drift computation is scoped to.
type WindowScope struct {
	AgentID      string
	AgentVersion string
	Environment  model.Environment
	WindowStart  time.Time
	WindowEnd    time.Time
}

// CountRunsInWindow returns how many runs exist for the scope, the sample
// size the profile builder checks against MinSampleSize.
func (s *Store) CountRunsInWindow(ctx context.Context, scope WindowScope) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM agent_runs
		WHERE agent_id = $1 AND agent_version = $2 AND environment = $3
		  AND started_at >= $4 AND started_at < $5`,
		scope.AgentID, scope.AgentVersion, scope.Environment, scope.WindowStart, scope.WindowEnd,
	).Scan(&count)
	return count, err
}

// DecisionCounts returns, for every decision_type present in the window,
// a map of selected -> raw count.
func (s *Store) DecisionCounts(ctx context.Context, scope WindowScope) (map[model.DecisionType]map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.decision_type, d.selected, COUNT(*)
		FROM agent_decisions d JOIN agent_runs r ON r.run_id = d.run_id
		WHERE r.agent_id = $1 AND r.agent_version = $2 AND r.environment = $3
		  AND r.started_at >= $4 AND r.started_at < $5
		GROUP BY d.decision_type, d.selected`,
		scope.AgentID, scope.AgentVersion, scope.Environment, scope.WindowStart, scope.WindowEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("decision counts: %w", err)
	}
	defer rows.Close()

	out := map[model.DecisionType]map[string]int{}
	for rows.Next() {
		var dtype model.DecisionType
		var selected string
		var count int
		if err := rows.Scan(&dtype, &selected, &count); err != nil {
			return nil, err
		}
		if out[dtype] == nil {
			out[dtype] = map[string]int{}
		}
		out[dtype][selected] = count
	}
	return out, rows.Err()
}

// SignalCounts returns, for every (signal_type, signal_code) pair present
// in the window, the count of signals with value=true and the total count
// observed, so the caller can compute the true-fraction per spec's chosen
// signal distribution definition (see DESIGN.md Open Question decisions).
func (s *Store) SignalCounts(ctx context.Context, scope WindowScope) (trueCounts, totalCounts map[string]map[string]int, err error) {
	rows, qErr := s.pool.Query(ctx, `
		SELECT q.signal_type, q.signal_code, q.value, COUNT(*)
		FROM agent_quality_signals q JOIN agent_runs r ON r.run_id = q.run_id
		WHERE r.agent_id = $1 AND r.agent_version = $2 AND r.environment = $3
		  AND r.started_at >= $4 AND r.started_at < $5
		GROUP BY q.signal_type, q.signal_code, q.value`,
		scope.AgentID, scope.AgentVersion, scope.Environment, scope.WindowStart, scope.WindowEnd,
	)
	if qErr != nil {
		return nil, nil, fmt.Errorf("signal counts: %w", qErr)
	}
	defer rows.Close()

	trueCounts = map[string]map[string]int{}
	totalCounts = map[string]map[string]int{}
	for rows.Next() {
		var stype, scode string
		var value bool
		var count int
		if err := rows.Scan(&stype, &scode, &value, &count); err != nil {
			return nil, nil, err
		}
		if totalCounts[stype] == nil {
			totalCounts[stype] = map[string]int{}
			trueCounts[stype] = map[string]int{}
		}
		totalCounts[stype][scode] += count
		if value {
			trueCounts[stype][scode] += count
		}
	}
	return trueCounts, totalCounts, rows.Err()
}

// RunDurationsMs returns the duration in milliseconds of every run in the
// window that has an ended_at (runs without one are excluded from latency
// stats per spec §4.3).
func (s *Store) RunDurationsMs(ctx context.Context, scope WindowScope) ([]float64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT EXTRACT(EPOCH FROM (ended_at - started_at)) * 1000
		FROM agent_runs
		WHERE agent_id = $1 AND agent_version = $2 AND environment = $3
		  AND started_at >= $4 AND started_at < $5 AND ended_at IS NOT NULL`,
		scope.AgentID, scope.AgentVersion, scope.Environment, scope.WindowStart, scope.WindowEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("run durations: %w", err)
	}
	defer rows.Close()

	var durations []float64
	for rows.Next() {
		var d float64
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		durations = append(durations, d)
	}
	return durations, rows.Err()
}

// SaveProfile upserts a profile keyed by its (agent, version, environment,
// window) identity. Rebuilding a window is expected to be deterministic
// (spec §8), so a later rebuild overwrites the earlier row rather than
// erroring.
func (s *Store) SaveProfile(ctx context.Context, p model.BehaviorProfile) (model.BehaviorProfile, error) {
	decisionJSON, err := json.Marshal(p.DecisionDistributions)
	if err != nil {
		return model.BehaviorProfile{}, err
	}
	signalJSON, err := json.Marshal(p.SignalDistributions)
	if err != nil {
		return model.BehaviorProfile{}, err
	}
	latencyJSON, err := json.Marshal(p.LatencyStats)
	if err != nil {
		return model.BehaviorProfile{}, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO behavior_profiles
			(profile_id, agent_id, agent_version, environment, window_start, window_end,
			 sample_size, decision_distributions, signal_distributions, latency_stats)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (agent_id, agent_version, environment, window_start, window_end)
		DO UPDATE SET
			sample_size = EXCLUDED.sample_size,
			decision_distributions = EXCLUDED.decision_distributions,
			signal_distributions = EXCLUDED.signal_distributions,
			latency_stats = EXCLUDED.latency_stats
		RETURNING profile_id, created_at`,
		p.ProfileID, p.AgentID, p.AgentVersion, p.Environment, p.WindowStart, p.WindowEnd,
		p.SampleSize, decisionJSON, signalJSON, latencyJSON,
	)
	if err := row.Scan(&p.ProfileID, &p.CreatedAt); err != nil {
		return model.BehaviorProfile{}, fmt.Errorf("save profile: %w", err)
	}
	return p, nil
}

// GetProfile returns a single profile by id.
func (s *Store) GetProfile(ctx context.Context, profileID string) (model.BehaviorProfile, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT profile_id, agent_id, agent_version, environment, window_start, window_end,
			sample_size, decision_distributions, signal_distributions, latency_stats, created_at
		FROM behavior_profiles WHERE profile_id = $1`, profileID)
	return scanProfile(row)
}

func scanProfile(row pgx.Row) (model.BehaviorProfile, error) {
	var p model.BehaviorProfile
	var decisionJSON, signalJSON, latencyJSON []byte
	err := row.Scan(&p.ProfileID, &p.AgentID, &p.AgentVersion, &p.Environment,
		&p.WindowStart, &p.WindowEnd, &p.SampleSize, &decisionJSON, &signalJSON,
		&latencyJSON, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.BehaviorProfile{}, apierr.NotFound("profile not found")
		}
		return model.BehaviorProfile{}, fmt.Errorf("scan profile: %w", err)
	}
	if err := json.Unmarshal(decisionJSON, &p.DecisionDistributions); err != nil {
		return model.BehaviorProfile{}, err
	}
	if err := json.Unmarshal(signalJSON, &p.SignalDistributions); err != nil {
		return model.BehaviorProfile{}, err
	}
	if err := json.Unmarshal(latencyJSON, &p.LatencyStats); err != nil {
		return model.BehaviorProfile{}, err
	}
	return p, nil
}

// ProfileFilters narrows ListProfiles.
type ProfileFilters struct {
	AgentID      string
	AgentVersion string
	Environment  model.Environment
	Page         int
	PageSize     int
}

// ListProfiles returns profiles matching filters, newest window first.
func (s *Store) ListProfiles(ctx context.Context, f ProfileFilters) ([]model.BehaviorProfile, error) {
	clauses := "1=1"
	var args []interface{}
	arg := 1
	if f.AgentID != "" {
		clauses += fmt.Sprintf(" AND agent_id = $%d", arg)
		args = append(args, f.AgentID)
		arg++
	}
	if f.AgentVersion != "" {
		clauses += fmt.Sprintf(" AND agent_version = $%d", arg)
		args = append(args, f.AgentVersion)
		arg++
	}
	if f.Environment != "" {
		clauses += fmt.Sprintf(" AND environment = $%d", arg)
		args = append(args, f.Environment)
		arg++
	}
	offset := (f.Page - 1) * f.PageSize
	query := fmt.Sprintf(`
		SELECT profile_id, agent_id, agent_version, environment, window_start, window_end,
			sample_size, decision_distributions, signal_distributions, latency_stats, created_at
		FROM behavior_profiles WHERE %s ORDER BY window_end DESC LIMIT $%d OFFSET $%d`,
		clauses, arg, arg+1)
	args = append(args, f.PageSize, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []model.BehaviorProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marcus-qen/agentobservatory/internal/apierr"
	"github.com/marcus-qen/agentobservatory/internal/model"
)

// InsertDrift persists one drift record. Drift rows are written one at a
// time and the batch is not required to be atomic (spec §5): a failure on
// one metric does not roll back previously-written sibling metrics.
func (s *Store) InsertDrift(ctx context.Context, d model.BehaviorDrift) (model.BehaviorDrift, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO behavior_drift
			(drift_id, baseline_id, agent_id, agent_version, environment, drift_type, metric,
			 baseline_value, observed_value, delta, delta_percent, significance, test_method,
			 severity, observation_window_start, observation_window_end, observation_sample_size)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING drift_id, detected_at`,
		d.DriftID, d.BaselineID, d.AgentID, d.AgentVersion, d.Environment, d.DriftType, d.Metric,
		d.BaselineValue, d.ObservedValue, d.Delta, d.DeltaPercent, d.Significance, d.TestMethod,
		d.Severity, d.ObservationWindowStart, d.ObservationWindowEnd, d.ObservationSampleSize,
	)
	if err := row.Scan(&d.DriftID, &d.DetectedAt); err != nil {
		return model.BehaviorDrift{}, fmt.Errorf("insert drift: %w", err)
	}
	return d, nil
}

// GetDrift returns a single drift record by id.
func (s *Store) GetDrift(ctx context.Context, driftID string) (model.BehaviorDrift, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT drift_id, baseline_id, agent_id, agent_version, environment, drift_type, metric,
			baseline_value, observed_value, delta, delta_percent, significance, test_method,
			severity, detected_at, observation_window_start, observation_window_end,
			observation_sample_size, resolved_at
		FROM behavior_drift WHERE drift_id = $1`, driftID)
	return scanDrift(row)
}

func scanDrift(row pgx.Row) (model.BehaviorDrift, error) {
	var d model.BehaviorDrift
	err := row.Scan(&d.DriftID, &d.BaselineID, &d.AgentID, &d.AgentVersion, &d.Environment,
		&d.DriftType, &d.Metric, &d.BaselineValue, &d.ObservedValue, &d.Delta, &d.DeltaPercent,
		&d.Significance, &d.TestMethod, &d.Severity, &d.DetectedAt, &d.ObservationWindowStart,
		&d.ObservationWindowEnd, &d.ObservationSampleSize, &d.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.BehaviorDrift{}, apierr.NotFound("drift not found")
		}
		return model.BehaviorDrift{}, fmt.Errorf("scan drift: %w", err)
	}
	return d, nil
}

// ResolveDrift sets resolved_at, the only mutable field on a drift row.
func (s *Store) ResolveDrift(ctx context.Context, driftID string) (model.BehaviorDrift, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `UPDATE behavior_drift SET resolved_at = $2 WHERE drift_id = $1 AND resolved_at IS NULL`, driftID, now)
	if err != nil {
		return model.BehaviorDrift{}, fmt.Errorf("resolve drift: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.BehaviorDrift{}, apierr.Conflict("drift already resolved or does not exist")
	}
	return s.GetDrift(ctx, driftID)
}

// DriftFilters narrows ListDrift and the timeline/summary queries.
type DriftFilters struct {
	AgentID      string
	AgentVersion string
	Environment  model.Environment
	DriftType    model.DriftType
	Severity     model.Severity
	Resolved     *bool
	Page         int
	PageSize     int
}

func (f DriftFilters) whereClause() (string, []interface{}) {
	clauses := "1=1"
	var args []interface{}
	arg := 1
	add := func(clause string, value interface{}) {
		clauses += fmt.Sprintf(" AND "+clause, arg)
		args = append(args, value)
		arg++
	}
	if f.AgentID != "" {
		add("agent_id = $%d", f.AgentID)
	}
	if f.AgentVersion != "" {
		add("agent_version = $%d", f.AgentVersion)
	}
	if f.Environment != "" {
		add("environment = $%d", f.Environment)
	}
	if f.DriftType != "" {
		add("drift_type = $%d", f.DriftType)
	}
	if f.Severity != "" {
		add("severity = $%d", f.Severity)
	}
	if f.Resolved != nil {
		if *f.Resolved {
			clauses += " AND resolved_at IS NOT NULL"
		} else {
			clauses += " AND resolved_at IS NULL"
		}
	}
	return clauses, args
}

// ListDrift returns drift records matching filters, newest first.
func (s *Store) ListDrift(ctx context.Context, f DriftFilters) ([]model.BehaviorDrift, error) {
	where, args := f.whereClause()
	offset := (f.Page - 1) * f.PageSize
	query := fmt.Sprintf(`
		SELECT drift_id, baseline_id, agent_id, agent_version, environment, drift_type, metric,
			baseline_value, observed_value, delta, delta_percent, significance, test_method,
			severity, detected_at, observation_window_start, observation_window_end,
			observation_sample_size, resolved_at
		FROM behavior_drift WHERE %s ORDER BY detected_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, f.PageSize, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list drift: %w", err)
	}
	defer rows.Close()

	var out []model.BehaviorDrift
	for rows.Next() {
		d, err := scanDrift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// TimelinePoint is one chronologically ordered sample on a drift timeline.
type TimelinePoint struct {
	Timestamp     time.Time
	Metric        string
	Value         float64
	DriftDetected bool
	DriftID       *string
}

// Timeline returns drift points for an agent (optionally scoped further),
// ordered chronologically, over the given window.
func (s *Store) Timeline(ctx context.Context, agentID, agentVersion string, env model.Environment, start, end time.Time) ([]TimelinePoint, error) {
	clauses := "agent_id = $1 AND detected_at >= $2 AND detected_at <= $3"
	args := []interface{}{agentID, start, end}
	arg := 4
	if agentVersion != "" {
		clauses += fmt.Sprintf(" AND agent_version = $%d", arg)
		args = append(args, agentVersion)
		arg++
	}
	if env != "" {
		clauses += fmt.Sprintf(" AND environment = $%d", arg)
		args = append(args, env)
		arg++
	}
	query := fmt.Sprintf(`
		SELECT detected_at, metric, observed_value, drift_id
		FROM behavior_drift WHERE %s ORDER BY detected_at ASC`, clauses)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	defer rows.Close()

	var out []TimelinePoint
	for rows.Next() {
		var p TimelinePoint
		var driftID string
		if err := rows.Scan(&p.Timestamp, &p.Metric, &p.Value, &driftID); err != nil {
			return nil, err
		}
		p.DriftDetected = true
		p.DriftID = &driftID
		out = append(out, p)
	}
	return out, rows.Err()
}

// Summary is the aggregate counts behind GET /v1/phase3/drift/summary.
type Summary struct {
	TotalDrift       int
	BySeverity       map[model.Severity]int
	ByType           map[model.DriftType]int
	UnresolvedCount  int
}

// DriftSummary aggregates drift counts for an agent over the last `since`.
func (s *Store) DriftSummary(ctx context.Context, agentID string, env model.Environment, since time.Time) (Summary, error) {
	clauses := "agent_id = $1 AND detected_at >= $2"
	args := []interface{}{agentID, since}
	if env != "" {
		clauses += " AND environment = $3"
		args = append(args, env)
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT severity, drift_type, (resolved_at IS NULL) AS unresolved, COUNT(*)
		FROM behavior_drift WHERE %s GROUP BY severity, drift_type, unresolved`, clauses), args...)
	if err != nil {
		return Summary{}, fmt.Errorf("drift summary: %w", err)
	}
	defer rows.Close()

	out := Summary{BySeverity: map[model.Severity]int{}, ByType: map[model.DriftType]int{}}
	for rows.Next() {
		var sev model.Severity
		var dtype model.DriftType
		var unresolved bool
		var count int
		if err := rows.Scan(&sev, &dtype, &unresolved, &count); err != nil {
			return Summary{}, err
		}
		out.TotalDrift += count
		out.BySeverity[sev] += count
		out.ByType[dtype] += count
		if unresolved {
			out.UnresolvedCount += count
		}
	}
	return out, rows.Err()
}

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

// WriteOutcome tells the caller whether InsertRunTree performed the first
// write for this run_id or found it already persisted (idempotent replay).
type WriteOutcome int

const (
	Created WriteOutcome = iota
	Replayed
)

// InsertRunTree writes a run and all of its children atomically. If run_id
// already exists, no row is touched and the stored tree is returned with
// outcome Replayed. This is the idempotency contract from spec §4.1.
func (s *Store) InsertRunTree(ctx context.Context, view model.RunView) (model.RunView, WriteOutcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.RunView{}, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO agent_runs (run_id, agent_id, agent_version, environment, status, started_at, ended_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (run_id) DO NOTHING`,
		view.Run.RunID, view.Run.AgentID, view.Run.AgentVersion, view.Run.Environment,
		view.Run.Status, view.Run.StartedAt, view.Run.EndedAt,
	)
	if err != nil {
		return model.RunView{}, 0, fmt.Errorf("insert run: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Already exists: idempotent replay, return the stored tree untouched.
		existing, err := s.GetRun(ctx, view.Run.RunID)
		if err != nil {
			return model.RunView{}, 0, err
		}
		return existing, Replayed, nil
	}

	for _, step := range view.Steps {
		metaJSON, err := marshalMetadata(step.Metadata)
		if err != nil {
			return model.RunView{}, 0, err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO agent_steps (step_id, run_id, seq, step_type, name, latency_ms, started_at, ended_at, metadata)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			step.StepID, step.RunID, step.Seq, step.StepType, step.Name, step.LatencyMs,
			step.StartedAt, step.EndedAt, metaJSON,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return model.RunView{}, 0, apierr.Conflict("seq collision within run")
			}
			return model.RunView{}, 0, fmt.Errorf("insert step: %w", err)
		}
	}

	if view.Failure != nil {
		f := view.Failure
		_, err := tx.Exec(ctx, `
			INSERT INTO agent_failures (failure_id, run_id, step_id, failure_type, failure_code, message)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			f.FailureID, f.RunID, f.StepID, f.FailureType, f.FailureCode, f.Message,
		)
		if err != nil {
			return model.RunView{}, 0, fmt.Errorf("insert failure: %w", err)
		}
	}

	for _, d := range view.Decisions {
		metaJSON, err := marshalMetadata(d.Metadata)
		if err != nil {
			return model.RunView{}, 0, err
		}
		candJSON, err := marshalCandidates(d.Candidates)
		if err != nil {
			return model.RunView{}, 0, err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO agent_decisions (decision_id, run_id, step_id, decision_type, selected, reason_code, confidence, candidates, metadata, recorded_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			d.DecisionID, d.RunID, d.StepID, d.DecisionType, d.Selected, d.ReasonCode,
			d.Confidence, candJSON, metaJSON, d.RecordedAt,
		)
		if err != nil {
			return model.RunView{}, 0, fmt.Errorf("insert decision: %w", err)
		}
	}

	for _, qs := range view.QualitySignals {
		metaJSON, err := marshalMetadata(qs.Metadata)
		if err != nil {
			return model.RunView{}, 0, err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO agent_quality_signals (signal_id, run_id, step_id, signal_type, signal_code, value, weight, metadata, recorded_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			qs.SignalID, qs.RunID, qs.StepID, qs.SignalType, qs.SignalCode, qs.Value,
			qs.Weight, metaJSON, qs.RecordedAt,
		)
		if err != nil {
			return model.RunView{}, 0, fmt.Errorf("insert quality signal: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.RunView{}, 0, fmt.Errorf("commit: %w", err)
	}

	view.Run.CreatedAt = time.Now().UTC()
	return view, Created, nil
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}

// GetRun returns a single run with all children, or a not_found Error.
func (s *Store) GetRun(ctx context.Context, runID string) (model.RunView, error) {
	var view model.RunView
	row := s.pool.QueryRow(ctx, `
		SELECT run_id, agent_id, agent_version, environment, status, started_at, ended_at, created_at
		FROM agent_runs WHERE run_id = $1`, runID)

	if err := row.Scan(&view.Run.RunID, &view.Run.AgentID, &view.Run.AgentVersion,
		&view.Run.Environment, &view.Run.Status, &view.Run.StartedAt,
		&view.Run.EndedAt, &view.Run.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.RunView{}, apierr.NotFound("run not found")
		}
		return model.RunView{}, fmt.Errorf("get run: %w", err)
	}

	steps, err := s.GetSteps(ctx, runID)
	if err != nil {
		return model.RunView{}, err
	}
	view.Steps = steps

	failure, err := s.getFailure(ctx, runID)
	if err != nil {
		return model.RunView{}, err
	}
	view.Failure = failure

	decisions, err := s.getDecisions(ctx, runID)
	if err != nil {
		return model.RunView{}, err
	}
	view.Decisions = decisions

	signals, err := s.getQualitySignals(ctx, runID)
	if err != nil {
		return model.RunView{}, err
	}
	view.QualitySignals = signals

	return view, nil
}

// GetSteps returns a run's steps ordered by seq.
func (s *Store) GetSteps(ctx context.Context, runID string) ([]model.Step, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT step_id, run_id, seq, step_type, name, latency_ms, started_at, ended_at, metadata
		FROM agent_steps WHERE run_id = $1 ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("get steps: %w", err)
	}
	defer rows.Close()

	var steps []model.Step
	for rows.Next() {
		var st model.Step
		var metaJSON []byte
		if err := rows.Scan(&st.StepID, &st.RunID, &st.Seq, &st.StepType, &st.Name,
			&st.LatencyMs, &st.StartedAt, &st.EndedAt, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		meta, err := unmarshalMetadata(metaJSON)
		if err != nil {
			return nil, err
		}
		st.Metadata = meta
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// GetFailures returns the (at most one) failure attached to a run, as a
// slice for API symmetry with GetSteps.
func (s *Store) GetFailures(ctx context.Context, runID string) ([]model.Failure, error) {
	f, err := s.getFailure(ctx, runID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return []model.Failure{}, nil
	}
	return []model.Failure{*f}, nil
}

func (s *Store) getFailure(ctx context.Context, runID string) (*model.Failure, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT failure_id, run_id, step_id, failure_type, failure_code, message
		FROM agent_failures WHERE run_id = $1`, runID)

	var f model.Failure
	if err := row.Scan(&f.FailureID, &f.RunID, &f.StepID, &f.FailureType, &f.FailureCode, &f.Message); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get failure: %w", err)
	}
	return &f, nil
}

func (s *Store) getDecisions(ctx context.Context, runID string) ([]model.Decision, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT decision_id, run_id, step_id, decision_type, selected, reason_code, confidence, candidates, metadata, recorded_at
		FROM agent_decisions WHERE run_id = $1 ORDER BY recorded_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("get decisions: %w", err)
	}
	defer rows.Close()

	var out []model.Decision
	for rows.Next() {
		var d model.Decision
		var candJSON, metaJSON []byte
		if err := rows.Scan(&d.DecisionID, &d.RunID, &d.StepID, &d.DecisionType, &d.Selected,
			&d.ReasonCode, &d.Confidence, &candJSON, &metaJSON, &d.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		cand, err := unmarshalCandidates(candJSON)
		if err != nil {
			return nil, err
		}
		meta, err := unmarshalMetadata(metaJSON)
		if err != nil {
			return nil, err
		}
		d.Candidates = cand
		d.Metadata = meta
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) getQualitySignals(ctx context.Context, runID string) ([]model.QualitySignal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT signal_id, run_id, step_id, signal_type, signal_code, value, weight, metadata, recorded_at
		FROM agent_quality_signals WHERE run_id = $1 ORDER BY recorded_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("get quality signals: %w", err)
	}
	defer rows.Close()

	var out []model.QualitySignal
	for rows.Next() {
		var qs model.QualitySignal
		var metaJSON []byte
		if err := rows.Scan(&qs.SignalID, &qs.RunID, &qs.StepID, &qs.SignalType, &qs.SignalCode,
			&qs.Value, &qs.Weight, &metaJSON, &qs.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan quality signal: %w", err)
		}
		meta, err := unmarshalMetadata(metaJSON)
		if err != nil {
			return nil, err
		}
		qs.Metadata = meta
		out = append(out, qs)
	}
	return out, rows.Err()
}

// RunFilters narrows list_runs and stats to a subset of runs.
type RunFilters struct {
	AgentID      string
	AgentVersion string
	Status       model.RunStatus
	Environment  model.Environment
	StartTime    *time.Time
	EndTime      *time.Time
}

func (f RunFilters) whereClause(startArg int) (string, []interface{}) {
	clauses := []string{"1=1"}
	var args []interface{}
	arg := startArg

	add := func(clause string, value interface{}) {
		clauses = append(clauses, fmt.Sprintf(clause, arg))
		args = append(args, value)
		arg++
	}

	if f.AgentID != "" {
		add("agent_id = $%d", f.AgentID)
	}
	if f.AgentVersion != "" {
		add("agent_version = $%d", f.AgentVersion)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Environment != "" {
		add("environment = $%d", f.Environment)
	}
	if f.StartTime != nil {
		add("started_at >= $%d", *f.StartTime)
	}
	if f.EndTime != nil {
		add("started_at <= $%d", *f.EndTime)
	}
	where := clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

// ListRuns returns runs matching filters, ordered by started_at descending,
// each with its children attached, paginated by (page, pageSize).
func (s *Store) ListRuns(ctx context.Context, f RunFilters, page, pageSize int) ([]model.RunView, error) {
	where, args := f.whereClause(1)
	offset := (page - 1) * pageSize
	query := fmt.Sprintf(`
		SELECT run_id, agent_id, agent_version, environment, status, started_at, ended_at, created_at
		FROM agent_runs WHERE %s ORDER BY started_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var runIDs []string
	var views []model.RunView
	for rows.Next() {
		var view model.RunView
		if err := rows.Scan(&view.Run.RunID, &view.Run.AgentID, &view.Run.AgentVersion,
			&view.Run.Environment, &view.Run.Status, &view.Run.StartedAt,
			&view.Run.EndedAt, &view.Run.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		views = append(views, view)
		runIDs = append(runIDs, view.Run.RunID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range views {
		steps, err := s.GetSteps(ctx, views[i].Run.RunID)
		if err != nil {
			return nil, err
		}
		views[i].Steps = steps

		failure, err := s.getFailure(ctx, views[i].Run.RunID)
		if err != nil {
			return nil, err
		}
		views[i].Failure = failure

		decisions, err := s.getDecisions(ctx, views[i].Run.RunID)
		if err != nil {
			return nil, err
		}
		views[i].Decisions = decisions

		signals, err := s.getQualitySignals(ctx, views[i].Run.RunID)
		if err != nil {
			return nil, err
		}
		views[i].QualitySignals = signals
	}

	return views, nil
}

// Stats is the aggregate object returned by GET /v1/stats.
type Stats struct {
	TotalRuns          int
	TotalFailures      int
	SuccessRate        float64
	AvgLatencyMs       float64
	FailureBreakdown   map[string]int
	StepTypeBreakdown  map[string]int
}

// ComputeStats runs the constituent aggregate queries concurrently, never
// loading row sets into memory, per spec §4.2.
func (s *Store) ComputeStats(ctx context.Context, f RunFilters) (Stats, error) {
	type result struct {
		stats Stats
		err   error
	}

	totalsCh := make(chan result, 1)
	failureBreakdownCh := make(chan result, 1)
	stepBreakdownCh := make(chan result, 1)

	go func() {
		where, args := f.whereClause(1)
		query := fmt.Sprintf(`
			SELECT
				COUNT(*) AS total_runs,
				COUNT(*) FILTER (WHERE status = 'failure') AS total_failures,
				COUNT(*) FILTER (WHERE status = 'success') AS total_success
			FROM agent_runs WHERE %s`, where)
		var total, failures, success int
		err := s.pool.QueryRow(ctx, query, args...).Scan(&total, &failures, &success)
		st := Stats{TotalRuns: total, TotalFailures: failures}
		if total > 0 {
			st.SuccessRate = float64(success) / float64(total) * 100
		}
		totalsCh <- result{stats: st, err: err}
	}()

	go func() {
		where, args := f.whereClause(1)
		query := fmt.Sprintf(`
			SELECT f.failure_type, f.failure_code, COUNT(*)
			FROM agent_failures f JOIN agent_runs r ON r.run_id = f.run_id
			WHERE %s GROUP BY f.failure_type, f.failure_code`, where)
		rows, err := s.pool.Query(ctx, query, args...)
		breakdown := map[string]int{}
		if err == nil {
			for rows.Next() {
				var ftype, fcode string
				var count int
				if scanErr := rows.Scan(&ftype, &fcode, &count); scanErr != nil {
					err = scanErr
					break
				}
				breakdown[fmt.Sprintf("%s/%s", ftype, fcode)] = count
			}
			rows.Close()
		}
		failureBreakdownCh <- result{stats: Stats{FailureBreakdown: breakdown}, err: err}
	}()

	go func() {
		where, args := f.whereClause(1)
		query := fmt.Sprintf(`
			SELECT st.step_type, COUNT(*)
			FROM agent_steps st JOIN agent_runs r ON r.run_id = st.run_id
			WHERE %s GROUP BY st.step_type`, where)
		rows, err := s.pool.Query(ctx, query, args...)
		breakdown := map[string]int{}
		if err == nil {
			for rows.Next() {
				var stype string
				var count int
				if scanErr := rows.Scan(&stype, &count); scanErr != nil {
					err = scanErr
					break
				}
				breakdown[stype] = count
			}
			rows.Close()
		}
		stepBreakdownCh <- result{stats: Stats{StepTypeBreakdown: breakdown}, err: err}
	}()

	avgLatencyCh := make(chan result, 1)
	go func() {
		where, args := f.whereClause(1)
		query := fmt.Sprintf(`
			SELECT COALESCE(AVG(st.latency_ms), 0)
			FROM agent_steps st JOIN agent_runs r ON r.run_id = st.run_id
			WHERE %s`, where)
		var avg float64
		err := s.pool.QueryRow(ctx, query, args...).Scan(&avg)
		avgLatencyCh <- result{stats: Stats{AvgLatencyMs: avg}, err: err}
	}()

	totals := <-totalsCh
	failureBreakdown := <-failureBreakdownCh
	stepBreakdown := <-stepBreakdownCh
	avgLatency := <-avgLatencyCh

	for _, r := range []result{totals, failureBreakdown, stepBreakdown, avgLatency} {
		if r.err != nil {
			return Stats{}, fmt.Errorf("compute stats: %w", r.err)
		}
	}

	return Stats{
		TotalRuns:         totals.stats.TotalRuns,
		TotalFailures:     totals.stats.TotalFailures,
		SuccessRate:       totals.stats.SuccessRate,
		AvgLatencyMs:      avgLatency.stats.AvgLatencyMs,
		FailureBreakdown:  failureBreakdown.stats.FailureBreakdown,
		StepTypeBreakdown: stepBreakdown.stats.StepTypeBreakdown,
	}, nil
}

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

// CreateBaseline inserts a new, inactive baseline. Activation is a
// separate, explicit operation (ActivateBaseline).
func (s *Store) CreateBaseline(ctx context.Context, b model.BehaviorBaseline) (model.BehaviorBaseline, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO behavior_baselines
			(baseline_id, profile_id, agent_id, agent_version, environment, baseline_type,
			 approved_by, approved_at, description, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,false)
		RETURNING baseline_id, created_at`,
		b.BaselineID, b.ProfileID, b.AgentID, b.AgentVersion, b.Environment, b.BaselineType,
		b.ApprovedBy, b.ApprovedAt, b.Description,
	)
	if err := row.Scan(&b.BaselineID, &b.CreatedAt); err != nil {
		return model.BehaviorBaseline{}, fmt.Errorf("create baseline: %w", err)
	}
	b.IsActive = false
	return b, nil
}

// GetBaseline returns a single baseline by id.
func (s *Store) GetBaseline(ctx context.Context, baselineID string) (model.BehaviorBaseline, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT baseline_id, profile_id, agent_id, agent_version, environment, baseline_type,
			approved_by, approved_at, description, is_active, created_at
		FROM behavior_baselines WHERE baseline_id = $1`, baselineID)
	return scanBaseline(row)
}

func scanBaseline(row pgx.Row) (model.BehaviorBaseline, error) {
	var b model.BehaviorBaseline
	err := row.Scan(&b.BaselineID, &b.ProfileID, &b.AgentID, &b.AgentVersion, &b.Environment,
		&b.BaselineType, &b.ApprovedBy, &b.ApprovedAt, &b.Description, &b.IsActive, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.BehaviorBaseline{}, apierr.NotFound("baseline not found")
		}
		return model.BehaviorBaseline{}, fmt.Errorf("scan baseline: %w", err)
	}
	return b, nil
}

// ActivateBaseline sets target active and, in the same transaction,
// deactivates any previously active baseline for the same
// (agent, version, environment) triple. The uniqueness of "active" is
// additionally enforced by the conditional unique index in dbschema.
func (s *Store) ActivateBaseline(ctx context.Context, baselineID string) (model.BehaviorBaseline, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.BehaviorBaseline{}, err
	}
	defer tx.Rollback(ctx)

	target, err := scanBaseline(tx.QueryRow(ctx, `
		SELECT baseline_id, profile_id, agent_id, agent_version, environment, baseline_type,
			approved_by, approved_at, description, is_active, created_at
		FROM behavior_baselines WHERE baseline_id = $1 FOR UPDATE`, baselineID))
	if err != nil {
		return model.BehaviorBaseline{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE behavior_baselines SET is_active = false
		WHERE agent_id = $1 AND agent_version = $2 AND environment = $3 AND baseline_id <> $4 AND is_active`,
		target.AgentID, target.AgentVersion, target.Environment, baselineID)
	if err != nil {
		return model.BehaviorBaseline{}, fmt.Errorf("deactivate existing: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE behavior_baselines SET is_active = true WHERE baseline_id = $1`, baselineID)
	if err != nil {
		return model.BehaviorBaseline{}, fmt.Errorf("activate: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.BehaviorBaseline{}, err
	}
	target.IsActive = true
	return target, nil
}

// DeactivateBaseline clears is_active on a single baseline.
func (s *Store) DeactivateBaseline(ctx context.Context, baselineID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE behavior_baselines SET is_active = false WHERE baseline_id = $1`, baselineID)
	if err != nil {
		return fmt.Errorf("deactivate baseline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.NotFound("baseline not found")
	}
	return nil
}

// GetActiveBaseline returns the active baseline for a triple, or not_found.
func (s *Store) GetActiveBaseline(ctx context.Context, agentID, agentVersion string, env model.Environment) (model.BehaviorBaseline, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT baseline_id, profile_id, agent_id, agent_version, environment, baseline_type,
			approved_by, approved_at, description, is_active, created_at
		FROM behavior_baselines
		WHERE agent_id = $1 AND agent_version = $2 AND environment = $3 AND is_active`,
		agentID, agentVersion, env)
	return scanBaseline(row)
}

// ApproveBaseline sets approved_by/approved_at, but only on a baseline that
// has never been approved. The persistence-layer trigger rejects any
// later attempt to change an already-set approved_by.
func (s *Store) ApproveBaseline(ctx context.Context, baselineID, approvedBy string) (model.BehaviorBaseline, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE behavior_baselines SET approved_by = $2, approved_at = $3
		WHERE baseline_id = $1 AND approved_by IS NULL`,
		baselineID, approvedBy, now)
	if err != nil {
		return model.BehaviorBaseline{}, fmt.Errorf("approve baseline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.BehaviorBaseline{}, apierr.Conflict("baseline already approved or does not exist")
	}
	return s.GetBaseline(ctx, baselineID)
}

// UpdateDescription exists only to exercise the immutability guarantee in
// tests; the service layer never calls it outside that purpose, since
// spec §4.4 makes every baseline field but is_active and first-time
// approval immutable after creation.
func (s *Store) UpdateDescription(ctx context.Context, baselineID, newDescription string) error {
	_, err := s.pool.Exec(ctx, `UPDATE behavior_baselines SET description = $2 WHERE baseline_id = $1`, baselineID, newDescription)
	if err != nil {
		return apierr.Conflict("baseline rows are immutable except is_active and first-time approval")
	}
	return nil
}

// BaselineFilters narrows ListBaselines.
type BaselineFilters struct {
	AgentID      string
	AgentVersion string
	Environment  model.Environment
	IsActive     *bool
	Page         int
	PageSize     int
}

// ListBaselines returns baselines matching filters, newest first.
func (s *Store) ListBaselines(ctx context.Context, f BaselineFilters) ([]model.BehaviorBaseline, error) {
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
	if f.IsActive != nil {
		clauses += fmt.Sprintf(" AND is_active = $%d", arg)
		args = append(args, *f.IsActive)
		arg++
	}
	offset := (f.Page - 1) * f.PageSize
	query := fmt.Sprintf(`
		SELECT baseline_id, profile_id, agent_id, agent_version, environment, baseline_type,
			approved_by, approved_at, description, is_active, created_at
		FROM behavior_baselines WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		clauses, arg, arg+1)
	args = append(args, f.PageSize, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}
	defer rows.Close()

	var out []model.BehaviorBaseline
	for rows.Next() {
		b, err := scanBaseline(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

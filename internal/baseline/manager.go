// Package baseline promotes profiles to immutable, activatable baselines.
package baseline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/marcus-qen/agentobservatory/internal/apierr"
	"github.com/marcus-qen/agentobservatory/internal/model"
	"github.com/marcus-qen/agentobservatory/internal/privacy"
)

// Store is the slice of the persistence layer the baseline manager needs.
type Store interface {
	GetProfile(ctx context.Context, profileID string) (model.BehaviorProfile, error)
	CreateBaseline(ctx context.Context, b model.BehaviorBaseline) (model.BehaviorBaseline, error)
	GetBaseline(ctx context.Context, baselineID string) (model.BehaviorBaseline, error)
	ActivateBaseline(ctx context.Context, baselineID string) (model.BehaviorBaseline, error)
	DeactivateBaseline(ctx context.Context, baselineID string) error
	GetActiveBaseline(ctx context.Context, agentID, agentVersion string, env model.Environment) (model.BehaviorBaseline, error)
	ApproveBaseline(ctx context.Context, baselineID, approvedBy string) (model.BehaviorBaseline, error)
}

var validBaselineTypes = map[model.BaselineType]bool{
	model.BaselineTypeVersion:    true,
	model.BaselineTypeTimeWindow: true,
	model.BaselineTypeManual:     true,
}

// Manager implements the Baseline Manager component.
type Manager struct {
	store Store
}

// New constructs a Manager over store.
func New(store Store) *Manager {
	return &Manager{store: store}
}

// CreateBaseline validates the profile exists, the description passes the
// privacy filter and length bound, and baseline_type is one of the fixed
// enum values, then persists a new, inactive baseline.
func (m *Manager) CreateBaseline(ctx context.Context, profileID string, baselineType model.BaselineType, description string, approvedBy *string) (model.BehaviorBaseline, error) {
	if !validBaselineTypes[baselineType] {
		return model.BehaviorBaseline{}, apierr.Validation("baseline_type", fmt.Sprintf("unrecognized baseline_type %q", baselineType))
	}
	if reason := privacy.CheckDescription(description); reason != "" {
		return model.BehaviorBaseline{}, apierr.Validation("description", reason)
	}

	profile, err := m.store.GetProfile(ctx, profileID)
	if err != nil {
		return model.BehaviorBaseline{}, err
	}

	b := model.BehaviorBaseline{
		BaselineID:   uuid.NewString(),
		ProfileID:    profile.ProfileID,
		AgentID:      profile.AgentID,
		AgentVersion: profile.AgentVersion,
		Environment:  profile.Environment,
		BaselineType: baselineType,
		Description:  description,
	}
	if approvedBy != nil {
		b.ApprovedBy = approvedBy
	}
	return m.store.CreateBaseline(ctx, b)
}

// Activate sets baselineID active, deactivating any previously active
// baseline for the same (agent, version, environment) triple atomically.
func (m *Manager) Activate(ctx context.Context, baselineID string) (model.BehaviorBaseline, error) {
	return m.store.ActivateBaseline(ctx, baselineID)
}

// Deactivate clears is_active on baselineID.
func (m *Manager) Deactivate(ctx context.Context, baselineID string) error {
	return m.store.DeactivateBaseline(ctx, baselineID)
}

// GetActive returns the active baseline for a triple, if any.
func (m *Manager) GetActive(ctx context.Context, agentID, agentVersion string, env model.Environment) (model.BehaviorBaseline, error) {
	return m.store.GetActiveBaseline(ctx, agentID, agentVersion, env)
}

// Approve sets approved_by, but only if the baseline has never been
// approved before. Enforced by the store (which only updates a NULL
// approved_by) and, redundantly, by the schema trigger.
func (m *Manager) Approve(ctx context.Context, baselineID, approvedBy string) (model.BehaviorBaseline, error) {
	if approvedBy == "" {
		return model.BehaviorBaseline{}, apierr.Validation("approved_by", "approved_by must not be empty")
	}
	return m.store.ApproveBaseline(ctx, baselineID, approvedBy)
}

package baseline

import (
	"context"
	"testing"
	"time"

	"github.com/marcus-qen/agentobservatory/internal/apierr"
	"github.com/marcus-qen/agentobservatory/internal/model"
)

type fakeStore struct {
	profile   model.BehaviorProfile
	baselines map[string]model.BehaviorBaseline
}

func newFakeStore() *fakeStore {
	return &fakeStore{baselines: map[string]model.BehaviorBaseline{}}
}

func (f *fakeStore) GetProfile(ctx context.Context, profileID string) (model.BehaviorProfile, error) {
	if profileID != f.profile.ProfileID {
		return model.BehaviorProfile{}, apierr.NotFound("profile not found")
	}
	return f.profile, nil
}

func (f *fakeStore) CreateBaseline(ctx context.Context, b model.BehaviorBaseline) (model.BehaviorBaseline, error) {
	b.CreatedAt = time.Now().UTC()
	f.baselines[b.BaselineID] = b
	return b, nil
}

func (f *fakeStore) GetBaseline(ctx context.Context, baselineID string) (model.BehaviorBaseline, error) {
	b, ok := f.baselines[baselineID]
	if !ok {
		return model.BehaviorBaseline{}, apierr.NotFound("baseline not found")
	}
	return b, nil
}

func (f *fakeStore) ActivateBaseline(ctx context.Context, baselineID string) (model.BehaviorBaseline, error) {
	target, ok := f.baselines[baselineID]
	if !ok {
		return model.BehaviorBaseline{}, apierr.NotFound("baseline not found")
	}
	for id, b := range f.baselines {
		if b.AgentID == target.AgentID && b.AgentVersion == target.AgentVersion && b.Environment == target.Environment {
			b.IsActive = id == baselineID
			f.baselines[id] = b
		}
	}
	return f.baselines[baselineID], nil
}

func (f *fakeStore) DeactivateBaseline(ctx context.Context, baselineID string) error {
	b, ok := f.baselines[baselineID]
	if !ok {
		return apierr.NotFound("baseline not found")
	}
	b.IsActive = false
	f.baselines[baselineID] = b
	return nil
}

func (f *fakeStore) GetActiveBaseline(ctx context.Context, agentID, agentVersion string, env model.Environment) (model.BehaviorBaseline, error) {
	for _, b := range f.baselines {
		if b.AgentID == agentID && b.AgentVersion == agentVersion && b.Environment == env && b.IsActive {
			return b, nil
		}
	}
	return model.BehaviorBaseline{}, apierr.NotFound("no active baseline")
}

func (f *fakeStore) ApproveBaseline(ctx context.Context, baselineID, approvedBy string) (model.BehaviorBaseline, error) {
	b, ok := f.baselines[baselineID]
	if !ok {
		return model.BehaviorBaseline{}, apierr.NotFound("baseline not found")
	}
	if b.ApprovedBy != nil {
		return model.BehaviorBaseline{}, apierr.Conflict("already approved")
	}
	b.ApprovedBy = &approvedBy
	f.baselines[baselineID] = b
	return b, nil
}

func TestCreateBaseline_RejectsSensitiveDescription(t *testing.T) {
	fs := newFakeStore()
	fs.profile = model.BehaviorProfile{ProfileID: "p1", AgentID: "demo", AgentVersion: "1.0.0", Environment: model.EnvironmentProduction}
	mgr := New(fs)

	_, err := mgr.CreateBaseline(context.Background(), "p1", model.BaselineTypeManual, "the model responded oddly this week", nil)
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateBaseline_RejectsUnknownType(t *testing.T) {
	fs := newFakeStore()
	fs.profile = model.BehaviorProfile{ProfileID: "p1"}
	mgr := New(fs)

	_, err := mgr.CreateBaseline(context.Background(), "p1", "bogus", "ok description", nil)
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestActivate_DeactivatesPreviousActive(t *testing.T) {
	fs := newFakeStore()
	fs.profile = model.BehaviorProfile{ProfileID: "p1", AgentID: "demo", AgentVersion: "1.0.0", Environment: model.EnvironmentProduction}
	mgr := New(fs)

	b1, err := mgr.CreateBaseline(context.Background(), "p1", model.BaselineTypeManual, "first", nil)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := mgr.CreateBaseline(context.Background(), "p1", model.BaselineTypeManual, "second", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := mgr.Activate(context.Background(), b1.BaselineID); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Activate(context.Background(), b2.BaselineID); err != nil {
		t.Fatal(err)
	}

	got1, _ := fs.GetBaseline(context.Background(), b1.BaselineID)
	got2, _ := fs.GetBaseline(context.Background(), b2.BaselineID)
	if got1.IsActive {
		t.Error("expected first baseline to be deactivated")
	}
	if !got2.IsActive {
		t.Error("expected second baseline to be active")
	}
}

func TestApprove_OnlyOnce(t *testing.T) {
	fs := newFakeStore()
	fs.profile = model.BehaviorProfile{ProfileID: "p1", AgentID: "demo"}
	mgr := New(fs)

	b, err := mgr.CreateBaseline(context.Background(), "p1", model.BaselineTypeManual, "d", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Approve(context.Background(), b.BaselineID, "alice"); err != nil {
		t.Fatalf("first approval should succeed: %v", err)
	}
	if _, err := mgr.Approve(context.Background(), b.BaselineID, "bob"); err == nil {
		t.Error("second approval should be rejected")
	}
}

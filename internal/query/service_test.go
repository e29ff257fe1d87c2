package query

import (
	"context"
	"testing"

	"github.com/marcus-qen/agentobservatory/internal/apierr"
	"github.com/marcus-qen/agentobservatory/internal/model"
	"github.com/marcus-qen/agentobservatory/internal/store"
)

type fakeStore struct {
	listArgs struct {
		page, pageSize int
	}
	runs []model.RunView
	run  model.RunView
}

func (f *fakeStore) GetRun(ctx context.Context, runID string) (model.RunView, error) {
	return f.run, nil
}

func (f *fakeStore) ListRuns(ctx context.Context, filters store.RunFilters, page, pageSize int) ([]model.RunView, error) {
	f.listArgs.page = page
	f.listArgs.pageSize = pageSize
	return f.runs, nil
}

func (f *fakeStore) ComputeStats(ctx context.Context, filters store.RunFilters) (store.Stats, error) {
	return store.Stats{}, nil
}

func TestGetRun_RequiresRunID(t *testing.T) {
	svc := New(&fakeStore{})
	_, err := svc.GetRun(context.Background(), "")
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListRuns_DefaultsAbsentPageAndPageSize(t *testing.T) {
	fs := &fakeStore{}
	svc := New(fs)
	_, err := svc.ListRuns(context.Background(), store.RunFilters{}, 0, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.listArgs.page != 1 {
		t.Errorf("expected default page 1, got %d", fs.listArgs.page)
	}
	if fs.listArgs.pageSize != defaultPageSize {
		t.Errorf("expected default page size %d, got %d", defaultPageSize, fs.listArgs.pageSize)
	}
}

func TestListRuns_RejectsExplicitZeroPageSize(t *testing.T) {
	svc := New(&fakeStore{})
	_, err := svc.ListRuns(context.Background(), store.RunFilters{}, 1, 0, true)
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListRuns_ClampsOversizedPageSize(t *testing.T) {
	fs := &fakeStore{}
	svc := New(fs)
	_, err := svc.ListRuns(context.Background(), store.RunFilters{}, 1, 10000, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.listArgs.pageSize != maxPageSize {
		t.Errorf("expected clamp to %d, got %d", maxPageSize, fs.listArgs.pageSize)
	}
}

func TestListRuns_RejectsNegativePage(t *testing.T) {
	svc := New(&fakeStore{})
	_, err := svc.ListRuns(context.Background(), store.RunFilters{}, -1, 10, true)
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

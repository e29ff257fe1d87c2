// Package query implements the Query Service: thin, filter- and
// pagination-validating wrappers over the store's read accessors.
package query

import (
	"context"

	"github.com/marcus-qen/agentobservatory/internal/apierr"
	"github.com/marcus-qen/agentobservatory/internal/model"
	"github.com/marcus-qen/agentobservatory/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Store is the slice of the persistence layer the query service needs.
type Store interface {
	GetRun(ctx context.Context, runID string) (model.RunView, error)
	ListRuns(ctx context.Context, f store.RunFilters, page, pageSize int) ([]model.RunView, error)
	ComputeStats(ctx context.Context, f store.RunFilters) (store.Stats, error)
}

// Service implements the Query Service component.
type Service struct {
	store Store
}

// New constructs a Service over store.
func New(store Store) *Service {
	return &Service{store: store}
}

// GetRun returns one run with all of its children.
func (s *Service) GetRun(ctx context.Context, runID string) (model.RunView, error) {
	if runID == "" {
		return model.RunView{}, apierr.Validation("run_id", "run_id is required")
	}
	return s.store.GetRun(ctx, runID)
}

// ListRuns returns a page of runs matching f. page_size is clamped to
// maxPageSize rather than rejected (see DESIGN.md's Open Question decision).
// An absent page_size (pageSizeProvided=false, pageSize=0) defaults to
// defaultPageSize; an explicitly provided page_size=0, or a negative page or
// page_size, is a validation error.
func (s *Service) ListRuns(ctx context.Context, f store.RunFilters, page, pageSize int, pageSizeProvided bool) ([]model.RunView, error) {
	page, pageSize, err := normalizePaging(page, pageSize, pageSizeProvided)
	if err != nil {
		return nil, err
	}
	return s.store.ListRuns(ctx, f, page, pageSize)
}

// Stats returns the aggregate statistics for runs matching f.
func (s *Service) Stats(ctx context.Context, f store.RunFilters) (store.Stats, error) {
	return s.store.ComputeStats(ctx, f)
}

func normalizePaging(page, pageSize int, pageSizeProvided bool) (int, int, error) {
	if page < 0 {
		return 0, 0, apierr.Validation("page", "page must not be negative")
	}
	if page == 0 {
		page = 1
	}
	if pageSizeProvided && pageSize == 0 {
		return 0, 0, apierr.Validation("page_size", "page_size must not be zero")
	}
	if pageSize < 0 {
		return 0, 0, apierr.Validation("page_size", "page_size must not be negative")
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize, nil
}

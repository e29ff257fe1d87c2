// Package store is the persistence layer: a thin wrapper over a pgx
// connection pool exposing one method per operation the ingestion, query,
// and analytics services need. All invariants not expressible in Go are
// additionally enforced by the schema in internal/dbschema (CHECK
// constraints, cascades, and the baseline/drift immutability triggers).
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/marcus-qen/agentobservatory/internal/model"
)

// Store is the persistence layer handle shared by the ingest, query, and
// analytics services. Each method owns its own transaction or statement;
// callers never see a *pgxpool.Conn directly.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New wraps an already-connected pool. Callers construct the pool with
// pgxpool.ParseConfig/NewWithConfig so pool size (§5's "bounded and
// tunable") is set once at startup, not here.
func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// Ping verifies the database is reachable, used by the /health and
// /healthz handlers.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

func marshalMetadata(m model.Metadata) ([]byte, error) {
	if m == nil {
		m = model.Metadata{}
	}
	return json.Marshal(m)
}

func unmarshalMetadata(data []byte) (model.Metadata, error) {
	if len(data) == 0 {
		return model.Metadata{}, nil
	}
	var m model.Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}

func marshalCandidates(c []string) ([]byte, error) {
	if c == nil {
		c = []string{}
	}
	return json.Marshal(c)
}

func unmarshalCandidates(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var c []string
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal candidates: %w", err)
	}
	return c, nil
}

// Package postgres provides Postgres-backed persistence for routing
// decisions, usage records, ground-truth samples, and the model registry.
//
// Purpose:
//
//	This package owns all relational access. The decision and usage tables
//	are append-only: rows are inserted once by the request pipeline and only
//	ever aggregated afterwards. Ground-truth samples live in their own table
//	with no shared write path with decisions, so the training set can never
//	be polluted by unverified predictions.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides Postgres-backed persistence for the router service.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store using the provided connection string.
func NewStore(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies database connectivity, for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

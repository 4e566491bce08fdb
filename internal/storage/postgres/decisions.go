package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/intelrouter/query-router-service/internal/routing"
)

// InsertDecision appends one routing decision to the audit log.
func (s *Store) InsertDecision(ctx context.Context, d *routing.Decision) error {
	query := `
		INSERT INTO routing_decisions (
			id, user_id, algorithmic_label, ml_label, final_label,
			routing_source, model_name, low_confidence, created_at
		) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		d.ID, d.UserID, d.AlgorithmicLabel, d.MLLabel, d.FinalLabel,
		d.RoutingSource, d.ModelName, d.LowConfidence, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert routing decision: %w", err)
	}
	return nil
}

// ListDecisions returns the user's most recent decisions, newest first.
func (s *Store) ListDecisions(ctx context.Context, userID string, limit int) ([]routing.Decision, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, COALESCE(algorithmic_label, ''), COALESCE(ml_label, ''),
		       final_label, routing_source, model_name, low_confidence, created_at
		FROM routing_decisions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list routing decisions: %w", err)
	}
	defer rows.Close()

	var decisions []routing.Decision
	for rows.Next() {
		var d routing.Decision
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.AlgorithmicLabel, &d.MLLabel,
			&d.FinalLabel, &d.RoutingSource, &d.ModelName, &d.LowConfidence, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan routing decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routing decisions: %w", err)
	}
	return decisions, nil
}

// CountOverridesSince counts the user's override-sourced decisions created at
// or after the window start. The override budget reads this instead of a
// mutable counter so the quota survives restarts. Decisions whose backend
// call failed are excluded: an override that produced no answer does not
// consume quota.
func (s *Store) CountOverridesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM routing_decisions
		WHERE user_id = $1
		  AND routing_source = 'user_override'
		  AND model_name NOT LIKE 'failed:%'
		  AND created_at >= $2`

	var count int
	if err := s.pool.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count overrides: %w", err)
	}
	return count, nil
}

// SourceStats aggregates decision counts by routing source and by final label
// over the window, for the admin routing-stats view.
type SourceStats struct {
	BySource       map[string]int64 `json:"by_source"`
	ByFinalLabel   map[string]int64 `json:"by_final_label"`
	LowConfidence  int64            `json:"low_confidence"`
	FailedBackends int64            `json:"failed_backends"`
	Total          int64            `json:"total"`
}

// RoutingStats computes routing source distribution since the given time.
func (s *Store) RoutingStats(ctx context.Context, since time.Time) (*SourceStats, error) {
	stats := &SourceStats{
		BySource:     make(map[string]int64),
		ByFinalLabel: make(map[string]int64),
	}

	query := `
		SELECT routing_source, final_label, COUNT(*),
		       COUNT(*) FILTER (WHERE low_confidence),
		       COUNT(*) FILTER (WHERE model_name LIKE $2)
		FROM routing_decisions
		WHERE created_at >= $1
		GROUP BY routing_source, final_label`

	rows, err := s.pool.Query(ctx, query, since, routing.FailedModelPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("routing stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source, label string
		var count, lowConf, failed int64
		if err := rows.Scan(&source, &label, &count, &lowConf, &failed); err != nil {
			return nil, fmt.Errorf("scan routing stats: %w", err)
		}
		stats.BySource[source] += count
		stats.ByFinalLabel[label] += count
		stats.LowConfidence += lowConf
		stats.FailedBackends += failed
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routing stats: %w", err)
	}
	return stats, nil
}

// GetDecision fetches a single decision by ID. Returns pgx.ErrNoRows wrapped
// when absent.
func (s *Store) GetDecision(ctx context.Context, id string) (*routing.Decision, error) {
	query := `
		SELECT id, user_id, COALESCE(algorithmic_label, ''), COALESCE(ml_label, ''),
		       final_label, routing_source, model_name, low_confidence, created_at
		FROM routing_decisions
		WHERE id = $1`

	var d routing.Decision
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.UserID, &d.AlgorithmicLabel, &d.MLLabel,
		&d.FinalLabel, &d.RoutingSource, &d.ModelName, &d.LowConfidence, &d.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("decision %s: %w", id, err)
		}
		return nil, fmt.Errorf("get decision: %w", err)
	}
	return &d, nil
}

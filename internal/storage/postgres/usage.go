package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/intelrouter/query-router-service/internal/usage"
)

// InsertUsage appends one committed usage record.
func (s *Store) InsertUsage(ctx context.Context, r *usage.Record) error {
	query := `
		INSERT INTO usage_records (
			id, user_id, query_id, model_name, difficulty,
			tokens_in, tokens_out, total_tokens, cost, created_at
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.UserID, r.QueryID, r.ModelName, r.Difficulty,
		r.TokensIn, r.TokensOut, r.TotalTokens, r.Cost, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// SumTokensSince returns the user's total committed tokens at or after the
// window start. The daily budget check reads this directly so the window
// resets at midnight without any counter to expire.
func (s *Store) SumTokensSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(total_tokens), 0)
		FROM usage_records
		WHERE user_id = $1 AND created_at >= $2`

	var total int64
	if err := s.pool.QueryRow(ctx, query, userID, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum tokens: %w", err)
	}
	return total, nil
}

// UserSummary aggregates one user's committed usage over a window.
type UserSummary struct {
	TotalTokens int64   `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`
	Requests    int64   `json:"requests"`
}

// SummarizeUsage returns the user's usage totals since the window start.
func (s *Store) SummarizeUsage(ctx context.Context, userID string, since time.Time) (*UserSummary, error) {
	query := `
		SELECT COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost), 0), COUNT(*)
		FROM usage_records
		WHERE user_id = $1 AND created_at >= $2`

	var out UserSummary
	if err := s.pool.QueryRow(ctx, query, userID, since).Scan(&out.TotalTokens, &out.TotalCost, &out.Requests); err != nil {
		return nil, fmt.Errorf("summarize usage: %w", err)
	}
	return &out, nil
}

// PlatformTotals is the admin-level aggregate across all users.
type PlatformTotals struct {
	TotalUsers  int64   `json:"total_users"`
	TotalTokens int64   `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`
	Requests    int64   `json:"requests"`
}

// Totals computes platform-wide usage totals since the window start.
func (s *Store) Totals(ctx context.Context, since time.Time) (*PlatformTotals, error) {
	query := `
		SELECT COUNT(DISTINCT user_id), COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost), 0), COUNT(*)
		FROM usage_records
		WHERE created_at >= $1`

	var out PlatformTotals
	if err := s.pool.QueryRow(ctx, query, since).Scan(&out.TotalUsers, &out.TotalTokens, &out.TotalCost, &out.Requests); err != nil {
		return nil, fmt.Errorf("platform totals: %w", err)
	}
	return &out, nil
}

// TierCost is one row of the per-tier cost breakdown.
type TierCost struct {
	Difficulty  string  `json:"difficulty"`
	TotalTokens int64   `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`
	Requests    int64   `json:"requests"`
}

// CostBreakdown aggregates usage by difficulty tier since the window start.
func (s *Store) CostBreakdown(ctx context.Context, since time.Time) ([]TierCost, error) {
	query := `
		SELECT difficulty, COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost), 0), COUNT(*)
		FROM usage_records
		WHERE created_at >= $1
		GROUP BY difficulty
		ORDER BY difficulty`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("cost breakdown: %w", err)
	}
	defer rows.Close()

	var out []TierCost
	for rows.Next() {
		var tc TierCost
		if err := rows.Scan(&tc.Difficulty, &tc.TotalTokens, &tc.TotalCost, &tc.Requests); err != nil {
			return nil, fmt.Errorf("scan cost breakdown: %w", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cost breakdown: %w", err)
	}
	return out, nil
}

// SeriesPoint is one day of the usage-over-time series.
type SeriesPoint struct {
	Day         time.Time `json:"day"`
	TotalTokens int64     `json:"total_tokens"`
	TotalCost   float64   `json:"total_cost"`
	Requests    int64     `json:"requests"`
}

// UsageSeries buckets platform usage by UTC day since the window start.
func (s *Store) UsageSeries(ctx context.Context, since time.Time) ([]SeriesPoint, error) {
	query := `
		SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day,
		       COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost), 0), COUNT(*)
		FROM usage_records
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("usage series: %w", err)
	}
	defer rows.Close()

	var out []SeriesPoint
	for rows.Next() {
		var p SeriesPoint
		if err := rows.Scan(&p.Day, &p.TotalTokens, &p.TotalCost, &p.Requests); err != nil {
			return nil, fmt.Errorf("scan usage series: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage series: %w", err)
	}
	return out, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/intelrouter/query-router-service/internal/ml"
)

// InsertSample appends one verified ground-truth sample. Samples only ever
// arrive through explicit feedback or curated seeding; nothing on the
// decision path writes here.
func (s *Store) InsertSample(ctx context.Context, queryText, difficulty, source string) error {
	query := `
		INSERT INTO ml_data_samples (id, query_text, difficulty, source, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		uuid.New().String(), queryText, difficulty, source, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert training sample: %w", err)
	}
	return nil
}

// LoadSamples returns the full training corpus, oldest first.
func (s *Store) LoadSamples(ctx context.Context) ([]ml.Sample, error) {
	query := `
		SELECT query_text, difficulty, created_at
		FROM ml_data_samples
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load training samples: %w", err)
	}
	defer rows.Close()

	var samples []ml.Sample
	for rows.Next() {
		var sm ml.Sample
		if err := rows.Scan(&sm.Text, &sm.Label, &sm.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan training sample: %w", err)
		}
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate training samples: %w", err)
	}
	return samples, nil
}

// CountSamples reports the training corpus size, used by the pipeline's
// minimum-sample gate and the admin ML status view.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ml_data_samples`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count training samples: %w", err)
	}
	return count, nil
}

// GrowthPoint is one day of training corpus growth.
type GrowthPoint struct {
	Day   time.Time `json:"day"`
	Count int64     `json:"count"`
}

// SampleGrowth buckets new samples by UTC day since the window start.
func (s *Store) SampleGrowth(ctx context.Context, since time.Time) ([]GrowthPoint, error) {
	query := `
		SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, COUNT(*)
		FROM ml_data_samples
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("sample growth: %w", err)
	}
	defer rows.Close()

	var out []GrowthPoint
	for rows.Next() {
		var p GrowthPoint
		if err := rows.Scan(&p.Day, &p.Count); err != nil {
			return nil, fmt.Errorf("scan sample growth: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample growth: %w", err)
	}
	return out, nil
}

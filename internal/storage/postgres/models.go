package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/intelrouter/query-router-service/internal/ml"
)

// PromoteModel records a newly trained model and makes it the single active
// version in one transaction. The previous active row is deactivated and the
// new row inserted active; either both happen or neither does, so readers
// never observe zero or two active models.
func (s *Store) PromoteModel(ctx context.Context, meta *ml.ModelMetadata) error {
	metrics, err := json.Marshal(meta.Metrics)
	if err != nil {
		return fmt.Errorf("serialize model metrics: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin promotion: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE model_metadata SET is_active = FALSE WHERE is_active`); err != nil {
		return fmt.Errorf("deactivate previous model: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO model_metadata (
			id, version, accuracy, f1_score, confidence_threshold,
			training_timestamp, is_active, metrics, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $8)`,
		meta.ID, meta.Version, meta.Accuracy, meta.F1Score, meta.ConfidenceThreshold,
		meta.TrainingTimestamp, metrics, meta.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert model metadata: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit promotion: %w", err)
	}
	return nil
}

// GetActiveModel returns the currently active model, or nil when no model
// has been promoted yet.
func (s *Store) GetActiveModel(ctx context.Context) (*ml.ModelMetadata, error) {
	query := `
		SELECT id, version, accuracy, f1_score, confidence_threshold,
		       training_timestamp, is_active, metrics, created_at
		FROM model_metadata
		WHERE is_active
		LIMIT 1`

	meta, err := scanModelRow(s.pool.QueryRow(ctx, query))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get active model: %w", err)
	}
	return meta, nil
}

// ListModels returns all registry rows, newest first.
func (s *Store) ListModels(ctx context.Context) ([]ml.ModelMetadata, error) {
	query := `
		SELECT id, version, accuracy, f1_score, confidence_threshold,
		       training_timestamp, is_active, metrics, created_at
		FROM model_metadata
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var models []ml.ModelMetadata
	for rows.Next() {
		meta, err := scanModelRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan model row: %w", err)
		}
		models = append(models, *meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate models: %w", err)
	}
	return models, nil
}

func scanModelRow(row pgx.Row) (*ml.ModelMetadata, error) {
	var meta ml.ModelMetadata
	var metrics []byte
	if err := row.Scan(
		&meta.ID, &meta.Version, &meta.Accuracy, &meta.F1Score, &meta.ConfidenceThreshold,
		&meta.TrainingTimestamp, &meta.IsActive, &metrics, &meta.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &meta.Metrics); err != nil {
			return nil, fmt.Errorf("decode model metrics: %w", err)
		}
	}
	return &meta, nil
}

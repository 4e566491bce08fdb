package ml

import "time"

// ModelMetadata is the versioned registry row describing one trained model
// artifact. At most one row is active at any time; activation flips
// atomically during promotion and the inference path only reads the active
// row.
type ModelMetadata struct {
	ID                  string       `json:"id"`
	Version             string       `json:"version"`
	Accuracy            float64      `json:"accuracy"`
	F1Score             float64      `json:"f1_score"`
	ConfidenceThreshold float64      `json:"confidence_threshold"`
	TrainingTimestamp   time.Time    `json:"training_timestamp"`
	IsActive            bool         `json:"is_active"`
	Metrics             ModelMetrics `json:"metrics"`
	CreatedAt           time.Time    `json:"created_at"`
}

// ModelMetrics keeps both evaluation views: the held-out split of the full
// dataset and the recent-window subset. The recent view is what the
// promotion decision compares against, so it must survive in the registry.
type ModelMetrics struct {
	Full   Metrics `json:"full"`
	Recent Metrics `json:"recent"`
}

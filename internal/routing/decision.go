// Package routing implements the hybrid routing decision for user queries.
//
// Purpose:
//   This package fuses the classification gate's output with manual
//   overrides and the tier-to-model map into a single routing decision per
//   query. Decisions are append-only audit records: written once after the
//   query completes, immutable thereafter.
//
package routing

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// FailedModelPrefix tags the model_name of decisions whose downstream
// backend call failed. Such decisions are logged for audit but commit no
// usage.
const FailedModelPrefix = "failed:"

// Decision is the persisted record of one routing decision.
type Decision struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	AlgorithmicLabel string    `json:"algorithmic_label,omitempty"`
	MLLabel          string    `json:"ml_label,omitempty"`
	FinalLabel       string    `json:"final_label"`
	RoutingSource    string    `json:"routing_source"`
	ModelName        string    `json:"model_name"`
	LowConfidence    bool      `json:"low_confidence"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewDecisionID allocates a decision ID.
func NewDecisionID() string {
	return uuid.New().String()
}

// MarkFailed rewrites the decision's model name with the failure sentinel so
// audit queries can tell failed completions from successful ones.
func (d *Decision) MarkFailed() {
	if !strings.HasPrefix(d.ModelName, FailedModelPrefix) {
		d.ModelName = FailedModelPrefix + d.ModelName
	}
}

// Failed reports whether this decision carries the failure sentinel.
func (d *Decision) Failed() bool {
	return strings.HasPrefix(d.ModelName, FailedModelPrefix)
}

// Package usage provides usage record building, denial auditing, and the
// optional export stream for committed records.
//
// Purpose:
//   This package constructs the append-only UsageRecord written after every
//   successfully answered query. Cost is computed from the static per-tier
//   price table at write time and never recomputed retroactively.
//
package usage

import (
	"time"

	"github.com/google/uuid"
)

// Record is one committed usage entry. Records are written once and
// immutable thereafter; daily budgets are windowed sums over them.
type Record struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	QueryID     string    `json:"query_id,omitempty"`
	ModelName   string    `json:"model_name"`
	Difficulty  string    `json:"difficulty"`
	TokensIn    int       `json:"tokens_in"`
	TokensOut   int       `json:"tokens_out"`
	TotalTokens int       `json:"total_tokens"`
	Cost        float64   `json:"cost"`
	CreatedAt   time.Time `json:"created_at"`
}

// CostCalculator prices a completed query from its tier and token count.
type CostCalculator func(difficulty string, totalTokens int) float64

// Builder builds usage records.
type Builder struct {
	cost CostCalculator
}

// NewBuilder creates a record builder with the given price function.
func NewBuilder(cost CostCalculator) *Builder {
	return &Builder{cost: cost}
}

// Build assembles a usage record. The total-token invariant is enforced
// here rather than trusted from the caller.
func (b *Builder) Build(userID, queryID, modelName, difficulty string, tokensIn, tokensOut int) *Record {
	total := tokensIn + tokensOut
	return &Record{
		ID:          uuid.New().String(),
		UserID:      userID,
		QueryID:     queryID,
		ModelName:   modelName,
		Difficulty:  difficulty,
		TokensIn:    tokensIn,
		TokensOut:   tokensOut,
		TotalTokens: total,
		Cost:        b.cost(difficulty, total),
		CreatedAt:   time.Now().UTC(),
	}
}

// PerTierCost builds a CostCalculator from per-1K-token prices.
func PerTierCost(easy, medium, hard float64) CostCalculator {
	return func(difficulty string, totalTokens int) float64 {
		per1K := medium
		switch difficulty {
		case "EASY":
			per1K = easy
		case "HARD":
			per1K = hard
		}
		return float64(totalTokens) / 1000.0 * per1K
	}
}

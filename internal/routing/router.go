package routing

import (
	"time"

	"go.uber.org/zap"

	"github.com/intelrouter/query-router-service/internal/classify"
)

// ModelMap resolves a difficulty tier to the backend model that serves it.
type ModelMap func(tier string) string

// Router produces routing decisions. It owns no state beyond its
// collaborators and is safe for concurrent use.
type Router struct {
	gate   *classify.Gate
	models ModelMap
	logger *zap.Logger
}

// NewRouter creates a hybrid router.
func NewRouter(gate *classify.Gate, models ModelMap, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{gate: gate, models: models, logger: logger}
}

// Route decides the tier and model for a query. override is the accepted
// manual tier, or "" when none applies; the caller is responsible for
// checking the override budget before passing one in. The gate always runs
// so the decision log captures both classifier labels even when an override
// wins.
func (r *Router) Route(userID, query string, override classify.Tier) *Decision {
	features := classify.ExtractFeatures(query)
	gated := r.gate.Decide(features, query)

	decision := &Decision{
		ID:               NewDecisionID(),
		UserID:           userID,
		AlgorithmicLabel: string(gated.AlgorithmicLabel),
		MLLabel:          string(gated.MLLabel),
		FinalLabel:       string(gated.FinalLabel),
		RoutingSource:    string(gated.Source),
		LowConfidence:    gated.LowConfidence,
		CreatedAt:        time.Now().UTC(),
	}

	if override != "" {
		decision.FinalLabel = string(override)
		decision.RoutingSource = string(classify.SourceOverride)
		decision.LowConfidence = false
	}

	decision.ModelName = r.models(decision.FinalLabel)

	r.logger.Debug("routing decision",
		zap.String("decision_id", decision.ID),
		zap.String("user_id", userID),
		zap.String("final_label", decision.FinalLabel),
		zap.String("routing_source", decision.RoutingSource),
		zap.String("model", decision.ModelName),
		zap.Bool("low_confidence", decision.LowConfidence),
	)

	return decision
}

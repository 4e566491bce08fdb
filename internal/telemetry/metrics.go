// Package telemetry exposes Prometheus metrics for the router service.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts routing decisions by source and final tier.
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_decisions_total",
		Help: "Routing decisions by source and final difficulty tier.",
	}, []string{"source", "tier"})

	// LowConfidenceTotal counts decisions that fell back due to a
	// low-confidence prediction.
	LowConfidenceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "router_low_confidence_total",
		Help: "Decisions routed via the low-confidence fallback.",
	})

	// BudgetDenialsTotal counts requests denied by the daily token budget.
	BudgetDenialsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "router_budget_denials_total",
		Help: "Requests denied because the daily token budget was exhausted.",
	})

	// OverrideRejectionsTotal counts overrides degraded for being over quota.
	OverrideRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "router_override_rejections_total",
		Help: "Manual overrides rejected because the daily quota was spent.",
	})

	// BackendErrorsTotal counts failed completion calls by model.
	BackendErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_backend_errors_total",
		Help: "Failed backend completion calls by model.",
	}, []string{"model"})

	// TokensCommittedTotal counts committed tokens by difficulty tier.
	TokensCommittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_tokens_committed_total",
		Help: "Tokens committed to the usage ledger by difficulty tier.",
	}, []string{"tier"})

	// TrainingRunsTotal counts training pipeline runs by outcome.
	TrainingRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_training_runs_total",
		Help: "Training pipeline runs by outcome (promoted, rejected, failed, skipped).",
	}, []string{"outcome"})
)

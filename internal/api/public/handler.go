// Package public provides the user-facing HTTP handlers: query routing,
// usage lookups, override status, and feedback collection.
package public

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/intelrouter/query-router-service/internal/api"
	"github.com/intelrouter/query-router-service/internal/classify"
	"github.com/intelrouter/query-router-service/internal/limiter"
	"github.com/intelrouter/query-router-service/internal/llm"
	"github.com/intelrouter/query-router-service/internal/routing"
	"github.com/intelrouter/query-router-service/internal/storage/postgres"
	"github.com/intelrouter/query-router-service/internal/telemetry"
	"github.com/intelrouter/query-router-service/internal/usage"
)

const maxQueryBytes = 64 * 1024

// Store is the persistence surface the public handlers use. Satisfied by
// the Postgres store.
type Store interface {
	InsertDecision(ctx context.Context, d *routing.Decision) error
	InsertUsage(ctx context.Context, r *usage.Record) error
	InsertSample(ctx context.Context, queryText, difficulty, source string) error
	ListDecisions(ctx context.Context, userID string, limit int) ([]routing.Decision, error)
	SummarizeUsage(ctx context.Context, userID string, since time.Time) (*postgres.UserSummary, error)
}

// Completer forwards a query to a model backend. Satisfied by the LLM
// client.
type Completer interface {
	Complete(ctx context.Context, model, query string) (*llm.CompletionResponse, error)
}

// Handler handles public API requests.
type Handler struct {
	logger    *zap.Logger
	router    *routing.Router
	store     Store
	ledger    *limiter.UsageLedger
	overrides *limiter.OverrideBudget
	backend   Completer
	records   *usage.Builder
	publisher *usage.Publisher
	audit     *usage.AuditLogger
}

// NewHandler creates the public API handler. publisher may be nil when no
// export stream is configured.
func NewHandler(
	logger *zap.Logger,
	router *routing.Router,
	store Store,
	ledger *limiter.UsageLedger,
	overrides *limiter.OverrideBudget,
	backend Completer,
	records *usage.Builder,
	publisher *usage.Publisher,
	audit *usage.AuditLogger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		logger:    logger,
		router:    router,
		store:     store,
		ledger:    ledger,
		overrides: overrides,
		backend:   backend,
		records:   records,
		publisher: publisher,
		audit:     audit,
	}
}

// RegisterRoutes registers the public API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/query", h.HandleQuery)
	r.Post("/v1/feedback", h.HandleFeedback)
	r.Get("/v1/usage/today", h.HandleUsageToday)
	r.Get("/v1/queries/history", h.HandleHistory)
	r.Get("/v1/overrides/remaining", h.HandleOverridesRemaining)
}

// QueryRequest is the routed query payload.
type QueryRequest struct {
	Query              string `json:"query"`
	DifficultyOverride string `json:"difficulty_override,omitempty"`
}

// QueryResponse is the routed query result.
type QueryResponse struct {
	Answer           string  `json:"answer"`
	Model            string  `json:"model"`
	Difficulty       string  `json:"difficulty"`
	RoutingSource    string  `json:"routing_source"`
	LowConfidence    bool    `json:"low_confidence"`
	OverrideRejected bool    `json:"override_rejected,omitempty"`
	DecisionID       string  `json:"decision_id"`
	TokensUsed       int     `json:"tokens_used"`
	Cost             float64 `json:"cost"`
	LatencyMS        int64   `json:"latency_ms"`
}

// HandleQuery classifies the query, enforces budgets, forwards to the
// selected backend, and commits the audit and usage rows.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		api.WriteError(w, r, "authentication required", api.ErrCodeUnauthorized)
		return
	}
	requestID := middleware.GetReqID(r.Context())

	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBytes)).Decode(&req); err != nil {
		api.WriteError(w, r, "invalid request body", api.ErrCodeInvalidRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		api.WriteError(w, r, "query is required", api.ErrCodeMissingField)
		return
	}

	var override classify.Tier
	if req.DifficultyOverride != "" {
		tier, ok := classify.ParseTier(req.DifficultyOverride)
		if !ok {
			api.WriteError(w, r, "difficulty_override must be EASY, MEDIUM, or HARD", api.ErrCodeInvalidRequest)
			return
		}
		override = tier
	}

	// Budget gate runs before any tokens are spent.
	allowed, budget, err := h.ledger.Allow(r.Context(), user.UserID)
	if err != nil {
		h.logger.Error("budget check failed", zap.String("user_id", user.UserID), zap.Error(err))
		api.WriteError(w, r, "budget check failed", api.ErrCodeInternalError)
		return
	}
	if !allowed {
		telemetry.BudgetDenialsTotal.Inc()
		h.audit.LogDenial(usage.AuditEvent{
			RequestID:      requestID,
			UserID:         user.UserID,
			Action:         "REQUEST_DENIED",
			DecisionReason: "BUDGET_EXCEEDED",
		})
		api.WriteLimitError(w, r, "daily token budget exhausted", api.ErrCodeBudgetExceeded, nil,
			map[string]any{
				"used_tokens": budget.UsedTokens,
				"limit":       budget.Limit,
			})
		return
	}

	// An over-quota override degrades to the engine's own decision instead
	// of failing the request.
	overrideRejected := false
	if override != "" {
		overrideAllowed, _, err := h.overrides.Allow(r.Context(), user.UserID)
		if err != nil {
			h.logger.Error("override budget check failed", zap.String("user_id", user.UserID), zap.Error(err))
			api.WriteError(w, r, "override budget check failed", api.ErrCodeInternalError)
			return
		}
		if !overrideAllowed {
			overrideRejected = true
			override = ""
			telemetry.OverrideRejectionsTotal.Inc()
			h.audit.LogDegradation(usage.AuditEvent{
				RequestID:      requestID,
				UserID:         user.UserID,
				Action:         "OVERRIDE_REJECTED",
				DecisionReason: "OVERRIDE_QUOTA_EXCEEDED",
			})
		}
	}

	decision := h.router.Route(user.UserID, req.Query, override)
	telemetry.DecisionsTotal.WithLabelValues(decision.RoutingSource, decision.FinalLabel).Inc()
	if decision.LowConfidence {
		telemetry.LowConfidenceTotal.Inc()
	}

	completion, err := h.backend.Complete(r.Context(), decision.ModelName, req.Query)
	if err != nil {
		decision.MarkFailed()
		if insertErr := h.store.InsertDecision(r.Context(), decision); insertErr != nil {
			h.logger.Error("failed to log failed decision",
				zap.String("decision_id", decision.ID),
				zap.Error(insertErr),
			)
		}
		telemetry.BackendErrorsTotal.WithLabelValues(decision.ModelName).Inc()
		h.audit.LogDenial(usage.AuditEvent{
			RequestID:      requestID,
			UserID:         user.UserID,
			Model:          decision.ModelName,
			Action:         "BACKEND_FAILED",
			DecisionReason: "BACKEND_ERROR",
		})
		h.logger.Error("backend completion failed",
			zap.String("decision_id", decision.ID),
			zap.String("model", decision.ModelName),
			zap.Error(err),
		)
		api.WriteError(w, r, "model backend failed", api.ErrCodeBackendError)
		return
	}

	if err := h.store.InsertDecision(r.Context(), decision); err != nil {
		h.logger.Error("failed to log decision", zap.String("decision_id", decision.ID), zap.Error(err))
		api.WriteError(w, r, "failed to record decision", api.ErrCodeInternalError)
		return
	}

	tokens := llm.EstimateUsage(req.Query, completion.Text)
	record := h.records.Build(user.UserID, decision.ID, decision.ModelName, decision.FinalLabel,
		tokens.TokensIn, tokens.TokensOut)
	if err := h.store.InsertUsage(r.Context(), record); err != nil {
		h.logger.Error("failed to commit usage record",
			zap.String("record_id", record.ID),
			zap.String("decision_id", decision.ID),
			zap.Error(err),
		)
		api.WriteError(w, r, "failed to record usage", api.ErrCodeInternalError)
		return
	}
	telemetry.TokensCommittedTotal.WithLabelValues(record.Difficulty).Add(float64(record.TotalTokens))

	if h.publisher != nil {
		if err := h.publisher.Publish(r.Context(), record); err != nil {
			h.logger.Warn("usage export failed", zap.String("record_id", record.ID), zap.Error(err))
		}
	}

	api.WriteJSON(w, http.StatusOK, QueryResponse{
		Answer:           completion.Text,
		Model:            decision.ModelName,
		Difficulty:       decision.FinalLabel,
		RoutingSource:    decision.RoutingSource,
		LowConfidence:    decision.LowConfidence,
		OverrideRejected: overrideRejected,
		DecisionID:       decision.ID,
		TokensUsed:       record.TotalTokens,
		Cost:             record.Cost,
		LatencyMS:        completion.LatencyMS,
	})
}

// FeedbackRequest labels a query with its verified difficulty.
type FeedbackRequest struct {
	Query      string `json:"query"`
	Difficulty string `json:"difficulty"`
}

// HandleFeedback appends a verified ground-truth sample. Feedback never
// touches routing decisions or usage records.
func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		api.WriteError(w, r, "authentication required", api.ErrCodeUnauthorized)
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBytes)).Decode(&req); err != nil {
		api.WriteError(w, r, "invalid request body", api.ErrCodeInvalidRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		api.WriteError(w, r, "query is required", api.ErrCodeMissingField)
		return
	}
	tier, ok := classify.ParseTier(req.Difficulty)
	if !ok {
		api.WriteError(w, r, "difficulty must be EASY, MEDIUM, or HARD", api.ErrCodeInvalidRequest)
		return
	}

	if err := h.store.InsertSample(r.Context(), req.Query, string(tier), "user_feedback"); err != nil {
		h.logger.Error("failed to store feedback sample",
			zap.String("user_id", user.UserID),
			zap.Error(err),
		)
		api.WriteError(w, r, "failed to store feedback", api.ErrCodeInternalError)
		return
	}

	api.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// HandleUsageToday returns the caller's consumption since UTC midnight.
func (h *Handler) HandleUsageToday(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		api.WriteError(w, r, "authentication required", api.ErrCodeUnauthorized)
		return
	}

	budget, err := h.ledger.Status(r.Context(), user.UserID)
	if err != nil {
		h.logger.Error("usage lookup failed", zap.String("user_id", user.UserID), zap.Error(err))
		api.WriteError(w, r, "usage lookup failed", api.ErrCodeInternalError)
		return
	}

	summary, err := h.store.SummarizeUsage(r.Context(), user.UserID, startOfDay(time.Now()))
	if err != nil {
		h.logger.Error("usage summary failed", zap.String("user_id", user.UserID), zap.Error(err))
		api.WriteError(w, r, "usage lookup failed", api.ErrCodeInternalError)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"used_tokens": budget.UsedTokens,
		"limit":       budget.Limit,
		"remaining":   budget.Remaining,
		"exhausted":   budget.Exhausted,
		"total_cost":  summary.TotalCost,
		"requests":    summary.Requests,
	})
}

// HandleHistory returns the caller's recent routing decisions.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		api.WriteError(w, r, "authentication required", api.ErrCodeUnauthorized)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			api.WriteError(w, r, "limit must be between 1 and 500", api.ErrCodeInvalidRequest)
			return
		}
		limit = parsed
	}

	decisions, err := h.store.ListDecisions(r.Context(), user.UserID, limit)
	if err != nil {
		h.logger.Error("history lookup failed", zap.String("user_id", user.UserID), zap.Error(err))
		api.WriteError(w, r, "history lookup failed", api.ErrCodeInternalError)
		return
	}
	if decisions == nil {
		decisions = []routing.Decision{}
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{"decisions": decisions})
}

// HandleOverridesRemaining returns the caller's override quota for today.
func (h *Handler) HandleOverridesRemaining(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		api.WriteError(w, r, "authentication required", api.ErrCodeUnauthorized)
		return
	}

	status, err := h.overrides.Status(r.Context(), user.UserID)
	if err != nil {
		h.logger.Error("override lookup failed", zap.String("user_id", user.UserID), zap.Error(err))
		api.WriteError(w, r, "override lookup failed", api.ErrCodeInternalError)
		return
	}

	api.WriteJSON(w, http.StatusOK, status)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

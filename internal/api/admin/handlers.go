// Package admin provides HTTP handlers for admin API endpoints.
//
// Purpose:
//   This package exposes platform-wide aggregates: usage totals, per-tier
//   cost breakdowns, routing source distribution, and the state of the
//   learned classifier and its training pipeline.
package admin

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/intelrouter/query-router-service/internal/api"
	"github.com/intelrouter/query-router-service/internal/ml"
	"github.com/intelrouter/query-router-service/internal/mlops"
	"github.com/intelrouter/query-router-service/internal/storage/postgres"
)

// Store is the aggregate read surface the admin handlers use. Satisfied by
// the Postgres store.
type Store interface {
	Totals(ctx context.Context, since time.Time) (*postgres.PlatformTotals, error)
	RoutingStats(ctx context.Context, since time.Time) (*postgres.SourceStats, error)
	CostBreakdown(ctx context.Context, since time.Time) ([]postgres.TierCost, error)
	UsageSeries(ctx context.Context, since time.Time) ([]postgres.SeriesPoint, error)
	SampleGrowth(ctx context.Context, since time.Time) ([]postgres.GrowthPoint, error)
	CountSamples(ctx context.Context) (int64, error)
	GetActiveModel(ctx context.Context) (*ml.ModelMetadata, error)
	ListModels(ctx context.Context) ([]ml.ModelMetadata, error)
}

// Classifier reports the serving model. Satisfied by the learned classifier.
type Classifier interface {
	Available() bool
	ActiveVersion() string
}

// PipelineStatus reports the training pipeline. Satisfied by the mlops
// pipeline; nil when the service runs without an in-process trainer.
type PipelineStatus interface {
	State() string
	LastRun() *mlops.RunResult
}

// Handler handles admin API requests.
type Handler struct {
	logger     *zap.Logger
	store      Store
	classifier Classifier
	pipeline   PipelineStatus
	tracer     trace.Tracer
}

// NewHandler creates the admin API handler. pipeline may be nil.
func NewHandler(logger *zap.Logger, store Store, classifier Classifier, pipeline PipelineStatus) *Handler {
	return &Handler{
		logger:     logger,
		store:      store,
		classifier: classifier,
		pipeline:   pipeline,
		tracer:     otel.Tracer("query-router-service"),
	}
}

// RegisterRoutes registers admin API routes. The caller wraps them in the
// admin role check.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/v1/admin", func(r chi.Router) {
		r.Get("/metrics", h.GetMetrics)
		r.Get("/costs", h.GetCosts)
		r.Get("/routing-stats", h.GetRoutingStats)
		r.Get("/usage-series", h.GetUsageSeries)
		r.Get("/ml/status", h.GetMLStatus)
		r.Get("/ml/models", h.ListModels)
	})
}

// windowStart parses the optional days query parameter, defaulting to 30.
func windowStart(r *http.Request) (time.Time, bool) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 365 {
			return time.Time{}, false
		}
		days = parsed
	}
	return time.Now().UTC().AddDate(0, 0, -days), true
}

// GetMetrics returns platform totals and the routing distribution.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "admin.GetMetrics")
	defer span.End()

	since, ok := windowStart(r)
	if !ok {
		api.WriteError(w, r, "days must be between 1 and 365", api.ErrCodeInvalidRequest)
		return
	}

	totals, err := h.store.Totals(ctx, since)
	if err != nil {
		h.logger.Error("platform totals failed", zap.Error(err))
		api.WriteError(w, r, "metrics lookup failed", api.ErrCodeInternalError)
		return
	}
	stats, err := h.store.RoutingStats(ctx, since)
	if err != nil {
		h.logger.Error("routing stats failed", zap.Error(err))
		api.WriteError(w, r, "metrics lookup failed", api.ErrCodeInternalError)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"totals":  totals,
		"routing": stats,
	})
}

// GetCosts returns the per-tier cost breakdown.
func (h *Handler) GetCosts(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "admin.GetCosts")
	defer span.End()

	since, ok := windowStart(r)
	if !ok {
		api.WriteError(w, r, "days must be between 1 and 365", api.ErrCodeInvalidRequest)
		return
	}

	breakdown, err := h.store.CostBreakdown(ctx, since)
	if err != nil {
		h.logger.Error("cost breakdown failed", zap.Error(err))
		api.WriteError(w, r, "cost lookup failed", api.ErrCodeInternalError)
		return
	}
	if breakdown == nil {
		breakdown = []postgres.TierCost{}
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{"tiers": breakdown})
}

// GetRoutingStats returns decision counts by source and final tier.
func (h *Handler) GetRoutingStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "admin.GetRoutingStats")
	defer span.End()

	since, ok := windowStart(r)
	if !ok {
		api.WriteError(w, r, "days must be between 1 and 365", api.ErrCodeInvalidRequest)
		return
	}

	stats, err := h.store.RoutingStats(ctx, since)
	if err != nil {
		h.logger.Error("routing stats failed", zap.Error(err))
		api.WriteError(w, r, "routing stats lookup failed", api.ErrCodeInternalError)
		return
	}

	api.WriteJSON(w, http.StatusOK, stats)
}

// GetUsageSeries returns daily usage and sample growth series.
func (h *Handler) GetUsageSeries(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "admin.GetUsageSeries")
	defer span.End()

	since, ok := windowStart(r)
	if !ok {
		api.WriteError(w, r, "days must be between 1 and 365", api.ErrCodeInvalidRequest)
		return
	}

	series, err := h.store.UsageSeries(ctx, since)
	if err != nil {
		h.logger.Error("usage series failed", zap.Error(err))
		api.WriteError(w, r, "usage series lookup failed", api.ErrCodeInternalError)
		return
	}
	growth, err := h.store.SampleGrowth(ctx, since)
	if err != nil {
		h.logger.Error("sample growth failed", zap.Error(err))
		api.WriteError(w, r, "usage series lookup failed", api.ErrCodeInternalError)
		return
	}
	if series == nil {
		series = []postgres.SeriesPoint{}
	}
	if growth == nil {
		growth = []postgres.GrowthPoint{}
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"usage":         series,
		"sample_growth": growth,
	})
}

// GetMLStatus returns the serving model, registry row, corpus size, and
// pipeline state.
func (h *Handler) GetMLStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "admin.GetMLStatus")
	defer span.End()

	active, err := h.store.GetActiveModel(ctx)
	if err != nil {
		h.logger.Error("active model lookup failed", zap.Error(err))
		api.WriteError(w, r, "ml status lookup failed", api.ErrCodeInternalError)
		return
	}
	samples, err := h.store.CountSamples(ctx)
	if err != nil {
		h.logger.Error("sample count failed", zap.Error(err))
		api.WriteError(w, r, "ml status lookup failed", api.ErrCodeInternalError)
		return
	}

	status := map[string]any{
		"serving_available": h.classifier.Available(),
		"serving_version":   h.classifier.ActiveVersion(),
		"active_model":      active,
		"training_samples":  samples,
	}
	if h.pipeline != nil {
		status["pipeline_state"] = h.pipeline.State()
		status["last_run"] = h.pipeline.LastRun()
	}

	api.WriteJSON(w, http.StatusOK, status)
}

// ListModels returns all registry rows, newest first.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "admin.ListModels")
	defer span.End()

	models, err := h.store.ListModels(ctx)
	if err != nil {
		h.logger.Error("model list failed", zap.Error(err))
		api.WriteError(w, r, "model list failed", api.ErrCodeInternalError)
		return
	}
	if models == nil {
		models = []ml.ModelMetadata{}
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{"models": models})
}

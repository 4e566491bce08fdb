// Command router is the HTTP server for the query router service.
//
// Purpose:
//   This binary accepts user queries, classifies their difficulty through
//   the hybrid rule/ML gate, enforces daily token budgets and override
//   quotas, forwards each query to the backend model for its tier, and
//   commits the decision and usage rows. It also serves the admin aggregate
//   views and loads the active learned model from the registry.
//
// Router Architecture:
//   Two-tier chi router: the main router carries base middleware plus the
//   unauthenticated probe and metrics endpoints; a sub-router carries auth
//   and rate limiting for all application routes. chi requires middleware
//   registration before routes, so probes must be registered on the main
//   router before the sub-router is mounted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/intelrouter/query-router-service/internal/api/admin"
	"github.com/intelrouter/query-router-service/internal/api/public"
	"github.com/intelrouter/query-router-service/internal/auth"
	"github.com/intelrouter/query-router-service/internal/classify"
	"github.com/intelrouter/query-router-service/internal/config"
	"github.com/intelrouter/query-router-service/internal/limiter"
	"github.com/intelrouter/query-router-service/internal/llm"
	"github.com/intelrouter/query-router-service/internal/mlops"
	"github.com/intelrouter/query-router-service/internal/routing"
	"github.com/intelrouter/query-router-service/internal/storage/postgres"
	"github.com/intelrouter/query-router-service/internal/telemetry"
	"github.com/intelrouter/query-router-service/internal/usage"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting query router service",
		zap.String("environment", cfg.Environment),
		zap.Int("port", cfg.HTTPPort),
	)

	store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer store.Close()

	// Classification stack: rules first, learned model behind the gate.
	rules := classify.NewRuleClassifier()
	learned := classify.NewLearnedClassifier(logger)
	gate := classify.NewGate(rules, learned, cfg.ConfidenceThreshold, classify.TierHard)
	router := routing.NewRouter(gate, cfg.ModelForTier, logger)

	// Model loader hydrates the learned classifier from the registry.
	artifacts, err := mlops.NewArtifactStore(mlops.ArtifactConfig{
		Endpoint:  cfg.ArtifactEndpoint,
		Region:    cfg.ArtifactRegion,
		Bucket:    cfg.ArtifactBucket,
		AccessKey: cfg.ArtifactAccessKey,
		SecretKey: cfg.ArtifactSecretKey,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize artifact store", zap.Error(err))
	}

	var cache *mlops.ModelCache
	if cfg.ModelCachePath != "" {
		cache, err = mlops.NewModelCache(cfg.ModelCachePath)
		if err != nil {
			logger.Warn("model cache unavailable", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	loader := mlops.NewLoader(store, artifacts, cache, learned, logger)
	if err := loader.LoadActive(ctx); err != nil {
		logger.Warn("failed to load active model, serving without learned classifier", zap.Error(err))
	}
	if cfg.ModelReloadInterval > 0 {
		reloadCtx, cancelReload := context.WithCancel(context.Background())
		defer cancelReload()
		go loader.Run(reloadCtx, cfg.ModelReloadInterval)
	}

	// Governance: daily token budget and override quota over persisted rows.
	ledger := limiter.NewUsageLedger(store, cfg.DailyTokenLimit)
	overrides := limiter.NewOverrideBudget(store, cfg.DailyOverrideQuota)
	auditLogger := usage.NewAuditLogger(logger)

	var redisClient *redis.Client
	var rateLimiter *limiter.RateLimiter
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("Redis unavailable, rate limiting disabled", zap.Error(err))
			redisClient = nil
		} else {
			rateLimiter = limiter.NewRateLimiter(redisClient, logger, cfg.RateLimitRPS, cfg.RateLimitBurst)
			defer redisClient.Close()
		}
	}

	var publisher *usage.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = usage.NewPublisher(usage.PublisherConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaTopic,
			ClientID:     cfg.ServiceName,
			BatchSize:    100,
			BatchTimeout: 1 * time.Second,
			WriteTimeout: 5 * time.Second,
		}, logger)
		defer publisher.Close()
		logger.Info("usage export enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	}

	backend := llm.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout, logger)
	records := usage.NewBuilder(usage.PerTierCost(cfg.CostPer1KEasy, cfg.CostPer1KMedium, cfg.CostPer1KHard))
	authenticator := auth.NewAuthenticator(cfg.JWTSigningKey)

	publicHandler := public.NewHandler(logger, router, store, ledger, overrides, backend, records, publisher, auditLogger)
	adminHandler := admin.NewHandler(logger, store, learned, nil)
	statusHandler := public.NewStatusHandler(cfg.ServiceName, store, learned)

	// Main router: base middleware plus unauthenticated endpoints.
	mainRouter := chi.NewRouter()
	mainRouter.Use(middleware.RequestID)
	mainRouter.Use(middleware.RealIP)
	mainRouter.Use(middleware.Logger)
	mainRouter.Use(middleware.Recoverer)
	mainRouter.Use(middleware.Timeout(cfg.BackendTimeout + 10*time.Second))

	statusHandler.RegisterRoutes(mainRouter)
	mainRouter.Handle("/metrics", promhttp.Handler())

	// Sub-router: authenticated application routes.
	appRouter := chi.NewRouter()
	appRouter.Use(public.AuthMiddleware(authenticator, logger))
	if rateLimiter != nil {
		appRouter.Use(public.RateLimitMiddleware(rateLimiter, auditLogger, logger))
	}
	publicHandler.RegisterRoutes(appRouter)
	appRouter.Group(func(r chi.Router) {
		r.Use(public.RequireAdmin)
		adminHandler.RegisterRoutes(r)
	})
	mainRouter.Mount("/", appRouter)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mainRouter,
	}

	go func() {
		logger.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("query router service stopped")
}

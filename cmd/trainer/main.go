// Command trainer runs the offline training and promotion pipeline.
//
// Purpose:
//   This binary loads the ground-truth corpus, trains a candidate
//   classifier, evaluates it against the held-out and recent-window splits,
//   and promotes it to the registry when it does not regress the active
//   model. By default it runs one cycle and exits, for cron scheduling; the
//   -interval flag keeps it running on a timer instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/intelrouter/query-router-service/internal/classify"
	"github.com/intelrouter/query-router-service/internal/config"
	"github.com/intelrouter/query-router-service/internal/ml"
	"github.com/intelrouter/query-router-service/internal/mlops"
	"github.com/intelrouter/query-router-service/internal/storage/postgres"
	"github.com/intelrouter/query-router-service/internal/telemetry"
)

func main() {
	interval := flag.Duration("interval", 0, "run continuously on this interval instead of once")
	flag.Parse()

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

	store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer store.Close()

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

	denseFeatures := func(query string) []float64 {
		return classify.ExtractFeatures(query).Dense()
	}
	pipeline := mlops.NewPipeline(store, store, artifacts, denseFeatures, classify.FeatureOrder(),
		mlops.PipelineConfig{
			MinSamples:          cfg.TrainingMinSamples,
			HoldoutRatio:        cfg.TrainingHoldoutRatio,
			RecentWindow:        cfg.TrainingRecentWindow,
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			RegressionTolerance: cfg.RegressionTolerance,
			Trainer:             ml.DefaultTrainerConfig(),
		}, logger)

	if *interval <= 0 {
		if err := runOnce(ctx, pipeline, logger); err != nil {
			os.Exit(1)
		}
		return
	}

	logger.Info("trainer running on interval", zap.Duration("interval", *interval))
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	_ = runOnce(sigCtx, pipeline, logger)
	for {
		select {
		case <-sigCtx.Done():
			logger.Info("trainer stopping")
			return
		case <-ticker.C:
			_ = runOnce(sigCtx, pipeline, logger)
		}
	}
}

func runOnce(ctx context.Context, pipeline *mlops.Pipeline, logger *zap.Logger) error {
	result, err := pipeline.Run(ctx)
	if err != nil {
		logger.Error("training cycle failed", zap.Error(err))
		return err
	}
	logger.Info("training cycle finished",
		zap.String("version", result.Version),
		zap.Bool("promoted", result.Promoted),
		zap.String("reason", result.Reason),
		zap.Float64("accuracy", result.Full.Accuracy),
		zap.Float64("f1", result.Full.F1Score),
	)
	return nil
}

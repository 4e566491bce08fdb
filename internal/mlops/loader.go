package mlops

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/intelrouter/query-router-service/internal/classify"
	"github.com/intelrouter/query-router-service/internal/ml"
)

// Loader hydrates the serving classifier from the model registry. On boot
// and on each reload tick it reads the active registry row, fetches the
// artifact, and swaps the deserialized model into the learned classifier.
type Loader struct {
	registry  ModelRegistry
	artifacts ArtifactStorage
	cache     *ModelCache
	learned   *classify.LearnedClassifier
	logger    *zap.Logger
}

// NewLoader creates a model loader. cache may be nil to disable the local
// fallback.
func NewLoader(registry ModelRegistry, artifacts ArtifactStorage, cache *ModelCache,
	learned *classify.LearnedClassifier, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		registry:  registry,
		artifacts: artifacts,
		cache:     cache,
		learned:   learned,
		logger:    logger.With(zap.String("component", "model-loader")),
	}
}

// LoadActive loads the active model into the classifier. No active model is
// not an error: the service starts in rules-plus-fallback mode.
func (l *Loader) LoadActive(ctx context.Context) error {
	meta, err := l.registry.GetActiveModel(ctx)
	if err != nil {
		return fmt.Errorf("read active model: %w", err)
	}
	if meta == nil {
		l.logger.Info("no active model, serving without learned classifier")
		return nil
	}

	if meta.Version == l.learned.ActiveVersion() {
		return nil
	}

	artifact, err := l.fetchArtifact(ctx, meta.Version)
	if err != nil {
		return err
	}

	model, err := ml.Unmarshal(artifact)
	if err != nil {
		return fmt.Errorf("decode model %s: %w", meta.Version, err)
	}

	l.learned.Swap(model)
	l.logger.Info("model loaded",
		zap.String("version", meta.Version),
		zap.Float64("accuracy", meta.Accuracy),
		zap.Float64("f1", meta.F1Score),
	)
	return nil
}

// fetchArtifact downloads from object storage, falling back to the local
// cache when storage is unreachable. Fresh downloads refill the cache.
func (l *Loader) fetchArtifact(ctx context.Context, version string) ([]byte, error) {
	artifact, err := l.artifacts.Download(ctx, version)
	if err == nil {
		if l.cache != nil {
			if cacheErr := l.cache.Store(version, artifact); cacheErr != nil {
				l.logger.Warn("failed to cache model artifact",
					zap.String("version", version),
					zap.Error(cacheErr),
				)
			}
		}
		return artifact, nil
	}

	if l.cache != nil {
		cached, cacheErr := l.cache.Get(version)
		if cacheErr == nil && cached != nil {
			l.logger.Warn("object storage unavailable, using cached artifact",
				zap.String("version", version),
				zap.Error(err),
			)
			return cached, nil
		}
	}
	return nil, fmt.Errorf("fetch artifact %s: %w", version, err)
}

// Run reloads the active model on the given interval until the context is
// canceled. A failed reload keeps the previously swapped model serving.
func (l *Loader) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.LoadActive(ctx); err != nil {
				l.logger.Warn("model reload failed", zap.Error(err))
			}
		}
	}
}

package mlops

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/intelrouter/query-router-service/internal/ml"
	"github.com/intelrouter/query-router-service/internal/telemetry"
)

// Pipeline states. The pipeline is single-flight: a run moves through the
// states in order and always returns to idle.
const (
	StateIdle        = "IDLE"
	StateLoadingData = "LOADING_DATA"
	StateTraining    = "TRAINING"
	StateEvaluating  = "EVALUATING"
	StatePromoting   = "PROMOTING"
	StateRejected    = "REJECTED"
)

// SampleSource loads the training corpus. Satisfied by the Postgres store.
type SampleSource interface {
	LoadSamples(ctx context.Context) ([]ml.Sample, error)
	CountSamples(ctx context.Context) (int64, error)
}

// ModelRegistry reads and flips the active model row. Satisfied by the
// Postgres store.
type ModelRegistry interface {
	GetActiveModel(ctx context.Context) (*ml.ModelMetadata, error)
	PromoteModel(ctx context.Context, meta *ml.ModelMetadata) error
}

// ArtifactStorage stores serialized model artifacts. Satisfied by the S3
// artifact store.
type ArtifactStorage interface {
	Upload(ctx context.Context, version string, artifact []byte) (string, error)
	Download(ctx context.Context, version string) ([]byte, error)
	Delete(ctx context.Context, version string) error
}

// PipelineConfig holds the training cycle's gates and hyperparameters.
type PipelineConfig struct {
	MinSamples          int
	HoldoutRatio        float64
	RecentWindow        time.Duration
	ConfidenceThreshold float64
	RegressionTolerance float64
	Trainer             ml.TrainerConfig
}

// RunResult records the outcome of one pipeline run for the admin status
// view.
type RunResult struct {
	Version    string     `json:"version,omitempty"`
	Promoted   bool       `json:"promoted"`
	Reason     string     `json:"reason"`
	Full       ml.Metrics `json:"full_metrics"`
	Recent     ml.Metrics `json:"recent_metrics"`
	BaselineF1 float64    `json:"baseline_f1"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Pipeline runs the offline train-evaluate-promote cycle. A rejected
// candidate leaves no trace: no artifact, no registry row, no change to the
// serving model.
type Pipeline struct {
	samples   SampleSource
	registry  ModelRegistry
	artifacts ArtifactStorage
	trainer   *ml.Trainer
	features  ml.DenseFeatures
	cfg       PipelineConfig
	logger    *zap.Logger

	mu      sync.Mutex
	state   string
	lastRun *RunResult
	running bool
}

// NewPipeline creates a training pipeline.
func NewPipeline(samples SampleSource, registry ModelRegistry, artifacts ArtifactStorage,
	features ml.DenseFeatures, featureOrder []string, cfg PipelineConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		samples:   samples,
		registry:  registry,
		artifacts: artifacts,
		trainer:   ml.NewTrainer(cfg.Trainer, features, featureOrder),
		features:  features,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "training-pipeline")),
		state:     StateIdle,
	}
}

// State returns the pipeline's current state.
func (p *Pipeline) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastRun returns the most recent run result, or nil before the first run.
func (p *Pipeline) LastRun() *RunResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastRun == nil {
		return nil
	}
	out := *p.lastRun
	return &out
}

func (p *Pipeline) setState(state string) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

// Run executes one full training cycle. Only one run may be in flight; a
// concurrent call returns an error without touching pipeline state.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, fmt.Errorf("training run already in progress")
	}
	p.running = true
	p.mu.Unlock()

	result := &RunResult{StartedAt: time.Now().UTC()}
	defer func() {
		result.FinishedAt = time.Now().UTC()
		p.mu.Lock()
		p.lastRun = result
		p.state = StateIdle
		p.running = false
		p.mu.Unlock()
	}()

	run, err := p.run(ctx, result)
	if err != nil {
		telemetry.TrainingRunsTotal.WithLabelValues("failed").Inc()
		p.logger.Error("training run failed", zap.Error(err))
		result.Reason = err.Error()
		return result, err
	}
	return run, nil
}

func (p *Pipeline) run(ctx context.Context, result *RunResult) (*RunResult, error) {
	p.setState(StateLoadingData)

	count, err := p.samples.CountSamples(ctx)
	if err != nil {
		return nil, fmt.Errorf("count samples: %w", err)
	}
	if count < int64(p.cfg.MinSamples) {
		p.setState(StateRejected)
		result.Reason = fmt.Sprintf("insufficient samples: have %d, need %d", count, p.cfg.MinSamples)
		telemetry.TrainingRunsTotal.WithLabelValues("skipped").Inc()
		p.logger.Info("training skipped", zap.Int64("samples", count), zap.Int("min_samples", p.cfg.MinSamples))
		return result, nil
	}

	samples, err := p.samples.LoadSamples(ctx)
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}

	train, test, err := ml.StratifiedSplit(samples, p.cfg.HoldoutRatio, p.cfg.Trainer.Seed)
	if err != nil {
		return nil, fmt.Errorf("split samples: %w", err)
	}

	p.setState(StateTraining)
	version := newVersion()
	result.Version = version

	model, err := p.trainer.Train(train, version, p.cfg.ConfidenceThreshold)
	if err != nil {
		return nil, fmt.Errorf("train model %s: %w", version, err)
	}

	p.setState(StateEvaluating)
	result.Full = ml.Evaluate(model, test, p.features, "holdout")

	// The promotion comparison uses held-out samples from the recent window
	// so an old model cannot coast on stale traffic patterns. When the
	// window is empty the full holdout stands in.
	recent := recentSamples(test, time.Now().UTC().Add(-p.cfg.RecentWindow))
	if len(recent) > 0 {
		result.Recent = ml.Evaluate(model, recent, p.features, "recent")
	} else {
		result.Recent = result.Full
		result.Recent.Dataset = "recent"
	}

	active, err := p.registry.GetActiveModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("read active model: %w", err)
	}

	// Displacing the active model requires strict improvement on the recent
	// window. Retraining on an unchanged corpus yields the same score and is
	// rejected, so repeated runs never churn the registry. The tolerance only
	// grades the rejection: below the floor it is a regression, between floor
	// and baseline it is merely no improvement.
	if active != nil {
		result.BaselineF1 = active.Metrics.Recent.F1Score
		if result.Recent.F1Score <= result.BaselineF1 {
			floor := result.BaselineF1 * p.cfg.RegressionTolerance
			if result.Recent.F1Score < floor {
				result.Reason = fmt.Sprintf("regression: recent F1 %.4f below floor %.4f (active %s at %.4f)",
					result.Recent.F1Score, floor, active.Version, result.BaselineF1)
			} else {
				result.Reason = fmt.Sprintf("no improvement: recent F1 %.4f does not beat active %s at %.4f",
					result.Recent.F1Score, active.Version, result.BaselineF1)
			}
			p.setState(StateRejected)
			telemetry.TrainingRunsTotal.WithLabelValues("rejected").Inc()
			p.logger.Info("candidate rejected",
				zap.String("version", version),
				zap.Float64("candidate_f1", result.Recent.F1Score),
				zap.Float64("baseline_f1", result.BaselineF1),
			)
			return result, nil
		}
	}

	p.setState(StatePromoting)
	if err := p.promote(ctx, model, result); err != nil {
		return nil, err
	}

	result.Promoted = true
	result.Reason = "promoted"
	telemetry.TrainingRunsTotal.WithLabelValues("promoted").Inc()
	p.logger.Info("model promoted",
		zap.String("version", version),
		zap.Float64("accuracy", result.Full.Accuracy),
		zap.Float64("f1", result.Full.F1Score),
		zap.Float64("recent_f1", result.Recent.F1Score),
	)
	return result, nil
}

// promote uploads the artifact first and flips the registry second. When the
// registry flip fails the uploaded artifact is removed so storage never
// references a version the registry does not know.
func (p *Pipeline) promote(ctx context.Context, model *ml.Model, result *RunResult) error {
	artifact, err := model.Marshal()
	if err != nil {
		return fmt.Errorf("serialize model %s: %w", model.Version, err)
	}

	if _, err := p.artifacts.Upload(ctx, model.Version, artifact); err != nil {
		return fmt.Errorf("upload artifact %s: %w", model.Version, err)
	}

	meta := &ml.ModelMetadata{
		ID:                  uuid.New().String(),
		Version:             model.Version,
		Accuracy:            result.Full.Accuracy,
		F1Score:             result.Full.F1Score,
		ConfidenceThreshold: model.ConfidenceThreshold,
		TrainingTimestamp:   model.TrainedAt,
		IsActive:            true,
		Metrics: ml.ModelMetrics{
			Full:   result.Full,
			Recent: result.Recent,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := p.registry.PromoteModel(ctx, meta); err != nil {
		if delErr := p.artifacts.Delete(ctx, model.Version); delErr != nil {
			p.logger.Warn("orphaned artifact after failed promotion",
				zap.String("version", model.Version),
				zap.Error(delErr),
			)
		}
		return fmt.Errorf("promote model %s: %w", model.Version, err)
	}
	return nil
}

func recentSamples(samples []ml.Sample, since time.Time) []ml.Sample {
	var out []ml.Sample
	for _, s := range samples {
		if !s.CreatedAt.Before(since) {
			out = append(out, s)
		}
	}
	return out
}

// newVersion allocates a timestamped model version.
func newVersion() string {
	return "v" + time.Now().UTC().Format("20060102150405")
}

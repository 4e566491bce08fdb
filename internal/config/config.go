// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the full router service configuration, loaded from
// environment variables with the ROUTER prefix.
type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"query-router-service"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8083"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	RateLimitRPS   int `envconfig:"RATE_LIMIT_RPS" default:"10"`
	RateLimitBurst int `envconfig:"RATE_LIMIT_BURST" default:"20"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:""`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"routing.usage.v1"`

	JWTSigningKey string `envconfig:"JWT_SIGNING_KEY" required:"true"`

	DailyTokenLimit    int64 `envconfig:"DAILY_TOKEN_LIMIT" default:"100000"`
	DailyOverrideQuota int   `envconfig:"DAILY_OVERRIDE_QUOTA" default:"3"`

	CostPer1KEasy   float64 `envconfig:"COST_PER_1K_EASY" default:"0.001"`
	CostPer1KMedium float64 `envconfig:"COST_PER_1K_MEDIUM" default:"0.01"`
	CostPer1KHard   float64 `envconfig:"COST_PER_1K_HARD" default:"0.1"`

	ModelEasy   string `envconfig:"MODEL_EASY" default:"meta-llama/Llama-3.1-8B-Instruct"`
	ModelMedium string `envconfig:"MODEL_MEDIUM" default:"Qwen/Qwen2.5-7B-Instruct-1M"`
	ModelHard   string `envconfig:"MODEL_HARD" default:"deepseek-ai/DeepSeek-R1"`

	BackendBaseURL string        `envconfig:"BACKEND_BASE_URL" default:"http://localhost:8000"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"60s"`

	ArtifactEndpoint  string `envconfig:"ARTIFACT_ENDPOINT" default:""`
	ArtifactRegion    string `envconfig:"ARTIFACT_REGION" default:"us-east-1"`
	ArtifactBucket    string `envconfig:"ARTIFACT_BUCKET" default:"ml-models"`
	ArtifactAccessKey string `envconfig:"ARTIFACT_ACCESS_KEY" default:""`
	ArtifactSecretKey string `envconfig:"ARTIFACT_SECRET_KEY" default:""`

	ModelCachePath      string        `envconfig:"MODEL_CACHE_PATH" default:"/var/lib/query-router/models.db"`
	ModelReloadInterval time.Duration `envconfig:"MODEL_RELOAD_INTERVAL" default:"0"`

	TrainingMinSamples    int           `envconfig:"TRAINING_MIN_SAMPLES" default:"50"`
	TrainingRecentWindow  time.Duration `envconfig:"TRAINING_RECENT_WINDOW" default:"720h"`
	TrainingHoldoutRatio  float64       `envconfig:"TRAINING_HOLDOUT_RATIO" default:"0.2"`
	ConfidenceThreshold   float64       `envconfig:"CONFIDENCE_THRESHOLD" default:"0.6"`
	RegressionTolerance   float64       `envconfig:"REGRESSION_TOLERANCE" default:"0.95"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("ROUTER", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.TrainingHoldoutRatio <= 0 || c.TrainingHoldoutRatio >= 1 {
		return fmt.Errorf("training holdout ratio must be in (0, 1), got %v", c.TrainingHoldoutRatio)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0, 1], got %v", c.ConfidenceThreshold)
	}
	if c.DailyTokenLimit <= 0 {
		return fmt.Errorf("daily token limit must be positive, got %d", c.DailyTokenLimit)
	}
	return nil
}

// ModelForTier maps a difficulty tier to its configured backend model.
func (c *Config) ModelForTier(tier string) string {
	switch tier {
	case "EASY":
		return c.ModelEasy
	case "HARD":
		return c.ModelHard
	default:
		return c.ModelMedium
	}
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

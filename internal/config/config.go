package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"VERSO_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"VERSO_DB_MAX_CONNS" default:"8"`

	AIProvider    string  `envconfig:"AI_PROVIDER" default:"openai"`
	AIEndpoint    string  `envconfig:"AI_ENDPOINT" default:"http://127.0.0.1:8845/v1"`
	AIModel       string  `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AIAPIKey      string  `envconfig:"AI_API_KEY" default:""`
	AITemperature float64 `envconfig:"AI_TEMPERATURE" default:"0.3"`
	AIMaxTokens   int     `envconfig:"AI_MAX_TOKENS" default:"4096"`

	MaxInputTokens int `envconfig:"MAX_INPUT_TOKENS" default:"3000"`

	QueueWorkers      int `envconfig:"QUEUE_WORKERS" default:"5"`
	ReviewConcurrency int `envconfig:"REVIEW_CONCURRENCY" default:"5"`
	ReviewBatchSize   int `envconfig:"REVIEW_BATCH_SIZE" default:"10"`
	MaxAttempts       int `envconfig:"MAX_ATTEMPTS" default:"3"`

	RateLimitCalls      int `envconfig:"RATE_LIMIT_CALLS" default:"60"`
	RateLimitWindowSecs int `envconfig:"RATE_LIMIT_WINDOW_SECS" default:"60"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("VERSO_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("VERSO_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("VERSO_DB_MIN_CONNS (%d) cannot exceed VERSO_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.MaxInputTokens < 1 {
		return fmt.Errorf("MAX_INPUT_TOKENS must be >= 1")
	}
	if c.QueueWorkers < 1 {
		return fmt.Errorf("QUEUE_WORKERS must be >= 1")
	}
	if c.ReviewConcurrency < 1 {
		return fmt.Errorf("REVIEW_CONCURRENCY must be >= 1")
	}
	if c.ReviewBatchSize < 1 {
		return fmt.Errorf("REVIEW_BATCH_SIZE must be >= 1")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be >= 1")
	}
	if c.RateLimitCalls < 1 {
		return fmt.Errorf("RATE_LIMIT_CALLS must be >= 1")
	}
	if c.RateLimitWindowSecs < 1 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_SECS must be >= 1")
	}
	return nil
}

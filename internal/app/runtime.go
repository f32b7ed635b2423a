package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/verso/internal/ai"
	"horse.fit/verso/internal/cli"
	"horse.fit/verso/internal/config"
	"horse.fit/verso/internal/db"
	"horse.fit/verso/internal/logging"
	"horse.fit/verso/internal/queue"
	"horse.fit/verso/internal/review"
	"horse.fit/verso/internal/translation"
)

// runtime bundles the shared wiring every command needs: config, logger,
// database pool, provider registry, rate gate and services.
type runtime struct {
	cfg      *config.Config
	logger   zerolog.Logger
	pool     *db.Pool
	registry *ai.Registry
	gate     *queue.Gate

	translator *translation.Service
	reviewer   *review.Service
}

func openRuntime(envLoader *cli.EnvLoader) (*runtime, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	registry := ai.NewRegistry(cfg.AIProvider)
	if err := registry.Register(ai.NewChatProvider(ai.ChatOptions{
		Name:     cfg.AIProvider,
		Endpoint: cfg.AIEndpoint,
		APIKey:   cfg.AIAPIKey,
		Model:    cfg.AIModel,
	})); err != nil {
		pool.Close()
		return nil, fmt.Errorf("register completion provider: %w", err)
	}

	gate := queue.NewGate(cfg.RateLimitCalls, time.Duration(cfg.RateLimitWindowSecs)*time.Second, nil)

	translator := translation.NewService(pool, registry, gate, logger, translation.Options{
		Model:           cfg.AIModel,
		Temperature:     cfg.AITemperature,
		MaxOutputTokens: cfg.AIMaxTokens,
		MaxInputTokens:  cfg.MaxInputTokens,
		MaxAttempts:     cfg.MaxAttempts,
	})
	reviewer := review.NewService(pool, registry, gate, logger, review.Options{
		Model:           cfg.AIModel,
		Temperature:     cfg.AITemperature,
		MaxOutputTokens: cfg.AIMaxTokens,
		MaxAttempts:     cfg.MaxAttempts,
		Concurrency:     cfg.ReviewConcurrency,
		BatchSize:       cfg.ReviewBatchSize,
	})

	return &runtime{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		registry:   registry,
		gate:       gate,
		translator: translator,
		reviewer:   reviewer,
	}, nil
}

func (r *runtime) close() {
	if r != nil && r.pool != nil {
		r.pool.Close()
	}
}

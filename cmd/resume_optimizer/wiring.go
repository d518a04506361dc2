package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/db"
	"github.com/jonathan/resume-optimizer/internal/embedding"
	"github.com/jonathan/resume-optimizer/internal/generation"
	"github.com/jonathan/resume-optimizer/internal/llm"
	"github.com/jonathan/resume-optimizer/internal/optimizer"
	"github.com/jonathan/resume-optimizer/internal/pii"
)

// newEmbeddingProvider builds the configured embedding backend.
func newEmbeddingProvider(ctx context.Context, cfg config.EmbeddingConfig) (embedding.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return embedding.NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, nil)
	case "gemini":
		return embedding.NewGeminiProvider(ctx, cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// newCoordinator wires providers, the embedding cache, the orchestrator and the
// coordinator. The caller owns the result and must Close it.
func newCoordinator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*optimizer.Coordinator, error) {
	provider, err := newEmbeddingProvider(ctx, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	embedder := embedding.NewClient(provider, embedding.NewCache(cfg.Embedding.Cache()), cfg.Embedding.EmbeddingClient(), logger.Named("embedding"))

	llmClient, err := llm.NewClient(ctx, cfg.Generation.LLM(), cfg.Generation.APIKey)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	scanner := pii.NewScanner()
	generator := generation.NewOrchestrator(llmClient, scanner, cfg.Generation.Orchestrator(), logger.Named("generation"))

	return optimizer.New(embedder, generator, scanner, cfg.Coordinator(), logger.Named("optimizer")), nil
}

// openDatabase connects when a database URL is configured and returns nil otherwise.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, migrate bool) (*db.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	database, err := db.Connect(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, err
		}
	}
	return database, nil
}

package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/urbcode/plan-assistant/internal/config"
	"github.com/urbcode/plan-assistant/internal/core/ports"
	"github.com/urbcode/plan-assistant/internal/core/usecase"
	"github.com/urbcode/plan-assistant/internal/infrastructure/catalog"
	"github.com/urbcode/plan-assistant/internal/infrastructure/llm/ollama"
	"github.com/urbcode/plan-assistant/internal/infrastructure/queue/nats"
	"github.com/urbcode/plan-assistant/internal/infrastructure/report/excel"
	"github.com/urbcode/plan-assistant/internal/infrastructure/repository/postgres"
	"github.com/urbcode/plan-assistant/internal/infrastructure/resilience"
)

type App struct {
	Config config.Config

	Queue     *nats.Queue
	Answer    ports.AnswerService
	Runs      ports.EvaluationStore
	TestCases ports.TestCaseStore
	Cache     ports.ResponseCache
	Catalog   ports.ModelCatalog
	Reports   ports.ReportWriter
	Scorer    usecase.Scorer

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	models, err := catalog.Load(cfg.ModelCatalogPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load model catalog: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{})
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init evaluation queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	synthesizer := ollama.NewSynthesizer(ollamaClient)

	corpus := postgres.NewCorpusRepository(db)
	cache := postgres.NewCacheRepository(db, time.Duration(cfg.CacheTTLHours)*time.Hour)
	history := postgres.NewHistoryRepository(db)
	runs := postgres.NewEvaluationRepository(db)
	testCases := postgres.NewTestCaseRepository(db)

	chain := usecase.NewFallbackChain(embedder, corpus, usecase.FallbackConfig{
		TopK:             cfg.RetrievalTopK,
		PrimaryThreshold: cfg.VectorPrimaryThreshold,
		LoweredThreshold: cfg.VectorLoweredThreshold,
		StrategyTimeout:  time.Duration(cfg.StrategyTimeoutSeconds) * time.Second,
	})
	answer := usecase.NewAnswerUseCase(chain, cache, synthesizer, history, usecase.AnswerConfig{
		CacheTTL:          time.Duration(cfg.CacheTTLHours) * time.Hour,
		ContextCharBudget: cfg.ContextCharBudget,
		SynthesisTimeout:  time.Duration(cfg.SynthesisTimeoutSeconds) * time.Second,
		EmbeddingModel:    cfg.OllamaEmbedModel,
		DefaultModel:      models.Default(),
	})

	return &App{
		Config: cfg,

		Queue:     queue,
		Answer:    answer,
		Runs:      runs,
		TestCases: testCases,
		Cache:     cache,
		Catalog:   models,
		Reports:   excel.NewWriter(),
		Scorer:    usecase.DefaultScorer{},

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

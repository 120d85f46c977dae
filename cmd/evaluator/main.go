package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urbcode/plan-assistant/internal/bootstrap"
	"github.com/urbcode/plan-assistant/internal/config"
	"github.com/urbcode/plan-assistant/internal/core/domain"
	"github.com/urbcode/plan-assistant/internal/core/usecase"
	"github.com/urbcode/plan-assistant/internal/observability/logging"
	"github.com/urbcode/plan-assistant/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("evaluator", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	evaluatorMetrics := metrics.NewEvaluatorMetrics("evaluator")
	go serveMetrics(ctx, cfg.EvaluatorMetricsPort, evaluatorMetrics)

	slots := make(chan struct{}, maxConcurrent(cfg.MaxConcurrentEvaluations))

	slog.Info("evaluator subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeEvaluationRequested(ctx, func(handlerCtx context.Context, request domain.EvaluationRequest) error {
		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
		case <-handlerCtx.Done():
			return handlerCtx.Err()
		}
		return handleEvaluation(handlerCtx, cfg, app, evaluatorMetrics, request)
	})
	if err != nil {
		log.Fatalf("evaluator subscribe error: %v", err)
	}
}

func handleEvaluation(
	ctx context.Context,
	cfg config.Config,
	app *bootstrap.App,
	m *metrics.EvaluatorMetrics,
	request domain.EvaluationRequest,
) error {
	start := time.Now()
	logger := slog.With("request_id", request.ID)
	logger.Info("evaluation started", "model_ids", request.ModelIDs)

	testCases, err := app.TestCases.Select(ctx, request.Selector)
	if err != nil {
		return fmt.Errorf("select test cases: %w", err)
	}
	models, err := app.Catalog.Resolve(request.ModelIDs)
	if err != nil {
		return fmt.Errorf("resolve models: %w", err)
	}

	harness := usecase.NewEvaluateUseCase(app.Answer, app.Runs, app.Scorer, usecase.EvaluateConfig{
		BatchSize: cfg.EvaluationBatchSize,
		RequestID: request.ID,
		Observer:  caseMetricsObserver{metrics: m},
	})
	runs, err := harness.Run(ctx, testCases, models)
	if err != nil {
		return fmt.Errorf("run evaluation: %w", err)
	}

	results := make(map[string][]domain.ValidationResult, len(runs))
	for _, run := range runs {
		m.FinishRun("evaluator", run.ModelID, string(run.Status), run.OverallAccuracy, time.Since(start))

		runResults, err := app.Runs.ListResults(ctx, run.ID)
		if err != nil {
			logger.Warn("list results failed", "run_id", run.ID, "error", err)
			continue
		}
		results[run.ID] = runResults
	}

	reportPath := filepath.Join(cfg.ReportDir, fmt.Sprintf("avaliacao-%s.xlsx", request.ID))
	if err := app.Reports.WriteRunReport(reportPath, runs, results); err != nil {
		logger.Warn("report write failed", "path", reportPath, "error", err)
	} else {
		logger.Info("report written", "path", reportPath)
	}

	logger.Info("evaluation finished",
		"runs", len(runs),
		"test_cases", len(testCases),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// caseMetricsObserver bridges per-case harness callbacks to Prometheus.
type caseMetricsObserver struct {
	metrics *metrics.EvaluatorMetrics
}

func (o caseMetricsObserver) CaseStarted() {
	o.metrics.StartCase()
}

func (o caseMetricsObserver) CaseFinished(modelID string, latencyMs int64, passed bool, errorKind string) {
	o.metrics.FinishCase("evaluator", modelID, latencyMs, passed, errorKind)
}

func serveMetrics(ctx context.Context, port string, m *metrics.EvaluatorMetrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("metrics server error", "error", err)
	}
}

func maxConcurrent(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

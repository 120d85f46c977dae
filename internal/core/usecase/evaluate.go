package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/urbcode/plan-assistant/internal/core/domain"
	"github.com/urbcode/plan-assistant/internal/core/ports"
)

type EvaluateConfig struct {
	BatchSize int
	RequestID string
	Observer  RunObserver
}

// RunObserver receives per-case lifecycle callbacks, e.g. for metrics.
// Implementations must be safe for concurrent use.
type RunObserver interface {
	CaseStarted()
	CaseFinished(modelID string, latencyMs int64, passed bool, errorKind string)
}

func (c EvaluateConfig) normalize() EvaluateConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	return c
}

// EvaluateUseCase runs the answering pipeline across N test cases and M model
// configurations. Models run fully concurrently with respect to each other;
// within a model, test cases run in fixed-size batches to bound concurrent
// outbound synthesis calls.
type EvaluateUseCase struct {
	answerer ports.AnswerService
	store    ports.EvaluationStore
	scorer   Scorer
	cfg      EvaluateConfig
}

func NewEvaluateUseCase(answerer ports.AnswerService, store ports.EvaluationStore, scorer Scorer, cfg EvaluateConfig) *EvaluateUseCase {
	if scorer == nil {
		scorer = DefaultScorer{}
	}
	return &EvaluateUseCase{
		answerer: answerer,
		store:    store,
		scorer:   scorer,
		cfg:      cfg.normalize(),
	}
}

func (uc *EvaluateUseCase) Run(
	ctx context.Context,
	testCases []domain.TestCase,
	models []domain.ModelConfig,
) ([]domain.ValidationRun, error) {
	if len(models) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate", fmt.Errorf("at least one model config is required"))
	}
	if len(testCases) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate", fmt.Errorf("no test cases selected"))
	}

	runs := make([]domain.ValidationRun, len(models))

	// Runs are independent; one failing run never cancels its siblings, so
	// goroutines report through the slice rather than through group errors.
	group := errgroup.Group{}
	for i, model := range models {
		i, model := i, model
		group.Go(func() error {
			runs[i] = uc.runModel(ctx, model, testCases)
			return nil
		})
	}
	_ = group.Wait()

	return runs, nil
}

func (uc *EvaluateUseCase) runModel(ctx context.Context, model domain.ModelConfig, testCases []domain.TestCase) domain.ValidationRun {
	run := domain.ValidationRun{
		ID:         uuid.NewString(),
		RequestID:  uc.cfg.RequestID,
		ModelID:    model.ID,
		Status:     domain.RunStatusRunning,
		TotalTests: len(testCases),
		StartedAt:  time.Now().UTC(),
	}

	if err := uc.store.CreateRun(ctx, &run); err != nil {
		// The only condition that leaves a run failed instead of completed.
		slog.Error("run_startup_failed", "run_id", run.ID, "model", model.ID, "error", err)
		now := time.Now().UTC()
		run.Status = domain.RunStatusFailed
		run.EndedAt = &now
		return run
	}

	results := make([]domain.ValidationResult, len(testCases))
	executed := 0

	for start := 0; start < len(testCases); start += uc.cfg.BatchSize {
		if ctx.Err() != nil {
			// Cancellation stops scheduling new batches; results already
			// written stay untouched.
			slog.Warn("run_cancelled", "run_id", run.ID, "model", model.ID, "executed", executed)
			break
		}

		end := min(start+uc.cfg.BatchSize, len(testCases))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = uc.runTestCase(ctx, model, run.ID, testCases[i])
			}()
		}
		wg.Wait()
		executed = end

		for i := start; i < end; i++ {
			if err := uc.store.AppendResult(ctx, results[i]); err != nil {
				slog.Warn("result_append_failed", "run_id", run.ID, "test_case", results[i].TestCaseID, "error", err)
			}
		}
	}

	uc.finalize(ctx, &run, results[:executed])
	return run
}

// runTestCase executes one isolated test-case task. A panic or error in one
// task is recorded on its result and never cancels siblings or the run.
func (uc *EvaluateUseCase) runTestCase(
	ctx context.Context,
	model domain.ModelConfig,
	runID string,
	testCase domain.TestCase,
) (result domain.ValidationResult) {
	result = domain.ValidationResult{
		RunID:      runID,
		TestCaseID: testCase.ID,
	}
	started := time.Now()

	if uc.cfg.Observer != nil {
		uc.cfg.Observer.CaseStarted()
		// Registered before the recover handler so it observes the final
		// result values even when the task panics.
		defer func() {
			uc.cfg.Observer.CaseFinished(model.ID, result.LatencyMs, result.IsCorrect, result.ErrorKind)
		}()
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			slog.Error("test_case_panic", "run_id", runID, "test_case", testCase.ID, "panic", recovered)
			result.LatencyMs = time.Since(started).Milliseconds()
			result.ErrorKind = domain.ErrorKindTask
			result.IsCorrect = false
			result.Score = 0
		}
	}()

	// The response cache is keyed by question alone, with no model identity.
	// Every model under evaluation must synthesize its own answer; otherwise
	// later models would be scored on the first model's cached response.
	response, err := uc.answerer.Answer(ctx, ports.AnswerRequest{
		Question:    testCase.Question,
		Model:       model,
		BypassCache: true,
	})
	result.LatencyMs = time.Since(started).Milliseconds()

	if err != nil {
		result.ErrorKind = domain.ClassifyErrorKind(err)
		return result
	}

	result.Answer = response.Response
	result.Score = uc.scorer.Score(testCase, response.Response)
	result.IsCorrect = result.Score >= domain.PassThreshold
	return result
}

// finalize computes arithmetic-mean aggregates over all executed cases;
// errored cases count as score zero, not excluded.
func (uc *EvaluateUseCase) finalize(ctx context.Context, run *domain.ValidationRun, results []domain.ValidationResult) {
	var scoreSum, latencySum float64
	passed := 0
	for _, result := range results {
		scoreSum += result.Score
		latencySum += float64(result.LatencyMs)
		if result.IsCorrect {
			passed++
		}
	}

	run.TotalTests = len(results)
	run.PassedTests = passed
	if len(results) > 0 {
		run.OverallAccuracy = scoreSum / float64(len(results))
		run.MeanLatencyMs = latencySum / float64(len(results))
	}

	now := time.Now().UTC()
	run.Status = domain.RunStatusCompleted
	run.EndedAt = &now

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := uc.store.FinishRun(finishCtx, run); err != nil {
		slog.Error("run_finish_failed", "run_id", run.ID, "error", err)
	}
}

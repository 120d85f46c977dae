package ports

import (
	"context"

	"github.com/urbcode/plan-assistant/internal/core/domain"
)

// Embedder turns query text into a fixed-length vector via an external model.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Synthesizer calls the completion model. The ModelConfig travels with every
// call so parallel multi-model runs never share mutable model state.
type Synthesizer interface {
	Complete(ctx context.Context, model domain.ModelConfig, systemPrompt, userText string) (string, error)
}

// CorpusStore is the external record store over articles, hierarchy nodes and
// free-text sections.
type CorpusStore interface {
	FindByKey(ctx context.Context, kind domain.SourceKind, key, documentType string) ([]domain.RetrievedRecord, error)
	SimilaritySearch(ctx context.Context, vector []float32, threshold float64, limit int, documentType string) ([]domain.RetrievedRecord, error)
	PatternSearch(ctx context.Context, tokens []string, limit int, documentType string) ([]domain.RetrievedRecord, error)
}

// ResponseCache memoizes synthesized answers by normalized query key.
type ResponseCache interface {
	Get(ctx context.Context, key string) (domain.CacheEntry, bool, error)
	Put(ctx context.Context, entry domain.CacheEntry) error
	Cleanup(ctx context.Context, maxAgeHours, minHitCount int, force bool) (int64, error)
}

// AuditSink records answered questions. Append is fire-and-forget from the
// caller's point of view: failures are logged, never surfaced.
type AuditSink interface {
	Append(ctx context.Context, audit domain.QueryAudit) error
}

// TestCaseStore loads evaluation questions by selector.
type TestCaseStore interface {
	Select(ctx context.Context, selector domain.TestCaseSelector) ([]domain.TestCase, error)
}

// EvaluationStore persists validation runs and their per-case results.
type EvaluationStore interface {
	CreateRun(ctx context.Context, run *domain.ValidationRun) error
	AppendResult(ctx context.Context, result domain.ValidationResult) error
	FinishRun(ctx context.Context, run *domain.ValidationRun) error
	GetRun(ctx context.Context, runID string) (*domain.ValidationRun, error)
	ListRunsByRequest(ctx context.Context, requestID string) ([]domain.ValidationRun, error)
	ListResults(ctx context.Context, runID string) ([]domain.ValidationResult, error)
}

// EvaluationQueue decouples triggering an evaluation from executing it.
type EvaluationQueue interface {
	PublishEvaluationRequested(ctx context.Context, request domain.EvaluationRequest) error
	SubscribeEvaluationRequested(ctx context.Context, handler func(context.Context, domain.EvaluationRequest) error) error
}

// ReportWriter renders a finished evaluation into a shareable artifact.
type ReportWriter interface {
	WriteRunReport(path string, runs []domain.ValidationRun, results map[string][]domain.ValidationResult) error
}

// ModelCatalog resolves model configurations by id.
type ModelCatalog interface {
	All() []domain.ModelConfig
	Resolve(ids []string) ([]domain.ModelConfig, error)
	Default() domain.ModelConfig
}

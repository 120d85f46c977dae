package ports

import (
	"context"

	"github.com/urbcode/plan-assistant/internal/core/domain"
)

// AnswerRequest carries one question through the pipeline.
type AnswerRequest struct {
	Question     string
	DocumentType string
	BypassCache  bool
	Model        domain.ModelConfig
}

// AnswerResponse is the public result of the retrieval orchestrator.
type AnswerResponse struct {
	Response        string              `json:"response"`
	Confidence      float64             `json:"confidence"`
	SourceCounts    domain.SourceCounts `json:"source_counts"`
	Strategy        string              `json:"strategy"`
	FromCache       bool                `json:"from_cache"`
	ExecutionTimeMs int64               `json:"execution_time_ms"`
}

// AnswerService is the inbound contract for grounded question answering.
type AnswerService interface {
	Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error)
}

// EvaluationService runs the harness across test cases and model configs.
type EvaluationService interface {
	Run(ctx context.Context, testCases []domain.TestCase, models []domain.ModelConfig) ([]domain.ValidationRun, error)
}

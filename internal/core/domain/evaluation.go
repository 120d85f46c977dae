package domain

import "time"

// ModelConfig identifies and labels one synthesis model under evaluation.
// Every retrieval/synthesis call receives its ModelConfig explicitly; there is
// no ambient "current model" state, so multi-model runs can share a process.
type ModelConfig struct {
	ID                string  `yaml:"id" json:"id"`
	Provider          string  `yaml:"provider" json:"provider"`
	CostPerToken      float64 `yaml:"cost_per_token" json:"cost_per_token"`
	MaxTokens         int     `yaml:"max_tokens" json:"max_tokens"`
	ExpectedLatencyMs int     `yaml:"expected_latency_ms" json:"expected_latency_ms"`
}

// TestCase is one evaluation question with its scoring reference.
type TestCase struct {
	ID               string   `json:"id"`
	Question         string   `json:"question"`
	ExpectedKeywords []string `json:"expected_keywords,omitempty"`
	ReferenceAnswer  string   `json:"reference_answer,omitempty"`
	Category         string   `json:"category,omitempty"`
	Difficulty       string   `json:"difficulty,omitempty"`
}

// TestCaseSelector narrows which test cases an evaluation run covers.
// Zero value selects everything.
type TestCaseSelector struct {
	IDs        []string `json:"ids,omitempty"`
	Category   string   `json:"category,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	RandomN    int      `json:"random_n,omitempty"`
}

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ValidationRun is one model's pass over the selected test cases. It is owned
// exclusively by the harness goroutine that created it.
type ValidationRun struct {
	ID              string     `json:"id"`
	RequestID       string     `json:"request_id,omitempty"`
	ModelID         string     `json:"model_id"`
	Status          RunStatus  `json:"status"`
	TotalTests      int        `json:"total_tests"`
	PassedTests     int        `json:"passed_tests"`
	OverallAccuracy float64    `json:"overall_accuracy"`
	MeanLatencyMs   float64    `json:"mean_latency_ms"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
}

// ValidationResult is one (run, test case) outcome. Append-only, written once.
type ValidationResult struct {
	RunID      string  `json:"run_id"`
	TestCaseID string  `json:"test_case_id"`
	Answer     string  `json:"answer,omitempty"`
	IsCorrect  bool    `json:"is_correct"`
	Score      float64 `json:"score"`
	LatencyMs  int64   `json:"latency_ms"`
	ErrorKind  string  `json:"error_kind,omitempty"`
}

// PassThreshold is the minimum accuracy score counted as a pass.
const PassThreshold = 0.6

// EvaluationRequest asks the evaluator worker to execute one harness run.
type EvaluationRequest struct {
	ID       string           `json:"id"`
	Selector TestCaseSelector `json:"selector"`
	ModelIDs []string         `json:"model_ids,omitempty"`
}

// QueryAudit is the fire-and-forget history record of one answered question.
type QueryAudit struct {
	Question   string
	Answer     string
	Confidence float64
	Strategy   string
	ModelID    string
	LatencyMs  int64
	CreatedAt  time.Time
}

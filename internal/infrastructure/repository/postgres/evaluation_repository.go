package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urbcode/plan-assistant/internal/core/domain"
)

type EvaluationRepository struct {
	db *sql.DB
}

func NewEvaluationRepository(db *sql.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

func (r *EvaluationRepository) CreateRun(ctx context.Context, run *domain.ValidationRun) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO validation_runs (id, request_id, model_id, status, total_tests, started_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, run.ID, run.RequestID, run.ModelID, string(run.Status), run.TotalTests, run.StartedAt)
	if err != nil {
		return fmt.Errorf("insert validation run: %w", err)
	}
	return nil
}

func (r *EvaluationRepository) AppendResult(ctx context.Context, result domain.ValidationResult) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO validation_results (run_id, test_case_id, answer, is_correct, score, latency_ms, error_kind)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (run_id, test_case_id) DO NOTHING
`, result.RunID, result.TestCaseID, result.Answer, result.IsCorrect, result.Score, result.LatencyMs, result.ErrorKind)
	if err != nil {
		return fmt.Errorf("insert validation result: %w", err)
	}
	return nil
}

func (r *EvaluationRepository) FinishRun(ctx context.Context, run *domain.ValidationRun) error {
	endedAt := run.EndedAt
	if endedAt == nil {
		now := time.Now().UTC()
		endedAt = &now
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE validation_runs
SET status = $2, total_tests = $3, passed_tests = $4, overall_accuracy = $5, mean_latency_ms = $6, ended_at = $7
WHERE id = $1
`, run.ID, string(run.Status), run.TotalTests, run.PassedTests, run.OverallAccuracy, run.MeanLatencyMs, *endedAt)
	if err != nil {
		return fmt.Errorf("finish validation run: %w", err)
	}
	return nil
}

const runColumns = `id, request_id, model_id, status, total_tests, passed_tests, overall_accuracy, mean_latency_ms, started_at, ended_at`

func (r *EvaluationRepository) GetRun(ctx context.Context, runID string) (*domain.ValidationRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM validation_runs WHERE id = $1`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRunNotFound, "get run", fmt.Errorf("id %s", runID))
		}
		return nil, err
	}
	return run, nil
}

func (r *EvaluationRepository) ListRunsByRequest(ctx context.Context, requestID string) ([]domain.ValidationRun, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+runColumns+` FROM validation_runs WHERE request_id = $1 ORDER BY model_id
`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []domain.ValidationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func (r *EvaluationRepository) ListResults(ctx context.Context, runID string) ([]domain.ValidationResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT run_id, test_case_id, answer, is_correct, score, latency_ms, error_kind
FROM validation_results
WHERE run_id = $1
ORDER BY test_case_id
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []domain.ValidationResult
	for rows.Next() {
		var result domain.ValidationResult
		if err := rows.Scan(
			&result.RunID, &result.TestCaseID, &result.Answer,
			&result.IsCorrect, &result.Score, &result.LatencyMs, &result.ErrorKind,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*domain.ValidationRun, error) {
	var run domain.ValidationRun
	var status string
	var endedAt sql.NullTime

	err := row.Scan(
		&run.ID, &run.RequestID, &run.ModelID, &status,
		&run.TotalTests, &run.PassedTests, &run.OverallAccuracy, &run.MeanLatencyMs,
		&run.StartedAt, &endedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	return &run, nil
}

// TestCaseRepository loads evaluation questions with selector support.
type TestCaseRepository struct {
	db *sql.DB
}

func NewTestCaseRepository(db *sql.DB) *TestCaseRepository {
	return &TestCaseRepository{db: db}
}

func (r *TestCaseRepository) Select(ctx context.Context, selector domain.TestCaseSelector) ([]domain.TestCase, error) {
	query := `SELECT id, question, expected_keywords, reference_answer, category, difficulty FROM test_cases`
	var clauses []string
	var args []any

	if len(selector.IDs) > 0 {
		placeholders := make([]string, len(selector.IDs))
		for i, id := range selector.IDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, "id IN ("+strings.Join(placeholders, ",")+")")
	}
	if selector.Category != "" {
		args = append(args, selector.Category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	if selector.Difficulty != "" {
		args = append(args, selector.Difficulty)
		clauses = append(clauses, fmt.Sprintf("difficulty = $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	if selector.RandomN > 0 {
		args = append(args, selector.RandomN)
		query += fmt.Sprintf(" ORDER BY random() LIMIT $%d", len(args))
	} else {
		query += " ORDER BY id"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select test cases: %w", err)
	}
	defer rows.Close()

	var out []domain.TestCase
	for rows.Next() {
		var tc domain.TestCase
		var keywordsRaw []byte
		if err := rows.Scan(&tc.ID, &tc.Question, &keywordsRaw, &tc.ReferenceAnswer, &tc.Category, &tc.Difficulty); err != nil {
			return nil, fmt.Errorf("scan test case: %w", err)
		}
		if err := json.Unmarshal(keywordsRaw, &tc.ExpectedKeywords); err != nil {
			return nil, fmt.Errorf("unmarshal expected keywords: %w", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate test cases: %w", err)
	}
	return out, nil
}

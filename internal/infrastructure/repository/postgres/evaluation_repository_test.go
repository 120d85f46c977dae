package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/urbcode/plan-assistant/internal/core/domain"
)

func TestEvaluationRepositoryCreateAndFinishRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewEvaluationRepository(db)
	started := time.Now().UTC()
	ended := started.Add(time.Minute)
	run := domain.ValidationRun{
		ID:         "run-1",
		RequestID:  "req-1",
		ModelID:    "model-a",
		Status:     domain.RunStatusRunning,
		TotalTests: 10,
		StartedAt:  started,
	}

	mock.ExpectExec("INSERT INTO validation_runs").
		WithArgs("run-1", "req-1", "model-a", "running", 10, started).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.CreateRun(context.Background(), &run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	run.Status = domain.RunStatusCompleted
	run.PassedTests = 8
	run.OverallAccuracy = 0.8
	run.MeanLatencyMs = 120.5
	run.EndedAt = &ended

	mock.ExpectExec("UPDATE validation_runs").
		WithArgs("run-1", "completed", 10, 8, 0.8, 120.5, ended).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.FinishRun(context.Background(), &run); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEvaluationRepositoryGetRunNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewEvaluationRepository(db)
	mock.ExpectQuery("FROM validation_runs").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetRun(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrRunNotFound) {
		t.Fatalf("expected run-not-found, got %v", err)
	}
}

func TestTestCaseRepositorySelectByCategoryAndDifficulty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewTestCaseRepository(db)
	rows := sqlmock.NewRows([]string{"id", "question", "expected_keywords", "reference_answer", "category", "difficulty"}).
		AddRow("tc-1", "artigo 5 da luos", []byte(`["LUOS","artigo","5"]`), "", "artigos", "facil")

	mock.ExpectQuery("FROM test_cases").
		WithArgs("artigos", "facil").
		WillReturnRows(rows)

	cases, err := repo.Select(context.Background(), domain.TestCaseSelector{Category: "artigos", Difficulty: "facil"})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(cases) != 1 || len(cases[0].ExpectedKeywords) != 3 {
		t.Fatalf("unexpected cases: %+v", cases)
	}
}

func TestTestCaseRepositorySelectByIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewTestCaseRepository(db)
	rows := sqlmock.NewRows([]string{"id", "question", "expected_keywords", "reference_answer", "category", "difficulty"}).
		AddRow("tc-1", "q1", []byte(`[]`), "ref", "", "").
		AddRow("tc-2", "q2", []byte(`[]`), "ref", "", "")

	mock.ExpectQuery("id IN").
		WithArgs("tc-1", "tc-2").
		WillReturnRows(rows)

	cases, err := repo.Select(context.Background(), domain.TestCaseSelector{IDs: []string{"tc-1", "tc-2"}})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
}

func TestTestCaseRepositorySelectRandomN(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewTestCaseRepository(db)
	mock.ExpectQuery("ORDER BY random").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "question", "expected_keywords", "reference_answer", "category", "difficulty"}))

	if _, err := repo.Select(context.Background(), domain.TestCaseSelector{RandomN: 5}); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

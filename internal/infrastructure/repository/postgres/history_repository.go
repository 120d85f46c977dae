package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/urbcode/plan-assistant/internal/core/domain"
)

// HistoryRepository is the audit sink behind the answer path. Callers treat
// Append as fire-and-forget; the error return is only ever logged.
type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Append(ctx context.Context, audit domain.QueryAudit) error {
	createdAt := audit.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO query_history (question, answer, confidence, strategy, model_id, latency_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, audit.Question, audit.Answer, audit.Confidence, audit.Strategy, audit.ModelID, audit.LatencyMs, createdAt)
	if err != nil {
		return fmt.Errorf("insert query history: %w", err)
	}
	return nil
}

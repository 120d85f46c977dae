package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/urbcode/plan-assistant/internal/core/domain"
)

// CorpusRepository reads the corpus_records table kept current by the
// ingestion pipeline. Rows carry an optional pgvector embedding and a lookup
// key (article number or neighborhood name).
type CorpusRepository struct {
	db *sql.DB
}

func NewCorpusRepository(db *sql.DB) *CorpusRepository {
	return &CorpusRepository{db: db}
}

const corpusColumns = `kind, content, COALESCE(order_key, 0), COALESCE(document_type, '')`

func (r *CorpusRepository) FindByKey(
	ctx context.Context,
	kind domain.SourceKind,
	key, documentType string,
) ([]domain.RetrievedRecord, error) {
	query := `
SELECT ` + corpusColumns + `
FROM corpus_records
WHERE kind = $1 AND lower(key_text) = lower($2)`
	args := []any{string(kind), key}
	if documentType != "" {
		query += ` AND document_type = $3`
		args = append(args, documentType)
	}
	query += ` ORDER BY order_key, content`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find by key: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows, 0)
}

func (r *CorpusRepository) SimilaritySearch(
	ctx context.Context,
	vector []float32,
	threshold float64,
	limit int,
	documentType string,
) ([]domain.RetrievedRecord, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("similarity search: empty query vector")
	}
	if limit <= 0 {
		limit = 8
	}

	query := `
SELECT ` + corpusColumns + `, 1 - (embedding <=> $1::vector) AS score
FROM corpus_records
WHERE embedding IS NOT NULL
  AND 1 - (embedding <=> $1::vector) >= $2`
	args := []any{vectorLiteral(vector), threshold}
	if documentType != "" {
		query += ` AND document_type = $4`
		args = append(args, limit, documentType)
	} else {
		args = append(args, limit)
	}
	query += ` ORDER BY embedding <=> $1::vector LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows, 1)
}

func (r *CorpusRepository) PatternSearch(
	ctx context.Context,
	tokens []string,
	limit int,
	documentType string,
) ([]domain.RetrievedRecord, error) {
	patterns := likePatterns(tokens)
	if len(patterns) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 8
	}

	var conditions []string
	args := make([]any, 0, len(patterns)+2)
	for _, pattern := range patterns {
		args = append(args, pattern)
		conditions = append(conditions, fmt.Sprintf("content ILIKE $%d", len(args)))
	}

	query := `
SELECT ` + corpusColumns + `
FROM corpus_records
WHERE (` + strings.Join(conditions, " OR ") + `)`
	if documentType != "" {
		args = append(args, documentType)
		query += fmt.Sprintf(" AND document_type = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY order_key, content LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pattern search: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows, 0)
}

// likePatterns keeps tokens long enough to be selective; two-letter
// Portuguese function words would match almost every row.
func likePatterns(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if len([]rune(token)) < 3 {
			continue
		}
		out = append(out, "%"+token+"%")
	}
	return out
}

// scanRecords reads rows shaped by corpusColumns; extraCols 1 means a
// trailing score column is present.
func scanRecords(rows *sql.Rows, extraCols int) ([]domain.RetrievedRecord, error) {
	var out []domain.RetrievedRecord
	for rows.Next() {
		var record domain.RetrievedRecord
		var kind string

		dest := []any{&kind, &record.Content, &record.OrderKey, &record.DocumentType}
		if extraCols == 1 {
			dest = append(dest, &record.Score)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan corpus record: %w", err)
		}
		record.Kind = domain.SourceKind(kind)
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corpus records: %w", err)
	}
	return out, nil
}

// vectorLiteral renders a pgvector input literal, e.g. [0.1,0.2,0.3].
func vectorLiteral(vector []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

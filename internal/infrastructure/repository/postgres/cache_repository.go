package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/urbcode/plan-assistant/internal/core/domain"
)

// CacheRepository backs the response cache with a single Postgres table.
// Expired rows count as misses but stay until the external cleanup sweep;
// concurrent writers race benignly because the upsert keeps the newest row.
type CacheRepository struct {
	db  *sql.DB
	ttl time.Duration
}

func NewCacheRepository(db *sql.DB, ttl time.Duration) *CacheRepository {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &CacheRepository{db: db, ttl: ttl}
}

// Get returns a fresh entry and bumps its hit count in the same statement,
// so a hit is observed exactly once per read.
func (r *CacheRepository) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE response_cache
SET hit_count = hit_count + 1
WHERE cache_key = $1 AND created_at > $2
RETURNING cache_key, answer, confidence, article_count, hierarchy_count, section_count, embedding_model, hit_count, created_at
`, key, time.Now().UTC().Add(-r.ttl))

	var entry domain.CacheEntry
	err := row.Scan(
		&entry.Key, &entry.Answer, &entry.Confidence,
		&entry.SourceCounts.Articles, &entry.SourceCounts.Hierarchy, &entry.SourceCounts.Sections,
		&entry.EmbeddingModel, &entry.HitCount, &entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CacheEntry{}, false, nil
		}
		return domain.CacheEntry{}, false, fmt.Errorf("cache get: %w", err)
	}
	return entry, true, nil
}

// Put upserts the entry. A strictly newer created_at replaces the stored
// row; ties and older writes keep the existing entry.
func (r *CacheRepository) Put(ctx context.Context, entry domain.CacheEntry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO response_cache (
	cache_key, answer, confidence, article_count, hierarchy_count, section_count, embedding_model, hit_count, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,0,$8)
ON CONFLICT (cache_key) DO UPDATE SET
	answer = EXCLUDED.answer,
	confidence = EXCLUDED.confidence,
	article_count = EXCLUDED.article_count,
	hierarchy_count = EXCLUDED.hierarchy_count,
	section_count = EXCLUDED.section_count,
	embedding_model = EXCLUDED.embedding_model,
	created_at = EXCLUDED.created_at
WHERE response_cache.created_at < EXCLUDED.created_at
`,
		entry.Key, entry.Answer, entry.Confidence,
		entry.SourceCounts.Articles, entry.SourceCounts.Hierarchy, entry.SourceCounts.Sections,
		entry.EmbeddingModel, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Cleanup deletes aged entries. Without force, entries that are still being
// hit survive the sweep even when old.
func (r *CacheRepository) Cleanup(ctx context.Context, maxAgeHours, minHitCount int, force bool) (int64, error) {
	if maxAgeHours <= 0 {
		maxAgeHours = 24 * 7
	}
	cutoff := time.Now().UTC().Add(-time.Duration(maxAgeHours) * time.Hour)

	query := `DELETE FROM response_cache WHERE created_at < $1`
	args := []any{cutoff}
	if !force {
		query += ` AND hit_count < $2`
		args = append(args, minHitCount)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cache cleanup: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache cleanup rows affected: %w", err)
	}
	return deleted, nil
}

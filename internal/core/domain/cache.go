package domain

import "time"

// CacheEntry is one memoized synthesis. Entries are written once on synthesis
// success; only the hit count mutates afterwards. Writes never replace a newer
// entry with an older one (last writer by CreatedAt wins, ties keep existing).
type CacheEntry struct {
	Key            string
	Answer         string
	Confidence     float64
	SourceCounts   SourceCounts
	EmbeddingModel string
	HitCount       int
	CreatedAt      time.Time
}

// Fresh reports whether the entry is still inside its validity window.
func (e CacheEntry) Fresh(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) < ttl
}

package usecase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/urbcode/plan-assistant/internal/core/domain"
	"github.com/urbcode/plan-assistant/internal/core/ports"
)

type FallbackConfig struct {
	TopK             int
	PrimaryThreshold float64
	LoweredThreshold float64
	StrategyTimeout  time.Duration
}

func (c FallbackConfig) normalize() FallbackConfig {
	if c.TopK <= 0 {
		c.TopK = 8
	}
	if c.PrimaryThreshold <= 0 {
		c.PrimaryThreshold = 0.70
	}
	if c.LoweredThreshold <= 0 || c.LoweredThreshold > c.PrimaryThreshold {
		c.LoweredThreshold = 0.65
	}
	if c.StrategyTimeout <= 0 {
		c.StrategyTimeout = 10 * time.Second
	}
	return c
}

// FallbackChain tries retrieval strategies in a fixed order until one yields
// evidence: exact-key variants, vector similarity at the primary threshold,
// one vector retry at a lowered threshold, then pattern search. Strategy order
// is load-bearing: the result confidence depends on which tier won.
type FallbackChain struct {
	embedder ports.Embedder
	corpus   ports.CorpusStore
	cfg      FallbackConfig
}

func NewFallbackChain(embedder ports.Embedder, corpus ports.CorpusStore, cfg FallbackConfig) *FallbackChain {
	return &FallbackChain{
		embedder: embedder,
		corpus:   corpus,
		cfg:      cfg.normalize(),
	}
}

// Retrieve never returns an error: a failing or timed-out strategy counts as
// empty and the chain moves on. When every tier comes back empty the explicit
// no-evidence result is returned.
func (c *FallbackChain) Retrieve(ctx context.Context, query domain.Query) domain.RetrievalResult {
	if query.HasExactReference() {
		if result, ok := c.exactKey(ctx, query); ok {
			return result
		}
	}

	vector, embedOK := c.embedQuery(ctx, query)
	if embedOK {
		if result, ok := c.vectorSearch(ctx, query, vector, c.cfg.PrimaryThreshold, domain.TierVectorPrimary); ok {
			return result
		}
		// Only the vector strategy gets a second, lowered-threshold attempt.
		if result, ok := c.vectorSearch(ctx, query, vector, c.cfg.LoweredThreshold, domain.TierVectorLowered); ok {
			return result
		}
	}

	if result, ok := c.patternSearch(ctx, query); ok {
		return result
	}
	return domain.NoEvidence()
}

type keyedRecord struct {
	record      domain.RetrievedRecord
	variantRank int
}

func (c *FallbackChain) exactKey(ctx context.Context, query domain.Query) (domain.RetrievalResult, bool) {
	byContent := make(map[string]keyedRecord)

	lookup := func(kind domain.SourceKind, reference string) {
		for _, variant := range domain.KeyVariants(reference) {
			records, err := c.findByKey(ctx, kind, variant.Value, query.DocumentType)
			if err != nil {
				slog.Warn("exact_key_lookup_failed", "kind", string(kind), "key", variant.Value, "error", err)
				continue
			}
			for _, record := range records {
				existing, ok := byContent[record.Content]
				if !ok || variant.Rank < existing.variantRank {
					byContent[record.Content] = keyedRecord{record: record, variantRank: variant.Rank}
				}
			}
		}
	}

	for _, ref := range query.ArticleRefs {
		lookup(domain.SourceArticle, ref)
	}
	for _, ref := range query.NeighborhoodRefs {
		lookup(domain.SourceSection, ref)
	}

	if len(byContent) == 0 {
		return domain.RetrievalResult{}, false
	}

	keyed := make([]keyedRecord, 0, len(byContent))
	for _, kr := range byContent {
		keyed = append(keyed, kr)
	}
	sort.Slice(keyed, func(i, j int) bool {
		if keyed[i].variantRank != keyed[j].variantRank {
			return keyed[i].variantRank < keyed[j].variantRank
		}
		if keyed[i].record.OrderKey != keyed[j].record.OrderKey {
			return keyed[i].record.OrderKey < keyed[j].record.OrderKey
		}
		return keyed[i].record.Content < keyed[j].record.Content
	})

	records := make([]domain.RetrievedRecord, 0, len(keyed))
	for _, kr := range keyed {
		records = append(records, kr.record)
	}

	return domain.RetrievalResult{
		Records:    records,
		Strategy:   domain.StrategyExactKey,
		Tier:       domain.TierExactKey,
		Confidence: domain.TierConfidence(domain.TierExactKey, 0),
	}, true
}

func (c *FallbackChain) embedQuery(ctx context.Context, query domain.Query) ([]float32, bool) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.StrategyTimeout)
	defer cancel()

	vector, err := c.embedder.EmbedQuery(callCtx, query.NormalizedText)
	if err != nil || len(vector) == 0 {
		// Degrade to pattern search instead of failing the whole request.
		slog.Warn("embedding_unavailable", "error", err)
		return nil, false
	}
	return vector, true
}

func (c *FallbackChain) vectorSearch(
	ctx context.Context,
	query domain.Query,
	vector []float32,
	threshold float64,
	tier domain.StrategyTier,
) (domain.RetrievalResult, bool) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.StrategyTimeout)
	defer cancel()

	records, err := c.corpus.SimilaritySearch(callCtx, vector, threshold, c.cfg.TopK, query.DocumentType)
	if err != nil {
		slog.Warn("similarity_search_failed", "tier", tier.String(), "error", err)
		return domain.RetrievalResult{}, false
	}
	if len(records) == 0 {
		return domain.RetrievalResult{}, false
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		if records[i].OrderKey != records[j].OrderKey {
			return records[i].OrderKey < records[j].OrderKey
		}
		return records[i].Content < records[j].Content
	})

	if tier != domain.TierVectorPrimary {
		for i := range records {
			records[i].FromFallback = true
		}
	}

	return domain.RetrievalResult{
		Records:    records,
		Strategy:   tier.String(),
		Tier:       tier,
		Confidence: domain.TierConfidence(tier, records[0].Score),
	}, true
}

func (c *FallbackChain) patternSearch(ctx context.Context, query domain.Query) (domain.RetrievalResult, bool) {
	tokens := query.Tokens()
	if len(tokens) == 0 {
		return domain.RetrievalResult{}, false
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.StrategyTimeout)
	defer cancel()

	records, err := c.corpus.PatternSearch(callCtx, tokens, c.cfg.TopK, query.DocumentType)
	if err != nil {
		slog.Warn("pattern_search_failed", "error", err)
		return domain.RetrievalResult{}, false
	}
	if len(records) == 0 {
		return domain.RetrievalResult{}, false
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].OrderKey != records[j].OrderKey {
			return records[i].OrderKey < records[j].OrderKey
		}
		return records[i].Content < records[j].Content
	})
	for i := range records {
		records[i].FromFallback = true
	}

	return domain.RetrievalResult{
		Records:    records,
		Strategy:   domain.StrategyPattern,
		Tier:       domain.TierPattern,
		Confidence: domain.TierConfidence(domain.TierPattern, 0),
	}, true
}

func (c *FallbackChain) findByKey(ctx context.Context, kind domain.SourceKind, key, documentType string) ([]domain.RetrievedRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.StrategyTimeout)
	defer cancel()
	return c.corpus.FindByKey(callCtx, kind, key, documentType)
}

package domain

// SourceKind tags the corpus table a retrieved record came from.
type SourceKind string

const (
	SourceArticle   SourceKind = "article"
	SourceHierarchy SourceKind = "hierarchy"
	SourceSection   SourceKind = "section"
)

// Hierarchy nodes (parts, titles, chapters) share the article order-key space
// but live in a reserved high range so they sort after real articles and can
// be filtered as a distinct class.
const HierarchyOrderKeyFloor = 9000

// RetrievedRecord is one piece of supporting evidence. Records are immutable;
// they live for the duration of a single query.
type RetrievedRecord struct {
	Kind         SourceKind `json:"kind"`
	Content      string     `json:"content"`
	OrderKey     int        `json:"order_key,omitempty"`
	DocumentType string     `json:"document_type,omitempty"`
	Score        float64    `json:"score,omitempty"`
	FromFallback bool       `json:"from_fallback,omitempty"`
}

func (r RetrievedRecord) IsHierarchy() bool {
	return r.Kind == SourceHierarchy || r.OrderKey >= HierarchyOrderKeyFloor
}

// StrategyTier orders retrieval strategies from most to least trusted.
// Confidence semantics depend on this order, so it is never reshuffled.
type StrategyTier int

const (
	TierExactKey StrategyTier = iota
	TierVectorPrimary
	TierVectorLowered
	TierPattern
	TierNone
)

const (
	StrategyExactKey      = "exact_key"
	StrategyVectorPrimary = "vector_primary"
	StrategyVectorLowered = "vector_lowered"
	StrategyPattern       = "pattern"
	StrategyNone          = "none"
)

func (t StrategyTier) String() string {
	switch t {
	case TierExactKey:
		return StrategyExactKey
	case TierVectorPrimary:
		return StrategyVectorPrimary
	case TierVectorLowered:
		return StrategyVectorLowered
	case TierPattern:
		return StrategyPattern
	default:
		return StrategyNone
	}
}

// tierCeilings cap confidence per tier. Exact-key hits carry a fixed high
// confidence because no similarity score exists for them; vector tiers scale
// the top similarity so equal-similarity results still rank primary above
// lowered above pattern.
var tierCeilings = map[StrategyTier]float64{
	TierExactKey:      0.95,
	TierVectorPrimary: 0.85,
	TierVectorLowered: 0.75,
	TierPattern:       0.50,
	TierNone:          0,
}

// RetrievalResult is the ordered evidence set plus which strategy produced it.
type RetrievalResult struct {
	Records    []RetrievedRecord
	Strategy   string
	Tier       StrategyTier
	Confidence float64
}

// NoEvidence is the explicit terminal state of the fallback chain. It is a
// result, not an error: callers render a "not found" message instead of
// fabricating an answer.
func NoEvidence() RetrievalResult {
	return RetrievalResult{Strategy: StrategyNone, Tier: TierNone, Confidence: 0}
}

func (r RetrievalResult) IsEmpty() bool {
	return len(r.Records) == 0
}

// TierConfidence derives the result confidence from the winning tier and the
// best similarity score of its records.
func TierConfidence(tier StrategyTier, topSimilarity float64) float64 {
	ceiling := tierCeilings[tier]
	switch tier {
	case TierExactKey, TierPattern, TierNone:
		return ceiling
	default:
		if topSimilarity < 0 {
			topSimilarity = 0
		}
		if topSimilarity > 1 {
			topSimilarity = 1
		}
		return ceiling * topSimilarity
	}
}

// SourceCounts tallies how many records of each kind supported an answer.
type SourceCounts struct {
	Articles  int `json:"articles"`
	Hierarchy int `json:"hierarchy"`
	Sections  int `json:"sections"`
}

func CountSources(records []RetrievedRecord) SourceCounts {
	var counts SourceCounts
	for _, record := range records {
		switch {
		case record.IsHierarchy():
			counts.Hierarchy++
		case record.Kind == SourceArticle:
			counts.Articles++
		default:
			counts.Sections++
		}
	}
	return counts
}

func (c SourceCounts) Total() int {
	return c.Articles + c.Hierarchy + c.Sections
}

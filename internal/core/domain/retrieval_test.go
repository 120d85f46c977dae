package domain

import "testing"

func TestTierConfidenceStrictlyDecreasesAcrossTiers(t *testing.T) {
	const similarity = 0.8

	exact := TierConfidence(TierExactKey, similarity)
	primary := TierConfidence(TierVectorPrimary, similarity)
	lowered := TierConfidence(TierVectorLowered, similarity)
	pattern := TierConfidence(TierPattern, similarity)
	none := TierConfidence(TierNone, similarity)

	if !(exact > primary && primary > lowered && lowered > pattern && pattern > none) {
		t.Fatalf("confidence must decrease with tier: exact=%v primary=%v lowered=%v pattern=%v none=%v",
			exact, primary, lowered, pattern, none)
	}
	if none != 0 {
		t.Fatalf("no-evidence confidence must be 0, got %v", none)
	}
}

func TestTierConfidenceClampsSimilarity(t *testing.T) {
	if got := TierConfidence(TierVectorPrimary, 1.5); got != 0.85 {
		t.Fatalf("expected clamp to ceiling 0.85, got %v", got)
	}
	if got := TierConfidence(TierVectorPrimary, -0.2); got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}
}

func TestHierarchyDetectionByOrderKey(t *testing.T) {
	record := RetrievedRecord{Kind: SourceArticle, OrderKey: HierarchyOrderKeyFloor + 1}
	if !record.IsHierarchy() {
		t.Fatalf("order key >= %d must classify as hierarchy", HierarchyOrderKeyFloor)
	}
}

func TestCountSources(t *testing.T) {
	counts := CountSources([]RetrievedRecord{
		{Kind: SourceArticle, OrderKey: 5},
		{Kind: SourceArticle, OrderKey: 9100},
		{Kind: SourceHierarchy},
		{Kind: SourceSection},
	})
	if counts.Articles != 1 || counts.Hierarchy != 2 || counts.Sections != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if counts.Total() != 4 {
		t.Fatalf("expected total 4, got %d", counts.Total())
	}
}

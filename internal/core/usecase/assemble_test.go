package usecase

import (
	"strings"
	"testing"

	"github.com/urbcode/plan-assistant/internal/core/domain"
)

func TestAssembleContextGroupsAndOrders(t *testing.T) {
	records := []domain.RetrievedRecord{
		{Kind: domain.SourceArticle, OrderKey: 12, Content: "Art. 12 ..."},
		{Kind: domain.SourceSection, Content: "trecho sobre zoneamento"},
		{Kind: domain.SourceArticle, OrderKey: 3, Content: "Art. 3 ..."},
		{Kind: domain.SourceHierarchy, OrderKey: 9001, Content: "TÍTULO I — Das Disposições"},
	}

	assembled := AssembleContext(records, 0)

	hierarchyIdx := strings.Index(assembled, "TÍTULO I")
	art3Idx := strings.Index(assembled, "Art. 3")
	art12Idx := strings.Index(assembled, "Art. 12")
	sectionIdx := strings.Index(assembled, "trecho sobre")

	if hierarchyIdx < 0 || art3Idx < 0 || art12Idx < 0 || sectionIdx < 0 {
		t.Fatalf("missing content in assembled context:\n%s", assembled)
	}
	if !(hierarchyIdx < art3Idx && art3Idx < art12Idx && art12Idx < sectionIdx) {
		t.Fatalf("wrong ordering:\n%s", assembled)
	}
}

func TestAssembleContextDropsSectionsBeforeArticles(t *testing.T) {
	records := []domain.RetrievedRecord{
		{Kind: domain.SourceArticle, OrderKey: 1, Content: strings.Repeat("a", 120)},
		{Kind: domain.SourceSection, Content: strings.Repeat("s", 120)},
		{Kind: domain.SourceSection, Content: strings.Repeat("z", 120)},
	}

	assembled := AssembleContext(records, 300)

	if !strings.Contains(assembled, strings.Repeat("a", 120)) {
		t.Fatalf("article must survive truncation:\n%s", assembled)
	}
	if strings.Contains(assembled, strings.Repeat("z", 120)) {
		t.Fatalf("lowest-ranked section must be dropped first:\n%s", assembled)
	}
}

func TestAssembleContextDropsArticlesByRetrievalRank(t *testing.T) {
	best := "Art. 50 fixa o coeficiente de aproveitamento máximo por zona"
	worse := "Art. 2 define os termos usados nesta lei"
	records := []domain.RetrievedRecord{
		{Kind: domain.SourceArticle, OrderKey: 50, Content: best},
		{Kind: domain.SourceArticle, OrderKey: 2, Content: worse},
	}

	// Room for the heading and one article only.
	budget := len("ARTIGOS:") + 1 + len(best) + 2

	assembled := AssembleContext(records, budget)

	if !strings.Contains(assembled, best) {
		t.Fatalf("best-ranked article must survive truncation:\n%s", assembled)
	}
	if strings.Contains(assembled, worse) {
		t.Fatalf("worst-ranked article must be dropped regardless of article number:\n%s", assembled)
	}
}

func TestAssembleContextNeverTruncatesHierarchy(t *testing.T) {
	records := []domain.RetrievedRecord{
		{Kind: domain.SourceHierarchy, OrderKey: 9001, Content: strings.Repeat("h", 200)},
		{Kind: domain.SourceArticle, OrderKey: 1, Content: strings.Repeat("a", 200)},
	}

	assembled := AssembleContext(records, 100)

	if !strings.Contains(assembled, strings.Repeat("h", 200)) {
		t.Fatalf("hierarchy context must never be truncated:\n%s", assembled)
	}
	if strings.Contains(assembled, strings.Repeat("a", 200)) {
		t.Fatalf("article should have been dropped to honor the budget:\n%s", assembled)
	}
}

func TestAssembleContextEmptyRecords(t *testing.T) {
	if got := AssembleContext(nil, 1000); got != "" {
		t.Fatalf("expected empty context, got %q", got)
	}
}

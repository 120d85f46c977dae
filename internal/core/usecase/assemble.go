package usecase

import (
	"sort"
	"strings"

	"github.com/urbcode/plan-assistant/internal/core/domain"
)

const (
	hierarchyHeading = "ESTRUTURA DO DOCUMENTO:"
	articleHeading   = "ARTIGOS:"
	sectionHeading   = "TRECHOS COMPLEMENTARES:"
)

// AssembleContext renders retrieved records into the synthesis context.
// Hierarchy nodes come first so the reader is oriented before article text,
// then articles in numeric order, then supplementary sections by retrieval
// rank. The character budget is enforced by dropping lowest-ranked sections
// first, then lowest-ranked articles. Hierarchy context is never truncated.
func AssembleContext(records []domain.RetrievedRecord, charBudget int) string {
	if len(records) == 0 {
		return ""
	}

	var hierarchy, sections []domain.RetrievedRecord
	var articles []rankedRecord
	for i, record := range records {
		switch {
		case record.IsHierarchy():
			hierarchy = append(hierarchy, record)
		case record.Kind == domain.SourceArticle:
			articles = append(articles, rankedRecord{record: record, rank: i})
		default:
			sections = append(sections, record)
		}
	}

	sort.SliceStable(articles, func(i, j int) bool {
		if articles[i].record.OrderKey != articles[j].record.OrderKey {
			return articles[i].record.OrderKey < articles[j].record.OrderKey
		}
		return articles[i].record.Content < articles[j].record.Content
	})
	// Hierarchy and sections keep retrieval rank.

	if charBudget > 0 {
		total := func() int {
			return groupLength(hierarchyHeading, hierarchy) +
				rankedGroupLength(articleHeading, articles) +
				groupLength(sectionHeading, sections)
		}
		for total() > charBudget && len(sections) > 0 {
			sections = sections[:len(sections)-1]
		}
		// Articles render in numeric order but must be dropped by
		// retrieval rank, not by article number.
		for total() > charBudget && len(articles) > 0 {
			articles = dropWorstRanked(articles)
		}
	}

	articleRecords := make([]domain.RetrievedRecord, len(articles))
	for i, article := range articles {
		articleRecords[i] = article.record
	}

	var b strings.Builder
	writeGroup(&b, hierarchyHeading, hierarchy)
	writeGroup(&b, articleHeading, articleRecords)
	writeGroup(&b, sectionHeading, sections)
	return strings.TrimRight(b.String(), "\n")
}

// rankedRecord pairs a record with its position in the retrieval result so
// truncation can honor retrieval rank after the numeric re-sort.
type rankedRecord struct {
	record domain.RetrievedRecord
	rank   int
}

func dropWorstRanked(articles []rankedRecord) []rankedRecord {
	worst := 0
	for i := 1; i < len(articles); i++ {
		if articles[i].rank > articles[worst].rank {
			worst = i
		}
	}
	return append(articles[:worst], articles[worst+1:]...)
}

func rankedGroupLength(heading string, articles []rankedRecord) int {
	if len(articles) == 0 {
		return 0
	}
	n := len(heading) + 1
	for _, article := range articles {
		n += len(article.record.Content) + 2
	}
	return n
}

func groupLength(heading string, records []domain.RetrievedRecord) int {
	if len(records) == 0 {
		return 0
	}
	n := len(heading) + 1
	for _, record := range records {
		n += len(record.Content) + 2
	}
	return n
}

func writeGroup(b *strings.Builder, heading string, records []domain.RetrievedRecord) {
	if len(records) == 0 {
		return
	}
	b.WriteString(heading)
	b.WriteString("\n")
	for _, record := range records {
		b.WriteString(record.Content)
		b.WriteString("\n\n")
	}
}

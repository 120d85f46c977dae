package usecase

import (
	"strings"

	"github.com/urbcode/plan-assistant/internal/core/domain"
)

// Scorer grades an actual answer against a test case, returning [0,1].
// It is pluggable so other corpora or languages can swap scoring strategy
// without touching the harness loop.
type Scorer interface {
	Score(testCase domain.TestCase, actual string) float64
}

// KeywordScorer scores by the fraction of expected keywords present
// case-insensitively in the answer.
type KeywordScorer struct{}

func (KeywordScorer) Score(testCase domain.TestCase, actual string) float64 {
	if len(testCase.ExpectedKeywords) == 0 {
		return 0
	}
	haystack := strings.ToLower(actual)
	found := 0
	for _, keyword := range testCase.ExpectedKeywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(keyword)) {
			found++
		}
	}
	return float64(found) / float64(len(testCase.ExpectedKeywords))
}

// OverlapScorer falls back to bag-of-words overlap against a reference
// answer, capped at 1.0.
type OverlapScorer struct{}

func (OverlapScorer) Score(testCase domain.TestCase, actual string) float64 {
	reference := wordSet(testCase.ReferenceAnswer)
	if len(reference) == 0 {
		return 0
	}
	answer := wordSet(actual)
	matches := 0
	for word := range reference {
		if _, ok := answer[word]; ok {
			matches++
		}
	}
	score := float64(matches) / float64(len(reference))
	if score > 1 {
		score = 1
	}
	return score
}

// DefaultScorer applies keyword scoring when the test case declares expected
// keywords and overlap scoring otherwise.
type DefaultScorer struct {
	keywords KeywordScorer
	overlap  OverlapScorer
}

func (s DefaultScorer) Score(testCase domain.TestCase, actual string) float64 {
	if len(testCase.ExpectedKeywords) > 0 {
		return s.keywords.Score(testCase, actual)
	}
	return s.overlap.Score(testCase, actual)
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	out := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		trimmed := strings.Trim(field, ".,;:!?()[]\"'")
		if trimmed != "" {
			out[trimmed] = struct{}{}
		}
	}
	return out
}

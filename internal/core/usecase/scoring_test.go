package usecase

import (
	"testing"

	"github.com/urbcode/plan-assistant/internal/core/domain"
)

func TestKeywordScorerCaseInsensitive(t *testing.T) {
	testCase := domain.TestCase{
		ExpectedKeywords: []string{"LUOS", "artigo", "5"},
	}
	score := KeywordScorer{}.Score(testCase, "O Artigo 5 da luos estabelece...")
	if score != 1.0 {
		t.Fatalf("expected score 1.0, got %v", score)
	}
}

func TestKeywordScorerPartialMatch(t *testing.T) {
	testCase := domain.TestCase{
		ExpectedKeywords: []string{"gabarito", "recuo", "afastamento", "taxa"},
	}
	score := KeywordScorer{}.Score(testCase, "O gabarito máximo e o recuo frontal são definidos por zona.")
	if score != 0.5 {
		t.Fatalf("expected score 0.5, got %v", score)
	}
}

func TestOverlapScorerAgainstReference(t *testing.T) {
	testCase := domain.TestCase{
		ReferenceAnswer: "coeficiente de utilização",
	}
	score := OverlapScorer{}.Score(testCase, "O coeficiente básico de utilização do solo é 1.0")
	if score != 1.0 {
		t.Fatalf("expected full overlap capped at 1.0, got %v", score)
	}
}

func TestOverlapScorerEmptyReference(t *testing.T) {
	if score := (OverlapScorer{}).Score(domain.TestCase{}, "qualquer coisa"); score != 0 {
		t.Fatalf("expected 0 with no reference, got %v", score)
	}
}

func TestDefaultScorerPrefersKeywords(t *testing.T) {
	testCase := domain.TestCase{
		ExpectedKeywords: []string{"zona"},
		ReferenceAnswer:  "texto completamente diferente",
	}
	if score := (DefaultScorer{}).Score(testCase, "a zona definida"); score != 1.0 {
		t.Fatalf("keyword path must win when keywords declared, got %v", score)
	}
}

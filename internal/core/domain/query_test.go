package domain

import (
	"reflect"
	"testing"
)

func TestNewQueryExtractsArticleReferences(t *testing.T) {
	q := NewQuery("O que diz o Artigo 42 da LUOS sobre gabarito?", "")

	if q.NormalizedText != "o que diz o artigo 42 da luos sobre gabarito?" {
		t.Fatalf("unexpected normalized text: %q", q.NormalizedText)
	}
	if !reflect.DeepEqual(q.ArticleRefs, []string{"42"}) {
		t.Fatalf("expected article ref [42], got %v", q.ArticleRefs)
	}
	if q.DocumentType != DocumentTypeLUOS {
		t.Fatalf("expected LUOS document type, got %q", q.DocumentType)
	}
	if !q.HasExactReference() {
		t.Fatalf("expected exact reference")
	}
}

func TestNewQueryDetectsPlanoDiretor(t *testing.T) {
	q := NewQuery("Qual o objetivo do plano diretor?", "")
	if q.DocumentType != DocumentTypePDUS {
		t.Fatalf("expected PDUS, got %q", q.DocumentType)
	}
}

func TestNewQueryExplicitFilterWinsOverDetection(t *testing.T) {
	q := NewQuery("artigo 5 da luos", "pdus")
	if q.DocumentType != DocumentTypePDUS {
		t.Fatalf("expected explicit filter PDUS, got %q", q.DocumentType)
	}
}

func TestNewQueryExtractsNeighborhood(t *testing.T) {
	q := NewQuery("Qual o coeficiente do bairro de Boa Viagem?", "")
	if len(q.NeighborhoodRefs) != 1 || q.NeighborhoodRefs[0] != "Boa Viagem" {
		t.Fatalf("expected [Boa Viagem], got %v", q.NeighborhoodRefs)
	}
}

func TestCacheKeyIncludesDocumentFilter(t *testing.T) {
	plain := NewQuery("altura máxima", "")
	filtered := NewQuery("altura máxima", "LUOS")
	if plain.CacheKey() == filtered.CacheKey() {
		t.Fatalf("filtered and unfiltered queries must not share cache keys")
	}
	if filtered.CacheKey() != "altura máxima|LUOS" {
		t.Fatalf("unexpected cache key: %q", filtered.CacheKey())
	}
}

func TestKeyVariantsRankOrder(t *testing.T) {
	variants := KeyVariants("05")

	if variants[0].Value != "05" || variants[0].Rank != VariantRankOriginal {
		t.Fatalf("first variant must be the original string, got %+v", variants[0])
	}

	wantValues := map[string]bool{"05": true, "5": true, "0005": true}
	for _, v := range variants {
		if !wantValues[v.Value] {
			t.Fatalf("unexpected variant %q", v.Value)
		}
	}
	for i := 1; i < len(variants); i++ {
		if variants[i].Rank < variants[i-1].Rank {
			t.Fatalf("variants out of rank order: %+v", variants)
		}
	}
}

func TestKeyVariantsFoldsAccents(t *testing.T) {
	variants := KeyVariants("Sítio")
	last := variants[len(variants)-1]
	if last.Value != "sitio" || last.Rank != VariantRankFolded {
		t.Fatalf("expected folded variant 'sitio', got %+v", last)
	}
}

func TestFoldAccents(t *testing.T) {
	if got := FoldAccents("ocupação do solo"); got != "ocupacao do solo" {
		t.Fatalf("FoldAccents() = %q", got)
	}
}

func TestNormalizeQuestionCollapsesWhitespace(t *testing.T) {
	if got := NormalizeQuestion("  O QUE   é\tisso  "); got != "o que é isso" {
		t.Fatalf("NormalizeQuestion() = %q", got)
	}
}

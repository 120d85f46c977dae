package domain

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Document types of the municipal planning corpus.
const (
	DocumentTypeLUOS = "LUOS"
	DocumentTypePDUS = "PDUS"
)

var (
	articleRefPattern      = regexp.MustCompile(`(?i)\bart(?:igo)?s?\.?\s*(?:n[ºo°.]?\s*)?(\d+)`)
	neighborhoodRefPattern = regexp.MustCompile(`(?i)\bbairro\s+(?:d[aoe]s?\s+)?([\p{L}]+(?:\s+[\p{L}]+)?)`)
	luosPattern            = regexp.MustCompile(`(?i)\bluos\b|lei\s+de\s+uso\s+e\s+ocupa`)
	pdusPattern            = regexp.MustCompile(`(?i)\bpdus\b|plano\s+diretor`)
)

// Query is the immutable, parsed form of an incoming question. Reference
// extraction happens once at construction; callers only read.
type Query struct {
	RawText          string
	NormalizedText   string
	DocumentType     string
	ArticleRefs      []string
	NeighborhoodRefs []string
}

func NewQuery(rawText, documentTypeFilter string) Query {
	normalized := NormalizeQuestion(rawText)

	q := Query{
		RawText:        rawText,
		NormalizedText: normalized,
		DocumentType:   strings.ToUpper(strings.TrimSpace(documentTypeFilter)),
	}
	if q.DocumentType == "" {
		q.DocumentType = detectDocumentType(normalized)
	}

	for _, match := range articleRefPattern.FindAllStringSubmatch(rawText, -1) {
		q.ArticleRefs = appendUnique(q.ArticleRefs, match[1])
	}
	for _, match := range neighborhoodRefPattern.FindAllStringSubmatch(rawText, -1) {
		q.NeighborhoodRefs = appendUnique(q.NeighborhoodRefs, strings.TrimSpace(match[1]))
	}
	return q
}

// NormalizeQuestion lowercases and collapses whitespace. The normalized form
// is the cache key, so it must be stable across equivalent spellings.
func NormalizeQuestion(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(text))), " ")
}

// CacheKey joins the normalized question with the document-type filter so
// filtered and unfiltered variants of the same question never collide.
func (q Query) CacheKey() string {
	if q.DocumentType == "" {
		return q.NormalizedText
	}
	return q.NormalizedText + "|" + q.DocumentType
}

func (q Query) HasExactReference() bool {
	return len(q.ArticleRefs) > 0 || len(q.NeighborhoodRefs) > 0
}

// Tokens returns the normalized question split into words, for pattern search.
func (q Query) Tokens() []string {
	return strings.Fields(q.NormalizedText)
}

func detectDocumentType(normalized string) string {
	switch {
	case luosPattern.MatchString(normalized):
		return DocumentTypeLUOS
	case pdusPattern.MatchString(normalized):
		return DocumentTypePDUS
	default:
		return ""
	}
}

// KeyVariant is one normalized spelling of an extracted reference. Variants
// are ranked: an exact original-string hit beats a left-padded hit, which
// beats an accent-folded hit.
type KeyVariant struct {
	Value string
	Rank  int
}

const (
	VariantRankOriginal = iota
	VariantRankZeroStripped
	VariantRankPadded
	VariantRankFolded
)

const paddedKeyWidth = 4

// KeyVariants expands one reference into its lookup spellings in rank order,
// deduplicated so a reference that is already padded is not tried twice.
func KeyVariants(reference string) []KeyVariant {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil
	}

	variants := []KeyVariant{{Value: reference, Rank: VariantRankOriginal}}
	add := func(value string, rank int) {
		for _, v := range variants {
			if v.Value == value {
				return
			}
		}
		variants = append(variants, KeyVariant{Value: value, Rank: rank})
	}

	if stripped := strings.TrimLeft(reference, "0"); stripped != "" {
		add(stripped, VariantRankZeroStripped)
	}
	if isDigits(reference) && len(reference) < paddedKeyWidth {
		add(strings.Repeat("0", paddedKeyWidth-len(reference))+reference, VariantRankPadded)
	}
	add(FoldAccents(strings.ToLower(reference)), VariantRankFolded)

	return variants
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldAccents strips combining marks, e.g. "Boa Viagem Sítio" -> "Boa Viagem Sitio".
func FoldAccents(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		return s
	}
	return folded
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

package labeler

import (
	"context"
	"slices"

	"github.com/sabaio/qaeval/internal/similarity"
	"github.com/sabaio/qaeval/internal/store"
)

// MethodSimilarity names the exemplar-matching labeler.
const MethodSimilarity = "similarity"

// SimilarityLabeler labels an item with the category of its most similar
// already-labeled exemplar.
type SimilarityLabeler struct {
	exemplars     map[string][]string
	MinConfidence float64
}

// NewSimilarityLabeler builds exemplars from entries that already carry a
// non-empty category.
func NewSimilarityLabeler(entries []store.QAEntry, minConfidence float64) *SimilarityLabeler {
	ex := make(map[string][]string)
	for _, e := range entries {
		if e.Category.Null || e.Category.Name == "" {
			continue
		}
		if text := ItemFromEntry(e).Text(); text != "" {
			ex[e.Category.Name] = append(ex[e.Category.Name], text)
		}
	}
	return &SimilarityLabeler{exemplars: ex, MinConfidence: minConfidence}
}

// Label scores every candidate by its best exemplar ratio. Ties go to the
// earlier candidate. A best score under MinConfidence yields uncategorized.
func (s *SimilarityLabeler) Label(_ context.Context, item Item, categories []string) (Label, error) {
	text := item.Text()
	best, bestScore := "", -1.0
	for _, c := range categories {
		for _, ex := range s.exemplars[c] {
			if r := similarity.Ratio(text, ex); r > bestScore {
				best, bestScore = c, r
			}
		}
	}

	if best == "" {
		return uncategorized(MethodSimilarity, 0), nil
	}
	if bestScore < s.MinConfidence {
		return uncategorized(MethodSimilarity, bestScore), nil
	}
	return Label{Category: best, Confidence: bestScore, Method: MethodSimilarity}, nil
}

// Categories returns the categories that have exemplars, sorted.
func (s *SimilarityLabeler) Categories() []string {
	out := make([]string, 0, len(s.exemplars))
	for c := range s.exemplars {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

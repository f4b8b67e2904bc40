// Package labeler assigns categories to uncategorized free-text records.
package labeler

import (
	"context"

	"github.com/sabaio/qaeval/internal/record"
	"github.com/sabaio/qaeval/internal/store"
)

// Item is a record to be labeled.
type Item struct {
	ID       int
	Question string
	Answer   string
	Expected string
}

// ItemFromEntry converts a stored row.
func ItemFromEntry(e store.QAEntry) Item {
	return Item{ID: e.ID, Question: e.Question, Answer: e.Answer, Expected: e.Expected}
}

// Text is what labelers compare: the question, or the expected answer when
// the question is blank.
func (it Item) Text() string {
	if it.Question != "" {
		return it.Question
	}
	if it.Expected != "" {
		return it.Expected
	}
	return it.Answer
}

// Label is a labeler's decision for one item. Category is
// record.Uncategorized when no candidate fits.
type Label struct {
	Category   string
	Confidence float64
	Method     string
	Reasoning  string
}

// Assigned reports whether the label names a real category.
func (l Label) Assigned() bool {
	return l.Category != "" && l.Category != record.Uncategorized
}

// Labeler picks one of the candidate categories for an item.
type Labeler interface {
	Label(ctx context.Context, item Item, categories []string) (Label, error)
}

func uncategorized(method string, confidence float64) Label {
	return Label{Category: record.Uncategorized, Confidence: confidence, Method: method}
}

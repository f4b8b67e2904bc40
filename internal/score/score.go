// Package score turns ordered evaluation records into correctness verdicts
// and per-category accuracy.
package score

import (
	"context"
	"fmt"
	"strings"

	"github.com/sabaio/qaeval/internal/record"
	"github.com/sabaio/qaeval/internal/similarity"
)

// Mode selects how records are compared.
type Mode string

const (
	// ModeQA compares free-text answers with expected answers.
	ModeQA Mode = "qa"
	// ModeBinary compares gold and predicted binary verdicts.
	ModeBinary Mode = "binary"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeQA, ModeBinary:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown scoring mode %q (want %q or %q)", s, ModeQA, ModeBinary)
	}
}

// Outcome is the scored form of a single record.
type Outcome struct {
	// Position is the 1-based rank in the whole sequence.
	Position int `json:"position" yaml:"position"`
	// CategoryPosition is the 1-based rank within the record's category.
	CategoryPosition int    `json:"category_position" yaml:"category_position"`
	Category         string `json:"category" yaml:"category"`
	Correct          bool   `json:"correct" yaml:"correct"`
	// Ratio is the similarity between answer and expected; nil in binary mode.
	Ratio *float64 `json:"ratio,omitempty" yaml:"ratio,omitempty"`
}

// CategoryResult is the accumulated state of one category.
type CategoryResult struct {
	Category record.Category
	// Label is the category's key in the summary, unique within a Result.
	Label   string
	Total   int
	Correct int
	// FailPositions are category-local 1-based positions of failures.
	FailPositions []int
}

// Result is the output of one scoring pass.
type Result struct {
	Mode              Mode
	OverallDeficiency float64
	// Categories are in first-appearance order.
	Categories []CategoryResult
	// GlobalFailures are 1-based positions in the whole sequence.
	GlobalFailures []int
	TotalRecords   int
	Outcomes       []Outcome
}

// TotalCorrect returns the number of correct records across all categories.
func (r Result) TotalCorrect() int {
	n := 0
	for _, c := range r.Categories {
		n += c.Correct
	}
	return n
}

// accumulator aggregates verdicts in source order.
type accumulator struct {
	index  map[record.Category]int
	result Result
	// nullOutcomes indexes the outcomes of null-category records.
	nullOutcomes []int
}

func newAccumulator(mode Mode, n int) *accumulator {
	return &accumulator{
		index: make(map[record.Category]int),
		result: Result{
			Mode:           mode,
			Categories:     []CategoryResult{},
			GlobalFailures: []int{},
			Outcomes:       make([]Outcome, 0, n),
		},
	}
}

// add records the verdict for the next record and returns its outcome.
func (a *accumulator) add(cat record.Category, correct bool) *Outcome {
	i, ok := a.index[cat]
	if !ok {
		i = len(a.result.Categories)
		a.index[cat] = i
		a.result.Categories = append(a.result.Categories, CategoryResult{
			Category:      cat,
			Label:         cat.Label(),
			FailPositions: []int{},
		})
	}
	c := &a.result.Categories[i]
	c.Total++
	a.result.TotalRecords++

	if correct {
		c.Correct++
	} else {
		c.FailPositions = append(c.FailPositions, c.Total)
		a.result.GlobalFailures = append(a.result.GlobalFailures, a.result.TotalRecords)
	}

	a.result.Outcomes = append(a.result.Outcomes, Outcome{
		Position:         a.result.TotalRecords,
		CategoryPosition: c.Total,
		Category:         c.Label,
		Correct:          correct,
	})
	if cat.Null {
		a.nullOutcomes = append(a.nullOutcomes, len(a.result.Outcomes)-1)
	}
	return &a.result.Outcomes[len(a.result.Outcomes)-1]
}

// finish gives the null category a label no named category uses and
// returns the result.
func (a *accumulator) finish() Result {
	null, ok := a.index[record.NullCategory()]
	if !ok {
		return a.result
	}
	taken := make(map[string]bool, len(a.result.Categories))
	for i, c := range a.result.Categories {
		if i != null {
			taken[c.Label] = true
		}
	}
	label := record.NullCategory().Label()
	for n := 2; taken[label]; n++ {
		label = fmt.Sprintf("%s#%d", record.NullCategory().Label(), n)
	}
	a.result.Categories[null].Label = label
	for _, i := range a.nullOutcomes {
		a.result.Outcomes[i].Category = label
	}
	return a.result
}

// ScoreQA scores free-text records. Each record gets a similarity ratio, which
// drives the overall deficiency, and a strict case- and whitespace-insensitive
// equality verdict, which drives accuracy and failure positions.
func ScoreQA(records []record.QA) Result {
	acc := newAccumulator(ModeQA, len(records))

	sum := 0.0
	for _, r := range records {
		ratio := similarity.Ratio(r.Answer, r.Expected)
		sum += ratio

		o := acc.add(r.Category, Equivalent(r.Answer, r.Expected))
		o.Ratio = &ratio
	}

	// An empty run has nothing deficient.
	if len(records) > 0 {
		acc.result.OverallDeficiency = 1 - sum/float64(len(records))
	}
	return acc.finish()
}

// ScoreBinary scores binary-classification records. Missing categories are
// grouped under record.Uncategorized.
func ScoreBinary(records []record.Verdict) Result {
	acc := newAccumulator(ModeBinary, len(records))

	correct := 0
	for _, r := range records {
		ok := record.Match(r.Gold, r.Predicted)
		if ok {
			correct++
		}
		acc.add(r.Category.OrDefault(), ok)
	}

	if len(records) > 0 {
		acc.result.OverallDeficiency = 1 - float64(correct)/float64(len(records))
	}
	return acc.finish()
}

// Equivalent is the strict free-text verdict: answers match after trimming
// surrounding whitespace and lower-casing.
func Equivalent(answer, expected string) bool {
	return strings.ToLower(strings.TrimSpace(answer)) == strings.ToLower(strings.TrimSpace(expected))
}

// Sources bundles the record sources a scoring run may read from.
type Sources struct {
	QA      record.QASource
	Verdict record.VerdictSource
}

// Run drains the source for mode once and scores the materialized sequence.
func Run(ctx context.Context, mode Mode, src Sources) (Result, error) {
	switch mode {
	case ModeQA:
		if src.QA == nil {
			return Result{}, fmt.Errorf("no record source for mode %q", mode)
		}
		records, err := src.QA.QARecords(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("read qa records: %w", err)
		}
		return ScoreQA(records), nil
	case ModeBinary:
		if src.Verdict == nil {
			return Result{}, fmt.Errorf("no record source for mode %q", mode)
		}
		records, err := src.Verdict.VerdictRecords(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("read verdict records: %w", err)
		}
		return ScoreBinary(records), nil
	default:
		return Result{}, fmt.Errorf("unknown scoring mode %q", mode)
	}
}

package record

import "context"

// Uncategorized is the label binary mode assigns to records without a category.
const Uncategorized = "uncategorized"

// Category is a record's category label. Null marks a label the source
// supplied as missing, which is distinct from the empty string.
type Category struct {
	Name string
	Null bool
}

// Named returns a non-null category with the given name.
func Named(name string) Category {
	return Category{Name: name}
}

// NullCategory returns the missing category.
func NullCategory() Category {
	return Category{Null: true}
}

// Label returns the display label. Scoring suffixes the null label when a
// named category already uses it.
func (c Category) Label() string {
	if c.Null {
		return "<null>"
	}
	return c.Name
}

// OrDefault returns c, or the uncategorized label when c is null or empty.
func (c Category) OrDefault() Category {
	if c.Null || c.Name == "" {
		return Named(Uncategorized)
	}
	return c
}

// QA is a free-text evaluation record. Sources normalize missing text to "".
type QA struct {
	Category Category
	Answer   string
	Expected string
}

// Verdict is a binary-classification record. Gold and Predicted hold the raw
// values as the source produced them; they are normalized at scoring time.
type Verdict struct {
	Category  Category
	Gold      any
	Predicted any
}

// QASource produces free-text records in their stable source order.
type QASource interface {
	QARecords(ctx context.Context) ([]QA, error)
}

// VerdictSource produces binary records in their stable source order.
type VerdictSource interface {
	VerdictRecords(ctx context.Context) ([]Verdict, error)
}

// QASlice is an in-memory QASource.
type QASlice []QA

func (s QASlice) QARecords(context.Context) ([]QA, error) {
	return []QA(s), nil
}

// VerdictSlice is an in-memory VerdictSource.
type VerdictSlice []Verdict

func (s VerdictSlice) VerdictRecords(context.Context) ([]Verdict, error) {
	return []Verdict(s), nil
}

// Package report assembles scoring results and failure patterns into the
// canonical summary and renders it for output.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/sabaio/qaeval/internal/pattern"
	"github.com/sabaio/qaeval/internal/score"
)

// CategorySummary is the per-category entry of a Summary.
type CategorySummary struct {
	Name          string          `json:"-" yaml:"-"`
	Null          bool            `json:"null,omitempty" yaml:"null,omitempty"`
	Accuracy      float64         `json:"accuracy" yaml:"accuracy"`
	Correct       int             `json:"correct" yaml:"correct"`
	Total         int             `json:"total" yaml:"total"`
	FailPositions []int           `json:"fail_positions" yaml:"fail_positions"`
	Pattern       pattern.Summary `json:"pattern" yaml:"pattern"`
}

// Categories keeps category summaries in first-appearance order. It encodes
// as a JSON/YAML object keyed by category name, preserving that order.
type Categories []CategorySummary

// Summary is the structured result of one scoring pass.
type Summary struct {
	Mode              score.Mode      `json:"mode" yaml:"mode"`
	OverallDeficiency float64         `json:"overall_deficiency" yaml:"overall_deficiency"`
	Categories        Categories      `json:"categories" yaml:"categories"`
	GlobalFailures    []int           `json:"global_failures" yaml:"global_failures"`
	GlobalPattern     pattern.Summary `json:"global_pattern" yaml:"global_pattern"`
	Records           []score.Outcome `json:"records,omitempty" yaml:"records,omitempty"`
}

// Category returns the summary of the named category.
func (s *Summary) Category(name string) (CategorySummary, bool) {
	for _, c := range s.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return CategorySummary{}, false
}

// Assemble combines a scoring result with the failure pattern of every
// category and of the whole sequence. The summary shares no memory with res.
func Assemble(res score.Result) (*Summary, error) {
	s := &Summary{
		Mode:              res.Mode,
		OverallDeficiency: res.OverallDeficiency,
		Categories:        make(Categories, 0, len(res.Categories)),
		GlobalFailures:    cloneInts(res.GlobalFailures),
		Records:           cloneOutcomes(res.Outcomes),
	}

	for _, c := range res.Categories {
		accuracy := 0.0
		if c.Total > 0 {
			accuracy = float64(c.Correct) / float64(c.Total)
		}
		p, err := pattern.Analyze(c.FailPositions, max(c.Total, 1))
		if err != nil {
			return nil, fmt.Errorf("analyze category %q: %w", c.Label, err)
		}
		s.Categories = append(s.Categories, CategorySummary{
			Name:          c.Label,
			Null:          c.Category.Null,
			Accuracy:      accuracy,
			Correct:       c.Correct,
			Total:         c.Total,
			FailPositions: cloneInts(c.FailPositions),
			Pattern:       p,
		})
	}

	global, err := pattern.Analyze(res.GlobalFailures, max(res.TotalRecords, 1))
	if err != nil {
		return nil, fmt.Errorf("analyze global failures: %w", err)
	}
	s.GlobalPattern = global

	return s, nil
}

func (c Categories) totals() (correct, total int) {
	for _, cs := range c {
		correct += cs.Correct
		total += cs.Total
	}
	return correct, total
}

// MarshalJSON encodes the categories as an ordered object.
func (c Categories) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cat := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(cat.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(cat)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an ordered object back into categories.
func (c *Categories) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("categories: expected object, got %v", tok)
	}

	out := Categories{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("categories: expected key, got %v", tok)
		}
		var cat CategorySummary
		if err := dec.Decode(&cat); err != nil {
			return fmt.Errorf("categories: decode %q: %w", name, err)
		}
		cat.Name = name
		out = append(out, cat)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// MarshalYAML encodes the categories as an ordered mapping.
func (c Categories) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, cat := range c {
		var val yaml.Node
		if err := val.Encode(cat); err != nil {
			return nil, fmt.Errorf("encode category %q: %w", cat.Name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: cat.Name},
			&val,
		)
	}
	return node, nil
}

func cloneInts(in []int) []int {
	out := make([]int, len(in))
	copy(out, in)
	return out
}

func cloneOutcomes(in []score.Outcome) []score.Outcome {
	out := make([]score.Outcome, len(in))
	for i, o := range in {
		out[i] = o
		if o.Ratio != nil {
			r := *o.Ratio
			out[i].Ratio = &r
		}
	}
	return out
}

// Package ingest loads evaluation records from CSV files into the store.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sabaio/qaeval/internal/record"
	"github.com/sabaio/qaeval/internal/store"
)

// QAWriter receives imported free-text entries.
type QAWriter interface {
	Ensure(ctx context.Context) error
	AddBatch(ctx context.Context, entries []store.QAEntry) error
}

// VerdictWriter receives imported verdict entries.
type VerdictWriter interface {
	Ensure(ctx context.Context) error
	AddBatch(ctx context.Context, entries []store.VerdictEntry) error
}

// ImportQA reads a CSV whose header row is skipped and whose columns are, by
// position, category, question, answer and expected answer. Empty cells are
// stored as NULL. It returns the number of rows imported.
func ImportQA(ctx context.Context, r io.Reader, w QAWriter) (int, error) {
	rows, err := readAll(r)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	entries := make([]store.QAEntry, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 4 {
			return 0, fmt.Errorf("row %d: want 4 columns, got %d", i+2, len(row))
		}
		entries = append(entries, store.QAEntry{
			Category: category(row[0]),
			Question: row[1],
			Answer:   row[2],
			Expected: row[3],
		})
	}

	if err := write(ctx, w, func() error { return w.AddBatch(ctx, entries) }); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ImportVerdicts reads a CSV with named columns category, gold_binary and
// llm_binary, plus an optional question column. Header names match
// case-insensitively. Numeric cells are stored as numbers, empty cells as NULL.
func ImportVerdicts(ctx context.Context, r io.Reader, w VerdictWriter) (int, error) {
	rows, err := readAll(r)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, errors.New("missing header row")
	}

	idx := headerIndex(rows[0])
	for _, name := range []string{"category", "gold_binary", "llm_binary"} {
		if _, ok := idx[name]; !ok {
			return 0, fmt.Errorf("missing required column %q", name)
		}
	}

	entries := make([]store.VerdictEntry, 0, len(rows)-1)
	for i, row := range rows[1:] {
		cell := func(name string) (string, error) {
			j, ok := idx[name]
			if !ok {
				return "", nil
			}
			if j >= len(row) {
				return "", fmt.Errorf("row %d: missing column %q", i+2, name)
			}
			return row[j], nil
		}

		var e store.VerdictEntry
		c, err := cell("category")
		if err != nil {
			return 0, err
		}
		e.Category = category(c)
		if e.Question, err = cell("question"); err != nil {
			return 0, err
		}
		gold, err := cell("gold_binary")
		if err != nil {
			return 0, err
		}
		pred, err := cell("llm_binary")
		if err != nil {
			return 0, err
		}
		e.Gold, e.Predicted = ParseValue(gold), ParseValue(pred)
		entries = append(entries, e)
	}

	if err := write(ctx, w, func() error { return w.AddBatch(ctx, entries) }); err != nil {
		return 0, err
	}
	return len(entries), nil
}

type ensurer interface {
	Ensure(ctx context.Context) error
}

func write(ctx context.Context, e ensurer, add func() error) error {
	if err := e.Ensure(ctx); err != nil {
		return fmt.Errorf("prepare table: %w", err)
	}
	if err := add(); err != nil {
		return fmt.Errorf("import rows: %w", err)
	}
	return nil
}

// readAll parses every row. Cells are kept verbatim, surrounding spaces included.
func readAll(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	return idx
}

func category(s string) record.Category {
	if s == "" {
		return record.NullCategory()
	}
	return record.Named(s)
}

// ParseValue converts a CSV cell or flag to the value stored in an untyped
// column: integers, then floats, then text. Blank means NULL.
func ParseValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

package labeler

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/sabaio/qaeval/internal/record"
	"github.com/sabaio/qaeval/internal/store"
)

// ErrNoCategories is returned when there is nothing to label with.
var ErrNoCategories = errors.New("no categories available")

// Repo is the table Apply reads and updates.
type Repo interface {
	Uncategorized(ctx context.Context) ([]store.QAEntry, error)
	Categories(ctx context.Context) ([]string, error)
	SetCategory(ctx context.Context, id int, category string) error
}

// Options configures Apply.
type Options struct {
	// Categories are the candidates. Empty means the categories already
	// present in the table.
	Categories []string
	DryRun     bool
	Logger     *zap.Logger
}

// Assignment records the label chosen for one row.
type Assignment struct {
	ID    int
	Label Label
}

// Result summarizes an Apply run.
type Result struct {
	Assignments []Assignment
	Labeled     int
	Skipped     int
}

// Apply labels every uncategorized row in repo. Rows the labeler leaves
// uncategorized are skipped; in dry-run mode nothing is written.
func Apply(ctx context.Context, repo Repo, l Labeler, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	categories := opts.Categories
	if len(categories) == 0 {
		var err error
		if categories, err = repo.Categories(ctx); err != nil {
			return nil, fmt.Errorf("load categories: %w", err)
		}
	}
	categories = slices.DeleteFunc(slices.Clone(categories), func(c string) bool {
		return c == "" || c == record.Uncategorized
	})
	if len(categories) == 0 {
		return nil, ErrNoCategories
	}

	entries, err := repo.Uncategorized(ctx)
	if err != nil {
		return nil, fmt.Errorf("load uncategorized rows: %w", err)
	}

	res := &Result{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		lbl, err := l.Label(ctx, ItemFromEntry(e), categories)
		if err != nil {
			return res, fmt.Errorf("label entry %d: %w", e.ID, err)
		}
		res.Assignments = append(res.Assignments, Assignment{ID: e.ID, Label: lbl})

		fields := []zap.Field{
			zap.Int("id", e.ID),
			zap.String("category", lbl.Category),
			zap.Float64("confidence", lbl.Confidence),
			zap.String("method", lbl.Method),
			zap.Bool("dry_run", opts.DryRun),
		}
		if !lbl.Assigned() {
			res.Skipped++
			logger.Info("left uncategorized", fields...)
			continue
		}

		if !opts.DryRun {
			if err := repo.SetCategory(ctx, e.ID, lbl.Category); err != nil {
				return res, fmt.Errorf("set category for entry %d: %w", e.ID, err)
			}
		}
		res.Labeled++
		logger.Info("labeled entry", fields...)
	}
	return res, nil
}

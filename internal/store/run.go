package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// Run is a saved scoring run. Summary holds the JSON-encoded report.
type Run struct {
	ID                string
	Mode              string
	Source            string
	CreatedAt         time.Time
	OverallDeficiency float64
	Summary           json.RawMessage
}

// QueryOpts configures run listing.
type QueryOpts struct {
	Limit int    // max results (0 = unlimited)
	Mode  string // filter by mode ("" = all)
}

// RunRepo persists scoring runs.
type RunRepo struct {
	db *sql.DB
}

// Save stores run, assigning an id and timestamp when they are unset.
func (r *RunRepo) Save(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	query, args := builder().
		Insert("score_runs").
		Columns("id", "mode", "source", "created_at", "overall_deficiency", "summary").
		Values(run.ID, run.Mode, run.Source, run.CreatedAt, run.OverallDeficiency, string(run.Summary)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// List returns runs newest first.
func (r *RunRepo) List(ctx context.Context, opts QueryOpts) ([]Run, error) {
	sel := builder().
		Select("id", "mode", "source", "created_at", "overall_deficiency", "summary").
		From(entsql.Table("score_runs")).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("rowid"))
	if opts.Mode != "" {
		sel.Where(entsql.EQ("mode", opts.Mode))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	query, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

// Get returns the run with the given id, or nil if none exists.
func (r *RunRepo) Get(ctx context.Context, id string) (*Run, error) {
	query, args := builder().
		Select("id", "mode", "source", "created_at", "overall_deficiency", "summary").
		From(entsql.Table("score_runs")).
		Where(entsql.EQ("id", id)).
		Query()

	run, err := scanRun(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run     Run
		summary string
	)
	if err := s.Scan(&run.ID, &run.Mode, &run.Source, &run.CreatedAt, &run.OverallDeficiency, &summary); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Summary = json.RawMessage(summary)
	return &run, nil
}

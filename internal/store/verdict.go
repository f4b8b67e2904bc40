package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/sabaio/qaeval/internal/record"
)

// VerdictEntry is one row of a binary verdict table. Gold and Predicted hold
// whatever SQLite stored: int64, float64, string, []byte or nil.
type VerdictEntry struct {
	ID        int
	Category  record.Category
	Question  string
	Gold      any
	Predicted any
}

// VerdictRepo manages one binary verdict table.
type VerdictRepo struct {
	db    *sql.DB
	table string
}

// Table returns the table name.
func (r *VerdictRepo) Table() string {
	return r.table
}

// Ensure creates the table if it doesn't exist. The verdict columns carry no
// declared type so imported values keep their original storage class.
func (r *VerdictRepo) Ensure(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category TEXT,
		question TEXT,
		gold_binary,
		llm_binary
	)`, r.table))
	if err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

// Add inserts a single entry and returns its id.
func (r *VerdictRepo) Add(ctx context.Context, e VerdictEntry) (int, error) {
	query, args := r.insert(e).Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", r.table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return int(id), nil
}

// AddBatch inserts entries in order within one transaction.
func (r *VerdictRepo) AddBatch(ctx context.Context, entries []VerdictEntry) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return r.insertAll(ctx, tx, entries)
	})
}

// List returns every entry ordered by id.
func (r *VerdictRepo) List(ctx context.Context) ([]VerdictEntry, error) {
	if err := requireTable(ctx, r.db, r.table); err != nil {
		return nil, err
	}
	return r.list(ctx, r.db)
}

// DeleteAll removes every entry and restarts id numbering at 1.
func (r *VerdictRepo) DeleteAll(ctx context.Context) error {
	if err := requireTable(ctx, r.db, r.table); err != nil {
		return err
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query, args := builder().Delete(r.table).Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete from %s: %w", r.table, err)
		}
		return resetSequence(ctx, tx, r.table)
	})
}

// Compact renumbers ids to 1..N preserving their relative order.
func (r *VerdictRepo) Compact(ctx context.Context) error {
	if err := requireTable(ctx, r.db, r.table); err != nil {
		return err
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		entries, err := r.list(ctx, tx)
		if err != nil {
			return err
		}
		query, args := builder().Delete(r.table).Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear %s: %w", r.table, err)
		}
		if err := resetSequence(ctx, tx, r.table); err != nil {
			return err
		}
		return r.insertAll(ctx, tx, entries)
	})
}

// VerdictRecords implements record.VerdictSource.
func (r *VerdictRepo) VerdictRecords(ctx context.Context) ([]record.Verdict, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]record.Verdict, len(entries))
	for i, e := range entries {
		out[i] = record.Verdict{
			Category:  e.Category,
			Gold:      e.Gold,
			Predicted: e.Predicted,
		}
	}
	return out, nil
}

func (r *VerdictRepo) insert(entries ...VerdictEntry) *entsql.InsertBuilder {
	b := builder().
		Insert(r.table).
		Columns("category", "question", "gold_binary", "llm_binary")
	for _, e := range entries {
		b.Values(categoryValue(e.Category), nullString(e.Question), e.Gold, e.Predicted)
	}
	return b
}

func (r *VerdictRepo) insertAll(ctx context.Context, q querier, entries []VerdictEntry) error {
	for start := 0; start < len(entries); start += insertChunk {
		end := min(start+insertChunk, len(entries))
		query, args := r.insert(entries[start:end]...).Query()
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", r.table, err)
		}
	}
	return nil
}

func (r *VerdictRepo) list(ctx context.Context, q querier) ([]VerdictEntry, error) {
	query, args := builder().
		Select("id", "category", "question", "gold_binary", "llm_binary").
		From(entsql.Table(r.table)).
		OrderBy("id").
		Query()

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table, err)
	}
	defer rows.Close()

	var out []VerdictEntry
	for rows.Next() {
		var (
			e                  VerdictEntry
			category, question sql.NullString
		)
		if err := rows.Scan(&e.ID, &category, &question, &e.Gold, &e.Predicted); err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.table, err)
		}
		e.Category = categoryFrom(category)
		e.Question = question.String
		out = append(out, e)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/sabaio/qaeval/internal/record"
)

// QAEntry is one row of a free-text evaluation table.
type QAEntry struct {
	ID       int
	Category record.Category
	Question string
	Answer   string
	Expected string
}

// QARepo manages one free-text evaluation table. Row ids define the record
// order seen by the scorer.
type QARepo struct {
	db    *sql.DB
	table string
}

// Table returns the table name.
func (r *QARepo) Table() string {
	return r.table
}

// Ensure creates the table if it doesn't exist and adds the category column
// to tables created before categories were tracked.
func (r *QARepo) Ensure(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question TEXT,
		answer TEXT,
		expected_answer TEXT,
		category TEXT
	)`, r.table))
	if err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return ensureColumn(ctx, r.db, r.table, "category", "TEXT")
}

// Add inserts a single entry and returns its id.
func (r *QARepo) Add(ctx context.Context, e QAEntry) (int, error) {
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
func (r *QARepo) AddBatch(ctx context.Context, entries []QAEntry) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return r.insertAll(ctx, tx, entries)
	})
}

// Delete removes the entries with the given ids. Remaining ids are left
// untouched; call Compact to renumber.
func (r *QARepo) Delete(ctx context.Context, ids ...int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := requireTable(ctx, r.db, r.table); err != nil {
		return 0, err
	}
	query, args := builder().
		Delete(r.table).
		Where(entsql.InInts("id", ids...)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", r.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// DeleteAll removes every entry and restarts id numbering at 1.
func (r *QARepo) DeleteAll(ctx context.Context) error {
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

// List returns every entry ordered by id.
func (r *QARepo) List(ctx context.Context) ([]QAEntry, error) {
	if err := requireTable(ctx, r.db, r.table); err != nil {
		return nil, err
	}
	return r.list(ctx, r.db, nil)
}

// Count returns the number of entries.
func (r *QARepo) Count(ctx context.Context) (int, error) {
	if err := requireTable(ctx, r.db, r.table); err != nil {
		return 0, err
	}
	query, args := builder().Select(entsql.Count("*")).From(entsql.Table(r.table)).Query()
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table, err)
	}
	return n, nil
}

// Compact renumbers ids to 1..N, preserving their relative order, and resets
// the AUTOINCREMENT sequence so the next insert gets N+1.
func (r *QARepo) Compact(ctx context.Context) error {
	if err := requireTable(ctx, r.db, r.table); err != nil {
		return err
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		entries, err := r.list(ctx, tx, nil)
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
		for i := range entries {
			entries[i].ID = 0
		}
		return r.insertAll(ctx, tx, entries)
	})
}

// Uncategorized returns entries whose category is NULL or empty, ordered by id.
func (r *QARepo) Uncategorized(ctx context.Context) ([]QAEntry, error) {
	if err := requireTable(ctx, r.db, r.table); err != nil {
		return nil, err
	}
	return r.list(ctx, r.db, entsql.Or(entsql.IsNull("category"), entsql.EQ("category", "")))
}

// SetCategory assigns a category to the entry with the given id.
func (r *QARepo) SetCategory(ctx context.Context, id int, category string) error {
	query, args := builder().
		Update(r.table).
		Set("category", category).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("entry %d not found in %s", id, r.table)
	}
	return nil
}

// Categories returns the distinct non-empty categories in order of first appearance.
func (r *QARepo) Categories(ctx context.Context) ([]string, error) {
	if err := requireTable(ctx, r.db, r.table); err != nil {
		return nil, err
	}
	query, args := builder().
		Select("category").
		From(entsql.Table(r.table)).
		Where(entsql.And(entsql.Not(entsql.IsNull("category")), entsql.NEQ("category", ""))).
		GroupBy("category").
		OrderBy(entsql.Min("id")).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// QARecords implements record.QASource. Records come back in id order with
// missing answers normalized to the empty string.
func (r *QARepo) QARecords(ctx context.Context) ([]record.QA, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]record.QA, len(entries))
	for i, e := range entries {
		out[i] = record.QA{Category: e.Category, Answer: e.Answer, Expected: e.Expected}
	}
	return out, nil
}

func (r *QARepo) insert(entries ...QAEntry) *entsql.InsertBuilder {
	b := builder().
		Insert(r.table).
		Columns("category", "question", "answer", "expected_answer")
	for _, e := range entries {
		b.Values(categoryValue(e.Category), nullString(e.Question), nullString(e.Answer), nullString(e.Expected))
	}
	return b
}

func (r *QARepo) insertAll(ctx context.Context, q querier, entries []QAEntry) error {
	for start := 0; start < len(entries); start += insertChunk {
		end := min(start+insertChunk, len(entries))
		query, args := r.insert(entries[start:end]...).Query()
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", r.table, err)
		}
	}
	return nil
}

func (r *QARepo) list(ctx context.Context, q querier, where *entsql.Predicate) ([]QAEntry, error) {
	sel := builder().
		Select("id", "category", "question", "answer", "expected_answer").
		From(entsql.Table(r.table)).
		OrderBy("id")
	if where != nil {
		sel.Where(where)
	}
	query, args := sel.Query()

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table, err)
	}
	defer rows.Close()

	var out []QAEntry
	for rows.Next() {
		var (
			e                          QAEntry
			category                   sql.NullString
			question, answer, expected sql.NullString
		)
		if err := rows.Scan(&e.ID, &category, &question, &answer, &expected); err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.table, err)
		}
		e.Category = categoryFrom(category)
		e.Question, e.Answer, e.Expected = question.String, answer.String, expected.String
		out = append(out, e)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	entsql "entgo.io/ent/dialect/sql"
)

// ErrTableNotFound is returned when a record source table does not exist.
var ErrTableNotFound = errors.New("table not found")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// tableExists reports whether a table with the given name exists.
func tableExists(ctx context.Context, q querier, table string) (bool, error) {
	query, args := builder().
		Select(entsql.Count("*")).
		From(entsql.Table("sqlite_master")).
		Where(entsql.And(entsql.EQ("type", "table"), entsql.EQ("name", table))).
		Query()

	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return n > 0, nil
}

// requireTable returns an error wrapping ErrTableNotFound when table is missing.
func requireTable(ctx context.Context, q querier, table string) error {
	ok, err := tableExists(ctx, q, table)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return nil
}

// columns returns the column names of table.
func columns(ctx context.Context, q querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// ensureColumn adds column to table when an older schema lacks it.
func ensureColumn(ctx context.Context, q querier, table, column, ctype string) error {
	cols, err := columns(ctx, q, table)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if c == column {
			return nil
		}
	}
	if _, err := q.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, ctype)); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}

// resetSequence restarts AUTOINCREMENT numbering for table.
func resetSequence(ctx context.Context, q querier, table string) error {
	ok, err := tableExists(ctx, q, "sqlite_sequence")
	if err != nil || !ok {
		return err
	}
	query, args := builder().
		Delete("sqlite_sequence").
		Where(entsql.EQ("name", table)).
		Query()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("reset sequence %s: %w", table, err)
	}
	return nil
}

func createRunsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS score_runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		source TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		overall_deficiency REAL NOT NULL,
		summary TEXT NOT NULL
	)`)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

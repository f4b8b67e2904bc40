package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sabaio/qaeval/internal/record"
)

// insertChunk bounds rows per INSERT so statements stay under SQLite's
// bound-parameter limit.
const insertChunk = 500

// withTx runs fn inside a transaction, committing on success.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func categoryValue(c record.Category) sql.NullString {
	return sql.NullString{String: c.Name, Valid: !c.Null}
}

func categoryFrom(ns sql.NullString) record.Category {
	if !ns.Valid {
		return record.NullCategory()
	}
	return record.Named(ns.String)
}
